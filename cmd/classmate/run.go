// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/classmate/classmate/internal/bot"
	"github.com/classmate/classmate/internal/command"
	"github.com/classmate/classmate/internal/commands"
	"github.com/classmate/classmate/internal/config"
	"github.com/classmate/classmate/internal/logging"
	"github.com/classmate/classmate/internal/mapi"
	"github.com/classmate/classmate/internal/observability"
	"github.com/classmate/classmate/internal/settings"
)

// throttleSweepInterval is how often expired throttle entries are reaped.
const throttleSweepInterval = time.Minute

// NewRunCmd creates the run subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Long: `Start the bot: connect to the Discord gateway, register the command
set, and serve until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithDeps(cmd.Context(), cmd, nil)
		},
	}

	registerRunFlags(cmd.Flags())
	return cmd
}

// registerRunFlags declares flag overrides for config keys. Flag defaults
// mirror config.Default so an unset flag never masks a file value.
func registerRunFlags(flags *pflag.FlagSet) {
	def := config.Default()

	flags.String("discord.token", "", "Discord bot token")
	flags.StringSlice("discord.owners", nil, "bot owner user ids")
	flags.String("discord.support_invite", "", "support server invite mentioned in error replies")
	flags.String("database.url", "", "PostgreSQL URL for the settings store (empty = in-memory)")
	flags.String("mapi.base_url", "", "school portal API base URL (empty = school commands disabled)")
	flags.String("log.format", def.Log.Format, "log format (json or text)")
	flags.String("log.level", def.Log.Level, "log level (debug, info, warn, error)")
	flags.String("metrics.addr", "", "metrics/health HTTP address (empty = disabled)")
	flags.String("command.prefix", def.Command.Prefix, "default command prefix")
	flags.Bool("command.unknown_reply", def.Command.UnknownReply, "reply to unknown commands")
	flags.Duration("command.editable_duration", 0, "how long an edited message re-runs its command (0 = built-in default)")
	flags.Duration("command.negative_reply_window", 0, "per-user window between repeated rejection replies (0 = built-in default)")
	flags.Int("command.matches_ceiling", 0, "max candidates listed during disambiguation (0 = built-in default)")
}

// runWithDeps starts the bot with injectable dependencies. If deps is nil,
// default implementations are used.
func runWithDeps(ctx context.Context, cmd *cobra.Command, deps *RunDeps) error {
	if deps == nil {
		deps = &RunDeps{}
	}
	if deps.LoadConfig == nil {
		deps.LoadConfig = config.Load
	}
	if deps.NewProvider == nil {
		deps.NewProvider = func(ctx context.Context, url string) (SettingProvider, error) {
			if url == "" {
				return settings.NewMemoryProvider(), nil
			}
			p, err := settings.NewPostgresProvider(ctx, url)
			if err != nil {
				return nil, err
			}
			if err := p.Init(ctx); err != nil {
				p.Close()
				return nil, err
			}
			return p, nil
		}
	}
	if deps.NewGateway == nil {
		deps.NewGateway = func(token string) (Gateway, error) {
			return bot.New(token)
		}
	}
	if deps.NewAPI == nil {
		deps.NewAPI = func(baseURL string) (commands.SchoolAPI, error) {
			return mapi.New(baseURL)
		}
	}
	if deps.NewObservability == nil {
		deps.NewObservability = func(addr string, ready func() bool) ObservabilityServer {
			return observability.NewServer(addr, ready)
		}
	}
	if deps.Notify == nil {
		deps.Notify = func(c chan<- os.Signal) {
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		}
	}

	cfg, err := deps.LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("classmate", version, cfg.Log.Format, cfg.Log.Level)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	provider, err := deps.NewProvider(ctx, cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("failed to set up settings provider: %w", err)
	}
	defer provider.Close()

	var api commands.SchoolAPI
	if cfg.MAPI.BaseURL != "" {
		if api, err = deps.NewAPI(cfg.MAPI.BaseURL); err != nil {
			return fmt.Errorf("failed to set up portal client: %w", err)
		}
	} else {
		slog.Warn("mapi.base_url not configured, school commands disabled")
	}

	gw, err := deps.NewGateway(cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("failed to create gateway session: %w", err)
	}
	if err := gw.Start(); err != nil {
		return fmt.Errorf("failed to connect to gateway: %w", err)
	}
	var connected atomic.Bool
	connected.Store(true)
	defer func() {
		if closeErr := gw.Close(); closeErr != nil {
			slog.Warn("error closing gateway session", "error", closeErr)
		}
	}()

	responder, resolver, perms := gw.Platform()

	registry := command.NewRegistry(command.WithMatchesCeiling(cfg.Command.MatchesCeiling))
	registry.StartThrottleReaper(throttleSweepInterval)
	defer registry.Close()

	opts := []command.DispatcherOption{
		command.WithSelfID(gw.ClientID()),
		command.WithOwners(cfg.Discord.Owners...),
		command.WithPrefix(cfg.Command.Prefix),
		command.WithProvider(provider),
		command.WithPermissionChecker(perms),
		command.WithOwnerContact(ownerTag(cfg.Discord.Owners), cfg.Discord.SupportInvite),
	}
	if cfg.Command.UnknownReply {
		opts = append(opts, command.WithUnknownCommandReply())
	}
	if cfg.Command.EditableDuration > 0 {
		opts = append(opts, command.WithEditableDuration(cfg.Command.EditableDuration))
	}
	if cfg.Command.NegativeReplyWindow > 0 {
		opts = append(opts, command.WithNegativeReplyWindow(cfg.Command.NegativeReplyWindow))
	}

	dispatcher, err := command.NewDispatcher(registry, responder, resolver, opts...)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	if err := commands.RegisterAll(registry, commands.Deps{
		Dispatcher:    dispatcher,
		Perms:         perms,
		DefaultPrefix: cfg.Command.Prefix,
		API:           api,
		Sessions:      commands.NewSessionStore(),
	}); err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}

	gw.SetDispatcher(dispatcher)

	var obsServer ObservabilityServer
	var obsErrChan <-chan error
	if cfg.Metrics.Addr != "" {
		obsServer = deps.NewObservability(cfg.Metrics.Addr, connected.Load)
		if obsErrChan, err = obsServer.Start(); err != nil {
			return fmt.Errorf("failed to start observability server: %w", err)
		}
		slog.Info("observability server started", "addr", obsServer.Addr())
	}

	sigChan := make(chan os.Signal, 1)
	deps.Notify(sigChan)
	defer signal.Stop(sigChan)

	cmd.Println("Bot started")
	slog.Info("bot ready", "client_id", gw.ClientID(), "prefix", cfg.Command.Prefix)

	select {
	case sig := <-sigChan:
		slog.Info("received shutdown signal", "signal", sig)
	case err := <-obsErrChan:
		if err != nil {
			slog.Error("observability server failed", "error", err)
		}
	case <-ctx.Done():
		slog.Info("context cancelled, shutting down")
	}

	slog.Info("shutting down...")
	connected.Store(false)

	if obsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := obsServer.Stop(shutdownCtx); err != nil {
			slog.Warn("error stopping observability server", "error", err)
		}
	}

	slog.Info("shutdown complete")
	return nil
}

// ownerTag renders the mention used in unexpected-error replies.
func ownerTag(owners []string) string {
	if len(owners) == 0 {
		return "the bot owner"
	}
	return "<@" + owners[0] + ">"
}
