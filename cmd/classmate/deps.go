// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package main

import (
	"context"
	"os"

	"github.com/spf13/pflag"

	"github.com/classmate/classmate/internal/command"
	"github.com/classmate/classmate/internal/commands"
	"github.com/classmate/classmate/internal/config"
)

// RunDeps contains injectable dependencies for the run command. Nil fields
// use the default implementations.
type RunDeps struct {
	// LoadConfig reads the configuration.
	// Default: config.Load
	LoadConfig func(path string, flags *pflag.FlagSet) (*config.Config, error)

	// NewProvider builds the setting provider, initialized and ready for
	// reads. An empty URL selects the in-memory provider.
	// Default: settings.NewPostgresProvider / settings.NewMemoryProvider
	NewProvider func(ctx context.Context, url string) (SettingProvider, error)

	// NewGateway builds the chat gateway for the bot token.
	// Default: bot.New
	NewGateway func(token string) (Gateway, error)

	// NewAPI builds the school portal client.
	// Default: mapi.New
	NewAPI func(baseURL string) (commands.SchoolAPI, error)

	// NewObservability builds the metrics/health server.
	// Default: observability.NewServer
	NewObservability func(addr string, ready func() bool) ObservabilityServer

	// Notify registers the shutdown signals on c.
	// Default: signal.Notify for SIGINT and SIGTERM
	Notify func(c chan<- os.Signal)
}

// SettingProvider wraps the methods used from the settings providers.
type SettingProvider interface {
	command.SettingProvider
	Close()
}

// Gateway wraps the methods used from bot.Bot.
type Gateway interface {
	Start() error
	Close() error
	ClientID() string
	SetDispatcher(*command.Dispatcher)
	Platform() (command.Responder, command.EntityResolver, command.PermissionChecker)
}

// ObservabilityServer wraps the methods used from observability.Server.
type ObservabilityServer interface {
	Start() (<-chan error, error)
	Stop(ctx context.Context) error
	Addr() string
}

// MigrateDeps contains injectable dependencies for the migrate command.
type MigrateDeps struct {
	// NewMigrator builds the migration runner for a database URL.
	// Default: settings.NewMigrator
	NewMigrator func(databaseURL string) (Migrator, error)
}

// Migrator wraps the methods used from settings.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() error
}
