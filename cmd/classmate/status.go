// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/classmate/classmate/internal/config"
)

// StatusDeps contains injectable dependencies for the status command.
type StatusDeps struct {
	// LoadConfig reads the configuration; only consulted when --addr is
	// not given. Default: config.Load
	LoadConfig func(path string, flags *pflag.FlagSet) (*config.Config, error)

	// Client performs the health probes.
	// Default: an http.Client with a 5s timeout
	Client *http.Client
}

// NewStatusCmd creates the status subcommand.
func NewStatusCmd() *cobra.Command {
	return newStatusCmdWithDeps(nil)
}

func newStatusCmdWithDeps(deps *StatusDeps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe a running instance's health endpoints",
		Long: `Probe the liveness and readiness endpoints of a running instance. The
address comes from --addr or, failing that, metrics.addr in the
configuration.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if deps == nil {
				deps = &StatusDeps{}
			}
			if deps.LoadConfig == nil {
				deps.LoadConfig = config.Load
			}
			if deps.Client == nil {
				deps.Client = &http.Client{Timeout: 5 * time.Second}
			}

			addr, err := cmd.Flags().GetString("addr")
			if err != nil {
				return err
			}
			if addr == "" {
				cfg, err := deps.LoadConfig(configFile, nil)
				if err != nil {
					return err
				}
				addr = cfg.Metrics.Addr
			}
			if addr == "" {
				return oops.Code("CONFIG_INVALID").Errorf("no health address: pass --addr or set metrics.addr")
			}

			live := probe(cmd.Context(), deps.Client, addr, "/healthz/liveness")
			ready := probe(cmd.Context(), deps.Client, addr, "/healthz/readiness")

			cmd.Printf("Liveness:  %s\n", probeWord(live))
			cmd.Printf("Readiness: %s\n", probeWord(ready))

			if live != nil {
				return oops.Code("STATUS_DOWN").With("addr", addr).Wrap(live)
			}
			if ready != nil {
				return oops.Code("STATUS_NOT_READY").With("addr", addr).Wrap(ready)
			}
			return nil
		},
	}

	cmd.Flags().String("addr", "", "health endpoint address (host:port)")
	return cmd
}

// probe performs one health check and reports a non-2xx answer as an error.
func probe(ctx context.Context, client *http.Client, addr, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+path, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s answered %s", path, resp.Status)
	}
	return nil
}

func probeWord(err error) string {
	if err != nil {
		return "down"
	}
	return "ok"
}
