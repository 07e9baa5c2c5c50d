// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the Classmate CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "classmate",
		Short: "Classmate - a Discord bot for the school portal",
		Long: `Classmate is a Discord bot that brings the school portal into chat:
homework overviews, the class leaderboard, and a fully interactive
command system with per-server prefixes and permissions.`,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewStatusCmd())

	return cmd
}
