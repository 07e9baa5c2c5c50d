// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

// Package commands holds the bot's built-in command set: the utility
// commands every deployment gets and the school commands backed by MAPI.
package commands

import (
	"context"

	"github.com/samber/oops"

	"github.com/classmate/classmate/internal/command"
	"github.com/classmate/classmate/internal/mapi"
)

// SchoolAPI is the slice of the MAPI client the school commands use.
type SchoolAPI interface {
	Login(ctx context.Context, username, password string) (mapi.Token, error)
	HomeworkCounts(ctx context.Context, token mapi.Token) ([6]int, error)
	Leaderboard(ctx context.Context, token mapi.Token) ([]mapi.Entry, error)
}

// Deps carries everything the command bodies need.
type Deps struct {
	Dispatcher *command.Dispatcher
	// Perms is optional; without it the admin-only commands fall back to
	// owner-only.
	Perms command.PermissionChecker
	// DefaultPrefix is restored when an admin runs `prefix default`.
	DefaultPrefix string

	API      SchoolAPI
	Sessions *SessionStore
}

// RegisterAll registers the built-in groups and commands.
func RegisterAll(registry *command.Registry, deps Deps) error {
	if _, err := registry.RegisterGroup("util", "Utility", true); err != nil {
		return err
	}
	infos := []command.CommandInfo{
		pingInfo(),
		helpInfo(deps),
		prefixInfo(deps),
		enableInfo(deps, true),
		enableInfo(deps, false),
		groupsInfo(deps),
	}

	// The school commands need a portal client; deployments without one
	// still get the utility set.
	if deps.API != nil {
		if _, err := registry.RegisterGroup("school", "School", false); err != nil {
			return err
		}
		infos = append(infos,
			loginInfo(deps),
			logoutInfo(deps),
			homeworkInfo(deps),
			leaderboardInfo(deps),
		)
	}
	for _, info := range infos {
		if _, err := registry.RegisterCommand(info); err != nil {
			return oops.With("command", info.Name).Wrap(err)
		}
	}
	return nil
}

// isAuthorized reports whether the invoking user may change scope settings:
// bot owners always, guild members holding the administrator permission
// otherwise.
func isAuthorized(ctx context.Context, cc *command.Context, deps Deps) bool {
	if deps.Dispatcher != nil && deps.Dispatcher.IsOwner(cc.Message.AuthorID) {
		return true
	}
	if cc.Message.IsDirect() || deps.Perms == nil {
		return false
	}
	missing, err := deps.Perms.MissingUserPermissions(ctx, cc.Message.ChannelID, cc.Message.AuthorID, []string{"administrator"})
	return err == nil && len(missing) == 0
}

func hasCode(err error, code string) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == code
}
