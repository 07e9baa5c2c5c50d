// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func pingInfo() CommandInfo {
	return CommandInfo{
		Name:        "ping",
		Aliases:     []string{"pong"},
		Group:       "util",
		Description: "Checks the bot's latency",
		Run:         noopRun,
	}
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")

	cmd, err := reg.RegisterCommand(pingInfo())
	require.NoError(t, err)
	assert.Equal(t, "ping", cmd.Name)
	assert.Equal(t, "util", cmd.GroupID)
	assert.Same(t, cmd.Group(), reg.Groups()[0])

	got, err := reg.ResolveCommand("ping")
	require.NoError(t, err)
	assert.Same(t, cmd, got)

	got, err = reg.ResolveCommand("pong")
	require.NoError(t, err)
	assert.Same(t, cmd, got, "aliases resolve to the same command")

	_, err = reg.ResolveCommand("nonexistent")
	assert.Error(t, err)
}

func TestRegistry_UniquenessInvariants(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")

	_, err := reg.RegisterCommand(pingInfo())
	require.NoError(t, err)

	t.Run("duplicate name", func(t *testing.T) {
		_, err := reg.RegisterCommand(CommandInfo{Name: "ping", Group: "util", Run: noopRun})
		assert.Error(t, err)
	})
	t.Run("name collides with alias", func(t *testing.T) {
		_, err := reg.RegisterCommand(CommandInfo{Name: "pong", Group: "util", Run: noopRun})
		assert.Error(t, err)
	})
	t.Run("alias collides with name", func(t *testing.T) {
		_, err := reg.RegisterCommand(CommandInfo{Name: "latency", Aliases: []string{"ping"}, Group: "util", Run: noopRun})
		assert.Error(t, err)
	})
	t.Run("unregistered group", func(t *testing.T) {
		_, err := reg.RegisterCommand(CommandInfo{Name: "other", Group: "ghost", Run: noopRun})
		assert.Error(t, err)
	})
}

func TestRegistry_FindCommands(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")
	mustRegisterGroup(reg, "school")

	_, err := reg.RegisterCommand(CommandInfo{Name: "help", Group: "util", Run: noopRun})
	require.NoError(t, err)
	_, err = reg.RegisterCommand(CommandInfo{Name: "helper", Group: "school", Run: noopRun})
	require.NoError(t, err)
	_, err = reg.RegisterCommand(CommandInfo{Name: "secret", Group: "util", Hidden: true, Run: noopRun})
	require.NoError(t, err)

	t.Run("substring match", func(t *testing.T) {
		matches := reg.FindCommands("help", false, nil)
		require.Len(t, matches, 2)
		assert.Equal(t, "help", matches[0].Name)
		assert.Equal(t, "helper", matches[1].Name)
	})
	t.Run("exact matches name only", func(t *testing.T) {
		matches := reg.FindCommands("help", true, nil)
		require.Len(t, matches, 1)
		assert.Equal(t, "help", matches[0].Name)
	})
	t.Run("group qualifier", func(t *testing.T) {
		matches := reg.FindCommands("group:school", false, nil)
		require.Len(t, matches, 1)
		assert.Equal(t, "helper", matches[0].Name)
	})
	t.Run("hidden excluded from fuzzy search", func(t *testing.T) {
		matches := reg.FindCommands("secret", false, nil)
		assert.Empty(t, matches)

		matches = reg.FindCommands("secret", true, nil)
		assert.Len(t, matches, 1)
	})
	t.Run("idempotent", func(t *testing.T) {
		first := reg.FindCommands("help", true, nil)
		second := reg.FindCommands("help", true, nil)
		assert.Equal(t, first, second)
	})
}

func TestRegistry_FindGroups(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")
	mustRegisterGroup(reg, "school")

	assert.Len(t, reg.FindGroups("", false), 2)
	assert.Len(t, reg.FindGroups("sch", false), 1)

	matches := reg.FindGroups("util", true)
	require.Len(t, matches, 1)
	assert.Equal(t, "util", matches[0].ID)
}

func TestRegistry_Reregister(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")

	oldCmd, err := reg.RegisterCommand(pingInfo())
	require.NoError(t, err)

	info := pingInfo()
	info.Description = "updated"
	newCmd, err := reg.ReregisterCommand(info)
	require.NoError(t, err)
	assert.NotSame(t, oldCmd, newCmd)
	assert.Equal(t, "updated", newCmd.Description)

	got, err := reg.ResolveCommand("ping")
	require.NoError(t, err)
	assert.Same(t, newCmd, got)
}

func TestRegistry_ReregisterInvalidKeepsOriginal(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")

	oldCmd, err := reg.RegisterCommand(pingInfo())
	require.NoError(t, err)

	bad := pingInfo()
	bad.Run = nil
	_, err = reg.ReregisterCommand(bad)
	require.Error(t, err)

	got, err := reg.ResolveCommand("ping")
	require.NoError(t, err)
	assert.Same(t, oldCmd, got, "failed reregistration must leave the original in place")
}

func TestRegistry_Unregister(t *testing.T) {
	reg := NewRegistry()
	g := mustRegisterGroup(reg, "util")

	_, err := reg.RegisterCommand(pingInfo())
	require.NoError(t, err)
	require.NoError(t, reg.UnregisterCommand("ping"))

	_, err = reg.ResolveCommand("ping")
	assert.Error(t, err)
	_, err = reg.ResolveCommand("pong")
	assert.Error(t, err, "aliases are released with the command")
	assert.Empty(t, g.Commands())

	assert.Error(t, reg.UnregisterCommand("ping"))
}

func TestRegistry_GuardedCommandCannotBeDisabled(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")

	info := pingInfo()
	info.Guarded = true
	cmd, err := reg.RegisterCommand(info)
	require.NoError(t, err)

	err = cmd.SetEnabledIn(context.Background(), "guild-1", false)
	require.Error(t, err)
	assert.True(t, cmd.IsEnabledIn("guild-1"), "guarded command state must not change")

	// Enabling a guarded command is a no-op but not an error.
	assert.NoError(t, cmd.SetEnabledIn(context.Background(), "guild-1", true))
}

func TestRegistry_GuardedGroupCannotBeDisabled(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.RegisterGroup("core", "Core", true)
	require.NoError(t, err)

	err = reg.SetGroupEnabled(context.Background(), "core", "guild-1", false)
	require.Error(t, err)
	assert.True(t, reg.GroupEnabledIn("core", "guild-1"))
}

func TestRegistry_EnabledStateScoping(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")
	cmd, err := reg.RegisterCommand(pingInfo())
	require.NoError(t, err)

	assert.True(t, cmd.IsEnabledIn("guild-1"), "commands default to enabled")

	require.NoError(t, cmd.SetEnabledIn(context.Background(), "guild-1", false))
	assert.False(t, cmd.IsEnabledIn("guild-1"))
	assert.True(t, cmd.IsEnabledIn("guild-2"), "state is per scope")

	// Global disable applies to scopes without an override.
	require.NoError(t, cmd.SetEnabledIn(context.Background(), GlobalScope, false))
	assert.False(t, cmd.IsEnabledIn("guild-2"))

	// A scope override wins over the global state.
	require.NoError(t, cmd.SetEnabledIn(context.Background(), "guild-2", true))
	assert.True(t, cmd.IsEnabledIn("guild-2"))
}

func TestRegistry_GroupDisableDisablesMembers(t *testing.T) {
	reg := NewRegistry()
	mustRegisterGroup(reg, "util")
	cmd, err := reg.RegisterCommand(pingInfo())
	require.NoError(t, err)

	require.NoError(t, reg.SetGroupEnabled(context.Background(), "util", "guild-1", false))
	assert.False(t, cmd.IsEnabledIn("guild-1"))
	assert.True(t, reg.CommandEnabledIn("ping", "guild-1"), "the command's own state is untouched")
}

func TestRegistry_RegisterTypeConflict(t *testing.T) {
	reg := NewRegistry()
	err := reg.RegisterType(BooleanType{})
	assert.Error(t, err, "built-in types are pre-registered")
}

func TestRegistry_ThrottleReaperStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t)

	reg := NewRegistry()
	mustRegisterGroup(reg, "util")
	info := pingInfo()
	info.Throttling = &ThrottlingOptions{Usages: 1, Window: time.Minute}
	cmd, err := reg.RegisterCommand(info)
	require.NoError(t, err)

	reg.StartThrottleReaper(time.Millisecond)
	reg.StartThrottleReaper(time.Millisecond) // repeated start is a no-op

	cmd.Throttle("user-1")
	reg.Close()
}
