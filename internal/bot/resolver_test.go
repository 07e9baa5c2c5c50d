// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package bot

import (
	"context"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmate/classmate/internal/command"
)

func testState(t *testing.T) *discordgo.State {
	t.Helper()
	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{ID: "guild-1", Name: "Classmates"}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{
		ID: "chan-1", GuildID: "guild-1", Name: "general", Type: discordgo.ChannelTypeGuildText,
	}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{
		ID: "chan-2", GuildID: "guild-1", Name: "homework-help", Type: discordgo.ChannelTypeGuildText,
	}))
	require.NoError(t, state.ChannelAdd(&discordgo.Channel{
		ID: "chan-3", GuildID: "guild-1", Name: "announcements", Type: discordgo.ChannelTypeGuildVoice,
	}))
	require.NoError(t, state.MemberAdd(&discordgo.Member{
		GuildID: "guild-1",
		User:    &discordgo.User{ID: "user-1", Username: "alice"},
		Nick:    "Class Rep",
	}))
	require.NoError(t, state.MemberAdd(&discordgo.Member{
		GuildID: "guild-1",
		User:    &discordgo.User{ID: "user-2", Username: "bob", GlobalName: "Bobby"},
	}))
	require.NoError(t, state.RoleAdd("guild-1", &discordgo.Role{ID: "role-1", Name: "Teacher"}))
	require.NoError(t, state.RoleAdd("guild-1", &discordgo.Role{ID: "role-2", Name: "Student"}))
	return state
}

func TestResolver_ChannelByID(t *testing.T) {
	r := NewResolver(testState(t), nil)

	entity, err := r.ChannelByID(context.Background(), "guild-1", "chan-1")
	require.NoError(t, err)
	assert.Equal(t, "chan-1", entity.ID)
	assert.Equal(t, "general", entity.Name)

	_, err = r.ChannelByID(context.Background(), "guild-1", "missing")
	assert.Error(t, err)
}

func TestResolver_MemberByID(t *testing.T) {
	r := NewResolver(testState(t), nil)

	entity, err := r.MemberByID(context.Background(), "guild-1", "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Class Rep", entity.Name)

	entity, err = r.MemberByID(context.Background(), "guild-1", "user-2")
	require.NoError(t, err)
	assert.Equal(t, "Bobby", entity.Name)
}

func TestResolver_RoleByID(t *testing.T) {
	r := NewResolver(testState(t), nil)

	entity, err := r.RoleByID(context.Background(), "guild-1", "role-1")
	require.NoError(t, err)
	assert.Equal(t, "Teacher", entity.Name)

	_, err = r.RoleByID(context.Background(), "guild-1", "missing")
	assert.Error(t, err)
}

func TestResolver_UserByIDFallsBackToMembers(t *testing.T) {
	r := NewResolver(testState(t), nil)

	entity, err := r.UserByID(context.Background(), "user-2")
	require.NoError(t, err)
	assert.Equal(t, "bob", entity.Name)

	_, err = r.UserByID(context.Background(), "nobody")
	assert.Error(t, err)
}

func TestResolver_FindChannels(t *testing.T) {
	r := NewResolver(testState(t), nil)

	found, err := r.FindChannels(context.Background(), "guild-1", "e")
	require.NoError(t, err)
	ids := entityIDs(found)
	// Voice channels are not command targets.
	assert.ElementsMatch(t, []string{"chan-1", "chan-2"}, ids)

	found, err = r.FindChannels(context.Background(), "guild-1", "homework")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "homework-help", found[0].Name)
}

func TestResolver_FindMembers(t *testing.T) {
	r := NewResolver(testState(t), nil)

	found, err := r.FindMembers(context.Background(), "guild-1", "rep")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "user-1", found[0].ID)

	// Username matches too, even when a nick is set.
	found, err = r.FindMembers(context.Background(), "guild-1", "alice")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "user-1", found[0].ID)
}

func TestResolver_FindUsers(t *testing.T) {
	r := NewResolver(testState(t), nil)

	found, err := r.FindUsers(context.Background(), "b")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-2"}, entityIDs(found))
}

func TestResolver_FindRoles(t *testing.T) {
	r := NewResolver(testState(t), nil)

	found, err := r.FindRoles(context.Background(), "guild-1", "teach")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "role-1", found[0].ID)
}

func TestResolver_FindInUnknownGuild(t *testing.T) {
	r := NewResolver(testState(t), nil)

	found, err := r.FindRoles(context.Background(), "guild-x", "teach")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func entityIDs(entities []command.Entity) []string {
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		ids = append(ids, e.ID)
	}
	return ids
}
