// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePermSession struct {
	grants map[string]int64 // userID -> bits
	err    error
}

func (f *fakePermSession) UserChannelPermissions(userID, _ string, _ ...discordgo.RequestOption) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.grants[userID], nil
}

func TestMissingFromBits(t *testing.T) {
	tests := []struct {
		name    string
		granted int64
		perms   []string
		want    []string
	}{
		{
			name:    "all granted",
			granted: discordgo.PermissionManageMessages | discordgo.PermissionKickMembers,
			perms:   []string{"manage-messages", "kick-members"},
			want:    nil,
		},
		{
			name:    "some missing",
			granted: discordgo.PermissionManageMessages,
			perms:   []string{"manage-messages", "ban-members", "kick-members"},
			want:    []string{"ban-members", "kick-members"},
		},
		{
			name:    "administrator implies everything",
			granted: discordgo.PermissionAdministrator,
			perms:   []string{"manage-guild", "ban-members"},
			want:    nil,
		},
		{
			name:    "unknown name reported missing",
			granted: discordgo.PermissionAdministrator >> 1,
			perms:   []string{"teleport-members"},
			want:    []string{"teleport-members"},
		},
		{
			name:    "no perms requested",
			granted: 0,
			perms:   nil,
			want:    nil,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, missingFromBits(tc.granted, tc.perms))
		})
	}
}

func TestKnownPermission(t *testing.T) {
	assert.True(t, KnownPermission("manage-messages"))
	assert.True(t, KnownPermission("administrator"))
	assert.False(t, KnownPermission("manage_messages"))
	assert.False(t, KnownPermission(""))
}

func TestPermissionChecker_User(t *testing.T) {
	session := &fakePermSession{grants: map[string]int64{
		"user-1": discordgo.PermissionManageMessages,
	}}
	checker := NewPermissionChecker(session, "bot-1")

	missing, err := checker.MissingUserPermissions(context.Background(), "chan-1", "user-1", []string{"manage-messages", "manage-guild"})
	require.NoError(t, err)
	assert.Equal(t, []string{"manage-guild"}, missing)
}

func TestPermissionChecker_EmptyPermsSkipsLookup(t *testing.T) {
	session := &fakePermSession{err: errors.New("should not be called")}
	checker := NewPermissionChecker(session, "bot-1")

	missing, err := checker.MissingUserPermissions(context.Background(), "chan-1", "user-1", nil)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestPermissionChecker_ClientUsesOwnID(t *testing.T) {
	session := &fakePermSession{grants: map[string]int64{
		"bot-1": discordgo.PermissionSendMessages | discordgo.PermissionEmbedLinks,
	}}
	checker := NewPermissionChecker(session, "bot-1")

	missing, err := checker.MissingClientPermissions(context.Background(), "chan-1", []string{"send-messages", "embed-links"})
	require.NoError(t, err)
	assert.Empty(t, missing)

	missing, err = checker.MissingClientPermissions(context.Background(), "chan-1", []string{"manage-messages"})
	require.NoError(t, err)
	assert.Equal(t, []string{"manage-messages"}, missing)
}

func TestPermissionChecker_LookupError(t *testing.T) {
	session := &fakePermSession{err: errors.New("unknown channel")}
	checker := NewPermissionChecker(session, "bot-1")

	_, err := checker.MissingUserPermissions(context.Background(), "chan-1", "user-1", []string{"manage-messages"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "unknown channel")
}
