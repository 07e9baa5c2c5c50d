// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package bot

import (
	"context"
	"sort"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/oops"
)

// permissionBits maps the engine's transport-neutral permission names onto
// Discord permission flags.
var permissionBits = map[string]int64{
	"administrator":        discordgo.PermissionAdministrator,
	"manage-guild":         discordgo.PermissionManageGuild,
	"manage-channels":      discordgo.PermissionManageChannels,
	"manage-messages":      discordgo.PermissionManageMessages,
	"manage-roles":         discordgo.PermissionManageRoles,
	"manage-nicknames":     discordgo.PermissionManageNicknames,
	"kick-members":         discordgo.PermissionKickMembers,
	"ban-members":          discordgo.PermissionBanMembers,
	"send-messages":        discordgo.PermissionSendMessages,
	"embed-links":          discordgo.PermissionEmbedLinks,
	"attach-files":         discordgo.PermissionAttachFiles,
	"add-reactions":        discordgo.PermissionAddReactions,
	"read-message-history": discordgo.PermissionReadMessageHistory,
	"mention-everyone":     discordgo.PermissionMentionEveryone,
	"view-channel":         discordgo.PermissionViewChannel,
	"mute-members":         discordgo.PermissionVoiceMuteMembers,
	"deafen-members":       discordgo.PermissionVoiceDeafenMembers,
	"move-members":         discordgo.PermissionVoiceMoveMembers,
}

// KnownPermission reports whether name maps to a Discord permission flag.
func KnownPermission(name string) bool {
	_, ok := permissionBits[name]
	return ok
}

// missingFromBits returns the perms not covered by the granted bitmask.
// Administrator implies everything. Unknown names are always reported
// missing so misconfigured commands surface instead of silently passing.
func missingFromBits(granted int64, perms []string) []string {
	if granted&discordgo.PermissionAdministrator != 0 {
		return nil
	}
	var missing []string
	for _, name := range perms {
		bit, ok := permissionBits[name]
		if !ok || granted&bit == 0 {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// permissionSession is the slice of discordgo.Session the checker needs.
type permissionSession interface {
	UserChannelPermissions(userID, channelID string, fetchOptions ...discordgo.RequestOption) (int64, error)
}

// PermissionChecker evaluates channel permissions through the session's
// state cache, falling back to the REST API when the cache misses.
type PermissionChecker struct {
	session  permissionSession
	clientID string
}

// NewPermissionChecker builds a checker for the bot identified by clientID.
func NewPermissionChecker(session permissionSession, clientID string) *PermissionChecker {
	return &PermissionChecker{session: session, clientID: clientID}
}

func (p *PermissionChecker) MissingUserPermissions(_ context.Context, channelID, userID string, perms []string) ([]string, error) {
	if len(perms) == 0 {
		return nil, nil
	}
	granted, err := p.session.UserChannelPermissions(userID, channelID)
	if err != nil {
		return nil, oops.Code("DISCORD_PERMISSIONS_FAILED").
			With("channel_id", channelID).
			With("user_id", userID).
			Wrap(err)
	}
	return missingFromBits(granted, perms), nil
}

func (p *PermissionChecker) MissingClientPermissions(ctx context.Context, channelID string, perms []string) ([]string, error) {
	return p.MissingUserPermissions(ctx, channelID, p.clientID, perms)
}
