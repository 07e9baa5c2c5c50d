// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

// Package command provides the command registry, argument collection, and
// dispatch system.
package command

import (
	"context"
	"time"
)

// GlobalScope is the sentinel scope identifier for settings that are not
// bound to a specific guild.
const GlobalScope = "global"

// Message is a transport-neutral inbound chat message. The bot gateway
// converts platform events into this shape before handing them to the
// dispatcher.
type Message struct {
	ID        string
	AuthorID  string
	AuthorBot bool
	ChannelID string
	GuildID   string // empty for direct messages
	// GuildUnavailable marks a message from a guild in an outage; such
	// messages are dropped rather than dispatched.
	GuildUnavailable bool
	NSFW             bool // channel is marked age-restricted
	Content          string
	CreatedAt        time.Time
	EditedAt         time.Time // zero unless the message is an edit
}

// IsDirect reports whether the message was sent outside any guild.
func (m *Message) IsDirect() bool {
	return m.GuildID == ""
}

// IsEdit reports whether the message is an edit of an earlier message.
func (m *Message) IsEdit() bool {
	return !m.EditedAt.IsZero()
}

// Scope returns the settings scope the message belongs to.
func (m *Message) Scope() string {
	return NormalizeScope(m.GuildID)
}

// Responder sends and edits outbound messages. Implementations split content
// that exceeds the platform limit and return one handle per sent message.
type Responder interface {
	Send(ctx context.Context, channelID, content string) ([]string, error)
	SendDirect(ctx context.Context, userID, content string) ([]string, error)
	Edit(ctx context.Context, channelID, messageID, content string) error
}

// TypingNotifier is an optional Responder capability. When present, a typing
// indicator is shown in the channel while a prompt waits for its reply.
type TypingNotifier interface {
	Typing(ctx context.Context, channelID string) error
}

// Entity is a named platform object (channel, user, member, role) returned
// by an EntityResolver.
type Entity struct {
	ID   string
	Name string
}

// EntityResolver looks up platform entities for the reference argument
// types. Lookups may hit the network; implementations must honor the
// context.
type EntityResolver interface {
	ChannelByID(ctx context.Context, guildID, id string) (*Entity, error)
	UserByID(ctx context.Context, id string) (*Entity, error)
	MemberByID(ctx context.Context, guildID, id string) (*Entity, error)
	RoleByID(ctx context.Context, guildID, id string) (*Entity, error)

	// Find* return all entities whose name contains the query,
	// case-insensitively. Exact-match narrowing is done by the caller.
	FindChannels(ctx context.Context, guildID, query string) ([]Entity, error)
	FindUsers(ctx context.Context, query string) ([]Entity, error)
	FindMembers(ctx context.Context, guildID, query string) ([]Entity, error)
	FindRoles(ctx context.Context, guildID, query string) ([]Entity, error)
}

// PermissionChecker evaluates platform-level permissions. Permission names
// are transport-neutral strings such as "manage-messages"; the gateway maps
// them onto platform flags.
type PermissionChecker interface {
	// MissingUserPermissions returns the subset of perms the user lacks in
	// the channel.
	MissingUserPermissions(ctx context.Context, channelID, userID string, perms []string) ([]string, error)
	// MissingClientPermissions returns the subset of perms the bot itself
	// lacks in the channel.
	MissingClientPermissions(ctx context.Context, channelID string, perms []string) ([]string, error)
}

// SettingProvider persists per-scope configuration: the command prefix and
// the enabled state of commands and groups. The core functions with built-in
// defaults when no provider is attached.
//
// Reserved keys: "commandPrefix", "command-<name>", "group-<id>".
type SettingProvider interface {
	// Init loads persisted state. It is called once before the provider is
	// attached to a dispatcher.
	Init(ctx context.Context) error
	// Get returns the value stored under key in the scope, or def when the
	// key is absent. It must not block; providers serve reads from memory.
	Get(scope, key string, def any) any
	Set(ctx context.Context, scope, key string, value any) error
	// Create initializes a scope with the given defaults if it does not
	// already exist.
	Create(ctx context.Context, scope string, defaults map[string]any) error
	// Clear removes all settings stored for the scope.
	Clear(ctx context.Context, scope string) error
	// ScopeID normalizes a scope reference; an empty string maps to
	// GlobalScope.
	ScopeID(scope string) string
}

// Reserved setting keys consumed by the dispatcher and registry.
const (
	SettingPrefix = "commandPrefix"

	settingCommandPrefix = "command-"
	settingGroupPrefix   = "group-"
)

// CommandSettingKey returns the reserved key holding a command's enabled
// state.
func CommandSettingKey(name string) string {
	return settingCommandPrefix + name
}

// GroupSettingKey returns the reserved key holding a group's enabled state.
func GroupSettingKey(id string) string {
	return settingGroupPrefix + id
}

// NormalizeScope maps the empty scope to the global sentinel.
func NormalizeScope(scope string) string {
	if scope == "" {
		return GlobalScope
	}
	return scope
}
