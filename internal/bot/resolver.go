// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package bot

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/oops"

	"github.com/classmate/classmate/internal/command"
)

// restClient is the slice of discordgo.Session the resolver uses when the
// state cache misses.
type restClient interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
}

// Resolver implements command.EntityResolver over the gateway state cache,
// with REST fallbacks for by-id lookups. Fuzzy searches only consult the
// cache; a member the gateway never delivered is not findable by name.
type Resolver struct {
	state *discordgo.State
	rest  restClient
}

// NewResolver builds a resolver over the session's state cache.
func NewResolver(state *discordgo.State, rest restClient) *Resolver {
	return &Resolver{state: state, rest: rest}
}

func (r *Resolver) ChannelByID(_ context.Context, _ string, id string) (*command.Entity, error) {
	channel, err := r.state.Channel(id)
	if errors.Is(err, discordgo.ErrStateNotFound) && r.rest != nil {
		channel, err = r.rest.Channel(id)
	}
	if err != nil {
		return nil, oops.Code("DISCORD_LOOKUP_FAILED").With("channel_id", id).Wrap(err)
	}
	return &command.Entity{ID: channel.ID, Name: channel.Name}, nil
}

func (r *Resolver) UserByID(_ context.Context, id string) (*command.Entity, error) {
	if r.rest != nil {
		user, err := r.rest.User(id)
		if err != nil {
			return nil, oops.Code("DISCORD_LOOKUP_FAILED").With("user_id", id).Wrap(err)
		}
		return &command.Entity{ID: user.ID, Name: user.Username}, nil
	}
	// No REST client; fall back to scanning cached members.
	for _, guild := range r.guilds() {
		if member, err := r.state.Member(guild.ID, id); err == nil {
			return &command.Entity{ID: member.User.ID, Name: member.User.Username}, nil
		}
	}
	return nil, oops.Code("DISCORD_LOOKUP_FAILED").With("user_id", id).Wrap(discordgo.ErrStateNotFound)
}

func (r *Resolver) MemberByID(_ context.Context, guildID, id string) (*command.Entity, error) {
	member, err := r.state.Member(guildID, id)
	if errors.Is(err, discordgo.ErrStateNotFound) && r.rest != nil {
		member, err = r.rest.GuildMember(guildID, id)
	}
	if err != nil {
		return nil, oops.Code("DISCORD_LOOKUP_FAILED").
			With("guild_id", guildID).
			With("user_id", id).
			Wrap(err)
	}
	return &command.Entity{ID: member.User.ID, Name: displayName(member)}, nil
}

func (r *Resolver) RoleByID(_ context.Context, guildID, id string) (*command.Entity, error) {
	role, err := r.state.Role(guildID, id)
	if err != nil {
		return nil, oops.Code("DISCORD_LOOKUP_FAILED").
			With("guild_id", guildID).
			With("role_id", id).
			Wrap(err)
	}
	return &command.Entity{ID: role.ID, Name: role.Name}, nil
}

func (r *Resolver) FindChannels(_ context.Context, guildID, query string) ([]command.Entity, error) {
	guild, err := r.state.Guild(guildID)
	if err != nil {
		return nil, nil
	}
	var found []command.Entity
	for _, channel := range guild.Channels {
		if channel.Type != discordgo.ChannelTypeGuildText {
			continue
		}
		if containsFold(channel.Name, query) {
			found = append(found, command.Entity{ID: channel.ID, Name: channel.Name})
		}
	}
	return found, nil
}

func (r *Resolver) FindUsers(_ context.Context, query string) ([]command.Entity, error) {
	var found []command.Entity
	seen := map[string]bool{}
	for _, guild := range r.guilds() {
		for _, member := range guild.Members {
			if seen[member.User.ID] || !containsFold(member.User.Username, query) {
				continue
			}
			seen[member.User.ID] = true
			found = append(found, command.Entity{ID: member.User.ID, Name: member.User.Username})
		}
	}
	return found, nil
}

func (r *Resolver) FindMembers(_ context.Context, guildID, query string) ([]command.Entity, error) {
	guild, err := r.state.Guild(guildID)
	if err != nil {
		return nil, nil
	}
	var found []command.Entity
	for _, member := range guild.Members {
		name := displayName(member)
		if containsFold(name, query) || containsFold(member.User.Username, query) {
			found = append(found, command.Entity{ID: member.User.ID, Name: name})
		}
	}
	return found, nil
}

func (r *Resolver) FindRoles(_ context.Context, guildID, query string) ([]command.Entity, error) {
	guild, err := r.state.Guild(guildID)
	if err != nil {
		return nil, nil
	}
	var found []command.Entity
	for _, role := range guild.Roles {
		if containsFold(role.Name, query) {
			found = append(found, command.Entity{ID: role.ID, Name: role.Name})
		}
	}
	return found, nil
}

func (r *Resolver) guilds() []*discordgo.Guild {
	r.state.RLock()
	defer r.state.RUnlock()
	guilds := make([]*discordgo.Guild, len(r.state.Guilds))
	copy(guilds, r.state.Guilds)
	return guilds
}

func displayName(member *discordgo.Member) string {
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.GlobalName != "" {
		return member.User.GlobalName
	}
	return member.User.Username
}

func containsFold(name, query string) bool {
	return strings.Contains(strings.ToLower(name), strings.ToLower(query))
}
