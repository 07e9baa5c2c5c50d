// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"regexp"
)

// Mention and raw-id patterns for the platform reference syntaxes.
var (
	channelMention = regexp.MustCompile(`^<#(\d+)>$`)
	userMention    = regexp.MustCompile(`^<@!?(\d+)>$`)
	roleMention    = regexp.MustCompile(`^<@&(\d+)>$`)
	rawID          = regexp.MustCompile(`^\d+$`)
)

// referenceLookup resolves a raw token to a single entity: mention and raw-id
// forms resolve directly; anything else goes through fuzzy-then-exact name
// matching. A nil entity with an empty hint means "no match"; a non-empty
// hint carries the disambiguation message.
func referenceLookup(
	ctx context.Context,
	raw string,
	kind string,
	ceiling int,
	mention *regexp.Regexp,
	byID func(context.Context, string) (*Entity, error),
	find func(context.Context, string) ([]Entity, error),
) (*Entity, string, error) {
	if m := mention.FindStringSubmatch(raw); m != nil {
		e, err := byID(ctx, m[1])
		return e, "", err
	}
	if rawID.MatchString(raw) {
		e, err := byID(ctx, raw)
		return e, "", err
	}

	candidates, err := find(ctx, raw)
	if err != nil {
		return nil, "", err
	}
	switch len(candidates) {
	case 0:
		return nil, "", nil
	case 1:
		return &candidates[0], "", nil
	}

	exact := exactMatches(candidates, raw)
	if len(exact) == 1 {
		return &exact[0], "", nil
	}
	if len(exact) > 1 {
		return nil, disambiguation(kind, exact, ceiling), nil
	}
	return nil, disambiguation(kind, candidates, ceiling), nil
}

// ChannelType resolves a channel reference by mention, id, or name.
type ChannelType struct{}

func (ChannelType) ID() string { return "channel" }

func (t ChannelType) lookup(ctx context.Context, cc *Context, raw string) (*Entity, string, error) {
	resolver := cc.Resolver()
	guildID := cc.Message.GuildID
	return referenceLookup(ctx, raw, "channels", cc.matchesCeiling(), channelMention,
		func(ctx context.Context, id string) (*Entity, error) {
			return resolver.ChannelByID(ctx, guildID, id)
		},
		func(ctx context.Context, q string) ([]Entity, error) {
			return resolver.FindChannels(ctx, guildID, q)
		})
}

func (t ChannelType) Validate(ctx context.Context, cc *Context, _ *Argument, raw string) (bool, string, error) {
	e, hint, err := t.lookup(ctx, cc, raw)
	if err != nil {
		return false, "", err
	}
	return e != nil, hint, nil
}

func (t ChannelType) Parse(ctx context.Context, cc *Context, _ *Argument, raw string) (any, error) {
	e, _, err := t.lookup(ctx, cc, raw)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrInvalidSpec("no channel matches %q", raw)
	}
	return e, nil
}

func (ChannelType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// UserType resolves a user reference by mention, id, or name.
type UserType struct{}

func (UserType) ID() string { return "user" }

func (t UserType) lookup(ctx context.Context, cc *Context, raw string) (*Entity, string, error) {
	resolver := cc.Resolver()
	return referenceLookup(ctx, raw, "users", cc.matchesCeiling(), userMention,
		resolver.UserByID,
		resolver.FindUsers)
}

func (t UserType) Validate(ctx context.Context, cc *Context, _ *Argument, raw string) (bool, string, error) {
	e, hint, err := t.lookup(ctx, cc, raw)
	if err != nil {
		return false, "", err
	}
	return e != nil, hint, nil
}

func (t UserType) Parse(ctx context.Context, cc *Context, _ *Argument, raw string) (any, error) {
	e, _, err := t.lookup(ctx, cc, raw)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrInvalidSpec("no user matches %q", raw)
	}
	return e, nil
}

func (UserType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// MemberType resolves a guild member reference by mention, id, or name.
type MemberType struct{}

func (MemberType) ID() string { return "member" }

func (t MemberType) lookup(ctx context.Context, cc *Context, raw string) (*Entity, string, error) {
	resolver := cc.Resolver()
	guildID := cc.Message.GuildID
	return referenceLookup(ctx, raw, "members", cc.matchesCeiling(), userMention,
		func(ctx context.Context, id string) (*Entity, error) {
			return resolver.MemberByID(ctx, guildID, id)
		},
		func(ctx context.Context, q string) ([]Entity, error) {
			return resolver.FindMembers(ctx, guildID, q)
		})
}

func (t MemberType) Validate(ctx context.Context, cc *Context, _ *Argument, raw string) (bool, string, error) {
	e, hint, err := t.lookup(ctx, cc, raw)
	if err != nil {
		return false, "", err
	}
	return e != nil, hint, nil
}

func (t MemberType) Parse(ctx context.Context, cc *Context, _ *Argument, raw string) (any, error) {
	e, _, err := t.lookup(ctx, cc, raw)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrInvalidSpec("no member matches %q", raw)
	}
	return e, nil
}

func (MemberType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// RoleType resolves a role reference by mention, id, or name.
type RoleType struct{}

func (RoleType) ID() string { return "role" }

func (t RoleType) lookup(ctx context.Context, cc *Context, raw string) (*Entity, string, error) {
	resolver := cc.Resolver()
	guildID := cc.Message.GuildID
	return referenceLookup(ctx, raw, "roles", cc.matchesCeiling(), roleMention,
		func(ctx context.Context, id string) (*Entity, error) {
			return resolver.RoleByID(ctx, guildID, id)
		},
		func(ctx context.Context, q string) ([]Entity, error) {
			return resolver.FindRoles(ctx, guildID, q)
		})
}

func (t RoleType) Validate(ctx context.Context, cc *Context, _ *Argument, raw string) (bool, string, error) {
	e, hint, err := t.lookup(ctx, cc, raw)
	if err != nil {
		return false, "", err
	}
	return e != nil, hint, nil
}

func (t RoleType) Parse(ctx context.Context, cc *Context, _ *Argument, raw string) (any, error) {
	e, _, err := t.lookup(ctx, cc, raw)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrInvalidSpec("no role matches %q", raw)
	}
	return e, nil
}

func (RoleType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }
