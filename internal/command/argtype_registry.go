// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
)

// CommandRefType resolves a command reference against the registry.
type CommandRefType struct{}

func (CommandRefType) ID() string { return "command" }

func (CommandRefType) Validate(_ context.Context, cc *Context, _ *Argument, raw string) (bool, string, error) {
	matches := cc.Registry().FindCommands(raw, false, nil)
	switch {
	case len(matches) == 1:
		return true, "", nil
	case len(matches) == 0:
		return false, "", nil
	default:
		entities := make([]Entity, len(matches))
		for i, c := range matches {
			entities[i] = Entity{ID: c.Name, Name: c.Name}
		}
		return false, disambiguation("commands", entities, cc.matchesCeiling()), nil
	}
}

func (CommandRefType) Parse(_ context.Context, cc *Context, _ *Argument, raw string) (any, error) {
	matches := cc.Registry().FindCommands(raw, false, nil)
	if len(matches) != 1 {
		return nil, ErrInvalidSpec("command reference %q does not resolve to exactly one command", raw)
	}
	return matches[0], nil
}

func (CommandRefType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// GroupRefType resolves a group reference against the registry.
type GroupRefType struct{}

func (GroupRefType) ID() string { return "group" }

func (GroupRefType) Validate(_ context.Context, cc *Context, _ *Argument, raw string) (bool, string, error) {
	matches := cc.Registry().FindGroups(raw, false)
	switch {
	case len(matches) == 1:
		return true, "", nil
	case len(matches) == 0:
		return false, "", nil
	default:
		entities := make([]Entity, len(matches))
		for i, g := range matches {
			entities[i] = Entity{ID: g.ID, Name: g.Name}
		}
		return false, disambiguation("groups", entities, cc.matchesCeiling()), nil
	}
}

func (GroupRefType) Parse(_ context.Context, cc *Context, _ *Argument, raw string) (any, error) {
	matches := cc.Registry().FindGroups(raw, false)
	if len(matches) != 1 {
		return nil, ErrInvalidSpec("group reference %q does not resolve to exactly one group", raw)
	}
	return matches[0], nil
}

func (GroupRefType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// UnionType tries each member type in declaration order; the first that
// validates wins. Used for arguments such as command-or-group references.
type UnionType struct {
	id      string
	members []ArgumentType
}

// NewUnionType builds a union of previously registered types. The id is the
// member ids joined with "|".
func NewUnionType(members ...ArgumentType) (*UnionType, error) {
	if len(members) < 2 {
		return nil, ErrInvalidSpec("union type requires at least two member types")
	}
	id := members[0].ID()
	for _, m := range members[1:] {
		id += "|" + m.ID()
	}
	return &UnionType{id: id, members: members}, nil
}

func (t *UnionType) ID() string { return t.id }

func (t *UnionType) Validate(ctx context.Context, cc *Context, arg *Argument, raw string) (bool, string, error) {
	var firstHint string
	for _, m := range t.members {
		ok, hint, err := m.Validate(ctx, cc, arg, raw)
		if err != nil {
			return false, "", err
		}
		if ok {
			return true, "", nil
		}
		if firstHint == "" {
			firstHint = hint
		}
	}
	return false, firstHint, nil
}

func (t *UnionType) Parse(ctx context.Context, cc *Context, arg *Argument, raw string) (any, error) {
	for _, m := range t.members {
		ok, _, err := m.Validate(ctx, cc, arg, raw)
		if err != nil {
			return nil, err
		}
		if ok {
			return m.Parse(ctx, cc, arg, raw)
		}
	}
	return nil, ErrInvalidSpec("no member of %s accepts %q", t.id, raw)
}

func (t *UnionType) IsEmpty(arg *Argument, raw string) bool {
	for _, m := range t.members {
		if !m.IsEmpty(arg, raw) {
			return false
		}
	}
	return true
}
