// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"sort"
	"strings"
	"sync"
)

// Group is a named, independently enable/disable-able bucket of commands.
type Group struct {
	ID      string
	Name    string
	Guarded bool

	mu       sync.RWMutex
	commands []*Command
}

// NewGroup creates a group. The id must be lowercase with no whitespace.
func NewGroup(id, name string, guarded bool) (*Group, error) {
	if id == "" {
		return nil, ErrInvalidSpec("group id must not be empty")
	}
	if id != strings.ToLower(id) || strings.ContainsAny(id, " \t\n") {
		return nil, ErrInvalidSpec("group id %q must be lowercase with no whitespace", id)
	}
	if name == "" {
		name = id
	}
	return &Group{ID: id, Name: name, Guarded: guarded}, nil
}

// Commands returns the commands currently attached to the group. The slice
// is a copy sorted by name.
func (g *Group) Commands() []*Command {
	g.mu.RLock()
	defer g.mu.RUnlock()

	out := make([]*Command, len(g.commands))
	copy(out, g.commands)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (g *Group) attach(c *Command) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.commands = append(g.commands, c)
}

func (g *Group) detach(c *Command) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, existing := range g.commands {
		if existing == c {
			g.commands = append(g.commands[:i], g.commands[i+1:]...)
			return
		}
	}
}
