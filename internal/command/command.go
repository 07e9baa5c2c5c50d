// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"
)

// RunFunc is the entry point invoked once a command's arguments are ready.
// args is keyed by argument key; for a pattern-matched invocation it is nil
// and fromPattern is true (the capture groups are on the context).
type RunFunc func(ctx context.Context, cc *Context, args Args, fromPattern bool) error

// Args holds the coerced argument values of one invocation.
type Args map[string]any

// String returns the value under key as a string, or "".
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// Int returns the value under key as an int, or 0.
func (a Args) Int(key string) int {
	n, _ := a[key].(int)
	return n
}

// Bool returns the value under key as a bool, or false.
func (a Args) Bool(key string) bool {
	b, _ := a[key].(bool)
	return b
}

// ThrottlingOptions caps how often one user may run a command.
type ThrottlingOptions struct {
	Usages int
	Window time.Duration
}

// ArgsMode controls how the raw argument string is handed to Run when the
// command declares no argument specs.
type ArgsMode string

const (
	// ArgsSingle passes the whole argument string as one value.
	ArgsSingle ArgsMode = "single"
	// ArgsMultiple tokenizes the argument string.
	ArgsMultiple ArgsMode = "multiple"
)

// CommandInfo is the declarative command record consumed by the registry at
// registration time. Unknown or malformed combinations are rejected
// immediately, never at first use.
type CommandInfo struct {
	Name        string
	Aliases     []string
	Group       string
	Description string
	Details     string
	Format      string
	Examples    []string

	GuildOnly bool
	OwnerOnly bool
	NSFW      bool
	// Guarded commands can never be disabled.
	Guarded bool
	// Hidden commands are omitted from non-exact registry searches.
	Hidden bool
	// PatternsOnly disables normal prefix/argument parsing; the command
	// only reacts to its regex patterns.
	PatternsOnly bool

	ClientPermissions []string
	UserPermissions   []string

	Throttling *ThrottlingOptions

	Args []ArgumentSpec
	// ArgsPromptLimit caps cumulative prompts per obtain cycle; zero means
	// unlimited.
	ArgsPromptLimit int
	// ArgsMode applies when Args is empty; defaults to ArgsSingle.
	ArgsMode ArgsMode
	// ArgsCount caps tokenization in ArgsMultiple mode; zero means
	// unlimited.
	ArgsCount int
	// DisableSingleQuotes stops single quotes from grouping tokens.
	DisableSingleQuotes bool

	// Patterns trigger the command on a regex match anywhere in a message,
	// bypassing argument parsing.
	Patterns []*regexp.Regexp

	Run RunFunc
}

// Command is a constructed, registered command. All fields are immutable
// after registration except the throttle table; per-scope enabled state
// lives in the registry.
type Command struct {
	Name        string
	Aliases     []string
	GroupID     string
	Description string
	Details     string
	Format      string
	Examples    []string

	GuildOnly    bool
	OwnerOnly    bool
	NSFW         bool
	Guarded      bool
	Hidden       bool
	PatternsOnly bool

	ClientPermissions []string
	UserPermissions   []string

	Throttling *ThrottlingOptions
	Patterns   []*regexp.Regexp

	PromptLimit  int
	Mode         ArgsMode
	TokenCount   int
	SingleQuotes bool

	run       RunFunc
	collector *ArgumentCollector
	group     *Group
	registry  *Registry

	mu        sync.Mutex
	throttles map[string]*throttleEntry
	now       func() time.Time
}

// throttleEntry tracks one user's usage of one command within the rolling
// window.
type throttleEntry struct {
	start  time.Time
	usages int
}

var commandNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// newCommand validates a CommandInfo and builds the Command. The registry's
// argument types and awaiting set are needed to construct the collector.
func newCommand(info CommandInfo, types map[string]ArgumentType, awaiting *awaitingSet) (*Command, error) {
	if info.Name == "" {
		return nil, ErrInvalidSpec("command name must not be empty")
	}
	if !commandNamePattern.MatchString(info.Name) {
		return nil, ErrInvalidSpec("command name %q must be lowercase with no whitespace", info.Name)
	}
	for _, alias := range info.Aliases {
		if !commandNamePattern.MatchString(alias) {
			return nil, ErrInvalidSpec("alias %q of command %q must be lowercase with no whitespace", alias, info.Name)
		}
	}
	if info.Group == "" {
		return nil, ErrInvalidSpec("command %q must belong to a group", info.Name)
	}
	if info.Run == nil {
		return nil, ErrInvalidSpec("command %q has no run function", info.Name)
	}
	if info.PatternsOnly && len(info.Patterns) == 0 {
		return nil, ErrInvalidSpec("command %q is patterns-only but declares no patterns", info.Name)
	}
	if info.Throttling != nil {
		if info.Throttling.Usages < 1 {
			return nil, ErrInvalidSpec("command %q throttling usages must be at least 1", info.Name)
		}
		if info.Throttling.Window <= 0 {
			return nil, ErrInvalidSpec("command %q throttling window must be positive", info.Name)
		}
	}
	mode := info.ArgsMode
	if mode == "" {
		mode = ArgsSingle
	}
	if mode != ArgsSingle && mode != ArgsMultiple {
		return nil, ErrInvalidSpec("command %q has unknown args mode %q", info.Name, mode)
	}

	cmd := &Command{
		Name:              info.Name,
		Aliases:           lowercaseAll(info.Aliases),
		GroupID:           info.Group,
		Description:       info.Description,
		Details:           info.Details,
		Format:            info.Format,
		Examples:          info.Examples,
		GuildOnly:         info.GuildOnly,
		OwnerOnly:         info.OwnerOnly,
		NSFW:              info.NSFW,
		Guarded:           info.Guarded,
		Hidden:            info.Hidden,
		PatternsOnly:      info.PatternsOnly,
		ClientPermissions: info.ClientPermissions,
		UserPermissions:   info.UserPermissions,
		Throttling:        info.Throttling,
		Patterns:          info.Patterns,
		PromptLimit:       info.ArgsPromptLimit,
		Mode:              mode,
		TokenCount:        info.ArgsCount,
		SingleQuotes:      !info.DisableSingleQuotes,
		run:               info.Run,
		throttles:         make(map[string]*throttleEntry),
		now:               time.Now,
	}

	if len(info.Args) > 0 {
		args := make([]*Argument, len(info.Args))
		for i, spec := range info.Args {
			arg, err := newArgument(spec, types)
			if err != nil {
				return nil, err
			}
			args[i] = arg
		}
		collector, err := newArgumentCollector(args, awaiting)
		if err != nil {
			return nil, err
		}
		cmd.collector = collector
	}

	return cmd, nil
}

// Collector returns the command's argument collector, or nil when the
// command declares no arguments.
func (c *Command) Collector() *ArgumentCollector { return c.collector }

// Group returns the group the command belongs to.
func (c *Command) Group() *Group { return c.group }

// Run invokes the command body.
func (c *Command) Run(ctx context.Context, cc *Context, args Args, fromPattern bool) error {
	return c.run(ctx, cc, args, fromPattern)
}

// IsEnabledIn reports the command's effective enabled state in the scope,
// taking the group's state into account.
func (c *Command) IsEnabledIn(scope string) bool {
	if c.registry == nil {
		return true
	}
	if c.group != nil && !c.registry.GroupEnabledIn(c.GroupID, scope) {
		return false
	}
	return c.registry.CommandEnabledIn(c.Name, scope)
}

// SetEnabledIn changes the command's enabled state in the scope. Guarded
// commands reject disabling with no state change.
func (c *Command) SetEnabledIn(ctx context.Context, scope string, enabled bool) error {
	if c.Guarded && !enabled {
		return ErrGuarded("command", c.Name)
	}
	if c.registry == nil {
		return ErrInvalidSpec("command %q is not registered", c.Name)
	}
	return c.registry.setCommandEnabled(ctx, c.Name, scope, enabled)
}

// Throttle records one usage attempt by the user. When the attempt exceeds
// the configured allowance within the window it returns the remaining window
// and limited=true without consuming a usage. Owner exemption is applied by
// the dispatcher, not here.
func (c *Command) Throttle(userID string) (remaining time.Duration, limited bool) {
	if c.Throttling == nil {
		return 0, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	entry, ok := c.throttles[userID]
	if !ok || now.Sub(entry.start) >= c.Throttling.Window {
		c.throttles[userID] = &throttleEntry{start: now, usages: 1}
		return 0, false
	}
	if entry.usages >= c.Throttling.Usages {
		return entry.start.Add(c.Throttling.Window).Sub(now), true
	}
	entry.usages++
	return 0, false
}

// sweepThrottles drops entries whose window elapsed before the cutoff and
// returns the number of live entries left.
func (c *Command) sweepThrottles(cutoff time.Time) int {
	if c.Throttling == nil {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for userID, entry := range c.throttles {
		if entry.start.Add(c.Throttling.Window).Before(cutoff) {
			delete(c.throttles, userID)
		}
	}
	return len(c.throttles)
}

// Usage renders a prefixed invocation string for help text.
func (c *Command) Usage(prefix string) string {
	if c.Format == "" {
		return prefix + c.Name
	}
	return prefix + c.Name + " " + c.Format
}

func lowercaseAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
