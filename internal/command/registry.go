// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultThrottleSweepInterval is how often the background reaper drops
// expired throttle entries.
const DefaultThrottleSweepInterval = time.Minute

// Registry owns the catalogue of commands, groups, and argument types, plus
// the per-scope enabled state. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command // by name
	aliases  map[string]string   // alias → command name
	groups   map[string]*Group
	types    map[string]ArgumentType
	scopes   map[string]*scopeState

	provider SettingProvider
	awaiting *awaitingSet

	matchesCeiling int

	stopChan  chan struct{}
	sweepOnce sync.Once
	wg        sync.WaitGroup
}

// scopeState holds the mutable per-scope configuration.
type scopeState struct {
	commands map[string]bool
	groups   map[string]bool
}

// RegistryOption configures a Registry during construction.
type RegistryOption func(*Registry)

// WithMatchesCeiling overrides the disambiguation candidate ceiling used by
// reference argument types.
func WithMatchesCeiling(n int) RegistryOption {
	return func(r *Registry) {
		if n > 0 {
			r.matchesCeiling = n
		}
	}
}

// NewRegistry creates a registry with the built-in argument types
// registered.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		commands:       make(map[string]*Command),
		aliases:        make(map[string]string),
		groups:         make(map[string]*Group),
		types:          make(map[string]ArgumentType),
		scopes:         make(map[string]*scopeState),
		awaiting:       newAwaitingSet(),
		matchesCeiling: DefaultMatchesCeiling,
		stopChan:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, t := range []ArgumentType{
		BooleanType{}, IntegerType{}, FloatType{}, StringType{},
		DurationType{}, ChannelType{}, UserType{}, MemberType{},
		RoleType{}, CommandRefType{}, GroupRefType{},
	} {
		r.types[t.ID()] = t
	}
	if union, err := NewUnionType(CommandRefType{}, GroupRefType{}); err == nil {
		r.types[union.ID()] = union
	}

	return r
}

// AttachProvider wires a setting provider. Enabled-state and prefix changes
// are persisted through it from then on. Provider.Init must already have
// run.
func (r *Registry) AttachProvider(p SettingProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.provider = p
}

// RegisterType adds an argument type. Re-registering an id is an error.
func (r *Registry) RegisterType(t ArgumentType) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.ID()]; exists {
		return ErrInvalidSpec("argument type %q is already registered", t.ID())
	}
	r.types[t.ID()] = t
	return nil
}

// RegisterGroup adds a command group.
func (r *Registry) RegisterGroup(id, name string, guarded bool) (*Group, error) {
	g, err := NewGroup(id, name, guarded)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.groups[g.ID]; exists {
		return nil, ErrInvalidSpec("group %q is already registered", g.ID)
	}
	r.groups[g.ID] = g

	slog.Debug("registered command group", "group", g.ID)
	return g, nil
}

// RegisterCommand validates and adds a command. Its group must already be
// registered, and the name and aliases must be unique across the registry.
func (r *Registry) RegisterCommand(info CommandInfo) (*Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerLocked(info)
}

func (r *Registry) registerLocked(info CommandInfo) (*Command, error) {
	cmd, err := newCommand(info, r.types, r.awaiting)
	if err != nil {
		return nil, err
	}

	if _, exists := r.commands[cmd.Name]; exists {
		return nil, ErrInvalidSpec("command %q is already registered", cmd.Name)
	}
	if owner, exists := r.aliases[cmd.Name]; exists {
		return nil, ErrInvalidSpec("command name %q collides with an alias of %q", cmd.Name, owner)
	}
	for _, alias := range cmd.Aliases {
		if _, exists := r.commands[alias]; exists {
			return nil, ErrInvalidSpec("alias %q of command %q collides with a command name", alias, cmd.Name)
		}
		if owner, exists := r.aliases[alias]; exists {
			return nil, ErrInvalidSpec("alias %q of command %q collides with an alias of %q", alias, cmd.Name, owner)
		}
	}
	group, exists := r.groups[cmd.GroupID]
	if !exists {
		return nil, ErrInvalidSpec("command %q references unregistered group %q", cmd.Name, cmd.GroupID)
	}

	cmd.group = group
	cmd.registry = r
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd.Name
	}
	group.attach(cmd)

	slog.Debug("registered command", "command", cmd.Name, "group", cmd.GroupID)
	return cmd, nil
}

// ReregisterCommand atomically replaces a registered command with a new
// declaration carrying the same name. Throttle state does not survive the
// swap; lookups never observe a gap.
func (r *Registry) ReregisterCommand(info CommandInfo) (*Command, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, exists := r.commands[info.Name]
	if !exists {
		return nil, ErrUnknownCommand(info.Name)
	}
	r.unregisterLocked(old)

	cmd, err := r.registerLocked(info)
	if err != nil {
		// Restore the previous registration so the registry never ends
		// up without the command.
		r.commands[old.Name] = old
		for _, alias := range old.Aliases {
			r.aliases[alias] = old.Name
		}
		old.group.attach(old)
		return nil, err
	}
	return cmd, nil
}

// UnregisterCommand removes a command by name.
func (r *Registry) UnregisterCommand(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cmd, exists := r.commands[name]
	if !exists {
		return ErrUnknownCommand(name)
	}
	r.unregisterLocked(cmd)
	return nil
}

func (r *Registry) unregisterLocked(cmd *Command) {
	delete(r.commands, cmd.Name)
	for _, alias := range cmd.Aliases {
		delete(r.aliases, alias)
	}
	if cmd.group != nil {
		cmd.group.detach(cmd)
	}
}

// Commands returns all registered commands sorted by name.
func (r *Registry) Commands() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Command, 0, len(r.commands))
	for _, c := range r.commands {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Groups returns all registered groups sorted by id.
func (r *Registry) Groups() []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Group, 0, len(r.groups))
	for _, g := range r.groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// FindCommands searches the catalogue. Exact mode matches name or alias
// only; otherwise names are matched by substring, with an optional "group:"
// qualifier restricting the search to one group. Hidden commands are
// excluded from non-exact searches. When msg is non-nil, results are
// filtered to commands usable in the message's scope.
func (r *Registry) FindCommands(query string, exact bool, msg *Message) []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	var matches []*Command

	if exact {
		if cmd := r.lookupLocked(query); cmd != nil {
			matches = []*Command{cmd}
		}
	} else {
		groupID := ""
		if rest, ok := strings.CutPrefix(query, "group:"); ok {
			parts := strings.SplitN(rest, " ", 2)
			groupID = parts[0]
			query = ""
			if len(parts) == 2 {
				query = strings.TrimSpace(parts[1])
			}
		}
		for _, cmd := range r.commands {
			if cmd.Hidden {
				continue
			}
			if groupID != "" && cmd.GroupID != groupID {
				continue
			}
			if query != "" && !strings.Contains(cmd.Name, query) {
				continue
			}
			matches = append(matches, cmd)
		}
		sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	}

	if msg == nil {
		return matches
	}
	scope := msg.Scope()
	filtered := matches[:0]
	for _, cmd := range matches {
		if cmd.GuildOnly && msg.IsDirect() {
			continue
		}
		if !r.commandUsableLocked(cmd, scope) {
			continue
		}
		filtered = append(filtered, cmd)
	}
	return filtered
}

// lookupLocked resolves an exact name or alias.
func (r *Registry) lookupLocked(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if canonical, ok := r.aliases[name]; ok {
		return r.commands[canonical]
	}
	return nil
}

// ResolveCommand resolves a query to exactly one command or errors.
func (r *Registry) ResolveCommand(query string) (*Command, error) {
	r.mu.RLock()
	cmd := r.lookupLocked(strings.ToLower(strings.TrimSpace(query)))
	r.mu.RUnlock()

	if cmd == nil {
		return nil, ErrUnknownCommand(query)
	}
	return cmd, nil
}

// FindGroups searches groups by id or name.
func (r *Registry) FindGroups(query string, exact bool) []*Group {
	r.mu.RLock()
	defer r.mu.RUnlock()

	query = strings.ToLower(strings.TrimSpace(query))
	var matches []*Group
	for _, g := range r.groups {
		if exact {
			if g.ID == query || strings.EqualFold(g.Name, query) {
				matches = append(matches, g)
			}
			continue
		}
		if query == "" || strings.Contains(g.ID, query) || strings.Contains(strings.ToLower(g.Name), query) {
			matches = append(matches, g)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches
}

// ResolveGroup resolves a query to exactly one group or errors.
func (r *Registry) ResolveGroup(query string) (*Group, error) {
	matches := r.FindGroups(query, true)
	if len(matches) != 1 {
		return nil, ErrInvalidSpec("group query %q does not resolve to exactly one group", query)
	}
	return matches[0], nil
}

// CommandEnabledIn reports a command's own enabled state in the scope,
// falling back to the global scope and then to enabled.
func (r *Registry) CommandEnabledIn(name, scope string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledLocked(scope, func(s *scopeState) (bool, bool) {
		v, ok := s.commands[name]
		return v, ok
	})
}

// GroupEnabledIn reports a group's enabled state in the scope.
func (r *Registry) GroupEnabledIn(id, scope string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabledLocked(scope, func(s *scopeState) (bool, bool) {
		v, ok := s.groups[id]
		return v, ok
	})
}

func (r *Registry) enabledLocked(scope string, get func(*scopeState) (bool, bool)) bool {
	scope = NormalizeScope(scope)
	if s, ok := r.scopes[scope]; ok {
		if v, ok := get(s); ok {
			return v
		}
	}
	if scope != GlobalScope {
		if s, ok := r.scopes[GlobalScope]; ok {
			if v, ok := get(s); ok {
				return v
			}
		}
	}
	return true
}

func (r *Registry) commandUsableLocked(cmd *Command, scope string) bool {
	if cmd.group != nil && !r.enabledLocked(scope, func(s *scopeState) (bool, bool) {
		v, ok := s.groups[cmd.GroupID]
		return v, ok
	}) {
		return false
	}
	return r.enabledLocked(scope, func(s *scopeState) (bool, bool) {
		v, ok := s.commands[cmd.Name]
		return v, ok
	})
}

// SetGroupEnabled changes a group's enabled state in the scope. Guarded
// groups reject disabling with no state change.
func (r *Registry) SetGroupEnabled(ctx context.Context, id, scope string, enabled bool) error {
	r.mu.Lock()
	g, exists := r.groups[id]
	if !exists {
		r.mu.Unlock()
		return ErrInvalidSpec("group %q is not registered", id)
	}
	if g.Guarded && !enabled {
		r.mu.Unlock()
		return ErrGuarded("group", id)
	}
	scope = NormalizeScope(scope)
	r.scopeLocked(scope).groups[id] = enabled
	provider := r.provider
	r.mu.Unlock()

	slog.Info("group enabled state changed", "group", id, "scope", scope, "enabled", enabled)
	if provider != nil {
		return provider.Set(ctx, scope, GroupSettingKey(id), enabled)
	}
	return nil
}

func (r *Registry) setCommandEnabled(ctx context.Context, name, scope string, enabled bool) error {
	r.mu.Lock()
	scope = NormalizeScope(scope)
	r.scopeLocked(scope).commands[name] = enabled
	provider := r.provider
	r.mu.Unlock()

	slog.Info("command enabled state changed", "command", name, "scope", scope, "enabled", enabled)
	if provider != nil {
		return provider.Set(ctx, scope, CommandSettingKey(name), enabled)
	}
	return nil
}

// HydrateScope applies persisted enabled state for a scope from the
// provider. Called by the dispatcher once per newly-seen scope.
func (r *Registry) HydrateScope(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.provider == nil {
		return
	}
	scope = NormalizeScope(scope)
	state := r.scopeLocked(scope)
	for name := range r.commands {
		if v, ok := r.provider.Get(scope, CommandSettingKey(name), nil).(bool); ok {
			state.commands[name] = v
		}
	}
	for id := range r.groups {
		if v, ok := r.provider.Get(scope, GroupSettingKey(id), nil).(bool); ok {
			state.groups[id] = v
		}
	}
}

// ClearScope drops all in-memory state for a scope. Persisted settings are
// cleared through the provider by the caller.
func (r *Registry) ClearScope(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.scopes, NormalizeScope(scope))
}

func (r *Registry) scopeLocked(scope string) *scopeState {
	s, ok := r.scopes[scope]
	if !ok {
		s = &scopeState{
			commands: make(map[string]bool),
			groups:   make(map[string]bool),
		}
		r.scopes[scope] = s
	}
	return s
}

// MatchesCeiling returns the configured disambiguation ceiling.
func (r *Registry) MatchesCeiling() int { return r.matchesCeiling }

// StartThrottleReaper launches the background goroutine that expires
// throttle entries. Call Close to stop it.
func (r *Registry) StartThrottleReaper(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultThrottleSweepInterval
	}
	r.sweepOnce.Do(func() {
		r.wg.Add(1)
		go r.sweepLoop(interval)
	})
}

func (r *Registry) sweepLoop(interval time.Duration) {
	defer r.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.SweepThrottles()
		}
	}
}

// SweepThrottles drops expired throttle entries across all commands and
// updates the live-entry gauge. Runs automatically from the reaper; exposed
// for tests and manual sweeps.
func (r *Registry) SweepThrottles() {
	cutoff := time.Now()
	live := 0
	for _, cmd := range r.Commands() {
		live += cmd.sweepThrottles(cutoff)
	}
	throttleEntries.Set(float64(live))
}

// Close stops the throttle reaper, blocking until it exits.
func (r *Registry) Close() {
	close(r.stopChan)
	r.wg.Wait()
}

// awaitingSetRef exposes the awaiting set to the dispatcher.
func (r *Registry) awaitingSetRef() *awaitingSet { return r.awaiting }
