// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package settings

import (
	"context"
	"sync"

	"github.com/classmate/classmate/internal/command"
)

// MemoryProvider implements command.SettingProvider entirely in memory.
// Nothing survives a restart; it backs development setups and tests where no
// database is configured.
type MemoryProvider struct {
	mu     sync.RWMutex
	scopes map[string]map[string]any
}

// NewMemoryProvider creates an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{scopes: make(map[string]map[string]any)}
}

// Init is a no-op; there is nothing to load.
func (p *MemoryProvider) Init(context.Context) error { return nil }

// Get returns the value under key in the scope, or def.
func (p *MemoryProvider) Get(scope, key string, def any) any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if values, ok := p.scopes[p.ScopeID(scope)]; ok {
		if v, ok := values[key]; ok {
			return v
		}
	}
	return def
}

// Set stores a value in the scope.
func (p *MemoryProvider) Set(_ context.Context, scope, key string, value any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	scope = p.ScopeID(scope)
	if p.scopes[scope] == nil {
		p.scopes[scope] = make(map[string]any)
	}
	p.scopes[scope][key] = value
	return nil
}

// Create initializes a scope with defaults unless it already exists.
func (p *MemoryProvider) Create(_ context.Context, scope string, defaults map[string]any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	scope = p.ScopeID(scope)
	if _, exists := p.scopes[scope]; exists {
		return nil
	}
	values := make(map[string]any, len(defaults))
	for k, v := range defaults {
		values[k] = v
	}
	p.scopes[scope] = values
	return nil
}

// Clear removes all settings for a scope.
func (p *MemoryProvider) Clear(_ context.Context, scope string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.scopes, p.ScopeID(scope))
	return nil
}

// ScopeID normalizes a scope reference.
func (p *MemoryProvider) ScopeID(scope string) string {
	return command.NormalizeScope(scope)
}

// Close is a no-op; the provider holds no external resources.
func (p *MemoryProvider) Close() {}
