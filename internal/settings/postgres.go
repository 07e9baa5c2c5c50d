// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

// Package settings persists per-scope bot configuration: command prefixes
// and the enabled state of commands and groups.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/classmate/classmate/internal/command"
)

// poolIface abstracts query execution so tests can substitute a pgxmock pool.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresProvider implements command.SettingProvider on PostgreSQL. All
// settings are served from an in-memory cache loaded by Init; writes go
// through to the database and then update the cache.
type PostgresProvider struct {
	pool poolIface

	mu     sync.RWMutex
	scopes map[string]map[string]any
}

// NewPostgresProvider connects a provider to the database.
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("SETTINGS_CONNECT_FAILED").Wrap(err)
	}
	return NewPostgresProviderFromPool(pool), nil
}

// NewPostgresProviderFromPool wraps an existing pool.
func NewPostgresProviderFromPool(pool poolIface) *PostgresProvider {
	return &PostgresProvider{
		pool:   pool,
		scopes: make(map[string]map[string]any),
	}
}

// Init loads every scope's settings into the cache. The read is retried with
// backoff so a bot starting alongside its database does not give up before
// the database is ready.
func (p *PostgresProvider) Init(ctx context.Context) error {
	backoff := retry.WithMaxRetries(4, retry.NewFibonacci(500*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		scopes, err := p.loadAll(ctx)
		if err != nil {
			slog.Warn("settings load failed, retrying", "error", err)
			return retry.RetryableError(err)
		}

		p.mu.Lock()
		p.scopes = scopes
		p.mu.Unlock()
		slog.Info("settings loaded", "scopes", len(scopes))
		return nil
	})
}

func (p *PostgresProvider) loadAll(ctx context.Context) (map[string]map[string]any, error) {
	rows, err := p.pool.Query(ctx, `SELECT scope, settings FROM scope_settings`)
	if err != nil {
		return nil, oops.Code("SETTINGS_LOAD_FAILED").Wrap(err)
	}
	defer rows.Close()

	scopes := make(map[string]map[string]any)
	for rows.Next() {
		var scope string
		var raw []byte
		if err := rows.Scan(&scope, &raw); err != nil {
			return nil, oops.Code("SETTINGS_LOAD_FAILED").With("operation", "scan settings row").Wrap(err)
		}
		values := make(map[string]any)
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, oops.Code("SETTINGS_CORRUPT").With("scope", scope).Wrap(err)
		}
		scopes[scope] = values
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("SETTINGS_LOAD_FAILED").With("operation", "iterate settings rows").Wrap(err)
	}
	return scopes, nil
}

// Get returns the cached value under key in the scope, or def.
func (p *PostgresProvider) Get(scope, key string, def any) any {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if values, ok := p.scopes[p.ScopeID(scope)]; ok {
		if v, ok := values[key]; ok {
			return v
		}
	}
	return def
}

// Set stores a value and persists the scope's settings document.
func (p *PostgresProvider) Set(ctx context.Context, scope, key string, value any) error {
	scope = p.ScopeID(scope)

	p.mu.Lock()
	values := make(map[string]any, len(p.scopes[scope])+1)
	for k, v := range p.scopes[scope] {
		values[k] = v
	}
	values[key] = value
	p.mu.Unlock()

	if err := p.upsert(ctx, scope, values); err != nil {
		return err
	}

	p.mu.Lock()
	p.scopes[scope] = values
	p.mu.Unlock()
	return nil
}

func (p *PostgresProvider) upsert(ctx context.Context, scope string, values map[string]any) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return oops.Code("SETTINGS_ENCODE_FAILED").With("scope", scope).Wrap(err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO scope_settings (scope, settings, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (scope) DO UPDATE SET settings = EXCLUDED.settings, updated_at = now()`,
		scope, raw)
	if err != nil {
		return oops.Code("SETTINGS_WRITE_FAILED").With("scope", scope).Wrap(err)
	}
	return nil
}

// Create initializes a scope with defaults unless it already exists. A
// concurrent insert of the same scope is not an error.
func (p *PostgresProvider) Create(ctx context.Context, scope string, defaults map[string]any) error {
	scope = p.ScopeID(scope)

	p.mu.RLock()
	_, exists := p.scopes[scope]
	p.mu.RUnlock()
	if exists {
		return nil
	}

	if defaults == nil {
		defaults = map[string]any{}
	}
	raw, err := json.Marshal(defaults)
	if err != nil {
		return oops.Code("SETTINGS_ENCODE_FAILED").With("scope", scope).Wrap(err)
	}

	_, err = p.pool.Exec(ctx,
		`INSERT INTO scope_settings (scope, settings, updated_at) VALUES ($1, $2, now())`,
		scope, raw)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// Another instance created the scope first.
			return nil
		}
		return oops.Code("SETTINGS_WRITE_FAILED").With("scope", scope).Wrap(err)
	}

	p.mu.Lock()
	if _, exists := p.scopes[scope]; !exists {
		p.scopes[scope] = defaults
	}
	p.mu.Unlock()
	return nil
}

// Clear removes all settings for a scope.
func (p *PostgresProvider) Clear(ctx context.Context, scope string) error {
	scope = p.ScopeID(scope)

	if _, err := p.pool.Exec(ctx, `DELETE FROM scope_settings WHERE scope = $1`, scope); err != nil {
		return oops.Code("SETTINGS_DELETE_FAILED").With("scope", scope).Wrap(err)
	}

	p.mu.Lock()
	delete(p.scopes, scope)
	p.mu.Unlock()
	return nil
}

// ScopeID normalizes a scope reference.
func (p *PostgresProvider) ScopeID(scope string) string {
	return command.NormalizeScope(scope)
}

// Close releases the connection pool.
func (p *PostgresProvider) Close() {
	p.pool.Close()
}
