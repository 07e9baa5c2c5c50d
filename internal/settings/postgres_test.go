// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package settings

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classmate/classmate/internal/command"
	"github.com/classmate/classmate/pkg/errutil"
)

func newMockProvider(t *testing.T) (*PostgresProvider, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresProviderFromPool(mock), mock
}

func TestPostgresProvider_InitLoadsScopes(t *testing.T) {
	p, mock := newMockProvider(t)

	rows := pgxmock.NewRows([]string{"scope", "settings"}).
		AddRow("guild-1", []byte(`{"commandPrefix":"?","command-ping":false}`)).
		AddRow("global", []byte(`{"commandPrefix":"!"}`))
	mock.ExpectQuery(`SELECT scope, settings FROM scope_settings`).WillReturnRows(rows)

	require.NoError(t, p.Init(context.Background()))

	assert.Equal(t, "?", p.Get("guild-1", command.SettingPrefix, nil))
	assert.Equal(t, false, p.Get("guild-1", "command-ping", nil))
	assert.Equal(t, "!", p.Get("global", command.SettingPrefix, nil))
	assert.Equal(t, "fallback", p.Get("guild-2", command.SettingPrefix, "fallback"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_InitRetries(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectQuery(`SELECT scope, settings FROM scope_settings`).
		WillReturnError(errors.New("connection refused"))
	mock.ExpectQuery(`SELECT scope, settings FROM scope_settings`).
		WillReturnRows(pgxmock.NewRows([]string{"scope", "settings"}))

	require.NoError(t, p.Init(context.Background()), "a transient failure is retried")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_InitCorruptDocument(t *testing.T) {
	p, mock := newMockProvider(t)

	for i := 0; i < 5; i++ {
		mock.ExpectQuery(`SELECT scope, settings FROM scope_settings`).
			WillReturnRows(pgxmock.NewRows([]string{"scope", "settings"}).
				AddRow("guild-1", []byte(`{broken`)))
	}

	err := p.Init(context.Background())
	require.Error(t, err)
	errutil.AssertCodedError(t, err, "SETTINGS_CORRUPT", "scope", "guild-1")
}

func TestPostgresProvider_SetPersistsAndCaches(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectExec(`INSERT INTO scope_settings`).
		WithArgs("guild-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, p.Set(context.Background(), "guild-1", command.SettingPrefix, "?"))
	assert.Equal(t, "?", p.Get("guild-1", command.SettingPrefix, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresProvider_SetFailureLeavesCacheUntouched(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectExec(`INSERT INTO scope_settings`).
		WithArgs("guild-1", pgxmock.AnyArg()).
		WillReturnError(errors.New("disk full"))

	err := p.Set(context.Background(), "guild-1", command.SettingPrefix, "?")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "SETTINGS_WRITE_FAILED")
	assert.Nil(t, p.Get("guild-1", command.SettingPrefix, nil))
}

func TestPostgresProvider_EmptyScopeIsGlobal(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectExec(`INSERT INTO scope_settings`).
		WithArgs(command.GlobalScope, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, p.Set(context.Background(), "", command.SettingPrefix, "!"))
	assert.Equal(t, "!", p.Get(command.GlobalScope, command.SettingPrefix, nil))
}

func TestPostgresProvider_Create(t *testing.T) {
	t.Run("new scope", func(t *testing.T) {
		p, mock := newMockProvider(t)
		mock.ExpectExec(`INSERT INTO scope_settings`).
			WithArgs("guild-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, p.Create(context.Background(), "guild-1", map[string]any{command.SettingPrefix: "!"}))
		assert.Equal(t, "!", p.Get("guild-1", command.SettingPrefix, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("cached scope is a no-op", func(t *testing.T) {
		p, mock := newMockProvider(t)
		mock.ExpectExec(`INSERT INTO scope_settings`).
			WithArgs("guild-1", pgxmock.AnyArg()).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		require.NoError(t, p.Create(context.Background(), "guild-1", nil))
		require.NoError(t, p.Create(context.Background(), "guild-1", nil), "no second insert expected")
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("concurrent insert tolerated", func(t *testing.T) {
		p, mock := newMockProvider(t)
		mock.ExpectExec(`INSERT INTO scope_settings`).
			WithArgs("guild-1", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgerrcode.UniqueViolation})

		assert.NoError(t, p.Create(context.Background(), "guild-1", nil))
	})
}

func TestPostgresProvider_Clear(t *testing.T) {
	p, mock := newMockProvider(t)

	mock.ExpectExec(`INSERT INTO scope_settings`).
		WithArgs("guild-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM scope_settings WHERE scope = \$1`).
		WithArgs("guild-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, p.Set(context.Background(), "guild-1", command.SettingPrefix, "?"))
	require.NoError(t, p.Clear(context.Background(), "guild-1"))
	assert.Nil(t, p.Get("guild-1", command.SettingPrefix, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}
