// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockMigrator struct {
	upCalled    bool
	downCalled  bool
	forceCalled int
	closed      bool

	version uint
	dirty   bool
	err     error
}

func (m *mockMigrator) Up() error {
	m.upCalled = true
	return m.err
}

func (m *mockMigrator) Down() error {
	m.downCalled = true
	return m.err
}

func (m *mockMigrator) Version() (uint, bool, error) {
	return m.version, m.dirty, m.err
}

func (m *mockMigrator) Force(version int) error {
	m.forceCalled = version
	return m.err
}

func (m *mockMigrator) Close() error {
	m.closed = true
	return nil
}

func runMigrateCmd(t *testing.T, m *mockMigrator, args ...string) (string, error) {
	t.Helper()
	cmd := newMigrateCmdWithDeps(&MigrateDeps{
		NewMigrator: func(string) (Migrator, error) { return m, nil },
	})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(append(args, "--database-url", "postgres://localhost/classmate"))
	err := cmd.Execute()
	return buf.String(), err
}

func TestMigrate_Up(t *testing.T) {
	m := &mockMigrator{}
	out, err := runMigrateCmd(t, m, "up")
	require.NoError(t, err)
	assert.True(t, m.upCalled)
	assert.True(t, m.closed)
	assert.Contains(t, out, "Migrations applied")
}

func TestMigrate_Down(t *testing.T) {
	m := &mockMigrator{}
	out, err := runMigrateCmd(t, m, "down")
	require.NoError(t, err)
	assert.True(t, m.downCalled)
	assert.Contains(t, out, "Migrations rolled back")
}

func TestMigrate_Version(t *testing.T) {
	m := &mockMigrator{version: 3}
	out, err := runMigrateCmd(t, m, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 3")
	assert.NotContains(t, out, "dirty")
}

func TestMigrate_VersionDirty(t *testing.T) {
	m := &mockMigrator{version: 2, dirty: true}
	out, err := runMigrateCmd(t, m, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "Version: 2 (dirty)")
}

func TestMigrate_Force(t *testing.T) {
	m := &mockMigrator{}
	out, err := runMigrateCmd(t, m, "force", "3")
	require.NoError(t, err)
	assert.Equal(t, 3, m.forceCalled)
	assert.Contains(t, out, "Forced version to 3")
}

func TestMigrate_ForceRejectsNonInteger(t *testing.T) {
	m := &mockMigrator{}
	_, err := runMigrateCmd(t, m, "force", "abc")
	require.Error(t, err)
	assert.Zero(t, m.forceCalled)
	assert.False(t, m.closed, "migrator never constructed for invalid input")
}

func TestMigrate_UpError(t *testing.T) {
	m := &mockMigrator{err: errors.New("connection refused")}
	_, err := runMigrateCmd(t, m, "up")
	require.Error(t, err)
	assert.True(t, m.closed, "migrator closed even on failure")
}

func TestMigrate_RequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cmd := newMigrateCmdWithDeps(&MigrateDeps{
		NewMigrator: func(string) (Migrator, error) {
			t.Fatal("migrator should not be constructed without a URL")
			return nil, nil
		},
	})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"up"})

	require.Error(t, cmd.Execute())
}

func TestMigrate_UsesEnvironmentURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/fromenv")

	var gotURL string
	m := &mockMigrator{}
	cmd := newMigrateCmdWithDeps(&MigrateDeps{
		NewMigrator: func(url string) (Migrator, error) {
			gotURL = url
			return m, nil
		},
	})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"up"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "postgres://localhost/fromenv", gotURL)
}
