// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is a coded error carrying code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected coded error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err carries the context key with value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected coded error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertCodedError asserts code and one context pair in a single call. The
// providers and the portal client tag every failure with both, so most
// error tests want exactly this shape.
func AssertCodedError(t *testing.T, err error, code, key string, value any) {
	t.Helper()
	AssertErrorCode(t, err, code)
	AssertErrorContext(t, err, key, value)
}
