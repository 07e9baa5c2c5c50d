// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package errutil_test

import (
	"testing"

	"github.com/samber/oops"

	"github.com/classmate/classmate/pkg/errutil"
)

func TestAssertErrorCode(t *testing.T) {
	err := oops.Code("SOME_CODE").Errorf("failed")
	errutil.AssertErrorCode(t, err, "SOME_CODE")
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.Code("SOME_CODE").With("scope", "guild-1").Errorf("failed")
	errutil.AssertErrorContext(t, err, "scope", "guild-1")
}

func TestAssertCodedError(t *testing.T) {
	err := oops.Code("SETTINGS_CORRUPT").With("scope", "guild-1").Errorf("failed")
	errutil.AssertCodedError(t, err, "SETTINGS_CORRUPT", "scope", "guild-1")
}
