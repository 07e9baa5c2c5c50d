// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"strings"
)

// ArgumentType validates and parses one primitive kind of user-supplied
// value. Validate returns ok=false with an optional hint (a disambiguation
// or correction message shown in the retry prompt) for invalid input; err is
// reserved for lookup failures, never for bad input.
type ArgumentType interface {
	ID() string
	Validate(ctx context.Context, cc *Context, arg *Argument, raw string) (ok bool, hint string, err error)
	Parse(ctx context.Context, cc *Context, arg *Argument, raw string) (any, error)
	IsEmpty(arg *Argument, raw string) bool
}

// DefaultMatchesCeiling is the number of fuzzy candidates above which the
// disambiguation hint collapses to a flat "too many matches" message instead
// of listing them. Kept configurable on the registry; the default mirrors
// the behavior users of the bot already rely on.
const DefaultMatchesCeiling = 15

// emptyValue is the shared IsEmpty default: true iff the trimmed raw string
// has zero length.
func emptyValue(raw string) bool {
	return strings.TrimSpace(raw) == ""
}

// disambiguation builds the "be more specific" hint for multiple fuzzy
// matches of a named kind.
func disambiguation(kind string, candidates []Entity, ceiling int) string {
	if ceiling <= 0 {
		ceiling = DefaultMatchesCeiling
	}
	if len(candidates) >= ceiling {
		return "Multiple " + kind + " found. Please be more specific."
	}

	names := make([]string, len(candidates))
	for i, c := range candidates {
		names[i] = "`" + c.Name + "`"
	}
	return "Multiple " + kind + " found, please be more specific: " + strings.Join(names, ", ")
}

// exactMatches narrows a candidate list to entries whose name equals the
// query case-insensitively.
func exactMatches(candidates []Entity, query string) []Entity {
	var out []Entity
	for _, c := range candidates {
		if strings.EqualFold(c.Name, query) {
			out = append(out, c)
		}
	}
	return out
}
