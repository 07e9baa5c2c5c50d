// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Truthy and falsy spellings recognized by the boolean type,
// case-insensitively.
var (
	truthy = map[string]bool{
		"true": true, "t": true, "yes": true, "y": true, "on": true,
		"enable": true, "enabled": true, "1": true, "+": true,
	}
	falsy = map[string]bool{
		"false": true, "f": true, "no": true, "n": true, "off": true,
		"disable": true, "disabled": true, "0": true, "-": true,
	}
)

// BooleanType accepts common yes/no spellings and parses them to bool.
type BooleanType struct{}

func (BooleanType) ID() string { return "boolean" }

func (BooleanType) Validate(_ context.Context, _ *Context, _ *Argument, raw string) (bool, string, error) {
	lc := strings.ToLower(strings.TrimSpace(raw))
	if truthy[lc] || falsy[lc] {
		return true, "", nil
	}
	return false, "", nil
}

func (BooleanType) Parse(_ context.Context, _ *Context, _ *Argument, raw string) (any, error) {
	lc := strings.ToLower(strings.TrimSpace(raw))
	if truthy[lc] {
		return true, nil
	}
	if falsy[lc] {
		return false, nil
	}
	return nil, ErrInvalidSpec("unable to parse %q as boolean", raw)
}

func (BooleanType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// IntegerType parses whole numbers with optional min/max bounds and a oneOf
// allow-list.
type IntegerType struct{}

func (IntegerType) ID() string { return "integer" }

func (IntegerType) Validate(_ context.Context, _ *Context, arg *Argument, raw string) (bool, string, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return false, "", nil
	}
	if len(arg.OneOf) > 0 && !oneOfContains(arg.OneOf, strconv.FormatInt(n, 10)) {
		return false, fmt.Sprintf("Please enter one of the following options: %s.", strings.Join(arg.OneOf, ", ")), nil
	}
	if arg.Min != nil && float64(n) < *arg.Min {
		return false, fmt.Sprintf("Please enter a number above or exactly %d.", int64(*arg.Min)), nil
	}
	if arg.Max != nil && float64(n) > *arg.Max {
		return false, fmt.Sprintf("Please enter a number below or exactly %d.", int64(*arg.Max)), nil
	}
	return true, "", nil
}

func (IntegerType) Parse(_ context.Context, _ *Context, _ *Argument, raw string) (any, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return nil, ErrInvalidSpec("unable to parse %q as integer", raw)
	}
	return int(n), nil
}

func (IntegerType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// FloatType parses decimal numbers with optional min/max bounds.
type FloatType struct{}

func (FloatType) ID() string { return "float" }

func (FloatType) Validate(_ context.Context, _ *Context, arg *Argument, raw string) (bool, string, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return false, "", nil
	}
	if arg.Min != nil && f < *arg.Min {
		return false, fmt.Sprintf("Please enter a number above or exactly %g.", *arg.Min), nil
	}
	if arg.Max != nil && f > *arg.Max {
		return false, fmt.Sprintf("Please enter a number below or exactly %g.", *arg.Max), nil
	}
	return true, "", nil
}

func (FloatType) Parse(_ context.Context, _ *Context, _ *Argument, raw string) (any, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, ErrInvalidSpec("unable to parse %q as float", raw)
	}
	return f, nil
}

func (FloatType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// StringType passes text through, with optional length bounds and a oneOf
// allow-list.
type StringType struct{}

func (StringType) ID() string { return "string" }

func (StringType) Validate(_ context.Context, _ *Context, arg *Argument, raw string) (bool, string, error) {
	if len(arg.OneOf) > 0 && !oneOfContains(arg.OneOf, raw) {
		return false, fmt.Sprintf("Please enter one of the following options: %s.", strings.Join(arg.OneOf, ", ")), nil
	}
	if arg.Min != nil && float64(len(raw)) < *arg.Min {
		return false, fmt.Sprintf("Please keep the %s above or exactly %d characters.", arg.Label, int64(*arg.Min)), nil
	}
	if arg.Max != nil && float64(len(raw)) > *arg.Max {
		return false, fmt.Sprintf("Please keep the %s below or exactly %d characters.", arg.Label, int64(*arg.Max)), nil
	}
	return true, "", nil
}

func (StringType) Parse(_ context.Context, _ *Context, _ *Argument, raw string) (any, error) {
	return raw, nil
}

func (StringType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

// DurationType parses Go duration strings such as "90s" or "5m".
type DurationType struct{}

func (DurationType) ID() string { return "duration" }

func (DurationType) Validate(_ context.Context, _ *Context, arg *Argument, raw string) (bool, string, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return false, "Please enter a duration such as `30s`, `5m`, or `2h`.", nil
	}
	if arg.Min != nil && d.Seconds() < *arg.Min {
		return false, fmt.Sprintf("Please enter a duration of at least %g seconds.", *arg.Min), nil
	}
	if arg.Max != nil && d.Seconds() > *arg.Max {
		return false, fmt.Sprintf("Please enter a duration of at most %g seconds.", *arg.Max), nil
	}
	return true, "", nil
}

func (DurationType) Parse(_ context.Context, _ *Context, _ *Argument, raw string) (any, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return nil, ErrInvalidSpec("unable to parse %q as duration", raw)
	}
	return d, nil
}

func (DurationType) IsEmpty(_ *Argument, raw string) bool { return emptyValue(raw) }

func oneOfContains(options []string, value string) bool {
	for _, o := range options {
		if strings.EqualFold(o, value) {
			return true
		}
	}
	return false
}
