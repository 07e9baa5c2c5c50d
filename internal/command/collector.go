// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"strings"
)

// ArgumentResult is the outcome of one multi-argument obtain cycle.
type ArgumentResult struct {
	// Values maps argument keys to their coerced values. Nil when the
	// cycle was cancelled.
	Values map[string]any
	// Cancelled is CancelNone on success.
	Cancelled CancelReason
	// Prompts holds the ids of interactive prompt messages sent.
	Prompts []string
	// Answers holds the user replies consumed by the cycle.
	Answers []*Message
}

// ArgumentCollector sequences a command's arguments into a single obtain
// operation.
type ArgumentCollector struct {
	args     []*Argument
	awaiting *awaitingSet
}

// newArgumentCollector validates the argument list as a whole:
// no required argument may follow one with a default, and at most one
// infinite argument is allowed, in last position.
func newArgumentCollector(args []*Argument, awaiting *awaitingSet) (*ArgumentCollector, error) {
	seenOptional := false
	seenKeys := make(map[string]bool, len(args))
	for i, arg := range args {
		if seenKeys[arg.Key] {
			return nil, ErrInvalidSpec("duplicate argument key %q", arg.Key)
		}
		seenKeys[arg.Key] = true

		if arg.Default != nil {
			seenOptional = true
		} else if seenOptional {
			return nil, ErrInvalidSpec("required argument %q may not follow an optional one", arg.Key)
		}
		if arg.Infinite && i != len(args)-1 {
			return nil, ErrInvalidSpec("infinite argument %q must be declared last", arg.Key)
		}
	}
	return &ArgumentCollector{args: args, awaiting: awaiting}, nil
}

// Args returns the ordered argument list.
func (c *ArgumentCollector) Args() []*Argument { return c.args }

// Obtain walks the argument list, slicing provided tokens per argument and
// running each argument's prompt machine. The per-(user, channel) awaiting
// marker is held for the whole cycle so unrelated messages from the same
// user are filtered out by the dispatcher while prompts are in flight.
//
// promptLimit caps the cumulative number of prompts across the whole cycle;
// zero or negative means unlimited.
func (c *ArgumentCollector) Obtain(ctx context.Context, cc *Context, provided []string, promptLimit int) (*ArgumentResult, error) {
	msg := cc.Message
	replies, err := c.awaiting.Register(msg.AuthorID, msg.ChannelID)
	if err != nil {
		return nil, err
	}
	defer c.awaiting.Unregister(msg.AuthorID, msg.ChannelID)

	bag := &promptBag{replies: replies, limit: promptLimit}
	values := make(map[string]any, len(c.args))

	for i, arg := range c.args {
		raw, rest := c.slice(provided, i)
		v, cancelled, err := arg.obtain(ctx, cc, raw, rest, bag)
		if err != nil {
			return nil, err
		}
		if cancelled != CancelNone {
			return &ArgumentResult{
				Cancelled: cancelled,
				Prompts:   bag.prompts,
				Answers:   bag.answers,
			}, nil
		}
		values[arg.Key] = v
	}

	return &ArgumentResult{
		Values:  values,
		Prompts: bag.prompts,
		Answers: bag.answers,
	}, nil
}

// slice computes the portion of the provided tokens belonging to argument i:
// the raw value, plus the pre-split remainder for an infinite argument. The
// last declared non-infinite argument absorbs all remaining tokens; an
// infinite argument absorbs everything from its position onward.
func (c *ArgumentCollector) slice(provided []string, i int) (string, []string) {
	if i >= len(provided) {
		return "", nil
	}
	last := i == len(c.args)-1
	if !last {
		return provided[i], nil
	}
	if c.args[i].Infinite {
		return strings.Join(provided[i:], " "), provided[i:]
	}
	if len(provided) > len(c.args) {
		return strings.Join(provided[i:], " "), nil
	}
	return provided[i], nil
}
