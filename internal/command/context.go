// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Context binds one inbound message to its resolved command, the raw
// argument material, and the responses produced so far. It lives for one
// invocation, then lingers in the dispatcher's short-lived cache to support
// source-message-edit re-runs.
type Context struct {
	Message *Message
	Command *Command
	// ArgString is the remainder of the message after the prefix and
	// command name. Empty for pattern-matched invocations.
	ArgString string
	// PatternMatches holds the regex capture groups for pattern-matched
	// invocations (index 0 is the full match).
	PatternMatches []string
	// InvocationID identifies this dispatch in logs and traces.
	InvocationID ulid.ULID

	registry  *Registry
	resolver  EntityResolver
	responder Responder

	mu sync.Mutex
	// responses maps channel id → ids of messages sent by this invocation.
	responses map[string][]string
	// prior holds the responses of the previous run of the same source
	// message, consumed for edit-in-place.
	prior map[string][]string

	settledAt time.Time
}

// newContext builds an invocation context.
func newContext(msg *Message, registry *Registry, resolver EntityResolver, responder Responder) *Context {
	return &Context{
		Message:      msg,
		InvocationID: ulid.Make(),
		registry:     registry,
		resolver:     resolver,
		responder:    responder,
		responses:    make(map[string][]string),
	}
}

// Registry returns the registry the invocation runs against.
func (c *Context) Registry() *Registry { return c.registry }

// Resolver returns the entity resolver for reference argument types.
func (c *Context) Resolver() EntityResolver { return c.resolver }

func (c *Context) matchesCeiling() int {
	if c.registry == nil {
		return DefaultMatchesCeiling
	}
	return c.registry.MatchesCeiling()
}

// Reply sends content to the source channel. When the invocation is a re-run
// of an edited message, prior responses in the channel are edited in place
// instead of sending new messages.
func (c *Context) Reply(ctx context.Context, content string) ([]string, error) {
	return c.respond(ctx, c.Message.ChannelID, content)
}

// Say is an alias of Reply kept for command bodies that address the channel
// rather than the invoking user.
func (c *Context) Say(ctx context.Context, content string) ([]string, error) {
	return c.respond(ctx, c.Message.ChannelID, content)
}

// Direct sends content to the invoking user's direct-message channel.
func (c *Context) Direct(ctx context.Context, content string) ([]string, error) {
	if c.responder == nil {
		return nil, nil
	}
	ids, err := c.responder.SendDirect(ctx, c.Message.AuthorID, content)
	if err != nil {
		return nil, err
	}
	c.record("@"+c.Message.AuthorID, ids)
	return ids, nil
}

func (c *Context) respond(ctx context.Context, channelID, content string) ([]string, error) {
	if c.responder == nil {
		return nil, nil
	}

	if id, ok := c.takePrior(channelID); ok {
		if err := c.responder.Edit(ctx, channelID, id, content); err == nil {
			c.record(channelID, []string{id})
			return []string{id}, nil
		}
		// Fall back to a fresh send if the prior message is gone.
	}

	ids, err := c.responder.Send(ctx, channelID, content)
	if err != nil {
		return nil, err
	}
	c.record(channelID, ids)
	return ids, nil
}

func (c *Context) record(channelID string, ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[channelID] = append(c.responses[channelID], ids...)
}

func (c *Context) takePrior(channelID string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := c.prior[channelID]
	if len(ids) == 0 {
		return "", false
	}
	c.prior[channelID] = ids[1:]
	return ids[0], true
}

// Responses returns a copy of the per-channel response ids recorded so far.
func (c *Context) Responses() map[string][]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string][]string, len(c.responses))
	for ch, ids := range c.responses {
		cp := make([]string, len(ids))
		copy(cp, ids)
		out[ch] = cp
	}
	return out
}

// adoptResponses seeds the prior-response map from an earlier run of the
// same source message.
func (c *Context) adoptResponses(prev *Context) {
	if prev == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prior = prev.Responses()
}

func (c *Context) settle(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settledAt = now
}
