// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultPromptWait is how long a prompt waits for a reply before the cycle
// is cancelled with reason "time".
const DefaultPromptWait = 30 * time.Second

// CancelReason describes why an argument-collection cycle ended early.
type CancelReason string

const (
	// CancelNone means the cycle completed.
	CancelNone CancelReason = ""
	// CancelUser means the user replied with the cancel keyword.
	CancelUser CancelReason = "user"
	// CancelTime means no reply arrived within the wait window.
	CancelTime CancelReason = "time"
	// CancelPromptLimit means the cumulative prompt allowance was exhausted.
	CancelPromptLimit CancelReason = "promptLimit"
)

// Reply keywords recognized during a prompt cycle, case-insensitively.
const (
	cancelKeyword = "cancel"
	finishKeyword = "finish"
)

// ArgumentSpec declares a single command parameter. Specs are validated
// eagerly when the command is registered; a malformed spec never reaches
// dispatch.
type ArgumentSpec struct {
	Key     string
	Label   string // defaults to Key
	Prompt  string
	Type    string // registered type id; empty only with custom hooks
	Min     *float64
	Max     *float64
	Default any
	OneOf   []string
	// Infinite accepts unbounded repeated values collected into a slice.
	// At most one per command, and it must be declared last.
	Infinite bool
	Wait     time.Duration // prompt timeout, DefaultPromptWait if zero

	// Custom hooks, used when Type is empty or to override the type's
	// behavior for this argument alone.
	Validate func(ctx context.Context, cc *Context, raw string) (bool, string, error)
	Parse    func(ctx context.Context, cc *Context, raw string) (any, error)
	IsEmpty  func(raw string) bool
}

// Argument is an immutable, constructed parameter specification plus the
// interactive prompt machinery that obtains a value for it.
type Argument struct {
	Key      string
	Label    string
	Prompt   string
	Min      *float64
	Max      *float64
	Default  any
	OneOf    []string
	Infinite bool
	Wait     time.Duration

	typ      ArgumentType // nil only with custom hooks
	validate func(ctx context.Context, cc *Context, raw string) (bool, string, error)
	parse    func(ctx context.Context, cc *Context, raw string) (any, error)
	isEmpty  func(raw string) bool
}

// newArgument constructs an Argument from its spec, resolving the type
// against the registry.
func newArgument(spec ArgumentSpec, types map[string]ArgumentType) (*Argument, error) {
	if spec.Key == "" {
		return nil, ErrInvalidSpec("argument key must not be empty")
	}
	if spec.Prompt == "" {
		return nil, ErrInvalidSpec("argument %q must have prompt text", spec.Key)
	}

	arg := &Argument{
		Key:      spec.Key,
		Label:    spec.Label,
		Prompt:   spec.Prompt,
		Min:      spec.Min,
		Max:      spec.Max,
		Default:  spec.Default,
		OneOf:    spec.OneOf,
		Infinite: spec.Infinite,
		Wait:     spec.Wait,
		validate: spec.Validate,
		parse:    spec.Parse,
	}
	if arg.Label == "" {
		arg.Label = spec.Key
	}
	if arg.Wait <= 0 {
		arg.Wait = DefaultPromptWait
	}
	if spec.IsEmpty != nil {
		arg.isEmpty = spec.IsEmpty
	}

	if spec.Type == "" {
		if arg.validate == nil || arg.parse == nil {
			return nil, ErrInvalidSpec("argument %q has no type and no custom validate/parse hooks", spec.Key)
		}
		return arg, nil
	}

	typ, ok := types[spec.Type]
	if !ok {
		return nil, ErrInvalidSpec("argument %q references unregistered type %q", spec.Key, spec.Type)
	}
	arg.typ = typ
	return arg, nil
}

// Type returns the argument's registered type, or nil when the argument uses
// custom hooks only.
func (a *Argument) Type() ArgumentType { return a.typ }

func (a *Argument) runIsEmpty(raw string) bool {
	if a.isEmpty != nil {
		return a.isEmpty(raw)
	}
	if a.typ != nil {
		return a.typ.IsEmpty(a, raw)
	}
	return emptyValue(raw)
}

func (a *Argument) runValidate(ctx context.Context, cc *Context, raw string) (bool, string, error) {
	if a.validate != nil {
		return a.validate(ctx, cc, raw)
	}
	return a.typ.Validate(ctx, cc, a, raw)
}

func (a *Argument) runParse(ctx context.Context, cc *Context, raw string) (any, error) {
	if a.parse != nil {
		return a.parse(ctx, cc, raw)
	}
	return a.typ.Parse(ctx, cc, a, raw)
}

// promptBag carries the shared state of one multi-argument obtain cycle:
// the reply channel, the cumulative prompt allowance, and the prompt/answer
// transcripts.
type promptBag struct {
	replies <-chan *Message
	limit   int // cumulative prompt allowance across the whole cycle
	// count tracks prompt events for the limit. A long prompt may split
	// into several sent messages and must still cost a single slot.
	count   int
	prompts []string // sent message ids, for the transcript
	answers []*Message
}

// obtain runs the prompt state machine for one argument. raw carries the
// provided value, empty when the user supplied nothing; tokens carries the
// pre-split remainder for an infinite argument.
func (a *Argument) obtain(ctx context.Context, cc *Context, raw string, tokens []string, bag *promptBag) (any, CancelReason, error) {
	empty := a.runIsEmpty(raw)
	if empty && a.Default != nil {
		return a.Default, CancelNone, nil
	}
	if a.Infinite {
		return a.obtainInfinite(ctx, cc, tokens, bag)
	}

	hint := ""
	prompted := false
	for {
		if !a.runIsEmpty(raw) {
			ok, h, err := a.runValidate(ctx, cc, raw)
			if err != nil {
				return nil, CancelNone, err
			}
			if ok {
				v, err := a.runParse(ctx, cc, raw)
				if err != nil {
					return nil, CancelNone, err
				}
				return v, CancelNone, nil
			}
			hint = h
		}

		text := a.promptText(hint, !prompted && a.runIsEmpty(raw))
		reply, reason, err := a.sendPromptAndWait(ctx, cc, text, bag)
		if reason != CancelNone || err != nil {
			return nil, reason, err
		}
		prompted = true
		raw = reply.Content
		hint = ""
	}
}

// obtainInfinite collects repeated values until the user finishes, cancels,
// or times out. Provided tokens are consumed first without prompting; an
// invalid provided token drops into a correction prompt before the remaining
// tokens are consumed.
func (a *Argument) obtainInfinite(ctx context.Context, cc *Context, provided []string, bag *promptBag) (any, CancelReason, error) {
	var values []any

	// consume validates and parses one candidate. A non-empty hint means
	// the candidate was rejected.
	consume := func(token string) (string, error) {
		ok, hint, err := a.runValidate(ctx, cc, token)
		if err != nil {
			return "", err
		}
		if !ok {
			return a.invalidText(hint), nil
		}
		v, err := a.runParse(ctx, cc, token)
		if err != nil {
			return "", err
		}
		values = append(values, v)
		return "", nil
	}

	// promptOnce sends one infinite-mode prompt and interprets the reply.
	// finished=true ends the whole collection.
	promptOnce := func(text string) (hint string, finished bool, reason CancelReason, err error) {
		text += fmt.Sprintf("\nRespond with `%s` to cancel the command, or `%s` to finish entry. The command will automatically be cancelled in %.0f seconds.",
			cancelKeyword, finishKeyword, a.Wait.Seconds())
		reply, reason, err := a.sendPromptAndWait(ctx, cc, text, bag)
		if reason != CancelNone || err != nil {
			return "", false, reason, err
		}
		if strings.EqualFold(strings.TrimSpace(reply.Content), finishKeyword) {
			return "", true, CancelNone, nil
		}
		hint, err = consume(reply.Content)
		return hint, false, CancelNone, err
	}

	if len(provided) > 0 {
		for _, token := range provided {
			hint, err := consume(token)
			if err != nil {
				return nil, CancelNone, err
			}
			// Correction loop for a rejected provided token.
			for hint != "" {
				var finished bool
				var reason CancelReason
				hint, finished, reason, err = promptOnce(hint)
				if reason != CancelNone || err != nil {
					return nil, reason, err
				}
				if finished {
					return values, CancelNone, nil
				}
			}
		}
		return values, CancelNone, nil
	}

	// Prompt-driven entry: each value is prompted for until finish.
	hint := ""
	for {
		text := hint
		if text == "" {
			text = a.Prompt
		}
		var finished bool
		var reason CancelReason
		var err error
		hint, finished, reason, err = promptOnce(text)
		if reason != CancelNone || err != nil {
			return nil, reason, err
		}
		if finished {
			return values, CancelNone, nil
		}
	}
}

// sendPromptAndWait enforces the cumulative prompt limit, sends the prompt,
// and awaits exactly one reply from the same user in the same channel.
func (a *Argument) sendPromptAndWait(ctx context.Context, cc *Context, text string, bag *promptBag) (*Message, CancelReason, error) {
	if bag.limit > 0 && bag.count >= bag.limit {
		return nil, CancelPromptLimit, nil
	}

	ids, err := cc.Reply(ctx, text)
	if err != nil {
		return nil, CancelNone, err
	}
	bag.count++
	bag.prompts = append(bag.prompts, ids...)

	if notifier, ok := cc.responder.(TypingNotifier); ok {
		// Indicator only; a failure must not abort the prompt cycle.
		_ = notifier.Typing(ctx, cc.Message.ChannelID)
	}

	timer := time.NewTimer(a.Wait)
	defer timer.Stop()

	select {
	case reply := <-bag.replies:
		bag.answers = append(bag.answers, reply)
		if strings.EqualFold(strings.TrimSpace(reply.Content), cancelKeyword) {
			return nil, CancelUser, nil
		}
		return reply, CancelNone, nil
	case <-timer.C:
		return nil, CancelTime, nil
	case <-ctx.Done():
		return nil, CancelTime, ctx.Err()
	}
}

// promptText builds the outgoing prompt: first-prompt text for a missing
// value, otherwise the invalid-retry text carrying the validator's hint.
func (a *Argument) promptText(hint string, first bool) string {
	var text string
	if first {
		text = a.Prompt
	} else {
		text = a.invalidText(hint)
	}
	return text + fmt.Sprintf("\nRespond with `%s` to cancel the command. The command will automatically be cancelled in %.0f seconds.",
		cancelKeyword, a.Wait.Seconds())
}

func (a *Argument) invalidText(hint string) string {
	if hint != "" {
		return hint
	}
	return fmt.Sprintf("You provided an invalid %s. Please try again.", a.Label)
}
