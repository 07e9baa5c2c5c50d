// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("classmate/command")

// Dispatch defaults.
const (
	DefaultPrefix              = "!"
	DefaultEditableDuration    = 30 * time.Second
	DefaultNegativeReplyWindow = 15 * time.Second
)

// DispatchStatus is the terminal state of one inbound message.
type DispatchStatus string

const (
	// StatusIgnored means the message was filtered out before matching.
	StatusIgnored DispatchStatus = "ignored"
	// StatusNoMatch means no command was recognized.
	StatusNoMatch DispatchStatus = "no_match"
	// StatusBlocked means an inhibitor or a constraint check vetoed the
	// run.
	StatusBlocked DispatchStatus = "blocked"
	// StatusDisabled means the matched command or its group is disabled
	// in the scope.
	StatusDisabled DispatchStatus = "disabled"
	// StatusThrottled means the user exhausted the command's usage
	// allowance.
	StatusThrottled DispatchStatus = "throttled"
	// StatusCancelled means the argument-collection cycle was cancelled.
	StatusCancelled DispatchStatus = "cancelled"
	// StatusCompleted means the command body ran.
	StatusCompleted DispatchStatus = "completed"
	// StatusErrored means the command body or the pipeline failed
	// unexpectedly.
	StatusErrored DispatchStatus = "errored"
)

// DispatchResult reports how one inbound message settled.
type DispatchResult struct {
	Status  DispatchStatus
	Context *Context
	// Cancelled carries the cancellation reason for StatusCancelled.
	Cancelled CancelReason
	// Err is set for StatusErrored only; the dispatch loop itself never
	// fails.
	Err error
}

// ErrorObserver receives unexpected errors escaping command bodies or the
// dispatch pipeline.
type ErrorObserver func(err error, cc *Context)

// Dispatcher turns raw inbound messages into validated command invocations.
type Dispatcher struct {
	registry  *Registry
	responder Responder
	resolver  EntityResolver
	perms     PermissionChecker
	provider  SettingProvider

	selfID   string
	owners   map[string]bool
	prefix   string
	ownerTag string // mention text included in generic error replies
	support  string // support invite/link included in generic error replies

	editableDuration    time.Duration
	negativeReplyWindow time.Duration
	unknownReply        bool

	inhibitorMu sync.RWMutex
	inhibitors  []Inhibitor
	observers   []ErrorObserver

	patternMu     sync.Mutex
	prefixRegexes map[string]*regexp.Regexp

	resultMu sync.Mutex
	results  map[string]*cachedResult

	negativeMu sync.Mutex
	negatives  map[string]time.Time

	scopeMu    sync.Mutex
	seenScopes map[string]bool

	now func() time.Time
}

// cachedResult retains a settled context to support source-message-edit
// re-runs.
type cachedResult struct {
	cc      *Context
	expires time.Time
}

// DispatcherOption configures a Dispatcher during construction.
type DispatcherOption func(*Dispatcher)

// WithSelfID tells the dispatcher the bot's own user id, enabling
// self-message filtering and mention prefixes.
func WithSelfID(id string) DispatcherOption {
	return func(d *Dispatcher) { d.selfID = id }
}

// WithOwners designates owner users: exempt from throttling, allowed to use
// owner-only commands.
func WithOwners(ids ...string) DispatcherOption {
	return func(d *Dispatcher) {
		for _, id := range ids {
			d.owners[id] = true
		}
	}
}

// WithPrefix sets the global default command prefix.
func WithPrefix(prefix string) DispatcherOption {
	return func(d *Dispatcher) { d.prefix = prefix }
}

// WithProvider attaches a setting provider for per-scope prefixes and
// enabled state. The provider must already be initialized; it is also
// attached to the registry.
func WithProvider(p SettingProvider) DispatcherOption {
	return func(d *Dispatcher) { d.provider = p }
}

// WithPermissionChecker attaches platform permission checks.
func WithPermissionChecker(pc PermissionChecker) DispatcherOption {
	return func(d *Dispatcher) { d.perms = pc }
}

// WithEditableDuration overrides how long a settled invocation stays
// re-runnable after its source message is edited.
func WithEditableDuration(dur time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if dur > 0 {
			d.editableDuration = dur
		}
	}
}

// WithNegativeReplyWindow overrides the rate limit on repeated rejection
// replies.
func WithNegativeReplyWindow(dur time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if dur > 0 {
			d.negativeReplyWindow = dur
		}
	}
}

// WithUnknownCommandReply enables the "unknown command" reply for prefixed
// messages that match no command.
func WithUnknownCommandReply() DispatcherOption {
	return func(d *Dispatcher) { d.unknownReply = true }
}

// WithOwnerContact sets the owner mention text and support link included in
// generic unexpected-error replies.
func WithOwnerContact(ownerTag, support string) DispatcherOption {
	return func(d *Dispatcher) {
		d.ownerTag = ownerTag
		d.support = support
	}
}

// NewDispatcher creates a dispatcher bound to a registry, a responder, and
// an entity resolver. Registry and responder must be non-nil; resolver may
// be nil when no reference argument types are used.
func NewDispatcher(registry *Registry, responder Responder, resolver EntityResolver, opts ...DispatcherOption) (*Dispatcher, error) {
	if registry == nil {
		return nil, ErrInvalidSpec("dispatcher requires a registry")
	}
	if responder == nil {
		return nil, ErrInvalidSpec("dispatcher requires a responder")
	}

	d := &Dispatcher{
		registry:            registry,
		responder:           responder,
		resolver:            resolver,
		owners:              make(map[string]bool),
		prefix:              DefaultPrefix,
		editableDuration:    DefaultEditableDuration,
		negativeReplyWindow: DefaultNegativeReplyWindow,
		prefixRegexes:       make(map[string]*regexp.Regexp),
		results:             make(map[string]*cachedResult),
		negatives:           make(map[string]time.Time),
		seenScopes:          make(map[string]bool),
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.provider != nil {
		registry.AttachProvider(d.provider)
	}
	return d, nil
}

// AddInhibitor appends a veto predicate to the pipeline.
func (d *Dispatcher) AddInhibitor(in Inhibitor) {
	d.inhibitorMu.Lock()
	defer d.inhibitorMu.Unlock()
	d.inhibitors = append(d.inhibitors, in)
}

// AddErrorObserver registers a receiver for unexpected errors.
func (d *Dispatcher) AddErrorObserver(obs ErrorObserver) {
	d.inhibitorMu.Lock()
	defer d.inhibitorMu.Unlock()
	d.observers = append(d.observers, obs)
}

// IsOwner reports whether the user is a designated bot owner.
func (d *Dispatcher) IsOwner(userID string) bool { return d.owners[userID] }

// Prefix returns the effective command prefix for a scope.
func (d *Dispatcher) Prefix(scope string) string {
	if d.provider == nil {
		return d.prefix
	}
	scope = NormalizeScope(scope)
	if v, ok := d.provider.Get(scope, SettingPrefix, nil).(string); ok {
		return v
	}
	if scope != GlobalScope {
		if v, ok := d.provider.Get(GlobalScope, SettingPrefix, nil).(string); ok {
			return v
		}
	}
	return d.prefix
}

// SetPrefix changes the command prefix for a scope and persists it.
func (d *Dispatcher) SetPrefix(ctx context.Context, scope, prefix string) error {
	if d.provider == nil {
		if NormalizeScope(scope) != GlobalScope {
			return ErrInvalidSpec("per-scope prefixes require a setting provider")
		}
		d.prefix = prefix
		return nil
	}
	return d.provider.Set(ctx, NormalizeScope(scope), SettingPrefix, prefix)
}

// Dispatch runs the full per-message state machine. It always returns a
// result, never panics, and never lets one failing invocation break
// subsequent messages.
func (d *Dispatcher) Dispatch(ctx context.Context, msg *Message) (result *DispatchResult) {
	start := d.now()
	var span trace.Span
	ctx, span = tracer.Start(ctx, "command.dispatch",
		trace.WithAttributes(
			attribute.String("message.id", msg.ID),
			attribute.String("message.author_id", msg.AuthorID),
		),
	)

	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("panic in dispatch: %v", r)
			slog.ErrorContext(ctx, "dispatch panicked", "message_id", msg.ID, "panic", r)
			result = &DispatchResult{Status: StatusErrored, Err: err}
		}
		name := ""
		if result.Context != nil && result.Context.Command != nil {
			name = result.Context.Command.Name
		}
		recordDispatch(name, result.Status, start)
		span.SetAttributes(attribute.String("dispatch.status", string(result.Status)))
		if result.Err != nil {
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Err.Error())
		}
		span.End()
	}()

	if ignored := d.filter(msg); ignored {
		return &DispatchResult{Status: StatusIgnored}
	}

	d.hydrateScope(ctx, msg)

	cc, fromPattern, prefixUsed := d.match(msg)
	if cc == nil {
		if prefixUsed && d.unknownReply {
			d.negativeReply(ctx, newContext(msg, d.registry, d.resolver, d.responder), "none",
				ErrUnknownCommand(firstToken(msg.Content)))
		}
		return &DispatchResult{Status: StatusNoMatch}
	}
	span.SetAttributes(attribute.String("command.name", cc.Command.Name))

	if prev := d.takeCached(msg.ID); prev != nil {
		cc.adoptResponses(prev)
	}

	return d.run(ctx, cc, fromPattern)
}

// filter applies the pre-matching rules in order; the first hit short-
// circuits to ignored.
func (d *Dispatcher) filter(msg *Message) bool {
	if msg.AuthorBot || (d.selfID != "" && msg.AuthorID == d.selfID) {
		return true
	}
	if msg.GuildUnavailable {
		return true
	}
	// A message from a (user, channel) pair with an in-flight prompt cycle
	// belongs to that cycle.
	if d.registry.awaitingSetRef().Deliver(msg) {
		return true
	}
	if msg.IsEdit() {
		if prev := d.peekCached(msg.ID); prev != nil && prev.Message.Content == msg.Content {
			return true
		}
		if d.now().Sub(msg.CreatedAt) > d.editableDuration {
			return true
		}
	}
	return false
}

// match resolves the inbound message to a command context. prefixUsed
// reports that the message carried a recognized prefix even if no command
// matched.
func (d *Dispatcher) match(msg *Message) (cc *Context, fromPattern, prefixUsed bool) {
	// Pattern commands bypass prefix and argument parsing entirely.
	for _, cmd := range d.registry.Commands() {
		for _, pattern := range cmd.Patterns {
			if m := pattern.FindStringSubmatch(msg.Content); m != nil {
				cc = newContext(msg, d.registry, d.resolver, d.responder)
				cc.Command = cmd
				cc.PatternMatches = m
				return cc, true, false
			}
		}
	}

	prefix := d.Prefix(msg.Scope())
	if re := d.prefixRegex(prefix); re != nil {
		if m := re.FindStringSubmatch(msg.Content); m != nil {
			prefixUsed = true
			name := strings.ToLower(m[2])
			if cmd, err := d.registry.ResolveCommand(name); err == nil && !cmd.PatternsOnly {
				cc = newContext(msg, d.registry, d.resolver, d.responder)
				cc.Command = cmd
				cc.ArgString = strings.TrimSpace(msg.Content[len(m[0]):])
				return cc, false, true
			}
			return nil, false, true
		}
	}

	// In direct channels a bare command name needs no prefix.
	if msg.IsDirect() {
		name := strings.ToLower(firstToken(msg.Content))
		if cmd, err := d.registry.ResolveCommand(name); err == nil && !cmd.PatternsOnly {
			cc = newContext(msg, d.registry, d.resolver, d.responder)
			cc.Command = cmd
			cc.ArgString = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(msg.Content), name))
			return cc, false, false
		}
	}

	return nil, false, prefixUsed
}

// prefixRegex builds (and caches per prefix) the pattern matching a
// bot-mention optionally followed by the prefix, or the bare prefix.
func (d *Dispatcher) prefixRegex(prefix string) *regexp.Regexp {
	d.patternMu.Lock()
	defer d.patternMu.Unlock()

	if re, ok := d.prefixRegexes[prefix]; ok {
		return re
	}

	var pattern string
	esc := regexp.QuoteMeta(prefix)
	switch {
	case d.selfID != "" && prefix != "":
		pattern = fmt.Sprintf(`^(<@!?%s>\s+(?:%s\s*)?|%s\s*)(\S+)`, d.selfID, esc, esc)
	case d.selfID != "":
		// No prefix configured: mentions only.
		pattern = fmt.Sprintf(`^(<@!?%s>\s+)(\S+)`, d.selfID)
	case prefix != "":
		pattern = fmt.Sprintf(`^(%s\s*)(\S+)`, esc)
	default:
		return nil
	}

	re := regexp.MustCompile(pattern)
	d.prefixRegexes[prefix] = re
	return re
}

// run executes a matched command: constraint checks, throttling, argument
// collection, the body itself, and response caching.
func (d *Dispatcher) run(ctx context.Context, cc *Context, fromPattern bool) *DispatchResult {
	cmd := cc.Command
	msg := cc.Message
	scope := msg.Scope()

	if !cmd.IsEnabledIn(scope) {
		d.negativeReply(ctx, cc, cmd.Name, ErrDisabled(cmd.Name, scope))
		return d.settle(cc, &DispatchResult{Status: StatusDisabled, Context: cc})
	}

	d.inhibitorMu.RLock()
	inhibitors := d.inhibitors
	d.inhibitorMu.RUnlock()
	if inhibition := runInhibitors(ctx, inhibitors, cc); inhibition != nil {
		response := inhibition.Response
		if response == "" {
			response = UserMessage(ErrBlocked(cmd.Name, inhibition.Reason))
		}
		if _, err := cc.Reply(ctx, response); err != nil {
			slog.WarnContext(ctx, "failed to send blocked notification", "command", cmd.Name, "error", err)
		}
		slog.InfoContext(ctx, "command blocked",
			"command", cmd.Name, "reason", inhibition.Reason, "author_id", msg.AuthorID)
		return d.settle(cc, &DispatchResult{Status: StatusBlocked, Context: cc})
	}

	rejection, err := d.checkConstraints(ctx, cc)
	if err != nil {
		return d.fail(ctx, cc, err)
	}
	if rejection != nil {
		d.negativeReply(ctx, cc, cmd.Name, rejection)
		return d.settle(cc, &DispatchResult{Status: StatusBlocked, Context: cc, Err: nil})
	}

	if !d.IsOwner(msg.AuthorID) {
		if remaining, limited := cmd.Throttle(msg.AuthorID); limited {
			d.negativeReply(ctx, cc, cmd.Name, ErrThrottled(cmd.Name, remaining.Seconds()))
			return d.settle(cc, &DispatchResult{Status: StatusThrottled, Context: cc})
		}
	}

	var args Args
	if collector := cmd.Collector(); collector != nil && !fromPattern {
		provided := SplitArguments(cc.ArgString, d.tokenCap(cmd), cmd.SingleQuotes)
		res, err := collector.Obtain(ctx, cc, provided, cmd.PromptLimit)
		if err != nil {
			return d.fail(ctx, cc, err)
		}
		recordPrompts(cmd.Name, len(res.Prompts))
		if res.Cancelled != CancelNone {
			if _, err := cc.Reply(ctx, UserMessage(ErrCancelled(cmd.Name, res.Cancelled))); err != nil {
				slog.WarnContext(ctx, "failed to send cancellation notice", "command", cmd.Name, "error", err)
			}
			return d.settle(cc, &DispatchResult{Status: StatusCancelled, Context: cc, Cancelled: res.Cancelled})
		}
		args = res.Values
	}

	slog.InfoContext(ctx, "running command",
		"command", cmd.Name,
		"invocation_id", cc.InvocationID.String(),
		"author_id", msg.AuthorID,
		"scope", scope,
		"from_pattern", fromPattern,
	)

	if err := d.invoke(ctx, cc, args, fromPattern); err != nil {
		if IsFriendly(err) {
			if _, rerr := cc.Reply(ctx, err.Error()); rerr != nil {
				slog.WarnContext(ctx, "failed to relay friendly error", "command", cmd.Name, "error", rerr)
			}
			return d.settle(cc, &DispatchResult{Status: StatusCompleted, Context: cc})
		}
		return d.fail(ctx, cc, err)
	}

	return d.settle(cc, &DispatchResult{Status: StatusCompleted, Context: cc})
}

// invoke runs the command body, converting panics into errors.
func (d *Dispatcher) invoke(ctx context.Context, cc *Context, args Args, fromPattern bool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in command %s: %v", cc.Command.Name, r)
		}
	}()
	return cc.Command.Run(ctx, cc, args, fromPattern)
}

// checkConstraints verifies guild-only, nsfw, owner-only, and permission
// requirements. A non-nil rejection is the user-facing denial to relay; a
// non-nil err is a checker malfunction and escalates.
func (d *Dispatcher) checkConstraints(ctx context.Context, cc *Context) (rejection, err error) {
	cmd := cc.Command
	msg := cc.Message

	if cmd.GuildOnly && msg.IsDirect() {
		return ErrGuildOnly(cmd.Name), nil
	}
	if cmd.NSFW && !msg.NSFW {
		return ErrNSFW(cmd.Name), nil
	}
	if cmd.OwnerOnly && !d.IsOwner(msg.AuthorID) {
		return ErrOwnerOnly(cmd.Name), nil
	}

	if d.perms == nil || msg.IsDirect() {
		return nil, nil
	}
	if len(cmd.UserPermissions) > 0 && !d.IsOwner(msg.AuthorID) {
		missing, lerr := d.perms.MissingUserPermissions(ctx, msg.ChannelID, msg.AuthorID, cmd.UserPermissions)
		if lerr != nil {
			return nil, fmt.Errorf("user permission lookup for %s: %w", cmd.Name, lerr)
		}
		if len(missing) > 0 {
			return ErrPermissionDenied(cmd.Name, missing), nil
		}
	}
	if len(cmd.ClientPermissions) > 0 {
		missing, lerr := d.perms.MissingClientPermissions(ctx, msg.ChannelID, cmd.ClientPermissions)
		if lerr != nil {
			return nil, fmt.Errorf("client permission lookup for %s: %w", cmd.Name, lerr)
		}
		if len(missing) > 0 {
			return ErrClientPermission(cmd.Name, missing), nil
		}
	}
	return nil, nil
}

// tokenCap computes the tokenizer cap for a command's argument list.
func (d *Dispatcher) tokenCap(cmd *Command) int {
	if cmd.TokenCount > 0 {
		return cmd.TokenCount
	}
	collector := cmd.Collector()
	if collector == nil {
		return 0
	}
	args := collector.Args()
	if len(args) > 0 && args[len(args)-1].Infinite {
		return 0
	}
	return len(args)
}

// fail reports an unexpected error: observers are notified, the user gets a
// generic diagnostic naming the error type, and the dispatch settles.
func (d *Dispatcher) fail(ctx context.Context, cc *Context, err error) *DispatchResult {
	cmd := cc.Command
	slog.ErrorContext(ctx, "command failed unexpectedly",
		"command", cmd.Name,
		"invocation_id", cc.InvocationID.String(),
		"error", err,
	)

	d.inhibitorMu.RLock()
	observers := d.observers
	d.inhibitorMu.RUnlock()
	for _, obs := range observers {
		obs(err, cc)
	}

	text := fmt.Sprintf("An error occurred while running the command: `%T`. You shouldn't ever receive an error like this.", err)
	if d.ownerTag != "" {
		text += " Please contact " + d.ownerTag
		if d.support != "" {
			text += " in " + d.support
		}
		text += "."
	}
	if _, rerr := cc.Reply(ctx, text); rerr != nil {
		slog.WarnContext(ctx, "failed to send error notice", "command", cmd.Name, "error", rerr)
	}
	return d.settle(cc, &DispatchResult{Status: StatusErrored, Context: cc, Err: err})
}

// negativeReply relays a rejection, rate-limited per
// (user, channel, command) so repeated rejected attempts do not spam.
func (d *Dispatcher) negativeReply(ctx context.Context, cc *Context, cmdName string, rejection error) {
	key := cc.Message.AuthorID + "\x00" + cc.Message.ChannelID + "\x00" + cmdName
	now := d.now()

	d.negativeMu.Lock()
	last, seen := d.negatives[key]
	throttled := seen && now.Sub(last) < d.negativeReplyWindow
	if !throttled {
		d.negatives[key] = now
		// Opportunistic cleanup of stale entries.
		for k, t := range d.negatives {
			if now.Sub(t) > d.negativeReplyWindow {
				delete(d.negatives, k)
			}
		}
	}
	d.negativeMu.Unlock()

	if throttled {
		return
	}
	if _, err := cc.Reply(ctx, UserMessage(rejection)); err != nil {
		slog.WarnContext(ctx, "failed to send rejection reply", "command", cmdName, "error", err)
	}
}

// settle finalizes a result and caches the context for the editable window.
func (d *Dispatcher) settle(cc *Context, result *DispatchResult) *DispatchResult {
	now := d.now()
	cc.settle(now)

	d.resultMu.Lock()
	d.results[cc.Message.ID] = &cachedResult{cc: cc, expires: now.Add(d.editableDuration)}
	for id, cached := range d.results {
		if now.After(cached.expires) {
			delete(d.results, id)
		}
	}
	d.resultMu.Unlock()

	return result
}

// peekCached returns the cached context for a message id if still fresh.
func (d *Dispatcher) peekCached(messageID string) *Context {
	d.resultMu.Lock()
	defer d.resultMu.Unlock()

	cached, ok := d.results[messageID]
	if !ok || d.now().After(cached.expires) {
		return nil
	}
	return cached.cc
}

// takeCached removes and returns the cached context for a message id.
func (d *Dispatcher) takeCached(messageID string) *Context {
	d.resultMu.Lock()
	defer d.resultMu.Unlock()

	cached, ok := d.results[messageID]
	if !ok {
		return nil
	}
	delete(d.results, messageID)
	if d.now().After(cached.expires) {
		return nil
	}
	return cached.cc
}

// hydrateScope pulls persisted settings for a scope the first time a message
// from it is seen.
func (d *Dispatcher) hydrateScope(ctx context.Context, msg *Message) {
	if d.provider == nil {
		return
	}
	scope := msg.Scope()

	d.scopeMu.Lock()
	seen := d.seenScopes[scope]
	d.seenScopes[scope] = true
	d.scopeMu.Unlock()

	if seen {
		return
	}
	if err := d.provider.Create(ctx, scope, nil); err != nil {
		slog.WarnContext(ctx, "failed to initialize scope settings", "scope", scope, "error", err)
	}
	d.registry.HydrateScope(scope)
}

func firstToken(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
