// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Error codes for dispatch failures.
const (
	CodeUnknownCommand   = "UNKNOWN_COMMAND"
	CodeDisabled         = "COMMAND_DISABLED"
	CodeBlocked          = "COMMAND_BLOCKED"
	CodeGuildOnly        = "GUILD_ONLY"
	CodeNSFW             = "NSFW_ONLY"
	CodeOwnerOnly        = "OWNER_ONLY"
	CodePermissionDenied = "PERMISSION_DENIED"
	CodeClientPermission = "CLIENT_PERMISSION"
	CodeThrottled        = "THROTTLED"
	CodeCancelled        = "CANCELLED"
	CodeFriendly         = "FRIENDLY"
	CodeInvalidSpec      = "INVALID_SPEC"
	CodeAwaitConflict    = "AWAIT_CONFLICT"
	CodeProviderFailure  = "PROVIDER_FAILURE"
	CodeGuarded          = "GUARDED"
)

// ErrUnknownCommand creates an error for an unrecognized command name.
func ErrUnknownCommand(name string) error {
	return oops.Code(CodeUnknownCommand).
		With("command", name).
		Errorf("unknown command: %s", name)
}

// ErrDisabled creates an error for a command or group disabled in scope.
func ErrDisabled(name, scope string) error {
	return oops.Code(CodeDisabled).
		With("command", name).
		With("scope", scope).
		Errorf("command %s is disabled", name)
}

// ErrGuarded creates an error for an attempt to disable a guarded command or
// group.
func ErrGuarded(kind, name string) error {
	return oops.Code(CodeGuarded).
		With("kind", kind).
		With("name", name).
		Errorf("%s %s is guarded and cannot be disabled", kind, name)
}

// ErrBlocked creates an error for an inhibitor veto.
func ErrBlocked(name, reason string) error {
	return oops.Code(CodeBlocked).
		With("command", name).
		With("reason", reason).
		Errorf("command %s blocked: %s", name, reason)
}

// ErrGuildOnly creates an error for a guild-only command used elsewhere.
func ErrGuildOnly(name string) error {
	return oops.Code(CodeGuildOnly).
		With("command", name).
		Errorf("command %s can only be used in a server", name)
}

// ErrNSFW creates an error for an nsfw command used in a safe channel.
func ErrNSFW(name string) error {
	return oops.Code(CodeNSFW).
		With("command", name).
		Errorf("command %s can only be used in age-restricted channels", name)
}

// ErrOwnerOnly creates an error for an owner-only command used by a
// non-owner.
func ErrOwnerOnly(name string) error {
	return oops.Code(CodeOwnerOnly).
		With("command", name).
		Errorf("command %s can only be used by the bot owner", name)
}

// ErrPermissionDenied creates an error for missing user permissions.
func ErrPermissionDenied(name string, missing []string) error {
	return oops.Code(CodePermissionDenied).
		With("command", name).
		With("missing", missing).
		Errorf("permission denied for command %s", name)
}

// ErrClientPermission creates an error for missing bot permissions.
func ErrClientPermission(name string, missing []string) error {
	return oops.Code(CodeClientPermission).
		With("command", name).
		With("missing", missing).
		Errorf("missing client permissions for command %s", name)
}

// ErrThrottled creates an error for a throttled invocation.
func ErrThrottled(name string, remainingSeconds float64) error {
	return oops.Code(CodeThrottled).
		With("command", name).
		With("remaining_seconds", remainingSeconds).
		Errorf("command %s throttled", name)
}

// ErrCancelled creates an error for a cancelled argument-collection cycle.
func ErrCancelled(name string, reason CancelReason) error {
	return oops.Code(CodeCancelled).
		With("command", name).
		With("reason", string(reason)).
		Errorf("command %s cancelled (%s)", name, reason)
}

// ErrAwaitConflict creates an error for a second prompt registration on the
// same (user, channel) pair.
func ErrAwaitConflict(userID, channelID string) error {
	return oops.Code(CodeAwaitConflict).
		With("user_id", userID).
		With("channel_id", channelID).
		Errorf("a prompt cycle is already in flight for this user and channel")
}

// ErrInvalidSpec creates an error for a malformed command or argument
// declaration. These surface at registration time, never at dispatch time.
func ErrInvalidSpec(format string, args ...any) error {
	return oops.Code(CodeInvalidSpec).Errorf(format, args...)
}

// Friendly creates an error whose message is relayed verbatim to the user
// with no further escalation. Command bodies raise these for expected
// failure conditions.
func Friendly(format string, args ...any) error {
	return oops.Code(CodeFriendly).Errorf(format, args...)
}

// IsFriendly reports whether err carries the friendly code.
func IsFriendly(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == CodeFriendly
}

// UserMessage extracts a user-facing message from a dispatch error.
func UserMessage(err error) string {
	const fallback = "Something went wrong. Please try again later."
	if err == nil {
		return fallback
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return fallback
	}

	ctx := oopsErr.Context()
	name, _ := ctx["command"].(string)

	switch oopsErr.Code() {
	case CodeUnknownCommand:
		return fmt.Sprintf("Unknown command. Use the `help` command to see the full list. (tried: `%s`)", name)
	case CodeDisabled:
		return fmt.Sprintf("The `%s` command is disabled here.", name)
	case CodeGuildOnly:
		return fmt.Sprintf("The `%s` command can only be used in a server.", name)
	case CodeNSFW:
		return fmt.Sprintf("The `%s` command can only be used in age-restricted channels.", name)
	case CodeOwnerOnly:
		return fmt.Sprintf("The `%s` command can only be used by the bot owner.", name)
	case CodePermissionDenied:
		if missing, ok := ctx["missing"].([]string); ok && len(missing) > 0 {
			return fmt.Sprintf("The `%s` command requires you to have the %s permission.", name, strings.Join(missing, ", "))
		}
		return fmt.Sprintf("You do not have permission to use the `%s` command.", name)
	case CodeClientPermission:
		if missing, ok := ctx["missing"].([]string); ok && len(missing) > 0 {
			return fmt.Sprintf("I need the %s permission for the `%s` command to work.", strings.Join(missing, ", "), name)
		}
		return fmt.Sprintf("I am missing permissions for the `%s` command.", name)
	case CodeThrottled:
		if remaining, ok := ctx["remaining_seconds"].(float64); ok {
			return fmt.Sprintf("You may not use the `%s` command again for another %.1f seconds.", name, remaining)
		}
		return fmt.Sprintf("The `%s` command is throttled. Try again shortly.", name)
	case CodeCancelled:
		return "Cancelled command."
	case CodeFriendly:
		return oopsErr.Error()
	case CodeGuarded:
		if n, ok := ctx["name"].(string); ok {
			return fmt.Sprintf("`%s` is guarded and cannot be disabled.", n)
		}
		return "That command is guarded and cannot be disabled."
	case CodeBlocked:
		if reason, ok := ctx["reason"].(string); ok && reason != "" {
			return reason
		}
		return "That command cannot be used right now."
	default:
		return fallback
	}
}
