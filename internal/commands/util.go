// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classmate/classmate/internal/command"
)

func pingInfo() command.CommandInfo {
	return command.CommandInfo{
		Name:        "ping",
		Group:       "util",
		Description: "Checks the bot's responsiveness.",
		Guarded:     true,
		Throttling:  &command.ThrottlingOptions{Usages: 5, Window: 10 * time.Second},
		Run: func(ctx context.Context, cc *command.Context, _ command.Args, _ bool) error {
			_, err := cc.Reply(ctx, "Pong!")
			return err
		},
	}
}

func helpInfo(deps Deps) command.CommandInfo {
	return command.CommandInfo{
		Name:        "help",
		Aliases:     []string{"commands"},
		Group:       "util",
		Description: "Displays a list of available commands, or detailed information for a specified command.",
		Format:      "[command]",
		Examples:    []string{"help", "help prefix"},
		Guarded:     true,
		Args: []command.ArgumentSpec{
			{
				Key:     "command",
				Prompt:  "Which command would you like to view the help for?",
				Type:    "string",
				Default: "",
			},
		},
		Run: func(ctx context.Context, cc *command.Context, args command.Args, _ bool) error {
			query := strings.TrimSpace(args.String("command"))
			prefix := deps.Dispatcher.Prefix(cc.Message.Scope())

			if query == "" || strings.EqualFold(query, "all") {
				listing := commandListing(cc.Registry(), prefix, strings.EqualFold(query, "all"))
				if _, err := cc.Direct(ctx, listing); err != nil {
					return err
				}
				if !cc.Message.IsDirect() {
					_, err := cc.Reply(ctx, "Sent you a DM with command information.")
					return err
				}
				return nil
			}

			found := cc.Registry().FindCommands(query, false, cc.Message)
			switch {
			case len(found) == 0:
				return command.Friendly("Unable to identify command. Use the `help` command with no arguments to view the full list.")
			case len(found) > 1:
				return command.Friendly("Multiple commands found. Please be more specific.")
			}
			_, err := cc.Reply(ctx, commandDetail(found[0], prefix))
			return err
		},
	}
}

func commandListing(registry *command.Registry, prefix string, includeHidden bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "To run a command, use `%s<command>` or mention the bot. ", prefix)
	b.WriteString("Use `help <command>` to view detailed information about a specific command.\n")
	for _, group := range registry.Groups() {
		cmds := group.Commands()
		visible := cmds[:0:0]
		for _, cmd := range cmds {
			if includeHidden || !cmd.Hidden {
				visible = append(visible, cmd)
			}
		}
		if len(visible) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n__%s__\n", group.Name)
		for _, cmd := range visible {
			fmt.Fprintf(&b, "**%s:** %s\n", cmd.Name, cmd.Description)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func commandDetail(cmd *command.Command, prefix string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Command:** `%s`", cmd.Usage(prefix))
	if cmd.Description != "" {
		fmt.Fprintf(&b, "\n%s", cmd.Description)
	}
	if cmd.Details != "" {
		fmt.Fprintf(&b, "\n**Details:** %s", cmd.Details)
	}
	if len(cmd.Aliases) > 0 {
		fmt.Fprintf(&b, "\n**Aliases:** %s", strings.Join(cmd.Aliases, ", "))
	}
	if len(cmd.Examples) > 0 {
		fmt.Fprintf(&b, "\n**Examples:** %s%s", prefix, strings.Join(cmd.Examples, ", "+prefix))
	}
	return b.String()
}

func prefixInfo(deps Deps) command.CommandInfo {
	return command.CommandInfo{
		Name:        "prefix",
		Group:       "util",
		Description: "Shows or sets the command prefix.",
		Format:      "[prefix/\"default\"/\"none\"]",
		Examples:    []string{"prefix", "prefix -", "prefix default", "prefix none"},
		Guarded:     true,
		Args: []command.ArgumentSpec{
			{
				Key:     "prefix",
				Prompt:  "What would you like to set the bot's prefix to?",
				Type:    "string",
				Max:     floatPtr(15),
				Default: "",
			},
		},
		Run: func(ctx context.Context, cc *command.Context, args command.Args, _ bool) error {
			scope := cc.Message.Scope()
			raw := args.String("prefix")

			if raw == "" {
				current := deps.Dispatcher.Prefix(scope)
				if current == "" {
					_, err := cc.Reply(ctx, "There is no command prefix. Commands run by mentioning the bot.")
					return err
				}
				_, err := cc.Reply(ctx, fmt.Sprintf("The command prefix is `%s`.", current))
				return err
			}

			if !isAuthorized(ctx, cc, deps) {
				return command.Friendly("Only administrators may change the command prefix.")
			}

			var newPrefix string
			switch strings.ToLower(raw) {
			case "default":
				newPrefix = deps.DefaultPrefix
			case "none":
				newPrefix = ""
			default:
				newPrefix = raw
			}
			if err := deps.Dispatcher.SetPrefix(ctx, scope, newPrefix); err != nil {
				return err
			}
			if newPrefix == "" {
				_, err := cc.Reply(ctx, "Removed the command prefix entirely. Commands run by mentioning the bot.")
				return err
			}
			_, err := cc.Reply(ctx, fmt.Sprintf("Set the command prefix to `%s`.", newPrefix))
			return err
		},
	}
}

func targetArg() command.ArgumentSpec {
	return command.ArgumentSpec{
		Key:    "target",
		Label:  "command/group",
		Prompt: "Which command or group would you like to identify?",
		Type:   "command|group",
	}
}

func describeTarget(target any) string {
	switch v := target.(type) {
	case *command.Command:
		return fmt.Sprintf("`%s` command", v.Name)
	case *command.Group:
		return fmt.Sprintf("`%s` group", v.Name)
	default:
		return "target"
	}
}

func enableInfo(deps Deps, enable bool) command.CommandInfo {
	name, description := "enable", "Enables a command or command group."
	aliases := []string{"enable-command", "enable-group"}
	if !enable {
		name, description = "disable", "Disables a command or command group."
		aliases = []string{"disable-command", "disable-group"}
	}
	return command.CommandInfo{
		Name:        name,
		Aliases:     aliases,
		Group:       "util",
		Description: description,
		Format:      "<command/group>",
		Guarded:     true,
		Args:        []command.ArgumentSpec{targetArg()},
		Run: func(ctx context.Context, cc *command.Context, args command.Args, _ bool) error {
			if !isAuthorized(ctx, cc, deps) {
				return command.Friendly("Only administrators may enable or disable commands.")
			}

			scope := cc.Message.Scope()
			target := args["target"]

			var err error
			switch v := target.(type) {
			case *command.Command:
				if v.IsEnabledIn(scope) == enable {
					return command.Friendly("The %s is already %s.", describeTarget(target), enabledWord(enable))
				}
				err = v.SetEnabledIn(ctx, scope, enable)
			case *command.Group:
				if cc.Registry().GroupEnabledIn(v.ID, scope) == enable {
					return command.Friendly("The %s is already %s.", describeTarget(target), enabledWord(enable))
				}
				err = cc.Registry().SetGroupEnabled(ctx, v.ID, scope, enable)
			}
			if hasCode(err, command.CodeGuarded) {
				// An expected rejection, not a malfunction.
				return command.Friendly("%s", command.UserMessage(err))
			}
			if err != nil {
				return err
			}
			_, err = cc.Reply(ctx, fmt.Sprintf("%s the %s.", capitalize(enabledWord(enable)), describeTarget(target)))
			return err
		},
	}
}

func enabledWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func groupsInfo(deps Deps) command.CommandInfo {
	return command.CommandInfo{
		Name:        "groups",
		Aliases:     []string{"list-groups", "show-groups"},
		Group:       "util",
		Description: "Lists all command groups.",
		Guarded:     true,
		Run: func(ctx context.Context, cc *command.Context, _ command.Args, _ bool) error {
			scope := cc.Message.Scope()
			var b strings.Builder
			b.WriteString("__**Groups**__\n")
			for _, group := range cc.Registry().Groups() {
				fmt.Fprintf(&b, "**%s:** %s\n", group.Name, capitalize(enabledWord(cc.Registry().GroupEnabledIn(group.ID, scope))))
			}
			_, err := cc.Reply(ctx, strings.TrimRight(b.String(), "\n"))
			return err
		},
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func floatPtr(v float64) *float64 { return &v }
