// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/classmate/classmate/internal/command"
	"github.com/classmate/classmate/internal/mapi"
)

func loginInfo(deps Deps) command.CommandInfo {
	return command.CommandInfo{
		Name:        "login",
		Group:       "school",
		Description: "Logs in to the school portal.",
		Details:     "Only use this command in a DM. Your password is sent to the portal and never stored.",
		Format:      "<username> <password>",
		Throttling:  &command.ThrottlingOptions{Usages: 3, Window: time.Minute},
		Args: []command.ArgumentSpec{
			{
				Key:    "username",
				Prompt: "What is your portal username?",
				Type:   "string",
			},
			{
				Key:    "password",
				Prompt: "What is your portal password?",
				Type:   "string",
			},
		},
		Run: func(ctx context.Context, cc *command.Context, args command.Args, _ bool) error {
			if !cc.Message.IsDirect() {
				return command.Friendly("For your own safety, use the `login` command in a DM only. If you already posted your password here, change it now.")
			}

			token, err := deps.API.Login(ctx, args.String("username"), args.String("password"))
			if err != nil {
				if hasCode(err, mapi.CodeAuth) {
					return command.Friendly("Login failed. Check your username and password.")
				}
				if hasCode(err, mapi.CodeUnavailable) {
					return command.Friendly("The school portal is not reachable right now. Try again later.")
				}
				return err
			}

			deps.Sessions.Put(cc.Message.AuthorID, token)
			_, err = cc.Reply(ctx, fmt.Sprintf("Logged in as **%s**. You can now use the school commands.", args.String("username")))
			return err
		},
	}
}

func logoutInfo(deps Deps) command.CommandInfo {
	return command.CommandInfo{
		Name:        "logout",
		Group:       "school",
		Description: "Logs out of the school portal.",
		Run: func(ctx context.Context, cc *command.Context, _ command.Args, _ bool) error {
			if !deps.Sessions.Delete(cc.Message.AuthorID) {
				return command.Friendly("You are not logged in.")
			}
			_, err := cc.Reply(ctx, "Logged out.")
			return err
		},
	}
}

// sessionFor returns the caller's token, or a friendly error telling them to
// log in.
func sessionFor(deps Deps, cc *command.Context) (mapi.Token, error) {
	token, ok := deps.Sessions.Get(cc.Message.AuthorID)
	if !ok {
		return "", command.Friendly("You are not logged in. Use the `login` command in a DM first.")
	}
	return token, nil
}

// mapSessionErr converts expired-session and outage errors into friendly
// replies, dropping the stale token.
func mapSessionErr(deps Deps, cc *command.Context, err error) error {
	if hasCode(err, mapi.CodeSession) || hasCode(err, mapi.CodeAuth) {
		deps.Sessions.Delete(cc.Message.AuthorID)
		return command.Friendly("Your portal session expired. Use the `login` command in a DM to log in again.")
	}
	if hasCode(err, mapi.CodeUnavailable) {
		return command.Friendly("The school portal is not reachable right now. Try again later.")
	}
	return err
}

func homeworkInfo(deps Deps) command.CommandInfo {
	return command.CommandInfo{
		Name:        "homework",
		Aliases:     []string{"hw"},
		Group:       "school",
		Description: "Shows how many homework entries you have per school day.",
		Throttling:  &command.ThrottlingOptions{Usages: 2, Window: 10 * time.Second},
		Run: func(ctx context.Context, cc *command.Context, _ command.Args, _ bool) error {
			token, err := sessionFor(deps, cc)
			if err != nil {
				return err
			}
			counts, err := deps.API.HomeworkCounts(ctx, token)
			if err != nil {
				return mapSessionErr(deps, cc, err)
			}
			_, err = cc.Reply(ctx, "__**Homework**__\n"+mapi.FormatCounts(counts))
			return err
		},
	}
}

func leaderboardInfo(deps Deps) command.CommandInfo {
	return command.CommandInfo{
		Name:        "leaderboard",
		Aliases:     []string{"top", "lb"},
		Group:       "school",
		Description: "Shows the class points leaderboard.",
		Format:      "[count]",
		Examples:    []string{"leaderboard", "leaderboard 5"},
		Throttling:  &command.ThrottlingOptions{Usages: 2, Window: 10 * time.Second},
		Args: []command.ArgumentSpec{
			{
				Key:     "count",
				Prompt:  "How many entries would you like to see?",
				Type:    "integer",
				Min:     floatPtr(1),
				Max:     floatPtr(25),
				Default: 10,
			},
		},
		Run: func(ctx context.Context, cc *command.Context, args command.Args, _ bool) error {
			token, err := sessionFor(deps, cc)
			if err != nil {
				return err
			}
			entries, err := deps.API.Leaderboard(ctx, token)
			if err != nil {
				return mapSessionErr(deps, cc, err)
			}
			if len(entries) == 0 {
				_, err = cc.Reply(ctx, "The leaderboard is empty.")
				return err
			}

			count := args.Int("count")
			if count > len(entries) {
				count = len(entries)
			}
			var b strings.Builder
			b.WriteString("__**Leaderboard**__\n")
			for _, entry := range entries[:count] {
				fmt.Fprintf(&b, "%d. **%s**: %d points\n", entry.Rank, entry.Name, entry.Points)
			}
			_, err = cc.Reply(ctx, strings.TrimRight(b.String(), "\n"))
			return err
		},
	}
}
