// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

// Package bot wires the command engine to the Discord gateway.
package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/samber/oops"
)

// MaxMessageLength is Discord's content limit per message.
const MaxMessageLength = 2000

// messageSender is the slice of discordgo.Session the responder needs.
type messageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
}

// Responder implements command.Responder on a Discord session. Content
// longer than the platform limit is split across messages, preferring line
// and word boundaries.
type Responder struct {
	session messageSender
}

// NewResponder wraps a session.
func NewResponder(session messageSender) *Responder {
	return &Responder{session: session}
}

// Send posts content to a channel, splitting as needed. Returns the ids of
// all messages sent.
func (r *Responder) Send(ctx context.Context, channelID, content string) ([]string, error) {
	var ids []string
	for _, chunk := range SplitContent(content, MaxMessageLength) {
		if err := ctx.Err(); err != nil {
			return ids, err
		}
		msg, err := r.session.ChannelMessageSend(channelID, chunk)
		if err != nil {
			return ids, oops.Code("DISCORD_SEND_FAILED").With("channel_id", channelID).Wrap(err)
		}
		ids = append(ids, msg.ID)
	}
	return ids, nil
}

// SendDirect posts content to a user's DM channel, creating it on demand.
func (r *Responder) SendDirect(ctx context.Context, userID, content string) ([]string, error) {
	channel, err := r.session.UserChannelCreate(userID)
	if err != nil {
		return nil, oops.Code("DISCORD_DM_FAILED").With("user_id", userID).Wrap(err)
	}
	return r.Send(ctx, channel.ID, content)
}

// Edit replaces a previously sent message's content. Oversized replacement
// content is truncated rather than split; an edit can only touch one message.
func (r *Responder) Edit(_ context.Context, channelID, messageID, content string) error {
	if len(content) > MaxMessageLength {
		content = content[:MaxMessageLength]
	}
	if _, err := r.session.ChannelMessageEdit(channelID, messageID, content); err != nil {
		return oops.Code("DISCORD_EDIT_FAILED").
			With("channel_id", channelID).
			With("message_id", messageID).
			Wrap(err)
	}
	return nil
}

// Typing shows the typing indicator in the channel. Discord clears it on
// the next message or after a few seconds.
func (r *Responder) Typing(_ context.Context, channelID string) error {
	if err := r.session.ChannelTyping(channelID); err != nil {
		return oops.Code("DISCORD_TYPING_FAILED").With("channel_id", channelID).Wrap(err)
	}
	return nil
}

// SplitContent cuts content into chunks of at most limit bytes, breaking at
// the last newline before the limit, then the last space, then hard.
func SplitContent(content string, limit int) []string {
	if content == "" {
		return []string{""}
	}

	var chunks []string
	for len(content) > limit {
		cut := strings.LastIndex(content[:limit], "\n")
		if cut <= 0 {
			cut = strings.LastIndex(content[:limit], " ")
		}
		if cut <= 0 {
			cut = limit
		}
		chunks = append(chunks, strings.TrimRight(content[:cut], "\n "))
		content = strings.TrimLeft(content[cut:], "\n ")
	}
	if content != "" {
		chunks = append(chunks, content)
	}
	return chunks
}
