// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent    []string
	edits   map[string]string
	sendErr error
	dmUser  string
	typing  []string
}

func newFakeSender() *fakeSender {
	return &fakeSender{edits: map[string]string{}}
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, content)
	return &discordgo.Message{ID: fmt.Sprintf("sent-%d", len(f.sent)), ChannelID: channelID}, nil
}

func (f *fakeSender) ChannelMessageEdit(channelID, messageID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.edits[messageID] = content
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

func (f *fakeSender) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.dmUser = recipientID
	return &discordgo.Channel{ID: "dm-" + recipientID, Type: discordgo.ChannelTypeDM}, nil
}

func (f *fakeSender) ChannelTyping(channelID string, _ ...discordgo.RequestOption) error {
	f.typing = append(f.typing, channelID)
	return f.sendErr
}

func TestSplitContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
		limit   int
		want    []string
	}{
		{
			name:    "short content untouched",
			content: "hello",
			limit:   10,
			want:    []string{"hello"},
		},
		{
			name:    "empty content sends one empty message",
			content: "",
			limit:   10,
			want:    []string{""},
		},
		{
			name:    "splits at newline before limit",
			content: "first line\nsecond line",
			limit:   15,
			want:    []string{"first line", "second line"},
		},
		{
			name:    "splits at space when no newline",
			content: "alpha beta gamma",
			limit:   12,
			want:    []string{"alpha beta", "gamma"},
		},
		{
			name:    "hard split when no boundary",
			content: "abcdefghij",
			limit:   4,
			want:    []string{"abcd", "efgh", "ij"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SplitContent(tc.content, tc.limit))
		})
	}
}

func TestSplitContent_ChunksWithinLimit(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&sb, "line number %d with some padding text\n", i)
	}
	for _, chunk := range SplitContent(sb.String(), MaxMessageLength) {
		assert.LessOrEqual(t, len(chunk), MaxMessageLength)
		assert.NotEmpty(t, chunk)
	}
}

func TestResponder_Send(t *testing.T) {
	sender := newFakeSender()
	r := NewResponder(sender)

	ids, err := r.Send(context.Background(), "chan-1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, []string{"sent-1"}, ids)
	assert.Equal(t, []string{"hello there"}, sender.sent)
}

func TestResponder_SendSplitsLongContent(t *testing.T) {
	sender := newFakeSender()
	r := NewResponder(sender)

	content := strings.Repeat("word ", 900) // ~4500 chars
	ids, err := r.Send(context.Background(), "chan-1", content)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Len(t, sender.sent, 3)
}

func TestResponder_SendError(t *testing.T) {
	sender := newFakeSender()
	sender.sendErr = errors.New("rate limited")
	r := NewResponder(sender)

	_, err := r.Send(context.Background(), "chan-1", "hello")
	require.Error(t, err)
	assert.ErrorContains(t, err, "rate limited")
}

func TestResponder_SendDirect(t *testing.T) {
	sender := newFakeSender()
	r := NewResponder(sender)

	ids, err := r.SendDirect(context.Background(), "user-1", "psst")
	require.NoError(t, err)
	assert.Equal(t, []string{"sent-1"}, ids)
	assert.Equal(t, "user-1", sender.dmUser)
}

func TestResponder_Edit(t *testing.T) {
	sender := newFakeSender()
	r := NewResponder(sender)

	require.NoError(t, r.Edit(context.Background(), "chan-1", "msg-1", "updated"))
	assert.Equal(t, "updated", sender.edits["msg-1"])
}

func TestResponder_EditTruncatesOversizedContent(t *testing.T) {
	sender := newFakeSender()
	r := NewResponder(sender)

	require.NoError(t, r.Edit(context.Background(), "chan-1", "msg-1", strings.Repeat("x", 3000)))
	assert.Len(t, sender.edits["msg-1"], MaxMessageLength)
}

func TestResponder_Typing(t *testing.T) {
	sender := newFakeSender()
	r := NewResponder(sender)

	require.NoError(t, r.Typing(context.Background(), "chan-1"))
	assert.Equal(t, []string{"chan-1"}, sender.typing)

	sender.sendErr = errors.New("rate limited")
	require.Error(t, r.Typing(context.Background(), "chan-1"))
}
