// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// recordingResponder captures outbound messages for assertions.
type recordingResponder struct {
	mu     sync.Mutex
	nextID int
	sent   []sentMessage
	edits  []editedMessage
}

type sentMessage struct {
	ChannelID string
	Content   string
	ID        string
}

type editedMessage struct {
	ChannelID string
	MessageID string
	Content   string
}

func newRecordingResponder() *recordingResponder {
	return &recordingResponder{}
}

func (r *recordingResponder) Send(_ context.Context, channelID, content string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	id := fmt.Sprintf("sent-%d", r.nextID)
	r.sent = append(r.sent, sentMessage{ChannelID: channelID, Content: content, ID: id})
	return []string{id}, nil
}

func (r *recordingResponder) SendDirect(ctx context.Context, userID, content string) ([]string, error) {
	return r.Send(ctx, "dm-"+userID, content)
}

func (r *recordingResponder) Edit(_ context.Context, channelID, messageID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.edits = append(r.edits, editedMessage{ChannelID: channelID, MessageID: messageID, Content: content})
	return nil
}

func (r *recordingResponder) sentMessages() []sentMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sentMessage, len(r.sent))
	copy(out, r.sent)
	return out
}

func (r *recordingResponder) editedMessages() []editedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]editedMessage, len(r.edits))
	copy(out, r.edits)
	return out
}

func (r *recordingResponder) lastContent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1].Content
}

// waitForSent polls until the responder has at least n sent messages.
func (r *recordingResponder) waitForSent(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		count := len(r.sent)
		r.mu.Unlock()
		if count >= n {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return false
}

// testMessage builds a guild message with sane defaults.
func testMessage(id, author, channel, content string) *Message {
	return &Message{
		ID:        id,
		AuthorID:  author,
		ChannelID: channel,
		GuildID:   "guild-1",
		Content:   content,
		CreatedAt: time.Now(),
	}
}

// noopRun is a command body that does nothing.
func noopRun(_ context.Context, _ *Context, _ Args, _ bool) error {
	return nil
}

// mustRegisterGroup registers a group or panics; for test fixtures only.
func mustRegisterGroup(r *Registry, id string) *Group {
	g, err := r.RegisterGroup(id, id, false)
	if err != nil {
		panic(err)
	}
	return g
}

func floatPtr(f float64) *float64 { return &f }
