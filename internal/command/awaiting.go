// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package command

import (
	"sync"
)

// awaitKey identifies one outstanding prompt cycle.
type awaitKey struct {
	userID    string
	channelID string
}

// awaitingSet tracks (user, channel) pairs with an in-flight argument-prompt
// cycle. At most one registration may exist per pair; set/unset is atomic
// relative to Deliver so the dispatcher's filtering check never races a
// prompt registration.
type awaitingSet struct {
	mu    sync.Mutex
	cells map[awaitKey]chan *Message
}

func newAwaitingSet() *awaitingSet {
	return &awaitingSet{cells: make(map[awaitKey]chan *Message)}
}

// Register claims the (user, channel) pair and returns the channel prompt
// replies will arrive on. Registering a pair that is already claimed is an
// error.
func (a *awaitingSet) Register(userID, channelID string) (<-chan *Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := awaitKey{userID: userID, channelID: channelID}
	if _, exists := a.cells[key]; exists {
		return nil, ErrAwaitConflict(userID, channelID)
	}

	// Buffer one reply so a fast answer is not lost between prompts.
	ch := make(chan *Message, 1)
	a.cells[key] = ch
	return ch, nil
}

// Unregister releases the pair. Safe to call for an unclaimed pair.
func (a *awaitingSet) Unregister(userID, channelID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.cells, awaitKey{userID: userID, channelID: channelID})
}

// Deliver routes a message to the pair's in-flight cycle if one exists.
// Returns true when the message was consumed by (or dropped in favor of) a
// prompt cycle and must not be dispatched normally. A message arriving while
// the cycle is still validating the previous reply is dropped.
func (a *awaitingSet) Deliver(msg *Message) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	ch, exists := a.cells[awaitKey{userID: msg.AuthorID, channelID: msg.ChannelID}]
	if !exists {
		return false
	}
	select {
	case ch <- msg:
	default:
	}
	return true
}

// Awaiting reports whether the pair currently has an in-flight cycle.
func (a *awaitingSet) Awaiting(userID, channelID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, exists := a.cells[awaitKey{userID: userID, channelID: channelID}]
	return exists
}
