// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Classmate Contributors

package commands

import (
	"sync"

	"github.com/classmate/classmate/internal/mapi"
)

// SessionStore keeps the MAPI token of each logged-in user. Tokens live in
// memory only; a restart logs everyone out.
type SessionStore struct {
	mu     sync.RWMutex
	tokens map[string]mapi.Token
}

// NewSessionStore returns an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{tokens: make(map[string]mapi.Token)}
}

// Get returns the token stored for userID.
func (s *SessionStore) Get(userID string) (mapi.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	token, ok := s.tokens[userID]
	return token, ok
}

// Put stores or replaces the token for userID.
func (s *SessionStore) Put(userID string, token mapi.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[userID] = token
}

// Delete removes userID's token. Reports whether one was present.
func (s *SessionStore) Delete(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.tokens[userID]
	delete(s.tokens, userID)
	return ok
}
