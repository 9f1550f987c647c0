// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// Package state provides a secure, in-memory cache for transient secrets
// that need to be shared between different parts of the application, such as
// a private key passphrase entered once and reused by the TUI.
package state

import "sync"

// PassphraseCache is a concurrency-safe, in-memory mailbox for a private key
// passphrase. It uses a byte slice instead of a string so the sensitive data
// can be explicitly zeroed after use.
var PassphraseCache = &secretMailbox{}

type secretMailbox struct {
	value []byte
	mu    sync.RWMutex
}

// Set stores a copy of the secret, overwriting any existing value.
func (s *secretMailbox) Set(secret []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if secret == nil {
		s.value = nil
		return
	}
	s.value = make([]byte, len(secret))
	copy(s.value, secret)
}

// Get retrieves a copy of the secret. The caller is responsible for zeroing
// the returned slice after use.
func (s *secretMailbox) Get() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.value == nil {
		return nil
	}
	out := make([]byte, len(s.value))
	copy(out, s.value)
	return out
}

// Clear wipes the secret from the cache memory.
func (s *secretMailbox) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.value {
		s.value[i] = 0
	}
	s.value = nil
}
