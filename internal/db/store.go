// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "github.com/toeirei/foothold/internal/model"

// Store defines the interface for all database operations in Foothold.
// This allows for multiple database backends to be implemented.
type Store interface {
	// Host Key methods
	GetKnownHostKey(hostname string) (string, error)
	AddKnownHostKey(hostname, key string) error

	// Audit Log methods
	LogAction(action string, details string) error
	GetAllAuditLogEntries() ([]model.AuditLogModel, error)

	Close() error
}

// store is the package-level Store used by the helper functions below. It is
// set by InitDB and may be swapped by tests via SetStore.
var store Store

// SetStore replaces the package-level store. Intended for tests.
func SetStore(s Store) { store = s }

// IsInitialized reports whether InitDB has completed successfully.
func IsInitialized() bool { return store != nil }

// GetKnownHostKey retrieves the pinned public key for a given hostname.
// An empty string means the host has never been seen.
func GetKnownHostKey(hostname string) (string, error) {
	return store.GetKnownHostKey(hostname)
}

// AddKnownHostKey pins a host key, replacing any previous entry.
func AddKnownHostKey(hostname, key string) error {
	return store.AddKnownHostKey(hostname, key)
}

// LogAction records an entry in the audit log.
func LogAction(action, details string) error {
	if store == nil {
		return nil
	}
	return store.LogAction(action, details)
}

// GetAllAuditLogEntries returns the audit history, newest first.
func GetAllAuditLogEntries() ([]model.AuditLogModel, error) {
	return store.GetAllAuditLogEntries()
}
