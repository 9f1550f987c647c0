// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// Package model defines the shared data types passed between the CLI, the
// TUI, the transport and the provisioning engine.
package model

import (
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// Request describes one bootstrap invocation against a single host. It is
// built once at the entry point and threaded through the call graph
// unchanged; the remote-side steps read it instead of relying on textual
// substitution.
type Request struct {
	Host     string // target host, "host" or "host:port"
	Username string // account to provision on the remote host
	Login    string // principal for the SSH connection (normally root)
	Force    bool   // reconcile keys even when the account already exists
	Align    bool   // rewire sshd's authorized-keys lookup and restart it
	Payload  []byte // resolved public key material, opaque to the transport
}

// String returns the user@host representation of the request target.
func (r Request) String() string {
	return fmt.Sprintf("%s@%s", r.Username, r.Host)
}

// Report summarizes what a bootstrap run changed on the remote host.
type Report struct {
	Created        bool // the account transitioned absent -> present
	HomeKeysAdded  int  // lines appended to ~user/.ssh/authorized_keys
	StoreKeysAdded int  // lines appended to the system-wide per-user store
	StoreTouched   bool // the system-wide store was reconciled at all
	Aligned        bool // sshd_config was rewritten
	Restarted      bool // the SSH daemon restart was confirmed

	// Warnings collects degraded-but-not-fatal outcomes, e.g. the daemon
	// restart failing after the configuration was already written.
	Warnings []string
}

// KnownHostModel maps the known_hosts table: the SSH host key pinned for a
// host on first contact.
type KnownHostModel struct {
	bun.BaseModel `bun:"table:known_hosts"`
	Hostname      string `bun:"hostname,pk"`
	Key           string `bun:"key,notnull"`
}

// AuditLogModel maps the audit_log table.
type AuditLogModel struct {
	bun.BaseModel `bun:"table:audit_log"`
	ID            int64     `bun:"id,pk,autoincrement"`
	Timestamp     time.Time `bun:"timestamp,notnull"`
	Action        string    `bun:"action,notnull"`
	Details       string    `bun:"details"`
}
