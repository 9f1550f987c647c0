// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// Package provision contains the remote-side logic of a bootstrap run: the
// account state machine, the authorized_keys reconciliation engine and the
// sshd alignment step. It operates on a Host, the narrow surface of the one
// authenticated connection held by the deploy package, so the whole engine
// runs against fakes in tests.
package provision

import (
	"errors"
	"os"
	"strings"
)

// CommandRunner executes commands on the remote host.
type CommandRunner interface {
	// Output runs a command and returns its stdout. A non-zero exit must be
	// returned as an error from which the exit status is recoverable via
	// an ExitStatus() int method in the error chain.
	Output(cmd string) ([]byte, error)
}

// RemoteFS is the file surface of the remote host.
type RemoteFS interface {
	// ReadFile returns a file's content; a missing file satisfies
	// errors.Is(err, os.ErrNotExist).
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	MkdirAll(path string, perm os.FileMode) error
	Chmod(path string, mode os.FileMode) error
}

// Host is everything the provisioning engine needs from the transport.
type Host interface {
	CommandRunner
	RemoteFS
}

// exitStatuser matches *ssh.ExitError and the test fakes.
type exitStatuser interface {
	ExitStatus() int
}

// exitStatus extracts a remote exit status from an error chain.
func exitStatus(err error) (int, bool) {
	var es exitStatuser
	if errors.As(err, &es) {
		return es.ExitStatus(), true
	}
	return 0, false
}

// quote wraps s in single quotes for safe interpolation into a remote
// command line.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
