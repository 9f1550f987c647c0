// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// Package keysource resolves the operator's local public key material. The
// first existing candidate wins; candidates are never merged.
package keysource

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoKeySource is returned when none of the candidate files exist. It is
// fatal and must abort before any remote contact.
var ErrNoKeySource = errors.New("no public key source found")

// Candidates returns the ordered list of key source paths for the given
// operator username and home directory:
//
//  1. the system-wide per-user key store
//  2. the operator's own authorized_keys file
//  3. the operator's default public key files (ed25519, then rsa)
func Candidates(operator, home string) []string {
	return []string{
		filepath.Join("/etc/ssh/authorized_keys.d", operator),
		filepath.Join(home, ".ssh", "authorized_keys"),
		filepath.Join(home, ".ssh", "id_ed25519.pub"),
		filepath.Join(home, ".ssh", "id_rsa.pub"),
	}
}

// Resolve returns the raw content of the first existing candidate and the
// path it came from. The content is returned verbatim; parsing happens only
// at reconciliation time on the remote side of the run.
func Resolve(candidates []string) ([]byte, string, error) {
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err == nil {
			return data, path, nil
		}
		if !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read key source %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("%w (checked %s)", ErrNoKeySource, strings.Join(candidates, ", "))
}
