// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package keysource

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCandidates_OrderAndPaths(t *testing.T) {
	got := Candidates("op", "/home/op")
	want := []string{
		filepath.Join("/etc/ssh/authorized_keys.d", "op"),
		filepath.Join("/home/op", ".ssh", "authorized_keys"),
		filepath.Join("/home/op", ".ssh", "id_ed25519.pub"),
		filepath.Join("/home/op", ".ssh", "id_rsa.pub"),
	}
	if len(got) != len(want) {
		t.Fatalf("unexpected candidate count: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestResolve_FirstExistingWins(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "authorized_keys")
	second := filepath.Join(dir, "id_ed25519.pub")
	if err := os.WriteFile(first, []byte("ssh-ed25519 AAA first\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("ssh-ed25519 BBB second\n"), 0600); err != nil {
		t.Fatal(err)
	}

	data, source, err := Resolve([]string{
		filepath.Join(dir, "missing"),
		first,
		second,
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if source != first {
		t.Fatalf("expected first existing candidate to win, got %s", source)
	}
	if string(data) != "ssh-ed25519 AAA first\n" {
		t.Fatalf("unexpected payload: %q", data)
	}
}

func TestResolve_ContentReturnedVerbatim(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys")
	raw := "# comment\n\nssh-ed25519 AAA one\nnot even a key\n"
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatal(err)
	}

	data, _, err := Resolve([]string{path})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if string(data) != raw {
		t.Fatalf("payload was not returned verbatim: %q", data)
	}
}

func TestResolve_NoCandidateExists(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "nope")

	_, _, err := Resolve([]string{missing})
	if !errors.Is(err, ErrNoKeySource) {
		t.Fatalf("expected ErrNoKeySource, got: %v", err)
	}
	if !strings.Contains(err.Error(), missing) {
		t.Fatalf("error should list the checked paths: %v", err)
	}
}
