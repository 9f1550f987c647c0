// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package bootstrap

import (
	"errors"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/toeirei/foothold/internal/keysource"
	"github.com/toeirei/foothold/internal/model"
	"github.com/toeirei/foothold/internal/testutil"
)

const (
	testKeyA = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA op@laptop"
	testKeyB = "ssh-ed25519 AAAAC3NzaC1lZDI1NTE5AAAAIBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB op@desktop"
)

// fakeRemote adapts a FakeHost to the connection surface the runner needs.
type fakeRemote struct {
	*testutil.FakeHost
	host   string
	closed bool
}

func (f *fakeRemote) Host() string { return f.host }
func (f *fakeRemote) Close()       { f.closed = true }

// setOperator points the local key resolution at a throwaway home directory
// and restores the hooks on cleanup.
func setOperator(t *testing.T, home string) {
	t.Helper()
	origEuid := geteuidFunc
	origUser := currentUser
	geteuidFunc = func() int { return 1000 }
	currentUser = func() (*user.User, error) {
		return &user.User{Username: "op", HomeDir: home}, nil
	}
	t.Cleanup(func() {
		geteuidFunc = origEuid
		currentUser = origUser
	})
}

func writeOperatorKeys(t *testing.T, home, content string) {
	t.Helper()
	sshDir := filepath.Join(home, ".ssh")
	if err := os.MkdirAll(sshDir, 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sshDir, "authorized_keys"), []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
}

func TestResolvePayload_RefusesRoot(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("no euid on windows")
	}
	orig := geteuidFunc
	geteuidFunc = func() int { return 0 }
	defer func() { geteuidFunc = orig }()

	_, _, err := ResolvePayload()
	if !errors.Is(err, ErrOperatorIsRoot) {
		t.Fatalf("expected ErrOperatorIsRoot, got: %v", err)
	}
}

func TestResolvePayload_ReadsOperatorKeys(t *testing.T) {
	home := t.TempDir()
	setOperator(t, home)
	writeOperatorKeys(t, home, testKeyA+"\n")

	payload, source, err := ResolvePayload()
	if err != nil {
		t.Fatalf("ResolvePayload failed: %v", err)
	}
	if string(payload) != testKeyA+"\n" {
		t.Fatalf("unexpected payload: %q", payload)
	}
	if source != filepath.Join(home, ".ssh", "authorized_keys") {
		t.Fatalf("unexpected source: %s", source)
	}
}

func TestResolvePayload_NoKeyMaterial(t *testing.T) {
	setOperator(t, t.TempDir())

	_, _, err := ResolvePayload()
	if !errors.Is(err, keysource.ErrNoKeySource) {
		t.Fatalf("expected ErrNoKeySource, got: %v", err)
	}
}

func TestRun_EndToEndOverFakeConnection(t *testing.T) {
	home := t.TempDir()
	setOperator(t, home)
	writeOperatorKeys(t, home, testKeyA+"\n"+testKeyB+"\n")

	remote := &fakeRemote{FakeHost: testutil.NewFakeHost(), host: "web01"}
	remote.Respond("getent passwd 'alice'", "", &testutil.FakeExitError{Status: 2})
	remote.Respond("getent passwd 'alice'", "alice:x:1001:1001:Alice:/home/alice:/bin/bash", nil)

	origConnect := connectFunc
	connectFunc = func(host, login, identity string, passphrase []byte) (remoteHost, error) {
		if host != "web01" || login != "root" {
			t.Fatalf("unexpected connection target: %s as %s", host, login)
		}
		return remote, nil
	}
	defer func() { connectFunc = origConnect }()

	req := model.Request{Host: "web01", Username: "alice", Login: "root"}
	report, err := Run(req, Options{NoSnapshot: true})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Created || report.HomeKeysAdded != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if got := string(remote.Files["/home/alice/.ssh/authorized_keys"].Data); got != testKeyA+"\n"+testKeyB+"\n" {
		t.Fatalf("keys not installed: %q", got)
	}
	if !remote.closed {
		t.Fatalf("connection not closed after the run")
	}
}

func TestRun_NoKeySourceNeverConnects(t *testing.T) {
	setOperator(t, t.TempDir())

	origConnect := connectFunc
	connected := false
	connectFunc = func(host, login, identity string, passphrase []byte) (remoteHost, error) {
		connected = true
		return nil, errors.New("should not happen")
	}
	defer func() { connectFunc = origConnect }()

	_, err := Run(model.Request{Host: "web01", Username: "alice", Login: "root"}, Options{})
	if !errors.Is(err, keysource.ErrNoKeySource) {
		t.Fatalf("expected ErrNoKeySource, got: %v", err)
	}
	if connected {
		t.Fatalf("a machine without key material must never touch the remote host")
	}
}

func TestRun_ConnectionFailure(t *testing.T) {
	home := t.TempDir()
	setOperator(t, home)
	writeOperatorKeys(t, home, testKeyA+"\n")

	origConnect := connectFunc
	connectFunc = func(host, login, identity string, passphrase []byte) (remoteHost, error) {
		return nil, errors.New("dial tcp: connection refused")
	}
	defer func() { connectFunc = origConnect }()

	_, err := Run(model.Request{Host: "web01", Username: "alice", Login: "root"}, Options{})
	if err == nil {
		t.Fatalf("expected connection failure to surface")
	}
}

func TestCountKeyLines(t *testing.T) {
	cases := []struct {
		payload string
		want    int
	}{
		{"", 0},
		{"\n\n", 0},
		{testKeyA, 1},
		{testKeyA + "\n", 1},
		{testKeyA + "\n\n  \n" + testKeyB + "\n", 2},
	}
	for _, tc := range cases {
		if got := countKeyLines([]byte(tc.payload)); got != tc.want {
			t.Errorf("countKeyLines(%q) = %d, want %d", tc.payload, got, tc.want)
		}
	}
}
