// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package provision_test

import (
	"errors"
	"testing"

	"github.com/toeirei/foothold/internal/provision"
	"github.com/toeirei/foothold/internal/testutil"
)

const alicePasswd = "alice:x:1001:1001:Alice:/home/alice:/bin/bash"

func TestLookupAccount_ParsesPasswdEntry(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Respond("getent passwd 'alice'", alicePasswd+"\n", nil)

	acct, err := provision.LookupAccount(h, "alice")
	if err != nil {
		t.Fatalf("LookupAccount failed: %v", err)
	}
	if acct == nil {
		t.Fatalf("expected account, got nil")
	}
	if acct.Name != "alice" || acct.UID != "1001" || acct.GID != "1001" {
		t.Fatalf("unexpected identity fields: %+v", acct)
	}
	if acct.Home != "/home/alice" || acct.Shell != "/bin/bash" {
		t.Fatalf("unexpected home/shell: %+v", acct)
	}
}

func TestLookupAccount_AbsentIsNotAnError(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Respond("getent passwd 'ghost'", "", &testutil.FakeExitError{Status: 2})

	acct, err := provision.LookupAccount(h, "ghost")
	if err != nil {
		t.Fatalf("absent account must not be an error, got: %v", err)
	}
	if acct != nil {
		t.Fatalf("expected nil account for absent user, got %+v", acct)
	}
}

func TestLookupAccount_NonAbsentExitStatusIsFatal(t *testing.T) {
	// getent exit 1 means the passwd database itself is missing or
	// misconfigured; that must never be mistaken for an absent account.
	h := testutil.NewFakeHost()
	h.Respond("getent passwd 'alice'", "", &testutil.FakeExitError{Status: 1})

	if _, err := provision.LookupAccount(h, "alice"); err == nil {
		t.Fatalf("expected error for getent exit status 1")
	}
}

func TestLookupAccount_TransportErrorIsFatal(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Respond("getent passwd 'alice'", "", errors.New("connection reset"))

	if _, err := provision.LookupAccount(h, "alice"); err == nil {
		t.Fatalf("expected error for transport failure")
	}
}

func TestLookupAccount_MalformedEntry(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Respond("getent passwd 'alice'", "alice:x:1001\n", nil)

	if _, err := provision.LookupAccount(h, "alice"); err == nil {
		t.Fatalf("expected error for malformed passwd entry")
	}
}

func TestCreateAccount_UseraddAndPrivilegeGroup(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Respond("getent passwd 'alice'", alicePasswd, nil)

	acct, err := provision.CreateAccount(h, "alice")
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if acct == nil || acct.Home != "/home/alice" {
		t.Fatalf("unexpected account after creation: %+v", acct)
	}
	if !h.Ran("useradd -m -s /bin/bash 'alice'") {
		t.Fatalf("useradd not executed: %v", h.Commands)
	}
	if !h.Ran("usermod -aG 'sudo' 'alice'") {
		t.Fatalf("privilege group membership not granted: %v", h.Commands)
	}
}

func TestCreateAccount_FallsBackToWheel(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Respond("getent group 'sudo'", "", &testutil.FakeExitError{Status: 2})
	h.Respond("getent passwd 'alice'", alicePasswd, nil)

	if _, err := provision.CreateAccount(h, "alice"); err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if !h.Ran("usermod -aG 'wheel' 'alice'") {
		t.Fatalf("expected wheel fallback, commands: %v", h.Commands)
	}
}

func TestCreateAccount_NoPrivilegeGroupIsNonFatal(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Respond("getent group 'sudo'", "", &testutil.FakeExitError{Status: 2})
	h.Respond("getent group 'wheel'", "", &testutil.FakeExitError{Status: 2})
	h.Respond("getent passwd 'alice'", alicePasswd, nil)

	if _, err := provision.CreateAccount(h, "alice"); err != nil {
		t.Fatalf("missing privilege group must not be fatal: %v", err)
	}
	if h.Ran("usermod") {
		t.Fatalf("usermod must not run when no group exists: %v", h.Commands)
	}
}

func TestCreateAccount_UseraddFailureIsFatal(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Respond("useradd -m -s /bin/bash 'alice'", "", &testutil.FakeExitError{Status: 1})

	if _, err := provision.CreateAccount(h, "alice"); err == nil {
		t.Fatalf("expected error when useradd fails")
	}
}

func TestHasUsableHome(t *testing.T) {
	cases := []struct {
		home string
		want bool
	}{
		{"/home/alice", true},
		{"/var/lib/app", true},
		{"", false},
		{"/", false},
		{"/nonexistent", false},
		{"relative/home", false},
	}
	for _, tc := range cases {
		acct := &provision.Account{Name: "alice", Home: tc.home}
		if got := acct.HasUsableHome(); got != tc.want {
			t.Errorf("HasUsableHome(%q) = %v, want %v", tc.home, got, tc.want)
		}
	}
}

func TestEnsureHome_RecreatesMissingHome(t *testing.T) {
	h := testutil.NewFakeHost()
	acct := &provision.Account{Name: "alice", Home: "/home/alice"}

	if err := provision.EnsureHome(h, acct); err != nil {
		t.Fatalf("EnsureHome failed: %v", err)
	}
	if _, ok := h.Dirs["/home/alice"]; !ok {
		t.Fatalf("home directory not recreated")
	}
	if !h.Ran("chown 'alice:alice' '/home/alice'") {
		t.Fatalf("ownership of recreated home not set: %v", h.Commands)
	}
}

func TestEnsureHome_ExistingHomeUntouched(t *testing.T) {
	h := testutil.NewFakeHost()
	h.Dirs["/home/alice"] = 0755
	acct := &provision.Account{Name: "alice", Home: "/home/alice"}

	if err := provision.EnsureHome(h, acct); err != nil {
		t.Fatalf("EnsureHome failed: %v", err)
	}
	if len(h.Commands) != 0 {
		t.Fatalf("existing home must not trigger commands: %v", h.Commands)
	}
}
