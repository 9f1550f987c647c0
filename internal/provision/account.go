// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

import (
	"fmt"
	"strings"

	"github.com/toeirei/foothold/internal/i18n"
	"github.com/toeirei/foothold/internal/logging"
)

// privilegeGroups are probed in order; the first group that exists on the
// remote host gets the new account. Neither existing is non-fatal.
var privilegeGroups = []string{"sudo", "wheel"}

// Account is the remote passwd entry for the target principal.
type Account struct {
	Name  string
	UID   string
	GID   string
	Home  string
	Shell string
}

// LookupAccount probes the remote passwd database. A nil account with a nil
// error means the account does not exist.
func LookupAccount(r CommandRunner, username string) (*Account, error) {
	out, err := r.Output("getent passwd " + quote(username))
	if err != nil {
		// getent exits 2 when the key is not found. Other statuses (1 is
		// "missing database") and errors without a status are fatal.
		if status, ok := exitStatus(err); ok && status == 2 {
			return nil, nil
		}
		return nil, fmt.Errorf("%s", i18n.T("bootstrap.error_account_probe", username, err))
	}

	fields := strings.Split(strings.TrimSpace(string(out)), ":")
	if len(fields) < 7 {
		return nil, fmt.Errorf("unexpected passwd entry for %s: %q", username, strings.TrimSpace(string(out)))
	}
	return &Account{
		Name:  fields[0],
		UID:   fields[2],
		GID:   fields[3],
		Home:  fields[5],
		Shell: fields[6],
	}, nil
}

// CreateAccount transitions an absent account to present: useradd with a
// home directory and login shell, then best-effort privilege group
// membership. The fresh passwd entry is returned.
func CreateAccount(r CommandRunner, username string) (*Account, error) {
	if _, err := r.Output("useradd -m -s /bin/bash " + quote(username)); err != nil {
		return nil, fmt.Errorf("%s", i18n.T("bootstrap.error_account_create", username, err))
	}

	group, ok := FirstAvailable(privilegeGroups, func(name string) error {
		_, err := r.Output("getent group " + quote(name))
		return err
	})
	if ok {
		if _, err := r.Output("usermod -aG " + quote(group) + " " + quote(username)); err != nil {
			logging.Warnf("failed to add %s to group %s: %v", username, group, err)
		} else {
			logging.Infof("%s", i18n.T("bootstrap.group_added", username, group))
		}
	} else {
		logging.Infof("%s", i18n.T("bootstrap.group_unavailable"))
	}

	acct, err := LookupAccount(r, username)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, fmt.Errorf("account %s missing immediately after creation", username)
	}
	return acct, nil
}

// HasUsableHome reports whether the passwd home field points at a real
// login home. Service accounts commonly carry "/", "/nonexistent" or an
// empty field; reconciling keys into those would grant access to an account
// that was never meant for logins.
func (a *Account) HasUsableHome() bool {
	switch a.Home {
	case "", "/", "/nonexistent":
		return false
	}
	return strings.HasPrefix(a.Home, "/")
}

// EnsureHome re-verifies the home directory after the state machine settles
// and recreates it with correct ownership when an externally-created
// account lacks one.
func EnsureHome(h Host, acct *Account) error {
	if _, err := h.Stat(acct.Home); err == nil {
		return nil
	}
	if err := h.MkdirAll(acct.Home, 0750); err != nil {
		return err
	}
	owner := quote(acct.Name + ":" + acct.Name)
	if _, err := h.Output("chown " + owner + " " + quote(acct.Home)); err != nil {
		return fmt.Errorf("failed to set ownership of recreated home %s: %w", acct.Home, err)
	}
	logging.Infof("%s", i18n.T("bootstrap.home_recreated", acct.Home))
	return nil
}
