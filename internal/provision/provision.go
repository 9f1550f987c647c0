// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

import (
	"errors"
	"fmt"
	"os"
	gopath "path"
	"strings"

	"github.com/toeirei/foothold/internal/i18n"
	"github.com/toeirei/foothold/internal/logging"
	"github.com/toeirei/foothold/internal/model"
)

// ErrStoreMissing indicates the system-wide per-user key store entry was
// expected on the remote host but absent. Only raised in the default
// (non-align) flow; align mode creates the entry instead.
var ErrStoreMissing = errors.New("system-wide key store entry missing")

// RunOptions carries the knobs that are not part of the request itself.
type RunOptions struct {
	// Snapshot, when set, receives the current content of every remote file
	// before it is mutated. Best-effort; failures inside the callback must
	// not affect the run.
	Snapshot func(path string, content []byte)
}

// Run executes the remote side of a bootstrap: settle the account state
// machine, reconcile key material into the destination files, and align the
// daemon when requested. Every step is idempotent; an interrupted run is
// recovered by re-running the whole tool.
func Run(h Host, req model.Request, opts RunOptions) (*model.Report, error) {
	report := &model.Report{}

	acct, err := LookupAccount(h, req.Username)
	if err != nil {
		return nil, err
	}

	switch {
	case acct == nil:
		acct, err = CreateAccount(h, req.Username)
		if err != nil {
			return nil, err
		}
		report.Created = true
		logging.Infof("%s", i18n.T("bootstrap.account_created", acct.Name, acct.Home))
	case !req.Force:
		// An existing account is deliberately left alone in default mode;
		// the run still counts as a success.
		logging.Infof("%s", i18n.T("bootstrap.account_present", req.Username))
		return report, nil
	default:
		if !acct.HasUsableHome() {
			return nil, fmt.Errorf("%s", i18n.T("bootstrap.error_home_missing", acct.Name, acct.Home))
		}
		logging.Infof("%s", i18n.T("bootstrap.account_present_force", req.Username))
	}

	if err := EnsureHome(h, acct); err != nil {
		return nil, err
	}

	homeKeys := gopath.Join(acct.Home, ".ssh", "authorized_keys")
	opts.snapshot(h, homeKeys)
	added, err := Reconcile(h, homeKeys, req.Payload, ReconcileOptions{
		Owner:    acct.Name,
		FileMode: 0600,
		DirMode:  0700,
	})
	if err != nil {
		return nil, err
	}
	report.HomeKeysAdded = added
	if added > 0 {
		logging.Infof("%s", i18n.T("bootstrap.keys_added", added, homeKeys))
	} else {
		logging.Debugf("%s", i18n.T("bootstrap.keys_unchanged", homeKeys))
	}

	if req.Align {
		if err := alignDaemon(h, req, report, opts); err != nil {
			return nil, err
		}
	} else if err := reconcileExistingStore(h, req, report, opts); err != nil {
		return nil, err
	}

	logging.Infof("%s", i18n.T("bootstrap.done", req.String()))
	return report, nil
}

// reconcileExistingStore handles the system-wide store in the default flow:
// a host that has never been aligned has no store directory and is skipped;
// on an aligned host the per-user entry is expected, reconciled when
// present, and its absence is fatal.
func reconcileExistingStore(h Host, req model.Request, report *model.Report, opts RunOptions) error {
	if _, err := h.Stat(StoreDir); err != nil {
		return nil
	}
	storeFile := StorePath(req.Username)
	if _, err := h.Stat(storeFile); err != nil {
		return fmt.Errorf("%w: %s", ErrStoreMissing, i18n.T("error.store_missing", storeFile))
	}

	opts.snapshot(h, storeFile)
	added, err := Reconcile(h, storeFile, req.Payload, ReconcileOptions{
		FileMode: 0644,
		DirMode:  0755,
	})
	if err != nil {
		return err
	}
	report.StoreKeysAdded = added
	report.StoreTouched = true
	return nil
}

// alignDaemon ensures the system-wide store, rewires sshd's authorized-keys
// lookup and restarts the daemon. Restart failure is degraded, not fatal:
// the configuration is already written durably.
func alignDaemon(h Host, req model.Request, report *model.Report, opts RunOptions) error {
	storeFile := StorePath(req.Username)
	opts.snapshot(h, storeFile)
	added, err := Reconcile(h, storeFile, req.Payload, ReconcileOptions{
		FileMode: 0644,
		DirMode:  0755,
	})
	if err != nil {
		return err
	}
	report.StoreKeysAdded = added
	report.StoreTouched = true
	logging.Infof("%s", i18n.T("align.store_ready", storeFile))

	current, err := h.ReadFile(SSHDConfigPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read %s: %w", SSHDConfigPath, err)
		}
		current = nil
	}
	rewritten, changed := RewriteAuthorizedKeysDirective(string(current))
	if changed {
		opts.snapshot(h, SSHDConfigPath)
		if err := h.WriteFile(SSHDConfigPath, []byte(rewritten), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", SSHDConfigPath, err)
		}
	}
	report.Aligned = true
	logging.Infof("%s", i18n.T("align.directive_written", directiveValue))

	if service, ok := RestartDaemon(h); ok {
		report.Restarted = true
		logging.Infof("%s", i18n.T("align.restarted", service))
	} else {
		warning := i18n.T("align.restart_failed", strings.Join(sshdServices, ", "))
		report.Warnings = append(report.Warnings, warning)
		logging.Warnf("%s", warning)
	}
	return nil
}

// snapshot feeds a remote file's current content to the snapshot callback
// when one is configured and the file exists.
func (o RunOptions) snapshot(h Host, path string) {
	if o.Snapshot == nil {
		return
	}
	content, err := h.ReadFile(path)
	if err != nil {
		return
	}
	o.Snapshot(path, content)
}
