// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// Package bootstrap drives one full run: resolve the operator's local key
// material, open the connection, and hand the typed request to the
// provisioning engine. It owns the local preconditions that must hold
// before any remote contact.
package bootstrap

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"runtime"

	"github.com/toeirei/foothold/internal/db"
	"github.com/toeirei/foothold/internal/deploy"
	"github.com/toeirei/foothold/internal/i18n"
	"github.com/toeirei/foothold/internal/keysource"
	"github.com/toeirei/foothold/internal/logging"
	"github.com/toeirei/foothold/internal/model"
	"github.com/toeirei/foothold/internal/provision"
	"github.com/toeirei/foothold/internal/state"
)

// ErrOperatorIsRoot is returned when Foothold is invoked by the local
// superuser. Key ownership is ambiguous in that context, so the run is
// rejected before any remote contact.
var ErrOperatorIsRoot = errors.New("refusing to run as the local superuser")

// Options carries invocation settings that are not part of the request.
type Options struct {
	Identity   string // private key file for the connection
	NoSnapshot bool   // skip local snapshots of remote files
}

// remoteHost is what the runner needs from an established connection.
type remoteHost interface {
	provision.Host
	Host() string
	Close()
}

// Hooks for tests.
var (
	geteuidFunc = os.Geteuid
	currentUser = user.Current
	connectFunc = func(host, login, identity string, passphrase []byte) (remoteHost, error) {
		return deploy.NewDeployer(host, login, identity, passphrase)
	}
)

// ResolvePayload locates the operator's key material and returns it with
// the path it came from. The operator must not be the local superuser.
func ResolvePayload() ([]byte, string, error) {
	if runtime.GOOS != "windows" && geteuidFunc() == 0 {
		return nil, "", fmt.Errorf("%w: %s", ErrOperatorIsRoot, i18n.T("error.operator_root"))
	}
	operator, err := currentUser()
	if err != nil {
		return nil, "", fmt.Errorf("cannot determine invoking user: %w", err)
	}
	logging.Debugf("%s", i18n.T("bootstrap.resolving_keys", operator.Username))
	return keysource.Resolve(keysource.Candidates(operator.Username, operator.HomeDir))
}

// Run performs a complete bootstrap of req against its host. The key
// payload is resolved locally first so a machine without key material never
// touches the remote host, then every remote step runs over one
// authenticated connection.
func Run(req model.Request, opts Options) (*model.Report, error) {
	payload, source, err := ResolvePayload()
	if err != nil {
		return nil, err
	}
	req.Payload = payload
	logging.Infof("%s", i18n.T("bootstrap.payload_summary", countKeyLines(payload), source))

	// The passphrase cache is wiped after the connection attempt, whether
	// or not it succeeds.
	passphrase := state.PassphraseCache.Get()
	defer func() {
		for i := range passphrase {
			passphrase[i] = 0
		}
	}()

	logging.Infof("%s", i18n.T("bootstrap.connecting", req.Host, req.Login))
	remote, err := connectFunc(req.Host, req.Login, opts.Identity, passphrase)
	if err != nil {
		if errors.Is(err, deploy.ErrPassphraseRequired) {
			return nil, err
		}
		return nil, fmt.Errorf("%s", i18n.T("bootstrap.error_connection_failed", err))
	}
	defer remote.Close()

	runOpts := provision.RunOptions{}
	if !opts.NoSnapshot {
		host := remote.Host()
		runOpts.Snapshot = func(path string, content []byte) {
			local, err := deploy.Snapshot(host, path, content)
			if err != nil {
				logging.Warnf("%s", i18n.T("snapshot.failed", path, err))
				return
			}
			logging.Debugf("%s", i18n.T("snapshot.written", path, local))
		}
	}

	report, err := provision.Run(remote, req, runOpts)
	if err != nil {
		_ = db.LogAction("BOOTSTRAP_FAILED", fmt.Sprintf("%s: %v", req.String(), err))
		return nil, err
	}

	_ = db.LogAction("BOOTSTRAP", fmt.Sprintf("%s created=%t home+%d store+%d aligned=%t",
		req.String(), report.Created, report.HomeKeysAdded, report.StoreKeysAdded, report.Aligned))
	return report, nil
}

// countKeyLines counts the non-blank lines of a payload, for log output
// only; the reconciliation engine does its own line handling.
func countKeyLines(payload []byte) int {
	n := 0
	start := 0
	for i := 0; i <= len(payload); i++ {
		if i == len(payload) || payload[i] == '\n' {
			if hasNonSpace(payload[start:i]) {
				n++
			}
			start = i + 1
		}
	}
	return n
}

func hasNonSpace(b []byte) bool {
	for _, c := range b {
		if c != ' ' && c != '\t' && c != '\r' {
			return true
		}
	}
	return false
}
