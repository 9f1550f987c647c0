// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

import (
	"strings"
)

const (
	// SSHDConfigPath is the remote SSH daemon configuration file.
	SSHDConfigPath = "/etc/ssh/sshd_config"
	// StoreDir is the system-wide per-user key store directory.
	StoreDir = "/etc/ssh/authorized_keys.d"
	// directiveKeyword is the sshd configuration directive controlling
	// where authorized keys are looked up.
	directiveKeyword = "AuthorizedKeysFile"
	// directiveValue makes sshd consult both the per-user home file and the
	// system-wide per-user store.
	directiveValue = ".ssh/authorized_keys /etc/ssh/authorized_keys.d/%u"
)

// sshdServices are probed in order when restarting the daemon.
var sshdServices = []string{"sshd", "ssh"}

// StorePath returns the system-wide key store file for a username.
func StorePath(username string) string {
	return StoreDir + "/" + username
}

// RewriteAuthorizedKeysDirective returns the sshd configuration with its
// authorized-keys lookup directive set to cover both the per-user home file
// and the system-wide store. The first active directive is replaced in
// place; any further active directives are dropped so exactly one remains;
// when none exists one is appended. Comments and unrelated lines are
// preserved byte for byte. The second return reports whether the content
// changed.
func RewriteAuthorizedKeysDirective(content string) (string, bool) {
	want := directiveKeyword + " " + directiveValue

	var lines []string
	if content != "" {
		lines = strings.Split(content, "\n")
		if strings.HasSuffix(content, "\n") {
			lines = lines[:len(lines)-1]
		}
	}

	var out []string
	replaced := false
	for _, line := range lines {
		fields := strings.Fields(line)
		active := len(fields) > 0 && strings.EqualFold(fields[0], directiveKeyword)
		if !active {
			out = append(out, line)
			continue
		}
		if replaced {
			// A second active directive would be ambiguous; drop it.
			continue
		}
		out = append(out, want)
		replaced = true
	}
	if !replaced {
		out = append(out, want)
	}

	result := strings.Join(out, "\n") + "\n"
	return result, result != content
}

// RestartDaemon reloads the SSH daemon, trying the well-known service names
// in order. It returns the service name that worked; ok is false when none
// did, which callers treat as degraded rather than fatal because the
// configuration is already written durably.
func RestartDaemon(r CommandRunner) (string, bool) {
	return FirstAvailable(sshdServices, func(name string) error {
		_, err := r.Output("systemctl restart " + quote(name))
		return err
	})
}
