// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// Package deploy opens the authenticated connection to the target host and
// exposes the command and file surfaces the provisioning engine runs on.
// One invocation uses exactly one authenticated connection; commands and
// SFTP traffic share it.
package deploy

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/toeirei/foothold/internal/db"
	"github.com/toeirei/foothold/internal/logging"
)

// ErrPassphraseRequired indicates the identity file is encrypted and no
// passphrase was available.
var ErrPassphraseRequired = errors.New("private key is encrypted: passphrase required")

// Deployer holds the single authenticated connection to a remote host.
type Deployer struct {
	client *ssh.Client
	sftp   *sftp.Client
	host   string
}

// hostKeyCallback implements the trust-on-first-use policy: an unknown host
// key is pinned in the local database and accepted, a changed key aborts.
func hostKeyCallback(hostname string, remote net.Addr, key ssh.PublicKey) error {
	// The hostname passed to the callback can include the port; strip it so
	// the lookup key is stable.
	host, _, err := net.SplitHostPort(hostname)
	if err != nil {
		host = hostname
	}

	presentedKey := string(ssh.MarshalAuthorizedKey(key))

	knownKey, err := db.GetKnownHostKey(host)
	if err != nil {
		return fmt.Errorf("failed to query known_hosts database: %w", err)
	}

	// First contact: pin the presented key and proceed.
	if knownKey == "" {
		if err := db.AddKnownHostKey(host, presentedKey); err != nil {
			return fmt.Errorf("failed to pin host key for %s: %w", host, err)
		}
		logging.Infof("pinned new host key for %s (%s)", host, ssh.FingerprintSHA256(key))
		return nil
	}

	// A pinned key must match exactly.
	if knownKey != presentedKey {
		return fmt.Errorf("!!! HOST KEY MISMATCH FOR %s !!!\nRemote key presented: %s\nThis could be a man-in-the-middle attack", host, presentedKey)
	}

	return nil
}

// NewDeployer opens the SSH connection to host as login and starts the SFTP
// subsystem on it. identityPath may point to an (optionally encrypted)
// private key file; when key auth is not possible the SSH agent is tried.
func NewDeployer(host, login, identityPath string, passphrase []byte) (*Deployer, error) {
	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	var finalErr error

	// --- Attempt 1: the configured identity file ---
	if identityPath != "" {
		signer, err := loadSigner(identityPath, passphrase)
		if err != nil {
			if errors.Is(err, ErrPassphraseRequired) {
				return nil, err
			}
			// Unreadable or missing identity is not fatal yet; the agent
			// may still get us in.
			logging.Debugf("identity %s unusable: %v", identityPath, err)
		} else {
			config := &ssh.ClientConfig{
				User:            login,
				Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
				HostKeyCallback: hostKeyCallback,
				Timeout:         10 * time.Second,
			}
			client, err := ssh.Dial("tcp", addr, config)
			if err == nil {
				return newDeployerFromClient(client, host)
			}
			if !IsAuthenticationError(err) {
				return nil, fmt.Errorf("connection with identity file failed: %w", err)
			}
			finalErr = err
		}
	}

	// --- Attempt 2: the SSH agent as a fallback ---
	agentClient := getSSHAgent()
	if agentClient == nil {
		if finalErr != nil {
			return nil, fmt.Errorf("identity file authentication failed, and no SSH agent available for fallback: %w", finalErr)
		}
		return nil, fmt.Errorf("no authentication method available (no identity file and no ssh agent found)")
	}

	config := &ssh.ClientConfig{
		User:            login,
		Auth:            []ssh.AuthMethod{ssh.PublicKeysCallback(agentClient.Signers)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         10 * time.Second,
	}

	client, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		return nil, fmt.Errorf("connection with ssh agent failed: %w", err)
	}

	return newDeployerFromClient(client, host)
}

func newDeployerFromClient(client *ssh.Client, host string) (*Deployer, error) {
	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create sftp client: %w", err)
	}
	return &Deployer{client: client, sftp: sftpClient, host: host}, nil
}

// loadSigner reads and parses a private key file, decrypting it with the
// passphrase when one is provided.
func loadSigner(path string, passphrase []byte) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		if len(passphrase) == 0 {
			return nil, ErrPassphraseRequired
		}
		return ssh.ParsePrivateKeyWithPassphrase(pem, passphrase)
	}
	return nil, fmt.Errorf("unable to parse private key: %w", err)
}

// Output runs a command on the remote host over a fresh exec channel of the
// established connection and returns its stdout. A non-zero exit status is
// returned as an error wrapping *ssh.ExitError; stderr is attached to the
// error message.
func (d *Deployer) Output(cmd string) ([]byte, error) {
	session, err := d.client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	if err := session.Run(cmd); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.Bytes(), fmt.Errorf("remote command %q: %s: %w", cmd, msg, err)
		}
		return stdout.Bytes(), fmt.Errorf("remote command %q: %w", cmd, err)
	}
	return stdout.Bytes(), nil
}

// ReadFile returns the content of a remote file. A missing file is reported
// with an error satisfying errors.Is(err, os.ErrNotExist).
func (d *Deployer) ReadFile(path string) ([]byte, error) {
	f, err := d.sftp.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("failed to read remote file %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// WriteFile replaces the content of a remote file and applies perm.
func (d *Deployer) WriteFile(path string, data []byte, perm os.FileMode) error {
	f, err := d.sftp.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create remote file %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("failed to write remote file %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close remote file %s: %w", path, err)
	}
	return d.sftp.Chmod(path, perm)
}

// Stat stats a remote path.
func (d *Deployer) Stat(path string) (os.FileInfo, error) {
	return d.sftp.Stat(path)
}

// MkdirAll creates a remote directory tree and applies perm to the leaf.
func (d *Deployer) MkdirAll(path string, perm os.FileMode) error {
	if err := d.sftp.MkdirAll(path); err != nil {
		return fmt.Errorf("failed to create remote directory %s: %w", path, err)
	}
	return d.sftp.Chmod(path, perm)
}

// Chmod changes the mode of a remote path.
func (d *Deployer) Chmod(path string, mode os.FileMode) error {
	return d.sftp.Chmod(path, mode)
}

// Host returns the host this deployer is connected to.
func (d *Deployer) Host() string { return d.host }

// Close closes the underlying SSH and SFTP clients.
func (d *Deployer) Close() {
	if d.sftp != nil {
		d.sftp.Close()
	}
	if d.client != nil {
		d.client.Close()
	}
}

// GetRemoteHostKey connects to a host just to retrieve its public key, for
// pinning a host before the first bootstrap.
func GetRemoteHostKey(host string) (ssh.PublicKey, error) {
	keyChan := make(chan ssh.PublicKey, 1)

	config := &ssh.ClientConfig{
		// No authentication needed, just the handshake.
		User: "foothold-probe",
		HostKeyCallback: func(hostname string, remote net.Addr, key ssh.PublicKey) error {
			keyChan <- key
			// Return a specific error to gracefully stop the handshake.
			return fmt.Errorf("foothold: successfully retrieved host key")
		},
		Timeout: 5 * time.Second,
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "22")
	}

	// ssh.Dial is expected to fail with our specific error.
	_, err := ssh.Dial("tcp", addr, config)
	if err != nil {
		if strings.Contains(err.Error(), "foothold: successfully retrieved host key") {
			return <-keyChan, nil
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", host, err)
	}

	return nil, fmt.Errorf("ssh.Dial succeeded unexpectedly, could not retrieve key")
}
