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
)

// ReconcileOptions controls ownership and permission repair after a merge.
type ReconcileOptions struct {
	// Owner is the principal the file (and its parent directory) is chowned
	// to after reconciliation. Empty leaves ownership alone.
	Owner string
	// FileMode is applied to the destination file after reconciliation.
	FileMode os.FileMode
	// DirMode is applied to the destination's parent directory.
	DirMode os.FileMode
}

// Reconcile merges the payload's key lines into the destination file using
// exact-line set semantics: every non-blank payload line missing from the
// current content is appended, in payload order; lines already present are
// never duplicated and unrelated lines are never touched. The destination
// and its parent directory are created when absent, and ownership and
// permissions are repaired afterwards. It returns the number of lines
// actually appended; a re-run with the same payload returns zero.
func Reconcile(h Host, path string, payload []byte, opts ReconcileOptions) (int, error) {
	dir := gopath.Dir(path)
	if err := h.MkdirAll(dir, opts.DirMode); err != nil {
		return 0, err
	}

	current, err := h.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("failed to read %s: %w", path, err)
		}
		current = nil
	}

	// Membership is exact string equality on whole lines. No trimming: a
	// line differing by trailing whitespace counts as a different key.
	existing := make(map[string]struct{})
	for _, line := range strings.Split(string(current), "\n") {
		existing[line] = struct{}{}
	}

	var toAdd []string
	for _, line := range strings.Split(string(payload), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if _, ok := existing[line]; ok {
			continue
		}
		toAdd = append(toAdd, line)
		existing[line] = struct{}{}
	}

	if len(toAdd) > 0 || current == nil {
		content := string(current)
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		for _, line := range toAdd {
			content += line + "\n"
		}
		if err := h.WriteFile(path, []byte(content), opts.FileMode); err != nil {
			return 0, err
		}
	}

	// Permissions and ownership are repaired on every run, not only when
	// content changed.
	if err := h.Chmod(path, opts.FileMode); err != nil {
		return 0, err
	}
	if opts.Owner != "" {
		owner := quote(opts.Owner + ":" + opts.Owner)
		if _, err := h.Output("chown " + owner + " " + quote(dir) + " " + quote(path)); err != nil {
			return 0, fmt.Errorf("failed to repair ownership of %s: %w", path, err)
		}
	}

	return len(toAdd), nil
}
