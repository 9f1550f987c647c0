// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package deploy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
)

// snapshotDirFunc resolves the local directory snapshots are written to.
// Swappable in tests.
var snapshotDirFunc = func() (string, error) {
	cache, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cache, "foothold", "snapshots"), nil
}

// Snapshot writes a zstd-compressed copy of a remote file's current content
// to the local snapshot directory and returns the path it was written to.
// The remote path is flattened into the file name so one directory per host
// holds all of its snapshots.
func Snapshot(host, remotePath string, content []byte) (string, error) {
	dir, err := snapshotDirFunc()
	if err != nil {
		return "", fmt.Errorf("cannot resolve snapshot directory: %w", err)
	}
	hostDir := filepath.Join(dir, host)
	if err := os.MkdirAll(hostDir, 0700); err != nil {
		return "", fmt.Errorf("cannot create snapshot directory: %w", err)
	}

	name := strings.Trim(strings.ReplaceAll(remotePath, "/", "_"), "_")
	path := filepath.Join(hostDir, fmt.Sprintf("%s-%s.zst", time.Now().UTC().Format("20060102T150405"), name))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return "", fmt.Errorf("create zstd writer: %w", err)
	}
	if _, err := zw.Write(content); err != nil {
		zw.Close()
		f.Close()
		return "", err
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
