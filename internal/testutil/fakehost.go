// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

// Package testutil provides in-memory test doubles for the remote host so
// the provisioning engine can be exercised without network operations.
package testutil

import (
	"fmt"
	"io/fs"
	"os"
	gopath "path"
	"strings"
	"time"
)

// FakeExitError simulates a remote command exiting non-zero.
type FakeExitError struct {
	Status int
}

func (e *FakeExitError) Error() string {
	return fmt.Sprintf("exited with status %d", e.Status)
}

// ExitStatus returns the simulated exit status.
func (e *FakeExitError) ExitStatus() int { return e.Status }

// FakeResult is a scripted response for one remote command.
type FakeResult struct {
	Stdout string
	Err    error
}

// FakeFile is a file on the fake remote filesystem.
type FakeFile struct {
	Data []byte
	Mode os.FileMode
}

// FakeHost is an in-memory implementation of the provisioning engine's host
// surface. Commands are matched exactly against the scripted responses;
// anything unscripted succeeds with empty output, which keeps fixture setup
// short. Scripting the same command twice queues the results: each call
// consumes one until a single response remains, which then repeats. That
// models probes whose answer changes mid-run (an account that is absent,
// then present after creation).
type FakeHost struct {
	Files     map[string]*FakeFile
	Dirs      map[string]os.FileMode
	Responses map[string][]FakeResult

	// Commands records every command executed, in order.
	Commands []string
}

// NewFakeHost returns an empty fake host.
func NewFakeHost() *FakeHost {
	return &FakeHost{
		Files:     make(map[string]*FakeFile),
		Dirs:      make(map[string]os.FileMode),
		Responses: make(map[string][]FakeResult),
	}
}

// Respond scripts the next result for an exact command line.
func (f *FakeHost) Respond(cmd, stdout string, err error) {
	f.Responses[cmd] = append(f.Responses[cmd], FakeResult{Stdout: stdout, Err: err})
}

func (f *FakeHost) Output(cmd string) ([]byte, error) {
	f.Commands = append(f.Commands, cmd)
	queue, ok := f.Responses[cmd]
	if !ok || len(queue) == 0 {
		return nil, nil
	}
	res := queue[0]
	if len(queue) > 1 {
		f.Responses[cmd] = queue[1:]
	}
	return []byte(res.Stdout), res.Err
}

func (f *FakeHost) ReadFile(path string) ([]byte, error) {
	file, ok := f.Files[path]
	if !ok {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrNotExist}
	}
	out := make([]byte, len(file.Data))
	copy(out, file.Data)
	return out, nil
}

func (f *FakeHost) WriteFile(path string, data []byte, perm os.FileMode) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	f.Files[path] = &FakeFile{Data: stored, Mode: perm}
	return nil
}

func (f *FakeHost) Stat(path string) (os.FileInfo, error) {
	if file, ok := f.Files[path]; ok {
		return &fakeFileInfo{name: gopath.Base(path), size: int64(len(file.Data)), mode: file.Mode}, nil
	}
	if mode, ok := f.Dirs[path]; ok {
		return &fakeFileInfo{name: gopath.Base(path), mode: mode | fs.ModeDir, dir: true}, nil
	}
	return nil, &os.PathError{Op: "stat", Path: path, Err: os.ErrNotExist}
}

func (f *FakeHost) MkdirAll(path string, perm os.FileMode) error {
	for p := path; p != "/" && p != "."; p = gopath.Dir(p) {
		if _, ok := f.Dirs[p]; !ok {
			f.Dirs[p] = perm
		}
	}
	f.Dirs[path] = perm
	return nil
}

func (f *FakeHost) Chmod(path string, mode os.FileMode) error {
	if file, ok := f.Files[path]; ok {
		file.Mode = mode
		return nil
	}
	if _, ok := f.Dirs[path]; ok {
		f.Dirs[path] = mode
		return nil
	}
	return &os.PathError{Op: "chmod", Path: path, Err: os.ErrNotExist}
}

// Ran reports whether any executed command contains the substring.
func (f *FakeHost) Ran(substring string) bool {
	for _, cmd := range f.Commands {
		if strings.Contains(cmd, substring) {
			return true
		}
	}
	return false
}

type fakeFileInfo struct {
	name string
	size int64
	mode os.FileMode
	dir  bool
}

func (fi *fakeFileInfo) Name() string       { return fi.name }
func (fi *fakeFileInfo) Size() int64        { return fi.size }
func (fi *fakeFileInfo) Mode() os.FileMode  { return fi.mode }
func (fi *fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (fi *fakeFileInfo) IsDir() bool        { return fi.dir }
func (fi *fakeFileInfo) Sys() interface{}   { return nil }
