// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/toeirei/foothold/internal/bootstrap"
	"github.com/toeirei/foothold/internal/keysource"
	"github.com/toeirei/foothold/internal/provision"
)

func TestParseTarget(t *testing.T) {
	cases := []struct {
		name     string
		args     []string
		host     string
		username string
		wantErr  error
	}{
		{"user-at-host", []string{"alice@web01"}, "web01", "alice", nil},
		{"host-and-username", []string{"web01", "alice"}, "web01", "alice", nil},
		{"host-with-port", []string{"alice@web01:2222"}, "web01:2222", "alice", nil},
		{"no-args", []string{}, "", "", errMissingHost},
		{"bare-host", []string{"web01"}, "", "", errMissingUsername},
		{"empty-host", []string{"alice@"}, "", "", errMissingHost},
		{"empty-username", []string{"@web01"}, "", "", errMissingUsername},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			host, username, err := parseTarget(tc.args)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseTarget failed: %v", err)
			}
			if host != tc.host || username != tc.username {
				t.Fatalf("got %q/%q, want %q/%q", host, username, tc.host, tc.username)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: no host", errMissingHost), 2},
		{fmt.Errorf("%w: no username", errMissingUsername), 3},
		{fmt.Errorf("%w: run as yourself", bootstrap.ErrOperatorIsRoot), 4},
		{fmt.Errorf("%w (checked a, b)", keysource.ErrNoKeySource), 5},
		{fmt.Errorf("%w: /etc/ssh/authorized_keys.d/alice", provision.ErrStoreMissing), 6},
		{errors.New("connection refused"), 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
