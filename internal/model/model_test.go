// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package model

import "testing"

func TestRequestString(t *testing.T) {
	req := Request{Host: "web01.example", Username: "alice"}
	if got := req.String(); got != "alice@web01.example" {
		t.Fatalf("unexpected target string: %s", got)
	}
}
