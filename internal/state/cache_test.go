// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package state

import (
	"bytes"
	"testing"
)

func TestPassphraseCache_SetGetRoundTrip(t *testing.T) {
	defer PassphraseCache.Clear()

	PassphraseCache.Set([]byte("hunter2"))
	got := PassphraseCache.Get()
	if !bytes.Equal(got, []byte("hunter2")) {
		t.Fatalf("unexpected secret: %q", got)
	}
}

func TestPassphraseCache_GetReturnsCopy(t *testing.T) {
	defer PassphraseCache.Clear()

	PassphraseCache.Set([]byte("secret"))
	first := PassphraseCache.Get()
	for i := range first {
		first[i] = 'x'
	}
	second := PassphraseCache.Get()
	if !bytes.Equal(second, []byte("secret")) {
		t.Fatalf("mutating a returned copy leaked into the cache: %q", second)
	}
}

func TestPassphraseCache_SetCopiesInput(t *testing.T) {
	defer PassphraseCache.Clear()

	input := []byte("secret")
	PassphraseCache.Set(input)
	for i := range input {
		input[i] = 0
	}
	if got := PassphraseCache.Get(); !bytes.Equal(got, []byte("secret")) {
		t.Fatalf("cache aliased the caller's slice: %q", got)
	}
}

func TestPassphraseCache_Clear(t *testing.T) {
	PassphraseCache.Set([]byte("secret"))
	PassphraseCache.Clear()
	if got := PassphraseCache.Get(); got != nil {
		t.Fatalf("expected nil after Clear, got %q", got)
	}
}

func TestPassphraseCache_NilAndEmpty(t *testing.T) {
	PassphraseCache.Set(nil)
	if got := PassphraseCache.Get(); got != nil {
		t.Fatalf("expected nil for nil secret, got %q", got)
	}
}
