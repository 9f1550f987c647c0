// Copyright (c) 2026 ToeiRei
// Foothold - remote account & authorized_keys bootstrapper
// This source code is licensed under the MIT license found in the LICENSE file.

package provision

// FirstAvailable runs probe over the ordered candidate names and returns the
// first one that succeeds. The second return is false when no candidate is
// available; callers decide whether that is fatal.
func FirstAvailable(names []string, probe func(string) error) (string, bool) {
	for _, name := range names {
		if err := probe(name); err == nil {
			return name, true
		}
	}
	return "", false
}
