// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package sshdconf rewrites an sshd_config for disposable test images:
// root login with an empty password and public key auth are all
// enabled. This weakens security on purpose; the images never leave
// the test host.
package sshdconf

import "strings"

type directive struct {
	key   string
	value string
}

var rewrites = []directive{
	{"PermitRootLogin", "yes"},
	{"PermitEmptyPasswords", "yes"},
	{"PubkeyAuthentication", "yes"},
}

// Rewrite removes every line starting with one of the managed
// directive keys and appends the managed values. Matching is a
// case-sensitive prefix match on the key, so commented or indented
// variants pass through untouched. Applying the result again yields
// the same output.
func Rewrite(config []byte) []byte {
	lines := strings.Split(string(config), "\n")

	kept := make([]string, 0, len(lines))

	for _, line := range lines {
		if !managed(line) {
			kept = append(kept, line)
		}
	}

	// Drop a trailing empty element so appended directives do not
	// accumulate blank lines between runs.
	if n := len(kept); n > 0 && kept[n-1] == "" {
		kept = kept[:n-1]
	}

	for _, d := range rewrites {
		kept = append(kept, d.key+" "+d.value)
	}

	return []byte(strings.Join(kept, "\n") + "\n")
}

func managed(line string) bool {
	for _, d := range rewrites {
		if strings.HasPrefix(line, d.key) {
			return true
		}
	}

	return false
}
