// SPDX-FileCopyrightText: 2025 The vmforge authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package sshdconf_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vmforge/vmforge/internal/sshdconf"
)

func TestRewrite(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name: "replaces existing directives",
			input: "Port 22\n" +
				"PermitRootLogin no\n" +
				"PubkeyAuthentication no\n",
			expected: "Port 22\n" +
				"PermitRootLogin yes\n" +
				"PermitEmptyPasswords yes\n" +
				"PubkeyAuthentication yes\n",
		},
		{
			name:  "appends to empty config",
			input: "",
			expected: "PermitRootLogin yes\n" +
				"PermitEmptyPasswords yes\n" +
				"PubkeyAuthentication yes\n",
		},
		{
			name: "commented directives pass through",
			input: "#PermitRootLogin prohibit-password\n" +
				"UsePAM yes\n",
			expected: "#PermitRootLogin prohibit-password\n" +
				"UsePAM yes\n" +
				"PermitRootLogin yes\n" +
				"PermitEmptyPasswords yes\n" +
				"PubkeyAuthentication yes\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actual := sshdconf.Rewrite([]byte(tt.input))
			assert.Equal(t, tt.expected, string(actual))
		})
	}
}

func TestRewriteIdempotent(t *testing.T) {
	input := []byte("Port 22\nPermitRootLogin no\n")

	once := sshdconf.Rewrite(input)
	twice := sshdconf.Rewrite(once)

	assert.Equal(t, string(once), string(twice))

	for _, directive := range []string{
		"PermitRootLogin yes",
		"PermitEmptyPasswords yes",
		"PubkeyAuthentication yes",
	} {
		assert.Equal(
			t, 1, strings.Count(string(twice), directive), directive,
		)
	}
}
