// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRules = `
[[rule]]
property = "^x_owner_.*"
read = ["owner", "member"]

[[rule]]
property = "^x_none$"
read = ["!"]

[[rule]]
property = "^x_all$"
read = ["@"]
`

func TestPropertyRulesCanRead(t *testing.T) {
	rules, err := ParsePropertyRules([]byte(testRules))
	require.NoError(t, err)

	tests := []struct {
		name      string
		property  string
		requester model.Requester
		expected  bool
	}{
		{name: "role listed", property: "x_owner_foo", requester: model.NewRequester("u", "p", []string{"member"}), expected: true},
		{name: "role listed in other case", property: "x_owner_foo", requester: model.NewRequester("u", "p", []string{"OWNER"}), expected: true},
		{name: "role not listed", property: "x_owner_foo", requester: model.NewRequester("u", "p", []string{"reader"}), expected: false},
		{name: "nobody", property: "x_none", requester: model.NewRequester("u", "p", []string{"member"}), expected: false},
		{name: "everybody", property: "x_all", requester: model.NewRequester("u", "p", nil), expected: true},
		{name: "no matching rule", property: "x_other", requester: model.NewRequester("u", "p", []string{"member"}), expected: false},
		{name: "admin bypasses rules", property: "x_none", requester: model.NewRequester("u", "p", []string{"admin"}), expected: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)
			assertion.Equal(tc.expected, rules.CanRead(tc.property, tc.requester))
		})
	}
}

func TestPropertyRulesNil(t *testing.T) {
	assertion := assert.New(t)
	var rules *PropertyRules

	assertion.True(rules.CanRead("anything", model.NewRequester("u", "p", nil)))
	assertion.Equal(0, rules.Len())
}

func TestParsePropertyRulesErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "invalid toml", data: "[[rule]\nproperty ="},
		{name: "missing pattern", data: "[[rule]]\nread = [\"@\"]\n"},
		{name: "invalid pattern", data: "[[rule]]\nproperty = \"(\"\nread = [\"@\"]\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertion := assert.New(t)
			rules, err := ParsePropertyRules([]byte(tc.data))
			assertion.Error(err)
			assertion.Nil(rules)
		})
	}
}

func TestLoadPropertyRules(t *testing.T) {
	assertion := assert.New(t)
	path := filepath.Join(t.TempDir(), "property-protections.toml")
	require.NoError(t, os.WriteFile(path, []byte(testRules), 0o600))

	rules, err := LoadPropertyRules(path)
	require.NoError(t, err)
	assertion.Equal(3, rules.Len())

	_, err = LoadPropertyRules(filepath.Join(t.TempDir(), "missing.toml"))
	assertion.Error(err)
}
