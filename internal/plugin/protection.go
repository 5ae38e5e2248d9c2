// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package plugin

import (
	"fmt"
	"os"
	"regexp"

	"github.com/linuxfoundation/lfx-v2-search-gateway/internal/domain/model"

	"github.com/pelletier/go-toml/v2"
)

const (
	// anyRole grants read access to every requester
	anyRole = "@"
	// noRole denies read access to every non-admin requester
	noRole = "!"
)

// PropertyRule restricts reading the properties whose name matches Property.
type PropertyRule struct {
	Property string   `toml:"property"`
	Read     []string `toml:"read"`

	pattern *regexp.Regexp
}

// PropertyRules is an ordered rule list; the first rule matching a property
// decides, and a property matching no rule is hidden from non-admins.
type PropertyRules struct {
	rules []PropertyRule
}

type propertyRulesFile struct {
	Rules []PropertyRule `toml:"rule"`
}

// LoadPropertyRules reads a TOML rules file made of [[rule]] tables.
func LoadPropertyRules(path string) (*PropertyRules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read property protection file: %w", err)
	}
	return ParsePropertyRules(data)
}

// ParsePropertyRules parses the TOML rules document in data.
func ParsePropertyRules(data []byte) (*PropertyRules, error) {
	var file propertyRulesFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse property protection rules: %w", err)
	}

	rules := make([]PropertyRule, 0, len(file.Rules))
	for i, rule := range file.Rules {
		if rule.Property == "" {
			return nil, fmt.Errorf("property protection rule %d has no property pattern", i)
		}
		pattern, err := regexp.Compile(rule.Property)
		if err != nil {
			return nil, fmt.Errorf("property protection rule %q: %w", rule.Property, err)
		}
		rule.pattern = pattern
		rules = append(rules, rule)
	}
	return &PropertyRules{rules: rules}, nil
}

// CanRead reports whether requester may read property. A nil rule set
// protects nothing.
func (p *PropertyRules) CanRead(property string, requester model.Requester) bool {
	if p == nil || requester.IsAdmin {
		return true
	}
	for _, rule := range p.rules {
		if !rule.pattern.MatchString(property) {
			continue
		}
		for _, role := range rule.Read {
			switch role {
			case anyRole:
				return true
			case noRole:
				return false
			}
			if requester.HasRole(role) {
				return true
			}
		}
		return false
	}
	return false
}

// Len returns the number of rules.
func (p *PropertyRules) Len() int {
	if p == nil {
		return 0
	}
	return len(p.rules)
}
