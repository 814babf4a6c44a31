// Trailhound - Hash Event Aggregation and Catalog Reconciliation
// Copyright 2026 Harrier Pack Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/harrierpack/trailhound

package resolver

import (
	"fmt"
	"regexp"
)

// PatternRule is one (regex, canonical name) entry in the fallback table.
// Patterns are matched against the lowercased tag.
type PatternRule struct {
	Pattern   string `json:"pattern"`
	Canonical string `json:"canonical"`
}

type compiledRule struct {
	re        *regexp.Regexp
	canonical string
}

// PatternTable is an ordered list of regex rules mapping messy source tags
// to canonical kennel names. Order is a semantic invariant: rules are
// evaluated top to bottom and the first match wins, so more specific
// multi-word patterns must precede shorter generic ones. The table is
// pure: it holds no store reference and performs no I/O.
type PatternTable struct {
	rules []compiledRule
}

// NewPatternTable compiles an ordered rule list. Rule order is preserved
// exactly as given.
func NewPatternTable(rules []PatternRule) (*PatternTable, error) {
	compiled := make([]compiledRule, 0, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to compile pattern %d (%q): %w", i, r.Pattern, err)
		}
		compiled = append(compiled, compiledRule{re: re, canonical: r.Canonical})
	}
	return &PatternTable{rules: compiled}, nil
}

// Match returns the canonical name of the first rule whose regex matches
// the lowercased tag, or ("", false) when no rule matches.
func (t *PatternTable) Match(tag string) (string, bool) {
	for _, r := range t.rules {
		if r.re.MatchString(tag) {
			return r.canonical, true
		}
	}
	return "", false
}

// Len returns the number of rules in the table.
func (t *PatternTable) Len() int {
	return len(t.rules)
}

// DefaultPatternRules is the built-in fallback table covering common
// long-form spellings seen in the wild. Deployments extend or replace it
// via configuration; the ordering here follows the same invariant as any
// custom table (specific before generic).
func DefaultPatternRules() []PatternRule {
	return []PatternRule{
		{Pattern: `new\s*york\s*city\s*h(ash|3)`, Canonical: "NYCH3"},
		{Pattern: `nyc\s*hash(\s*house\s*harriers)?`, Canonical: "NYCH3"},
		{Pattern: `brooklyn\s*h(ash|3)`, Canonical: "BH3"},
		{Pattern: `queens\s*h(ash|3)`, Canonical: "QH3"},
		{Pattern: `greater\s*gotham\s*(full\s*moon|h3)`, Canonical: "GGFM"},
		{Pattern: `knickerbocker\s*h(ash|3)`, Canonical: "KH3"},
		{Pattern: `long\s*island\s*h(ash|3)`, Canonical: "LIH3"},
		{Pattern: `jersey\s*(city|shore)?\s*h(ash|3)`, Canonical: "JCH3"},
		{Pattern: `hash\s*house\s*harriers`, Canonical: "H3"},
	}
}

// DefaultPatternTable compiles DefaultPatternRules. The built-in rules
// are known-good regexes, so compilation cannot fail.
func DefaultPatternTable() *PatternTable {
	t, err := NewPatternTable(DefaultPatternRules())
	if err != nil {
		panic(fmt.Sprintf("default pattern table failed to compile: %v", err))
	}
	return t
}
