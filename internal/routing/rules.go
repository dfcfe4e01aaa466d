package routing

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/noteflux/ai-router/internal/types"
)

// compiledRule pairs a content rule with its compiled pattern.
type compiledRule struct {
	rule    types.ContentRule
	pattern *regexp.Regexp
}

// RuleSet holds active content rules ordered by descending priority.
// Patterns are compiled once at construction so a bad pattern is a
// construction-time error, not a per-request one.
type RuleSet struct {
	rules []compiledRule
}

// NewRuleSet compiles the given rules. Inactive rules are kept out of the
// match path entirely.
func NewRuleSet(rules []types.ContentRule) (*RuleSet, error) {
	rs := &RuleSet{}
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		if _, err := types.ParseProcessingMode(string(rule.RequiredMode)); err != nil {
			return nil, fmt.Errorf("content rule %q: %w", rule.Name, err)
		}
		pattern, err := regexp.Compile(rule.MatchPattern)
		if err != nil {
			return nil, fmt.Errorf("content rule %q: invalid pattern: %w", rule.Name, err)
		}
		rs.rules = append(rs.rules, compiledRule{rule: rule, pattern: pattern})
	}

	sort.SliceStable(rs.rules, func(i, j int) bool {
		return rs.rules[i].rule.Priority > rs.rules[j].rule.Priority
	})
	return rs, nil
}

// Match returns the highest-priority active rule whose pattern matches the
// text, or false when none does.
func (rs *RuleSet) Match(text string) (types.ContentRule, bool) {
	if rs == nil {
		return types.ContentRule{}, false
	}
	for _, cr := range rs.rules {
		if cr.pattern.MatchString(text) {
			return cr.rule, true
		}
	}
	return types.ContentRule{}, false
}

// Len returns the number of active rules.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}
