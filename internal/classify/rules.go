package classify

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

type Rule struct {
	Group   string `yaml:"group"`
	Reason  string `yaml:"reason"`
	Pattern string `yaml:"pattern"`

	re *regexp.Regexp
}

// RuleSet is an ordered list of hard rejection rules. It is read-only after
// construction and safe for concurrent use.
type RuleSet struct {
	Rules           []Rule   `yaml:"rules"`
	AllowedContexts []string `yaml:"allowed_contexts"`

	allowed []*regexp.Regexp
}

type Check struct {
	Rejected bool
	Group    string
	Reason   string
	Pattern  string
}

var taxReason = regexp.MustCompile(`(?i)\b(GST|TDS)\b`)

// DefaultRules returns the compiled-in rule set.
func DefaultRules() *RuleSet {
	rs, err := parseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("classify: default rules: %v", err))
	}
	return rs
}

// LoadRules reads a rule set from a YAML file. An empty path yields the
// compiled-in rules.
func LoadRules(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseRules(data)
}

func parseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, err
	}
	if len(rs.Rules) == 0 {
		return nil, errors.New("rule set has no rules")
	}
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.Pattern == "" || r.Reason == "" {
			return nil, fmt.Errorf("rule %d: pattern and reason are required", i)
		}
		re, err := regexp.Compile("(?i)" + r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, r.Reason, err)
		}
		r.re = re
	}
	for i, p := range rs.AllowedContexts {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("allowed context %d: %w", i, err)
		}
		rs.allowed = append(rs.allowed, re)
	}
	return &rs, nil
}

// Check reports the first rule that matches text. Tax rules are skipped when
// the text only mentions GST or TDS the way a fee clause would.
func (rs *RuleSet) Check(text string) Check {
	allowedTax := false
	allowedChecked := false
	for _, r := range rs.Rules {
		if !r.re.MatchString(text) {
			continue
		}
		if taxReason.MatchString(r.Reason) {
			if !allowedChecked {
				allowedTax = rs.allowedContext(text)
				allowedChecked = true
			}
			if allowedTax {
				continue
			}
		}
		return Check{Rejected: true, Group: r.Group, Reason: r.Reason, Pattern: r.Pattern}
	}
	return Check{}
}

func (rs *RuleSet) allowedContext(text string) bool {
	for _, re := range rs.allowed {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

func (rs *RuleSet) Groups() []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range rs.Rules {
		g := strings.TrimSpace(r.Group)
		if g == "" || seen[g] {
			continue
		}
		seen[g] = true
		out = append(out, g)
	}
	return out
}
