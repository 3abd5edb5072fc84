package redaction

import (
	"fmt"
	"regexp"
)

// Category groups rules for configuration-level filtering.
type Category string

const (
	CategoryPHI       Category = "phi"
	CategoryPII       Category = "pii"
	CategoryFinancial Category = "financial"
)

// Rule is a single ordered pattern rule.
type Rule struct {
	ID          string
	Pattern     *regexp.Regexp
	Replacement string
	Category    Category
}

// RuleSpec is the uncompiled form of a rule, as read from configuration.
type RuleSpec struct {
	ID          string
	Pattern     string
	Replacement string
	Category    Category
}

// Compile compiles the spec into a Rule.
func (s RuleSpec) Compile() (Rule, error) {
	if s.ID == "" {
		return Rule{}, fmt.Errorf("redaction rule: id is required")
	}
	re, err := regexp.Compile(s.Pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("redaction rule %q: %w", s.ID, err)
	}
	if re.MatchString("") {
		return Rule{}, fmt.Errorf("redaction rule %q: pattern matches the empty string", s.ID)
	}
	repl := s.Replacement
	if repl == "" {
		repl = "[REDACTED]"
	}
	return Rule{ID: s.ID, Pattern: re, Replacement: repl, Category: s.Category}, nil
}

// DefaultRuleSpecs returns the built-in rule set in evaluation order.
// More specific identifiers come first so they win contested spans under
// the rule_order overlap policy.
func DefaultRuleSpecs() []RuleSpec {
	return []RuleSpec{
		{ID: "mrn", Pattern: `(?i)\bMRN[:\s-]*\d{6,10}\b`, Replacement: "[MRN_REDACTED]", Category: CategoryPHI},
		{ID: "dob", Pattern: `(?i)\b(?:DOB[:\s-]*)?\d{2}[/-]\d{2}[/-]\d{4}\b`, Replacement: "[DOB_REDACTED]", Category: CategoryPHI},
		{ID: "nhs_number", Pattern: `\b\d{3}[\s-]?\d{3}[\s-]?\d{4}\b`, Replacement: "[NHS_NUMBER_REDACTED]", Category: CategoryPHI},
		{ID: "nino", Pattern: `(?i)\b[A-CEGHJ-PR-TW-Z]{2}\s?\d{2}\s?\d{2}\s?\d{2}\s?[A-D]\b`, Replacement: "[NINO_REDACTED]", Category: CategoryPII},
		{ID: "ssn", Pattern: `\b\d{3}-\d{2}-\d{4}\b`, Replacement: "[SSN_REDACTED]", Category: CategoryPII},
		{ID: "email", Pattern: `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`, Replacement: "[EMAIL_REDACTED]", Category: CategoryPII},
		{ID: "phone_us", Pattern: `\b(?:\+1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`, Replacement: "[PHONE_REDACTED]", Category: CategoryPII},
		{ID: "phone_uk", Pattern: `\b(?:\+44[-.\s]?|0)(?:\d[-.\s]?){9,10}\b`, Replacement: "[PHONE_UK_REDACTED]", Category: CategoryPII},
		{ID: "credit_card", Pattern: `\b(?:\d[-.\s]?){13,19}\b`, Replacement: "[CREDIT_CARD_REDACTED]", Category: CategoryFinancial},
	}
}

// CompileRules compiles specs in order, optionally keeping only the listed
// categories. An empty category list keeps every rule.
func CompileRules(specs []RuleSpec, categories []Category) ([]Rule, error) {
	keep := make(map[Category]bool, len(categories))
	for _, c := range categories {
		keep[c] = true
	}

	rules := make([]Rule, 0, len(specs))
	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if len(keep) > 0 && !keep[spec.Category] {
			continue
		}
		if seen[spec.ID] {
			return nil, fmt.Errorf("redaction rule %q defined twice", spec.ID)
		}
		seen[spec.ID] = true

		rule, err := spec.Compile()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
