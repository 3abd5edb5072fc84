package redaction

import (
	"fmt"

	"mercator-hq/saturn/pkg/config"
	"mercator-hq/saturn/pkg/governance"
)

// NewEngineFromConfig builds an Engine from the built-in rules followed by
// the configured extra rules.
func NewEngineFromConfig(cfg config.RedactionConfig) (*Engine, error) {
	overlap, err := ParseOverlapPolicy(cfg.Overlap)
	if err != nil {
		return nil, err
	}

	categories := make([]Category, 0, len(cfg.Categories))
	for _, c := range cfg.Categories {
		categories = append(categories, Category(c))
	}

	specs := DefaultRuleSpecs()
	for _, r := range cfg.Rules {
		category := Category(r.Category)
		if category == "" {
			category = CategoryPII
		}
		specs = append(specs, RuleSpec{ID: r.ID, Pattern: r.Pattern, Replacement: r.Replacement, Category: category})
	}
	rules, err := CompileRules(specs, categories)
	if err != nil {
		return nil, fmt.Errorf("failed to compile redaction rules: %w", err)
	}

	sensitive := make([]governance.Classification, 0, len(cfg.Classifications))
	for _, c := range cfg.Classifications {
		sensitive = append(sensitive, governance.Classification(c))
	}

	return NewEngine(Options{
		Rules:     rules,
		Sensitive: sensitive,
		Overlap:   overlap,
		Disabled:  cfg.Disabled,
	})
}
