package redaction

import (
	"fmt"
	"sort"
	"strings"

	"mercator-hq/saturn/pkg/governance"
	"mercator-hq/saturn/pkg/providers"
)

// OverlapPolicy decides which match keeps a span when matches from different
// rules overlap.
type OverlapPolicy string

const (
	// OverlapRuleOrder gives a contested span to the rule listed first.
	OverlapRuleOrder OverlapPolicy = "rule_order"

	// OverlapLeftmost gives a contested span to the match starting first,
	// breaking ties by rule order.
	OverlapLeftmost OverlapPolicy = "leftmost"
)

// ParseOverlapPolicy parses a configured overlap policy; empty means rule_order.
func ParseOverlapPolicy(s string) (OverlapPolicy, error) {
	switch p := OverlapPolicy(strings.ToLower(s)); p {
	case "":
		return OverlapRuleOrder, nil
	case OverlapRuleOrder, OverlapLeftmost:
		return p, nil
	default:
		return "", fmt.Errorf("unknown overlap policy %q", s)
	}
}

// Result is the outcome of one scan.
type Result struct {
	// Text is the redacted text. It equals the input when nothing matched.
	Text string

	// MatchCount is the number of replaced spans.
	MatchCount int

	// RuleIDs lists the rules that replaced at least one span, in rule order.
	RuleIDs []string

	// Scanned is false when the classification short-circuited the scan.
	Scanned bool
}

// Merge folds another result's counts and rule ids into r.
func (r *Result) Merge(other Result) {
	r.MatchCount += other.MatchCount
	r.Scanned = r.Scanned || other.Scanned
	for _, id := range other.RuleIDs {
		found := false
		for _, have := range r.RuleIDs {
			if have == id {
				found = true
				break
			}
		}
		if !found {
			r.RuleIDs = append(r.RuleIDs, id)
		}
	}
}

// Options configures an Engine.
type Options struct {
	// Rules are evaluated in slice order.
	Rules []Rule

	// Sensitive lists the classifications that activate scanning.
	// Default: pii, phi
	Sensitive []governance.Classification

	// Overlap selects contested-span resolution.
	// Default: rule_order
	Overlap OverlapPolicy

	// Disabled turns every scan into a pass-through.
	Disabled bool
}

// Engine applies an ordered rule set to text. It is safe for concurrent use;
// the same rules and input always produce the same result.
type Engine struct {
	rules     []Rule
	sensitive map[governance.Classification]bool
	overlap   OverlapPolicy
	disabled  bool
}

// NewEngine creates an Engine. Rules default to DefaultRuleSpecs.
func NewEngine(opts Options) (*Engine, error) {
	rules := opts.Rules
	if rules == nil {
		var err error
		rules, err = CompileRules(DefaultRuleSpecs(), nil)
		if err != nil {
			return nil, err
		}
	}

	sensitive := opts.Sensitive
	if len(sensitive) == 0 {
		sensitive = []governance.Classification{governance.ClassificationPII, governance.ClassificationPHI}
	}
	set := make(map[governance.Classification]bool, len(sensitive))
	for _, c := range sensitive {
		if c == governance.ClassificationPublic {
			return nil, fmt.Errorf("public cannot be a sensitive classification")
		}
		set[c] = true
	}

	overlap := opts.Overlap
	if overlap == "" {
		overlap = OverlapRuleOrder
	}

	return &Engine{
		rules:     append([]Rule(nil), rules...),
		sensitive: set,
		overlap:   overlap,
		disabled:  opts.Disabled,
	}, nil
}

// RuleCount returns the number of active rules.
func (e *Engine) RuleCount() int {
	return len(e.rules)
}

// Active reports whether a scan for the classification would evaluate rules.
// Public content never activates the engine, even when forced.
func (e *Engine) Active(c governance.Classification, forced bool) bool {
	if e.disabled || c == governance.ClassificationPublic {
		return false
	}
	return forced || e.sensitive[c]
}

// Scan redacts text when the classification is sensitive.
func (e *Engine) Scan(text string, c governance.Classification) Result {
	return e.scan(text, c, false)
}

// ScanForced redacts text for any non-public classification. It backs the
// policy "redact" transform.
func (e *Engine) ScanForced(text string, c governance.Classification) Result {
	return e.scan(text, c, true)
}

// MessagesResult is the outcome of scanning a message list.
type MessagesResult struct {
	// Messages is a redacted copy; the input slice is never modified.
	Messages []providers.Message

	Result
}

// ScanMessages scans every message's content. Counts are summed and rule ids
// are merged in the order they first triggered.
func (e *Engine) ScanMessages(messages []providers.Message, c governance.Classification, forced bool) MessagesResult {
	out := MessagesResult{Messages: make([]providers.Message, len(messages))}
	for i, m := range messages {
		res := e.scan(m.Content, c, forced)
		m.Content = res.Text
		out.Messages[i] = m
		out.Merge(res)
	}
	return out
}

func (e *Engine) scan(text string, c governance.Classification, forced bool) Result {
	if !e.Active(c, forced) {
		return Result{Text: text}
	}
	if text == "" {
		return Result{Text: text, Scanned: true}
	}
	return e.apply(text)
}

type span struct {
	start, end int
	rule       int
}

func (e *Engine) apply(text string) Result {
	var candidates []span
	for i, rule := range e.rules {
		for _, loc := range rule.Pattern.FindAllStringIndex(text, -1) {
			if loc[1] > loc[0] {
				candidates = append(candidates, span{start: loc[0], end: loc[1], rule: i})
			}
		}
	}
	if len(candidates) == 0 {
		return Result{Text: text, Scanned: true}
	}

	if e.overlap == OverlapLeftmost {
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].start != candidates[j].start {
				return candidates[i].start < candidates[j].start
			}
			return candidates[i].rule < candidates[j].rule
		})
	}
	// Candidates are already grouped by rule order for OverlapRuleOrder.

	claimed := make([]span, 0, len(candidates))
	for _, cand := range candidates {
		if overlapsAny(claimed, cand) {
			continue
		}
		claimed = append(claimed, cand)
	}
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })

	var b strings.Builder
	b.Grow(len(text))
	triggered := make([]bool, len(e.rules))
	pos := 0
	for _, s := range claimed {
		b.WriteString(text[pos:s.start])
		b.WriteString(e.rules[s.rule].Replacement)
		pos = s.end
		triggered[s.rule] = true
	}
	b.WriteString(text[pos:])

	res := Result{Text: b.String(), MatchCount: len(claimed), Scanned: true}
	for i, hit := range triggered {
		if hit {
			res.RuleIDs = append(res.RuleIDs, e.rules[i].ID)
		}
	}
	return res
}

func overlapsAny(claimed []span, s span) bool {
	for _, c := range claimed {
		if s.start < c.end && c.start < s.end {
			return true
		}
	}
	return false
}
