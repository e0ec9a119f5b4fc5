package reasoning

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/registry"
)

// AgentLookup is the subset of registry.Registry the reasoners need: they
// only ever check existence and enablement, never mutate.
type AgentLookup interface {
	Get(name string) (registry.Descriptor, bool)
}

// HighConfidenceThreshold (tau) selects the rule_multi union path.
const HighConfidenceThreshold = 0.70

// RuleReasoner implements the deterministic rule strategy (spec.md
// §4.5).
type RuleReasoner struct {
	rules     []Rule
	lookup    AgentLookup
	reCacheMu sync.RWMutex
	reCache   map[string]*regexp.Regexp
}

// NewRuleReasoner builds a reasoner over a fixed rule set. Rules are
// copied; mutating the slice passed in afterward has no effect — callers
// should go through a fresh NewRuleReasoner (or a registry-style reload)
// to change rules.
func NewRuleReasoner(rules []Rule, lookup AgentLookup) *RuleReasoner {
	cp := make([]Rule, len(rules))
	copy(cp, rules)
	return &RuleReasoner{rules: cp, lookup: lookup, reCache: make(map[string]*regexp.Regexp)}
}

// Decide implements Reasoner.
func (r *RuleReasoner) Decide(_ context.Context, req envelope.Request) (Decision, error) {
	type match struct {
		rule Rule
	}

	var matches []match
	for _, rule := range r.rules {
		if !rule.Enabled {
			continue
		}
		ok, err := r.evaluate(rule, req)
		if err != nil {
			return Decision{}, fmt.Errorf("reasoning: rule %q: %w", rule.Name, err)
		}
		if ok {
			matches = append(matches, match{rule: rule})
		}
	}

	if len(matches) == 0 {
		return Decision{Method: MethodRule, Confidence: 0, SelectedAgents: nil}, nil
	}

	// Sort by priority desc, then base_confidence desc, then name asc
	// for stable tie-breaking (spec.md §9 open question (b)).
	sort.SliceStable(matches, func(i, j int) bool {
		a, b := matches[i].rule, matches[j].rule
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.BaseConfidence != b.BaseConfidence {
			return a.BaseConfidence > b.BaseConfidence
		}
		return a.Name < b.Name
	})

	if len(matches) == 1 {
		rule := matches[0].rule
		agents := r.filterExisting(rule.TargetAgents)
		if len(agents) == 0 {
			return Decision{Method: MethodRule, Confidence: 0}, nil
		}
		return Decision{
			SelectedAgents: agents,
			Parallel:       rule.Parallel,
			Method:         MethodRule,
			Confidence:     rule.BaseConfidence,
			Explanation:    fmt.Sprintf("rule %q matched", rule.Name),
		}, nil
	}

	// Multi-match: union target agents across matches with confidence
	// >= tau, dedupe preserving first occurrence, mean confidence.
	var highConfidence []Rule
	for _, m := range matches {
		if m.rule.BaseConfidence >= HighConfidenceThreshold {
			highConfidence = append(highConfidence, m.rule)
		}
	}
	if len(highConfidence) == 0 {
		// Fall back to the single best match.
		rule := matches[0].rule
		agents := r.filterExisting(rule.TargetAgents)
		if len(agents) == 0 {
			return Decision{Method: MethodRule, Confidence: 0}, nil
		}
		return Decision{
			SelectedAgents: agents,
			Parallel:       rule.Parallel,
			Method:         MethodRule,
			Confidence:     rule.BaseConfidence,
			Explanation:    fmt.Sprintf("rule %q matched (highest priority)", rule.Name),
		}, nil
	}

	var union []string
	seen := make(map[string]bool)
	var sum float64
	var names []string
	for _, rule := range highConfidence {
		sum += rule.BaseConfidence
		names = append(names, rule.Name)
		for _, a := range rule.TargetAgents {
			if seen[a] {
				continue
			}
			seen[a] = true
			union = append(union, a)
		}
	}
	union = r.filterExisting(union)
	if len(union) == 0 {
		return Decision{Method: MethodRule, Confidence: 0}, nil
	}

	return Decision{
		SelectedAgents: union,
		Parallel:       true,
		Method:         MethodRuleMulti,
		Confidence:     sum / float64(len(highConfidence)),
		Explanation:    fmt.Sprintf("rules %s matched with high confidence", strings.Join(names, ",")),
	}, nil
}

func (r *RuleReasoner) filterExisting(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if r.lookup == nil {
			out = append(out, n)
			continue
		}
		if d, ok := r.lookup.Get(n); ok && d.Enabled {
			out = append(out, n)
		}
	}
	return out
}

func (r *RuleReasoner) evaluate(rule Rule, req envelope.Request) (bool, error) {
	if len(rule.Conditions) == 0 {
		return false, nil
	}
	switch rule.Combinator {
	case CombinatorOr:
		for _, c := range rule.Conditions {
			ok, err := r.matchCondition(c, req)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	default: // and
		for _, c := range rule.Conditions {
			ok, err := r.matchCondition(c, req)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	}
}

func (r *RuleReasoner) matchCondition(c Condition, req envelope.Request) (bool, error) {
	value, present := req.Get(c.FieldPath)

	if c.Operator == OpExists {
		return present, nil
	}
	if !present {
		return false, nil
	}

	switch c.Operator {
	case OpEquals:
		return compareEqual(value, c.Value, c.CaseSensitive), nil
	case OpContains:
		return containsValue(value, c.Value, c.CaseSensitive), nil
	case OpMatchesRe:
		return r.matchRegex(c, value)
	case OpGT:
		a, b, ok := numeric(value, c.Value)
		return ok && a > b, nil
	case OpLT:
		a, b, ok := numeric(value, c.Value)
		return ok && a < b, nil
	case OpIn:
		return inSet(value, c.Value, c.CaseSensitive), nil
	default:
		return false, fmt.Errorf("unknown operator %q", c.Operator)
	}
}

// matchRegex anchors the pattern conservatively: unless the caller has
// already anchored it, we require a full match, not a search, so a
// pattern like "weather" cannot accidentally match "the weathervane".
func (r *RuleReasoner) matchRegex(c Condition, value any) (bool, error) {
	pattern, _ := c.Value.(string)
	if pattern == "" {
		return false, nil
	}
	if !strings.HasPrefix(pattern, "^") {
		pattern = "^" + pattern
	}
	if !strings.HasSuffix(pattern, "$") {
		pattern += "$"
	}
	if !c.CaseSensitive {
		pattern = "(?i)" + pattern
	}
	r.reCacheMu.RLock()
	re, ok := r.reCache[pattern]
	r.reCacheMu.RUnlock()
	if !ok {
		var err error
		re, err = regexp.Compile(pattern)
		if err != nil {
			return false, fmt.Errorf("bad regex %q: %w", pattern, err)
		}
		r.reCacheMu.Lock()
		r.reCache[pattern] = re
		r.reCacheMu.Unlock()
	}
	s := fmt.Sprintf("%v", value)
	return re.MatchString(s), nil
}

func compareEqual(a, b any, caseSensitive bool) bool {
	as, aIsString := a.(string)
	bs, bIsString := b.(string)
	if aIsString && bIsString {
		if caseSensitive {
			return as == bs
		}
		return strings.EqualFold(as, bs)
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func containsValue(haystack, needle any, caseSensitive bool) bool {
	hs := fmt.Sprintf("%v", haystack)
	ns := fmt.Sprintf("%v", needle)
	if !caseSensitive {
		hs = strings.ToLower(hs)
		ns = strings.ToLower(ns)
	}
	return strings.Contains(hs, ns)
}

func inSet(value, set any, caseSensitive bool) bool {
	items, ok := set.([]string)
	if !ok {
		if anyItems, ok2 := set.([]any); ok2 {
			for _, it := range anyItems {
				items = append(items, fmt.Sprintf("%v", it))
			}
		}
	}
	for _, it := range items {
		if compareEqual(value, it, caseSensitive) {
			return true
		}
	}
	return false
}

func numeric(a, b any) (float64, float64, bool) {
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	return af, bf, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
