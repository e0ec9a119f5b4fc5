package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/registry"
)

func testLookup(names ...string) *registry.Registry {
	r := registry.New()
	for _, n := range names {
		_ = r.Register(registry.Descriptor{Name: n, Transport: registry.TransportInProcess, Enabled: true})
	}
	return r
}

func TestRuleReasonerSingleMatch(t *testing.T) {
	lookup := testLookup("calculator")
	rules := []Rule{
		{
			Name:           "math",
			Priority:       10,
			Enabled:        true,
			Combinator:     CombinatorAnd,
			Conditions:     []Condition{{FieldPath: "operation", Operator: OpEquals, Value: "add"}},
			TargetAgents:   []string{"calculator"},
			BaseConfidence: 0.9,
		},
	}
	r := NewRuleReasoner(rules, lookup)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "calculate 15 + 27", Fields: map[string]any{"operation": "add"}})
	require.NoError(t, err)
	assert.Equal(t, MethodRule, decision.Method)
	assert.Equal(t, []string{"calculator"}, decision.SelectedAgents)
	assert.False(t, decision.Parallel)
}

func TestRuleReasonerNoMatchReturnsEmpty(t *testing.T) {
	lookup := testLookup("calculator")
	r := NewRuleReasoner(nil, lookup)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "hello"})
	require.NoError(t, err)
	assert.True(t, decision.Empty())
	assert.Equal(t, 0.0, decision.Confidence)
}

func TestRuleReasonerMultiMatchUnionsAndAverages(t *testing.T) {
	lookup := testLookup("calculator", "weather")
	rules := []Rule{
		{Name: "math", Priority: 5, Enabled: true, Combinator: CombinatorOr,
			Conditions:     []Condition{{FieldPath: "query", Operator: OpContains, Value: "add"}},
			TargetAgents:   []string{"calculator"}, BaseConfidence: 0.8},
		{Name: "weather", Priority: 5, Enabled: true, Combinator: CombinatorOr,
			Conditions:     []Condition{{FieldPath: "query", Operator: OpContains, Value: "weather"}},
			TargetAgents:   []string{"weather"}, BaseConfidence: 0.8},
	}
	r := NewRuleReasoner(rules, lookup)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "weather in London and add 5 8"})
	require.NoError(t, err)
	assert.Equal(t, MethodRuleMulti, decision.Method)
	assert.True(t, decision.Parallel)
	assert.ElementsMatch(t, []string{"calculator", "weather"}, decision.SelectedAgents)
	assert.InDelta(t, 0.8, decision.Confidence, 0.0001)
}

func TestRuleReasonerTieBreaksByNameAscending(t *testing.T) {
	lookup := testLookup("zeta", "alpha")
	rules := []Rule{
		{Name: "zeta", Priority: 1, Enabled: true, Combinator: CombinatorAnd,
			Conditions: []Condition{{FieldPath: "q", Operator: OpExists}}, TargetAgents: []string{"zeta"}, BaseConfidence: 0.5},
		{Name: "alpha", Priority: 1, Enabled: true, Combinator: CombinatorAnd,
			Conditions: []Condition{{FieldPath: "q", Operator: OpExists}}, TargetAgents: []string{"alpha"}, BaseConfidence: 0.5},
	}
	r := NewRuleReasoner(rules, lookup)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "x", Fields: map[string]any{"q": "1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha"}, decision.SelectedAgents)
}

func TestRuleReasonerDropsDisabledTargetAgents(t *testing.T) {
	lookup := registry.New()
	_ = lookup.Register(registry.Descriptor{Name: "calculator", Transport: registry.TransportInProcess, Enabled: false})
	rules := []Rule{
		{Name: "math", Priority: 1, Enabled: true, Combinator: CombinatorAnd,
			Conditions: []Condition{{FieldPath: "q", Operator: OpExists}}, TargetAgents: []string{"calculator"}, BaseConfidence: 0.9},
	}
	r := NewRuleReasoner(rules, lookup)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "x", Fields: map[string]any{"q": "1"}})
	require.NoError(t, err)
	assert.True(t, decision.Empty())
}

func TestRuleReasonerDeterministic(t *testing.T) {
	lookup := testLookup("calculator")
	rules := []Rule{
		{Name: "math", Priority: 1, Enabled: true, Combinator: CombinatorAnd,
			Conditions: []Condition{{FieldPath: "operation", Operator: OpEquals, Value: "add"}},
			TargetAgents: []string{"calculator"}, BaseConfidence: 0.9},
	}
	r := NewRuleReasoner(rules, lookup)
	req := envelope.Request{Query: "x", Fields: map[string]any{"operation": "add"}}

	d1, _ := r.Decide(context.Background(), req)
	d2, _ := r.Decide(context.Background(), req)
	assert.Equal(t, d1, d2)
}

func TestRuleReasonerRegexAnchored(t *testing.T) {
	lookup := testLookup("calculator")
	rules := []Rule{
		{Name: "math", Priority: 1, Enabled: true, Combinator: CombinatorAnd,
			Conditions: []Condition{{FieldPath: "query", Operator: OpMatchesRe, Value: "calculate.*"}},
			TargetAgents: []string{"calculator"}, BaseConfidence: 0.9},
	}
	r := NewRuleReasoner(rules, lookup)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "please calculate this"})
	require.NoError(t, err)
	assert.True(t, decision.Empty(), "anchored regex should not match substring occurrence")
}

func TestRuleReasonerContainsCaseInsensitiveByDefault(t *testing.T) {
	lookup := testLookup("search")
	rules := []Rule{
		{Name: "search", Priority: 1, Enabled: true, Combinator: CombinatorAnd,
			Conditions: []Condition{{FieldPath: "query", Operator: OpContains, Value: "WEATHER"}},
			TargetAgents: []string{"search"}, BaseConfidence: 0.9},
	}
	r := NewRuleReasoner(rules, lookup)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "what's the weather like"})
	require.NoError(t, err)
	assert.False(t, decision.Empty())
}
