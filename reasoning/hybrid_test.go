package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/gateway"
)

func TestHybridUsesRuleWhenConfident(t *testing.T) {
	lookup := testLookup("calculator")
	rules := []Rule{
		{Name: "math", Priority: 1, Enabled: true, Combinator: CombinatorAnd,
			Conditions: []Condition{{FieldPath: "operation", Operator: OpEquals, Value: "add"}},
			TargetAgents: []string{"calculator"}, BaseConfidence: 0.9},
	}
	ruleR := NewRuleReasoner(rules, lookup)
	aiR := NewAIReasoner(&gateway.Fake{}, lookup, nil)
	h := NewHybridReasoner(ruleR, aiR, nil)

	decision, err := h.Decide(context.Background(), envelope.Request{Query: "add", Fields: map[string]any{"operation": "add"}})
	require.NoError(t, err)
	assert.Equal(t, Method("hybrid_rule"), decision.Method)
	assert.Equal(t, []string{"calculator"}, decision.SelectedAgents)
}

func TestHybridFallsBackToAIWhenRulesLowConfidence(t *testing.T) {
	lookup := testLookup("calculator")
	ruleR := NewRuleReasoner(nil, lookup)
	fake := &gateway.Fake{Responses: []gateway.Response{{Content: `{"agents":["calculator"],"confidence":0.8}`}}}
	aiR := NewAIReasoner(fake, lookup, nil)
	h := NewHybridReasoner(ruleR, aiR, nil)

	decision, err := h.Decide(context.Background(), envelope.Request{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, MethodHybridAI, decision.Method)
}

func TestHybridDegradesToEmptyWhenBothFail(t *testing.T) {
	lookup := testLookup("calculator")
	ruleR := NewRuleReasoner(nil, lookup)
	fake := &gateway.Fake{Err: assertErr{}}
	aiR := NewAIReasoner(fake, lookup, nil)
	h := NewHybridReasoner(ruleR, aiR, nil)

	decision, err := h.Decide(context.Background(), envelope.Request{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, MethodHybrid, decision.Method)
	assert.Equal(t, 0.0, decision.Confidence)
}

type assertErr struct{}

func (assertErr) Error() string { return "gateway down" }

func TestHybridValidationDowngradesNeverExpands(t *testing.T) {
	lookup := testLookup("calculator", "weather")
	rules := []Rule{
		{Name: "math", Priority: 5, Enabled: true, Combinator: CombinatorOr,
			Conditions: []Condition{{FieldPath: "query", Operator: OpContains, Value: "add"}},
			TargetAgents: []string{"calculator"}, BaseConfidence: 0.8},
		{Name: "weather", Priority: 5, Enabled: true, Combinator: CombinatorOr,
			Conditions: []Condition{{FieldPath: "query", Operator: OpContains, Value: "weather"}},
			TargetAgents: []string{"weather"}, BaseConfidence: 0.8},
	}
	ruleR := NewRuleReasoner(rules, lookup)
	// AI only agrees with one of the two agents the rules picked.
	fake := &gateway.Fake{Responses: []gateway.Response{{Content: `{"agents":["calculator"],"confidence":0.5}`}}}
	aiR := NewAIReasoner(fake, lookup, nil)
	h := NewHybridReasoner(ruleR, aiR, nil)
	h.ValidateMultiWithAI = true

	decision, err := h.Decide(context.Background(), envelope.Request{Query: "weather and add"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"calculator", "weather"}, decision.SelectedAgents, "validation never expands or shrinks the agent set")
	assert.Less(t, decision.Confidence, 0.8, "partial AI agreement downgrades confidence")
}
