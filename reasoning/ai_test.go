package reasoning

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/gateway"
)

func TestAIReasonerParsesValidDecision(t *testing.T) {
	lookup := testLookup("calculator", "weather")
	fake := &gateway.Fake{Responses: []gateway.Response{{Content: `{"agents":["calculator"],"reasoning":"math","confidence":0.95,"parallel":false}`}}}
	r := NewAIReasoner(fake, lookup, nil)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "add 1 and 2"})
	require.NoError(t, err)
	assert.Equal(t, MethodAI, decision.Method)
	assert.Equal(t, []string{"calculator"}, decision.SelectedAgents)
	assert.Equal(t, 0.95, decision.Confidence)
}

func TestAIReasonerDropsUnknownAgents(t *testing.T) {
	lookup := testLookup("calculator")
	fake := &gateway.Fake{Responses: []gateway.Response{{Content: `{"agents":["calculator","ghost"],"confidence":0.8}`}}}
	r := NewAIReasoner(fake, lookup, nil)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"calculator"}, decision.SelectedAgents)
}

func TestAIReasonerFailsWhenNoValidAgentsRemain(t *testing.T) {
	lookup := testLookup("calculator")
	fake := &gateway.Fake{Responses: []gateway.Response{{Content: `{"agents":["ghost"],"confidence":0.8}`}}}
	r := NewAIReasoner(fake, lookup, nil)

	_, err := r.Decide(context.Background(), envelope.Request{Query: "x"})
	assert.Error(t, err)
}

func TestAIReasonerClampsConfidence(t *testing.T) {
	lookup := testLookup("calculator")
	fake := &gateway.Fake{Responses: []gateway.Response{{Content: `{"agents":["calculator"],"confidence":5}`}}}
	r := NewAIReasoner(fake, lookup, nil)

	decision, err := r.Decide(context.Background(), envelope.Request{Query: "x"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, decision.Confidence)
}

func TestAIReasonerReturnsGatewayErrorOnMalformedJSON(t *testing.T) {
	lookup := testLookup("calculator")
	fake := &gateway.Fake{Responses: []gateway.Response{{Content: `not json`}}}
	r := NewAIReasoner(fake, lookup, nil)

	_, err := r.Decide(context.Background(), envelope.Request{Query: "x"})
	assert.Error(t, err)
}
