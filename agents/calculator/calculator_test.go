package calculator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentflow/orchestrator/agent"
)

func TestCalculatorAdds(t *testing.T) {
	fn := New()
	out, err := fn(context.Background(), map[string]any{
		"operation": "add",
		"operands":  []any{15.0, 27.0},
	})
	require.NoError(t, err)
	data := out.(map[string]any)
	assert.Equal(t, 42.0, data["result"])
}

func TestCalculatorDivideByZeroIsPermanentFailure(t *testing.T) {
	fn := New()
	_, err := fn(context.Background(), map[string]any{
		"operation": "divide",
		"operands":  []any{10.0, 0.0},
	})
	require.Error(t, err)

	var ce *agent.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, agent.FailurePermanent, ce.Kind)
	assert.False(t, ce.Kind.Retriable())
}

func TestCalculatorRejectsTooFewOperands(t *testing.T) {
	fn := New()
	_, err := fn(context.Background(), map[string]any{
		"operation": "add",
		"operands":  []any{1.0},
	})
	require.Error(t, err)
}

func TestCalculatorMultiplySubtract(t *testing.T) {
	fn := New()
	out, err := fn(context.Background(), map[string]any{
		"operation": "multiply",
		"operands":  []any{6.0, 7.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 42.0, out.(map[string]any)["result"])

	out, err = fn(context.Background(), map[string]any{
		"operation": "subtract",
		"operands":  []any{10.0, 3.0},
	})
	require.NoError(t, err)
	assert.Equal(t, 7.0, out.(map[string]any)["result"])
}
