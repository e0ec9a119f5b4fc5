// Package calculator is a builtin in-process agent implementing basic
// arithmetic, exercised by spec.md §8 scenarios 1, 2, and 5.
package calculator

import (
	"context"
	"fmt"

	"github.com/agentflow/orchestrator/agent"
)

// New returns the agent.Func that backs the "calculator" descriptor. It
// reads "operation" (add, subtract, multiply, divide) and "operands" (a
// list of numbers) from the filtered input.
func New() agent.Func {
	return func(ctx context.Context, input map[string]any) (any, error) {
		op, _ := input["operation"].(string)
		operands, err := floatOperands(input["operands"])
		if err != nil {
			return nil, &agent.ClassifiedError{Kind: agent.FailureInputRejected, Err: err}
		}
		if len(operands) < 2 {
			return nil, &agent.ClassifiedError{Kind: agent.FailureInputRejected, Err: fmt.Errorf("calculator: at least two operands are required")}
		}

		result := operands[0]
		for _, v := range operands[1:] {
			switch op {
			case "add", "":
				result += v
			case "subtract":
				result -= v
			case "multiply":
				result *= v
			case "divide":
				if v == 0 {
					return nil, &agent.ClassifiedError{Kind: agent.FailurePermanent, Err: fmt.Errorf("calculator: division by zero")}
				}
				result /= v
			default:
				return nil, &agent.ClassifiedError{Kind: agent.FailureInputRejected, Err: fmt.Errorf("calculator: unknown operation %q", op)}
			}
		}

		return map[string]any{"result": result, "operation": op}, nil
	}
}

func floatOperands(v any) ([]float64, error) {
	list, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("calculator: operands must be a list of numbers")
	}
	out := make([]float64, 0, len(list))
	for _, item := range list {
		switch n := item.(type) {
		case float64:
			out = append(out, n)
		case int:
			out = append(out, float64(n))
		case int64:
			out = append(out, float64(n))
		default:
			return nil, fmt.Errorf("calculator: operand %v is not a number", item)
		}
	}
	return out, nil
}
