package reasoning

import (
	"context"

	"github.com/agentflow/orchestrator/envelope"
)

// Reasoner decides which agents to invoke. The three strategies (rule,
// AI, hybrid) are independent implementations chosen once at
// construction time; there is no runtime strategy switch (spec.md §9).
type Reasoner interface {
	Decide(ctx context.Context, req envelope.Request) (Decision, error)
}
