package orchestrator

import (
	"time"

	"github.com/agentflow/orchestrator/agent"
	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/reasoning"
)

// aggregate builds the response envelope's data/errors/metadata from a set
// of agent responses, per spec.md §4.7's aggregation rule.
func aggregate(requestID string, decision reasoning.Decision, responses []agent.Response, totalExecution time.Duration, now time.Time) envelope.Response {
	data := make(map[string]any, len(responses))
	var errs []envelope.AgentError
	var trail []string
	successful, failed := 0, 0

	for _, r := range responses {
		trail = append(trail, r.AgentName)
		if r.Success {
			successful++
			data[r.AgentName] = r.Data
			continue
		}
		failed++
		msg := ""
		if r.Error != nil {
			msg = r.Error.Error()
		}
		errs = append(errs, envelope.AgentError{
			Agent:     r.AgentName,
			ErrorKind: string(r.ErrorKind),
			Message:   msg,
		})
	}

	return envelope.Response{
		Success: criticalAgentsSucceeded(decision, responses) && successful > 0,
		Data:    data,
		Errors:  errs,
		Metadata: envelope.Metadata{
			Count:           len(responses),
			Successful:      successful,
			Failed:          failed,
			AgentTrail:      trail,
			TotalExecution:  totalExecution,
			ReasoningMethod: string(decision.Method),
			RequestID:       requestID,
			Timestamp:       now,
		},
	}
}

// criticalAgentsSucceeded reports whether every agent the decision
// selected (its "critical set") ultimately succeeded. A fallback
// substitution already reports Success=true in its slot, so a plain count
// against the number of selected agents is sufficient here.
func criticalAgentsSucceeded(decision reasoning.Decision, responses []agent.Response) bool {
	if len(decision.SelectedAgents) == 0 {
		return false
	}
	return successCount(responses) >= len(decision.SelectedAgents)
}

func successCount(responses []agent.Response) int {
	n := 0
	for _, r := range responses {
		if r.Success {
			n++
		}
	}
	return n
}
