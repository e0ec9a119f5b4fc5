package reasoning

import (
	"context"

	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/telemetry"
)

// HybridReasoner runs the rule strategy first and only falls back to the
// AI strategy when the rules don't reach high confidence (spec.md §4.5).
type HybridReasoner struct {
	rule   *RuleReasoner
	ai     *AIReasoner
	logger telemetry.Logger
	// ValidateMultiWithAI, when true, asks the AI strategy to sanity
	// check a rule_multi selection; rejection only ever downgrades
	// confidence, never expands the agent set.
	ValidateMultiWithAI bool
}

// NewHybridReasoner wires a rule reasoner and an AI reasoner together.
func NewHybridReasoner(rule *RuleReasoner, ai *AIReasoner, logger telemetry.Logger) *HybridReasoner {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &HybridReasoner{rule: rule, ai: ai, logger: logger}
}

// Decide implements Reasoner.
func (h *HybridReasoner) Decide(ctx context.Context, req envelope.Request) (Decision, error) {
	ruleDecision, err := h.rule.Decide(ctx, req)
	if err != nil {
		return Decision{}, err
	}

	if ruleDecision.Confidence >= HighConfidenceThreshold && !ruleDecision.Empty() {
		wasMulti := ruleDecision.Method == MethodRuleMulti
		ruleDecision.Method = downgrade(ruleDecision.Method)

		if h.ValidateMultiWithAI && wasMulti {
			return h.validateWithAI(ctx, req, ruleDecision), nil
		}
		return ruleDecision, nil
	}

	aiDecision, err := h.ai.Decide(ctx, req)
	if err != nil {
		h.logger.Warn("hybrid reasoner: AI strategy failed, degrading to empty decision", map[string]any{"error": err.Error()})
		return Decision{Method: MethodHybrid, Confidence: 0}, nil
	}
	aiDecision.Method = MethodHybridAI
	return aiDecision, nil
}

// downgrade maps a rule Decision's method to its hybrid-qualified name
// while preserving which rule path produced it.
func downgrade(m Method) Method {
	switch m {
	case MethodRuleMulti:
		return "hybrid_rule_multi"
	default:
		return "hybrid_rule"
	}
}

// validateWithAI asks the AI strategy to confirm a rule_multi selection.
// A rejection downgrades confidence; it never adds agents the rules
// didn't already select.
func (h *HybridReasoner) validateWithAI(ctx context.Context, req envelope.Request, ruleDecision Decision) Decision {
	aiDecision, err := h.ai.Decide(ctx, req)
	if err != nil {
		// Gateway unavailable: keep the rule decision as-is.
		return ruleDecision
	}

	agreed := make(map[string]bool, len(aiDecision.SelectedAgents))
	for _, a := range aiDecision.SelectedAgents {
		agreed[a] = true
	}
	confirmed := 0
	for _, a := range ruleDecision.SelectedAgents {
		if agreed[a] {
			confirmed++
		}
	}
	if confirmed < len(ruleDecision.SelectedAgents) {
		ruleDecision.Confidence *= float64(confirmed) / float64(len(ruleDecision.SelectedAgents))
		ruleDecision.Explanation += " (AI validation downgraded confidence: partial agreement)"
	}
	return ruleDecision
}
