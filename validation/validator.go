// Package validation scores an orchestrator run's aggregated agent
// outputs for relevance, cross-agent consistency, and hallucination risk
// before the pipeline decides whether to retry or respond.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentflow/orchestrator/agent"
	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/gateway"
	"github.com/agentflow/orchestrator/reasoning"
	"github.com/agentflow/orchestrator/resilience"
	"github.com/agentflow/orchestrator/telemetry"
)

// Threshold is the default confidence floor θ from spec.md §4.6.5.
const Threshold = 0.70

// Weights controls the weighted sum in the final scoring step. They must
// sum to 1; when the AI check is skipped its weight is redistributed
// proportionally across the remaining three checks.
type Weights struct {
	Basic         float64
	Consistency   float64
	Hallucination float64
	AI            float64
}

// DefaultWeights matches spec.md's "weights summing to 1" requirement.
func DefaultWeights() Weights {
	return Weights{Basic: 0.3, Consistency: 0.2, Hallucination: 0.3, AI: 0.2}
}

// Validator implements the five-check response validator of spec.md §4.6.
type Validator struct {
	client    gateway.Client
	breaker   *resilience.Breaker
	logger    telemetry.Logger
	weights   Weights
	threshold float64
	// EnableAICheck toggles the optional fourth check. It is skipped
	// automatically when the gateway client is nil or its breaker is open.
	EnableAICheck bool
}

// New builds a Validator. client may be nil, in which case the AI check is
// always skipped regardless of EnableAICheck.
func New(client gateway.Client, logger telemetry.Logger) *Validator {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &Validator{
		client:    client,
		breaker:   resilience.NewBreaker("validation-gateway", resilience.DefaultBreakerConfig()),
		logger:    logger,
		weights:   DefaultWeights(),
		threshold: Threshold,
	}
}

// SetWeights overrides the default scoring weights.
func (v *Validator) SetWeights(w Weights) { v.weights = w }

// SetThreshold overrides the default confidence floor.
func (v *Validator) SetThreshold(t float64) { v.threshold = t }

// Validate runs all five checks against the aggregated responses and
// produces a Result. It never mutates responses.
func (v *Validator) Validate(ctx context.Context, req envelope.Request, decision reasoning.Decision, responses []agent.Response) Result {
	result := Result{PerCheckDetails: map[string]any{}}

	basicOK, basicIssues := basicCheck(responses)
	result.Issues = append(result.Issues, basicIssues...)
	result.PerCheckDetails["basic_ok"] = basicOK

	consistencyOK, consistencyIssues := consistencyCheck(responses)
	result.Issues = append(result.Issues, consistencyIssues...)
	result.PerCheckDetails["consistency_ok"] = consistencyOK

	hallucinated, hallucinationIssues := hallucinationCheck(req, responses)
	result.Issues = append(result.Issues, hallucinationIssues...)
	result.HallucinationFlag = hallucinated
	result.PerCheckDetails["hallucination_flag"] = hallucinated

	aiScore, aiRan := v.runAICheck(ctx, req, responses)
	result.PerCheckDetails["ai_check_ran"] = aiRan
	if aiRan {
		result.PerCheckDetails["ai_relevance"] = aiScore
	}

	result.ConfidenceScore = v.score(basicOK, consistencyOK, hallucinated, aiScore, aiRan)
	result.IsValid = basicOK && consistencyOK && !hallucinated && result.ConfidenceScore >= v.threshold
	return result
}

func (v *Validator) score(basicOK, consistencyOK, hallucinated bool, aiScore float64, aiRan bool) float64 {
	boolScore := func(b bool) float64 {
		if b {
			return 1
		}
		return 0
	}
	if !aiRan {
		total := v.weights.Basic + v.weights.Consistency + v.weights.Hallucination
		if total == 0 {
			return 0
		}
		return (v.weights.Basic*boolScore(basicOK) +
			v.weights.Consistency*boolScore(consistencyOK) +
			v.weights.Hallucination*boolScore(!hallucinated)) / total
	}
	return v.weights.Basic*boolScore(basicOK) +
		v.weights.Consistency*boolScore(consistencyOK) +
		v.weights.Hallucination*boolScore(!hallucinated) +
		v.weights.AI*aiScore
}

// runAICheck asks the gateway to rate relevance ∈ [0,1]; it is skipped
// when disabled, the gateway is nil, the request is trivial (no
// successful agent output to judge), or the dedicated breaker is open.
func (v *Validator) runAICheck(ctx context.Context, req envelope.Request, responses []agent.Response) (score float64, ran bool) {
	if !v.EnableAICheck || v.client == nil {
		return 0, false
	}
	if !anySucceeded(responses) {
		return 0, false
	}
	if !v.breaker.Allow() {
		v.logger.Debug("validation: AI check skipped, gateway circuit open", nil)
		return 0, false
	}

	resp, err := v.client.Complete(ctx, gateway.Request{
		System:   aiCheckSystemPrompt,
		Messages: []gateway.Message{{Role: "user", Content: buildAICheckPrompt(req, responses)}},
		MaxTokens: 256,
	})
	if err != nil {
		v.breaker.RecordFailure()
		v.logger.Warn("validation: AI check failed", map[string]any{"error": err.Error()})
		return 0, false
	}
	v.breaker.RecordSuccess()

	relevance, ok := parseRelevance(resp.Content)
	if !ok {
		return 0, false
	}
	return relevance, true
}

func anySucceeded(responses []agent.Response) bool {
	for _, r := range responses {
		if r.Success {
			return true
		}
	}
	return false
}

const aiCheckSystemPrompt = "You grade whether an agent's output is relevant to a user's request. " +
	"Respond with a single JSON object {\"relevance\": <0..1>, \"contradiction\": <bool>} and nothing else."

func buildAICheckPrompt(req envelope.Request, responses []agent.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", req.Query)
	for _, r := range responses {
		if r.Success {
			fmt.Fprintf(&b, "%s produced: %v\n", r.AgentName, r.Data)
		}
	}
	return b.String()
}

var relevanceBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

type aiCheckResponse struct {
	Relevance    float64 `json:"relevance"`
	Contradiction bool   `json:"contradiction"`
}

func parseRelevance(content string) (float64, bool) {
	block := relevanceBlockRe.FindString(content)
	if block == "" {
		return 0, false
	}
	var parsed aiCheckResponse
	if err := json.Unmarshal([]byte(block), &parsed); err != nil {
		return 0, false
	}
	if parsed.Contradiction {
		return 0, true
	}
	if parsed.Relevance < 0 {
		parsed.Relevance = 0
	}
	if parsed.Relevance > 1 {
		parsed.Relevance = 1
	}
	return parsed.Relevance, true
}
