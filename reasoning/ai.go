package reasoning

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/gateway"
	"github.com/agentflow/orchestrator/registry"
	"github.com/agentflow/orchestrator/resilience"
	"github.com/agentflow/orchestrator/telemetry"
)

// gatewayDecision is the JSON shape the model gateway is asked to return.
type gatewayDecision struct {
	Agents      []string           `json:"agents"`
	Reasoning   string             `json:"reasoning"`
	Confidence  float64            `json:"confidence"`
	Parallel    bool               `json:"parallel"`
	Parameters  map[string]map[string]any `json:"parameters"`
}

var jsonBlockRe = regexp.MustCompile(`(?s)\{.*\}`)

// AIReasoner asks the model gateway which agents to invoke (spec.md
// §4.5's "AI strategy").
type AIReasoner struct {
	client  gateway.Client
	lookup  *registry.Registry
	breaker *resilience.Breaker
	logger  telemetry.Logger
	maxRetries int
}

// NewAIReasoner builds an AIReasoner with its own dedicated breaker
// ("reasoning-gateway"), as required by spec.md §4.5.
func NewAIReasoner(client gateway.Client, lookup *registry.Registry, logger telemetry.Logger) *AIReasoner {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	return &AIReasoner{
		client:     client,
		lookup:     lookup,
		breaker:    resilience.NewBreaker("reasoning-gateway", resilience.DefaultBreakerConfig()),
		logger:     logger,
		maxRetries: 2,
	}
}

// Decide implements Reasoner.
func (a *AIReasoner) Decide(ctx context.Context, req envelope.Request) (Decision, error) {
	if !a.breaker.Allow() {
		return Decision{}, fmt.Errorf("reasoning: %w: gateway circuit open", errGateway)
	}

	prompt := a.buildPrompt(req)
	var resp gateway.Response
	err := resilience.Retry(ctx, resilience.DefaultBackoffConfig(), a.maxRetries+1, resilience.AlwaysRetriable, func(attempt int) error {
		var callErr error
		resp, callErr = a.client.Complete(ctx, gateway.Request{
			System:      systemPrompt,
			Messages:    []gateway.Message{{Role: "user", Content: prompt}},
			Temperature: 0,
			MaxTokens:   512,
		})
		return callErr
	})
	if err != nil {
		a.breaker.RecordFailure()
		return Decision{}, fmt.Errorf("reasoning: %w: %v", errGateway, err)
	}
	a.breaker.RecordSuccess()
	a.logger.Debug("reasoning gateway call completed", map[string]any{
		"prompt_tokens":     resp.PromptTokens,
		"completion_tokens": resp.CompletionTokens,
		"latency_ms":        resp.Latency,
	})

	decision, parseErr := a.parse(resp.Content)
	if parseErr != nil {
		return Decision{}, fmt.Errorf("reasoning: %w: %v", errGateway, parseErr)
	}
	if decision.Empty() {
		return Decision{}, fmt.Errorf("reasoning: %w: gateway selected no valid agents", errGateway)
	}
	return decision, nil
}

const systemPrompt = "You are the reasoning stage of an agent orchestrator. Given the list of " +
	"available agents and a user request, respond with a single JSON object " +
	"{agents, reasoning, confidence, parallel, parameters} and nothing else."

func (a *AIReasoner) buildPrompt(req envelope.Request) string {
	var b strings.Builder
	b.WriteString("Request: ")
	b.WriteString(req.Query)
	b.WriteString("\nAvailable agents:\n")
	for _, d := range a.lookup.ListEnabled() {
		fmt.Fprintf(&b, "- %s: capabilities=%v\n", d.Name, d.Capabilities)
	}
	return b.String()
}

func (a *AIReasoner) parse(content string) (Decision, error) {
	block := jsonBlockRe.FindString(content)
	if block == "" {
		block = content
	}
	var gd gatewayDecision
	if err := json.Unmarshal([]byte(block), &gd); err != nil {
		return Decision{}, fmt.Errorf("invalid gateway JSON: %w", err)
	}

	var valid []string
	for _, name := range gd.Agents {
		if d, ok := a.lookup.Get(name); ok && d.Enabled {
			valid = append(valid, name)
		}
	}
	confidence := gd.Confidence
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return Decision{
		SelectedAgents: valid,
		Parallel:       gd.Parallel,
		PerAgentParams: gd.Parameters,
		Method:         MethodAI,
		Confidence:     confidence,
		Explanation:    gd.Reasoning,
	}, nil
}

var errGateway = fmt.Errorf("gateway error")
