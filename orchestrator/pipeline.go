// Package orchestrator wires the registry, resilience executor, reasoner,
// and validator into the end-to-end request pipeline of spec.md §4.7:
// sanitize -> reason -> execute -> validate -> optional retry -> aggregate
// -> respond.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agentflow/orchestrator/agent"
	"github.com/agentflow/orchestrator/envelope"
	"github.com/agentflow/orchestrator/reasoning"
	"github.com/agentflow/orchestrator/resilience"
	"github.com/agentflow/orchestrator/sanitize"
	"github.com/agentflow/orchestrator/session"
	"github.com/agentflow/orchestrator/telemetry"
	"github.com/agentflow/orchestrator/validation"
	"github.com/agentflow/orchestrator/querylog"
)

// DefaultPipelineDeadline bounds every request's total wall-clock budget
// (spec.md §5, "min(caller_deadline, pipeline_default=120s)").
const DefaultPipelineDeadline = 120 * time.Second

// DefaultMaxValidationRetries is how many times the pipeline re-executes
// after a failed validation before giving up and returning best-effort.
const DefaultMaxValidationRetries = 2

// Pipeline runs the full request lifecycle for one orchestrator process.
type Pipeline struct {
	executor  *resilience.Executor
	reasoner  reasoning.Reasoner
	validator *validation.Validator
	sessions  session.Store
	logs      *querylog.Writer
	logger    telemetry.Logger
	metrics   *telemetry.Metrics
	cache     *responseCache
	tracer    *telemetry.Tracer

	MaxValidationRetries int
	PipelineDeadline     time.Duration
}

// SetTracer attaches a Tracer that wraps Process's stages (reasoning,
// agent execution, validation) in spans. A nil tracer (the default)
// leaves Process's span-free.
func (p *Pipeline) SetTracer(t *telemetry.Tracer) {
	p.tracer = t
}

// startSpan opens a span when a tracer is attached, and is a no-op
// otherwise so callers never need a nil check.
func (p *Pipeline) startSpan(ctx context.Context, name string) (context.Context, func()) {
	if p.tracer == nil {
		return ctx, func() {}
	}
	spanCtx, span := p.tracer.StartSpan(ctx, name)
	return spanCtx, func() { span.End() }
}

// New builds a Pipeline. cacheTTL of 0 disables the response cache.
func New(executor *resilience.Executor, reasoner reasoning.Reasoner, validator *validation.Validator, sessions session.Store, logs *querylog.Writer, logger telemetry.Logger, metrics *telemetry.Metrics, cacheTTL time.Duration) *Pipeline {
	if logger == nil {
		logger = telemetry.NoopLogger{}
	}
	p := &Pipeline{
		executor:             executor,
		reasoner:             reasoner,
		validator:            validator,
		sessions:             sessions,
		logs:                 logs,
		logger:               logger,
		metrics:              metrics,
		MaxValidationRetries: DefaultMaxValidationRetries,
		PipelineDeadline:     DefaultPipelineDeadline,
	}
	if cacheTTL > 0 {
		p.cache = newResponseCache(cacheTTL)
	}
	return p
}

// Process runs one request through the full pipeline. events may be nil
// for non-streaming callers; when non-nil the pipeline emits the §4.7
// event sequence and closes no channel (the caller owns its lifecycle).
func (p *Pipeline) Process(ctx context.Context, req envelope.Request, events chan<- Event) envelope.Response {
	requestID := uuid.New().String()
	startedAt := time.Now()

	ctx, cancel := context.WithTimeout(ctx, p.PipelineDeadline)
	defer cancel()
	sink := newEventSink(ctx, events, requestID)

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	record := querylog.New(requestID, sessionID, req.Query, req.Fields, startedAt)
	defer p.finishAndWrite(record, startedAt)

	sink.emit(EventStarted, map[string]any{"session_id": sessionID})

	if req.Query == "" {
		return p.fail(ctx, sink, record, requestID, "pipeline.Validate", KindInvalidRequest, fmt.Errorf("%w: query is empty", ErrInvalidRequest), startedAt)
	}

	if err := sanitize.Check(req.Query, req.Fields); err != nil {
		return p.fail(ctx, sink, record, requestID, "pipeline.Sanitize", KindSecurityError, fmt.Errorf("%w: %v", ErrSecurityRejected, err), startedAt)
	}

	if p.cache != nil {
		if cached, ok := p.cache.get(envelopeKey(req)); ok {
			cached.Metadata.RequestID = requestID
			sink.emit(EventCompleted, map[string]any{"cached": true})
			record.Finish(time.Now(), cached.Success)
			return cached
		}
	}

	sink.emit(EventReasoningStarted, nil)
	reasonCtx, endReasonSpan := p.startSpan(ctx, "orchestrator.reason")
	decision, err := p.reasoner.Decide(reasonCtx, req)
	endReasonSpan()
	if err != nil {
		return p.fail(ctx, sink, record, requestID, "pipeline.Reason", KindGateway, fmt.Errorf("%w: %v", ErrGateway, err), startedAt)
	}
	record.ReasoningMethod = string(decision.Method)
	record.ReasoningConfidence = decision.Confidence
	record.SelectedAgents = decision.SelectedAgents
	if decision.Empty() {
		return p.fail(ctx, sink, record, requestID, "pipeline.Reason", KindNoAgents, fmt.Errorf("%w", ErrNoAgents), startedAt)
	}
	sink.emit(EventReasoningComplete, map[string]any{"method": string(decision.Method), "agent_count": len(decision.SelectedAgents)})

	execCtx, endExecSpan := p.startSpan(ctx, "orchestrator.execute_and_validate")
	responses, err := p.executeWithValidationRetries(execCtx, sink, record, requestID, req, decision)
	endExecSpan()
	if err != nil {
		if ctx.Err() != nil {
			return p.fail(ctx, sink, record, requestID, "pipeline.Execute", KindCancelled, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err()), startedAt)
		}
		return p.fail(ctx, sink, record, requestID, "pipeline.Execute", KindInternal, fmt.Errorf("%w: %v", ErrInternal, err), startedAt)
	}

	finalValidation := p.validator.Validate(ctx, req, decision, responses)
	total := time.Since(startedAt)
	resp := aggregate(requestID, decision, responses, total, time.Now())

	if !finalValidation.IsValid {
		resp.Metadata.ValidationWarning = &envelope.ValidationWarning{
			Message: "response did not pass validation after retries",
			Issues:  issueMessages(finalValidation.Issues),
		}
	}

	p.recordResponses(record, responses)
	record.ValidationValid = finalValidation.IsValid
	record.ValidationScore = finalValidation.ConfidenceScore

	if p.sessions != nil {
		p.sessions.Touch(sessionID, topicFromDecision(decision), time.Now())
	}
	if p.metrics != nil {
		p.metrics.RecordRequest(ctx, resp.Success)
		if finalValidation.HallucinationFlag {
			p.metrics.RecordHallucination()
		}
		p.metrics.RecordConfidence(finalValidation.ConfidenceScore)
		for _, r := range responses {
			p.metrics.RecordAgentCall(ctx, r.AgentName, !r.Success)
		}
	}

	if p.cache != nil && finalValidation.IsValid && len(record.Retries) == 0 {
		p.cache.put(envelopeKey(req), resp, time.Now())
	}

	record.Finish(time.Now(), resp.Success)
	sink.emit(EventCompleted, map[string]any{"success": resp.Success})
	return resp
}

// executeWithValidationRetries runs the execute->validate loop, re-running
// agents up to MaxValidationRetries times when validation fails (spec.md
// §4.7: "If parallel=false and a specific agent was found responsible,
// only re-execute that agent; otherwise re-execute all").
func (p *Pipeline) executeWithValidationRetries(ctx context.Context, sink *eventSink, record *querylog.Record, requestID string, req envelope.Request, decision reasoning.Decision) ([]agent.Response, error) {
	specs := buildCallSpecs(decision, req)

	sink.emit(EventAgentsExecuting, map[string]any{"agents": decision.SelectedAgents, "parallel": decision.Parallel})
	responses := p.runAgents(ctx, sink, requestID, req.SessionID, decision, specs)

	for attempt := 1; attempt <= p.MaxValidationRetries; attempt++ {
		sink.emit(EventValidationStarted, nil)
		result := p.validator.Validate(ctx, req, decision, responses)
		sink.emit(EventValidationComplete, map[string]any{"is_valid": result.IsValid})
		if result.IsValid {
			return responses, nil
		}

		reason := "validation_failed"
		if len(result.Issues) > 0 {
			reason = result.Issues[0].Code
		}
		record.AddRetry(attempt, reason)
		sink.emit(EventRetry, map[string]any{"attempt": attempt, "reason": reason})
		if p.metrics != nil {
			p.metrics.RecordRetry(ctx)
		}

		retrySpecs := specs
		if !decision.Parallel {
			if responsible := responsibleAgent(decision); responsible != "" {
				retrySpecs = filterSpecs(specs, responsible)
			}
		}

		sink.emit(EventAgentsExecuting, map[string]any{"agents": specNames(retrySpecs), "parallel": decision.Parallel, "retry": attempt})
		retried := p.runAgents(ctx, sink, requestID, req.SessionID, decision, retrySpecs)
		responses = mergeResponses(responses, retried)

		if ctx.Err() != nil {
			return responses, ctx.Err()
		}
	}

	return responses, nil
}

func (p *Pipeline) runAgents(ctx context.Context, sink *eventSink, requestID, sessionID string, decision reasoning.Decision, specs []resilience.CallSpec) []agent.Response {
	for _, s := range specs {
		sink.emit(EventAgentStarted, map[string]any{"agent": s.AgentName})
	}
	ctx, endSpan := p.startSpan(ctx, "orchestrator.run_agents")
	defer endSpan()
	var responses []agent.Response
	if decision.Parallel {
		responses = p.executor.Parallel(ctx, specs, requestID, sessionID)
	} else {
		responses = p.executor.Sequential(ctx, specs, requestID, sessionID, sequentialInjector(decision))
	}
	for _, r := range responses {
		sink.emit(EventAgentComplete, map[string]any{"agent": r.AgentName, "success": r.Success})
	}
	return responses
}

// sequentialInjector folds a successful prior step's data into the next
// step's input under the key "<agent_name>_result", letting pipelines
// chain named outputs into later inputs (spec.md §4.4).
func sequentialInjector(decision reasoning.Decision) func([]agent.Response, *resilience.CallSpec) {
	return func(done []agent.Response, next *resilience.CallSpec) {
		if len(done) == 0 {
			return
		}
		prior := done[len(done)-1]
		if !prior.Success {
			return
		}
		if next.Input == nil {
			next.Input = map[string]any{}
		}
		next.Input[prior.AgentName+"_result"] = prior.Data
	}
}

func buildCallSpecs(decision reasoning.Decision, req envelope.Request) []resilience.CallSpec {
	specs := make([]resilience.CallSpec, 0, len(decision.SelectedAgents))
	for _, name := range decision.SelectedAgents {
		input := make(map[string]any, len(req.Fields)+1)
		for k, v := range req.Fields {
			input[k] = v
		}
		input["query"] = req.Query
		if params, ok := decision.PerAgentParams[name]; ok {
			for k, v := range params {
				input[k] = v
			}
		}
		specs = append(specs, resilience.CallSpec{AgentName: name, Input: input})
	}
	return specs
}

func filterSpecs(specs []resilience.CallSpec, agentName string) []resilience.CallSpec {
	for _, s := range specs {
		if s.AgentName == agentName {
			return []resilience.CallSpec{s}
		}
	}
	return specs
}

func specNames(specs []resilience.CallSpec) []string {
	names := make([]string, len(specs))
	for i, s := range specs {
		names[i] = s.AgentName
	}
	return names
}

// responsibleAgent identifies a single agent to re-execute when the
// decision only ever selected one; with more than one selected agent the
// validator doesn't attribute blame precisely enough to narrow the retry.
func responsibleAgent(decision reasoning.Decision) string {
	if len(decision.SelectedAgents) != 1 {
		return ""
	}
	return decision.SelectedAgents[0]
}

// mergeResponses overlays retried results onto the previous set by agent
// name, keeping entries for agents that weren't retried.
func mergeResponses(previous, retried []agent.Response) []agent.Response {
	byName := make(map[string]agent.Response, len(previous))
	order := make([]string, 0, len(previous))
	for _, r := range previous {
		if _, seen := byName[r.AgentName]; !seen {
			order = append(order, r.AgentName)
		}
		byName[r.AgentName] = r
	}
	for _, r := range retried {
		if _, seen := byName[r.AgentName]; !seen {
			order = append(order, r.AgentName)
		}
		byName[r.AgentName] = r
	}
	merged := make([]agent.Response, 0, len(order))
	for _, name := range order {
		merged = append(merged, byName[name])
	}
	return merged
}

func topicFromDecision(decision reasoning.Decision) string {
	if len(decision.SelectedAgents) == 0 {
		return ""
	}
	return decision.SelectedAgents[0]
}

func issueMessages(issues []validation.Issue) []string {
	out := make([]string, len(issues))
	for i, iss := range issues {
		out[i] = iss.Message
	}
	return out
}

// fail builds an error envelope, emits the terminal error event, and logs
// the failure. It never includes a confidence score or stack trace.
func (p *Pipeline) fail(ctx context.Context, sink *eventSink, record *querylog.Record, requestID, op string, kind Kind, err error, startedAt time.Time) envelope.Response {
	pe := NewPipelineError(op, kind, requestID, err)
	now := time.Now()
	record.AddError(string(KindOf(pe)), pe.Error(), now)
	record.Finish(now, false)
	sink.emit(EventError, map[string]any{"kind": string(KindOf(pe)), "message": pe.Error()})
	if p.metrics != nil {
		p.metrics.RecordRequest(ctx, false)
	}
	return envelope.Response{
		Success: false,
		Data:    map[string]any{},
		Errors: []envelope.AgentError{
			{Agent: "", ErrorKind: string(KindOf(pe)), Message: pe.Error()},
		},
		Metadata: envelope.Metadata{
			RequestID: requestID,
			Timestamp: now,
		},
	}
}

func (p *Pipeline) recordResponses(record *querylog.Record, responses []agent.Response) {
	now := time.Now()
	for _, r := range responses {
		msg := ""
		if r.Error != nil {
			msg = r.Error.Error()
		}
		record.AddAgentCall(querylog.AgentCall{
			AgentName:     r.AgentName,
			Output:        r.Data,
			Success:       r.Success,
			ErrorKind:     string(r.ErrorKind),
			ErrorMessage:  msg,
			Attempts:      r.Attempts,
			ExecutionTime: r.ExecutionTime.String(),
			FellBack:      r.FellBack,
			RecordedAt:    now,
		})
	}
}

func (p *Pipeline) finishAndWrite(record *querylog.Record, startedAt time.Time) {
	if record.FinishedAt.IsZero() {
		record.Finish(time.Now(), record.Success)
	}
	if p.logs == nil {
		return
	}
	if err := p.logs.Write(record); err != nil {
		p.logger.Warn("orchestrator: failed to write query log", map[string]any{"error": err.Error(), "query_id": record.QueryID})
	}
}
