// Package querylog writes one append-only JSON audit record per pipeline
// invocation (spec.md §4.8): the envelope, reasoning decision, every agent
// output, validation outcome, retries, errors, and total timing.
package querylog

import "time"

// AgentCall captures one invocation's output and outcome for the audit
// trail. The pipeline does not fill Input, so it is written as null.
type AgentCall struct {
	AgentName     string    `json:"agent_name"`
	Input         any       `json:"input"`
	Output        any       `json:"output,omitempty"`
	Success       bool      `json:"success"`
	ErrorKind     string    `json:"error_kind,omitempty"`
	ErrorMessage  string    `json:"error_message,omitempty"`
	Attempts      int       `json:"attempts"`
	ExecutionTime string    `json:"execution_time"`
	FellBack      bool      `json:"fell_back"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// RetryEvent records why the pipeline looped back for another attempt.
type RetryEvent struct {
	Attempt int    `json:"attempt"`
	Reason  string `json:"reason"`
}

// ErrorEvent is a single error surfaced during the pipeline run.
type ErrorEvent struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the full per-query audit entry. Confidence scores, raw
// prompts, and stack traces live here for operator diagnosis but must
// never cross the service boundary to end users (spec.md §4.8).
type Record struct {
	QueryID           string         `json:"query_id"`
	SessionID         string         `json:"session_id"`
	Query             string         `json:"query"`
	Fields            map[string]any `json:"fields,omitempty"`
	ReasoningMethod   string         `json:"reasoning_method"`
	ReasoningConfidence float64      `json:"reasoning_confidence"`
	SelectedAgents    []string       `json:"selected_agents"`
	AgentCalls        []AgentCall    `json:"agent_calls"`
	ValidationValid   bool           `json:"validation_valid"`
	ValidationScore   float64        `json:"validation_score"`
	Retries           []RetryEvent   `json:"retries,omitempty"`
	Errors            []ErrorEvent   `json:"errors,omitempty"`
	Success           bool           `json:"success"`
	StartedAt         time.Time      `json:"started_at"`
	FinishedAt        time.Time      `json:"finished_at"`
	TotalDuration      string        `json:"total_duration"`
}

// New starts a Record for a fresh pipeline invocation.
func New(queryID, sessionID, query string, fields map[string]any, startedAt time.Time) *Record {
	return &Record{
		QueryID:   queryID,
		SessionID: sessionID,
		Query:     query,
		Fields:    fields,
		StartedAt: startedAt,
	}
}

// AddAgentCall appends one agent invocation's audit entry.
func (r *Record) AddAgentCall(c AgentCall) {
	r.AgentCalls = append(r.AgentCalls, c)
}

// AddRetry records an attempt-and-reason pair for a pipeline retry loop.
func (r *Record) AddRetry(attempt int, reason string) {
	r.Retries = append(r.Retries, RetryEvent{Attempt: attempt, Reason: reason})
}

// AddError records an error surfaced during the pipeline run.
func (r *Record) AddError(kind, message string, at time.Time) {
	r.Errors = append(r.Errors, ErrorEvent{Kind: kind, Message: message, Timestamp: at})
}

// Finish stamps the record's completion time and total duration.
func (r *Record) Finish(finishedAt time.Time, success bool) {
	r.FinishedAt = finishedAt
	r.Success = success
	r.TotalDuration = finishedAt.Sub(r.StartedAt).String()
}
