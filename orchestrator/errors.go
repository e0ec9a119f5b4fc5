package orchestrator

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison with errors.Is(). These map onto the
// error taxonomy that crosses the pipeline's component boundaries.
var (
	ErrInvalidRequest   = errors.New("invalid request envelope")
	ErrSecurityRejected = errors.New("request rejected by sanitizer")
	ErrNoAgents         = errors.New("reasoner selected no agents")
	ErrValidationFailed = errors.New("aggregated response failed validation")
	ErrGateway          = errors.New("model gateway call failed")
	ErrCancelled        = errors.New("pipeline cancelled")
	ErrInternal         = errors.New("internal orchestrator error")
)

// Kind classifies an error for logging, metrics, and retry decisions.
type Kind string

const (
	KindInvalidRequest Kind = "InvalidRequest"
	KindSecurityError  Kind = "SecurityError"
	KindNoAgents       Kind = "NoAgents"
	KindAgentFailure   Kind = "AgentFailure"
	KindValidation     Kind = "ValidationFailed"
	KindGateway        Kind = "GatewayError"
	KindCancelled      Kind = "Cancelled"
	KindInternal       Kind = "Internal"
)

// PipelineError carries structured context about a failure at a component
// boundary. It wraps an underlying error without discarding it.
type PipelineError struct {
	Op      string // e.g. "pipeline.Reason", "pipeline.Execute"
	Kind    Kind
	ID      string // request_id, when known
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Op != "" && e.Err != nil {
		if e.ID != "" {
			return fmt.Sprintf("%s [%s]: %v", e.Op, e.ID, e.Err)
		}
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s error", e.Kind)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError builds a PipelineError, the preferred constructor for
// errors raised by pipeline stages.
func NewPipelineError(op string, kind Kind, requestID string, err error) *PipelineError {
	return &PipelineError{Op: op, Kind: kind, ID: requestID, Err: err}
}

// KindOf extracts the Kind carried by err, if any, defaulting to
// KindInternal for unclassified errors.
func KindOf(err error) Kind {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrSecurityRejected):
		return KindSecurityError
	case errors.Is(err, ErrNoAgents):
		return KindNoAgents
	case errors.Is(err, ErrValidationFailed):
		return KindValidation
	case errors.Is(err, ErrGateway):
		return KindGateway
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	default:
		return KindInternal
	}
}
