// Package agent defines the uniform call contract over heterogeneous agent
// transports (in-process functions, remote tool servers) and the
// request/response envelopes that flow through it.
package agent

import (
	"time"
)

// FailureKind classifies why an agent call failed, which in turn decides
// whether the retry executor treats it as retriable.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureTimeout        FailureKind = "Timeout"
	FailureTransient      FailureKind = "Transient"
	FailurePermanent      FailureKind = "Permanent"
	FailureInputRejected  FailureKind = "InputRejected"
	FailureInvalidResp    FailureKind = "InvalidResponse"
	FailureCircuitOpen    FailureKind = "CircuitOpen"
	FailureRateLimited    FailureKind = "RateLimited"
)

// Retriable reports whether the retry executor should attempt another
// call after a failure of this kind. Per spec: Timeout, Transient, and
// RateLimited are retriable; everything else is terminal.
func (k FailureKind) Retriable() bool {
	switch k {
	case FailureTimeout, FailureTransient, FailureRateLimited:
		return true
	default:
		return false
	}
}

// Invocation is a single request to call a named agent.
type Invocation struct {
	AgentName  string
	Input      map[string]any
	Deadline   time.Time
	Attempt    int
	QueryID    string
	SessionID  string
	TraceID    string
}

// Response is the outcome of an agent call. The orchestrator passes Data
// through unchanged; only the validator inspects it (emptiness, finite
// numbers, shared count/total/id fields, search vocabulary).
type Response struct {
	AgentName     string
	Success       bool
	Data          any
	Error         error
	ErrorKind     FailureKind
	ExecutionTime time.Duration
	Attempts      int
	FellBack      bool
}

// Failed is a small helper for constructing a failed Response.
func Failed(name string, kind FailureKind, err error, attempts int, d time.Duration) Response {
	return Response{
		AgentName:     name,
		Success:       false,
		Error:         err,
		ErrorKind:     kind,
		ExecutionTime: d,
		Attempts:      attempts,
	}
}

// Succeeded is a small helper for constructing a successful Response.
func Succeeded(name string, data any, attempts int, d time.Duration) Response {
	return Response{
		AgentName:     name,
		Success:       true,
		Data:          data,
		ExecutionTime: d,
		Attempts:      attempts,
	}
}
