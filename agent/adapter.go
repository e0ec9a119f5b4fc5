package agent

import "context"

// Adapter is the uniform call contract over heterogeneous agent
// transports. Implementations enforce the invocation's deadline and
// measure execution time end to end.
type Adapter interface {
	Call(ctx context.Context, inv Invocation) Response
}

// Func is an in-process agent implementation. It receives the filtered
// input and returns opaque data or an error. Implementations that need to
// distinguish retriable failures should return a *ClassifiedError.
type Func func(ctx context.Context, input map[string]any) (any, error)

// ClassifiedError lets an in-process agent tell the adapter which
// FailureKind a failure should be reported as, instead of defaulting to
// FailureTransient.
type ClassifiedError struct {
	Kind FailureKind
	Err  error
}

func (e *ClassifiedError) Error() string { return e.Err.Error() }
func (e *ClassifiedError) Unwrap() error { return e.Err }
