package agent

import "github.com/agentflow/orchestrator/registry"

// FilterInput applies a descriptor's allow-list and deny-list to an input
// mapping before it reaches an adapter. A deny-list hit is reported to the
// caller as an error so it can be surfaced as FailureInputRejected; the
// allow-list, when non-empty, is a positive filter (only listed fields
// survive).
func FilterInput(d registry.Descriptor, input map[string]any) (map[string]any, error) {
	for _, denied := range d.DenyFields {
		if _, present := input[denied]; present {
			return nil, &RejectedFieldError{Agent: d.Name, Field: denied}
		}
	}

	if len(d.AllowFields) == 0 {
		return input, nil
	}

	allowed := make(map[string]bool, len(d.AllowFields))
	for _, f := range d.AllowFields {
		allowed[f] = true
	}
	out := make(map[string]any, len(input))
	for k, v := range input {
		if allowed[k] {
			out[k] = v
		}
	}
	return out, nil
}

// RejectedFieldError reports that a deny-listed field was present on an
// invocation's input.
type RejectedFieldError struct {
	Agent string
	Field string
}

func (e *RejectedFieldError) Error() string {
	return "agent " + e.Agent + ": input field " + e.Field + " is denied"
}
