// Package sanitize applies security checks to inbound request envelopes
// before they reach the reasoning stage (spec.md: "input → security
// sanitization → reasoning → execution → validation").
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// RejectedError is returned when an envelope fails a security check. The
// orchestrator maps it straight to a SecurityError pipeline event; it is
// never retried.
type RejectedError struct {
	Reason string
	Field  string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("sanitize: rejected field %q: %s", e.Field, e.Reason)
}

var (
	sqlInjectionRe  = regexp.MustCompile(`(?i)\b(drop\s+table|delete\s+from|union\s+select|insert\s+into|;\s*--)\b`)
	shellMetaRe     = regexp.MustCompile("[;&|`$(){}<>\\\\]")
	pathTraversalRe = regexp.MustCompile(`\.\.(/|\\)`)
)

// Check walks the query string and every field value looking for the
// three boundary-violation patterns spec.md names explicitly: SQL
// injection keywords, shell metacharacters, and path traversal sequences.
func Check(query string, fields map[string]any) error {
	if err := checkString("query", query); err != nil {
		return err
	}
	for k, v := range fields {
		if s, ok := v.(string); ok {
			if err := checkString(k, s); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkString(field, value string) error {
	if sqlInjectionRe.MatchString(value) {
		return &RejectedError{Field: field, Reason: "looks like a SQL injection attempt"}
	}
	if shellMetaRe.MatchString(value) {
		return &RejectedError{Field: field, Reason: "contains shell metacharacters"}
	}
	if pathTraversalRe.MatchString(value) {
		return &RejectedError{Field: field, Reason: "contains a path traversal sequence"}
	}
	return nil
}

// Strip removes leading/trailing whitespace and collapses internal
// whitespace runs, used to normalize a query before it is hashed for the
// response cache.
func Strip(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
