package validation

import (
	"math"
	"strings"

	"github.com/agentflow/orchestrator/agent"
	"github.com/agentflow/orchestrator/envelope"
)

// basicCheck verifies each successful selected agent produced non-empty
// data and that any numeric results are finite (spec.md §4.6.1).
func basicCheck(responses []agent.Response) (ok bool, issues []Issue) {
	ok = true
	successful := 0
	for _, r := range responses {
		if !r.Success {
			continue
		}
		successful++
		if isEmpty(r.Data) {
			ok = false
			issues = append(issues, Issue{Code: "empty_data", Message: r.AgentName + " produced no data"})
			continue
		}
		if !allFinite(r.Data) {
			ok = false
			issues = append(issues, Issue{Code: "non_finite", Message: r.AgentName + " produced a non-finite numeric result"})
		}
	}
	if len(responses) > 0 && successful == 0 {
		ok = false
		issues = append(issues, Issue{Code: "all_agents_failed", Message: "no agent produced a successful response"})
	}
	return ok, issues
}

func isEmpty(v any) bool {
	switch d := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(d) == 0
	case []any:
		return len(d) == 0
	case string:
		return d == ""
	default:
		return false
	}
}

// allFinite walks the value looking for float64s and rejects NaN/Inf.
func allFinite(v any) bool {
	switch d := v.(type) {
	case float64:
		return !math.IsNaN(d) && !math.IsInf(d, 0)
	case map[string]any:
		for _, inner := range d {
			if !allFinite(inner) {
				return false
			}
		}
	case []any:
		for _, inner := range d {
			if !allFinite(inner) {
				return false
			}
		}
	}
	return true
}

// consistencyCheck looks for disagreement between agents that report the
// same dimensional field ("count", "total" or "id"). It does not check
// whether a sequential pipeline drops records between steps.
func consistencyCheck(responses []agent.Response) (ok bool, issues []Issue) {
	ok = true
	counts := map[string][]float64{}
	for _, r := range responses {
		if !r.Success {
			continue
		}
		m, isMap := r.Data.(map[string]any)
		if !isMap {
			continue
		}
		for _, field := range []string{"count", "total", "id"} {
			if v, present := m[field]; present {
				if f, isNum := toFloat(v); isNum {
					counts[field] = append(counts[field], f)
				}
			}
		}
	}
	const tolerance = 1e-6
	for field, values := range counts {
		if len(values) < 2 {
			continue
		}
		first := values[0]
		for _, v := range values[1:] {
			if math.Abs(v-first) > tolerance {
				ok = false
				issues = append(issues, Issue{Code: "inconsistent_" + field, Message: "agents disagree on " + field})
				break
			}
		}
	}
	return ok, issues
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// hallucinationCheck applies the per-domain heuristics from spec.md
// §4.6.3: calculator results must be finite and search results must share
// vocabulary with the query. An agent's declared operation is not
// compared with the query's keywords.
func hallucinationCheck(req envelope.Request, responses []agent.Response) (flagged bool, issues []Issue) {
	queryWords := tokenize(req.Query)
	for _, r := range responses {
		if !r.Success {
			continue
		}
		name := strings.ToLower(r.AgentName)
		switch {
		case strings.Contains(name, "calculator"):
			if !allFinite(r.Data) {
				flagged = true
				issues = append(issues, Issue{Code: "hallucination_calculator", Message: r.AgentName + " returned a non-finite value"})
			}
		case strings.Contains(name, "search"):
			if overlap(queryWords, resultWords(r.Data)) < 0.1 {
				flagged = true
				issues = append(issues, Issue{Code: "hallucination_search", Message: r.AgentName + " result shares no vocabulary with the query"})
			}
		}
	}
	return flagged, issues
}

func tokenize(s string) map[string]bool {
	words := strings.Fields(strings.ToLower(s))
	set := make(map[string]bool, len(words))
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) > 2 {
			set[w] = true
		}
	}
	return set
}

func resultWords(v any) map[string]bool {
	switch d := v.(type) {
	case string:
		return tokenize(d)
	case map[string]any:
		var b strings.Builder
		for _, inner := range d {
			if s, ok := inner.(string); ok {
				b.WriteString(s)
				b.WriteString(" ")
			}
		}
		return tokenize(b.String())
	default:
		return nil
	}
}

// overlap returns the fraction of queryWords also present in resultWords,
// or 1.0 when the query has no meaningful tokens to check against.
func overlap(queryWords, resultWords map[string]bool) float64 {
	if len(queryWords) == 0 {
		return 1.0
	}
	if len(resultWords) == 0 {
		return 0.0
	}
	matched := 0
	for w := range queryWords {
		if resultWords[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(queryWords))
}
