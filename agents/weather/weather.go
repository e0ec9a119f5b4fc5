// Package weather is a builtin in-process agent returning canned weather
// observations for a fixed set of cities, exercised by spec.md §8
// scenario 2 (multi-intent parallel: weather + calculator).
package weather

import (
	"context"
	"strings"
)

// Observation is one city's current conditions.
type Observation struct {
	City        string  `json:"city"`
	TempCelsius float64 `json:"temp_celsius"`
	Conditions  string  `json:"conditions"`
}

// Agent serves a small fixed table of observations, grounded on the
// in-process tool pattern used by the calculator/search agents — no
// outbound HTTP call, so it never needs retry/fallback of its own.
type Agent struct {
	observations map[string]Observation
}

// New builds a weather agent over a city->Observation table, keyed by
// lowercase city name.
func New(observations map[string]Observation) *Agent {
	normalized := make(map[string]Observation, len(observations))
	for k, v := range observations {
		normalized[strings.ToLower(k)] = v
	}
	return &Agent{observations: normalized}
}

// DefaultObservations is a small canned table covering the cities used in
// spec.md's example queries.
func DefaultObservations() map[string]Observation {
	return map[string]Observation{
		"london":   {City: "London, UK", TempCelsius: 16.0, Conditions: "overcast"},
		"new york": {City: "New York, US", TempCelsius: 22.0, Conditions: "clear"},
		"tokyo":    {City: "Tokyo, JP", TempCelsius: 27.0, Conditions: "humid"},
		"paris":    {City: "Paris, FR", TempCelsius: 18.0, Conditions: "light rain"},
	}
}

// Call looks up "city" (or parses it out of "query") and returns the
// matching observation. An unknown city is not an error: it returns a
// "city not found" marker so validation's hallucination check (which only
// inspects finite-ness) doesn't misfire on a legitimate miss.
func (a *Agent) Call(ctx context.Context, input map[string]any) (any, error) {
	city, _ := input["city"].(string)
	if city == "" {
		city = extractCity(input["query"])
	}
	obs, ok := a.observations[strings.ToLower(city)]
	if !ok {
		return map[string]any{"found": false, "query_city": city}, nil
	}
	return map[string]any{
		"found":        true,
		"city":         obs.City,
		"temp_celsius": obs.TempCelsius,
		"conditions":   obs.Conditions,
	}, nil
}

func extractCity(query any) string {
	q, _ := query.(string)
	q = strings.ToLower(q)
	for city := range DefaultObservations() {
		if strings.Contains(q, city) {
			return city
		}
	}
	return ""
}
