// Package search is a builtin in-process agent over a small in-memory
// document corpus, filtering results by query/document vocabulary
// overlap (spec.md §8 scenario 3: "only results with relevance >= 0.10").
package search

import (
	"context"
	"sort"
	"strings"
)

// Document is one corpus entry.
type Document struct {
	ID      string
	Title   string
	Content string
}

// MinRelevance is the upstream filter threshold from spec.md §8 scenario 3.
const MinRelevance = 0.10

// Result is one filtered, scored document.
type Result struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Relevance float64 `json:"relevance"`
}

// Agent answers queries against a fixed corpus, grounded on gomind's
// in-process tool pattern: a small closure-captured dataset with no
// external dependency.
type Agent struct {
	corpus []Document
}

// New builds a search agent over corpus.
func New(corpus []Document) *Agent {
	return &Agent{corpus: corpus}
}

// DefaultCorpus is a small canned document set covering the topics used
// in spec.md's example queries, for deployments that don't wire a
// domain-specific corpus.
func DefaultCorpus() []Document {
	return []Document{
		{ID: "1", Title: "Introduction to Machine Learning", Content: "machine learning models learn patterns from data"},
		{ID: "2", Title: "Gardening Tips", Content: "watering plants and pruning roses"},
		{ID: "3", Title: "Stock Market Report", Content: "quarterly earnings and dividends"},
		{ID: "4", Title: "Cooking Pasta", Content: "boil water and add salt"},
		{ID: "5", Title: "Weather Forecast", Content: "rain expected tomorrow afternoon"},
	}
}

// Call implements agent.Func's signature via a bound method value; wire
// it up as `search.New(corpus).Call`.
func (a *Agent) Call(ctx context.Context, input map[string]any) (any, error) {
	query, _ := input["query"].(string)
	queryWords := tokenize(query)

	var results []Result
	for _, doc := range a.corpus {
		rel := relevance(queryWords, tokenize(doc.Title+" "+doc.Content))
		if rel < MinRelevance {
			continue
		}
		results = append(results, Result{ID: doc.ID, Title: doc.Title, Relevance: rel})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Relevance > results[j].Relevance })

	summary := ""
	if len(results) > 0 {
		summary = results[0].Title
	}
	return map[string]any{"results": results, "summary": summary}, nil
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

// relevance is the fraction of query tokens present in the document.
func relevance(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for w := range query {
		if doc[w] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
