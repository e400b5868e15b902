// Package retrieval defines the contract for the curriculum search
// service. The search implementation lives elsewhere; this layer only
// consumes ranked snippets to assemble context text for a request.
package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Snippet is one ranked search result.
type Snippet struct {
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	Relevance float64 `json:"relevance_score"`
}

// Filters narrows a search, e.g. by subject or grade level.
type Filters map[string]string

// Searcher is the retrieval collaborator.
type Searcher interface {
	Search(ctx context.Context, query string, filters Filters) ([]Snippet, error)
}

// BuildContext joins the most relevant snippets into one context blob,
// best first, each prefixed with its source. maxSnippets <= 0 keeps all.
// The context fitter handles any overflow downstream.
func BuildContext(snippets []Snippet, maxSnippets int) string {
	sorted := make([]Snippet, len(snippets))
	copy(sorted, snippets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Relevance > sorted[j].Relevance
	})
	if maxSnippets > 0 && len(sorted) > maxSnippets {
		sorted = sorted[:maxSnippets]
	}

	var b strings.Builder
	for i, s := range sorted {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if s.Source != "" {
			fmt.Fprintf(&b, "[%s]\n", s.Source)
		}
		b.WriteString(s.Text)
	}
	return b.String()
}
