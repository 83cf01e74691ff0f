// Package search provides the web search used for context the procurement
// data cannot give (supplier background, definitions, policy).
package search

import "context"

// Result is one web search hit
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// Provider is a web search backend
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, maxResults int) ([]Result, error)
}
