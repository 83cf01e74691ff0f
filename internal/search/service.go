package search

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"procurement/internal/models"
)

// DefaultMaxResults is used when the caller asks for zero results
const DefaultMaxResults = 5

var yearPattern = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// Service wraps a provider with a TTL cache and a request rate limit.
// Search never returns an error; failures become unsuccessful results.
type Service struct {
	provider   Provider
	cache      *cache.Cache
	limiter    *rate.Limiter
	maxResults int
}

// NewService builds the search service. A non-positive ratePerSec disables limiting.
func NewService(provider Provider, ttl time.Duration, ratePerSec float64, maxResults int) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if ratePerSec > 0 {
		burst := int(ratePerSec * 2)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(ratePerSec), burst)
	}

	return &Service{
		provider:   provider,
		cache:      cache.New(ttl, 2*ttl),
		limiter:    limiter,
		maxResults: maxResults,
	}
}

// ProviderName reports the backend in use
func (s *Service) ProviderName() string {
	return s.provider.Name()
}

// Search runs query, retrying once with a simplified query when nothing comes back.
// maxResults falls back to the configured default and is capped at twice it.
func (s *Service) Search(ctx context.Context, query string, maxResults int) models.SearchResult {
	query = strings.TrimSpace(query)
	if maxResults <= 0 {
		maxResults = s.maxResults
	}
	if ceiling := s.maxResults * 2; maxResults > ceiling {
		maxResults = ceiling
	}
	if query == "" {
		return searchFailure(query, fmt.Errorf("query is empty"))
	}

	cacheKey := fmt.Sprintf("%s|%d", strings.ToLower(query), maxResults)
	if cached, found := s.cache.Get(cacheKey); found {
		log.Printf("✅ [SEARCH] Cache hit for: '%s'", query)
		return cached.(models.SearchResult)
	}

	results, err := s.run(ctx, query, maxResults)
	if err == nil && len(results) == 0 {
		if simplified := simplifyQuery(query); simplified != "" && simplified != query {
			log.Printf("🔄 [SEARCH] Simplified query: '%s' -> '%s'", query, simplified)
			results, err = s.run(ctx, simplified, maxResults)
		}
	}
	if err != nil {
		log.Printf("❌ [SEARCH] %s search failed for '%s': %v", s.provider.Name(), query, err)
		return searchFailure(query, err)
	}

	result := models.SearchResult{
		Success: true,
		Query:   query,
		Results: formatResults(query, results),
		Count:   len(results),
	}
	if len(results) > 0 {
		s.cache.SetDefault(cacheKey, result)
	}
	log.Printf("✅ [SEARCH] Found %d result(s) for '%s'", len(results), query)
	return result
}

func (s *Service) run(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	return s.provider.Search(ctx, query, maxResults)
}

func formatResults(query string, results []Result) string {
	if len(results) == 0 {
		return "No results found for your query."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results for '%s':\n\n", len(results), query)
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n    URL: %s\n    %s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimRight(b.String(), "\n")
}

// simplifyQuery drops years and recency words to broaden a query
func simplifyQuery(query string) string {
	query = yearPattern.ReplaceAllString(query, "")

	recency := map[string]bool{"latest": true, "recent": true, "new": true, "updates": true, "update": true, "news": true}
	var kept []string
	for _, word := range strings.Fields(query) {
		if recency[strings.ToLower(word)] {
			continue
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

func searchFailure(query string, err error) models.SearchResult {
	return models.SearchResult{
		Success: false,
		Query:   query,
		Results: "",
		Count:   0,
		Error:   err.Error(),
	}
}
