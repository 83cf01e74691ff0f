package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"
)

// SearXNG queries one or more SearXNG instances in round-robin order,
// falling through to the next instance when one fails.
type SearXNG struct {
	urls    []string
	counter uint64
	client  *http.Client
}

// NewSearXNG creates a balancer over the given instance URLs.
func NewSearXNG(urls []string) *SearXNG {
	s := &SearXNG{client: &http.Client{Timeout: 30 * time.Second}}
	for _, u := range urls {
		if trimmed := strings.TrimSuffix(strings.TrimSpace(u), "/"); trimmed != "" {
			s.urls = append(s.urls, trimmed)
		}
	}
	log.Printf("🔍 [SEARCH] Initialized round-robin balancer with %d SearXNG instance(s): %v", len(s.urls), s.urls)
	return s
}

func (s *SearXNG) Name() string { return "searxng" }

func (s *SearXNG) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if len(s.urls) == 0 {
		return nil, fmt.Errorf("no SearXNG instances configured")
	}

	start := atomic.AddUint64(&s.counter, 1) - 1
	var lastErr error
	for attempt := 0; attempt < len(s.urls); attempt++ {
		instance := s.urls[(start+uint64(attempt))%uint64(len(s.urls))]

		results, err := s.searchInstance(ctx, instance, query, maxResults)
		if err == nil {
			return results, nil
		}
		log.Printf("⚠️ [SEARCH] Instance %s failed: %v", instance, err)
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("all %d SearXNG instances failed, last error: %w", len(s.urls), lastErr)
}

func (s *SearXNG) searchInstance(ctx context.Context, instance, query string, maxResults int) ([]Result, error) {
	searchURL := fmt.Sprintf("%s/search?q=%s&format=json&safesearch=1", instance, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "ProcurementAssistant/1.0 (Bot)")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search failed with status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var payload struct {
		Results []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Content string `json:"content"`
		} `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse search results: %w", err)
	}

	results := make([]Result, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, Result{Title: r.Title, URL: r.URL, Snippet: r.Content})
		if maxResults > 0 && len(results) >= maxResults {
			break
		}
	}
	return results, nil
}
