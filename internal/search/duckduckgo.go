package search

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

const duckDuckGoLiteURL = "https://lite.duckduckgo.com/lite/"

var (
	ddgLinkPattern    = regexp.MustCompile(`<a[^>]*class=['"]result-link['"][^>]*href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	ddgLinkPatternAlt = regexp.MustCompile(`<a[^>]*href=['"]([^'"]+)['"][^>]*class=['"]result-link['"][^>]*>([^<]+)</a>`)
	ddgSnippetPattern = regexp.MustCompile(`<td[^>]*class=['"]result-snippet['"][^>]*>([^<]+(?:<[^>]+>[^<]*</[^>]+>)*[^<]*)</td>`)
	ddgAnyLinkPattern = regexp.MustCompile(`<a[^>]+href=['"]([^'"]+)['"][^>]*>([^<]+)</a>`)
	htmlTagPattern    = regexp.MustCompile(`<[^>]+>`)
)

// DuckDuckGo scrapes the DuckDuckGo lite HTML page. It needs no API key.
type DuckDuckGo struct {
	endpoint string
	client   *http.Client
	maxWait  time.Duration
}

// NewDuckDuckGo creates a DuckDuckGo searcher with a modest timeout.
func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		endpoint: duckDuckGoLiteURL,
		client:   &http.Client{Timeout: 15 * time.Second},
		maxWait:  30 * time.Second,
	}
}

func (d *DuckDuckGo) Name() string { return "duckduckgo" }

func (d *DuckDuckGo) Search(ctx context.Context, query string, maxResults int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errors.New("query is empty")
	}

	form := url.Values{}
	form.Set("q", query)

	var resp *http.Response
	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err = d.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		// 429: back off, doubling up to maxWait
		if delay > d.maxWait {
			return nil, fmt.Errorf("duckduckgo rate limited")
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return parseLiteResults(string(body), maxResults), nil
}

// parseLiteResults extracts result links and snippets from the lite page.
func parseLiteResults(page string, maxResults int) []Result {
	if maxResults <= 0 {
		maxResults = 5
	}

	matches := ddgLinkPattern.FindAllStringSubmatch(page, -1)
	if len(matches) == 0 {
		matches = ddgLinkPatternAlt.FindAllStringSubmatch(page, -1)
	}
	snippets := ddgSnippetPattern.FindAllStringSubmatch(page, -1)

	var results []Result
	for i, match := range matches {
		link := strings.TrimSpace(match[1])
		title := cleanHTML(match[2])
		if link == "" || title == "" {
			continue
		}

		snippet := ""
		if i < len(snippets) {
			snippet = cleanHTML(snippets[i][1])
		}

		results = append(results, Result{Title: title, URL: link, Snippet: snippet})
		if len(results) >= maxResults {
			break
		}
	}

	if len(results) == 0 {
		results = fallbackParse(page, maxResults)
	}
	return results
}

// fallbackParse keeps any external link with a meaningful title.
func fallbackParse(page string, maxResults int) []Result {
	var results []Result
	seen := make(map[string]bool)
	for _, match := range ddgAnyLinkPattern.FindAllStringSubmatch(page, -1) {
		link := strings.TrimSpace(match[1])
		title := cleanHTML(match[2])

		if strings.Contains(link, "duckduckgo.com") ||
			strings.HasPrefix(link, "/") ||
			strings.HasPrefix(link, "#") ||
			strings.HasPrefix(link, "javascript:") {
			continue
		}
		if len(title) < 5 || seen[link] {
			continue
		}
		seen[link] = true

		results = append(results, Result{Title: title, URL: link})
		if len(results) >= maxResults {
			break
		}
	}
	return results
}

func cleanHTML(s string) string {
	s = htmlTagPattern.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(s)
}
