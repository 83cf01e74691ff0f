package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

type countingProvider struct {
	calls   int32
	queries []string
	limits  []int
	results []Result
	err     error
	// emptyFor returns no results for this exact query
	emptyFor string
}

func (p *countingProvider) Name() string { return "fake" }

func (p *countingProvider) Search(_ context.Context, query string, maxResults int) ([]Result, error) {
	atomic.AddInt32(&p.calls, 1)
	p.queries = append(p.queries, query)
	p.limits = append(p.limits, maxResults)
	if p.err != nil {
		return nil, p.err
	}
	if query == p.emptyFor {
		return nil, nil
	}
	return p.results, nil
}

func TestSearXNGSearch(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		if r.URL.Query().Get("format") != "json" {
			t.Errorf("expected format=json, got %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[
			{"title":"UNSPSC","url":"https://www.unspsc.org","content":"United Nations Standard Products and Services Code"},
			{"title":"Wiki","url":"https://en.wikipedia.org/wiki/UNSPSC","content":"A taxonomy of products"},
			{"title":"Third","url":"https://example.com","content":"more"}
		]}`))
	}))
	defer server.Close()

	s := NewSearXNG([]string{server.URL + "/"})
	results, err := s.Search(context.Background(), "what is unspsc", 2)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if gotQuery != "what is unspsc" {
		t.Errorf("server saw query %q", gotQuery)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].URL != "https://www.unspsc.org" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
}

func TestSearXNGFallsThroughFailingInstance(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"title":"ok","url":"https://ok.example","content":"fine"}]}`))
	}))
	defer good.Close()

	s := NewSearXNG([]string{bad.URL, good.URL})
	results, err := s.Search(context.Background(), "inflation rate 2023", 5)
	if err != nil {
		t.Fatalf("expected fallthrough to succeed, got %v", err)
	}
	if len(results) != 1 || results[0].Title != "ok" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestSearXNGNoInstances(t *testing.T) {
	if _, err := NewSearXNG(nil).Search(context.Background(), "x", 5); err == nil {
		t.Error("expected error without instances")
	}
}

func TestParseLiteResults(t *testing.T) {
	page := `<table>
<tr><td><a rel="nofollow" href="https://www.unspsc.org/" class='result-link'>UNSPSC &amp; Codes</a></td></tr>
<tr><td class='result-snippet'>The United Nations <b>Standard</b> Products&nbsp;and Services Code</td></tr>
<tr><td><a rel="nofollow" href="https://en.wikipedia.org/wiki/UNSPSC" class='result-link'>UNSPSC - Wikipedia</a></td></tr>
<tr><td class='result-snippet'>A hierarchical taxonomy</td></tr>
</table>`

	results := parseLiteResults(page, 5)
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d: %+v", len(results), results)
	}
	if results[0].Title != "UNSPSC & Codes" {
		t.Errorf("title not unescaped: %q", results[0].Title)
	}
	if results[0].Snippet != "The United Nations Standard Products and Services Code" {
		t.Errorf("snippet not cleaned: %q", results[0].Snippet)
	}
	if results[1].URL != "https://en.wikipedia.org/wiki/UNSPSC" {
		t.Errorf("unexpected second url: %q", results[1].URL)
	}
}

func TestParseLiteResultsFallback(t *testing.T) {
	page := `<a href="/lite/?q=next">Next Page</a>
<a href="https://duckduckgo.com/about">About DuckDuckGo</a>
<a href="https://www.dgs.ca.gov/PD">Procurement Division</a>`

	results := parseLiteResults(page, 5)
	if len(results) != 1 || results[0].URL != "https://www.dgs.ca.gov/PD" {
		t.Errorf("fallback should keep only external links, got %+v", results)
	}
}

func TestDuckDuckGoSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("q") != "california fiscal year" {
			t.Errorf("unexpected form: %v %v", r.PostForm, err)
		}
		w.Write([]byte(`<a href="https://ebudget.ca.gov" class='result-link'>California Budget</a>
<td class='result-snippet'>Fiscal year runs July 1 to June 30</td>`))
	}))
	defer server.Close()

	d := NewDuckDuckGo()
	d.endpoint = server.URL

	results, err := d.Search(context.Background(), "california fiscal year", 3)
	if err != nil {
		t.Fatalf("Search returned error: %v", err)
	}
	if len(results) != 1 || !strings.Contains(results[0].Snippet, "July 1") {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestServiceCachesSuccessfulResults(t *testing.T) {
	provider := &countingProvider{results: []Result{{Title: "A", URL: "https://a.example", Snippet: "alpha"}}}
	svc := NewService(provider, time.Minute, 0, 5)

	first := svc.Search(context.Background(), "What does UNSPSC mean?", 5)
	second := svc.Search(context.Background(), "what does unspsc mean?", 5)

	if !first.Success || !second.Success {
		t.Fatalf("expected success, got %+v / %+v", first, second)
	}
	if provider.calls != 1 {
		t.Errorf("expected cache hit on second call, provider called %d times", provider.calls)
	}
	if !strings.Contains(first.Results, "[1] A\n    URL: https://a.example\n    alpha") {
		t.Errorf("unexpected formatting:\n%s", first.Results)
	}
	if first.Count != 1 {
		t.Errorf("expected count 1, got %d", first.Count)
	}
}

func TestServiceRetriesWithSimplifiedQuery(t *testing.T) {
	provider := &countingProvider{
		emptyFor: "latest inflation rate 2023",
		results:  []Result{{Title: "CPI", URL: "https://bls.gov", Snippet: "cpi"}},
	}
	svc := NewService(provider, time.Minute, 0, 5)

	result := svc.Search(context.Background(), "latest inflation rate 2023", 5)
	if !result.Success || result.Count != 1 {
		t.Fatalf("expected retried search to succeed, got %+v", result)
	}
	if len(provider.queries) != 2 || provider.queries[1] != "inflation rate" {
		t.Errorf("unexpected queries: %q", provider.queries)
	}
}

func TestServiceFailureIsUnsuccessfulResult(t *testing.T) {
	provider := &countingProvider{err: errors.New("network unreachable")}
	svc := NewService(provider, time.Minute, 0, 5)

	result := svc.Search(context.Background(), "anything", 5)
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error != "network unreachable" || result.Query != "anything" || result.Count != 0 {
		t.Errorf("unexpected failure result: %+v", result)
	}

	// failures are not cached
	svc.Search(context.Background(), "anything", 5)
	if provider.calls != 2 {
		t.Errorf("expected failures to bypass cache, calls=%d", provider.calls)
	}
}

func TestServiceClampsMaxResults(t *testing.T) {
	provider := &countingProvider{results: []Result{{Title: "A", URL: "https://a.example"}}}
	svc := NewService(provider, time.Minute, 0, 5)

	svc.Search(context.Background(), "state procurement rules", 10000)
	svc.Search(context.Background(), "unspsc segments", 0)
	svc.Search(context.Background(), "fiscal year california", 7)

	want := []int{10, 5, 7}
	if len(provider.limits) != len(want) {
		t.Fatalf("expected %d provider calls, got %v", len(want), provider.limits)
	}
	for i, limit := range want {
		if provider.limits[i] != limit {
			t.Errorf("call %d: expected max_results %d, got %d", i, limit, provider.limits[i])
		}
	}
}

func TestServiceRejectsEmptyQuery(t *testing.T) {
	provider := &countingProvider{}
	result := NewService(provider, 0, 0, 0).Search(context.Background(), "   ", 0)
	if result.Success || provider.calls != 0 {
		t.Errorf("empty query should fail without calling provider: %+v", result)
	}
}

func TestSimplifyQuery(t *testing.T) {
	tests := map[string]string{
		"latest procurement news 2024": "procurement",
		"UNSPSC codes":                 "UNSPSC codes",
		"recent updates on CalCard":    "on CalCard",
	}
	for in, want := range tests {
		if got := simplifyQuery(in); got != want {
			t.Errorf("simplifyQuery(%q) = %q, want %q", in, got, want)
		}
	}
}
