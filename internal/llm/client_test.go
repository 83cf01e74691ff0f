package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, serverURL, model string) *Client {
	t.Helper()
	client, err := NewClient(Config{
		Provider:   ProviderOpenAI,
		Model:      model,
		BaseURL:    serverURL,
		APIKey:     "test-key",
		MaxTokens:  256,
		MaxRetries: 2,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.retryDelay = time.Millisecond
	return client
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{Provider: "gemini", Model: "gemini-2.5-flash"})
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestNewClientRejectsUnknownProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "acme", Model: "m", APIKey: "k"})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewClientDefaultBaseURL(t *testing.T) {
	client, err := NewClient(Config{Provider: "gemini", Model: "gemini-2.5-flash", APIKey: "k"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if client.baseURL != "https://generativelanguage.googleapis.com/v1beta/openai" {
		t.Errorf("unexpected base URL %s", client.baseURL)
	}
}

func TestInvokeEncodesConversationAndDecodesToolCalls(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &captured); err != nil {
			t.Errorf("request is not JSON: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"choices": [{
				"message": {
					"content": null,
					"tool_calls": [
						{"id": "call_1", "type": "function", "function": {"name": "execute_query", "arguments": "{\"query_json\":\"{}\"}"}},
						{"id": "call_2", "type": "function", "function": {"name": "search_web", "arguments": {"query": "budget"}}}
					]
				},
				"finish_reason": "tool_calls"
			}],
			"usage": {"prompt_tokens": 120, "completion_tokens": 30}
		}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o-mini")
	messages := []Message{
		SystemMessage{Content: "system"},
		UserMessage{Content: "question"},
		AssistantMessage{ToolCalls: []ToolCall{{ID: "prev", Name: "inspect_schema", Arguments: map[string]interface{}{}}}},
		ToolMessage{CallID: "prev", Name: "inspect_schema", Content: "schema"},
	}
	tools := []ToolDefinition{{Name: "inspect_schema", Description: "schema"}}

	resp, err := client.Invoke(context.Background(), messages, tools)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].Arguments["query_json"] != "{}" {
		t.Errorf("string arguments not decoded: %+v", resp.ToolCalls[0].Arguments)
	}
	if resp.ToolCalls[1].Arguments["query"] != "budget" {
		t.Errorf("object arguments not decoded: %+v", resp.ToolCalls[1].Arguments)
	}
	if resp.Usage.InputTokens != 120 || resp.Usage.OutputTokens != 30 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}

	wireMessages := captured["messages"].([]interface{})
	if len(wireMessages) != 4 {
		t.Fatalf("expected 4 wire messages, got %d", len(wireMessages))
	}
	toolMsg := wireMessages[3].(map[string]interface{})
	if toolMsg["role"] != "tool" || toolMsg["tool_call_id"] != "prev" {
		t.Errorf("unexpected tool message %+v", toolMsg)
	}
	if captured["temperature"] == nil {
		t.Errorf("expected temperature for non-reasoning model")
	}
	if _, ok := captured["tools"]; !ok {
		t.Errorf("expected tools in request")
	}
}

func TestInvokeSkipsTemperatureForReasoningModels(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &captured)
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-5-mini")
	if _, err := client.Invoke(context.Background(), []Message{UserMessage{Content: "hi"}}, nil); err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if _, ok := captured["temperature"]; ok {
		t.Errorf("temperature must not be sent to gpt-5 models")
	}
	if captured["max_completion_tokens"] != float64(256) {
		t.Errorf("expected max_completion_tokens, got %v", captured["max_completion_tokens"])
	}
}

func TestInvokeDecodesGeminiUsageAndFragments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{
			"choices":[{"message":{"content":[{"type":"text","text":"The answer "},{"type":"text","text":"is 42."}]},"finish_reason":"stop"}],
			"usageMetadata":{"promptTokenCount":11,"candidatesTokenCount":7}
		}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gemini-2.5-flash")
	resp, err := client.Invoke(context.Background(), []Message{UserMessage{Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Content != "The answer is 42." {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.InputTokens != 11 || resp.Usage.OutputTokens != 7 {
		t.Errorf("unexpected usage %+v", resp.Usage)
	}
}

func TestInvokeRetriesRateLimits(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"error":"slow down"}`)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"content":"ok"},"finish_reason":"stop"}]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o-mini")
	resp, err := client.Invoke(context.Background(), []Message{UserMessage{Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if resp.Content != "ok" || atomic.LoadInt32(&calls) != 2 {
		t.Errorf("expected one retry, got %d calls and content %q", calls, resp.Content)
	}
}

func TestInvokeDoesNotRetryAuthErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"error":"bad key"}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o-mini")
	_, err := client.Invoke(context.Background(), []Message{UserMessage{Content: "hi"}}, nil)

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 APIError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestInvokeNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"choices":[]}`)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, "gpt-4o-mini")
	if _, err := client.Invoke(context.Background(), []Message{UserMessage{Content: "hi"}}, nil); !errors.Is(err, ErrNoChoices) {
		t.Errorf("expected ErrNoChoices, got %v", err)
	}
}
