package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Supported providers. Both speak the OpenAI chat-completions protocol.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var defaultBaseURLs = map[string]string{
	ProviderOpenAI: "https://api.openai.com/v1",
	ProviderGemini: "https://generativelanguage.googleapis.com/v1beta/openai",
}

// Config configures a Client
type Config struct {
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
}

// Client calls an OpenAI-compatible /chat/completions endpoint with tool support
type Client struct {
	provider    string
	model       string
	baseURL     string
	apiKey      string
	temperature float64
	maxTokens   int
	maxRetries  int
	retryDelay  time.Duration
	httpClient  *http.Client
}

// NewClient validates the configuration and builds a client.
// A missing API key is reported here rather than on first use.
func NewClient(cfg Config) (*Client, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		var ok bool
		baseURL, ok = defaultBaseURLs[provider]
		if !ok {
			return nil, fmt.Errorf("unsupported provider %q", cfg.Provider)
		}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%s: %w", provider, ErrMissingCredentials)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%s: model name is required", provider)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 180 * time.Second
	}

	return &Client{
		provider:    provider,
		model:       cfg.Model,
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      cfg.APIKey,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  500 * time.Millisecond,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Provider returns the normalized provider name.
func (c *Client) Provider() string { return c.provider }

// ModelName returns the model identifier sent with every request.
func (c *Client) ModelName() string { return c.model }

// Invoke sends the conversation and tool definitions and decodes the first choice.
// 429 and 5xx answers are retried with exponential backoff.
func (c *Client) Invoke(ctx context.Context, messages []Message, tools []ToolDefinition) (*Response, error) {
	reqJSON, err := json.Marshal(c.buildRequest(messages, tools))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			log.Printf("🔁 [LLM] Retrying %s request in %v (attempt %d/%d): %v", c.provider, delay, attempt, c.maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.send(ctx, reqJSON)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !isRetryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) send(ctx context.Context, reqJSON []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return decodeResponse(body)
}

// buildRequest renders the conversation in the chat-completions wire format.
func (c *Client) buildRequest(messages []Message, tools []ToolDefinition) map[string]interface{} {
	wireMessages := make([]map[string]interface{}, 0, len(messages))
	for _, msg := range messages {
		wireMessages = append(wireMessages, encodeMessage(msg))
	}

	reqBody := map[string]interface{}{
		"model":    c.model,
		"messages": wireMessages,
		"stream":   false,
	}

	// gpt-5 and o-series models only accept the default temperature
	if isReasoningModel(c.model) {
		if c.maxTokens > 0 {
			reqBody["max_completion_tokens"] = c.maxTokens
		}
	} else {
		reqBody["temperature"] = c.temperature
		if c.maxTokens > 0 {
			reqBody["max_tokens"] = c.maxTokens
		}
	}

	if len(tools) > 0 {
		wireTools := make([]map[string]interface{}, 0, len(tools))
		for _, tool := range tools {
			params := tool.Parameters
			if params == nil {
				params = map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
			}
			wireTools = append(wireTools, map[string]interface{}{
				"type": "function",
				"function": map[string]interface{}{
					"name":        tool.Name,
					"description": tool.Description,
					"parameters":  params,
				},
			})
		}
		reqBody["tools"] = wireTools
	}

	return reqBody
}

func encodeMessage(msg Message) map[string]interface{} {
	switch m := msg.(type) {
	case SystemMessage:
		return map[string]interface{}{"role": "system", "content": m.Content}
	case UserMessage:
		return map[string]interface{}{"role": "user", "content": m.Content}
	case AssistantMessage:
		out := map[string]interface{}{"role": "assistant"}
		if m.Content != "" || len(m.ToolCalls) == 0 {
			out["content"] = m.Content
		}
		if len(m.ToolCalls) > 0 {
			calls := make([]map[string]interface{}, 0, len(m.ToolCalls))
			for _, tc := range m.ToolCalls {
				args := tc.RawArguments
				if args == "" {
					encoded, err := json.Marshal(tc.Arguments)
					if err != nil || tc.Arguments == nil {
						encoded = []byte("{}")
					}
					args = string(encoded)
				}
				call := map[string]interface{}{
					"id":   tc.ID,
					"type": "function",
					"function": map[string]interface{}{
						"name":      tc.Name,
						"arguments": args,
					},
				}
				// Gemini rejects echoed tool calls without their thought_signature
				if tc.ExtraContent != nil {
					call["extra_content"] = tc.ExtraContent
				}
				calls = append(calls, call)
			}
			out["tool_calls"] = calls
		}
		return out
	case ToolMessage:
		return map[string]interface{}{
			"role":         "tool",
			"tool_call_id": m.CallID,
			"name":         m.Name,
			"content":      m.Content,
		}
	default:
		panic(fmt.Sprintf("llm: unhandled message type %T", msg))
	}
}

type wireResponse struct {
	wireUsage
	Choices []struct {
		Message struct {
			Content   json.RawMessage `json:"content"`
			ToolCalls []struct {
				ID           string                 `json:"id"`
				Type         string                 `json:"type"`
				ExtraContent map[string]interface{} `json:"extra_content,omitempty"`
				Function     struct {
					Name      string          `json:"name"`
					Arguments json.RawMessage `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

func decodeResponse(body []byte) (*Response, error) {
	var apiResult wireResponse
	if err := json.Unmarshal(body, &apiResult); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(apiResult.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := apiResult.Choices[0]
	out := &Response{
		Content:      ExtractText(choice.Message.Content),
		Usage:        apiResult.normalize(),
		FinishReason: choice.FinishReason,
	}

	for _, tc := range choice.Message.ToolCalls {
		args, raw := decodeArguments(tc.Function.Arguments)
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.New().String()
		}
		out.ToolCalls = append(out.ToolCalls, ToolCall{
			ID:           id,
			Name:         tc.Function.Name,
			Arguments:    args,
			RawArguments: raw,
			ExtraContent: tc.ExtraContent,
		})
	}

	return out, nil
}

func isReasoningModel(model string) bool {
	m := strings.ToLower(model)
	return strings.HasPrefix(m, "gpt-5") || strings.HasPrefix(m, "o1") || strings.HasPrefix(m, "o3") || strings.HasPrefix(m, "o4")
}
