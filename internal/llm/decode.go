package llm

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
)

// ExtractText flattens message content into plain text.
// Providers return either a string or a list of fragments; fragments are
// strings or objects with a "text" field and are joined in order.
func ExtractText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var fragments []json.RawMessage
	if err := json.Unmarshal(raw, &fragments); err == nil {
		var sb strings.Builder
		for _, fragment := range fragments {
			var text string
			if err := json.Unmarshal(fragment, &text); err == nil {
				sb.WriteString(text)
				continue
			}
			var part struct {
				Text *string `json:"text"`
			}
			if err := json.Unmarshal(fragment, &part); err == nil && part.Text != nil {
				sb.WriteString(*part.Text)
			}
		}
		return sb.String()
	}

	var part struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(raw, &part); err == nil && part.Text != nil {
		return *part.Text
	}
	return string(raw)
}

// wireUsage covers both the OpenAI and the Gemini usage shapes
type wireUsage struct {
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		InputTokens      int `json:"input_tokens"`
		OutputTokens     int `json:"output_tokens"`
	} `json:"usage"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// normalize maps whatever usage shape the provider sent to Usage.
// A missing block yields zero counts.
func (w wireUsage) normalize() Usage {
	switch {
	case w.Usage != nil:
		u := Usage{InputTokens: w.Usage.PromptTokens, OutputTokens: w.Usage.CompletionTokens}
		if u.InputTokens == 0 && u.OutputTokens == 0 {
			u = Usage{InputTokens: w.Usage.InputTokens, OutputTokens: w.Usage.OutputTokens}
		}
		return u
	case w.UsageMetadata != nil:
		return Usage{
			InputTokens:  w.UsageMetadata.PromptTokenCount,
			OutputTokens: w.UsageMetadata.CandidatesTokenCount,
		}
	default:
		return Usage{}
	}
}

// decodeArguments accepts tool-call arguments sent either as a JSON string or
// as an inline object. It returns the parsed map and the canonical JSON text.
func decodeArguments(raw json.RawMessage) (map[string]interface{}, string) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return map[string]interface{}{}, "{}"
	}

	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
	}
	if strings.TrimSpace(text) == "" {
		return map[string]interface{}{}, "{}"
	}
	if fixed, ok := sanitizeConcatenatedJSON(text); ok {
		text = fixed
	}

	args := map[string]interface{}{}
	if err := json.Unmarshal([]byte(text), &args); err != nil {
		log.Printf("⚠️ [LLM] Could not parse tool arguments %q: %v", truncate(text, 120), err)
		return map[string]interface{}{}, text
	}
	return args, text
}

// sanitizeConcatenatedJSON merges arguments that arrive as several objects
// glued together, e.g. {"a":1}{"b":2}, into a single object.
func sanitizeConcatenatedJSON(argsStr string) (string, bool) {
	if !strings.Contains(argsStr, "}{") || json.Valid([]byte(argsStr)) {
		return argsStr, false
	}

	parts := strings.Split(argsStr, "}{")
	merged := make(map[string]interface{})
	for i, part := range parts {
		if i > 0 {
			part = "{" + part
		}
		if i < len(parts)-1 {
			part = part + "}"
		}

		var obj map[string]interface{}
		if err := json.Unmarshal([]byte(part), &obj); err != nil {
			candidate := argsStr[:strings.Index(argsStr, "}{")+1]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
			return argsStr, false
		}
		for k, v := range obj {
			merged[k] = v
		}
	}

	result, err := json.Marshal(merged)
	if err != nil {
		return argsStr, false
	}

	log.Printf("🔧 [LLM] Merged %d concatenated argument objects", len(parts))
	return string(result), true
}
