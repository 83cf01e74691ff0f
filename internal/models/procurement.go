package models

import "time"

// TokenUsage aggregates prompt and completion tokens across every model call of a run
type TokenUsage struct {
	Input  int `json:"input_token_count" bson:"input_token_count"`
	Output int `json:"output_token_count" bson:"output_token_count"`
	Total  int `json:"total_token_count" bson:"total_token_count"`
}

// Add accumulates one model call's usage.
func (u *TokenUsage) Add(input, output int) {
	u.Input += input
	u.Output += output
	u.Total = u.Input + u.Output
}

// AgentRunResult is the outcome of one question run.
// It is built once when the run ends and never mutated afterwards.
type AgentRunResult struct {
	Success       bool       `json:"success"`
	Question      string     `json:"user_question"`
	Response      string     `json:"response"`
	Iterations    int        `json:"iterations"`
	ToolsUsed     []string   `json:"tools_used"`
	ExecutionTime float64    `json:"execution_time"`
	TokenUsage    TokenUsage `json:"token_count"`
	Exhausted     bool       `json:"exhausted,omitempty"`
	Error         string     `json:"error,omitempty"`
}

// QueryResult is the observation returned by the execute_query tool
type QueryResult struct {
	Success bool                     `json:"success"`
	Results []map[string]interface{} `json:"results"`
	Count   int                      `json:"count"`
	Error   string                   `json:"error,omitempty"`
}

// SearchResult is the observation returned by the search_web tool
type SearchResult struct {
	Success bool   `json:"success"`
	Query   string `json:"query"`
	Results string `json:"results"`
	Count   int    `json:"count"`
	Error   string `json:"error,omitempty"`
}

// HistoryEntry is the compact per-question summary kept in a session's history
type HistoryEntry struct {
	InteractionID string     `json:"interaction_id"`
	Timestamp     time.Time  `json:"timestamp"`
	Question      string     `json:"question"`
	Response      string     `json:"response"`
	ToolsUsed     []string   `json:"tools_used"`
	Iterations    int        `json:"iterations"`
	Success       bool       `json:"success"`
	TokenUsage    TokenUsage `json:"token_count"`
}

// Feedback is the user's vote on a response
type Feedback string

const (
	FeedbackNone     Feedback = "NA"
	FeedbackUpvote   Feedback = "upvote"
	FeedbackDownvote Feedback = "downvote"
)

// ParseFeedback accepts the stored values plus the thumbs shorthands used by the UI.
func ParseFeedback(value string) (Feedback, bool) {
	switch value {
	case "upvote", "up", "👍":
		return FeedbackUpvote, true
	case "downvote", "down", "👎":
		return FeedbackDownvote, true
	case "NA", "na", "":
		return FeedbackNone, true
	}
	return "", false
}

// CollectionStats summarises the procurement collection for dashboards
type CollectionStats struct {
	TotalDocuments  int64     `json:"total_documents"`
	OldestCreation  string    `json:"oldest_creation_date,omitempty"`
	NewestCreation  string    `json:"newest_creation_date,omitempty"`
	TotalSpending   float64   `json:"total_spending"`
	UniqueSuppliers int       `json:"unique_suppliers"`
	Departments     int       `json:"unique_departments"`
	UniqueItems     int       `json:"unique_items"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// AgentInfo describes the running assistant
type AgentInfo struct {
	Provider         string   `json:"provider"`
	Model            string   `json:"model"`
	MaxIterations    int      `json:"max_iterations"`
	WebSearchEnabled bool     `json:"web_search_enabled"`
	Tools            []string `json:"tools"`
	MongoConnected   bool     `json:"mongodb_connected"`
	TotalQueries     int64    `json:"total_queries"`
}
