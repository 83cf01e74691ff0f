package preflight

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"procurement/internal/config"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Store is the procurement collection as seen by the checks
type Store interface {
	Ping(ctx context.Context) error
	Count(ctx context.Context) (int64, error)
}

// ChatLog reports the configured chat-log sinks
type ChatLog interface {
	Enabled() bool
	SinkNames() []string
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	cfg     *config.Config
	store   Store
	chatLog ChatLog
	timeout time.Duration
}

// NewChecker creates a new preflight checker. chatLog may be nil.
func NewChecker(cfg *config.Config, store Store, chatLog ChatLog) *Checker {
	return &Checker{
		cfg:     cfg,
		store:   store,
		chatLog: chatLog,
		timeout: 5 * time.Second,
	}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll(ctx context.Context) []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkModelCredentials(),
		c.checkDatabaseConnection(ctx),
		c.checkCollection(ctx),
		c.checkChatLog(),
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

func (c *Checker) checkModelCredentials() CheckResult {
	if c.cfg.APIKey() == "" {
		return CheckResult{
			Name:    "Model Credentials",
			Status:  "fail",
			Message: fmt.Sprintf("No API key configured for provider %s", c.cfg.LLMProvider),
		}
	}
	return CheckResult{
		Name:    "Model Credentials",
		Status:  "pass",
		Message: fmt.Sprintf("%s / %s", c.cfg.LLMProvider, c.cfg.LLMModel),
	}
}

func (c *Checker) checkDatabaseConnection(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.store.Ping(ctx); err != nil {
		return CheckResult{
			Name:    "MongoDB Connection",
			Status:  "fail",
			Message: "Cannot connect to MongoDB",
			Error:   err,
		}
	}
	return CheckResult{
		Name:    "MongoDB Connection",
		Status:  "pass",
		Message: "MongoDB connection successful",
	}
}

// checkCollection warns when there is nothing to query yet
func (c *Checker) checkCollection(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	count, err := c.store.Count(ctx)
	if err != nil {
		return CheckResult{
			Name:    "Procurement Collection",
			Status:  "warning",
			Message: "Could not count documents",
			Error:   err,
		}
	}
	if count == 0 {
		return CheckResult{
			Name:    "Procurement Collection",
			Status:  "warning",
			Message: fmt.Sprintf("Collection %s is empty, run `procurectl ingest` first", c.cfg.MongoCollection),
		}
	}
	return CheckResult{
		Name:    "Procurement Collection",
		Status:  "pass",
		Message: fmt.Sprintf("%d documents", count),
	}
}

func (c *Checker) checkChatLog() CheckResult {
	if c.chatLog == nil || !c.chatLog.Enabled() {
		return CheckResult{
			Name:    "Chat Log",
			Status:  "warning",
			Message: "Chat logging disabled, feedback will not be recorded",
		}
	}
	sinks := c.chatLog.SinkNames()
	if c.cfg.ChatLogSQLDriver != "" && !contains(sinks, c.cfg.ChatLogSQLDriver) {
		return CheckResult{
			Name:    "Chat Log",
			Status:  "warning",
			Message: fmt.Sprintf("%s sink unavailable, logging to %s", c.cfg.ChatLogSQLDriver, strings.Join(sinks, ", ")),
		}
	}
	return CheckResult{
		Name:    "Chat Log",
		Status:  "pass",
		Message: "Logging to " + strings.Join(sinks, ", "),
	}
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
