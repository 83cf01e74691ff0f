package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"procurement/internal/models"
)

// DefaultHistoryLimit is the number of interactions kept per session
const DefaultHistoryLimit = 10

// SessionStore keeps the bounded per-session history. The oldest entry is
// evicted first once the limit is reached.
type SessionStore interface {
	Append(ctx context.Context, sessionID string, entry models.HistoryEntry) error
	List(ctx context.Context, sessionID string) ([]models.HistoryEntry, error)
	Clear(ctx context.Context, sessionID string) error
}

// MemorySessionStore keeps histories in process, expiring idle sessions
type MemorySessionStore struct {
	mu    sync.Mutex
	cache *cache.Cache
	limit int
}

func NewMemorySessionStore(limit int, ttl time.Duration) *MemorySessionStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &MemorySessionStore{
		cache: cache.New(ttl, 10*time.Minute),
		limit: limit,
	}
}

func (s *MemorySessionStore) Append(_ context.Context, sessionID string, entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var history []models.HistoryEntry
	if cached, found := s.cache.Get(sessionID); found {
		history = cached.([]models.HistoryEntry)
	}
	history = append(append([]models.HistoryEntry(nil), history...), entry)
	if len(history) > s.limit {
		history = history[len(history)-s.limit:]
	}
	s.cache.SetDefault(sessionID, history)
	return nil
}

func (s *MemorySessionStore) List(_ context.Context, sessionID string) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cached, found := s.cache.Get(sessionID)
	if !found {
		return []models.HistoryEntry{}, nil
	}
	return append([]models.HistoryEntry(nil), cached.([]models.HistoryEntry)...), nil
}

func (s *MemorySessionStore) Clear(_ context.Context, sessionID string) error {
	s.cache.Delete(sessionID)
	return nil
}

// RedisSessionStore keeps histories in Redis lists so every server instance
// sees the same session
type RedisSessionStore struct {
	redis *RedisService
	limit int
	ttl   time.Duration
}

func NewRedisSessionStore(redis *RedisService, limit int, ttl time.Duration) *RedisSessionStore {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &RedisSessionStore{redis: redis, limit: limit, ttl: ttl}
}

func sessionKey(sessionID string) string {
	return "procurement:session:" + sessionID + ":history"
}

func (s *RedisSessionStore) Append(ctx context.Context, sessionID string, entry models.HistoryEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}
	return s.redis.AppendCapped(ctx, sessionKey(sessionID), data, int64(s.limit), s.ttl)
}

func (s *RedisSessionStore) List(ctx context.Context, sessionID string) ([]models.HistoryEntry, error) {
	raw, err := s.redis.ListAll(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to read session history: %w", err)
	}
	history := make([]models.HistoryEntry, 0, len(raw))
	for _, item := range raw {
		var entry models.HistoryEntry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			continue
		}
		history = append(history, entry)
	}
	return history, nil
}

func (s *RedisSessionStore) Clear(ctx context.Context, sessionID string) error {
	return s.redis.Delete(ctx, sessionKey(sessionID))
}
