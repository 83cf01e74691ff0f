package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/patrickmn/go-cache"
	"go.mongodb.org/mongo-driver/bson"

	"procurement/internal/models"
)

const statsCacheKey = "collection_stats"

// StatsStore is the part of the procurement store the statistics need
type StatsStore interface {
	Count(ctx context.Context) (int64, error)
	Aggregate(ctx context.Context, pipeline []bson.D, maxTime time.Duration) ([]bson.M, error)
}

// StatsService computes collection statistics and caches them between refreshes
type StatsService struct {
	store StatsStore
	cache *cache.Cache
	now   func() time.Time
}

// NewStatsService caches statistics for ttl. The refresh job keeps them warm.
func NewStatsService(store StatsStore, ttl time.Duration) *StatsService {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StatsService{
		store: store,
		cache: cache.New(ttl, 2*ttl),
		now:   time.Now,
	}
}

// Stats returns the cached statistics, computing them on a miss
func (s *StatsService) Stats(ctx context.Context) (*models.CollectionStats, error) {
	if cached, found := s.cache.Get(statsCacheKey); found {
		return cached.(*models.CollectionStats), nil
	}
	return s.Refresh(ctx)
}

// Refresh recomputes the statistics and replaces the cached copy
func (s *StatsService) Refresh(ctx context.Context) (*models.CollectionStats, error) {
	start := s.now()

	total, err := s.store.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	stats := &models.CollectionStats{TotalDocuments: total}

	if stats.OldestCreation, err = s.creationDate(ctx, 1); err != nil {
		return nil, err
	}
	if stats.NewestCreation, err = s.creationDate(ctx, -1); err != nil {
		return nil, err
	}
	if stats.TotalSpending, err = s.totalSpending(ctx); err != nil {
		return nil, err
	}
	if stats.UniqueSuppliers, err = s.distinctCount(ctx, "supplier_name"); err != nil {
		return nil, err
	}
	if stats.Departments, err = s.distinctCount(ctx, "department_name"); err != nil {
		return nil, err
	}
	if stats.UniqueItems, err = s.distinctCount(ctx, "item_name"); err != nil {
		return nil, err
	}
	stats.GeneratedAt = s.now().UTC()

	s.cache.SetDefault(statsCacheKey, stats)
	log.Printf("📊 [STATS] Refreshed collection statistics in %v (%d documents)", s.now().Sub(start), total)
	return stats, nil
}

// creationDate returns the creation_date string of the oldest (1) or newest (-1) order
func (s *StatsService) creationDate(ctx context.Context, direction int) (string, error) {
	docs, err := s.store.Aggregate(ctx, []bson.D{
		{{Key: "$match", Value: bson.M{"creation_date_parsed": bson.M{"$exists": true}}}},
		{{Key: "$sort", Value: bson.D{{Key: "creation_date_parsed", Value: direction}}}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$project", Value: bson.M{"creation_date": 1}}},
	}, 0)
	if err != nil {
		return "", fmt.Errorf("failed to read date range: %w", err)
	}
	if len(docs) == 0 {
		return "", nil
	}
	date, _ := docs[0]["creation_date"].(string)
	return date, nil
}

func (s *StatsService) totalSpending(ctx context.Context) (float64, error) {
	docs, err := s.store.Aggregate(ctx, []bson.D{
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$total_price"}}}},
	}, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to sum spending: %w", err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	return toFloat64(docs[0]["total"]), nil
}

func (s *StatsService) distinctCount(ctx context.Context, field string) (int, error) {
	docs, err := s.store.Aggregate(ctx, []bson.D{
		{{Key: "$group", Value: bson.M{"_id": "$" + field}}},
		{{Key: "$count", Value: "n"}},
	}, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to count distinct %s: %w", field, err)
	}
	if len(docs) == 0 {
		return 0, nil
	}
	return int(toFloat64(docs[0]["n"])), nil
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
