package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProcurementStore reads and loads purchase order documents
type ProcurementStore struct {
	collection *mongo.Collection
}

// NewProcurementStore wraps the orders collection
func NewProcurementStore(collection *mongo.Collection) *ProcurementStore {
	return &ProcurementStore{collection: collection}
}

// Find runs a filtered find capped at limit documents.
func (s *ProcurementStore) Find(ctx context.Context, filter bson.M, limit int64, maxTime time.Duration) ([]bson.M, error) {
	opts := options.Find().SetLimit(limit)
	if maxTime > 0 {
		opts.SetMaxTime(maxTime)
	}

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return docs, nil
}

// Aggregate runs an aggregation pipeline.
func (s *ProcurementStore) Aggregate(ctx context.Context, pipeline []bson.D, maxTime time.Duration) ([]bson.M, error) {
	opts := options.Aggregate()
	if maxTime > 0 {
		opts.SetMaxTime(maxTime)
	}

	cursor, err := s.collection.Aggregate(ctx, pipeline, opts)
	if err != nil {
		return nil, fmt.Errorf("aggregation failed: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode results: %w", err)
	}
	return docs, nil
}

// SampleOne returns any document, or nil when the collection is empty.
func (s *ProcurementStore) SampleOne(ctx context.Context) (bson.M, error) {
	var doc bson.M
	err := s.collection.FindOne(ctx, bson.M{}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to sample collection: %w", err)
	}
	return doc, nil
}

// Count returns the number of documents in the collection.
func (s *ProcurementStore) Count(ctx context.Context) (int64, error) {
	return s.collection.CountDocuments(ctx, bson.M{})
}

// InsertMany inserts a batch of documents without stopping at the first failure.
func (s *ProcurementStore) InsertMany(ctx context.Context, docs []interface{}) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}
	res, err := s.collection.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	if res != nil && err != nil {
		return len(res.InsertedIDs), err
	}
	if err != nil {
		return 0, err
	}
	return len(res.InsertedIDs), nil
}

// Drop removes the collection.
func (s *ProcurementStore) Drop(ctx context.Context) error {
	return s.collection.Drop(ctx)
}
