package chatlog

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
)

// MongoSink stores records in the chat_logs collection
type MongoSink struct {
	collection *mongo.Collection
}

func NewMongoSink(collection *mongo.Collection) *MongoSink {
	return &MongoSink{collection: collection}
}

func (s *MongoSink) Name() string { return "mongodb" }

func (s *MongoSink) Write(ctx context.Context, rec Record) error {
	if _, err := s.collection.InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("failed to insert chat log: %w", err)
	}
	return nil
}

// Close is a no-op; the client is owned by the database package.
func (s *MongoSink) Close() error { return nil }
