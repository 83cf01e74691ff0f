package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	client   *mongo.Client
	database *mongo.Database
	dbName   string
}

// Collection names
const (
	CollectionProcurementOrders = "procurement_orders"
	CollectionChatLogs          = "chat_logs"
)

// DefaultDatabaseName is used when neither the config nor the URI names a database
const DefaultDatabaseName = "procurement_db"

// NewMongoDB creates a new MongoDB connection with connection pooling.
// dbName overrides the database named in the URI path.
func NewMongoDB(uri, dbName string, timeout time.Duration) (*MongoDB, error) {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(50).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second).
		SetServerSelectionTimeout(timeout).
		SetConnectTimeout(2 * timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	if dbName == "" {
		dbName = extractDBName(uri)
	}

	db := &MongoDB{
		client:   client,
		database: client.Database(dbName),
		dbName:   dbName,
	}

	log.Printf("✅ Connected to MongoDB database: %s", dbName)

	return db, nil
}

// extractDBName extracts the database name from the URI path
// (mongodb://host:27017/procurement_db?authSource=admin -> procurement_db).
func extractDBName(uri string) string {
	rest := uri
	if idx := indexAfterScheme(uri); idx >= 0 {
		rest = uri[idx:]
	}

	slash := -1
	for i, c := range rest {
		if c == '/' {
			slash = i
			break
		}
	}
	if slash == -1 {
		return DefaultDatabaseName
	}

	name := rest[slash+1:]
	for i, c := range name {
		if c == '?' {
			name = name[:i]
			break
		}
	}
	if name == "" {
		return DefaultDatabaseName
	}
	return name
}

func indexAfterScheme(uri string) int {
	for i := 0; i+2 < len(uri); i++ {
		if uri[i] == ':' && uri[i+1] == '/' && uri[i+2] == '/' {
			return i + 3
		}
	}
	return -1
}

// Initialize creates the indexes the procurement queries rely on
func (m *MongoDB) Initialize(ctx context.Context, ordersCollection string) error {
	log.Println("📦 Initializing MongoDB indexes...")

	if err := m.createIndexes(ctx, ordersCollection, ProcurementIndexes()); err != nil {
		return fmt.Errorf("failed to create %s indexes: %w", ordersCollection, err)
	}

	if err := m.createIndexes(ctx, CollectionChatLogs, []mongo.IndexModel{
		{Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "interaction_id", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("failed to create chat_logs indexes: %w", err)
	}

	log.Println("✅ MongoDB indexes initialized")
	return nil
}

// ProcurementIndexes lists the indexes of the orders collection.
func ProcurementIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{Keys: bson.D{{Key: "creation_date", Value: 1}}, Options: options.Index().SetName("idx_creation_date")},
		{Keys: bson.D{{Key: "fiscal_year", Value: 1}}, Options: options.Index().SetName("idx_fiscal_year")},
		{Keys: bson.D{{Key: "department_name", Value: 1}}, Options: options.Index().SetName("idx_department_name")},
		{Keys: bson.D{{Key: "supplier_name", Value: 1}}, Options: options.Index().SetName("idx_supplier_name")},
		{Keys: bson.D{{Key: "total_price", Value: -1}}, Options: options.Index().SetName("idx_total_price")},
		{Keys: bson.D{{Key: "item_name", Value: "text"}}, Options: options.Index().SetName("idx_item_name_text")},
		{
			Keys:    bson.D{{Key: "creation_date", Value: 1}, {Key: "fiscal_year", Value: 1}},
			Options: options.Index().SetName("idx_creation_date_fiscal_year"),
		},
		{
			Keys:    bson.D{{Key: "supplier_name", Value: 1}, {Key: "total_price", Value: -1}},
			Options: options.Index().SetName("idx_supplier_name_total_price"),
		},
	}
}

func (m *MongoDB) createIndexes(ctx context.Context, collectionName string, indexes []mongo.IndexModel) error {
	collection := m.database.Collection(collectionName)
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// Collection returns a collection handle
func (m *MongoDB) Collection(name string) *mongo.Collection {
	return m.database.Collection(name)
}

// Name returns the database name in use
func (m *MongoDB) Name() string {
	return m.dbName
}

// Close closes the MongoDB connection
func (m *MongoDB) Close(ctx context.Context) error {
	log.Println("🔌 Closing MongoDB connection...")
	return m.client.Disconnect(ctx)
}

// Ping checks if the database connection is alive
func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}
