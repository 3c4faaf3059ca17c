// Package db manages MongoDB connections and collections.
package db

import (
	"context" // For connection timeout/cancellation
	"fmt"     // Error formatting
	"time"    // Duration for timeouts

	"go.mongodb.org/mongo-driver/v2/bson"           // Index keys
	"go.mongodb.org/mongo-driver/v2/mongo"          // MongoDB driver
	"go.mongodb.org/mongo-driver/v2/mongo/options"  // MongoDB options
	"go.mongodb.org/mongo-driver/v2/mongo/readpref" // MongoDB read preference
)

// DefaultDatabase is used when no database name is configured.
const DefaultDatabase = "resonance"

// Collection names. They mirror the logical layout the mobile client used.
const (
	UsersCollection         = "users"
	ListeningCollection     = "current_listening"
	MatchesCollection       = "matches"
	ChatsCollection         = "chats"
	MessagesCollection      = "messages"
	BlocksCollection        = "blocked_users"
	ReportsCollection       = "reports"
	NotificationsCollection = "notifications"
)

// Client wraps mongo.Client and exposes collections.
type Client struct {
	// client is the underlying MongoDB connection (thread-safe, can be reused)
	client *mongo.Client

	// db is the configured database; every collection hangs off it
	db *mongo.Database
}

// New connects to MongoDB and returns a Client. Live queries rely on change
// streams, so the server has to run as a replica set.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	if database == "" {
		database = DefaultDatabase
	}

	// SetConnectTimeout: fail fast if MongoDB is unreachable
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// If ping doesn't complete in 5 seconds, fail
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{
		client: client,
		db:     client.Database(database),
	}, nil
}

// Collection returns the named collection.
func (c *Client) Collection(name string) *mongo.Collection {
	// Created if doesn't exist (MongoDB creates on first write)
	return c.db.Collection(name)
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// DropAll drops every collection the service uses. Tests only.
func (c *Client) DropAll(ctx context.Context) error {
	for _, name := range []string{
		UsersCollection, ListeningCollection, MatchesCollection, ChatsCollection,
		MessagesCollection, BlocksCollection, ReportsCollection, NotificationsCollection,
	} {
		if err := c.db.Collection(name).Drop(ctx); err != nil {
			return fmt.Errorf("drop %s: %w", name, err)
		}
	}
	return nil
}

// CreateIndexes creates the indexes the stores query on. With strictPairKey
// the matches collection gets a unique index on pair_key, which turns the
// concurrent mutual-request race into a duplicate key error.
func (c *Client) CreateIndexes(ctx context.Context, strictPairKey bool) error {
	// ===== USERS =====
	// no two users can have the same email
	_, err := c.Collection(UsersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("failed to create users index: %w", err)
	}

	// ===== CURRENT LISTENING =====
	// candidate matcher filters on is_playing
	_, err = c.Collection(ListeningCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "is_playing", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create listening index: %w", err)
	}

	// ===== MATCHES =====
	// one index per role column (the two live subscriptions) plus the
	// directional pair lookup used by the duplicate check and block cascade
	pairIndex := options.Index()
	if strictPairKey {
		pairIndex.SetUnique(true)
	}
	_, err = c.Collection(MatchesCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user1_id", Value: 1}}},
		{Keys: bson.D{{Key: "user2_id", Value: 1}}},
		{Keys: bson.D{{Key: "user1_id", Value: 1}, {Key: "user2_id", Value: 1}}},
		{Keys: bson.D{{Key: "pair_key", Value: 1}}, Options: pairIndex},
	})
	if err != nil {
		return fmt.Errorf("failed to create match indexes: %w", err)
	}

	// ===== MESSAGES =====
	// (chat_id, sent_at) serves both history and the live thread query
	_, err = c.Collection(MessagesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "chat_id", Value: 1}, {Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}

	// ===== BLOCKS =====
	_, err = c.Collection(BlocksCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "blocker_id", Value: 1}, {Key: "blocked_id", Value: 1}}},
		{Keys: bson.D{{Key: "blocked_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create block indexes: %w", err)
	}

	// ===== NOTIFICATIONS =====
	_, err = c.Collection(NotificationsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "recipient_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create notification index: %w", err)
	}

	return nil
}
