package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/live"
)

// BlocksStore provides blocked_users database operations.
type BlocksStore struct {
	coll *mongo.Collection
	log  *zap.Logger
}

// NewBlocksStore returns a BlocksStore using given collection.
func NewBlocksStore(coll *mongo.Collection, log *zap.Logger) *BlocksStore {
	return &BlocksStore{coll: coll, log: log}
}

// Insert adds a block record.
func (s *BlocksStore) Insert(ctx context.Context, b *BlockRecord) error {
	if _, err := s.coll.InsertOne(ctx, b); err != nil {
		return translate(err)
	}
	return nil
}

// Delete removes every record blockerID -> blockedID.
func (s *BlocksStore) Delete(ctx context.Context, blockerID, blockedID string) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, bson.M{"blocker_id": blockerID, "blocked_id": blockedID})
	if err != nil {
		return 0, fmt.Errorf("delete block: %w", err)
	}
	return res.DeletedCount, nil
}

// Exists reports whether blockerID has blocked blockedID.
func (s *BlocksStore) Exists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	n, err := s.coll.CountDocuments(ctx, bson.M{"blocker_id": blockerID, "blocked_id": blockedID})
	if err != nil {
		return false, fmt.Errorf("count blocks: %w", err)
	}
	return n > 0, nil
}

// ListByBlocker returns the records created by blockerID, newest first.
func (s *BlocksStore) ListByBlocker(ctx context.Context, blockerID string) ([]BlockRecord, error) {
	items, _, err := findAll[BlockRecord](ctx, s.coll, s.log, bson.M{"blocker_id": blockerID},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return items, nil
}

// WatchBy subscribes to the records where field == userID.
func (s *BlocksStore) WatchBy(ctx context.Context, field BlockField, userID string) (<-chan live.Snapshot[BlockRecord], error) {
	return watchQuery[BlockRecord](ctx, s.coll, s.log, bson.M{string(field): userID})
}
