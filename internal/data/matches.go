package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/live"
)

// MatchesStore provides match database operations.
type MatchesStore struct {
	coll *mongo.Collection
	log  *zap.Logger
}

// NewMatchesStore returns a MatchesStore using given collection.
func NewMatchesStore(coll *mongo.Collection, log *zap.Logger) *MatchesStore {
	return &MatchesStore{coll: coll, log: log}
}

// acceptedField is the flag column belonging to a role.
func acceptedField(role Role) string {
	if role == RoleInitiator {
		return "user1_accepted"
	}
	return "user2_accepted"
}

// Insert adds a match. A unique pair_key index (strict mode) surfaces as
// ErrDuplicate.
func (s *MatchesStore) Insert(ctx context.Context, m *Match) error {
	if _, err := s.coll.InsertOne(ctx, m); err != nil {
		return translate(err)
	}
	return nil
}

// Get fetches a match by id.
func (s *MatchesStore) Get(ctx context.Context, id string) (*Match, error) {
	var m Match
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&m); err != nil {
		return nil, translate(err)
	}
	return &m, nil
}

// FindByPair returns matches with exactly this role ordering.
func (s *MatchesStore) FindByPair(ctx context.Context, user1ID, user2ID string) ([]Match, error) {
	items, _, err := findAll[Match](ctx, s.coll, s.log,
		bson.M{"user1_id": user1ID, "user2_id": user2ID},
		options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find matches by pair: %w", err)
	}
	return items, nil
}

// SetAccepted raises the acceptance flag of role.
func (s *MatchesStore) SetAccepted(ctx context.Context, id string, role Role, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		acceptedField(role): true,
		"updated_at":        at,
	}})
	if err != nil {
		return fmt.Errorf("set accepted: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimChat stamps chatID on the match if both sides accepted and no chat
// has been stamped yet. It reports whether this call did the stamping.
func (s *MatchesStore) ClaimChat(ctx context.Context, id, chatID string, at time.Time) (bool, error) {
	filter := bson.M{
		"_id":            id,
		"user1_accepted": true,
		"user2_accepted": true,
		"$or": bson.A{
			bson.M{"chat_id": bson.M{"$exists": false}},
			bson.M{"chat_id": ""},
		},
	}
	res, err := s.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"chat_id":    chatID,
		"updated_at": at,
	}})
	if err != nil {
		return false, fmt.Errorf("claim chat: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

// ReleaseChat clears chat_id if it still holds chatID.
func (s *MatchesStore) ReleaseChat(ctx context.Context, id, chatID string) error {
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": id, "chat_id": chatID}, bson.M{
		"$unset": bson.M{"chat_id": ""},
	})
	if err != nil {
		return fmt.Errorf("release chat: %w", err)
	}
	return nil
}

// Delete removes a match and reports whether it existed.
func (s *MatchesStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete match: %w", err)
	}
	return res.DeletedCount > 0, nil
}

// WatchByRole subscribes to the matches where userID holds role.
func (s *MatchesStore) WatchByRole(ctx context.Context, role Role, userID string) (<-chan live.Snapshot[Match], error) {
	return watchQuery[Match](ctx, s.coll, s.log, bson.M{string(role): userID})
}
