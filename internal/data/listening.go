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

// ListeningStore reads and writes current_listening. The poller is the only
// writer; the matcher only ever subscribes.
type ListeningStore struct {
	coll *mongo.Collection
	log  *zap.Logger
}

// NewListeningStore returns a ListeningStore using the given collection.
func NewListeningStore(coll *mongo.Collection, log *zap.Logger) *ListeningStore {
	return &ListeningStore{coll: coll, log: log}
}

// Put overwrites the user's record (one document per user).
func (s *ListeningStore) Put(ctx context.Context, st *ListeningState) error {
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": st.UserID}, st, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("put listening state: %w", err)
	}
	return nil
}

// Delete removes the user's record. Missing records are not an error.
func (s *ListeningStore) Delete(ctx context.Context, userID string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": userID}); err != nil {
		return fmt.Errorf("delete listening state: %w", err)
	}
	return nil
}

// Get returns the user's last known state.
func (s *ListeningStore) Get(ctx context.Context, userID string) (*ListeningState, error) {
	var st ListeningState
	if err := s.coll.FindOne(ctx, bson.M{"_id": userID}).Decode(&st); err != nil {
		return nil, translate(err)
	}
	return &st, nil
}

// WatchPlaying subscribes to every record with is_playing == true.
func (s *ListeningStore) WatchPlaying(ctx context.Context) (<-chan live.Snapshot[ListeningState], error) {
	return watchQuery[ListeningState](ctx, s.coll, s.log, bson.M{"is_playing": true})
}
