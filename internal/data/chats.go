package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ChatsStore provides chat database operations.
type ChatsStore struct {
	coll *mongo.Collection
}

// NewChatsStore returns a ChatsStore using given collection.
func NewChatsStore(coll *mongo.Collection) *ChatsStore {
	return &ChatsStore{coll: coll}
}

// Insert adds a chat.
func (s *ChatsStore) Insert(ctx context.Context, c *Chat) error {
	if _, err := s.coll.InsertOne(ctx, c); err != nil {
		return translate(err)
	}
	return nil
}

// Get fetches a chat by id.
func (s *ChatsStore) Get(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	if err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&c); err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// Touch sets last_message_at.
func (s *ChatsStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_message_at": at}})
	if err != nil {
		return fmt.Errorf("touch chat: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a chat and reports whether it existed.
func (s *ChatsStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("delete chat: %w", err)
	}
	return res.DeletedCount > 0, nil
}
