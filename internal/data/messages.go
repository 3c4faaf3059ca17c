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

// threadOrder is the read order of a chat: sent_at ascending, id breaks ties.
var threadOrder = bson.D{{Key: "sent_at", Value: 1}, {Key: "_id", Value: 1}}

// MessagesStore provides message database operations.
type MessagesStore struct {
	// coll is reference to "messages" collection in MongoDB
	coll *mongo.Collection
	log  *zap.Logger
}

// NewMessagesStore returns a MessagesStore using given collection.
func NewMessagesStore(coll *mongo.Collection, log *zap.Logger) *MessagesStore {
	return &MessagesStore{coll: coll, log: log}
}

// Insert appends a message.
func (m *MessagesStore) Insert(ctx context.Context, msg *Message) error {
	if _, err := m.coll.InsertOne(ctx, msg); err != nil {
		return translate(err)
	}
	return nil
}

// DeleteByID removes a single message. Used to undo an append whose chat
// update failed.
func (m *MessagesStore) DeleteByID(ctx context.Context, id string) error {
	if _, err := m.coll.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ListByChat returns the newest limit messages of a chat, oldest first.
func (m *MessagesStore) ListByChat(ctx context.Context, chatID string, limit int64) ([]Message, error) {
	// newest first so limit keeps the most recent ones
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	messages, _, err := findAll[Message](ctx, m.coll, m.log, bson.M{"chat_id": chatID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	// Reverse: callers expect chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// DeleteByChat removes every message of a chat.
func (m *MessagesStore) DeleteByChat(ctx context.Context, chatID string) (int64, error) {
	res, err := m.coll.DeleteMany(ctx, bson.M{"chat_id": chatID})
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return res.DeletedCount, nil
}

// WatchByChat subscribes to a chat's messages in thread order.
func (m *MessagesStore) WatchByChat(ctx context.Context, chatID string) (<-chan live.Snapshot[Message], error) {
	return watchQuery[Message](ctx, m.coll, m.log, bson.M{"chat_id": chatID},
		options.Find().SetSort(threadOrder))
}
