package data

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

// NotificationsStore persists notification records. A push worker outside
// this service delivers them to devices.
type NotificationsStore struct {
	coll *mongo.Collection
	log  *zap.Logger
}

// NewNotificationsStore returns a NotificationsStore using given collection.
func NewNotificationsStore(coll *mongo.Collection, log *zap.Logger) *NotificationsStore {
	return &NotificationsStore{coll: coll, log: log}
}

// Insert adds a notification.
func (s *NotificationsStore) Insert(ctx context.Context, n *Notification) error {
	if _, err := s.coll.InsertOne(ctx, n); err != nil {
		return translate(err)
	}
	return nil
}

// ListForRecipient returns the newest notifications of a user.
func (s *NotificationsStore) ListForRecipient(ctx context.Context, recipientID string, limit int64) ([]Notification, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	items, _, err := findAll[Notification](ctx, s.coll, s.log, bson.M{"recipient_id": recipientID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return items, nil
}

// MarkRead flags a notification as read. Only the recipient may do so.
func (s *NotificationsStore) MarkRead(ctx context.Context, id, recipientID string) error {
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": id, "recipient_id": recipientID},
		bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
