package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
)

// NotificationWriter is the write side of the notifications collection.
type NotificationWriter interface {
	Insert(ctx context.Context, n *data.Notification) error
}

// StoreSink persists notifications so clients can list them later.
type StoreSink struct {
	store NotificationWriter
}

// NewStoreSink returns a sink writing into store.
func NewStoreSink(store NotificationWriter) *StoreSink {
	return &StoreSink{store: store}
}

// Deliver inserts n.
func (s *StoreSink) Deliver(ctx context.Context, n *data.Notification) error {
	if err := s.store.Insert(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// DefaultChannelPrefix is prepended to the recipient id to form the pub/sub
// channel a push worker subscribes to.
const DefaultChannelPrefix = "notifications:"

// Payload is the JSON document published on Redis.
type Payload struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipient_id"`
	ActorID     string    `json:"actor_id,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Type        string    `json:"type"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedisSink publishes notifications on a per-recipient Redis channel for an
// external push worker.
type RedisSink struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// RedisSinkOption configures a RedisSink.
type RedisSinkOption func(*RedisSink)

// WithChannelPrefix overrides DefaultChannelPrefix.
func WithChannelPrefix(prefix string) RedisSinkOption {
	return func(s *RedisSink) { s.prefix = prefix }
}

// WithRedisLogger sets the logger.
func WithRedisLogger(logger *zap.Logger) RedisSinkOption {
	return func(s *RedisSink) { s.logger = logger }
}

// NewRedisSink wraps an existing client. The caller keeps ownership of it.
func NewRedisSink(client *redis.Client, opts ...RedisSinkOption) *RedisSink {
	s := &RedisSink{
		client: client,
		prefix: DefaultChannelPrefix,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Channel returns the channel notifications for recipientID go to.
func (s *RedisSink) Channel(recipientID string) string {
	return s.prefix + recipientID
}

// Deliver publishes n as JSON.
func (s *RedisSink) Deliver(ctx context.Context, n *data.Notification) error {
	payload, err := json.Marshal(Payload{
		ID:          n.ID,
		RecipientID: n.RecipientID,
		ActorID:     n.ActorID,
		Title:       n.Title,
		Body:        n.Body,
		Type:        string(n.Kind),
		CreatedAt:   n.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	channel := s.Channel(n.RecipientID)
	if err := s.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	s.logger.Debug("published notification",
		zap.String("channel", channel),
		zap.String("type", string(n.Kind)))
	return nil
}
