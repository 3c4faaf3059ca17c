// Package chat is the per-match message channel: the chat row created by the
// ledger's cascade, append-only messages, ordered live reads and teardown.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/live"
	"github.com/PaulBabatuyi/resonance/internal/normalize"
)

var (
	// ErrEmptyMessage is returned for blank or whitespace-only text.
	ErrEmptyMessage = errors.New("message text is empty")
	// ErrChatNotFound is returned when the chat does not exist.
	ErrChatNotFound = errors.New("chat not found")
	// ErrNotParticipant is returned when the user is not one of the two parties.
	ErrNotParticipant = errors.New("user is not part of this chat")
)

const (
	// DefaultHistoryLimit applies when History is called with limit <= 0.
	DefaultHistoryLimit = 50
	// MaxHistoryLimit caps a single History read.
	MaxHistoryLimit = 500

	previewLength = 80
)

// ChatStore is the chats collection contract.
type ChatStore interface {
	Insert(ctx context.Context, c *data.Chat) error
	Get(ctx context.Context, id string) (*data.Chat, error)
	Touch(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) (bool, error)
}

// MessageStore is the messages collection contract.
type MessageStore interface {
	Insert(ctx context.Context, msg *data.Message) error
	DeleteByID(ctx context.Context, id string) error
	ListByChat(ctx context.Context, chatID string, limit int64) ([]data.Message, error)
	DeleteByChat(ctx context.Context, chatID string) (int64, error)
	WatchByChat(ctx context.Context, chatID string) (<-chan live.Snapshot[data.Message], error)
}

// Notifier receives fire-and-forget notifications.
type Notifier interface {
	Notify(recipientID, actorID string, kind data.NotificationKind, preview string)
}

// Channel implements chat operations on top of the store.
type Channel struct {
	chats  ChatStore
	msgs   MessageStore
	notify Notifier
	log    *zap.Logger
	now    func() time.Time
}

// Option configures a Channel.
type Option func(*Channel)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

// New wires a Channel. notify may be nil.
func New(chats ChatStore, msgs MessageStore, notify Notifier, log *zap.Logger, opts ...Option) *Channel {
	c := &Channel{
		chats:  chats,
		msgs:   msgs,
		notify: notify,
		log:    log.Named("chat"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open creates the chat row for a fully accepted match.
func (c *Channel) Open(ctx context.Context, m *data.Match, chatID string) error {
	now := c.now()
	err := c.chats.Insert(ctx, &data.Chat{
		ID:            chatID,
		MatchID:       m.ID,
		User1ID:       m.User1ID,
		User2ID:       m.User2ID,
		CreatedAt:     now,
		LastMessageAt: now,
	})
	if err != nil {
		return fmt.Errorf("insert chat: %w", err)
	}
	return nil
}

// Exists reports whether the chat row is present.
func (c *Channel) Exists(ctx context.Context, chatID string) (bool, error) {
	_, err := c.chats.Get(ctx, chatID)
	if errors.Is(err, data.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get chat: %w", err)
	}
	return true, nil
}

// Authorize returns the chat if userID is one of its parties.
func (c *Channel) Authorize(ctx context.Context, chatID, userID string) (*data.Chat, error) {
	chat, err := c.chats.Get(ctx, normalize.ID(chatID))
	if errors.Is(err, data.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	if !chat.HasMember(normalize.ID(userID)) {
		return nil, ErrNotParticipant
	}
	return chat, nil
}

// SendMessage appends a message and moves the chat's last_message_at to its
// sent_at. Either both writes stick or the call fails with no message left
// behind.
func (c *Channel) SendMessage(ctx context.Context, chatID, senderID, text string) (*data.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	chat, err := c.Authorize(ctx, chatID, senderID)
	if err != nil {
		return nil, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	msg := &data.Message{
		ID:       id.String(),
		ChatID:   chat.ID,
		SenderID: normalize.ID(senderID),
		Text:     text,
		SentAt:   c.now(),
	}
	if err := c.msgs.Insert(ctx, msg); err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if err := c.chats.Touch(ctx, chat.ID, msg.SentAt); err != nil {
		if derr := c.msgs.DeleteByID(context.WithoutCancel(ctx), msg.ID); derr != nil {
			c.log.Error("rollback message failed",
				zap.String("chat_id", chat.ID),
				zap.String("message_id", msg.ID),
				zap.Error(derr))
		}
		if errors.Is(err, data.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, fmt.Errorf("touch chat: %w", err)
	}

	if c.notify != nil {
		c.notify.Notify(chat.OtherUserID(msg.SenderID), msg.SenderID, data.KindNewMessage,
			normalize.Preview(text, previewLength))
	}
	return msg, nil
}

// Watch streams the chat's messages, oldest first with ties broken by id.
// Every delivery is the complete thread.
func (c *Channel) Watch(ctx context.Context, chatID string) (<-chan live.Snapshot[data.Message], error) {
	snaps, err := c.msgs.WatchByChat(ctx, normalize.ID(chatID))
	if err != nil {
		return nil, fmt.Errorf("watch messages: %w", err)
	}
	return snaps, nil
}

// History returns the most recent limit messages, oldest first.
func (c *Channel) History(ctx context.Context, chatID string, limit int) ([]data.Message, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	msgs, err := c.msgs.ListByChat(ctx, normalize.ID(chatID), int64(limit))
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// Teardown deletes every message of the chat and then the chat itself. A
// chat that does not exist is not an error.
func (c *Channel) Teardown(ctx context.Context, chatID string) error {
	n, err := c.msgs.DeleteByChat(ctx, chatID)
	if err != nil {
		return fmt.Errorf("delete messages: %w", err)
	}
	if _, err := c.chats.Delete(ctx, chatID); err != nil {
		return fmt.Errorf("delete chat: %w", err)
	}
	c.log.Info("chat torn down", zap.String("chat_id", chatID), zap.Int64("messages", n))
	return nil
}
