package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/chat"
	"github.com/PaulBabatuyi/resonance/internal/config"
	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/db"
	"github.com/PaulBabatuyi/resonance/internal/ledger"
	"github.com/PaulBabatuyi/resonance/internal/live"
	"github.com/PaulBabatuyi/resonance/internal/memstore"
	"github.com/PaulBabatuyi/resonance/internal/moderation"
	"github.com/PaulBabatuyi/resonance/internal/notify"
)

// userStore is the subset of the users collection the API uses.
type userStore interface {
	CreateUser(ctx context.Context, email, hashedPassword, name string) (*data.User, error)
	GetUserByEmail(ctx context.Context, email string) (*data.User, error)
	GetUserByID(ctx context.Context, id string) (*data.User, error)
	UpdateProfile(ctx context.Context, id string, p data.Profile) (*data.User, error)
	SetOnline(ctx context.Context, id string, online bool, at time.Time) error
	DisplayName(ctx context.Context, id string) (string, error)
}

type listeningStore interface {
	Put(ctx context.Context, st *data.ListeningState) error
	Delete(ctx context.Context, userID string) error
	Get(ctx context.Context, userID string) (*data.ListeningState, error)
	WatchPlaying(ctx context.Context) (<-chan live.Snapshot[data.ListeningState], error)
}

type matchStore interface {
	ledger.MatchStore
	moderation.MatchFinder
}

type blockStore interface {
	moderation.BlockStore
	moderation.BlockWatcher
}

type notificationStore interface {
	notify.NotificationWriter
	ListForRecipient(ctx context.Context, recipientID string, limit int64) ([]data.Notification, error)
	MarkRead(ctx context.Context, id, recipientID string) error
}

// stores is one backend's set of collections.
type stores struct {
	users         userStore
	listening     listeningStore
	matches       matchStore
	chats         chat.ChatStore
	messages      chat.MessageStore
	blocks        blockStore
	reports       moderation.ReportStore
	notifications notificationStore

	close func(ctx context.Context) error
}

// openStores connects the configured backend.
func openStores(ctx context.Context, cfg config.StoreConfig, strictPairKey bool, log *zap.Logger) (*stores, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		var opts []memstore.Option
		if strictPairKey {
			opts = append(opts, memstore.WithStrictPairKey())
		}
		log.Warn("using in-memory store; data is lost on restart")
		return memoryStores(memstore.New(opts...)), nil

	case config.DriverMongo:
		client, err := db.New(ctx, cfg.MongoURI, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to DB: %w", err)
		}
		if err := client.CreateIndexes(ctx, strictPairKey); err != nil {
			_ = client.Close(ctx)
			return nil, fmt.Errorf("create indexes: %w", err)
		}
		return &stores{
			users:         data.NewUsersStore(client.Collection(db.UsersCollection)),
			listening:     data.NewListeningStore(client.Collection(db.ListeningCollection), log),
			matches:       data.NewMatchesStore(client.Collection(db.MatchesCollection), log),
			chats:         data.NewChatsStore(client.Collection(db.ChatsCollection)),
			messages:      data.NewMessagesStore(client.Collection(db.MessagesCollection), log),
			blocks:        data.NewBlocksStore(client.Collection(db.BlocksCollection), log),
			reports:       data.NewReportsStore(client.Collection(db.ReportsCollection)),
			notifications: data.NewNotificationsStore(client.Collection(db.NotificationsCollection), log),
			close:         client.Close,
		}, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

func memoryStores(m *memstore.Store) *stores {
	return &stores{
		users:         m.Users(),
		listening:     m.Listening(),
		matches:       m.Matches(),
		chats:         m.Chats(),
		messages:      m.Messages(),
		blocks:        m.Blocks(),
		reports:       m.Reports(),
		notifications: m.Notifications(),
		close:         func(context.Context) error { return nil },
	}
}
