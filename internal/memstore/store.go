package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/live"
	"github.com/PaulBabatuyi/resonance/internal/normalize"
)

// Option configures a Store.
type Option func(*Store)

// WithStrictPairKey rejects a second match for the same unordered pair, the
// in-memory equivalent of the unique pair_key index.
func WithStrictPairKey() Option {
	return func(s *Store) { s.strictPairKey = true }
}

// Store holds every collection in memory.
type Store struct {
	strictPairKey bool

	users         *table[data.User]
	listening     *table[data.ListeningState]
	matches       *table[data.Match]
	chats         *table[data.Chat]
	messages      *table[data.Message]
	blocks        *table[data.BlockRecord]
	reports       *table[data.Report]
	notifications *table[data.Notification]

	faultsMu sync.Mutex
	faults   map[string]error
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		users:         newTable(func(u *data.User) string { return u.ID }),
		listening:     newTable(func(l *data.ListeningState) string { return l.UserID }),
		matches:       newTable(func(m *data.Match) string { return m.ID }),
		chats:         newTable(func(c *data.Chat) string { return c.ID }),
		messages:      newTable(func(m *data.Message) string { return m.ID }),
		blocks:        newTable(func(b *data.BlockRecord) string { return b.ID }),
		reports:       newTable(func(r *data.Report) string { return r.ID }),
		notifications: newTable(func(n *data.Notification) string { return n.ID }),
		faults:        make(map[string]error),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fail makes every later call of op (e.g. "chats.Insert") return err. A nil
// err clears the fault.
func (s *Store) Fail(op string, err error) {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	if err == nil {
		delete(s.faults, op)
		return
	}
	s.faults[op] = err
}

func (s *Store) fault(op string) error {
	s.faultsMu.Lock()
	defer s.faultsMu.Unlock()
	return s.faults[op]
}

// Watchers returns the number of open live queries across all collections.
func (s *Store) Watchers() int {
	return s.listening.watcherCount() + s.matches.watcherCount() +
		s.messages.watcherCount() + s.blocks.watcherCount()
}

// Users returns the users collection.
func (s *Store) Users() *Users { return &Users{s: s} }

// Listening returns the current_listening collection.
func (s *Store) Listening() *Listening { return &Listening{s: s} }

// Matches returns the matches collection.
func (s *Store) Matches() *Matches { return &Matches{s: s} }

// Chats returns the chats collection.
func (s *Store) Chats() *Chats { return &Chats{s: s} }

// Messages returns the messages collection.
func (s *Store) Messages() *Messages { return &Messages{s: s} }

// Blocks returns the blocked_users collection.
func (s *Store) Blocks() *Blocks { return &Blocks{s: s} }

// Reports returns the reports collection.
func (s *Store) Reports() *Reports { return &Reports{s: s} }

// Notifications returns the notifications collection.
func (s *Store) Notifications() *Notifications { return &Notifications{s: s} }

// ===== users =====

// Users mirrors data.UsersStore.
type Users struct{ s *Store }

func (u *Users) CreateUser(ctx context.Context, email, hashedPassword, name string) (*data.User, error) {
	if err := u.s.fault("users.CreateUser"); err != nil {
		return nil, err
	}
	now := time.Now()
	user := data.User{
		ID:         uuid.NewString(),
		Email:      normalize.Email(email),
		Password:   hashedPassword,
		Name:       name,
		LastActive: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	var err error
	u.s.users.update(func(rows map[string]data.User) bool {
		for _, existing := range rows {
			if existing.Email == user.Email {
				err = data.ErrUserExists
				return false
			}
		}
		rows[user.ID] = user
		return true
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (u *Users) GetUserByEmail(ctx context.Context, email string) (*data.User, error) {
	email = normalize.Email(email)
	found := u.s.users.query(func(x *data.User) bool { return x.Email == email }, nil)
	if len(found) == 0 {
		return nil, data.ErrNotFound
	}
	return &found[0], nil
}

func (u *Users) GetUserByID(ctx context.Context, id string) (*data.User, error) {
	user, ok := u.s.users.get(id)
	if !ok {
		return nil, data.ErrNotFound
	}
	return &user, nil
}

func (u *Users) UserExists(ctx context.Context, id string) (bool, error) {
	_, ok := u.s.users.get(id)
	return ok, nil
}

func (u *Users) UpdateProfile(ctx context.Context, id string, p data.Profile) (*data.User, error) {
	var (
		out   data.User
		found bool
	)
	u.s.users.update(func(rows map[string]data.User) bool {
		user, ok := rows[id]
		if !ok {
			return false
		}
		user.Name, user.ImageURL, user.Bio = p.Name, p.ImageURL, p.Bio
		user.FavoriteGenres = append([]string(nil), p.FavoriteGenres...)
		user.UpdatedAt = time.Now()
		rows[id] = user
		out, found = user, true
		return true
	})
	if !found {
		return nil, data.ErrNotFound
	}
	return &out, nil
}

func (u *Users) SetOnline(ctx context.Context, id string, online bool, at time.Time) error {
	found := false
	u.s.users.update(func(rows map[string]data.User) bool {
		user, ok := rows[id]
		if !ok {
			return false
		}
		user.IsOnline, user.LastActive = online, at
		rows[id] = user
		found = true
		return true
	})
	if !found {
		return data.ErrNotFound
	}
	return nil
}

func (u *Users) DisplayName(ctx context.Context, id string) (string, error) {
	user, ok := u.s.users.get(id)
	if !ok {
		return "", data.ErrNotFound
	}
	return user.Name, nil
}

// ===== current_listening =====

// Listening mirrors data.ListeningStore.
type Listening struct{ s *Store }

func (l *Listening) Put(ctx context.Context, st *data.ListeningState) error {
	if err := l.s.fault("listening.Put"); err != nil {
		return err
	}
	v := *st
	l.s.listening.update(func(rows map[string]data.ListeningState) bool {
		rows[v.UserID] = v
		return true
	})
	return nil
}

func (l *Listening) Delete(ctx context.Context, userID string) error {
	if err := l.s.fault("listening.Delete"); err != nil {
		return err
	}
	l.s.listening.update(func(rows map[string]data.ListeningState) bool {
		if _, ok := rows[userID]; !ok {
			return false
		}
		delete(rows, userID)
		return true
	})
	return nil
}

func (l *Listening) Get(ctx context.Context, userID string) (*data.ListeningState, error) {
	st, ok := l.s.listening.get(userID)
	if !ok {
		return nil, data.ErrNotFound
	}
	return &st, nil
}

func (l *Listening) WatchPlaying(ctx context.Context) (<-chan live.Snapshot[data.ListeningState], error) {
	if err := l.s.fault("listening.WatchPlaying"); err != nil {
		return nil, err
	}
	return l.s.listening.watch(ctx, func(st *data.ListeningState) bool { return st.IsPlaying }, nil), nil
}

// ===== matches =====

// Matches mirrors data.MatchesStore.
type Matches struct{ s *Store }

func (m *Matches) Insert(ctx context.Context, match *data.Match) error {
	if err := m.s.fault("matches.Insert"); err != nil {
		return err
	}
	v := *match
	var err error
	m.s.matches.update(func(rows map[string]data.Match) bool {
		if _, ok := rows[v.ID]; ok {
			err = fmt.Errorf("%w: match %s", data.ErrDuplicate, v.ID)
			return false
		}
		if m.s.strictPairKey {
			for _, existing := range rows {
				if existing.PairKey == v.PairKey {
					err = fmt.Errorf("%w: pair %s", data.ErrDuplicate, v.PairKey)
					return false
				}
			}
		}
		rows[v.ID] = v
		return true
	})
	return err
}

func (m *Matches) Get(ctx context.Context, id string) (*data.Match, error) {
	if err := m.s.fault("matches.Get"); err != nil {
		return nil, err
	}
	match, ok := m.s.matches.get(id)
	if !ok {
		return nil, data.ErrNotFound
	}
	return &match, nil
}

func (m *Matches) FindByPair(ctx context.Context, user1ID, user2ID string) ([]data.Match, error) {
	if err := m.s.fault("matches.FindByPair"); err != nil {
		return nil, err
	}
	return m.s.matches.query(func(x *data.Match) bool {
		return x.User1ID == user1ID && x.User2ID == user2ID
	}, nil), nil
}

func (m *Matches) SetAccepted(ctx context.Context, id string, role data.Role, at time.Time) error {
	if err := m.s.fault("matches.SetAccepted"); err != nil {
		return err
	}
	found := false
	m.s.matches.update(func(rows map[string]data.Match) bool {
		match, ok := rows[id]
		if !ok {
			return false
		}
		found = true
		if role == data.RoleInitiator {
			match.User1Accepted = true
		} else {
			match.User2Accepted = true
		}
		match.UpdatedAt = at
		rows[id] = match
		return true
	})
	if !found {
		return data.ErrNotFound
	}
	return nil
}

func (m *Matches) ClaimChat(ctx context.Context, id, chatID string, at time.Time) (bool, error) {
	if err := m.s.fault("matches.ClaimChat"); err != nil {
		return false, err
	}
	claimed := false
	m.s.matches.update(func(rows map[string]data.Match) bool {
		match, ok := rows[id]
		if !ok || !match.BothAccepted() || match.ChatID != "" {
			return false
		}
		match.ChatID, match.UpdatedAt = chatID, at
		rows[id] = match
		claimed = true
		return true
	})
	return claimed, nil
}

func (m *Matches) ReleaseChat(ctx context.Context, id, chatID string) error {
	if err := m.s.fault("matches.ReleaseChat"); err != nil {
		return err
	}
	m.s.matches.update(func(rows map[string]data.Match) bool {
		match, ok := rows[id]
		if !ok || match.ChatID != chatID {
			return false
		}
		match.ChatID = ""
		rows[id] = match
		return true
	})
	return nil
}

func (m *Matches) Delete(ctx context.Context, id string) (bool, error) {
	if err := m.s.fault("matches.Delete"); err != nil {
		return false, err
	}
	existed := false
	m.s.matches.update(func(rows map[string]data.Match) bool {
		if _, ok := rows[id]; !ok {
			return false
		}
		delete(rows, id)
		existed = true
		return true
	})
	return existed, nil
}

func (m *Matches) WatchByRole(ctx context.Context, role data.Role, userID string) (<-chan live.Snapshot[data.Match], error) {
	if err := m.s.fault("matches.WatchByRole"); err != nil {
		return nil, err
	}
	return m.s.matches.watch(ctx, func(x *data.Match) bool {
		if role == data.RoleInitiator {
			return x.User1ID == userID
		}
		return x.User2ID == userID
	}, nil), nil
}

// Count returns the number of stored matches.
func (m *Matches) Count() int { return len(m.s.matches.query(nil, nil)) }

// ===== chats =====

// Chats mirrors data.ChatsStore.
type Chats struct{ s *Store }

func (c *Chats) Insert(ctx context.Context, chat *data.Chat) error {
	if err := c.s.fault("chats.Insert"); err != nil {
		return err
	}
	v := *chat
	var err error
	c.s.chats.update(func(rows map[string]data.Chat) bool {
		if _, ok := rows[v.ID]; ok {
			err = fmt.Errorf("%w: chat %s", data.ErrDuplicate, v.ID)
			return false
		}
		rows[v.ID] = v
		return true
	})
	return err
}

func (c *Chats) Get(ctx context.Context, id string) (*data.Chat, error) {
	if err := c.s.fault("chats.Get"); err != nil {
		return nil, err
	}
	chat, ok := c.s.chats.get(id)
	if !ok {
		return nil, data.ErrNotFound
	}
	return &chat, nil
}

func (c *Chats) Touch(ctx context.Context, id string, at time.Time) error {
	if err := c.s.fault("chats.Touch"); err != nil {
		return err
	}
	found := false
	c.s.chats.update(func(rows map[string]data.Chat) bool {
		chat, ok := rows[id]
		if !ok {
			return false
		}
		chat.LastMessageAt = at
		rows[id] = chat
		found = true
		return true
	})
	if !found {
		return data.ErrNotFound
	}
	return nil
}

func (c *Chats) Delete(ctx context.Context, id string) (bool, error) {
	if err := c.s.fault("chats.Delete"); err != nil {
		return false, err
	}
	existed := false
	c.s.chats.update(func(rows map[string]data.Chat) bool {
		if _, ok := rows[id]; !ok {
			return false
		}
		delete(rows, id)
		existed = true
		return true
	})
	return existed, nil
}

// Count returns the number of stored chats.
func (c *Chats) Count() int { return len(c.s.chats.query(nil, nil)) }

// ===== messages =====

// Messages mirrors data.MessagesStore.
type Messages struct{ s *Store }

func messageLess(a, b *data.Message) bool { return data.MessageBefore(a, b) }

func (m *Messages) Insert(ctx context.Context, msg *data.Message) error {
	if err := m.s.fault("messages.Insert"); err != nil {
		return err
	}
	v := *msg
	m.s.messages.update(func(rows map[string]data.Message) bool {
		rows[v.ID] = v
		return true
	})
	return nil
}

func (m *Messages) DeleteByID(ctx context.Context, id string) error {
	if err := m.s.fault("messages.DeleteByID"); err != nil {
		return err
	}
	m.s.messages.update(func(rows map[string]data.Message) bool {
		if _, ok := rows[id]; !ok {
			return false
		}
		delete(rows, id)
		return true
	})
	return nil
}

func (m *Messages) ListByChat(ctx context.Context, chatID string, limit int64) ([]data.Message, error) {
	if err := m.s.fault("messages.ListByChat"); err != nil {
		return nil, err
	}
	all := m.s.messages.query(func(x *data.Message) bool { return x.ChatID == chatID }, messageLess)
	if limit > 0 && int64(len(all)) > limit {
		all = all[int64(len(all))-limit:]
	}
	return all, nil
}

func (m *Messages) DeleteByChat(ctx context.Context, chatID string) (int64, error) {
	if err := m.s.fault("messages.DeleteByChat"); err != nil {
		return 0, err
	}
	var n int64
	m.s.messages.update(func(rows map[string]data.Message) bool {
		for id, msg := range rows {
			if msg.ChatID == chatID {
				delete(rows, id)
				n++
			}
		}
		return n > 0
	})
	return n, nil
}

func (m *Messages) WatchByChat(ctx context.Context, chatID string) (<-chan live.Snapshot[data.Message], error) {
	if err := m.s.fault("messages.WatchByChat"); err != nil {
		return nil, err
	}
	return m.s.messages.watch(ctx, func(x *data.Message) bool { return x.ChatID == chatID }, messageLess), nil
}

// CountByChat returns the number of messages stored for a chat.
func (m *Messages) CountByChat(chatID string) int {
	return len(m.s.messages.query(func(x *data.Message) bool { return x.ChatID == chatID }, nil))
}

// ===== blocked_users =====

// Blocks mirrors data.BlocksStore.
type Blocks struct{ s *Store }

func (b *Blocks) Insert(ctx context.Context, rec *data.BlockRecord) error {
	if err := b.s.fault("blocks.Insert"); err != nil {
		return err
	}
	v := *rec
	b.s.blocks.update(func(rows map[string]data.BlockRecord) bool {
		rows[v.ID] = v
		return true
	})
	return nil
}

func (b *Blocks) Delete(ctx context.Context, blockerID, blockedID string) (int64, error) {
	if err := b.s.fault("blocks.Delete"); err != nil {
		return 0, err
	}
	var n int64
	b.s.blocks.update(func(rows map[string]data.BlockRecord) bool {
		for id, rec := range rows {
			if rec.BlockerID == blockerID && rec.BlockedID == blockedID {
				delete(rows, id)
				n++
			}
		}
		return n > 0
	})
	return n, nil
}

func (b *Blocks) Exists(ctx context.Context, blockerID, blockedID string) (bool, error) {
	if err := b.s.fault("blocks.Exists"); err != nil {
		return false, err
	}
	found := b.s.blocks.query(func(x *data.BlockRecord) bool {
		return x.BlockerID == blockerID && x.BlockedID == blockedID
	}, nil)
	return len(found) > 0, nil
}

func (b *Blocks) ListByBlocker(ctx context.Context, blockerID string) ([]data.BlockRecord, error) {
	if err := b.s.fault("blocks.ListByBlocker"); err != nil {
		return nil, err
	}
	return b.s.blocks.query(func(x *data.BlockRecord) bool { return x.BlockerID == blockerID },
		func(x, y *data.BlockRecord) bool { return x.CreatedAt.After(y.CreatedAt) }), nil
}

func (b *Blocks) WatchBy(ctx context.Context, field data.BlockField, userID string) (<-chan live.Snapshot[data.BlockRecord], error) {
	if err := b.s.fault("blocks.WatchBy"); err != nil {
		return nil, err
	}
	return b.s.blocks.watch(ctx, func(x *data.BlockRecord) bool {
		if field == data.BlockerField {
			return x.BlockerID == userID
		}
		return x.BlockedID == userID
	}, nil), nil
}

// ===== reports =====

// Reports mirrors data.ReportsStore.
type Reports struct{ s *Store }

func (r *Reports) Insert(ctx context.Context, rep *data.Report) error {
	if err := r.s.fault("reports.Insert"); err != nil {
		return err
	}
	v := *rep
	r.s.reports.update(func(rows map[string]data.Report) bool {
		rows[v.ID] = v
		return true
	})
	return nil
}

// All returns every stored report.
func (r *Reports) All() []data.Report { return r.s.reports.query(nil, nil) }

// ===== notifications =====

// Notifications mirrors data.NotificationsStore.
type Notifications struct{ s *Store }

func (n *Notifications) Insert(ctx context.Context, note *data.Notification) error {
	if err := n.s.fault("notifications.Insert"); err != nil {
		return err
	}
	v := *note
	n.s.notifications.update(func(rows map[string]data.Notification) bool {
		rows[v.ID] = v
		return true
	})
	return nil
}

func (n *Notifications) ListForRecipient(ctx context.Context, recipientID string, limit int64) ([]data.Notification, error) {
	if err := n.s.fault("notifications.ListForRecipient"); err != nil {
		return nil, err
	}
	all := n.s.notifications.query(func(x *data.Notification) bool { return x.RecipientID == recipientID },
		func(a, b *data.Notification) bool { return a.CreatedAt.After(b.CreatedAt) })
	if limit > 0 && int64(len(all)) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (n *Notifications) MarkRead(ctx context.Context, id, recipientID string) error {
	if err := n.s.fault("notifications.MarkRead"); err != nil {
		return err
	}
	found := false
	n.s.notifications.update(func(rows map[string]data.Notification) bool {
		note, ok := rows[id]
		if !ok || note.RecipientID != recipientID {
			return false
		}
		note.IsRead = true
		rows[id] = note
		found = true
		return true
	})
	if !found {
		return data.ErrNotFound
	}
	return nil
}
