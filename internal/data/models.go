package data

import (
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a document does not exist (or no longer does).
	ErrNotFound = errors.New("document not found")
	// ErrDuplicate is returned when an insert violates a unique index.
	ErrDuplicate = errors.New("duplicate document")
)

// User maps to users collection (account, profile and presence)
type User struct {
	ID             string    `bson:"_id"`
	Email          string    `bson:"email"`
	Password       string    `bson:"password"`
	Name           string    `bson:"name"`
	ImageURL       string    `bson:"image_url,omitempty"`
	Bio            string    `bson:"bio,omitempty"`
	FavoriteGenres []string  `bson:"favorite_genres,omitempty"`
	IsOnline       bool      `bson:"is_online"`
	LastActive     time.Time `bson:"last_active"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// Profile holds the user-editable subset of User.
type Profile struct {
	Name           string
	ImageURL       string
	Bio            string
	FavoriteGenres []string
}

// ListeningState maps to current_listening; the document id is the user id.
type ListeningState struct {
	UserID     string    `bson:"_id"`
	TrackID    string    `bson:"track_id"`
	TrackName  string    `bson:"track_name"`
	ArtistID   string    `bson:"artist_id"`
	ArtistName string    `bson:"artist_name"`
	ImageURL   string    `bson:"image_url,omitempty"`
	IsPlaying  bool      `bson:"is_playing"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// Role names the side of a match a user sits on. The value is the stored
// user id field for that side.
type Role string

const (
	RoleInitiator Role = "user1_id"
	RoleTarget    Role = "user2_id"
)

// Match maps to matches collection. User1 is always the initiator.
type Match struct {
	ID            string    `bson:"_id"`
	User1ID       string    `bson:"user1_id"`
	User2ID       string    `bson:"user2_id"`
	PairKey       string    `bson:"pair_key"`
	TrackName     string    `bson:"track_name"`
	ArtistName    string    `bson:"artist_name"`
	ImageURL      string    `bson:"image_url,omitempty"`
	User1Accepted bool      `bson:"user1_accepted"`
	User2Accepted bool      `bson:"user2_accepted"`
	ChatID        string    `bson:"chat_id,omitempty"`
	CreatedAt     time.Time `bson:"created_at"`
	UpdatedAt     time.Time `bson:"updated_at"`
}

// BothAccepted reports whether the handshake is complete.
func (m *Match) BothAccepted() bool { return m.User1Accepted && m.User2Accepted }

// RoleOf returns the role userID holds in the match.
func (m *Match) RoleOf(userID string) (Role, bool) {
	switch userID {
	case m.User1ID:
		return RoleInitiator, true
	case m.User2ID:
		return RoleTarget, true
	}
	return "", false
}

// OtherUserID returns the counterparty of userID.
func (m *Match) OtherUserID(userID string) string {
	if userID == m.User1ID {
		return m.User2ID
	}
	return m.User1ID
}

// PairKey is the canonical identifier of an unordered user pair.
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return strings.Join([]string{a, b}, "|")
}

// Chat maps to chats collection; created once per fully accepted match.
type Chat struct {
	ID            string    `bson:"_id"`
	MatchID       string    `bson:"match_id"`
	User1ID       string    `bson:"user1_id"`
	User2ID       string    `bson:"user2_id"`
	CreatedAt     time.Time `bson:"created_at"`
	LastMessageAt time.Time `bson:"last_message_at"`
}

// HasMember reports whether userID is one of the chat's two parties.
func (c *Chat) HasMember(userID string) bool {
	return userID != "" && (userID == c.User1ID || userID == c.User2ID)
}

// OtherUserID returns the counterparty of userID.
func (c *Chat) OtherUserID(userID string) string {
	if userID == c.User1ID {
		return c.User2ID
	}
	return c.User1ID
}

// Message maps to messages collection (append only)
type Message struct {
	ID       string    `bson:"_id"`
	ChatID   string    `bson:"chat_id"`
	SenderID string    `bson:"sender_id"`
	Text     string    `bson:"text"`
	SentAt   time.Time `bson:"sent_at"`
}

// MessageBefore is the read order for messages: sent_at ascending, then id.
func MessageBefore(a, b *Message) bool {
	if !a.SentAt.Equal(b.SentAt) {
		return a.SentAt.Before(b.SentAt)
	}
	return a.ID < b.ID
}

// BlockField selects which side of a block record a query filters on.
type BlockField string

const (
	BlockerField BlockField = "blocker_id"
	BlockedField BlockField = "blocked_id"
)

// BlockRecord maps to blocked_users collection; it is directional.
type BlockRecord struct {
	ID        string    `bson:"_id"`
	BlockerID string    `bson:"blocker_id"`
	BlockedID string    `bson:"blocked_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// Report maps to reports collection.
type Report struct {
	ID         string    `bson:"_id"`
	ReporterID string    `bson:"reporter_id"`
	ReportedID string    `bson:"reported_id"`
	Reason     string    `bson:"reason"`
	Context    string    `bson:"context,omitempty"`
	Status     string    `bson:"status"`
	CreatedAt  time.Time `bson:"created_at"`
}

// NotificationKind is the type column of a notification.
type NotificationKind string

const (
	KindMatchRequest  NotificationKind = "match_request"
	KindMatchAccepted NotificationKind = "match_accepted"
	KindNewMessage    NotificationKind = "new_message"
)

// Notification maps to notifications collection.
type Notification struct {
	ID          string           `bson:"_id"`
	RecipientID string           `bson:"recipient_id"`
	ActorID     string           `bson:"actor_id,omitempty"`
	Title       string           `bson:"title"`
	Body        string           `bson:"body"`
	Kind        NotificationKind `bson:"type"`
	IsRead      bool             `bson:"is_read"`
	CreatedAt   time.Time        `bson:"created_at"`
}
