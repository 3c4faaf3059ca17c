package v1

import "time"

// Empty is the request or response of calls that carry nothing.
type Empty struct{}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

func (r *RegisterRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

func (r *RegisterRequest) GetPassword() string {
	if r == nil {
		return ""
	}
	return r.Password
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *LoginRequest) GetEmail() string {
	if r == nil {
		return ""
	}
	return r.Email
}

func (r *LoginRequest) GetPassword() string {
	if r == nil {
		return ""
	}
	return r.Password
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UpdateProfileRequest replaces the caller's editable profile fields.
type UpdateProfileRequest struct {
	Name           string   `json:"name"`
	ImageURL       string   `json:"image_url,omitempty"`
	Bio            string   `json:"bio,omitempty"`
	FavoriteGenres []string `json:"favorite_genres,omitempty"`
}

// Profile is a user's public profile.
type Profile struct {
	UserID         string    `json:"user_id"`
	Email          string    `json:"email,omitempty"`
	Name           string    `json:"name"`
	ImageURL       string    `json:"image_url,omitempty"`
	Bio            string    `json:"bio,omitempty"`
	FavoriteGenres []string  `json:"favorite_genres,omitempty"`
	IsOnline       bool      `json:"is_online"`
	LastActive     time.Time `json:"last_active"`
}

// Track is what a user is playing.
type Track struct {
	TrackID    string `json:"track_id"`
	TrackName  string `json:"track_name"`
	ArtistID   string `json:"artist_id"`
	ArtistName string `json:"artist_name"`
	ImageURL   string `json:"image_url,omitempty"`
}

// PublishListeningRequest upserts the caller's listening state.
type PublishListeningRequest struct {
	Track
	IsPlaying bool `json:"is_playing"`
}

// Candidate is one entry of the caller's candidate pool.
type Candidate struct {
	UserID    string    `json:"user_id"`
	MatchType string    `json:"match_type"`
	Track     Track     `json:"track"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CandidatesUpdate is one snapshot of the candidate pool.
type CandidatesUpdate struct {
	Candidates []Candidate `json:"candidates"`
	Skipped    int         `json:"skipped,omitempty"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// CreateMatchRequest sends a match request to TargetUserID. Without a
// Track the caller's current listening state is used.
type CreateMatchRequest struct {
	TargetUserID string `json:"target_user_id"`
	Track        *Track `json:"track,omitempty"`
}

// MatchIDRequest addresses a single match.
type MatchIDRequest struct {
	MatchID string `json:"match_id"`
}

// Match is a match record as seen by either party.
type Match struct {
	ID            string    `json:"id"`
	User1ID       string    `json:"user1_id"`
	User2ID       string    `json:"user2_id"`
	TrackName     string    `json:"track_name"`
	ArtistName    string    `json:"artist_name"`
	ImageURL      string    `json:"image_url,omitempty"`
	User1Accepted bool      `json:"user1_accepted"`
	User2Accepted bool      `json:"user2_accepted"`
	ChatID        string    `json:"chat_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MatchResponse carries a match and what the call did to it.
type MatchResponse struct {
	Match   *Match `json:"match,omitempty"`
	Outcome string `json:"outcome"`
}

// OutcomeResponse reports what a call did.
type OutcomeResponse struct {
	Outcome string `json:"outcome"`
}

// MatchesUpdate is one snapshot of the caller's pending and active matches.
type MatchesUpdate struct {
	Pending   []Match   `json:"pending"`
	Active    []Match   `json:"active"`
	Skipped   int       `json:"skipped,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SendMessageRequest appends a message to a chat.
type SendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// Message is a chat message.
type Message struct {
	ID       string    `json:"id"`
	ChatID   string    `json:"chat_id"`
	SenderID string    `json:"sender_id"`
	Text     string    `json:"text"`
	SentAt   time.Time `json:"sent_at"`
}

// GetHistoryRequest reads the most recent messages of a chat.
type GetHistoryRequest struct {
	ChatID string `json:"chat_id"`
	Limit  int    `json:"limit,omitempty"`
}

// GetHistoryResponse holds messages oldest first.
type GetHistoryResponse struct {
	Messages []Message `json:"messages"`
}

// WatchMessagesRequest subscribes to a chat.
type WatchMessagesRequest struct {
	ChatID string `json:"chat_id"`
}

// MessagesUpdate is one snapshot of a chat, oldest first.
type MessagesUpdate struct {
	ChatID    string    `json:"chat_id"`
	Messages  []Message `json:"messages"`
	Skipped   int       `json:"skipped,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserRequest addresses another user.
type UserRequest struct {
	UserID string `json:"user_id"`
}

// ListBlockedResponse lists the users the caller has blocked.
type ListBlockedResponse struct {
	UserIDs []string `json:"user_ids"`
}

// ReportUserRequest files a report against UserID.
type ReportUserRequest struct {
	UserID  string `json:"user_id"`
	Reason  string `json:"reason"`
	Details string `json:"details,omitempty"`
}

// ReportResponse identifies a filed report.
type ReportResponse struct {
	ReportID string `json:"report_id"`
	Status   string `json:"status"`
}

// ListNotificationsRequest pages the caller's notifications, newest first.
type ListNotificationsRequest struct {
	Limit int `json:"limit,omitempty"`
}

// Notification is an in-app notification.
type Notification struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id,omitempty"`
	Kind      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

// ListNotificationsResponse holds notifications, newest first.
type ListNotificationsResponse struct {
	Notifications []Notification `json:"notifications"`
}

// NotificationIDRequest addresses one notification.
type NotificationIDRequest struct {
	ID string `json:"id"`
}
