package main

import (
	"context"
	"errors"
	"html"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/resonance/api/v1"
	"github.com/PaulBabatuyi/resonance/internal/auth"
	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/ledger"
	"github.com/PaulBabatuyi/resonance/internal/matching"
	"github.com/PaulBabatuyi/resonance/internal/moderation"
	"github.com/PaulBabatuyi/resonance/internal/normalize"
)

const (
	minPasswordLength        = 8
	defaultNotificationLimit = 50
	maxNotificationLimit     = 200
)

// Register handles user registration: hashes password, stores user, returns JWT token
func (s *Server) Register(ctx context.Context, req *v1.RegisterRequest) (*v1.AuthResponse, error) {
	email := normalize.Email(req.GetEmail())
	if !strings.Contains(email, "@") {
		return nil, status.Errorf(codes.InvalidArgument, "a valid email is required")
	}
	if len(req.GetPassword()) < minPasswordLength {
		return nil, status.Errorf(codes.InvalidArgument, "password must be at least %d characters", minPasswordLength)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = email[:strings.Index(email, "@")]
	}

	hashed, err := auth.HashPassword(req.GetPassword())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to hash password")
	}

	user, err := s.users.CreateUser(ctx, email, hashed, name)
	if err != nil {
		return nil, s.toStatus("register", err)
	}
	return s.issue(user)
}

// Login authenticates a user and returns a JWT token
func (s *Server) Login(ctx context.Context, req *v1.LoginRequest) (*v1.AuthResponse, error) {
	user, err := s.users.GetUserByEmail(ctx, req.GetEmail())
	if errors.Is(err, data.ErrNotFound) {
		return nil, status.Errorf(codes.PermissionDenied, "invalid credentials")
	}
	if err != nil {
		return nil, s.toStatus("login", err)
	}
	if err := auth.CheckPassword(user.Password, req.GetPassword()); err != nil {
		return nil, status.Errorf(codes.PermissionDenied, "invalid credentials")
	}
	return s.issue(user)
}

func (s *Server) issue(user *data.User) (*v1.AuthResponse, error) {
	token, expiresAt, err := s.auth.GenerateToken(user.ID, user.Email)
	if err != nil {
		s.log.Error("generate token failed", zap.Error(err))
		return nil, status.Errorf(codes.Internal, "failed to generate token")
	}
	return &v1.AuthResponse{Token: token, UserID: user.ID, ExpiresAt: expiresAt}, nil
}

// GetProfile returns a user's profile. Users hidden from each other by a
// block look like they do not exist.
func (s *Server) GetProfile(ctx context.Context, req *v1.UserRequest) (*v1.Profile, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	id := normalize.ID(req.UserID)
	if id == "" {
		id = me
	}
	if id != me {
		blocked, err := s.moderation.IsBlocked(ctx, me, id)
		if err != nil {
			return nil, s.toStatus("get profile", err)
		}
		if blocked {
			return nil, status.Errorf(codes.NotFound, "user not found")
		}
	}
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, s.toStatus("get profile", err)
	}
	return toProfile(user, id == me), nil
}

// UpdateProfile replaces the caller's editable profile fields.
func (s *Server) UpdateProfile(ctx context.Context, req *v1.UpdateProfileRequest) (*v1.Profile, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if normalize.Blank(req.Name) {
		return nil, status.Errorf(codes.InvalidArgument, "name is required")
	}
	user, err := s.users.UpdateProfile(ctx, me, data.Profile{
		Name:           strings.TrimSpace(req.Name),
		ImageURL:       strings.TrimSpace(req.ImageURL),
		Bio:            strings.TrimSpace(req.Bio),
		FavoriteGenres: req.FavoriteGenres,
	})
	if err != nil {
		return nil, s.toStatus("update profile", err)
	}
	return toProfile(user, true), nil
}

// PublishListening records what the caller is playing.
func (s *Server) PublishListening(ctx context.Context, req *v1.PublishListeningRequest) (*v1.Empty, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if normalize.Blank(req.TrackID) && normalize.Blank(req.ArtistID) {
		return nil, status.Errorf(codes.InvalidArgument, "track_id or artist_id is required")
	}
	st := &data.ListeningState{
		UserID:     me,
		TrackID:    normalize.ID(req.TrackID),
		TrackName:  strings.TrimSpace(req.TrackName),
		ArtistID:   normalize.ID(req.ArtistID),
		ArtistName: strings.TrimSpace(req.ArtistName),
		ImageURL:   strings.TrimSpace(req.ImageURL),
		IsPlaying:  req.IsPlaying,
		UpdatedAt:  s.now(),
	}
	if err := s.listening.Put(ctx, st); err != nil {
		return nil, s.toStatus("publish listening", err)
	}
	return &v1.Empty{}, nil
}

// StopListening removes the caller from every candidate pool.
func (s *Server) StopListening(ctx context.Context, _ *v1.Empty) (*v1.Empty, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.listening.Delete(ctx, me); err != nil && !errors.Is(err, data.ErrNotFound) {
		return nil, s.toStatus("stop listening", err)
	}
	return &v1.Empty{}, nil
}

// CreateMatch sends a match request to another listener.
func (s *Server) CreateMatch(ctx context.Context, req *v1.CreateMatchRequest) (*v1.MatchResponse, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	target := normalize.ID(req.TargetUserID)
	switch target {
	case "":
		return nil, s.toStatus("create match", ledger.ErrBlankUser)
	case me:
		return nil, s.toStatus("create match", ledger.ErrSelfMatch)
	}

	if _, err := s.users.GetUserByID(ctx, target); err != nil {
		if errors.Is(err, data.ErrNotFound) {
			return nil, status.Errorf(codes.NotFound, "user not found")
		}
		return nil, s.toStatus("create match", err)
	}
	blocked, err := s.moderation.IsBlocked(ctx, me, target)
	if err != nil {
		return nil, s.toStatus("create match", err)
	}
	if blocked {
		return nil, status.Errorf(codes.NotFound, "user not found")
	}

	var listening data.ListeningState
	if req.Track != nil {
		listening = data.ListeningState{
			TrackID:    req.Track.TrackID,
			TrackName:  req.Track.TrackName,
			ArtistID:   req.Track.ArtistID,
			ArtistName: req.Track.ArtistName,
			ImageURL:   req.Track.ImageURL,
		}
	} else {
		st, err := s.listening.Get(ctx, me)
		if errors.Is(err, data.ErrNotFound) {
			return nil, status.Errorf(codes.FailedPrecondition, "not listening to anything")
		}
		if err != nil {
			return nil, s.toStatus("create match", err)
		}
		listening = *st
	}

	m, outcome, err := s.ledger.CreateMatch(ctx, me, target, listening)
	if err != nil {
		return nil, s.toStatus("create match", err)
	}
	return &v1.MatchResponse{Match: toMatch(m), Outcome: string(outcome)}, nil
}

// AcceptMatch accepts a match request; the second acceptance opens the chat.
func (s *Server) AcceptMatch(ctx context.Context, req *v1.MatchIDRequest) (*v1.MatchResponse, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	m, outcome, err := s.ledger.AcceptMatch(ctx, req.MatchID, me)
	if err != nil {
		return nil, s.toStatus("accept match", err)
	}
	return &v1.MatchResponse{Match: toMatch(m), Outcome: string(outcome)}, nil
}

// DeclineMatch removes a match. A match that is already gone is reported
// as such, not as an error.
func (s *Server) DeclineMatch(ctx context.Context, req *v1.MatchIDRequest) (*v1.OutcomeResponse, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.participant(ctx, req.MatchID, me); err != nil {
		if errors.Is(err, ledger.ErrMatchNotFound) {
			return &v1.OutcomeResponse{Outcome: string(ledger.AlreadyGone)}, nil
		}
		return nil, s.toStatus("decline match", err)
	}
	outcome, err := s.ledger.DeclineMatch(ctx, normalize.ID(req.MatchID))
	if err != nil {
		return nil, s.toStatus("decline match", err)
	}
	return &v1.OutcomeResponse{Outcome: string(outcome)}, nil
}

// Unmatch removes an active match with its chat and messages.
func (s *Server) Unmatch(ctx context.Context, req *v1.MatchIDRequest) (*v1.Empty, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	m, err := s.participant(ctx, req.MatchID, me)
	if errors.Is(err, ledger.ErrMatchNotFound) {
		return &v1.Empty{}, nil
	}
	if err != nil {
		return nil, s.toStatus("unmatch", err)
	}
	if err := s.ledger.Unmatch(ctx, m); err != nil {
		return nil, s.toStatus("unmatch", err)
	}
	return &v1.Empty{}, nil
}

// SendMessage appends a message to one of the caller's chats.
func (s *Server) SendMessage(ctx context.Context, req *v1.SendMessageRequest) (*v1.Message, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	msg, err := s.chat.SendMessage(ctx, req.ChatID, me, html.EscapeString(req.Text))
	if err != nil {
		return nil, s.toStatus("send message", err)
	}
	return toMessage(msg), nil
}

// GetHistory returns the most recent messages of a chat, oldest first.
func (s *Server) GetHistory(ctx context.Context, req *v1.GetHistoryRequest) (*v1.GetHistoryResponse, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	chat, err := s.chat.Authorize(ctx, req.ChatID, me)
	if err != nil {
		return nil, s.toStatus("get history", err)
	}
	msgs, err := s.chat.History(ctx, chat.ID, req.Limit)
	if err != nil {
		return nil, s.toStatus("get history", err)
	}
	return &v1.GetHistoryResponse{Messages: toMessages(msgs)}, nil
}

// BlockUser blocks another user and severs everything between the two.
func (s *Server) BlockUser(ctx context.Context, req *v1.UserRequest) (*v1.Empty, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.moderation.BlockUser(ctx, me, req.UserID); err != nil {
		return nil, s.toStatus("block user", err)
	}
	return &v1.Empty{}, nil
}

// UnblockUser lifts the caller's block on another user.
func (s *Server) UnblockUser(ctx context.Context, req *v1.UserRequest) (*v1.Empty, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.moderation.UnblockUser(ctx, me, req.UserID); err != nil {
		return nil, s.toStatus("unblock user", err)
	}
	return &v1.Empty{}, nil
}

// ListBlocked returns the users the caller blocked, newest first.
func (s *Server) ListBlocked(ctx context.Context, _ *v1.Empty) (*v1.ListBlockedResponse, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	recs, err := s.moderation.ListBlocked(ctx, me)
	if err != nil {
		return nil, s.toStatus("list blocked", err)
	}
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.BlockedID)
	}
	return &v1.ListBlockedResponse{UserIDs: ids}, nil
}

// ReportUser files a report for review.
func (s *Server) ReportUser(ctx context.Context, req *v1.ReportUserRequest) (*v1.ReportResponse, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	r, err := s.moderation.ReportUser(ctx, me, req.UserID, req.Reason, req.Details)
	if err != nil {
		return nil, s.toStatus("report user", err)
	}
	return &v1.ReportResponse{ReportID: r.ID, Status: r.Status}, nil
}

// ListNotifications returns the caller's notifications, newest first.
func (s *Server) ListNotifications(ctx context.Context, req *v1.ListNotificationsRequest) (*v1.ListNotificationsResponse, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	limit := req.Limit
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	ns, err := s.notifications.ListForRecipient(ctx, me, int64(limit))
	if err != nil {
		return nil, s.toStatus("list notifications", err)
	}
	out := make([]v1.Notification, 0, len(ns))
	for i := range ns {
		out = append(out, *toNotification(&ns[i]))
	}
	return &v1.ListNotificationsResponse{Notifications: out}, nil
}

// MarkNotificationRead flags one of the caller's notifications as read.
func (s *Server) MarkNotificationRead(ctx context.Context, req *v1.NotificationIDRequest) (*v1.Empty, error) {
	me, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.notifications.MarkRead(ctx, normalize.ID(req.ID), me); err != nil {
		return nil, s.toStatus("mark notification read", err)
	}
	return &v1.Empty{}, nil
}

// follow pushes a fresh update every time changes or the caller's block list
// fires. Nothing is sent until the block list has loaded, so a blocked
// counterparty is never shown even briefly.
func follow(ctx context.Context, bl *moderation.BlockList, changes <-chan struct{}, emit func() error) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
		case <-bl.Changes():
		}
		if !bl.Ready() {
			continue
		}
		if err := emit(); err != nil {
			return err
		}
	}
}

// WatchCandidates streams the caller's candidate pool. Every update is the
// complete pool.
func (s *Server) WatchCandidates(_ *v1.Empty, stream grpc.ServerStreamingServer[v1.CandidatesUpdate]) error {
	ctx := stream.Context()
	me, err := caller(ctx)
	if err != nil {
		return err
	}

	bl := moderation.NewBlockList(s.blocks, s.log)
	bl.Start(ctx, me)
	defer bl.Stop()
	matcher := matching.New(s.listening, s.log, matching.WithRetryDelay(s.retryDelay))
	matcher.Start(ctx, me)
	defer matcher.Stop()

	return follow(ctx, bl, matcher.Changes(), func() error {
		pool := matcher.Pool()
		if pool.UpdatedAt.IsZero() {
			return nil
		}
		visible := moderation.Visible(bl, pool.Candidates, func(p *matching.PotentialMatch) string { return p.OtherUserID })
		update := &v1.CandidatesUpdate{
			Candidates: make([]v1.Candidate, 0, len(visible)),
			Skipped:    pool.Skipped,
			UpdatedAt:  pool.UpdatedAt,
		}
		for i := range visible {
			update.Candidates = append(update.Candidates, toCandidate(&visible[i]))
		}
		return stream.Send(update)
	})
}

// WatchMatches streams the caller's pending requests and active matches.
func (s *Server) WatchMatches(_ *v1.Empty, stream grpc.ServerStreamingServer[v1.MatchesUpdate]) error {
	ctx := stream.Context()
	me, err := caller(ctx)
	if err != nil {
		return err
	}

	bl := moderation.NewBlockList(s.blocks, s.log)
	bl.Start(ctx, me)
	defer bl.Stop()
	views := ledger.NewViews(s.matches, s.log, ledger.WithViewsRetryDelay(s.retryDelay))
	views.Start(ctx, me)
	defer views.Stop()

	other := func(m *data.Match) string { return m.OtherUserID(me) }
	return follow(ctx, bl, views.Changes(), func() error {
		view := views.View()
		if view.UpdatedAt.IsZero() {
			return nil
		}
		return stream.Send(&v1.MatchesUpdate{
			Pending:   toMatches(moderation.Visible(bl, view.Pending, other)),
			Active:    toMatches(moderation.Visible(bl, view.Active, other)),
			Skipped:   view.Skipped,
			UpdatedAt: view.UpdatedAt,
		})
	})
}

// WatchMessages streams a chat's messages. Every update is the whole thread,
// oldest first.
func (s *Server) WatchMessages(req *v1.WatchMessagesRequest, stream grpc.ServerStreamingServer[v1.MessagesUpdate]) error {
	ctx := stream.Context()
	me, err := caller(ctx)
	if err != nil {
		return err
	}
	chat, err := s.chat.Authorize(ctx, req.ChatID, me)
	if err != nil {
		return s.toStatus("watch messages", err)
	}

	snaps, err := s.chat.Watch(ctx, chat.ID)
	if err != nil {
		return s.toStatus("watch messages", err)
	}
	for snap := range snaps {
		if snap.Err != nil {
			s.log.Warn("message subscription ended", zap.String("chat_id", chat.ID), zap.Error(snap.Err))
			return status.Errorf(codes.Unavailable, "message subscription ended; reconnect")
		}
		if err := stream.Send(&v1.MessagesUpdate{
			ChatID:    chat.ID,
			Messages:  toMessages(snap.Items),
			Skipped:   snap.Skipped,
			UpdatedAt: snap.At,
		}); err != nil {
			return err
		}
	}
	return nil
}

// WatchNotifications pushes the caller's notifications as they are created.
// While at least one such stream is open the user is shown as online.
func (s *Server) WatchNotifications(_ *v1.Empty, stream grpc.ServerStreamingServer[v1.Notification]) error {
	ctx := stream.Context()
	me, err := caller(ctx)
	if err != nil {
		return err
	}
	if s.hub == nil {
		return status.Errorf(codes.Unavailable, "push delivery is disabled")
	}

	q := newQueuedSender(notificationQueue)
	connID := s.hub.Register(me, q)
	defer s.hub.Unregister(me, connID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-q.dropped:
			return status.Errorf(codes.ResourceExhausted, "notification stream fell behind; reconnect")
		case n := <-q.ch:
			if err := stream.Send(n); err != nil {
				return err
			}
		}
	}
}
