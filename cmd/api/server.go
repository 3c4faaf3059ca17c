package main

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/resonance/api/v1"
	"github.com/PaulBabatuyi/resonance/internal/auth"
	"github.com/PaulBabatuyi/resonance/internal/chat"
	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/ledger"
	"github.com/PaulBabatuyi/resonance/internal/moderation"
)

// notificationQueue is the per-connection buffer of WatchNotifications.
const notificationQueue = 32

// Server implements the Resonance service on top of the domain packages.
type Server struct {
	v1.UnimplementedResonanceServer

	users         userStore
	listening     listeningStore
	notifications notificationStore
	blocks        moderation.BlockWatcher
	matches       ledger.MatchWatcher

	ledger     *ledger.Ledger
	chat       *chat.Channel
	moderation *moderation.Overlay

	auth       *auth.JWTManager
	hub        *ConnectionHub
	log        *zap.Logger
	retryDelay time.Duration
	now        func() time.Time
}

// newServer wires the domain services over st. The ledger and chat channel
// report to notify; hub may be nil when push delivery is not wanted.
func newServer(st *stores, notify ledger.Notifier, authMgr *auth.JWTManager, hub *ConnectionHub, log *zap.Logger, retryDelay time.Duration) *Server {
	ch := chat.New(st.chats, st.messages, notify, log)
	led := ledger.New(st.matches, ch, notify, log)
	return &Server{
		users:         st.users,
		listening:     st.listening,
		notifications: st.notifications,
		blocks:        st.blocks,
		matches:       st.matches,
		ledger:        led,
		chat:          ch,
		moderation:    moderation.New(st.blocks, st.reports, st.matches, led, log),
		auth:          authMgr,
		hub:           hub,
		log:           log.Named("api"),
		retryDelay:    retryDelay,
		now:           time.Now,
	}
}

// registerService registers the Resonance service on the given gRPC server.
func registerService(s *grpc.Server, srv *Server) {
	v1.RegisterResonanceServer(s, srv)
}

// caller returns the authenticated user id.
func caller(ctx context.Context) (string, error) {
	claims, ok := getClaimsFromContext(ctx)
	if !ok || claims.UserID == "" {
		return "", status.Errorf(codes.Unauthenticated, "missing auth claims")
	}
	return claims.UserID, nil
}

// toStatus maps domain errors onto gRPC codes. Anything unexpected is logged
// and reported as Internal without detail.
func (s *Server) toStatus(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, ledger.ErrSelfMatch),
		errors.Is(err, ledger.ErrBlankUser),
		errors.Is(err, moderation.ErrSelfBlock),
		errors.Is(err, moderation.ErrBlankUser),
		errors.Is(err, moderation.ErrBlankReason),
		errors.Is(err, chat.ErrEmptyMessage):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, ledger.ErrMatchNotFound),
		errors.Is(err, chat.ErrChatNotFound),
		errors.Is(err, data.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, ledger.ErrNotParticipant),
		errors.Is(err, chat.ErrNotParticipant):
		return status.Error(codes.PermissionDenied, err.Error())
	case errors.Is(err, data.ErrUserExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	}
	s.log.Error(op+" failed", zap.Error(err))
	return status.Errorf(codes.Internal, "%s failed", op)
}

// participant loads a match and checks userID is on it.
func (s *Server) participant(ctx context.Context, matchID, userID string) (*data.Match, error) {
	m, err := s.ledger.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if _, ok := m.RoleOf(userID); !ok {
		return nil, ledger.ErrNotParticipant
	}
	return m, nil
}

// setPresence is the hub's presence hook.
func (s *Server) setPresence(userID string, online bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.users.SetOnline(ctx, userID, online, s.now()); err != nil {
		s.log.Warn("update presence failed", zap.String("user_id", userID), zap.Bool("online", online), zap.Error(err))
	}
}
