package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	v1 "github.com/PaulBabatuyi/resonance/api/v1"
	"github.com/PaulBabatuyi/resonance/internal/auth"
	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/ledger"
	"github.com/PaulBabatuyi/resonance/internal/memstore"
)

type apiFixture struct {
	store *memstore.Store
	srv   *Server
	jwt   *auth.JWTManager
}

func newAPIFixture(t *testing.T, opts ...memstore.Option) *apiFixture {
	t.Helper()
	store := memstore.New(opts...)
	jwtMgr := auth.NewJWTManager("test-secret", time.Hour)
	hub := NewConnectionHub()
	srv := newServer(memoryStores(store), nil, jwtMgr, hub, zap.NewNop(), 10*time.Millisecond)
	hub.presence = srv.setPresence
	return &apiFixture{store: store, srv: srv, jwt: jwtMgr}
}

// as returns a context authenticated as userID.
func as(userID string) context.Context {
	return auth.WithClaims(context.Background(), &auth.Claims{UserID: userID})
}

func (f *apiFixture) register(t *testing.T, email string) string {
	t.Helper()
	resp, err := f.srv.Register(context.Background(), &v1.RegisterRequest{Email: email, Password: "testPass123"})
	require.NoError(t, err)
	return resp.UserID
}

func (f *apiFixture) listen(t *testing.T, userID, trackID string) {
	t.Helper()
	_, err := f.srv.PublishListening(as(userID), &v1.PublishListeningRequest{
		Track:     v1.Track{TrackID: trackID, TrackName: "song " + trackID, ArtistID: "a1", ArtistName: "artist"},
		IsPlaying: true,
	})
	require.NoError(t, err)
}

func code(err error) codes.Code { return status.Code(err) }

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	reg, err := f.srv.Register(ctx, &v1.RegisterRequest{Email: " Ana@Example.com ", Password: "testPass123"})
	require.NoError(t, err)
	claims, err := f.jwt.VerifyToken(reg.Token)
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, claims.UserID)
	assert.Equal(t, "ana@example.com", claims.Email)

	profile, err := f.srv.GetProfile(as(reg.UserID), &v1.UserRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ana", profile.Name, "name defaults to the email local part")

	_, err = f.srv.Register(ctx, &v1.RegisterRequest{Email: "ana@example.com", Password: "otherPass123"})
	assert.Equal(t, codes.AlreadyExists, code(err))
	_, err = f.srv.Register(ctx, &v1.RegisterRequest{Email: "bob@example.com", Password: "short"})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = f.srv.Register(ctx, &v1.RegisterRequest{Email: "not-an-email", Password: "testPass123"})
	assert.Equal(t, codes.InvalidArgument, code(err))

	login, err := f.srv.Login(ctx, &v1.LoginRequest{Email: "ANA@example.com", Password: "testPass123"})
	require.NoError(t, err)
	assert.Equal(t, reg.UserID, login.UserID)
	assert.NotEmpty(t, login.Token)

	_, err = f.srv.Login(ctx, &v1.LoginRequest{Email: "ana@example.com", Password: "wrong-password"})
	assert.Equal(t, codes.PermissionDenied, code(err))
	_, err = f.srv.Login(ctx, &v1.LoginRequest{Email: "ghost@example.com", Password: "testPass123"})
	assert.Equal(t, codes.PermissionDenied, code(err))
}

func TestProfileUpdate(t *testing.T) {
	f := newAPIFixture(t)
	u1 := f.register(t, "u1@example.com")
	u2 := f.register(t, "u2@example.com")

	p, err := f.srv.UpdateProfile(as(u1), &v1.UpdateProfileRequest{Name: " Ana ", Bio: "vinyl", FavoriteGenres: []string{"jazz"}})
	require.NoError(t, err)
	assert.Equal(t, "Ana", p.Name)
	assert.Equal(t, []string{"jazz"}, p.FavoriteGenres)

	_, err = f.srv.UpdateProfile(as(u1), &v1.UpdateProfileRequest{Name: "  "})
	assert.Equal(t, codes.InvalidArgument, code(err))

	other, err := f.srv.GetProfile(as(u2), &v1.UserRequest{UserID: u1})
	require.NoError(t, err)
	assert.Equal(t, "Ana", other.Name)
	assert.Empty(t, other.Email, "email is only shown to its owner")
}

func TestCreateMatchValidation(t *testing.T) {
	f := newAPIFixture(t)
	u1 := f.register(t, "u1@example.com")
	u2 := f.register(t, "u2@example.com")

	_, err := f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u1})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: " "})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: "ghost"})
	assert.Equal(t, codes.NotFound, code(err))
	_, err = f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u2})
	assert.Equal(t, codes.FailedPrecondition, code(err), "no track and not listening")

	f.listen(t, u1, "t1")
	resp, err := f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u2})
	require.NoError(t, err)
	assert.Equal(t, string(ledger.Created), resp.Outcome)
	assert.Equal(t, "song t1", resp.Match.TrackName)
	assert.True(t, resp.Match.User1Accepted)

	again, err := f.srv.CreateMatch(as(u2), &v1.CreateMatchRequest{TargetUserID: u1, Track: &v1.Track{TrackName: "other"}})
	require.NoError(t, err)
	assert.Equal(t, string(ledger.AlreadyExists), again.Outcome)
	assert.Equal(t, resp.Match.ID, again.Match.ID)
}

func TestMatchLifecycle(t *testing.T) {
	f := newAPIFixture(t)
	u1 := f.register(t, "u1@example.com")
	u2 := f.register(t, "u2@example.com")
	outsider := f.register(t, "u3@example.com")

	created, err := f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u2, Track: &v1.Track{TrackName: "song A"}})
	require.NoError(t, err)
	matchID := created.Match.ID

	_, err = f.srv.AcceptMatch(as(outsider), &v1.MatchIDRequest{MatchID: matchID})
	assert.Equal(t, codes.PermissionDenied, code(err))
	_, err = f.srv.DeclineMatch(as(outsider), &v1.MatchIDRequest{MatchID: matchID})
	assert.Equal(t, codes.PermissionDenied, code(err))
	_, err = f.srv.AcceptMatch(as(u2), &v1.MatchIDRequest{MatchID: "missing"})
	assert.Equal(t, codes.NotFound, code(err))

	accepted, err := f.srv.AcceptMatch(as(u2), &v1.MatchIDRequest{MatchID: matchID})
	require.NoError(t, err)
	assert.Equal(t, string(ledger.Accepted), accepted.Outcome)
	chatID := accepted.Match.ChatID
	require.NotEmpty(t, chatID)

	msg, err := f.srv.SendMessage(as(u1), &v1.SendMessageRequest{ChatID: chatID, Text: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", msg.Text)
	_, err = f.srv.SendMessage(as(u1), &v1.SendMessageRequest{ChatID: chatID, Text: "   "})
	assert.Equal(t, codes.InvalidArgument, code(err))
	_, err = f.srv.SendMessage(as(outsider), &v1.SendMessageRequest{ChatID: chatID, Text: "hey"})
	assert.Equal(t, codes.PermissionDenied, code(err))

	hist, err := f.srv.GetHistory(as(u2), &v1.GetHistoryRequest{ChatID: chatID})
	require.NoError(t, err)
	require.Len(t, hist.Messages, 1)
	assert.Equal(t, u1, hist.Messages[0].SenderID)
	_, err = f.srv.GetHistory(as(outsider), &v1.GetHistoryRequest{ChatID: chatID})
	assert.Equal(t, codes.PermissionDenied, code(err))

	_, err = f.srv.Unmatch(as(outsider), &v1.MatchIDRequest{MatchID: matchID})
	assert.Equal(t, codes.PermissionDenied, code(err))
	_, err = f.srv.Unmatch(as(u2), &v1.MatchIDRequest{MatchID: matchID})
	require.NoError(t, err)
	assert.Zero(t, f.store.Messages().CountByChat(chatID))
	_, err = f.srv.GetHistory(as(u1), &v1.GetHistoryRequest{ChatID: chatID})
	assert.Equal(t, codes.NotFound, code(err))

	// both are benign once the match is gone
	_, err = f.srv.Unmatch(as(u1), &v1.MatchIDRequest{MatchID: matchID})
	assert.NoError(t, err)
	declined, err := f.srv.DeclineMatch(as(u1), &v1.MatchIDRequest{MatchID: matchID})
	require.NoError(t, err)
	assert.Equal(t, string(ledger.AlreadyGone), declined.Outcome)
}

func TestDeclinePendingMatch(t *testing.T) {
	f := newAPIFixture(t)
	u1 := f.register(t, "u1@example.com")
	u2 := f.register(t, "u2@example.com")

	created, err := f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u2, Track: &v1.Track{TrackName: "song A"}})
	require.NoError(t, err)

	resp, err := f.srv.DeclineMatch(as(u2), &v1.MatchIDRequest{MatchID: created.Match.ID})
	require.NoError(t, err)
	assert.Equal(t, string(ledger.Declined), resp.Outcome)
	assert.Zero(t, f.store.Matches().Count())
}

func TestBlockHidesUsers(t *testing.T) {
	f := newAPIFixture(t)
	u1 := f.register(t, "u1@example.com")
	u2 := f.register(t, "u2@example.com")

	created, err := f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u2, Track: &v1.Track{TrackName: "song A"}})
	require.NoError(t, err)
	_, err = f.srv.AcceptMatch(as(u2), &v1.MatchIDRequest{MatchID: created.Match.ID})
	require.NoError(t, err)

	_, err = f.srv.BlockUser(as(u2), &v1.UserRequest{UserID: u1})
	require.NoError(t, err)
	assert.Zero(t, f.store.Matches().Count())
	assert.Zero(t, f.store.Chats().Count())

	_, err = f.srv.GetProfile(as(u1), &v1.UserRequest{UserID: u2})
	assert.Equal(t, codes.NotFound, code(err), "blocked users look absent to each other")
	_, err = f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u2, Track: &v1.Track{TrackName: "song A"}})
	assert.Equal(t, codes.NotFound, code(err))

	blocked, err := f.srv.ListBlocked(as(u2), &v1.Empty{})
	require.NoError(t, err)
	assert.Equal(t, []string{u1}, blocked.UserIDs)

	_, err = f.srv.BlockUser(as(u2), &v1.UserRequest{UserID: u2})
	assert.Equal(t, codes.InvalidArgument, code(err))

	_, err = f.srv.UnblockUser(as(u2), &v1.UserRequest{UserID: u1})
	require.NoError(t, err)
	_, err = f.srv.GetProfile(as(u1), &v1.UserRequest{UserID: u2})
	assert.NoError(t, err)
}

func TestReportUser(t *testing.T) {
	f := newAPIFixture(t)
	u1 := f.register(t, "u1@example.com")
	u2 := f.register(t, "u2@example.com")

	resp, err := f.srv.ReportUser(as(u1), &v1.ReportUserRequest{UserID: u2, Reason: "spam", Details: "links"})
	require.NoError(t, err)
	assert.Equal(t, "pending", resp.Status)
	assert.NotEmpty(t, resp.ReportID)

	_, err = f.srv.ReportUser(as(u1), &v1.ReportUserRequest{UserID: u2, Reason: " "})
	assert.Equal(t, codes.InvalidArgument, code(err))
	assert.Len(t, f.store.Reports().All(), 1)
}

func TestNotificationsListAndMarkRead(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()
	now := time.Now()
	for i, id := range []string{"n1", "n2", "n3"} {
		require.NoError(t, f.store.Notifications().Insert(ctx, &data.Notification{
			ID: id, RecipientID: "u1", Kind: data.KindNewMessage, Title: "Ana", Body: "hi",
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	list, err := f.srv.ListNotifications(as("u1"), &v1.ListNotificationsRequest{Limit: 2})
	require.NoError(t, err)
	require.Len(t, list.Notifications, 2)
	assert.Equal(t, "n3", list.Notifications[0].ID, "newest first")

	_, err = f.srv.MarkNotificationRead(as("u1"), &v1.NotificationIDRequest{ID: "n3"})
	require.NoError(t, err)
	_, err = f.srv.MarkNotificationRead(as("u2"), &v1.NotificationIDRequest{ID: "n2"})
	assert.Equal(t, codes.NotFound, code(err), "cannot touch someone else's notification")

	list, err = f.srv.ListNotifications(as("u1"), &v1.ListNotificationsRequest{})
	require.NoError(t, err)
	require.Len(t, list.Notifications, 3)
	assert.True(t, list.Notifications[0].IsRead)
	assert.False(t, list.Notifications[1].IsRead)
}

func TestStopListening(t *testing.T) {
	f := newAPIFixture(t)
	u1 := f.register(t, "u1@example.com")

	_, err := f.srv.PublishListening(as(u1), &v1.PublishListeningRequest{})
	assert.Equal(t, codes.InvalidArgument, code(err))

	f.listen(t, u1, "t1")
	_, err = f.store.Listening().Get(context.Background(), u1)
	require.NoError(t, err)

	_, err = f.srv.StopListening(as(u1), &v1.Empty{})
	require.NoError(t, err)
	_, err = f.store.Listening().Get(context.Background(), u1)
	assert.ErrorIs(t, err, data.ErrNotFound)
}

func TestUnauthenticatedCaller(t *testing.T) {
	f := newAPIFixture(t)
	_, err := f.srv.CreateMatch(context.Background(), &v1.CreateMatchRequest{TargetUserID: "x"})
	assert.Equal(t, codes.Unauthenticated, code(err))
	_, err = f.srv.SendMessage(context.Background(), &v1.SendMessageRequest{ChatID: "c", Text: "x"})
	assert.Equal(t, codes.Unauthenticated, code(err))
}

func TestToStatus(t *testing.T) {
	f := newAPIFixture(t)
	tests := []struct {
		err  error
		want codes.Code
	}{
		{ledger.ErrSelfMatch, codes.InvalidArgument},
		{ledger.ErrMatchNotFound, codes.NotFound},
		{ledger.ErrNotParticipant, codes.PermissionDenied},
		{data.ErrUserExists, codes.AlreadyExists},
		{context.Canceled, codes.Canceled},
		{status.Error(codes.Aborted, "kept"), codes.Aborted},
		{errors.New("mongo exploded"), codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, code(f.srv.toStatus("op", tt.err)), tt.err.Error())
	}
	st, _ := status.FromError(f.srv.toStatus("op", errors.New("secret detail")))
	assert.NotContains(t, st.Message(), "secret detail")
}

func TestStoreFailureIsInternal(t *testing.T) {
	f := newAPIFixture(t)
	u1 := f.register(t, "u1@example.com")
	u2 := f.register(t, "u2@example.com")

	f.store.Fail("matches.Insert", errors.New("disk full"))
	_, err := f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u2, Track: &v1.Track{TrackName: "song A"}})
	assert.Equal(t, codes.Internal, code(err))

	f.store.Fail("matches.Insert", nil)
	_, err = f.srv.CreateMatch(as(u1), &v1.CreateMatchRequest{TargetUserID: u2, Track: &v1.Track{TrackName: "song A"}})
	assert.NoError(t, err)
}
