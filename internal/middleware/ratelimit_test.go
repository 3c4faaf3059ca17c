package middleware

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/PaulBabatuyi/resonance/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

type dummy struct{ email string }

func (d dummy) GetEmail() string { return d.email }

func TestLimiterStore_AllowAndCleanup(t *testing.T) {
	s := NewLimiterStore(5, 5, time.Hour)
	defer s.Stop()

	key := "test@example.com"
	for i := 0; i < 5; i++ {
		require.True(t, s.Allow(key), "iteration %d", i)
	}
	assert.False(t, s.Allow(key), "burst consumed")
	assert.True(t, s.Allow("other"), "keys are independent")

	s.sweep(time.Now().Add(time.Second))
	s.mu.Lock()
	assert.Empty(t, s.clients)
	s.mu.Unlock()

	// A fresh limiter after cleanup starts with a full burst.
	assert.True(t, s.Allow(key))
	s.Stop()
}

func TestClientKey(t *testing.T) {
	addr := &net.TCPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 4000}
	base := peer.NewContext(context.Background(), &peer.Peer{Addr: addr})
	authed := auth.WithClaims(base, &auth.Claims{UserID: "u1"})

	assert.Equal(t, "email:a@b.com", ClientKey(authed, dummy{email: " A@B.com "}))
	assert.Equal(t, "user:u1", ClientKey(authed, dummy{}))
	assert.Equal(t, "peer:10.0.0.1:4000", ClientKey(base, struct{}{}))
	assert.Equal(t, "unknown", ClientKey(context.Background(), nil))
}

func TestRateLimitUnaryInterceptor(t *testing.T) {
	s := NewLimiterStore(1, 2, time.Hour)
	defer s.Stop()

	limited := map[string]bool{"/resonance.v1.Resonance/SendMessage": true}
	icpt := RateLimitUnaryInterceptor(s, limited)
	ok := func(context.Context, interface{}) (interface{}, error) { return "ok", nil }

	send := &grpc.UnaryServerInfo{FullMethod: "/resonance.v1.Resonance/SendMessage"}
	other := &grpc.UnaryServerInfo{FullMethod: "/resonance.v1.Resonance/GetHistory"}
	u1 := auth.WithClaims(context.Background(), &auth.Claims{UserID: "u1"})
	u2 := auth.WithClaims(context.Background(), &auth.Claims{UserID: "u2"})

	for i := 0; i < 2; i++ {
		_, err := icpt(u1, nil, send, ok)
		require.NoError(t, err)
	}
	_, err := icpt(u1, nil, send, ok)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	_, err = icpt(u2, nil, send, ok)
	assert.NoError(t, err, "other users keep their own budget")

	for i := 0; i < 5; i++ {
		_, err = icpt(u1, nil, other, ok)
		require.NoError(t, err, "unlisted methods are not limited")
	}
}
