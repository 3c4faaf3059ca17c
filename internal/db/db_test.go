package db

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// These tests are integration tests and require a running MongoDB replica set.
// Set MONGODB_URI in the environment before running them.

func TestNewAndCreateIndexes(t *testing.T) {
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx := context.Background()
	c, err := New(ctx, uri, "resonance_db_test")
	require.NoError(t, err)
	defer func() {
		_ = c.DropAll(context.Background())
		_ = c.Close(context.Background())
	}()

	require.NoError(t, c.CreateIndexes(ctx, false))

	// strict mode upgrades the pair index; drop first so the options differ cleanly
	require.NoError(t, c.DropAll(ctx))
	require.NoError(t, c.CreateIndexes(ctx, true))

	// quick sanity sleep to allow DB to finalize
	time.Sleep(100 * time.Millisecond)
}

func TestNewFailsFast(t *testing.T) {
	if os.Getenv("MONGODB_URI") == "" {
		t.Skip("MONGODB_URI not set; skipping integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	_, err := New(ctx, "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200", "")
	require.Error(t, err)
}
