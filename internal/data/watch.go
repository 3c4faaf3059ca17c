// Package data provides DB models and the MongoDB-backed stores.
package data

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/live"
)

// cursor is the part of *mongo.Cursor the decoder needs.
type cursor interface {
	Next(ctx context.Context) bool
	Decode(val any) error
	Err() error
	Close(ctx context.Context) error
}

// decodeEach decodes every document of cur on its own. A document that does
// not fit T is logged and counted, the rest of the batch is still returned.
func decodeEach[T any](ctx context.Context, cur cursor, log *zap.Logger, coll string) ([]T, int, error) {
	defer func() { _ = cur.Close(ctx) }()

	var (
		items   []T
		skipped int
	)
	for cur.Next(ctx) {
		var v T
		if err := cur.Decode(&v); err != nil {
			skipped++
			log.Warn("skipping malformed document",
				zap.String("collection", coll),
				zap.Error(err))
			continue
		}
		items = append(items, v)
	}
	if err := cur.Err(); err != nil {
		return nil, skipped, err
	}
	return items, skipped, nil
}

// findAll runs a query and decodes the result with decodeEach.
func findAll[T any](ctx context.Context, coll *mongo.Collection, log *zap.Logger, filter any, opts ...options.Lister[options.FindOptions]) ([]T, int, error) {
	cur, err := coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, 0, err
	}
	return decodeEach[T](ctx, cur, log, coll.Name())
}

// watchQuery turns a filtered find into a live query. Any change on the
// collection re-runs the query; the subscriber always gets the complete view.
// The change stream is opened before the first read so no write can slip
// between the initial snapshot and the subscription.
func watchQuery[T any](ctx context.Context, coll *mongo.Collection, log *zap.Logger, filter any, opts ...options.Lister[options.FindOptions]) (<-chan live.Snapshot[T], error) {
	stream, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", coll.Name(), err)
	}

	changes := live.NewNotifier()
	failures := make(chan error, 1)

	go func() {
		defer func() { _ = stream.Close(context.Background()) }()
		for stream.Next(ctx) {
			changes.Signal()
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			failures <- fmt.Errorf("change stream on %s: %w", coll.Name(), err)
		}
	}()

	load := func(ctx context.Context) live.Snapshot[T] {
		items, skipped, err := findAll[T](ctx, coll, log, filter, opts...)
		if err != nil {
			return live.Failed[T](fmt.Errorf("query %s: %w", coll.Name(), err))
		}
		return live.Snapshot[T]{Items: items, Skipped: skipped, At: time.Now()}
	}

	return live.Pump(ctx, changes.C(), failures, load), nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}
