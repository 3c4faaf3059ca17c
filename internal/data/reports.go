package data

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/mongo"
)

// ReportsStore appends moderation reports.
type ReportsStore struct {
	coll *mongo.Collection
}

// NewReportsStore returns a ReportsStore using given collection.
func NewReportsStore(coll *mongo.Collection) *ReportsStore {
	return &ReportsStore{coll: coll}
}

// Insert adds a report.
func (s *ReportsStore) Insert(ctx context.Context, r *Report) error {
	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return translate(err)
	}
	return nil
}
