// Package moderation implements blocking and reporting. A block severs every
// match and chat between the two users; the BlockList component tells
// consumers which counterparties to hide.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PaulBabatuyi/resonance/internal/data"
	"github.com/PaulBabatuyi/resonance/internal/live"
	"github.com/PaulBabatuyi/resonance/internal/normalize"
)

var (
	// ErrSelfBlock is returned when a user tries to block or report themselves.
	ErrSelfBlock = errors.New("cannot block or report yourself")
	// ErrBlankUser is returned when a user id is empty.
	ErrBlankUser = errors.New("user id is required")
	// ErrBlankReason is returned when a report carries no reason.
	ErrBlankReason = errors.New("report reason is required")
)

// ReportPending is the status every new report starts in.
const ReportPending = "pending"

// BlockStore is the blocked_users collection contract.
type BlockStore interface {
	Insert(ctx context.Context, b *data.BlockRecord) error
	Delete(ctx context.Context, blockerID, blockedID string) (int64, error)
	Exists(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListByBlocker(ctx context.Context, blockerID string) ([]data.BlockRecord, error)
	WatchBy(ctx context.Context, field data.BlockField, userID string) (<-chan live.Snapshot[data.BlockRecord], error)
}

// ReportStore is the reports collection contract.
type ReportStore interface {
	Insert(ctx context.Context, r *data.Report) error
}

// MatchFinder looks up matches by directional pair.
type MatchFinder interface {
	FindByPair(ctx context.Context, user1ID, user2ID string) ([]data.Match, error)
}

// Unmatcher tears a match down together with its chat.
type Unmatcher interface {
	Unmatch(ctx context.Context, m *data.Match) error
}

// Overlay runs block and report operations.
type Overlay struct {
	blocks  BlockStore
	reports ReportStore
	matches MatchFinder
	ledger  Unmatcher
	log     *zap.Logger
	now     func() time.Time
}

// New wires an Overlay.
func New(blocks BlockStore, reports ReportStore, matches MatchFinder, ledger Unmatcher, log *zap.Logger) *Overlay {
	return &Overlay{
		blocks:  blocks,
		reports: reports,
		matches: matches,
		ledger:  ledger,
		log:     log.Named("moderation"),
		now:     time.Now,
	}
}

func pair(a, b string) (string, string, error) {
	a, b = normalize.ID(a), normalize.ID(b)
	if a == "" || b == "" {
		return "", "", ErrBlankUser
	}
	if a == b {
		return "", "", ErrSelfBlock
	}
	return a, b, nil
}

// BlockUser records the block and then severs every match between the two
// users. Only the block write can fail the call; cleanup failures are logged
// and the block still stands.
func (o *Overlay) BlockUser(ctx context.Context, blockerID, blockedID string) error {
	blockerID, blockedID, err := pair(blockerID, blockedID)
	if err != nil {
		return err
	}

	exists, err := o.blocks.Exists(ctx, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("check block: %w", err)
	}
	if !exists {
		err := o.blocks.Insert(ctx, &data.BlockRecord{
			ID:        uuid.NewString(),
			BlockerID: blockerID,
			BlockedID: blockedID,
			CreatedAt: o.now(),
		})
		if err != nil {
			return fmt.Errorf("insert block: %w", err)
		}
	}

	o.log.Info("user blocked", zap.String("blocker_id", blockerID), zap.String("blocked_id", blockedID))

	// each direction on its own so one failing query does not skip the other
	o.sever(ctx, blockerID, blockedID)
	o.sever(ctx, blockedID, blockerID)
	return nil
}

func (o *Overlay) sever(ctx context.Context, user1ID, user2ID string) {
	log := o.log.With(zap.String("user1_id", user1ID), zap.String("user2_id", user2ID))

	found, err := o.matches.FindByPair(ctx, user1ID, user2ID)
	if err != nil {
		log.Error("block cascade: find matches failed", zap.Error(err))
		return
	}
	for i := range found {
		if err := o.ledger.Unmatch(ctx, &found[i]); err != nil {
			log.Error("block cascade: unmatch failed", zap.String("match_id", found[i].ID), zap.Error(err))
		}
	}
}

// UnblockUser removes the block. Removing a block that does not exist is not
// an error.
func (o *Overlay) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	blockerID, blockedID, err := pair(blockerID, blockedID)
	if err != nil {
		return err
	}
	if _, err := o.blocks.Delete(ctx, blockerID, blockedID); err != nil {
		return fmt.Errorf("delete block: %w", err)
	}
	o.log.Info("user unblocked", zap.String("blocker_id", blockerID), zap.String("blocked_id", blockedID))
	return nil
}

// ReportUser appends a report. It has no effect on matches.
func (o *Overlay) ReportUser(ctx context.Context, reporterID, reportedID, reason, details string) (*data.Report, error) {
	reporterID, reportedID, err := pair(reporterID, reportedID)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrBlankReason
	}

	r := &data.Report{
		ID:         uuid.NewString(),
		ReporterID: reporterID,
		ReportedID: reportedID,
		Reason:     reason,
		Context:    strings.TrimSpace(details),
		Status:     ReportPending,
		CreatedAt:  o.now(),
	}
	if err := o.reports.Insert(ctx, r); err != nil {
		return nil, fmt.Errorf("insert report: %w", err)
	}
	o.log.Info("user reported", zap.String("reporter_id", reporterID), zap.String("reported_id", reportedID))
	return r, nil
}

// ListBlocked returns the users blockerID has blocked, newest first.
func (o *Overlay) ListBlocked(ctx context.Context, blockerID string) ([]data.BlockRecord, error) {
	recs, err := o.blocks.ListByBlocker(ctx, normalize.ID(blockerID))
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	return recs, nil
}

// IsBlocked reports whether a block exists between a and b in either direction.
func (o *Overlay) IsBlocked(ctx context.Context, a, b string) (bool, error) {
	a, b = normalize.ID(a), normalize.ID(b)
	for _, p := range [][2]string{{a, b}, {b, a}} {
		ok, err := o.blocks.Exists(ctx, p[0], p[1])
		if err != nil {
			return false, fmt.Errorf("check block: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}
