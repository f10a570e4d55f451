// Package ledger records what every request actually cost. Records are
// append-only facts; a per-period running total backs fast quota checks.
package ledger

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Record is one append-only usage fact. Created exactly once per completed
// request; cache hits are recorded with zero credits for observability.
type Record struct {
	ID        string
	Identity  string
	PeriodID  string
	Feature   string
	Credits   int64
	TokensIn  int
	TokensOut int
	Model     string
	CachedHit bool
	CreatedAt time.Time
}

// Period is one billing window for an identity. End is exclusive; windows
// for the same identity never overlap.
type Period struct {
	ID          string
	Identity    string
	Start       time.Time
	End         time.Time
	CreditsUsed int64
}

// Store is the persistent backing. AppendRecord must insert the record and
// bump the period running total in one atomic transaction.
type Store interface {
	CurrentPeriodUsage(ctx context.Context, identity string) (int64, error)
	AppendRecord(ctx context.Context, rec *Record) error
	ListRecords(ctx context.Context, identity string, from, to time.Time) ([]*Record, error)
}

const (
	appendAttempts     = 3
	appendRetryInitial = 50 * time.Millisecond
	appendRetryMax     = 2 * time.Second
)

// Ledger wraps a Store with the write-reliability policy: bounded retry,
// then hand-off to the reconciler. By the time Append runs the provider
// has already been paid, so a failed write is a reconciliation event for
// operators, never an error for the caller.
type Ledger struct {
	store      Store
	reconciler *Reconciler
	logger     *zap.Logger
}

func New(store Store, reconciler *Reconciler, logger *zap.Logger) *Ledger {
	return &Ledger{store: store, reconciler: reconciler, logger: logger}
}

// CurrentPeriodUsage returns the running credit total for the identity's
// active billing period, opening the period lazily on first access.
func (l *Ledger) CurrentPeriodUsage(ctx context.Context, identity string) (int64, error) {
	return l.store.CurrentPeriodUsage(ctx, identity)
}

// Append persists a usage record, retrying transient store failures. On
// exhaustion the record is queued for reconciliation and alerted on.
func (l *Ledger) Append(ctx context.Context, rec *Record) {
	op := func() (struct{}, error) {
		return struct{}{}, l.store.AppendRecord(ctx, rec)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = appendRetryInitial
	bo.MaxInterval = appendRetryMax

	_, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(appendAttempts),
	)
	if err == nil {
		return
	}

	l.logger.Error("usage record write failed, queued for reconciliation",
		zap.String("identity", rec.Identity),
		zap.String("feature", rec.Feature),
		zap.Int64("credits", rec.Credits),
		zap.Error(err),
	)
	l.reconciler.Enqueue(rec)
}

// Records lists raw usage records for reporting.
func (l *Ledger) Records(ctx context.Context, identity string, from, to time.Time) ([]*Record, error) {
	return l.store.ListRecords(ctx, identity, from, to)
}
