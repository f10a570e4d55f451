package ledger

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	reconcileQueueSize = 1024
	reconcileInterval  = 30 * time.Second
)

// Reconciler holds usage records whose writes exhausted their retries and
// keeps retrying them in the background. Losing a record silently would be
// silent credit loss, which is worse than temporary unavailability.
type Reconciler struct {
	store    Store
	logger   *zap.Logger
	queue    chan *Record
	interval time.Duration
}

func NewReconciler(store Store, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		store:    store,
		logger:   logger,
		queue:    make(chan *Record, reconcileQueueSize),
		interval: reconcileInterval,
	}
}

// Enqueue hands a record to the background loop. A full queue is alerted
// on with the full record so operators can replay it by hand.
func (r *Reconciler) Enqueue(rec *Record) {
	select {
	case r.queue <- rec:
	default:
		r.logger.Error("reconciliation queue full, manual replay required",
			zap.String("identity", rec.Identity),
			zap.String("feature", rec.Feature),
			zap.String("model", rec.Model),
			zap.Int64("credits", rec.Credits),
			zap.Int("tokens_in", rec.TokensIn),
			zap.Int("tokens_out", rec.TokensOut),
		)
	}
}

// Pending reports how many records await reconciliation.
func (r *Reconciler) Pending() int {
	return len(r.queue)
}

// Run retries queued records until ctx is cancelled. Records that still
// fail go back on the queue for the next tick.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.drain(ctx)
		}
	}
}

func (r *Reconciler) drain(ctx context.Context) {
	for n := len(r.queue); n > 0; n-- {
		select {
		case rec := <-r.queue:
			if err := r.store.AppendRecord(ctx, rec); err != nil {
				r.logger.Warn("reconciliation attempt failed",
					zap.String("identity", rec.Identity),
					zap.Error(err),
				)
				r.Enqueue(rec)
				return
			}
			r.logger.Info("usage record reconciled",
				zap.String("identity", rec.Identity),
				zap.Int64("credits", rec.Credits),
			)
		default:
			return
		}
	}
}
