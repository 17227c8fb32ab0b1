package session

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Reaper periodically evicts sessions that have gone quiet and clears
// pending-generation markers left behind by abandoned requests. It is a
// safety net against unbounded memory growth; correctness does not
// depend on it.
type Reaper struct {
	Store          Store
	SessionTimeout time.Duration // sessions idle longer than this are removed
	PendingTimeout time.Duration // pending markers older than this are cleared
	Interval       time.Duration
	Log            *logrus.Logger

	// Now is injectable for tests; defaults to time.Now.
	Now func() time.Time
}

// Run blocks, sweeping on every tick until ctx is canceled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep pass.
func (r *Reaper) RunOnce(ctx context.Context) {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}

	expired, err := r.Store.SweepExpired(ctx, now, r.SessionTimeout)
	if err != nil {
		r.Log.WithError(err).Warn("session sweep failed")
	}
	pending, err := r.Store.SweepPending(ctx, now, r.PendingTimeout)
	if err != nil {
		r.Log.WithError(err).Warn("pending sweep failed")
	}

	if expired > 0 || pending > 0 {
		r.Log.WithFields(logrus.Fields{
			"sessions_removed": expired,
			"pending_cleared":  pending,
		}).Info("reaper sweep")
	}
}
