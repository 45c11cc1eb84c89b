package bootstrap

import (
	"context"
	"time"

	"github.com/ledgerflow/paymentcore/common"
	"github.com/ledgerflow/paymentcore/common/mlog"
	"github.com/ledgerflow/paymentcore/internal/adapters/postgres/idempotency"
)

// IdempotencyGC periodically prunes expired idempotency keys. It is
// modeled directly on the outbox dispatcher's own poll-loop shape: a
// ticker-driven loop registered on the Launcher as a common.App.
type IdempotencyGC struct {
	Repo     idempotency.Repository
	Interval time.Duration
	Logger   mlog.Logger

	stopCh chan struct{}
}

// NewIdempotencyGC builds an IdempotencyGC. A zero or negative interval
// falls back to one hour.
func NewIdempotencyGC(repo idempotency.Repository, interval time.Duration, logger mlog.Logger) *IdempotencyGC {
	if interval <= 0 {
		interval = time.Hour
	}

	return &IdempotencyGC{Repo: repo, Interval: interval, Logger: logger, stopCh: make(chan struct{})}
}

// Run implements common.App.
func (g *IdempotencyGC) Run(_ *common.Launcher) error {
	return g.Start(context.Background())
}

// Start runs the prune loop until ctx is cancelled or Stop is called.
func (g *IdempotencyGC) Start(ctx context.Context) error {
	g.Logger.Infof("idempotency gc starting: interval=%s", g.Interval)

	ticker := time.NewTicker(g.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-g.stopCh:
			return nil
		case <-ticker.C:
		}

		count, err := g.Repo.DeleteExpired(ctx, time.Now().UTC())
		if err != nil {
			g.Logger.Errorf("idempotency gc: delete expired: %v", err)
			continue
		}

		if count > 0 {
			g.Logger.Infof("idempotency gc: pruned %d expired key(s)", count)
		}
	}
}

// Stop requests the loop exit at its next tick boundary. Idempotent.
func (g *IdempotencyGC) Stop() {
	select {
	case <-g.stopCh:
	default:
		close(g.stopCh)
	}
}
