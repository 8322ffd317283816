package session

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically deletes sessions whose refresh expiry has passed.
// It runs outside the request path; a failed pass is logged and retried on the next tick.
type Sweeper struct {
	store    Store
	interval time.Duration
	timeout  time.Duration
	log      *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewSweeper builds a Sweeper from cfg.SweepInterval and cfg.StoreTimeout.
func NewSweeper(store Store, cfg Config, log *slog.Logger, m *Metrics) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	timeout := cfg.StoreTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		timeout:  timeout,
		log:      log,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps once per interval until ctx is done. It always returns nil.
func (w *Sweeper) Run(ctx context.Context) error {
	w.log.Info("session.sweeper.start", "interval", w.interval.String())
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("session.sweeper.stop")
			return nil
		case <-t.C:
			_, _ = w.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single bounded DeleteExpired pass.
func (w *Sweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	n, err := w.store.DeleteExpired(ctx, w.now())
	w.metrics.sweep(n, err)
	if err != nil {
		w.log.Error("session.sweeper.fail", "err", err)
		return 0, err
	}
	if n > 0 {
		w.log.Info("session.sweeper.deleted", "rows", n)
	}
	return n, nil
}
