package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSweeper_SweepOnce(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := context.Background()

	for i, exp := range []time.Time{now.Add(-time.Hour), now.Add(-time.Second), now.Add(time.Hour)} {
		_, err := store.Upsert(ctx, UpsertInput{
			ID:               string(rune('a' + i)),
			UserID:           "u1",
			DeviceID:         string(rune('A' + i)),
			AccessTokenHash:  string(rune('x' + i)),
			RefreshTokenHash: string(rune('X' + i)),
			AccessExpiresAt:  exp,
			RefreshExpiresAt: exp,
			Now:              now.Add(-2 * time.Hour),
		})
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	w := NewSweeper(store, DefaultConfig(), nil, m)
	w.now = func() time.Time { return now }

	n, err := w.SweepOnce(ctx)
	if err != nil {
		t.Fatalf("SweepOnce: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows swept, got %d", n)
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 row left, got %d", store.Len())
	}
	if got := testutil.ToFloat64(m.swept); got != 2 {
		t.Fatalf("expected swept counter 2, got %v", got)
	}
}

type failingSweepStore struct{ Store }

func (failingSweepStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, errors.New("boom")
}

func TestSweeper_Failure(t *testing.T) {
	w := NewSweeper(failingSweepStore{Store: NewMemoryStore()}, DefaultConfig(), nil, nil)
	if _, err := w.SweepOnce(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = 5 * time.Millisecond
	w := NewSweeper(NewMemoryStore(), cfg, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop")
	}
}
