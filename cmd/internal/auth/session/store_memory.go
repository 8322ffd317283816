package session

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is a mutex-guarded Store with the same semantics as PostgresStore.
// It backs dev mode and the service tests.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string]*Row // by id
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*Row)}
}

func (s *MemoryStore) byDevice(userID, deviceID string) *Row {
	for _, r := range s.rows {
		if r.UserID == userID && r.DeviceID == deviceID {
			return r
		}
	}
	return nil
}

func (s *MemoryStore) Upsert(_ context.Context, in UpsertInput) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r := s.byDevice(in.UserID, in.DeviceID); r != nil {
		r.AccessTokenHash = in.AccessTokenHash
		r.RefreshTokenHash = in.RefreshTokenHash
		r.AccessExpiresAt = in.AccessExpiresAt
		r.RefreshExpiresAt = in.RefreshExpiresAt
		r.LastRefreshAt = in.Now
		r.RefreshCount++
		r.UserAgent = nullIfEmpty(in.UserAgent)
		r.IP = nullIfEmpty(in.IP)
		return *r, nil
	}

	r := &Row{
		ID:               in.ID,
		UserID:           in.UserID,
		DeviceID:         in.DeviceID,
		AccessTokenHash:  in.AccessTokenHash,
		RefreshTokenHash: in.RefreshTokenHash,
		AccessExpiresAt:  in.AccessExpiresAt,
		RefreshExpiresAt: in.RefreshExpiresAt,
		CreatedAt:        in.Now,
		LastRefreshAt:    in.Now,
		UserAgent:        nullIfEmpty(in.UserAgent),
		IP:               nullIfEmpty(in.IP),
	}
	s.rows[r.ID] = r
	return *r, nil
}

func (s *MemoryStore) FindByRefresh(_ context.Context, refreshHash, deviceID string, now time.Time) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.RefreshTokenHash == refreshHash && r.DeviceID == deviceID && r.RefreshExpiresAt.After(now) {
			return *r, nil
		}
	}
	return Row{}, ErrSessionNotFound
}

func (s *MemoryStore) FindByAccess(_ context.Context, accessHash, deviceID string, now time.Time) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.AccessTokenHash == accessHash && r.DeviceID == deviceID && r.AccessExpiresAt.After(now) {
			return *r, nil
		}
	}
	return Row{}, ErrSessionNotFound
}

func (s *MemoryStore) Rotate(_ context.Context, in RotateInput) (Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.RefreshTokenHash != in.OldRefreshHash || r.DeviceID != in.DeviceID || !r.RefreshExpiresAt.After(in.Now) {
			continue
		}
		r.AccessTokenHash = in.AccessTokenHash
		r.RefreshTokenHash = in.RefreshTokenHash
		r.AccessExpiresAt = in.AccessExpiresAt
		r.RefreshExpiresAt = in.RefreshExpiresAt
		r.LastRefreshAt = in.Now
		r.RefreshCount++
		return *r, nil
	}
	return Row{}, ErrSessionNotFound
}

func (s *MemoryStore) TouchLastCheck(_ context.Context, sessionID string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r, ok := s.rows[sessionID]; ok {
		t := now
		r.LastCheckAt = &t
	}
	return nil
}

func (s *MemoryStore) DeleteByDevice(_ context.Context, userID, deviceID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r := s.byDevice(userID, deviceID); r != nil {
		delete(s.rows, r.ID)
		return 1, nil
	}
	return 0, nil
}

func (s *MemoryStore) DeleteAll(_ context.Context, userID string) (int64, error) {
	return s.deleteWhere(func(r *Row) bool { return r.UserID == userID }), nil
}

func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	return s.deleteWhere(func(r *Row) bool { return !r.RefreshExpiresAt.After(now) }), nil
}

func (s *MemoryStore) deleteWhere(match func(*Row) bool) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.rows {
		if match(r) {
			delete(s.rows, id)
			n++
		}
	}
	return n
}

func (s *MemoryStore) CountActive(_ context.Context, userID string, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.UserID == userID && r.RefreshExpiresAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string, now time.Time) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Row
	for _, r := range s.rows {
		if r.UserID == userID && r.RefreshExpiresAt.After(now) {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Len returns the number of stored rows, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
