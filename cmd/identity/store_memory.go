package identity

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is an in-process Store for dev mode and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byID   map[string]UserAuth
	byName map[string]string
	byMail map[string]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:   make(map[string]UserAuth),
		byName: make(map[string]string),
		byMail: make(map[string]string),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, in CreateUserInput) (User, error) {
	const op = "identity.CreateUser"

	u, err := prepareUser(op, in)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byName[u.UsernameNorm]; ok {
		return User{}, ConflictError{Op: op, Field: "username"}
	}
	var mailKey string
	if u.Email != nil {
		mailKey = NormalizeEmail(*u.Email)
		if _, ok := s.byMail[mailKey]; ok {
			return User{}, ConflictError{Op: op, Field: "email"}
		}
		s.byMail[mailKey] = u.ID
	}
	s.byID[u.ID] = UserAuth{User: u, PasswordHash: in.PasswordHash}
	s.byName[u.UsernameNorm] = u.ID
	return u, nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (User, error) {
	const op = "identity.GetUserByID"

	id = strings.TrimSpace(id)
	if id == "" {
		return User{}, invalidInput(op, "missing user_id")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ua, ok := s.byID[id]
	if !ok {
		return User{}, userNotFound(op)
	}
	return ua.User, nil
}

func (s *MemoryStore) GetUserAuthByUsername(_ context.Context, username string) (UserAuth, error) {
	const op = "identity.GetUserAuthByUsername"

	norm := NormalizeUsername(username)
	if norm == "" {
		return UserAuth{}, invalidInput(op, "missing username")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[norm]
	if !ok {
		return UserAuth{}, userNotFound(op)
	}
	return s.byID[id], nil
}

// Delete removes a user. Used by tests to simulate a user vanishing under a live session.
func (s *MemoryStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ua, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byName, ua.User.UsernameNorm)
	if ua.User.Email != nil {
		delete(s.byMail, NormalizeEmail(*ua.User.Email))
	}
	delete(s.byID, id)
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
