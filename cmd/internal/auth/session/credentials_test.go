package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"gatehouse/cmd/identity"
)

type failingUsers struct{ identity.Store }

func (failingUsers) GetUserAuthByUsername(context.Context, string) (identity.UserAuth, error) {
	return identity.UserAuth{}, errors.New("connection reset")
}

func TestCredentialVerifier(t *testing.T) {
	users := identity.NewMemoryStore()
	pw := testPasswordConfig()
	h, err := pw.Hash("p1-correct-horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	alice, err := users.CreateUser(context.Background(), identity.CreateUserInput{Username: "Alice", PasswordHash: h})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	v := NewCredentialVerifier(users, pw, time.Second)

	u, err := v.Verify(context.Background(), " alice ", "p1-correct-horse")
	if err != nil || u.ID != alice.ID {
		t.Fatalf("expected alice, got %+v err=%v", u, err)
	}
	if _, err := v.Verify(context.Background(), "alice", "nope-nope-nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := v.Verify(context.Background(), "nobody", "p1-correct-horse"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := v.Verify(context.Background(), "", "x"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	broken := NewCredentialVerifier(failingUsers{Store: users}, pw, time.Second)
	_, err = broken.Verify(context.Background(), "alice", "p1-correct-horse")
	if err == nil || errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("store failure must not look like an auth miss, got %v", err)
	}
}
