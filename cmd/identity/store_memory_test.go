package identity

import (
	"context"
	"testing"

	"gatehouse/cmd/security/password"
)

func TestMemoryStore_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	email := "a@example.com"
	u, err := s.CreateUser(ctx, CreateUserInput{Username: "Alice", Email: &email, PasswordHash: "h"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	ua, err := s.GetUserAuthByUsername(ctx, "alice")
	if err != nil || ua.User.ID != u.ID || ua.PasswordHash != "h" {
		t.Fatalf("GetUserAuthByUsername: %+v, %v", ua, err)
	}
	if _, err := s.GetUserByID(ctx, u.ID); err != nil {
		t.Fatalf("GetUserByID: %v", err)
	}

	if _, err := s.CreateUser(ctx, CreateUserInput{Username: "ALICE", PasswordHash: "h"}); !IsConflict(err) {
		t.Fatalf("expected username conflict, got %v", err)
	}
	other := "A@EXAMPLE.COM"
	if _, err := s.CreateUser(ctx, CreateUserInput{Username: "alice2", Email: &other, PasswordHash: "h"}); !IsConflict(err) {
		t.Fatalf("expected email conflict, got %v", err)
	}

	s.Delete(u.ID)
	if _, err := s.GetUserByID(ctx, u.ID); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if _, err := s.GetUserAuthByUsername(ctx, "alice"); !IsNotFound(err) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestMemoryStore_InvalidInput(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	cases := []CreateUserInput{
		{Username: "", PasswordHash: "h"},
		{Username: "ok", PasswordHash: ""},
		{Username: "ok", Email: strPtr("no-at-sign"), PasswordHash: "h"},
	}
	for i, in := range cases {
		if _, err := s.CreateUser(ctx, in); !IsInvalidInput(err) {
			t.Fatalf("case %d: expected invalid input, got %v", i, err)
		}
	}
	if _, err := s.GetUserAuthByUsername(ctx, "  "); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input for blank username, got %v", err)
	}
}

func TestHashPassword_PolicyMapsToInvalidInput(t *testing.T) {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1

	if _, err := HashPassword(cfg, "short"); !IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	enc, err := HashPassword(cfg, "long enough password")
	if err != nil || enc == "" {
		t.Fatalf("HashPassword: %q %v", enc, err)
	}
}

func strPtr(s string) *string { return &s }
