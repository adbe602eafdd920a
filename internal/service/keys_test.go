package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/crusont/crusont/internal/model"
	"github.com/crusont/crusont/internal/store"
)

func newTestServices(t *testing.T) (*store.Store, *KeyService, *AuthService) {
	t.Helper()
	st, err := store.New("") // in-memory SQLite
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return st, NewKeyService(st, logger), NewAuthService(st, "test-secret", 0, logger)
}

func newTestUser(t *testing.T, st *store.Store) *model.User {
	t.Helper()
	u := &model.User{}
	if err := st.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func TestCreateKey(t *testing.T) {
	st, keys, _ := newTestServices(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	created, err := keys.CreateKey(ctx, user, "CI pipeline")
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	if !strings.HasPrefix(created.Plaintext, "cr-") {
		t.Errorf("secret %q should start with cr-", created.Plaintext)
	}
	if len(created.Plaintext) != len("cr-")+32 {
		t.Errorf("secret length = %d, want %d", len(created.Plaintext), len("cr-")+32)
	}
	if created.Key.KeyHash == created.Plaintext {
		t.Error("plaintext must not be stored as the hash")
	}
	if created.Key.KeyHash != store.HashAPIKey(created.Plaintext) {
		t.Error("stored hash does not match the plaintext")
	}
	if !strings.HasPrefix(created.Plaintext, created.Key.KeyPrefix) {
		t.Errorf("prefix %q is not a prefix of the secret", created.Key.KeyPrefix)
	}
	if created.Key.LastUsed != nil {
		t.Error("new key should have nil LastUsed")
	}
}

func TestCreateKey_EmptyName(t *testing.T) {
	st, keys, _ := newTestServices(t)
	user := newTestUser(t, st)

	for _, name := range []string{"", "   ", "\t\n"} {
		if _, err := keys.CreateKey(context.Background(), user, name); !errors.Is(err, ErrValidation) {
			t.Errorf("CreateKey(%q) = %v, want ErrValidation", name, err)
		}
	}
}

func TestCreateKey_DistinctSecrets(t *testing.T) {
	st, keys, _ := newTestServices(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		created, err := keys.CreateKey(ctx, user, "bulk")
		if err != nil {
			t.Fatalf("CreateKey #%d: %v", i, err)
		}
		if seen[created.Plaintext] {
			t.Fatalf("duplicate secret issued: %s", created.Plaintext)
		}
		seen[created.Plaintext] = true
	}
}

func TestGenerateSecret_Distinct(t *testing.T) {
	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		s, err := generateSecret()
		if err != nil {
			t.Fatalf("generateSecret: %v", err)
		}
		if seen[s] {
			t.Fatalf("collision after %d secrets", i)
		}
		seen[s] = true
	}
}

func TestListKeys_OrderAndOwnership(t *testing.T) {
	st, keys, _ := newTestServices(t)
	alice := newTestUser(t, st)
	bob := newTestUser(t, st)
	ctx := context.Background()

	first, _ := keys.CreateKey(ctx, alice, "first")
	second, _ := keys.CreateKey(ctx, alice, "second")
	keys.CreateKey(ctx, bob, "bobs")

	list, err := keys.ListKeys(ctx, alice)
	if err != nil {
		t.Fatalf("ListKeys: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("got %d keys, want 2", len(list))
	}
	if list[0].ID != first.Key.ID || list[1].ID != second.Key.ID {
		t.Error("keys not returned oldest first")
	}
}

func TestDeleteKey(t *testing.T) {
	st, keys, _ := newTestServices(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	created, _ := keys.CreateKey(ctx, user, "doomed")

	if err := keys.DeleteKey(ctx, user, created.Key.ID); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}

	// Delete is not idempotent: the second attempt reports NotFound.
	if err := keys.DeleteKey(ctx, user, created.Key.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeleteKey = %v, want ErrNotFound", err)
	}

	list, _ := keys.ListKeys(ctx, user)
	if len(list) != 0 {
		t.Errorf("expected no keys after delete, got %d", len(list))
	}
}

func TestDeleteKey_OtherOwner(t *testing.T) {
	st, keys, _ := newTestServices(t)
	alice := newTestUser(t, st)
	bob := newTestUser(t, st)
	ctx := context.Background()

	created, _ := keys.CreateKey(ctx, alice, "alices")

	if err := keys.DeleteKey(ctx, bob, created.Key.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("DeleteKey by non-owner = %v, want ErrForbidden", err)
	}

	// The key must survive the attempt.
	list, _ := keys.ListKeys(ctx, alice)
	if len(list) != 1 {
		t.Errorf("alice should still have her key")
	}
}

func TestDeleteKey_Unknown(t *testing.T) {
	st, keys, _ := newTestServices(t)
	user := newTestUser(t, st)

	err := keys.DeleteKey(context.Background(), user, "018f0000-0000-7000-8000-000000000000")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("DeleteKey unknown id = %v, want ErrNotFound", err)
	}
}
