package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/crusont/crusont/internal/model"
)

func TestAuthenticate(t *testing.T) {
	st, keys, auth := newTestServices(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	created, err := keys.CreateKey(ctx, user, "login key")
	if err != nil {
		t.Fatalf("CreateKey: %v", err)
	}

	id, err := auth.Authenticate(ctx, created.Plaintext)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if id.User.ID != user.ID {
		t.Errorf("authenticated as %s, want %s", id.User.ID, user.ID)
	}
	if id.Key.ID != created.Key.ID {
		t.Errorf("resolved key %s, want %s", id.Key.ID, created.Key.ID)
	}
}

func TestAuthenticate_BadSecrets(t *testing.T) {
	st, keys, auth := newTestServices(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	created, _ := keys.CreateKey(ctx, user, "real")

	cases := map[string]string{
		"empty":        "",
		"never issued": "cr-ffffffffffffffffffffffffffffffff",
		"truncated":    created.Plaintext[:len(created.Plaintext)-1],
		"wrong prefix": "sk-" + created.Plaintext[3:],
	}
	for name, secret := range cases {
		if _, err := auth.Authenticate(ctx, secret); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: Authenticate = %v, want ErrUnauthenticated", name, err)
		}
	}
}

func TestAuthenticate_DeletedKey(t *testing.T) {
	st, keys, auth := newTestServices(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	created, _ := keys.CreateKey(ctx, user, "short lived")

	if _, err := auth.Authenticate(ctx, created.Plaintext); err != nil {
		t.Fatalf("Authenticate before delete: %v", err)
	}

	if err := keys.DeleteKey(ctx, user, created.Key.ID); err != nil {
		t.Fatalf("DeleteKey: %v", err)
	}

	// Indistinguishable from a secret that never existed.
	if _, err := auth.Authenticate(ctx, created.Plaintext); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("Authenticate after delete = %v, want ErrUnauthenticated", err)
	}
}

func TestAuthenticate_BannedUser(t *testing.T) {
	st, keys, auth := newTestServices(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	created, _ := keys.CreateKey(ctx, user, "banned users key")

	if err := st.SetUserBanned(ctx, user.ID, true); err != nil {
		t.Fatalf("SetUserBanned: %v", err)
	}

	if _, err := auth.Authenticate(ctx, created.Plaintext); !errors.Is(err, ErrForbidden) {
		t.Errorf("Authenticate banned = %v, want ErrForbidden", err)
	}

	// Lifting the ban restores access with the same key.
	if err := st.SetUserBanned(ctx, user.ID, false); err != nil {
		t.Fatalf("SetUserBanned: %v", err)
	}
	if _, err := auth.Authenticate(ctx, created.Plaintext); err != nil {
		t.Errorf("Authenticate after unban: %v", err)
	}
}

func TestAuthenticate_TouchesLastUsed(t *testing.T) {
	st, keys, auth := newTestServices(t)
	user := newTestUser(t, st)
	ctx := context.Background()

	created, _ := keys.CreateKey(ctx, user, "touched")

	if _, err := auth.Authenticate(ctx, created.Plaintext); err != nil {
		t.Fatalf("Authenticate: %v", err)
	}

	// The touch runs in the background; poll briefly for it to land.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := st.GetAPIKey(ctx, created.Key.ID)
		if err != nil {
			t.Fatalf("GetAPIKey: %v", err)
		}
		if got.LastUsed != nil {
			if *got.LastUsed <= 0 {
				t.Errorf("LastUsed = %d, want positive epoch seconds", *got.LastUsed)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("last_used was never updated")
}

func TestAdminLoginAndJWT(t *testing.T) {
	st, _, auth := newTestServices(t)
	ctx := context.Background()

	hash, err := HashAdminPassword("supersecretpassword")
	if err != nil {
		t.Fatalf("HashAdminPassword: %v", err)
	}
	admin := &model.Admin{Email: "admin@example.com", PasswordHash: hash, Name: "Admin", IsActive: true}
	if err := st.CreateAdmin(ctx, admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	token, got, err := auth.LoginAdmin(ctx, "admin@example.com", "supersecretpassword")
	if err != nil {
		t.Fatalf("LoginAdmin: %v", err)
	}
	if got.ID != admin.ID {
		t.Errorf("logged in as %s, want %s", got.ID, admin.ID)
	}

	principal, err := auth.ValidateJWT(token)
	if err != nil {
		t.Fatalf("ValidateJWT: %v", err)
	}
	if principal.AdminID != admin.ID || principal.Email != admin.Email {
		t.Errorf("principal = %+v", principal)
	}
}

func TestAdminLogin_Failures(t *testing.T) {
	st, _, auth := newTestServices(t)
	ctx := context.Background()

	hash, _ := HashAdminPassword("supersecretpassword")
	if err := st.CreateAdmin(ctx, &model.Admin{Email: "admin@example.com", PasswordHash: hash, IsActive: true}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	inactiveHash, _ := HashAdminPassword("otherpassword")
	if err := st.CreateAdmin(ctx, &model.Admin{Email: "old@example.com", PasswordHash: inactiveHash, IsActive: false}); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}

	cases := []struct {
		name     string
		email    string
		password string
	}{
		{"wrong password", "admin@example.com", "nope"},
		{"unknown email", "ghost@example.com", "supersecretpassword"},
		{"inactive account", "old@example.com", "otherpassword"},
	}
	for _, tc := range cases {
		if _, _, err := auth.LoginAdmin(ctx, tc.email, tc.password); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("%s: LoginAdmin = %v, want ErrUnauthenticated", tc.name, err)
		}
	}
}

func TestValidateJWT_Garbage(t *testing.T) {
	_, _, auth := newTestServices(t)

	for _, token := range []string{"", "not-a-jwt", "aaa.bbb.ccc"} {
		if _, err := auth.ValidateJWT(token); !errors.Is(err, ErrUnauthenticated) {
			t.Errorf("ValidateJWT(%q) = %v, want ErrUnauthenticated", token, err)
		}
	}
}
