package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crusont/crusont/internal/model"
	"github.com/crusont/crusont/internal/store"
)

// Key secrets are "cr-" followed by 32 hex chars: 16 bytes of
// crypto/rand entropy, 128 bits. The prefix kept for identification is
// "cr-" plus the first 8 hex chars.
const (
	secretPrefix     = "cr-"
	secretRandBytes  = 16
	visiblePrefixLen = len(secretPrefix) + 8

	// Retries on a stored-hash collision. With 128-bit secrets a single
	// collision is already astronomically unlikely; hitting the retry
	// limit means something is broken, not unlucky.
	maxGenerateAttempts = 3
)

// CreatedKey pairs a new key record with its plaintext secret. The
// secret exists only in this value: it is returned to the caller once
// and is not recoverable afterwards.
type CreatedKey struct {
	Key       *model.APIKey
	Plaintext string
}

// KeyService implements the API key lifecycle: create, list, delete,
// all scoped to the owning user.
type KeyService struct {
	store  *store.Store
	logger *slog.Logger
}

// NewKeyService creates a KeyService.
func NewKeyService(st *store.Store, logger *slog.Logger) *KeyService {
	return &KeyService{store: st, logger: logger}
}

// ListKeys returns all keys owned by the user, oldest first. The order
// is stable so clients can paginate over it later without re-sorting.
func (s *KeyService) ListKeys(ctx context.Context, user *model.User) ([]model.APIKey, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	keys, err := s.store.ListAPIKeysByUser(ctx, user.ID)
	if err != nil {
		return nil, unavailable("list api keys", err)
	}
	return keys, nil
}

// CreateKey generates a fresh secret, persists its hash, and returns
// the record together with the plaintext — the only time the plaintext
// is ever available. The name must be non-empty after trimming.
//
// A hash collision on insert is retried with a new secret and never
// surfaced; the UNIQUE constraint also guarantees a secret can never
// collide with one issued before, so a deleted key's privileges cannot
// be resurrected by chance.
func (s *KeyService) CreateKey(ctx context.Context, user *model.User, name string) (*CreatedKey, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: key name must not be empty", ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	for attempt := 0; attempt < maxGenerateAttempts; attempt++ {
		plaintext, err := generateSecret()
		if err != nil {
			return nil, unavailable("generate secret", err)
		}

		key := &model.APIKey{
			UserID:    user.ID,
			Name:      name,
			KeyHash:   store.HashAPIKey(plaintext),
			KeyPrefix: plaintext[:visiblePrefixLen],
		}

		err = s.store.CreateAPIKey(ctx, key)
		if err == nil {
			return &CreatedKey{Key: key, Plaintext: plaintext}, nil
		}
		if errors.Is(err, store.ErrDuplicate) {
			s.logger.Warn("api key hash collision, regenerating", "attempt", attempt+1)
			continue
		}
		return nil, unavailable("persist api key", err)
	}

	return nil, unavailable("persist api key", errors.New("exhausted secret generation attempts"))
}

// DeleteKey permanently removes a key the user owns. An unknown id
// yields ErrNotFound; a key owned by someone else yields ErrForbidden
// and is left untouched — the HTTP layer presents both identically so
// key ids cannot be probed across accounts. Delete is not idempotent:
// of two concurrent deletes, one gets ErrNotFound.
func (s *KeyService) DeleteKey(ctx context.Context, user *model.User, keyID string) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	key, err := s.store.GetAPIKey(ctx, keyID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return unavailable("lookup api key", err)
	}
	if key.UserID != user.ID {
		return ErrForbidden
	}

	if err := s.store.DeleteAPIKey(ctx, keyID, user.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Lost a race with a concurrent delete.
			return ErrNotFound
		}
		return unavailable("delete api key", err)
	}
	return nil
}

func generateSecret() (string, error) {
	raw := make([]byte, secretRandBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretPrefix + hex.EncodeToString(raw), nil
}
