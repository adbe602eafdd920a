package model

// APIKey represents a bearer API key owned by a single user. The raw
// secret is never stored; only a SHA-256 hash and a short prefix for
// identification are persisted. Name and owner are immutable after
// creation — the authentication path touches LastUsed and nothing else.
type APIKey struct {
	ID        string `json:"id" db:"id"`
	UserID    string `json:"user_id" db:"user_id"`
	Name      string `json:"name" db:"name"`
	KeyHash   string `json:"-" db:"key_hash"` // SHA-256 hash, never expose
	KeyPrefix string `json:"key_prefix" db:"key_prefix"`
	CreatedAt int64  `json:"created_at" db:"created_at"` // epoch seconds
	LastUsed  *int64 `json:"last_used,omitempty" db:"last_used"`
}

// MaskedKey returns the display form of the key for listings: the
// visible prefix followed by an ellipsis. The full secret is shown
// exactly once, in the creation response.
func (k *APIKey) MaskedKey() string {
	return k.KeyPrefix + "..."
}
