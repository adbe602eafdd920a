package model

// User is an account that owns API keys. Tier is an opaque plan label;
// quota enforcement is not part of the gateway and nothing here
// interprets it beyond display. Banned users keep their keys but every
// authenticated request is rejected with 403.
type User struct {
	ID        string `json:"id" db:"id"`
	Tier      int    `json:"tier" db:"tier"`
	Banned    bool   `json:"banned" db:"banned"`
	CreatedAt int64  `json:"created_at" db:"created_at"` // epoch seconds
}
