// Package vault implements a single-secret store of expiring encrypted
// entries. A master secret is verified with bcrypt; logins issue short-lived
// session tokens that carry a token-sealed copy of the secret so later
// requests can decrypt entries without re-prompting.
package vault

import "time"

// Field is a single named value within an entry.
type Field struct {
	Name       string `json:"name"`
	Value      string `json:"value"`
	IsPassword bool   `json:"isPassword"`
}

// EntryData is the plaintext payload of an entry. It is encrypted as a
// whole; no part of it is persisted in the clear.
type EntryData struct {
	Title  string  `json:"title"`
	Fields []Field `json:"fields"`
}

// Entry is a decrypted entry together with its lifecycle metadata.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Fields    []Field   `json:"fields"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EntryInfo is the caller-visible metadata of a stored entry.
type EntryInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// SessionInfo is returned by Login. Token is the only copy of the session
// credential; the server keeps a hash of it.
type SessionInfo struct {
	ID        string    `json:"-"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}
