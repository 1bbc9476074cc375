package types

import "time"

// Session is a server-side record of a live authentication grant. The
// session id doubles as the token's jti claim; flipping IsValid to
// false revokes every token minted against it.
type Session struct {
	// ID is an opaque identifier generated at issuance.
	ID string `json:"session_id"`

	// UserID is the user the grant was issued to.
	UserID int `json:"user_id"`

	// CreatedAt is when the session was issued.
	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the absolute expiry; the registry may purge the
	// record past this point.
	ExpiresAt time.Time `json:"expires_at"`

	// IsValid is true at creation and flipped false on logout. Records
	// are never deleted on manual logout, only flagged.
	IsValid bool `json:"-"`
}
