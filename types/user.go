package types

import "time"

// User represents an account in the system.
// It contains identity, role flags, and audit metadata.
type User struct {
	// ID is the unique identifier of the user.
	ID int `json:"id" db:"id"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" db:"username"`

	// Email is the user's email address.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the hashed representation of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsAdmin grants access to the /admin namespace. The first user
	// registered into an empty store receives it automatically.
	IsAdmin bool `json:"is_admin" db:"is_admin"`

	// IsActive is false for disabled accounts; inactive users are
	// rejected at authentication.
	IsActive bool `json:"is_active" db:"is_active"`

	// EmailVerified indicates the address has been confirmed.
	EmailVerified bool `json:"email_verified" db:"email_verified"`

	// EmailVerificationToken is the outstanding verification token, if
	// any. Internal only, never serialized.
	EmailVerificationToken string `json:"-" db:"email_verification_token"`

	// ProfilePicture is the URL of the user's picture in object storage,
	// empty if none was uploaded.
	ProfilePicture string `json:"profile_picture,omitempty" db:"profile_picture"`

	// CreatedAt is the timestamp when the account was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
