package auth

import "golang.org/x/crypto/bcrypt"

// bcrypt ignores everything past 72 bytes; truncate up front so the
// behavior is the same on every call instead of depending on the
// library version.
const maxPasswordBytes = 72

// HashPassword returns the bcrypt digest of the password. The salt is
// generated internally and embedded in the digest, so hashing the same
// password twice yields different digests.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	digest, err := bcrypt.GenerateFromPassword(truncatePassword(password), cost)
	if err != nil {
		return "", err
	}
	return string(digest), nil
}

// VerifyPassword reports whether the password matches the digest. A
// malformed digest verifies false, it never errors out.
func VerifyPassword(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), truncatePassword(password)) == nil
}

func truncatePassword(password string) []byte {
	b := []byte(password)
	if len(b) > maxPasswordBytes {
		b = b[:maxPasswordBytes]
	}
	return b
}
