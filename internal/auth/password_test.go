package auth

import (
	"strings"
	"testing"
)

func TestPasswordRoundTrip(t *testing.T) {
	digest, err := HashPassword("correct horse", 4)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if !VerifyPassword("correct horse", digest) {
		t.Fatalf("expected password to verify against its own digest")
	}
	if VerifyPassword("wrong horse", digest) {
		t.Fatalf("expected mismatching password to fail")
	}
}

func TestHashIsSalted(t *testing.T) {
	first, err := HashPassword("same password", 4)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	second, err := HashPassword("same password", 4)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	if first == second {
		t.Fatalf("expected two digests of the same password to differ")
	}
}

func TestLongPasswordsTruncate(t *testing.T) {
	long := strings.Repeat("a", 80)
	digest, err := HashPassword(long, 4)
	if err != nil {
		t.Fatalf("hash error: %v", err)
	}
	// Only the first 72 bytes count; anything sharing that prefix
	// verifies.
	if !VerifyPassword(strings.Repeat("a", 72), digest) {
		t.Fatalf("expected truncated password to verify")
	}
	if !VerifyPassword(long+"extra", digest) {
		t.Fatalf("expected longer password with same prefix to verify")
	}
}

func TestMalformedDigestVerifiesFalse(t *testing.T) {
	if VerifyPassword("anything", "not-a-bcrypt-digest") {
		t.Fatalf("expected malformed digest to verify false")
	}
	if VerifyPassword("anything", "") {
		t.Fatalf("expected empty digest to verify false")
	}
}
