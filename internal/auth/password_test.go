package auth

import (
	"strings"
	"testing"
)

func lightParams() HashParams {
	return HashParams{Memory: 16 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestPasswordRoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("testPassword123!", lightParams())
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("hash = %q, want encoded argon2id string", hash)
	}

	for _, tc := range []struct {
		password string
		want     bool
	}{
		{"testPassword123!", true},
		{"testpassword123!", false},
		{"", false},
	} {
		match, err := VerifyPassword(tc.password, hash)
		if err != nil {
			t.Fatalf("VerifyPassword(%q) error = %v", tc.password, err)
		}
		if match != tc.want {
			t.Errorf("VerifyPassword(%q) = %v, want %v", tc.password, match, tc.want)
		}
	}
}

func TestNeedsRehashDetectsParameterDrift(t *testing.T) {
	t.Parallel()

	params := lightParams()
	hash, err := HashPassword("pw", params)
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}

	stale, err := NeedsRehash(hash, params)
	if err != nil {
		t.Fatalf("NeedsRehash() error = %v", err)
	}
	if stale {
		t.Error("NeedsRehash() = true for a hash under current parameters")
	}

	bumped := params
	bumped.Memory *= 2
	stale, err = NeedsRehash(hash, bumped)
	if err != nil {
		t.Fatalf("NeedsRehash() error = %v", err)
	}
	if !stale {
		t.Error("NeedsRehash() = false after the memory parameter changed")
	}

	if _, err := NeedsRehash("not-an-encoded-hash", params); err == nil {
		t.Error("NeedsRehash() error = nil for an undecodable hash")
	}
}
