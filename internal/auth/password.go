package auth

import (
	"fmt"

	"github.com/alexedwards/argon2id"
)

// HashParams bundles the argon2id cost parameters the service hashes with.
// Stored hashes encode the parameters they were created under, so changing
// these only affects new hashes; existing ones are rotated lazily on login.
type HashParams struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

func (p HashParams) argon2id() *argon2id.Params {
	return &argon2id.Params{
		Memory:      p.Memory,
		Iterations:  p.Iterations,
		Parallelism: p.Parallelism,
		SaltLength:  p.SaltLength,
		KeyLength:   p.KeyLength,
	}
}

// HashPassword derives an argon2id hash of password under p. The returned
// string is the encoded form (parameters, salt, and key) and is stored
// verbatim.
func HashPassword(password string, p HashParams) (string, error) {
	hash, err := argon2id.CreateHash(password, p.argon2id())
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

// VerifyPassword reports whether password matches the encoded hash.
func VerifyPassword(password, hash string) (bool, error) {
	match, err := argon2id.ComparePasswordAndHash(password, hash)
	if err != nil {
		return false, fmt.Errorf("verify password: %w", err)
	}
	return match, nil
}

// NeedsRehash reports whether hash was generated under parameters other than
// p, meaning it should be regenerated on the next successful login. A hash
// that cannot be decoded reports an error instead.
func NeedsRehash(hash string, p HashParams) (bool, error) {
	params, salt, key, err := argon2id.DecodeHash(hash)
	if err != nil {
		return false, fmt.Errorf("decode password hash: %w", err)
	}
	stale := params.Memory != p.Memory ||
		params.Iterations != p.Iterations ||
		params.Parallelism != p.Parallelism ||
		uint32(len(salt)) != p.SaltLength ||
		uint32(len(key)) != p.KeyLength
	return stale, nil
}
