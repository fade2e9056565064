package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// 24 random bytes, 192 bits of entropy.
const resetSecretBytes = 24

// ResetToken is a freshly minted password reset secret. Only Hash and
// ExpiresAt are persisted; Raw goes to the requester and nowhere else.
type ResetToken struct {
	Raw       string
	Hash      string
	ExpiresAt time.Time
}

// NewResetToken mints a reset secret valid for ttl after now.
func NewResetToken(now time.Time, ttl time.Duration) (ResetToken, error) {
	b := make([]byte, resetSecretBytes)
	if _, err := rand.Read(b); err != nil {
		return ResetToken{}, fmt.Errorf("read random: %w", err)
	}
	raw := hex.EncodeToString(b)
	return ResetToken{Raw: raw, Hash: HashResetToken(raw), ExpiresAt: now.Add(ttl)}, nil
}

// HashResetToken is the deterministic lookup key stored for a raw secret.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
