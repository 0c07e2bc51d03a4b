package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex digests input to lowercase hex. Refresh tokens and idempotency
// keys are stored as this digest, never as the raw value.
func Sha256Hex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
