package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// NoTokenPartition is the single shared partition for every missing or
// malformed token.
const NoTokenPartition = "no_token"

// partitionHashLen is the number of hex characters of sha256(token) kept.
const partitionHashLen = 16

// PartitionKey derives the cache partition for a token. Valid tokens map to
// "<format>_<16 hex chars of sha256(token)>"; everything else shares
// NoTokenPartition. The raw token cannot be recovered from the result.
func PartitionKey(token string, v Validation) string {
	if !v.Valid {
		return NoTokenPartition
	}
	return string(v.Format) + "_" + HashToken(token)[:partitionHashLen]
}

// HashToken returns the hex sha256 of a token, for use wherever a stable
// token identity is needed without keeping the token itself.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
