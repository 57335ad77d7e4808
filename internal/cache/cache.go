package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Cache defines the interface for claim payload caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// Key generates a cache key for a claim id. Claim ids come from an
// external system and may contain path separators, so they are hashed
// before use as disk filenames.
func Key(claimID string) string {
	hash := sha256.Sum256([]byte(claimID))
	return "claimroute:v1:" + hex.EncodeToString(hash[:])
}
