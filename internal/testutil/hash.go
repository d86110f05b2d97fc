package testutil

import (
	"crypto/sha256"
	"encoding/hex"

	"hoard/internal/model"
)

// SHA256Hasher is a backup.Hasher producing 32-byte SHA-256 digests.
type SHA256Hasher struct{}

func (SHA256Hasher) Sum(data []byte) model.Hash {
	h := sha256.Sum256(data)
	return model.NewHash(h[:])
}

// SHA256Hex returns the SHA-256 checksum of data as a lowercase hex string.
func SHA256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
