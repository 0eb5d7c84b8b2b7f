package testutil

import (
	"crypto/sha1"
	"encoding/hex"
)

// SHA1Hex returns the SHA-1 digest of data as lowercase hex, the content hash
// format of the record store.
func SHA1Hex(data []byte) string {
	h := sha1.Sum(data)
	return hex.EncodeToString(h[:])
}
