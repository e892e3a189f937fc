package ws

import (
	"crypto/rand"
	"encoding/hex"
)

// newConnID returns a random 128-bit hex id. Connection ids only need to be
// unique within one process lifetime.
func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}
