package core

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
)

// ContentToken computes the git blob hash of content, the same revision
// identifier the GitHub contents API reports as "sha".
func ContentToken(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
