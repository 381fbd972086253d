package scramble

import (
	"crypto/sha256"
	"encoding/binary"
	"strconv"
)

// DeriveSeed hashes the usernames in order, with no separator, followed by the
// decimal quota, and returns the first 8 digest bytes as a big-endian integer.
func DeriveSeed(md Metadata) uint64 {
	h := sha256.New()
	for _, name := range md.Usernames {
		h.Write([]byte(name))
	}
	h.Write(strconv.AppendUint(nil, uint64(md.Quota), 10))
	sum := h.Sum(nil)
	return binary.BigEndian.Uint64(sum[:8])
}
