package scramble

import (
	"encoding/binary"
	"fmt"
)

// Embedded layout: [32-bit big-endian length][data], one bit per carrier byte,
// most significant bit first, stored in the least significant bit.
const (
	lengthBits = 32

	// DefaultMaxMetadataSize is the largest embedded record Extract accepts by default.
	DefaultMaxMetadataSize = 10000
)

// Capacity returns the largest payload Embed can place into a carrier of n bytes.
func Capacity(n int) int {
	if n < lengthBits {
		return 0
	}
	return (n - lengthBits) / 8
}

// Embed writes data, prefixed by its length, into the LSBs of buf.
// Only the lowest bit of the first 32+8*len(data) bytes changes.
func Embed(buf, data []byte) error {
	need := lengthBits + 8*len(data)
	if uint64(len(data)) > uint64(^uint32(0)) || need > len(buf) {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrCapacityExceeded, need, len(buf))
	}

	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(data)))
	pos := writeBits(buf, 0, header[:])
	writeBits(buf, pos, data)
	return nil
}

// Extract reads a length-prefixed record from the LSBs of buf. A length of zero
// or above maxLen is rejected; maxLen <= 0 means DefaultMaxMetadataSize.
func Extract(buf []byte, maxLen int) ([]byte, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxMetadataSize
	}

	var header [4]byte
	pos, err := readBits(buf, 0, header[:])
	if err != nil {
		return nil, err
	}

	length := binary.BigEndian.Uint32(header[:])
	if length == 0 || uint64(length) > uint64(maxLen) {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMetadataLength, length)
	}

	data := make([]byte, length)
	if _, err := readBits(buf, pos, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeBits(buf []byte, pos int, data []byte) int {
	for _, b := range data {
		for bit := 7; bit >= 0; bit-- {
			buf[pos] = buf[pos]&0xFE | (b>>bit)&1
			pos++
		}
	}
	return pos
}

func readBits(buf []byte, pos int, out []byte) (int, error) {
	for i := range out {
		var b byte
		for bit := 0; bit < 8; bit++ {
			if pos >= len(buf) {
				return pos, fmt.Errorf("%w: read %d of %d bytes", ErrUnexpectedEnd, i, len(out))
			}
			b = b<<1 | buf[pos]&1
			pos++
		}
		out[i] = b
	}
	return pos, nil
}
