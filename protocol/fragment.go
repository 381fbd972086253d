package protocol

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const (
	// DefaultChunkSize is the raw payload per fragment. Base64 grows it to
	// 60000 bytes, which leaves room for the JSON framing below MaxDatagramSize.
	DefaultChunkSize = 45000

	// MaxDatagramSize is the largest UDP payload over IPv4.
	MaxDatagramSize = 65507
)

var ErrDatagramTooLarge = errors.New("encoded envelope exceeds datagram size")

// Fragment splits data into envelopes of at most chunkSize raw bytes. Data that
// fits yields one SinglePacket; otherwise every fragment shares a fresh chunk ID.
// Fragments reference data's storage. chunkSize <= 0 selects DefaultChunkSize.
func Fragment(data []byte, chunkSize int) []Envelope {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if len(data) <= chunkSize {
		return []Envelope{&SinglePacket{Data: data}}
	}

	total := (len(data) + chunkSize - 1) / chunkSize
	chunkID := uuid.NewString()
	envs := make([]Envelope, total)
	for i := 0; i < total; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(data))
		envs[i] = &MultiPacket{
			ChunkID:     chunkID,
			ChunkIndex:  uint32(i),
			TotalChunks: uint32(total),
			Data:        data[start:end],
		}
	}
	return envs
}

// EncodeEnvelopes marshals each envelope into a datagram and enforces the size ceiling.
func EncodeEnvelopes(envs []Envelope) ([][]byte, error) {
	datagrams := make([][]byte, len(envs))
	for i, env := range envs {
		dgram, err := MarshalEnvelope(env)
		if err != nil {
			return nil, err
		}
		if len(dgram) > MaxDatagramSize {
			return nil, fmt.Errorf("%w: envelope %d is %d bytes", ErrDatagramTooLarge, i, len(dgram))
		}
		datagrams[i] = dgram
	}
	return datagrams, nil
}

// ChunkIDOf returns the chunk ID shared by a fragmented message, or "" for a single packet.
func ChunkIDOf(envs []Envelope) string {
	if len(envs) == 0 {
		return ""
	}
	if mp, ok := envs[0].(*MultiPacket); ok {
		return mp.ChunkID
	}
	return ""
}
