package protocol

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Envelope tags as they appear on the wire: {"<Tag>": <body>}.
const (
	TagSinglePacket      = "SinglePacket"
	TagMultiPacket       = "MultiPacket"
	TagRetransmitRequest = "RetransmitRequest"
)

var (
	ErrMalformedEnvelope = errors.New("malformed envelope")
	ErrUnknownEnvelope   = errors.New("unknown envelope tag")
	ErrInvalidChunkIndex = errors.New("invalid chunk index")
)

// Envelope is one datagram on the wire. The implementations in this package
// are the only ones; UnmarshalEnvelope rejects any other tag.
type Envelope interface {
	Tag() string
	isEnvelope()
}

// SinglePacket carries a whole message that fits in one datagram.
type SinglePacket struct {
	Data []byte
}

// MultiPacket carries one contiguous slice of a fragmented message.
type MultiPacket struct {
	ChunkID     string `json:"chunk_id"`
	ChunkIndex  uint32 `json:"chunk_index"`
	TotalChunks uint32 `json:"total_chunks"`
	Data        []byte `json:"data"`
}

// RetransmitRequest asks the sender of ChunkID to resend the listed fragments.
type RetransmitRequest struct {
	ChunkID        string   `json:"chunk_id"`
	MissingIndices []uint32 `json:"missing_indices"`
}

func (*SinglePacket) Tag() string      { return TagSinglePacket }
func (*MultiPacket) Tag() string       { return TagMultiPacket }
func (*RetransmitRequest) Tag() string { return TagRetransmitRequest }

func (*SinglePacket) isEnvelope()      {}
func (*MultiPacket) isEnvelope()       {}
func (*RetransmitRequest) isEnvelope() {}

// MarshalEnvelope encodes env in its tagged JSON form. Byte payloads are
// standard base64, so the datagram is plain printable ASCII.
func MarshalEnvelope(env Envelope) ([]byte, error) {
	var body any
	switch e := env.(type) {
	case *SinglePacket:
		data := e.Data
		if data == nil {
			data = []byte{}
		}
		body = data
	case *MultiPacket:
		if e.Data == nil {
			cp := *e
			cp.Data = []byte{}
			e = &cp
		}
		body = e
	case *RetransmitRequest:
		if e.MissingIndices == nil {
			cp := *e
			cp.MissingIndices = []uint32{}
			e = &cp
		}
		body = e
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEnvelope, env)
	}

	data, err := json.Marshal(map[string]any{env.Tag(): body})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// UnmarshalEnvelope decodes one datagram. Exactly one known tag must be present.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one tag, got %d", ErrMalformedEnvelope, len(raw))
	}

	var (
		tag  string
		body jsoniter.RawMessage
	)
	for k, v := range raw {
		tag, body = k, v
	}

	switch tag {
	case TagSinglePacket:
		var payload []byte
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("%w: single packet: %v", ErrMalformedEnvelope, err)
		}
		return &SinglePacket{Data: payload}, nil

	case TagMultiPacket:
		var mp MultiPacket
		if err := json.Unmarshal(body, &mp); err != nil {
			return nil, fmt.Errorf("%w: multi packet: %v", ErrMalformedEnvelope, err)
		}
		if mp.ChunkID == "" {
			return nil, fmt.Errorf("%w: empty chunk_id", ErrMalformedEnvelope)
		}
		if mp.ChunkIndex >= mp.TotalChunks {
			return nil, fmt.Errorf("%w: %d of %d", ErrInvalidChunkIndex, mp.ChunkIndex, mp.TotalChunks)
		}
		return &mp, nil

	case TagRetransmitRequest:
		var rr RetransmitRequest
		if err := json.Unmarshal(body, &rr); err != nil {
			return nil, fmt.Errorf("%w: retransmit request: %v", ErrMalformedEnvelope, err)
		}
		if rr.ChunkID == "" {
			return nil, fmt.Errorf("%w: empty chunk_id", ErrMalformedEnvelope)
		}
		return &rr, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEnvelope, tag)
	}
}
