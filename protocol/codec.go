package protocol

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// json is a drop-in replacement for encoding/json with better performance
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxMessageSize bounds a reassembled message before it is decoded.
const MaxMessageSize = 64 << 20

var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrUnknownMessage   = errors.New("unknown message tag")
	ErrMessageTooLarge  = errors.New("message too large")
)

// EncodeMessage serializes msg as {"<Tag>": {...}}.
func EncodeMessage(msg Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("%w: nil", ErrUnknownMessage)
	}
	data, err := json.Marshal(map[string]Message{msg.Tag(): msg})
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}
	return data, nil
}

// DecodeMessage parses a reassembled payload into its concrete message type.
func DecodeMessage(data []byte) (Message, error) {
	if len(data) > MaxMessageSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(data))
	}

	var raw map[string]jsoniter.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("%w: expected exactly one tag, got %d", ErrMalformedMessage, len(raw))
	}

	for tag, body := range raw {
		msg := newMessage(tag)
		if msg == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, tag)
		}
		if err := json.Unmarshal(body, msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedMessage, tag, err)
		}
		return msg, nil
	}
	return nil, ErrMalformedMessage
}
