package config

import (
	"time"

	"github.com/Mmx233/PixelVeil/protocol"
	"github.com/Mmx233/PixelVeil/scramble"
)

// Default values applied to zero config fields
const (
	DefaultListenIP   = "0.0.0.0"
	DefaultListenPort = 8000

	// DefaultWorkers bounds concurrently handled requests on a node
	DefaultWorkers = 32

	// DefaultSocketBuffer is the requested kernel buffer size for the node socket
	DefaultSocketBuffer = 8 << 20

	DefaultInboxPath = "pixelveil-inbox"

	DefaultRetryAttempts = 3
	DefaultRetryDelay    = 500 * time.Millisecond

	DefaultRequestTimeout = protocol.DefaultOverallTimeout

	DefaultMaxMetadataSize = scramble.DefaultMaxMetadataSize
	DefaultMaxPixels       = scramble.DefaultMaxPixels

	// MaxChunkSize keeps a base64 fragment plus framing under the datagram ceiling
	MaxChunkSize = 48000

	// MaxMissingIndicesCeiling keeps a retransmit request inside one datagram
	MaxMissingIndicesCeiling = 4096
)
