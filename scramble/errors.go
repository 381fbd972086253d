package scramble

import (
	"errors"
	"fmt"
)

var (
	ErrCapacityExceeded = errors.New("carrier buffer too small for metadata")
	ErrCorruptMetadata  = errors.New("corrupt metadata")
	ErrUnexpectedEnd    = errors.New("unexpected end of pixel data")
	ErrMisalignedBuffer = errors.New("pixel buffer length is not a multiple of 4")

	// ErrInvalidMetadataLength and ErrMalformedMetadata both match ErrCorruptMetadata
	// under errors.Is, but stay distinguishable from each other.
	ErrInvalidMetadataLength = fmt.Errorf("%w: length out of range", ErrCorruptMetadata)
	ErrMalformedMetadata     = fmt.Errorf("%w: malformed record", ErrCorruptMetadata)
)
