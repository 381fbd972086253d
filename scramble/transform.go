package scramble

import (
	"fmt"
)

// Transformer scrambles pixel buffers and embeds the metadata needed to undo it.
// The result is self-describing: no key material exists outside the image.
type Transformer struct {
	// MaxMetadataSize bounds the embedded record on both encrypt and decrypt.
	MaxMetadataSize int
	// MaxPixels bounds the declared dimensions of decoded PNG and image input.
	MaxPixels int
}

// NewTransformer returns a Transformer; values <= 0 select DefaultMaxMetadataSize
// and DefaultMaxPixels.
func NewTransformer(maxMetadataSize, maxPixels int) *Transformer {
	if maxMetadataSize <= 0 {
		maxMetadataSize = DefaultMaxMetadataSize
	}
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	return &Transformer{MaxMetadataSize: maxMetadataSize, MaxPixels: maxPixels}
}

func (t *Transformer) limit() int {
	if t == nil || t.MaxMetadataSize <= 0 {
		return DefaultMaxMetadataSize
	}
	return t.MaxMetadataSize
}

func (t *Transformer) maxPixels() int {
	if t == nil {
		return DefaultMaxPixels
	}
	return t.MaxPixels
}

// Encrypt permutes a copy of plain with the seed derived from md, then embeds md
// into the LSBs of the permuted buffer. plain is not modified.
func (t *Transformer) Encrypt(plain []byte, md Metadata) ([]byte, error) {
	if len(plain)%PixelSize != 0 {
		return nil, ErrMisalignedBuffer
	}

	record, err := md.Marshal()
	if err != nil {
		return nil, err
	}
	if len(record) > t.limit() {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidMetadataLength, len(record), t.limit())
	}
	if need := lengthBits + 8*len(record); need > len(plain) {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrCapacityExceeded, need, len(plain))
	}

	cipher := make([]byte, len(plain))
	copy(cipher, plain)

	Permute(cipher, GenerateSwaps(DeriveSeed(md), len(cipher)/PixelSize))
	if err := Embed(cipher, record); err != nil {
		return nil, err
	}
	return cipher, nil
}

// Decrypt recovers the metadata from cipher and unpermutes a copy of it.
// Carrier bytes that held metadata bits keep their modified LSB.
func (t *Transformer) Decrypt(cipher []byte) ([]byte, Metadata, error) {
	if len(cipher)%PixelSize != 0 {
		return nil, Metadata{}, ErrMisalignedBuffer
	}

	record, err := Extract(cipher, t.limit())
	if err != nil {
		return nil, Metadata{}, err
	}
	md, err := ParseMetadata(record)
	if err != nil {
		return nil, Metadata{}, err
	}

	plain := make([]byte, len(cipher))
	copy(plain, cipher)
	Unpermute(plain, GenerateSwaps(DeriveSeed(md), len(plain)/PixelSize))
	return plain, md, nil
}

// EncryptPNG decodes any supported image, encrypts its pixels and returns a PNG.
func (t *Transformer) EncryptPNG(data []byte, md Metadata) ([]byte, error) {
	img, err := DecodeImage(data, t.maxPixels())
	if err != nil {
		return nil, err
	}
	img.Pix, err = t.Encrypt(img.Pix, md)
	if err != nil {
		return nil, err
	}
	return img.EncodePNG()
}

// DecryptPNG decrypts a PNG produced by EncryptPNG.
func (t *Transformer) DecryptPNG(data []byte) ([]byte, Metadata, error) {
	img, err := DecodePNG(data, t.maxPixels())
	if err != nil {
		return nil, Metadata{}, err
	}
	var md Metadata
	img.Pix, md, err = t.Decrypt(img.Pix)
	if err != nil {
		return nil, Metadata{}, err
	}
	out, err := img.EncodePNG()
	if err != nil {
		return nil, Metadata{}, err
	}
	return out, md, nil
}
