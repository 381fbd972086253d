package scramble

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
)

// DefaultMaxPixels caps the declared dimensions of a decoded image
// (about 128 MiB of RGBA).
const DefaultMaxPixels = 32 << 20

var ErrImageTooLarge = errors.New("image dimensions exceed pixel limit")

// Image is a flat non-premultiplied RGBA pixel buffer.
type Image struct {
	Width  int
	Height int
	Pix    []byte
}

// NewImage wraps pix; len(pix) must equal width*height*4.
func NewImage(width, height int, pix []byte) (*Image, error) {
	if width <= 0 || height <= 0 || len(pix) != width*height*PixelSize {
		return nil, fmt.Errorf("invalid image geometry %dx%d for %d bytes", width, height, len(pix))
	}
	return &Image{Width: width, Height: height, Pix: pix}, nil
}

// DecodeImage decodes a PNG, JPEG or GIF. Only plaintext input may be lossy.
// The header is checked against maxPixels before any pixel data is read;
// maxPixels <= 0 means DefaultMaxPixels.
func DecodeImage(data []byte, maxPixels int) (*Image, error) {
	if _, err := checkDimensions(data, maxPixels, image.DecodeConfig); err != nil {
		return nil, err
	}
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return fromImage(src), nil
}

// DecodePNG decodes a lossless PNG carrier, bounded like DecodeImage.
func DecodePNG(data []byte, maxPixels int) (*Image, error) {
	decodeConfig := func(r io.Reader) (image.Config, string, error) {
		cfg, err := png.DecodeConfig(r)
		return cfg, "png", err
	}
	if _, err := checkDimensions(data, maxPixels, decodeConfig); err != nil {
		return nil, err
	}
	src, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode png: %w", err)
	}
	return fromImage(src), nil
}

func checkDimensions(data []byte, maxPixels int, decodeConfig func(io.Reader) (image.Config, string, error)) (image.Config, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}
	cfg, format, err := decodeConfig(bytes.NewReader(data))
	if err != nil {
		return cfg, fmt.Errorf("decode image header: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return cfg, fmt.Errorf("decode %s: empty image %dx%d", format, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return cfg, fmt.Errorf("%w: %dx%d exceeds %d", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	return cfg, nil
}

// EncodePNG writes the buffer as a PNG without altering any channel value.
func (img *Image) EncodePNG() ([]byte, error) {
	nrgba := &image.NRGBA{
		Pix:    img.Pix,
		Stride: img.Width * PixelSize,
		Rect:   image.Rect(0, 0, img.Width, img.Height),
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, nrgba); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func fromImage(src image.Image) *Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if n, ok := src.(*image.NRGBA); ok && n.Stride == w*PixelSize && b.Min == (image.Point{}) {
		pix := make([]byte, len(n.Pix[:w*h*PixelSize]))
		copy(pix, n.Pix)
		return &Image{Width: w, Height: h, Pix: pix}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return &Image{Width: w, Height: h, Pix: dst.Pix}
}
