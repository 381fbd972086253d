package scramble

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestGenerateSwaps_KnownSequence(t *testing.T) {
	assert.Equal(t,
		[]Swap{{5, 1}, {4, 1}, {3, 1}, {2, 0}, {1, 1}},
		GenerateSwaps(0, 6))
	assert.Equal(t,
		[]Swap{{5, 0}, {4, 4}, {3, 0}, {2, 2}, {1, 0}},
		GenerateSwaps(625076842980201103, 6))
}

func TestGenerateSwaps_Degenerate(t *testing.T) {
	assert.Empty(t, GenerateSwaps(42, 0))
	assert.Empty(t, GenerateSwaps(42, 1))
	assert.Len(t, GenerateSwaps(42, 2), 1)
}

func TestGenerateSwaps_Shape_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		n := rapid.IntRange(2, 4096).Draw(t, "pixelCount")

		swaps := GenerateSwaps(seed, n)
		if len(swaps) != n-1 {
			t.Fatalf("expected %d swaps, got %d", n-1, len(swaps))
		}
		for k, s := range swaps {
			if int(s.I) != n-1-k {
				t.Fatalf("swap %d: expected i=%d, got %d", k, n-1-k, s.I)
			}
			if s.J > s.I {
				t.Fatalf("swap %d: j=%d exceeds i=%d", k, s.J, s.I)
			}
		}
	})
}

func TestPermute_MovesWholePixels(t *testing.T) {
	buf := []byte{
		0, 1, 2, 3,
		10, 11, 12, 13,
		20, 21, 22, 23,
	}
	Permute(buf, []Swap{{2, 0}})
	assert.Equal(t, []byte{20, 21, 22, 23, 10, 11, 12, 13, 0, 1, 2, 3}, buf)
}

func TestPermute_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		pixels := rapid.IntRange(0, 2048).Draw(t, "pixels")
		orig := rapid.SliceOfN(rapid.Byte(), pixels*PixelSize, pixels*PixelSize).Draw(t, "buf")

		buf := bytes.Clone(orig)
		swaps := GenerateSwaps(seed, pixels)
		Permute(buf, swaps)
		Unpermute(buf, swaps)

		if !bytes.Equal(buf, orig) {
			t.Fatal("unpermute did not restore the original buffer")
		}
	})
}

func TestPermute_IsPermutation_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		seed := rapid.Uint64().Draw(t, "seed")
		pixels := rapid.IntRange(1, 1024).Draw(t, "pixels")

		// Tag each pixel with its own index so the output is checkable.
		buf := make([]byte, pixels*PixelSize)
		for p := 0; p < pixels; p++ {
			buf[p*4] = byte(p)
			buf[p*4+1] = byte(p >> 8)
		}
		Permute(buf, GenerateSwaps(seed, pixels))

		seen := make([]bool, pixels)
		for p := 0; p < pixels; p++ {
			idx := int(buf[p*4]) | int(buf[p*4+1])<<8
			if seen[idx] {
				t.Fatalf("pixel %d appears twice", idx)
			}
			seen[idx] = true
		}
	})
}
