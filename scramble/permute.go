package scramble

// LCG constants shared by every implementation of the scheme.
const (
	lcgMultiplier = 6364136223846793005
	lcgIncrement  = 1442695040888963407

	// PixelSize is the number of bytes per RGBA pixel.
	PixelSize = 4
)

// Swap is one Fisher-Yates step: pixel I is exchanged with pixel J, J <= I.
type Swap struct {
	I, J uint32
}

// GenerateSwaps returns pixelCount-1 swaps with strictly decreasing I, driven by
// a 64-bit LCG seeded with seed. It returns nil for fewer than two pixels.
func GenerateSwaps(seed uint64, pixelCount int) []Swap {
	if pixelCount < 2 {
		return nil
	}
	swaps := make([]Swap, 0, pixelCount-1)
	state := seed
	for i := pixelCount - 1; i >= 1; i-- {
		state = state*lcgMultiplier + lcgIncrement
		j := state % uint64(i+1)
		swaps = append(swaps, Swap{I: uint32(i), J: uint32(j)})
	}
	return swaps
}

// Permute applies swaps in generation order.
func Permute(buf []byte, swaps []Swap) {
	for _, s := range swaps {
		swapPixels(buf, int(s.I), int(s.J))
	}
}

// Unpermute applies swaps in reverse order, undoing Permute exactly.
func Unpermute(buf []byte, swaps []Swap) {
	for k := len(swaps) - 1; k >= 0; k-- {
		swapPixels(buf, int(swaps[k].I), int(swaps[k].J))
	}
}

func swapPixels(buf []byte, i, j int) {
	if i == j {
		return
	}
	a := buf[i*PixelSize : i*PixelSize+PixelSize]
	b := buf[j*PixelSize : j*PixelSize+PixelSize]
	var tmp [PixelSize]byte
	copy(tmp[:], a)
	copy(a, b)
	copy(b, tmp[:])
}
