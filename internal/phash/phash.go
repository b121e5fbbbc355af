// Package phash computes 64-bit DCT perceptual hashes of frames.
package phash

import (
	"fmt"
	"image"
	"math"
	"math/bits"
	"sort"

	"golang.org/x/image/draw"
)

const (
	sampleSize = 32
	blockSize  = 8

	// tolerance keeps float noise around the median from setting bits on
	// flat images.
	tolerance = 1e-9
)

// Hash is a 64-bit perceptual fingerprint. Bit i corresponds to the i-th
// low-frequency DCT coefficient after DC in row-major order; bit 63 is
// always zero.
type Hash uint64

func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// Bits expands the hash into 64 float32 values of 0 or 1. The squared
// Euclidean distance between two expansions equals their Hamming distance.
func (h Hash) Bits() []float32 {
	out := make([]float32, 64)
	for i := range out {
		if h&(1<<uint(i)) != 0 {
			out[i] = 1
		}
	}
	return out
}

// cosTable[u][x] = alpha(u) * cos((2x+1)uπ / 2N) for the orthonormal DCT-II.
var cosTable = func() [blockSize][sampleSize]float64 {
	var t [blockSize][sampleSize]float64
	for u := 0; u < blockSize; u++ {
		alpha := math.Sqrt(2.0 / sampleSize)
		if u == 0 {
			alpha = math.Sqrt(1.0 / sampleSize)
		}
		for x := 0; x < sampleSize; x++ {
			t[u][x] = alpha * math.Cos(float64(2*x+1)*float64(u)*math.Pi/(2*sampleSize))
		}
	}
	return t
}()

// Compute returns the perceptual hash of img. It is deterministic and does
// no I/O.
func Compute(img image.Image) Hash {
	gray := image.NewGray(image.Rect(0, 0, sampleSize, sampleSize))
	draw.BiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	var lum [sampleSize][sampleSize]float64
	for y := 0; y < sampleSize; y++ {
		for x := 0; x < sampleSize; x++ {
			lum[y][x] = float64(gray.GrayAt(x, y).Y)
		}
	}

	coeffs := lowFrequencyDCT(&lum)

	// Skip DC; the remaining 63 coefficients carry the structure.
	ac := coeffs[1:]
	median := medianOf(ac)

	var h Hash
	for i, c := range ac {
		if c > median+tolerance {
			h |= 1 << uint(i)
		}
	}
	return h
}

// lowFrequencyDCT computes the top-left 8x8 block of the 2-D DCT of a 32x32
// luminance plane, flattened row-major (v rows, u columns).
func lowFrequencyDCT(lum *[sampleSize][sampleSize]float64) []float64 {
	// Rows first: rowPass[y][u] = Σx lum[y][x]·cos[u][x].
	var rowPass [sampleSize][blockSize]float64
	for y := 0; y < sampleSize; y++ {
		for u := 0; u < blockSize; u++ {
			var sum float64
			for x := 0; x < sampleSize; x++ {
				sum += lum[y][x] * cosTable[u][x]
			}
			rowPass[y][u] = sum
		}
	}

	out := make([]float64, 0, blockSize*blockSize)
	for v := 0; v < blockSize; v++ {
		for u := 0; u < blockSize; u++ {
			var sum float64
			for y := 0; y < sampleSize; y++ {
				sum += rowPass[y][u] * cosTable[v][y]
			}
			out = append(out, sum)
		}
	}
	return out
}

func medianOf(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Distance is the number of differing bits.
func Distance(a, b Hash) int {
	return bits.OnesCount64(uint64(a ^ b))
}

// Similarity returns 1 - hamming(a, b)/64.
func Similarity(a, b Hash) float64 {
	return 1 - float64(Distance(a, b))/64
}
