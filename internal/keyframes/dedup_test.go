package keyframes

import (
	"context"
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/phash"
)

// tagged returns a 1x1 frame whose gray level identifies it to fakeHash.
func tagged(id uint8, ts float64) models.ExtractedFrame {
	img := image.NewGray(image.Rect(0, 0, 1, 1))
	img.SetGray(0, 0, color.Gray{Y: id})
	return models.ExtractedFrame{Image: img, Timestamp: ts}
}

func idOf(img image.Image) uint8 {
	return img.(*image.Gray).GrayAt(0, 0).Y
}

// hashTable maps frame ids to fixed hashes.
func hashTable(table map[uint8]phash.Hash) HashFunc {
	return func(img image.Image) phash.Hash { return table[idOf(img)] }
}

func timestamps(frames []models.ExtractedFrame) []float64 {
	out := make([]float64, len(frames))
	for i, f := range frames {
		out[i] = f.Timestamp
	}
	return out
}

func TestDeduplicate_ShortInputUnchanged(t *testing.T) {
	d := NewDeduplicatorFunc(hashTable(nil))
	for n := 0; n <= 2; n++ {
		frames := make([]models.ExtractedFrame, n)
		for i := range frames {
			frames[i] = tagged(1, float64(i))
		}
		res, err := d.Deduplicate(context.Background(), frames, 0.9)
		require.NoError(t, err)
		assert.Equal(t, frames, res.Frames)
		assert.Len(t, res.Hashes, n)
	}
}

// Twelve frames in five visual groups; near-duplicates share a hash.
func TestDeduplicate_ScenarioA(t *testing.T) {
	groups := []uint8{0, 0, 0, 1, 1, 2, 2, 2, 3, 3, 3, 4}
	table := map[uint8]phash.Hash{}
	var frames []models.ExtractedFrame
	for i, g := range groups {
		id := uint8(i + 1)
		// Distinct groups differ in 16 bits, well under the 0.90 threshold.
		table[id] = phash.Hash(0xffff) << (uint(g) * 12)
		frames = append(frames, tagged(id, float64(i)))
	}

	res, err := NewDeduplicatorFunc(hashTable(table)).Deduplicate(context.Background(), frames, 0.90)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 3, 5, 8, 11}, timestamps(res.Frames))
	assert.Equal(t, frames[0], res.Frames[0])
	assert.Equal(t, frames[11], res.Frames[len(res.Frames)-1])
	assert.Len(t, res.Hashes, len(res.Frames))

	// All five survive selection untouched.
	assert.Equal(t, res.Frames, Select(res.Frames, 3, 10))
}

func TestDeduplicate_ComparesAgainstLastKept(t *testing.T) {
	// Each frame drifts 4 bits from its predecessor: neighbours are 0.9375
	// similar, but frame 3 is 12 bits (0.8125) away from frame 0.
	table := map[uint8]phash.Hash{
		1: 0x0000,
		2: 0x000f,
		3: 0x00ff,
		4: 0x0fff,
		5: 0xffff,
		6: 0xffff,
	}
	var frames []models.ExtractedFrame
	for id := uint8(1); id <= 6; id++ {
		frames = append(frames, tagged(id, float64(id-1)))
	}

	res, err := NewDeduplicatorFunc(hashTable(table)).Deduplicate(context.Background(), frames, 0.9)
	require.NoError(t, err)

	// Comparing with the immediate predecessor would drop every interior
	// frame; comparing with the last kept one keeps frames 3 and 5.
	assert.Equal(t, []float64{0, 2, 4, 5}, timestamps(res.Frames))
}

func TestDeduplicate_AlwaysKeepsLast(t *testing.T) {
	var frames []models.ExtractedFrame
	for i := 0; i < 6; i++ {
		frames = append(frames, tagged(9, float64(i)))
	}

	res, err := NewDeduplicatorFunc(hashTable(map[uint8]phash.Hash{9: 0xabc})).Deduplicate(context.Background(), frames, 0.9)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 5}, timestamps(res.Frames))
}

func TestDeduplicate_ThresholdZeroDropsInterior(t *testing.T) {
	frames := []models.ExtractedFrame{tagged(1, 0), tagged(2, 1), tagged(3, 2)}
	table := map[uint8]phash.Hash{1: 0, 2: ^phash.Hash(0), 3: 0}

	res, err := NewDeduplicatorFunc(hashTable(table)).Deduplicate(context.Background(), frames, 0)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2}, timestamps(res.Frames))
}

func blocky(seed int64) *image.Gray {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewGray(image.Rect(0, 0, 128, 128))
	for by := 0; by < 8; by++ {
		for bx := 0; bx < 8; bx++ {
			v := uint8(rng.Intn(256))
			for y := by * 16; y < (by+1)*16; y++ {
				for x := bx * 16; x < (bx+1)*16; x++ {
					img.SetGray(x, y, color.Gray{Y: v})
				}
			}
		}
	}
	return img
}

func TestDeduplicate_RealHashes(t *testing.T) {
	a, b := blocky(11), blocky(12)
	frames := []models.ExtractedFrame{
		{Image: a, Timestamp: 0},
		{Image: a, Timestamp: 1},
		{Image: b, Timestamp: 2},
		{Image: b, Timestamp: 3},
		{Image: b, Timestamp: 4},
	}

	res, err := NewDeduplicator(2).Deduplicate(context.Background(), frames, 0.9)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 2, 4}, timestamps(res.Frames))
	assert.Equal(t, phash.Compute(a), res.Hashes[0])
}
