// Package keyframes reduces a sampled frame sequence to a short list of
// visually distinct, representative frames.
package keyframes

import (
	"context"
	"image"

	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/phash"
)

// HashFunc fingerprints a single image.
type HashFunc func(image.Image) phash.Hash

// Deduplicator drops frames that look like the last frame it kept.
type Deduplicator struct {
	hash    HashFunc
	workers int
}

// NewDeduplicator returns a Deduplicator hashing with phash.Compute on the
// given number of workers.
func NewDeduplicator(workers int) *Deduplicator {
	return &Deduplicator{workers: workers}
}

// NewDeduplicatorFunc returns a Deduplicator that fingerprints with fn,
// sequentially.
func NewDeduplicatorFunc(fn HashFunc) *Deduplicator {
	return &Deduplicator{hash: fn, workers: 1}
}

// Result is a deduplicated sequence together with the hash of every kept
// frame.
type Result struct {
	Frames []models.ExtractedFrame
	Hashes []phash.Hash
}

// Deduplicate keeps the first and last frame and every interior frame whose
// similarity to the most recently kept frame is below threshold. Sequences
// of two or fewer frames are returned unchanged.
func (d *Deduplicator) Deduplicate(ctx context.Context, frames []models.ExtractedFrame, threshold float64) (Result, error) {
	hashes, err := d.hashAll(ctx, frames)
	if err != nil {
		return Result{}, err
	}

	if len(frames) <= 2 {
		return Result{Frames: frames, Hashes: hashes}, nil
	}

	last := len(frames) - 1
	kept := []models.ExtractedFrame{frames[0]}
	keptHashes := []phash.Hash{hashes[0]}
	lastKept := hashes[0]

	for i := 1; i < last; i++ {
		if phash.Similarity(hashes[i], lastKept) < threshold {
			kept = append(kept, frames[i])
			keptHashes = append(keptHashes, hashes[i])
			lastKept = hashes[i]
		}
	}

	kept = append(kept, frames[last])
	keptHashes = append(keptHashes, hashes[last])

	return Result{Frames: kept, Hashes: keptHashes}, nil
}

func (d *Deduplicator) hashAll(ctx context.Context, frames []models.ExtractedFrame) ([]phash.Hash, error) {
	if d.hash != nil {
		hashes := make([]phash.Hash, len(frames))
		for i, f := range frames {
			hashes[i] = d.hash(f.Image)
		}
		return hashes, nil
	}

	images := make([]image.Image, len(frames))
	for i, f := range frames {
		images[i] = f.Image
	}
	return phash.HashAll(ctx, images, d.workers)
}
