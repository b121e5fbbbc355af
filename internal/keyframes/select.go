package keyframes

import "math"

// sampleRatio is the share of frames kept when a sequence is over budget.
const sampleRatio = 0.10

// SelectIndices returns the positions Select would keep from a sequence of n
// frames.
func SelectIndices(n, minFrames, maxFrames int) []int {
	if n <= maxFrames {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all
	}

	target := int(math.Round(float64(n) * sampleRatio))
	target = max(minFrames, min(target, maxFrames))
	// First and last are always kept.
	target = max(target, 2)

	last := n - 1
	indices := []int{0}
	seen := map[int]bool{0: true, last: true}

	step := float64(n-2) / float64(target-1)
	for i := 1; i <= target-2; i++ {
		idx := int(math.Round(float64(i) * step))
		if seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
	}

	return append(indices, last)
}

// Select reduces items to at most maxFrames representatives spread evenly
// across the sequence. Inputs already within budget are returned unchanged;
// minFrames is not enforced by padding. Collisions between computed
// positions can leave slightly fewer than the target count.
func Select[T any](items []T, minFrames, maxFrames int) []T {
	if len(items) <= maxFrames {
		return items
	}

	indices := SelectIndices(len(items), minFrames, maxFrames)
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = items[idx]
	}
	return out
}
