package transcript

import (
	"math"
	"strings"

	"github.com/devHaitham481/A-Team/internal/models"
)

// Anchor pairs each frame with the segments that start inside its window.
// Frame i owns [t_i, t_{i+1}); the last frame's window is open-ended.
// Segments starting before the first frame belong to the first frame.
// Frames without speech get a nil Transcript. frames must be sorted by
// timestamp.
func Anchor(frames []models.ExtractedFrame, segments []models.TranscriptSegment) []models.AnnotatedFrame {
	out := make([]models.AnnotatedFrame, len(frames))
	buckets := make([][]string, len(frames))

	if len(frames) > 0 {
		for _, seg := range segments {
			text := strings.TrimSpace(seg.Text)
			if text == "" {
				continue
			}
			i := owner(frames, seg.StartTime)
			buckets[i] = append(buckets[i], text)
		}
	}

	for i, f := range frames {
		out[i] = models.AnnotatedFrame{
			Image:     f.Image,
			Timestamp: f.Timestamp,
			Index:     i,
		}
		if len(buckets[i]) > 0 {
			text := strings.Join(buckets[i], " ")
			out[i].Transcript = &text
		}
	}
	return out
}

// owner returns the index of the frame whose window contains t.
func owner(frames []models.ExtractedFrame, t float64) int {
	for i := range frames {
		end := math.Inf(1)
		if i+1 < len(frames) {
			end = frames[i+1].Timestamp
		}
		if t < end {
			return i
		}
	}
	return len(frames) - 1
}
