// Package transcript turns timed words into sentence segments and attaches
// them to key frames.
package transcript

import (
	"strings"

	"github.com/devHaitham481/A-Team/internal/models"
)

// maxPause is the longest silence, in seconds, tolerated inside a segment.
const maxPause = 0.5

// Group merges consecutive words into segments. A segment closes after a word
// ending in '.', '?' or '!', when the next word starts more than maxPause
// seconds after this one ends, or at the last word.
func Group(words []models.Word) []models.TranscriptSegment {
	if len(words) == 0 {
		return nil
	}

	var (
		segments []models.TranscriptSegment
		current  []string
		start    float64
	)

	for i, w := range words {
		if len(current) == 0 {
			start = w.Start
		}
		if text := strings.TrimSpace(w.Text); text != "" {
			current = append(current, text)
		}

		isLast := i == len(words)-1
		if !isLast && !endsSentence(w.Text) && words[i+1].Start-w.End <= maxPause {
			continue
		}

		if len(current) > 0 {
			segments = append(segments, models.TranscriptSegment{
				Text:      strings.Join(current, " "),
				StartTime: start,
				EndTime:   w.End,
			})
		}
		current = nil
	}

	return segments
}

func endsSentence(text string) bool {
	text = strings.TrimSpace(text)
	return strings.HasSuffix(text, ".") ||
		strings.HasSuffix(text, "?") ||
		strings.HasSuffix(text, "!")
}
