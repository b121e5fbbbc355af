package transcript

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devHaitham481/A-Team/internal/models"
)

func word(text string, start, end float64) models.Word {
	return models.Word{Text: text, Start: start, End: end, Type: "word"}
}

func TestGroup_PunctuationAndGap(t *testing.T) {
	words := []models.Word{
		word("So", 0.0, 0.15),
		word("I'm", 0.15, 0.28),
		word("clicking.", 0.28, 0.60),
		word("Then", 3.0, 3.2),
	}

	assert.Equal(t, []models.TranscriptSegment{
		{Text: "So I'm clicking.", StartTime: 0.0, EndTime: 0.60},
		{Text: "Then", StartTime: 3.0, EndTime: 3.2},
	}, Group(words))
}

func TestGroup_Boundaries(t *testing.T) {
	tests := []struct {
		name  string
		words []models.Word
		want  []string
	}{
		{name: "empty", words: nil, want: nil},
		{name: "single word", words: []models.Word{word("hi", 0, 0.2)}, want: []string{"hi"}},
		{
			name:  "question and exclamation",
			words: []models.Word{word("Really?", 0, 0.3), word("Yes!", 0.4, 0.6), word("ok", 0.7, 0.8)},
			want:  []string{"Really?", "Yes!", "ok"},
		},
		{
			name:  "gap of exactly half a second stays open",
			words: []models.Word{word("one", 0, 0.5), word("two", 1.0, 1.2)},
			want:  []string{"one two"},
		},
		{
			name:  "gap just over half a second closes",
			words: []models.Word{word("one", 0, 0.5), word("two", 1.01, 1.2)},
			want:  []string{"one", "two"},
		},
		{
			name:  "comma does not close",
			words: []models.Word{word("first,", 0, 0.3), word("second", 0.4, 0.6)},
			want:  []string{"first, second"},
		},
		{
			name:  "surrounding whitespace trimmed",
			words: []models.Word{word(" lead", 0, 0.3), word("trail. ", 0.4, 0.6), word("next", 0.7, 0.9)},
			want:  []string{"lead trail.", "next"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, s := range Group(tt.words) {
				got = append(got, s.Text)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGroup_TimesComeFromFirstAndLastWord(t *testing.T) {
	segs := Group([]models.Word{word("a", 1.0, 1.1), word("b", 1.2, 1.4), word("c.", 1.5, 1.9)})
	require.Len(t, segs, 1)
	assert.Equal(t, 1.0, segs[0].StartTime)
	assert.Equal(t, 1.9, segs[0].EndTime)
}

func frames(ts ...float64) []models.ExtractedFrame {
	out := make([]models.ExtractedFrame, len(ts))
	for i, t := range ts {
		out[i] = models.ExtractedFrame{Timestamp: t}
	}
	return out
}

func transcripts(annotated []models.AnnotatedFrame) []*string {
	out := make([]*string, len(annotated))
	for i, a := range annotated {
		out[i] = a.Transcript
	}
	return out
}

func ptr(s string) *string { return &s }

func TestAnchor_Windows(t *testing.T) {
	segs := []models.TranscriptSegment{
		{Text: "intro.", StartTime: 0.0, EndTime: 1.0},
		{Text: "still first.", StartTime: 4.99, EndTime: 6.0},
		{Text: "boundary.", StartTime: 5.0, EndTime: 5.5},
		{Text: "tail.", StartTime: 99.0, EndTime: 100.0},
	}

	got := Anchor(frames(0, 5, 10), segs)

	require.Len(t, got, 3)
	assert.Equal(t, []*string{ptr("intro. still first."), ptr("boundary."), ptr("tail.")}, transcripts(got))
	for i, f := range got {
		assert.Equal(t, i, f.Index)
	}
	assert.Equal(t, []float64{0, 5, 10}, []float64{got[0].Timestamp, got[1].Timestamp, got[2].Timestamp})
}

func TestAnchor_SilentFramesAreNil(t *testing.T) {
	got := Anchor(frames(0, 5, 10), []models.TranscriptSegment{{Text: "only.", StartTime: 6, EndTime: 7}})

	assert.Nil(t, got[0].Transcript)
	assert.Equal(t, ptr("only."), got[1].Transcript)
	assert.Nil(t, got[2].Transcript)
}

func TestAnchor_NoSegments(t *testing.T) {
	got := Anchor(frames(0, 1), nil)
	assert.Equal(t, []*string{nil, nil}, transcripts(got))
}

func TestAnchor_BlankSegmentsIgnored(t *testing.T) {
	got := Anchor(frames(0), []models.TranscriptSegment{{Text: "  ", StartTime: 0}})
	assert.Nil(t, got[0].Transcript)
}

func TestAnchor_BeforeFirstFrame(t *testing.T) {
	got := Anchor(frames(2, 4), []models.TranscriptSegment{{Text: "early.", StartTime: 0.5}})
	assert.Equal(t, ptr("early."), got[0].Transcript)
}

func TestAnchor_NoFrames(t *testing.T) {
	assert.Empty(t, Anchor(nil, []models.TranscriptSegment{{Text: "lost", StartTime: 0}}))
}

func TestAnchor_ConservesWords(t *testing.T) {
	var words []models.Word
	for i := 0; i < 40; i++ {
		text := "w"
		if i%7 == 6 {
			text = "w."
		}
		start := float64(i) * 0.4
		words = append(words, word(text, start, start+0.3))
	}
	segs := Group(words)

	got := Anchor(frames(0, 3, 3.5, 9, 14), segs)

	total := 0
	for _, f := range got {
		if f.Transcript != nil {
			assert.NotEmpty(t, *f.Transcript)
			total += len(strings.Fields(*f.Transcript))
		}
	}
	assert.Equal(t, len(words), total)
}
