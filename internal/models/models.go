package models

import (
	"image"
	"strings"
	"time"
)

// ExtractedFrame is a still sampled from the recording at a constant rate.
type ExtractedFrame struct {
	Image     image.Image
	Timestamp float64 // seconds, index / framesPerSecond
}

// Word is one token from the speech-to-text response.
type Word struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Type  string  `json:"type,omitempty"` // "word", "spacing", "audio_event"
}

// TranscriptSegment is a sentence-like run of words.
type TranscriptSegment struct {
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

// AnnotatedFrame is a key frame with the narration spoken during its window.
type AnnotatedFrame struct {
	Image      image.Image `json:"-"`
	Timestamp  float64     `json:"timestamp"`
	Index      int         `json:"index"`
	Transcript *string     `json:"transcript"` // nil when nothing was said, never ""
	Hash       uint64      `json:"hash"`
}

// RecordingMetadata describes how a ProcessedRecording was derived.
type RecordingMetadata struct {
	Duration           float64   `json:"duration"`
	OriginalFrameCount int       `json:"original_frame_count"`
	SelectedFrameCount int       `json:"selected_frame_count"`
	ProcessedAt        time.Time `json:"processed_at"`
}

// ProcessedRecording is the finished artifact of one pipeline run.
type ProcessedRecording struct {
	Frames   []AnnotatedFrame  `json:"frames"`
	Metadata RecordingMetadata `json:"metadata"`
}

// FullTranscript joins every non-nil frame transcript with single spaces.
func (r *ProcessedRecording) FullTranscript() string {
	parts := make([]string, 0, len(r.Frames))
	for _, f := range r.Frames {
		if f.Transcript != nil {
			parts = append(parts, *f.Transcript)
		}
	}
	return strings.Join(parts, " ")
}

// FrameDescription is a vision model's account of one key frame.
type FrameDescription struct {
	Index       int     `json:"index"`
	Timestamp   float64 `json:"timestamp"`
	Transcript  *string `json:"transcript"`
	Description string  `json:"description"`
}

// FrameMatch is a stored key frame returned by a similarity search.
type FrameMatch struct {
	Recording  string  `json:"recording"`
	Index      int     `json:"index"`
	Timestamp  float64 `json:"timestamp"`
	Transcript *string `json:"transcript"`
	Distance   int     `json:"distance"`
	Similarity float64 `json:"similarity"`
}
