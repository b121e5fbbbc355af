package models

import (
	"errors"
	"fmt"
)

// Video branch failures. All of them abort a pipeline run.
var (
	ErrToolNotFound      = errors.New("media tool not found")
	ErrNoFramesExtracted = errors.New("no frames extracted from video")
)

// Audio branch failures. The orchestrator recovers from these by producing a
// recording without transcripts.
var (
	ErrNoAudioTrack      = errors.New("recording has no audio track")
	ErrInvalidCredential = errors.New("invalid transcription credential")
)

// ExtractionError reports a decode tool run that exited unsuccessfully.
type ExtractionError struct {
	Detail string
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("frame extraction failed: %s", e.Detail)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AudioExtractionError reports a transcode tool run that exited unsuccessfully.
type AudioExtractionError struct {
	Detail string
	Err    error
}

func (e *AudioExtractionError) Error() string {
	return fmt.Sprintf("audio extraction failed: %s", e.Detail)
}

func (e *AudioExtractionError) Unwrap() error { return e.Err }

// TranscriptionError reports a failed speech-to-text request. StatusCode is
// zero when no HTTP response was received.
type TranscriptionError struct {
	StatusCode int
	Detail     string
	Err        error
}

func (e *TranscriptionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transcription failed: status %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("transcription failed: %s", e.Detail)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Is lets rejected credentials match ErrInvalidCredential.
func (e *TranscriptionError) Is(target error) bool {
	return target == ErrInvalidCredential && (e.StatusCode == 401 || e.StatusCode == 403)
}
