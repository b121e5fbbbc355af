package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/phash"
)

const batchSize = 10 // Number of descriptions to batch write

// Store persists a processed recording under name and returns where the
// manifest was written.
type Store interface {
	Save(ctx context.Context, name string, rec *models.ProcessedRecording) (string, error)
}

// ManifestFrame describes one stored key frame.
type ManifestFrame struct {
	Index      int     `json:"index"`
	Timestamp  float64 `json:"timestamp"`
	Transcript *string `json:"transcript"`
	Hash       string  `json:"hash"`
	Image      string  `json:"image"`
}

// Manifest is the JSON document stored next to the frame images.
type Manifest struct {
	Recording      string                   `json:"recording"`
	Metadata       models.RecordingMetadata `json:"metadata"`
	FullTranscript string                   `json:"full_transcript"`
	Frames         []ManifestFrame          `json:"frames"`
}

// NewManifest builds the manifest for rec. Frame images are named
// frame_<index>.png.
func NewManifest(name string, rec *models.ProcessedRecording) Manifest {
	m := Manifest{
		Recording:      name,
		Metadata:       rec.Metadata,
		FullTranscript: rec.FullTranscript(),
		Frames:         make([]ManifestFrame, len(rec.Frames)),
	}
	for i, f := range rec.Frames {
		m.Frames[i] = ManifestFrame{
			Index:      f.Index,
			Timestamp:  f.Timestamp,
			Transcript: f.Transcript,
			Hash:       phash.Hash(f.Hash).String(),
			Image:      FrameFileName(f.Index),
		}
	}
	return m
}

func FrameFileName(index int) string {
	return fmt.Sprintf("frame_%02d.png", index)
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DescriptionWriter collects vision model descriptions of key frames.
type DescriptionWriter interface {
	// AddResult adds a single description
	AddResult(ctx context.Context, result models.FrameDescription) error

	// Flush ensures all pending descriptions are saved
	Flush() error
}

// descriptionLog appends descriptions to a JSON array on disk in batches.
type descriptionLog struct {
	results []models.FrameDescription
	mu      sync.Mutex
	path    string
}

// NewDescriptionLog writes descriptions to descriptions.json inside dir.
func NewDescriptionLog(dir string) *descriptionLog {
	return &descriptionLog{
		path: filepath.Join(dir, "descriptions.json"),
	}
}

// AddResult adds a result to the batch and flushes if the batch is full
func (s *descriptionLog) AddResult(ctx context.Context, result models.FrameDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, result)

	if len(s.results) >= batchSize {
		return s.flush()
	}
	return nil
}

// Flush writes all pending results to disk
func (s *descriptionLog) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flush()
}

func (s *descriptionLog) flush() error {
	if len(s.results) == 0 {
		return nil
	}

	var existing []models.FrameDescription
	if data, err := os.ReadFile(s.path); err == nil {
		if err := json.Unmarshal(data, &existing); err != nil {
			return fmt.Errorf("failed to unmarshal existing descriptions: %w", err)
		}
	}

	data, err := json.MarshalIndent(append(existing, s.results...), "", "  ")
	if err != nil {
		return err
	}
	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return err
	}

	s.results = nil
	return nil
}

// writeFileAtomic writes data to a temporary file in the destination
// directory and renames it over destPath.
func writeFileAtomic(destPath string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	_ = os.Chmod(tmpName, perm)

	if err := os.Rename(tmpName, destPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// RecordingName derives a store name from a video path and the time it was
// processed.
func RecordingName(videoPath string, at time.Time) string {
	base := filepath.Base(videoPath)
	base = base[:len(base)-len(filepath.Ext(base))]
	return fmt.Sprintf("%s_%s", base, at.UTC().Format("20060102T150405"))
}
