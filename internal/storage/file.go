package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/devHaitham481/A-Team/internal/models"
)

// FileStore writes each recording to <root>/<name>/ as PNG frames plus a
// manifest.json.
type FileStore struct {
	root   string
	logger *slog.Logger
}

func NewFileStore(root string, logger *slog.Logger) *FileStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileStore{root: root, logger: logger}
}

// Dir returns the directory a recording named name is written to.
func (s *FileStore) Dir(name string) string {
	return filepath.Join(s.root, name)
}

func (s *FileStore) Save(ctx context.Context, name string, rec *models.ProcessedRecording) (string, error) {
	dir := s.Dir(name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory for recording: %w", err)
	}

	for _, f := range rec.Frames {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if f.Image == nil {
			continue
		}
		data, err := encodePNG(f.Image)
		if err != nil {
			return "", fmt.Errorf("encode frame %d: %w", f.Index, err)
		}
		if err := writeFileAtomic(filepath.Join(dir, FrameFileName(f.Index)), data, 0o644); err != nil {
			return "", fmt.Errorf("write frame %d: %w", f.Index, err)
		}
	}

	manifest, err := json.MarshalIndent(NewManifest(name, rec), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	path := filepath.Join(dir, "manifest.json")
	if err := writeFileAtomic(path, manifest, 0o644); err != nil {
		return "", fmt.Errorf("write manifest: %w", err)
	}

	s.logger.Info("recording saved", "dir", dir, "frames", len(rec.Frames))
	return path, nil
}

// Load reads back the manifest of a saved recording.
func (s *FileStore) Load(name string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(name), "manifest.json"))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
