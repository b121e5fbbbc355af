package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/devHaitham481/A-Team/internal/models"
)

// ObjectStoreConfig configures an ObjectStore.
type ObjectStoreConfig struct {
	Endpoint        string
	AccessKey       string
	SecretKey       string
	UseSSL          bool
	RecordingBucket string
	ArtifactBucket  string
}

// ObjectStore reads recordings from one bucket and writes key frames and
// manifests to another.
type ObjectStore struct {
	client          *miniogo.Client
	recordingBucket string
	artifactBucket  string
	logger          *slog.Logger
}

func NewObjectStore(cfg ObjectStoreConfig, logger *slog.Logger) (*ObjectStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &ObjectStore{
		client:          client,
		recordingBucket: cfg.RecordingBucket,
		artifactBucket:  cfg.ArtifactBucket,
		logger:          logger,
	}, nil
}

func (s *ObjectStore) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.recordingBucket, s.artifactBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, miniogo.MakeBucketOptions{}); err != nil {
				return fmt.Errorf("create bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// DownloadRecording copies the object at key to destPath.
func (s *ObjectStore) DownloadRecording(ctx context.Context, key, destPath string) error {
	if err := s.client.FGetObject(ctx, s.recordingBucket, key, destPath, miniogo.GetObjectOptions{}); err != nil {
		return fmt.Errorf("download recording %s: %w", key, err)
	}
	return nil
}

// UploadRecording copies the local file at srcPath to key in the recording
// bucket.
func (s *ObjectStore) UploadRecording(ctx context.Context, key, srcPath string) error {
	if _, err := s.client.FPutObject(ctx, s.recordingBucket, key, srcPath, miniogo.PutObjectOptions{}); err != nil {
		return fmt.Errorf("upload recording %s: %w", key, err)
	}
	s.logger.Info("recording uploaded", "bucket", s.recordingBucket, "key", key)
	return nil
}

// Save uploads every frame as PNG and the manifest under <name>/ in the
// artifact bucket. It returns the manifest key.
func (s *ObjectStore) Save(ctx context.Context, name string, rec *models.ProcessedRecording) (string, error) {
	for _, f := range rec.Frames {
		if f.Image == nil {
			continue
		}
		data, err := encodePNG(f.Image)
		if err != nil {
			return "", fmt.Errorf("encode frame %d: %w", f.Index, err)
		}
		if err := s.put(ctx, path.Join(name, FrameFileName(f.Index)), data, "image/png"); err != nil {
			return "", err
		}
	}

	manifest, err := json.MarshalIndent(NewManifest(name, rec), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}
	key := path.Join(name, "manifest.json")
	if err := s.put(ctx, key, manifest, "application/json"); err != nil {
		return "", err
	}

	s.logger.Info("artifacts uploaded", "bucket", s.artifactBucket, "key", key, "frames", len(rec.Frames))
	return key, nil
}

func (s *ObjectStore) put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.artifactBucket, key, bytes.NewReader(data), int64(len(data)), miniogo.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}
