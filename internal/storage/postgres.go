package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/phash"
)

// ErrJobNotFound is returned by FindJob for unknown ids.
var ErrJobNotFound = errors.New("job not found")

// PostgresStore keeps recordings, key frames and worker jobs in PostgreSQL.
// Frame hashes are stored as 64-dimensional 0/1 vectors so pgvector's L2
// ordering matches Hamming distance.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore connects to the database at url.
func NewPostgresStore(ctx context.Context, url string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{pool: pool, logger: logger}, nil
}

// Close closes the database connection
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// InitSchema creates the extension, tables and indexes if they don't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for vector extension: %w", err)
	}

	if !exists {
		if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			return fmt.Errorf("failed to create vector extension: %w", err)
		}
	}

	_, err = s.pool.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS recordings (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL UNIQUE,
            duration DOUBLE PRECISION NOT NULL,
            original_frame_count INTEGER NOT NULL,
            selected_frame_count INTEGER NOT NULL,
            full_transcript TEXT NOT NULL,
            processed_at TIMESTAMPTZ NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS frames (
            id SERIAL PRIMARY KEY,
            recording_id INTEGER NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
            frame_index INTEGER NOT NULL,
            timestamp DOUBLE PRECISION NOT NULL,
            transcript TEXT,
            hash BIGINT NOT NULL,
            hash_bits vector(64) NOT NULL,
            UNIQUE(recording_id, frame_index)
        );

        CREATE TABLE IF NOT EXISTS jobs (
            id UUID PRIMARY KEY,
            recording_key TEXT NOT NULL,
            manifest_key TEXT NOT NULL DEFAULT '',
            status VARCHAR(20) NOT NULL,
            frame_count INTEGER NOT NULL DEFAULT 0,
            duration DOUBLE PRECISION NOT NULL DEFAULT 0,
            attempt INTEGER NOT NULL DEFAULT 0,
            max_attempts INTEGER NOT NULL,
            error_message TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            completed_at TIMESTAMPTZ
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_frames_recording_id ON frames(recording_id);
        CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}

// Save replaces any recording stored under name.
func (s *PostgresStore) Save(ctx context.Context, name string, rec *models.ProcessedRecording) (string, error) {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var recordingID int
		err := tx.QueryRow(ctx,
			`INSERT INTO recordings
            (name, duration, original_frame_count, selected_frame_count, full_transcript, processed_at, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            ON CONFLICT (name) DO UPDATE SET
                duration = EXCLUDED.duration,
                original_frame_count = EXCLUDED.original_frame_count,
                selected_frame_count = EXCLUDED.selected_frame_count,
                full_transcript = EXCLUDED.full_transcript,
                processed_at = EXCLUDED.processed_at
            RETURNING id`,
			name, rec.Metadata.Duration, rec.Metadata.OriginalFrameCount, rec.Metadata.SelectedFrameCount,
			rec.FullTranscript(), rec.Metadata.ProcessedAt, time.Now().UTC()).Scan(&recordingID)
		if err != nil {
			return fmt.Errorf("failed to store recording: %w", err)
		}

		if _, err := tx.Exec(ctx, "DELETE FROM frames WHERE recording_id = $1", recordingID); err != nil {
			return fmt.Errorf("failed to clear frames: %w", err)
		}

		batch := &pgx.Batch{}
		for _, f := range rec.Frames {
			batch.Queue(
				`INSERT INTO frames (recording_id, frame_index, timestamp, transcript, hash, hash_bits)
                VALUES ($1, $2, $3, $4, $5, $6)`,
				recordingID, f.Index, f.Timestamp, f.Transcript, int64(f.Hash),
				pgvector.NewVector(phash.Hash(f.Hash).Bits()))
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to store frames: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.logger.Info("recording stored", "recording", name, "frames", len(rec.Frames))
	return "postgres:recordings/" + name, nil
}

// SearchSimilarFrames returns the stored frames closest to hash, nearest
// first.
func (s *PostgresStore) SearchSimilarFrames(ctx context.Context, hash phash.Hash, limit int) ([]models.FrameMatch, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT r.name, f.frame_index, f.timestamp, f.transcript, f.hash
        FROM frames f
        JOIN recordings r ON f.recording_id = r.id
        ORDER BY f.hash_bits <-> $1, r.name, f.frame_index
        LIMIT $2`,
		pgvector.NewVector(hash.Bits()), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search similar frames: %w", err)
	}
	defer rows.Close()

	var results []models.FrameMatch
	for rows.Next() {
		var (
			m      models.FrameMatch
			stored int64
		)
		if err := rows.Scan(&m.Recording, &m.Index, &m.Timestamp, &m.Transcript, &stored); err != nil {
			return nil, fmt.Errorf("failed to scan search results: %w", err)
		}
		m.Distance = phash.Distance(hash, phash.Hash(uint64(stored)))
		m.Similarity = phash.Similarity(hash, phash.Hash(uint64(stored)))
		results = append(results, m)
	}

	return results, rows.Err()
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (
            id, recording_key, manifest_key, status, frame_count, duration,
            attempt, max_attempts, error_message, created_at, updated_at, completed_at
        ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		job.ID, job.RecordingKey, job.ManifestKey, string(job.Status), job.FrameCount, job.Duration,
		job.Attempt, job.MaxAttempts, job.ErrorMessage, job.CreatedAt, job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE jobs SET
            status=$2, manifest_key=$3, frame_count=$4, duration=$5,
            attempt=$6, error_message=$7, updated_at=$8, completed_at=$9
        WHERE id=$1`,
		job.ID, string(job.Status), job.ManifestKey, job.FrameCount, job.Duration,
		job.Attempt, job.ErrorMessage, job.UpdatedAt, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job := &models.Job{}
	var status string
	err := s.pool.QueryRow(ctx,
		`SELECT id, recording_key, manifest_key, status, frame_count, duration,
            attempt, max_attempts, error_message, created_at, updated_at, completed_at
        FROM jobs WHERE id=$1`, id).Scan(
		&job.ID, &job.RecordingKey, &job.ManifestKey, &status, &job.FrameCount, &job.Duration,
		&job.Attempt, &job.MaxAttempts, &job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = models.JobStatus(status)
	return job, nil
}
