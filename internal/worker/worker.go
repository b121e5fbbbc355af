// Package worker processes queued recordings: download, run the pipeline,
// persist the result and report job status.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/devHaitham481/A-Team/internal/metrics"
	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/storage"
)

type JobRepository interface {
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJob(ctx context.Context, job *models.Job) error
	FindJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type RecordingSource interface {
	DownloadRecording(ctx context.Context, key, destPath string) error
}

type Processor interface {
	Process(ctx context.Context, videoPath string) (*models.ProcessedRecording, error)
}

type StatusPublisher interface {
	PublishStatus(ctx context.Context, msg []byte) error
}

type DLQPublisher interface {
	PublishToDLQ(ctx context.Context, msg []byte, reason string) error
}

// Deps are the collaborators of a ProcessRecordingUseCase. Index is optional.
type Deps struct {
	Jobs      JobRepository
	Source    RecordingSource
	Processor Processor
	Artifacts storage.Store
	Index     storage.Store
	Status    StatusPublisher
	DLQ       DLQPublisher
}

type Config struct {
	TempDir     string
	MaxAttempts int
}

type ProcessRecordingUseCase struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger
}

func NewProcessRecordingUseCase(deps Deps, cfg Config, logger *slog.Logger) *ProcessRecordingUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &ProcessRecordingUseCase{deps: deps, cfg: cfg, logger: logger}
}

// Execute handles one raw job message. A nil return acks the message; an
// error requeues it.
func (uc *ProcessRecordingUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("worker")
	ctx, span := tracer.Start(ctx, "ProcessRecordingUseCase.Execute")
	defer span.End()

	start := time.Now()

	var msg models.JobMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil || msg.RecordingKey == "" {
		if err == nil {
			err = errors.New("missing recording_key")
		}
		uc.logger.Error("invalid job message", "err", err, "body", string(rawMsg))
		_ = uc.deps.DLQ.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		metrics.RecordingsProcessedTotal.WithLabelValues("dlq").Inc()
		return nil
	}
	if msg.JobID == uuid.Nil {
		msg.JobID = uuid.New()
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.recording_key", msg.RecordingKey),
	)
	log := uc.logger.With("job_id", msg.JobID.String(), "recording_key", msg.RecordingKey)

	job, err := uc.deps.Jobs.FindJob(ctx, msg.JobID)
	if err != nil {
		if !errors.Is(err, storage.ErrJobNotFound) {
			return fmt.Errorf("find job: %w", err)
		}
		job = models.NewJob(msg.RecordingKey, uc.cfg.MaxAttempts)
		job.ID = msg.JobID
		if err := uc.deps.Jobs.CreateJob(ctx, job); err != nil {
			log.Error("failed to create job record", "err", err)
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted retries, sending to DLQ")
		return uc.handlePermanentFailure(ctx, job, rawMsg, "max attempts exceeded", log)
	}

	job.MarkProcessing()
	if err := uc.deps.Jobs.UpdateJob(ctx, job); err != nil {
		log.Error("failed to update job to PROCESSING", "err", err)
		return fmt.Errorf("update job: %w", err)
	}
	uc.publishStatus(ctx, job, log)

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.run(ctx, job, rawMsg, log); err != nil {
		return err
	}

	metrics.StageDuration.WithLabelValues("job").Observe(time.Since(start).Seconds())
	return nil
}

func (uc *ProcessRecordingUseCase) run(ctx context.Context, job *models.Job, rawMsg []byte, log *slog.Logger) error {
	tracer := otel.Tracer("worker")

	workDir := filepath.Join(uc.cfg.TempDir, "job-"+job.ID.String())
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return fmt.Errorf("create workdir: %w", err)
	}
	defer os.RemoveAll(workDir)

	dlStart := time.Now()
	dlCtx, spanDl := tracer.Start(ctx, "download_recording")
	videoPath := filepath.Join(workDir, "input"+path.Ext(job.RecordingKey))
	err := uc.deps.Source.DownloadRecording(dlCtx, job.RecordingKey, videoPath)
	spanDl.End()
	if err != nil {
		log.Error("failed to download recording", "err", err)
		return uc.handleRetryableFailure(ctx, job, rawMsg, "download_recording: "+err.Error(), log)
	}
	metrics.StageDuration.WithLabelValues("download").Observe(time.Since(dlStart).Seconds())

	rec, err := uc.deps.Processor.Process(ctx, videoPath)
	if err != nil {
		log.Error("pipeline failed", "err", err)
		return uc.handleRetryableFailure(ctx, job, rawMsg, "process: "+err.Error(), log)
	}

	name := storage.RecordingName(job.RecordingKey, rec.Metadata.ProcessedAt)

	upStart := time.Now()
	upCtx, spanUp := tracer.Start(ctx, "store_artifacts")
	manifestKey, err := uc.deps.Artifacts.Save(upCtx, name, rec)
	spanUp.End()
	if err != nil {
		log.Error("failed to store artifacts", "err", err)
		return uc.handleRetryableFailure(ctx, job, rawMsg, "store_artifacts: "+err.Error(), log)
	}
	metrics.StageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	if uc.deps.Index != nil {
		if _, err := uc.deps.Index.Save(ctx, name, rec); err != nil {
			// Indexing failures do not fail the job.
			log.Warn("failed to index key frames", "err", err)
		}
	}

	job.MarkCompleted(manifestKey, rec.Metadata.SelectedFrameCount, rec.Metadata.Duration)
	if err := uc.deps.Jobs.UpdateJob(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", "err", err)
		return fmt.Errorf("update job completed: %w", err)
	}
	uc.publishStatus(ctx, job, log)

	log.Info("job completed",
		"frames", rec.Metadata.SelectedFrameCount,
		"duration_secs", rec.Metadata.Duration,
		"manifest_key", manifestKey)
	return nil
}

func (uc *ProcessRecordingUseCase) handleRetryableFailure(ctx context.Context, job *models.Job, rawMsg []byte, errMsg string, log *slog.Logger) error {
	job.MarkFailed(errMsg)
	_ = uc.deps.Jobs.UpdateJob(ctx, job)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, rawMsg, errMsg, log)
	}

	metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *ProcessRecordingUseCase) handlePermanentFailure(ctx context.Context, job *models.Job, rawMsg []byte, errMsg string, log *slog.Logger) error {
	job.MarkFailed(errMsg)
	_ = uc.deps.Jobs.UpdateJob(ctx, job)

	if err := uc.deps.DLQ.PublishToDLQ(ctx, rawMsg, errMsg); err != nil {
		log.Error("failed to publish to DLQ", "err", err)
	}
	uc.publishStatus(ctx, job, log)

	metrics.RecordingsProcessedTotal.WithLabelValues("dlq").Inc()
	return nil
}

func (uc *ProcessRecordingUseCase) publishStatus(ctx context.Context, job *models.Job, log *slog.Logger) {
	data, _ := json.Marshal(models.JobStatusMessage{
		JobID:        job.ID,
		Status:       job.Status,
		RecordingKey: job.RecordingKey,
		ManifestKey:  job.ManifestKey,
		FrameCount:   job.FrameCount,
		Duration:     job.Duration,
		ErrorMessage: job.ErrorMessage,
		Attempt:      job.Attempt,
		MaxAttempts:  job.MaxAttempts,
	})
	if err := uc.deps.Status.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", "err", err)
	}
}
