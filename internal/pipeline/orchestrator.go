// Package pipeline turns a finished screen recording into annotated key
// frames by running a video branch and an audio branch concurrently.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/devHaitham481/A-Team/internal/config"
	"github.com/devHaitham481/A-Team/internal/extractor"
	"github.com/devHaitham481/A-Team/internal/keyframes"
	"github.com/devHaitham481/A-Team/internal/media"
	"github.com/devHaitham481/A-Team/internal/metrics"
	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/phash"
	"github.com/devHaitham481/A-Team/internal/transcribe"
	"github.com/devHaitham481/A-Team/internal/transcript"
)

// FrameSource samples frames from a video file.
type FrameSource interface {
	Extract(ctx context.Context, videoPath string, framesPerSecond float64) ([]models.ExtractedFrame, error)
}

// AudioSource writes the audio track of a video to a temporary WAV file owned
// by the caller.
type AudioSource interface {
	Extract(ctx context.Context, videoPath string) (string, error)
}

// Transcriber converts an audio file into timed words.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) ([]models.Word, error)
}

// Deps are the collaborators of an Orchestrator. Deduplicator is optional.
type Deps struct {
	Frames       FrameSource
	Audio        AudioSource
	Transcriber  Transcriber
	Deduplicator *keyframes.Deduplicator
}

// Orchestrator runs the full pipeline. One Orchestrator may serve many
// sequential or concurrent Process calls; Status reflects the latest one.
type Orchestrator struct {
	cfg    config.PipelineConfig
	deps   Deps
	logger *slog.Logger

	mu     sync.Mutex
	status Status
}

// New creates an Orchestrator from explicit collaborators.
func New(cfg config.PipelineConfig, deps Deps, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Deduplicator == nil {
		deps.Deduplicator = keyframes.NewDeduplicator(cfg.HashWorkers)
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger}
}

// NewDefault wires the ffmpeg-backed extractors and the speech-to-text client
// described by cfg.
func NewDefault(cfg config.PipelineConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return New(cfg, Deps{
		Frames: extractor.New(cfg.DecodeToolPath, cfg.TempDir, cfg.ToolTimeout, logger.With("branch", "video")),
		Audio: media.NewAudioExtractor(media.AudioOptions{
			ToolPath:   cfg.TranscodeToolPath,
			TempDir:    cfg.TempDir,
			SampleRate: cfg.AudioSampleRate,
			Channels:   cfg.AudioChannels,
			Timeout:    cfg.ToolTimeout,
		}, logger.With("branch", "audio")),
		Transcriber: transcribe.New(transcribe.Options{
			URL:     cfg.TranscriptionURL,
			Model:   cfg.TranscriptionModel,
			APIKey:  cfg.APIKey,
			RPM:     cfg.TranscriptionRPM,
			Retries: cfg.TranscriptionRetries,
			Timeout: cfg.TranscriptionTimeout,
		}, logger.With("branch", "audio")),
	}, logger)
}

// Status returns a snapshot of the most recent run.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

func (o *Orchestrator) update(fn func(*Status)) {
	o.mu.Lock()
	fn(&o.status)
	o.mu.Unlock()
}

// videoResult is the output of the video branch.
type videoResult struct {
	frames        []models.ExtractedFrame
	hashes        []phash.Hash
	originalCount int
	duration      float64
}

// Process converts the recording at videoPath into annotated key frames. A
// video branch failure is returned and cancels the audio branch; audio branch
// failures only remove the narration. On success the source file is deleted
// unless RetainSource is set.
func (o *Orchestrator) Process(ctx context.Context, videoPath string) (*models.ProcessedRecording, error) {
	tracer := otel.Tracer("pipeline")
	ctx, span := tracer.Start(ctx, "Orchestrator.Process")
	defer span.End()
	span.SetAttributes(attribute.String("recording.path", videoPath))

	start := time.Now()
	log := o.logger.With("recording", filepath.Base(videoPath))
	log.Info("processing recording")

	o.update(func(s *Status) {
		*s = Status{State: StateProcessing, Video: BranchRunning, Audio: BranchRunning}
	})

	var (
		video    videoResult
		segments []models.TranscriptSegment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := o.runVideo(gctx, videoPath, log.With("branch", "video"))
		if err != nil {
			o.update(func(s *Status) { s.Video = BranchFailed })
			return err
		}
		video = res
		o.update(func(s *Status) { s.Video = BranchDone })
		return nil
	})
	g.Go(func() error {
		var ok bool
		segments, ok = o.runAudio(gctx, videoPath, log.With("branch", "audio"))
		o.update(func(s *Status) {
			if ok {
				s.Audio = BranchDone
			} else {
				s.Audio = BranchDegraded
			}
		})
		// Audio failures never cancel the video branch.
		return nil
	})

	if err := g.Wait(); err != nil {
		o.update(func(s *Status) {
			s.State = StateFailed
			s.Err = err
		})
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		metrics.RecordingsProcessedTotal.WithLabelValues("failed").Inc()
		log.Error("processing failed", "err", err)
		return nil, err
	}

	o.update(func(s *Status) { s.State = StateMerging })

	annotated := transcript.Anchor(video.frames, segments)
	for i := range annotated {
		annotated[i].Hash = uint64(video.hashes[i])
	}

	rec := &models.ProcessedRecording{
		Frames: annotated,
		Metadata: models.RecordingMetadata{
			Duration:           video.duration,
			OriginalFrameCount: video.originalCount,
			SelectedFrameCount: len(annotated),
			ProcessedAt:        time.Now().UTC(),
		},
	}

	if !o.cfg.RetainSource {
		if err := os.Remove(videoPath); err != nil {
			log.Warn("failed to delete source recording", "err", err)
		} else {
			log.Debug("source recording deleted")
		}
	}

	o.update(func(s *Status) { s.State = StateDone })
	metrics.RecordingsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	span.SetAttributes(
		attribute.Int("frames.original", rec.Metadata.OriginalFrameCount),
		attribute.Int("frames.selected", rec.Metadata.SelectedFrameCount),
		attribute.Int("segments", len(segments)),
	)

	log.Info("recording processed",
		"frames", rec.Metadata.SelectedFrameCount,
		"extracted", rec.Metadata.OriginalFrameCount,
		"segments", len(segments),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return rec, nil
}

func (o *Orchestrator) runVideo(ctx context.Context, videoPath string, log *slog.Logger) (videoResult, error) {
	tracer := otel.Tracer("pipeline")

	exStart := time.Now()
	exCtx, spanEx := tracer.Start(ctx, "extract_frames")
	frames, err := o.deps.Frames.Extract(exCtx, videoPath, o.cfg.FramesPerSecond)
	spanEx.End()
	if err != nil {
		return videoResult{}, err
	}
	if len(frames) == 0 {
		return videoResult{}, models.ErrNoFramesExtracted
	}
	metrics.StageDuration.WithLabelValues("extract_frames").Observe(time.Since(exStart).Seconds())
	metrics.FramesExtractedTotal.Add(float64(len(frames)))

	ddStart := time.Now()
	ddCtx, spanDd := tracer.Start(ctx, "deduplicate")
	deduped, err := o.deps.Deduplicator.Deduplicate(ddCtx, frames, o.cfg.SimilarityThreshold)
	spanDd.End()
	if err != nil {
		return videoResult{}, err
	}
	metrics.StageDuration.WithLabelValues("deduplicate").Observe(time.Since(ddStart).Seconds())

	indices := keyframes.SelectIndices(len(deduped.Frames), o.cfg.MinFrames, o.cfg.MaxFrames)
	selected := make([]models.ExtractedFrame, len(indices))
	hashes := make([]phash.Hash, len(indices))
	for i, idx := range indices {
		selected[i] = deduped.Frames[idx]
		hashes[i] = deduped.Hashes[idx]
	}
	metrics.FramesSelectedTotal.Add(float64(len(selected)))

	log.Debug("video branch finished",
		"extracted", len(frames),
		"distinct", len(deduped.Frames),
		"selected", len(selected))

	return videoResult{
		frames:        selected,
		hashes:        hashes,
		originalCount: len(frames),
		duration:      frames[len(frames)-1].Timestamp,
	}, nil
}

// runAudio returns the narration segments and whether narration was
// obtained. Every failure is logged and yields no segments.
func (o *Orchestrator) runAudio(ctx context.Context, videoPath string, log *slog.Logger) ([]models.TranscriptSegment, bool) {
	tracer := otel.Tracer("pipeline")

	axStart := time.Now()
	axCtx, spanAx := tracer.Start(ctx, "extract_audio")
	wavPath, err := o.deps.Audio.Extract(axCtx, videoPath)
	spanAx.End()
	if err != nil {
		o.audioFailed(log, err)
		return nil, false
	}
	defer func() {
		if err := os.Remove(wavPath); err != nil && !os.IsNotExist(err) {
			log.Warn("failed to remove audio file", "path", wavPath, "err", err)
		}
	}()
	metrics.StageDuration.WithLabelValues("extract_audio").Observe(time.Since(axStart).Seconds())

	txStart := time.Now()
	txCtx, spanTx := tracer.Start(ctx, "transcribe")
	words, err := o.deps.Transcriber.Transcribe(txCtx, wavPath)
	spanTx.End()
	if err != nil {
		o.audioFailed(log, err)
		return nil, false
	}
	metrics.StageDuration.WithLabelValues("transcribe").Observe(time.Since(txStart).Seconds())

	segments := transcript.Group(words)
	log.Debug("audio branch finished", "words", len(words), "segments", len(segments))
	return segments, true
}

func (o *Orchestrator) audioFailed(log *slog.Logger, err error) {
	reason := audioFailureReason(err)
	metrics.AudioFallbackTotal.WithLabelValues(reason).Inc()

	switch reason {
	case "no_audio":
		log.Info("recording has no audio; continuing without narration")
	case "cancelled":
		log.Debug("audio branch cancelled", "err", err)
	default:
		log.Warn("audio branch failed; continuing without narration", "reason", reason, "err", err)
	}
}

func audioFailureReason(err error) string {
	var (
		ae *models.AudioExtractionError
		te *models.TranscriptionError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, models.ErrNoAudioTrack):
		return "no_audio"
	case errors.Is(err, models.ErrToolNotFound):
		return "tool_missing"
	case errors.Is(err, models.ErrInvalidCredential):
		return "credential"
	case errors.As(err, &ae):
		return "transcode"
	case errors.As(err, &te):
		return "transcription"
	default:
		return "other"
	}
}
