package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/storage"
)

const maxWorkers = 4

// Describer produces a textual description of one key frame image.
type Describer interface {
	Describe(ctx context.Context, imagePath string, narration *string) (string, error)
}

// workItem is one frame queued for description.
type workItem struct {
	frame models.AnnotatedFrame
	path  string
}

// Processor describes the key frames of a stored recording.
type Processor struct {
	describer Describer
	results   storage.DescriptionWriter
	workers   int
	logger    *slog.Logger
}

func NewProcessor(describer Describer, results storage.DescriptionWriter, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		describer: describer,
		results:   results,
		workers:   maxWorkers,
		logger:    logger,
	}
}

// DescribeRecording describes every frame of rec whose image was saved in
// frameDir. Frames that fail are reported together after the rest finish.
func (p *Processor) DescribeRecording(ctx context.Context, frameDir string, rec *models.ProcessedRecording) error {
	frames := rec.Frames
	if len(frames) == 0 {
		return nil
	}

	workChan := make(chan workItem, len(frames))
	resultsChan := make(chan models.FrameDescription, len(frames))
	errorsChan := make(chan error, len(frames))

	var wg sync.WaitGroup
	remaining := atomic.Int64{}
	remaining.Store(int64(len(frames)))

	for i := 0; i < min(p.workers, len(frames)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				if ctx.Err() != nil {
					errorsChan <- fmt.Errorf("frame %d: %w", work.frame.Index, ctx.Err())
					continue
				}
				text, err := p.describer.Describe(ctx, work.path, work.frame.Transcript)
				if err != nil {
					errorsChan <- fmt.Errorf("frame %d/%d failed: %w", work.frame.Index+1, len(frames), err)
					continue
				}

				resultsChan <- models.FrameDescription{
					Index:       work.frame.Index,
					Timestamp:   work.frame.Timestamp,
					Transcript:  work.frame.Transcript,
					Description: strings.TrimSpace(text),
				}

				left := remaining.Add(-1)
				p.logger.Debug("frame described", "frame", work.frame.Index, "remaining", left)
			}
		}()
	}

	for _, f := range frames {
		workChan <- workItem{frame: f, path: filepath.Join(frameDir, storage.FrameFileName(f.Index))}
	}
	close(workChan)

	wg.Wait()
	close(resultsChan)
	close(errorsChan)

	var saveErr error
	for result := range resultsChan {
		if err := p.results.AddResult(ctx, result); err != nil && saveErr == nil {
			saveErr = err
		}
	}
	if err := p.results.Flush(); err != nil {
		return fmt.Errorf("failed to flush descriptions: %w", err)
	}
	if saveErr != nil {
		return fmt.Errorf("failed to save descriptions: %w", saveErr)
	}

	var errorMessages []string
	for err := range errorsChan {
		errorMessages = append(errorMessages, err.Error())
	}
	if len(errorMessages) > 0 {
		return fmt.Errorf("encountered errors during description: %s", strings.Join(errorMessages, "; "))
	}

	p.logger.Info("recording described", "frames", len(frames))
	return nil
}

func buildPrompt(narration *string) string {
	prompt := "What is happening in this screenshot? Be specific and list the visible UI elements."
	if narration != nil && strings.TrimSpace(*narration) != "" {
		prompt += fmt.Sprintf("\n\nWhile this was on screen the user said: %q", strings.TrimSpace(*narration))
	}
	return prompt
}
