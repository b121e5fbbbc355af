package extractor

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/devHaitham481/A-Team/internal/models"
)

// Extractor samples still frames from a video with an external decode tool.
type Extractor struct {
	toolPath string
	tempDir  string
	timeout  time.Duration
	logger   *slog.Logger
}

// New creates an Extractor. An empty tempDir means the system default; a zero
// timeout disables the per-run deadline.
func New(toolPath, tempDir string, timeout time.Duration, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		toolPath: toolPath,
		tempDir:  tempDir,
		timeout:  timeout,
		logger:   logger,
	}
}

// Extract decodes videoPath at framesPerSecond and returns the frames in
// chronological order. Frame i is stamped i/framesPerSecond. The staging
// directory is removed before Extract returns.
func (e *Extractor) Extract(ctx context.Context, videoPath string, framesPerSecond float64) ([]models.ExtractedFrame, error) {
	if framesPerSecond <= 0 {
		return nil, fmt.Errorf("frames per second must be positive, got %v", framesPerSecond)
	}

	tool, err := exec.LookPath(e.toolPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", models.ErrToolNotFound, e.toolPath)
	}

	if _, err := os.Stat(videoPath); err != nil {
		return nil, &models.ExtractionError{Detail: fmt.Sprintf("video file not readable at '%s'", videoPath), Err: err}
	}

	frameDirPath, err := os.MkdirTemp(e.tempDir, "frames-*")
	if err != nil {
		return nil, fmt.Errorf("create frame directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(frameDirPath); err != nil {
			e.logger.Warn("failed to remove frame directory", "dir", frameDirPath, "err", err)
		}
	}()

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	e.logger.Debug("extracting frames", "video", filepath.Base(videoPath), "fps", framesPerSecond)

	cmd := exec.CommandContext(ctx,
		tool,
		"-i", videoPath,
		"-vf", fmt.Sprintf("fps=%g", framesPerSecond),
		"-frame_pts", "1",
		filepath.Join(frameDirPath, "frame_%04d.png"),
	)

	// Capture output for better error reporting
	output, err := cmd.CombinedOutput()
	if err != nil {
		detail := fmt.Sprintf("%v\nOutput: %s", err, tail(output, 2048))
		if ctxErr := ctx.Err(); ctxErr != nil {
			detail = fmt.Sprintf("decode tool did not finish: %v", ctxErr)
			err = ctxErr
		}
		return nil, &models.ExtractionError{Detail: detail, Err: err}
	}

	frames, err := e.loadFrames(frameDirPath, framesPerSecond)
	if err != nil {
		return nil, err
	}

	e.logger.Info("frames extracted", "count", len(frames), "video", filepath.Base(videoPath))
	return frames, nil
}

// loadFrames reads the staged PNGs back in file-name order.
func (e *Extractor) loadFrames(frameDirPath string, framesPerSecond float64) ([]models.ExtractedFrame, error) {
	files, err := os.ReadDir(frameDirPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read frames directory '%s': %w", frameDirPath, err)
	}

	var names []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(strings.ToLower(file.Name()), ".png") {
			names = append(names, file.Name())
		}
	}
	if len(names) == 0 {
		return nil, models.ErrNoFramesExtracted
	}
	sort.Strings(names)

	frames := make([]models.ExtractedFrame, 0, len(names))
	for i, name := range names {
		img, err := decodePNG(filepath.Join(frameDirPath, name))
		if err != nil {
			e.logger.Warn("skipping unreadable frame", "frame", name, "err", err)
			continue
		}
		frames = append(frames, models.ExtractedFrame{
			Image:     img,
			Timestamp: float64(i) / framesPerSecond,
		})
	}

	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: none of %d images could be loaded", models.ErrNoFramesExtracted, len(names))
	}
	return frames, nil
}

func decodePNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}

