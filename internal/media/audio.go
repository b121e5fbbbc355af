package media

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devHaitham481/A-Team/internal/models"
)

// wavHeaderSize is the size of a canonical RIFF/WAVE header. An output no
// larger than this carries no samples.
const wavHeaderSize = 44

// noStreamMarkers are fragments of the transcode tool's diagnostics when the
// input has nothing to map to an audio output.
var noStreamMarkers = []string{
	"does not contain any stream",
	"matches no streams",
	"Output file is empty",
}

// AudioExtractor transcodes the audio track of a recording to PCM WAV.
type AudioExtractor struct {
	toolPath   string
	tempDir    string
	sampleRate int
	channels   int
	timeout    time.Duration
	logger     *slog.Logger
}

// AudioOptions configures an AudioExtractor.
type AudioOptions struct {
	ToolPath   string
	TempDir    string
	SampleRate int
	Channels   int
	Timeout    time.Duration
}

func NewAudioExtractor(opts AudioOptions, logger *slog.Logger) *AudioExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.ToolPath == "" {
		opts.ToolPath = "ffmpeg"
	}
	return &AudioExtractor{
		toolPath:   opts.ToolPath,
		tempDir:    opts.TempDir,
		sampleRate: opts.SampleRate,
		channels:   opts.Channels,
		timeout:    opts.Timeout,
		logger:     logger,
	}
}

// Extract writes the audio track of videoPath to a new temporary WAV file and
// returns its path. The caller owns the file and must remove it. On error no
// file is left behind.
func (a *AudioExtractor) Extract(ctx context.Context, videoPath string) (string, error) {
	tool, err := exec.LookPath(a.toolPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", models.ErrToolNotFound, a.toolPath)
	}

	out, err := os.CreateTemp(a.tempDir, "audio-*.wav")
	if err != nil {
		return "", fmt.Errorf("create audio file: %w", err)
	}
	outPath := out.Name()
	out.Close()

	keep := false
	defer func() {
		if keep {
			return
		}
		if err := os.Remove(outPath); err != nil && !os.IsNotExist(err) {
			a.logger.Warn("failed to remove audio file", "path", outPath, "err", err)
		}
	}()

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	a.logger.Debug("extracting audio", "video", filepath.Base(videoPath), "rate", a.sampleRate, "channels", a.channels)

	cmd := exec.CommandContext(ctx,
		tool,
		"-i", videoPath,
		"-vn",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(a.sampleRate),
		"-ac", strconv.Itoa(a.channels),
		"-y",
		outPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &models.AudioExtractionError{Detail: fmt.Sprintf("transcode tool did not finish: %v", ctxErr), Err: ctxErr}
		}
		if reportsNoAudio(output) {
			return "", models.ErrNoAudioTrack
		}
		return "", &models.AudioExtractionError{Detail: fmt.Sprintf("%v\nOutput: %s", err, tail(output, 2048)), Err: err}
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return "", &models.AudioExtractionError{Detail: "transcoded file missing", Err: err}
	}
	if info.Size() <= wavHeaderSize {
		return "", models.ErrNoAudioTrack
	}

	a.logger.Info("audio extracted", "video", filepath.Base(videoPath), "bytes", info.Size())
	keep = true
	return outPath, nil
}

func reportsNoAudio(output []byte) bool {
	s := string(output)
	for _, m := range noStreamMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

func tail(b []byte, n int) string {
	if len(b) > n {
		b = b[len(b)-n:]
	}
	return strings.TrimSpace(string(b))
}
