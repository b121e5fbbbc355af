package extractor

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devHaitham481/A-Team/internal/models"
)

// fakeTool writes an executable shell script standing in for the decode tool.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fake-ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

// writeFixtures stores n solid PNGs whose gray level encodes their index.
func writeFixtures(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 1; i <= n; i++ {
		img := image.NewGray(image.Rect(0, 0, 4, 4))
		for p := range img.Pix {
			img.Pix[p] = uint8(i)
		}
		f, err := os.Create(filepath.Join(dir, fmt.Sprintf("frame_%04d.png", i)))
		require.NoError(t, err)
		require.NoError(t, png.Encode(f, img))
		require.NoError(t, f.Close())
	}
	return dir
}

func copyingTool(t *testing.T, fixtures string) string {
	return fakeTool(t, fmt.Sprintf(`for last; do :; done
cp %q/*.png "$(dirname "$last")"/`, fixtures))
}

func touchVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recording.mp4")
	require.NoError(t, os.WriteFile(path, []byte("not really a video"), 0o644))
	return path
}

func grayLevel(img image.Image) uint8 {
	return color.GrayModel.Convert(img.At(0, 0)).(color.Gray).Y
}

func TestExtract_LoadsFramesInOrder(t *testing.T) {
	staging := t.TempDir()
	e := New(copyingTool(t, writeFixtures(t, 5)), staging, time.Minute, nil)

	frames, err := e.Extract(context.Background(), touchVideo(t), 2)
	require.NoError(t, err)
	require.Len(t, frames, 5)

	for i, f := range frames {
		assert.Equal(t, float64(i)/2, f.Timestamp)
		assert.Equal(t, uint8(i+1), grayLevel(f.Image))
	}

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory must be cleaned up")
}

func TestExtract_ToolNotFound(t *testing.T) {
	e := New(filepath.Join(t.TempDir(), "missing-ffmpeg"), "", 0, nil)

	_, err := e.Extract(context.Background(), touchVideo(t), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrToolNotFound))
}

func TestExtract_NonZeroExit(t *testing.T) {
	staging := t.TempDir()
	e := New(fakeTool(t, `echo "moov atom not found" >&2; exit 1`), staging, 0, nil)

	_, err := e.Extract(context.Background(), touchVideo(t), 1)

	var exErr *models.ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.Contains(t, exErr.Detail, "moov atom not found")

	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	assert.Empty(t, entries, "staging directory must be cleaned up on failure")
}

func TestExtract_NoFrames(t *testing.T) {
	e := New(fakeTool(t, "exit 0"), t.TempDir(), 0, nil)

	_, err := e.Extract(context.Background(), touchVideo(t), 1)
	assert.ErrorIs(t, err, models.ErrNoFramesExtracted)
}

func TestExtract_UnreadableImagesOnly(t *testing.T) {
	e := New(fakeTool(t, `for last; do :; done
echo garbage > "$(dirname "$last")/frame_0001.png"`), t.TempDir(), 0, nil)

	_, err := e.Extract(context.Background(), touchVideo(t), 1)
	assert.ErrorIs(t, err, models.ErrNoFramesExtracted)
}

func TestExtract_Timeout(t *testing.T) {
	e := New(fakeTool(t, "exec sleep 5"), t.TempDir(), 50*time.Millisecond, nil)

	_, err := e.Extract(context.Background(), touchVideo(t), 1)

	var exErr *models.ExtractionError
	require.ErrorAs(t, err, &exErr)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtract_MissingVideo(t *testing.T) {
	e := New(fakeTool(t, "exit 0"), t.TempDir(), 0, nil)

	_, err := e.Extract(context.Background(), filepath.Join(t.TempDir(), "nope.mp4"), 1)
	var exErr *models.ExtractionError
	assert.ErrorAs(t, err, &exErr)
}
