package storage

import (
	"context"
	"encoding/json"
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

func solid(v uint8) image.Image {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = v
	}
	return img
}

func ptr(s string) *string { return &s }

func sampleRecording() *models.ProcessedRecording {
	return &models.ProcessedRecording{
		Frames: []models.AnnotatedFrame{
			{Image: solid(10), Timestamp: 0, Index: 0, Transcript: ptr("Open settings."), Hash: 0xf0f0},
			{Image: solid(200), Timestamp: 7, Index: 1, Hash: 0x0f0f},
			{Image: solid(90), Timestamp: 12, Index: 2, Transcript: ptr("Done."), Hash: 0xffff},
		},
		Metadata: models.RecordingMetadata{
			Duration:           14,
			OriginalFrameCount: 15,
			SelectedFrameCount: 3,
			ProcessedAt:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		},
	}
}

func TestFileStore_Save(t *testing.T) {
	root := t.TempDir()
	store := NewFileStore(root, nil)

	path, err := store.Save(context.Background(), "demo", sampleRecording())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "demo", "manifest.json"), path)

	m, err := store.Load("demo")
	require.NoError(t, err)
	assert.Equal(t, "demo", m.Recording)
	assert.Equal(t, "Open settings. Done.", m.FullTranscript)
	assert.Equal(t, 15, m.Metadata.OriginalFrameCount)
	require.Len(t, m.Frames, 3)
	assert.Equal(t, "000000000000f0f0", m.Frames[0].Hash)
	assert.Nil(t, m.Frames[1].Transcript)
	assert.Equal(t, "frame_02.png", m.Frames[2].Image)

	f, err := os.Open(filepath.Join(root, "demo", m.Frames[1].Image))
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, uint8(200), color.GrayModel.Convert(img.At(3, 3)).(color.Gray).Y)

	entries, err := os.ReadDir(filepath.Join(root, "demo"))
	require.NoError(t, err)
	assert.Len(t, entries, 4, "no temporary files left behind")
}

func TestFileStore_NullTranscriptInJSON(t *testing.T) {
	root := t.TempDir()
	path, err := NewFileStore(root, nil).Save(context.Background(), "demo", sampleRecording())
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc struct {
		Frames []map[string]any `json:"frames"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	v, ok := doc.Frames[1]["transcript"]
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestFileStore_Overwrite(t *testing.T) {
	store := NewFileStore(t.TempDir(), nil)
	_, err := store.Save(context.Background(), "demo", sampleRecording())
	require.NoError(t, err)

	rec := sampleRecording()
	rec.Frames = rec.Frames[:1]
	rec.Metadata.SelectedFrameCount = 1
	_, err = store.Save(context.Background(), "demo", rec)
	require.NoError(t, err)

	m, err := store.Load("demo")
	require.NoError(t, err)
	assert.Len(t, m.Frames, 1)
}

func TestFileStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFileStore(t.TempDir(), nil).Save(ctx, "demo", sampleRecording())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDescriptionLog_Batches(t *testing.T) {
	dir := t.TempDir()
	log := NewDescriptionLog(dir)
	path := filepath.Join(dir, "descriptions.json")

	for i := 0; i < batchSize-1; i++ {
		require.NoError(t, log.AddResult(context.Background(), models.FrameDescription{Index: i, Description: "screen"}))
	}
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing written before the batch fills")

	require.NoError(t, log.AddResult(context.Background(), models.FrameDescription{Index: batchSize - 1}))
	require.NoError(t, log.AddResult(context.Background(), models.FrameDescription{Index: batchSize}))
	require.NoError(t, log.Flush())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var got []models.FrameDescription
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, batchSize+1)
	for i, d := range got {
		assert.Equal(t, i, d.Index)
	}
}

func TestRecordingName(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 5, 0, time.UTC)
	assert.Equal(t, "demo_20260301T093005", RecordingName("/tmp/rec/demo.mov", at))
	assert.Equal(t, "noext_20260301T093005", RecordingName("noext", at))
}
