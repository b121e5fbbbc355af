package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/devHaitham481/A-Team/internal/models"
	"github.com/devHaitham481/A-Team/internal/pipeline"
	"github.com/devHaitham481/A-Team/internal/storage"
)

type processFlags struct {
	out        string
	keepSource bool
	store      string
	fps        float64
	maxFrames  int
}

func (f *processFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.out, "out", "", "output directory for the file store (default from config)")
	cmd.Flags().BoolVar(&f.keepSource, "keep-source", false, "do not delete the recording after processing")
	cmd.Flags().Float64Var(&f.fps, "fps", 0, "frames per second to sample (default from config)")
	cmd.Flags().IntVar(&f.maxFrames, "max-frames", 0, "upper bound on key frames (default from config)")
}

// apply overlays explicitly set flags onto the loaded config.
func (f *processFlags) apply(cmd *cobra.Command, a *app) error {
	if cmd.Flags().Changed("out") {
		a.cfg.OutputDir = f.out
	}
	if f.keepSource {
		a.cfg.Pipeline.RetainSource = true
	}
	if cmd.Flags().Changed("fps") {
		a.cfg.Pipeline.FramesPerSecond = f.fps
	}
	if cmd.Flags().Changed("max-frames") {
		a.cfg.Pipeline.MaxFrames = f.maxFrames
		a.cfg.Pipeline.MinFrames = min(a.cfg.Pipeline.MinFrames, f.maxFrames)
	}
	return a.cfg.Pipeline.Validate()
}

func newProcessCommand(a *app) *cobra.Command {
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "process <video>",
		Short: "Extract narrated key frames from a recording",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, a); err != nil {
				return err
			}
			ctx := cmd.Context()

			store, closeStore, err := a.openStore(ctx, flags.store)
			if err != nil {
				return err
			}
			defer closeStore()

			rec, err := pipeline.NewDefault(a.cfg.Pipeline, a.logger).Process(ctx, args[0])
			if err != nil {
				return err
			}

			location, err := store.Save(ctx, storage.RecordingName(args[0], time.Now()), rec)
			if err != nil {
				return fmt.Errorf("save recording: %w", err)
			}

			printSummary(a.out, rec, location)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&flags.store, "store", "file", "where to save results: file, postgres or minio")
	return cmd
}

// openStore returns the named store and a function releasing it.
func (a *app) openStore(ctx context.Context, kind string) (storage.Store, func(), error) {
	noop := func() {}
	switch kind {
	case "", "file":
		return storage.NewFileStore(a.cfg.OutputDir, a.logger), noop, nil
	case "postgres":
		db, err := storage.NewPostgresStore(ctx, a.cfg.Database.URL, a.logger)
		if err != nil {
			return nil, noop, err
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, noop, err
		}
		return db, db.Close, nil
	case "minio":
		objects, err := a.objectStore(ctx)
		if err != nil {
			return nil, noop, err
		}
		return objects, noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown store %q (want file, postgres or minio)", kind)
	}
}

func (a *app) objectStore(ctx context.Context) (*storage.ObjectStore, error) {
	oc := a.cfg.ObjectStore
	objects, err := storage.NewObjectStore(storage.ObjectStoreConfig{
		Endpoint:        oc.Endpoint,
		AccessKey:       oc.AccessKey,
		SecretKey:       oc.SecretKey,
		UseSSL:          oc.UseSSL,
		RecordingBucket: oc.RecordingBucket,
		ArtifactBucket:  oc.ArtifactBucket,
	}, a.logger)
	if err != nil {
		return nil, err
	}
	if err := objects.EnsureBuckets(ctx); err != nil {
		return nil, err
	}
	return objects, nil
}

func printSummary(w io.Writer, rec *models.ProcessedRecording, location string) {
	md := rec.Metadata
	fmt.Fprintf(w, "Saved %d key frames (of %d extracted, %.1fs) to %s\n",
		md.SelectedFrameCount, md.OriginalFrameCount, md.Duration, location)
	for _, f := range rec.Frames {
		line := "(no narration)"
		if f.Transcript != nil {
			line = *f.Transcript
		}
		fmt.Fprintf(w, "  [%02d] %7.2fs  %s\n", f.Index, f.Timestamp, line)
	}
}
