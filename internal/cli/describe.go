package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/devHaitham481/A-Team/internal/analyzer"
	"github.com/devHaitham481/A-Team/internal/pipeline"
	"github.com/devHaitham481/A-Team/internal/storage"
)

func newDescribeCommand(a *app) *cobra.Command {
	var flags processFlags

	cmd := &cobra.Command{
		Use:   "describe <video>",
		Short: "Process a recording, then describe each key frame with a vision model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.apply(cmd, a); err != nil {
				return err
			}
			ctx := cmd.Context()

			// Fail before processing if the model server is down.
			visionAgent, err := analyzer.NewAgent(ctx, a.cfg.Analyzer, a.logger)
			if err != nil {
				return fmt.Errorf("initialize vision agent: %w", err)
			}

			rec, err := pipeline.NewDefault(a.cfg.Pipeline, a.logger).Process(ctx, args[0])
			if err != nil {
				return err
			}

			store := storage.NewFileStore(a.cfg.OutputDir, a.logger)
			name := storage.RecordingName(args[0], time.Now())
			location, err := store.Save(ctx, name, rec)
			if err != nil {
				return fmt.Errorf("save recording: %w", err)
			}
			printSummary(a.out, rec, location)

			dir := store.Dir(name)
			proc := analyzer.NewProcessor(analyzer.NewAgentDescriber(visionAgent), storage.NewDescriptionLog(dir), a.logger)
			if err := proc.DescribeRecording(ctx, dir, rec); err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Descriptions written to %s\n", dir)
			return nil
		},
	}

	flags.register(cmd)
	return cmd
}
