package cli

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/devHaitham481/A-Team/internal/phash"
	"github.com/devHaitham481/A-Team/internal/storage"
)

func newSearchCommand(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <image>",
		Short: "Find stored key frames that look like an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			hash, err := hashImageFile(args[0])
			if err != nil {
				return err
			}
			a.logger.Debug("query hash", "hash", hash.String())

			db, err := storage.NewPostgresStore(ctx, a.cfg.Database.URL, a.logger)
			if err != nil {
				return err
			}
			defer db.Close()

			matches, err := db.SearchSimilarFrames(ctx, hash, limit)
			if err != nil {
				return err
			}
			if len(matches) == 0 {
				fmt.Fprintln(a.out, "No stored frames.")
				return nil
			}

			tw := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "RECORDING\tFRAME\tTIME\tSIMILARITY\tNARRATION")
			for _, m := range matches {
				narration := ""
				if m.Transcript != nil {
					narration = *m.Transcript
				}
				fmt.Fprintf(tw, "%s\t%d\t%.2fs\t%.3f\t%s\n", m.Recording, m.Index, m.Timestamp, m.Similarity, narration)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of matches")
	return cmd
}

func hashImageFile(path string) (phash.Hash, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return 0, fmt.Errorf("decode %s: %w", path, err)
	}
	return phash.Compute(img), nil
}
