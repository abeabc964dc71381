package main

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-synth90k/vision/dataset"
)

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Decode every image of a split and list the unreadable ones",
		Long: `Decode every image listed in the split's annotation file and report the paths
that cannot be read. Those samples would otherwise be skipped at fetch time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := componentLogger("check")

			ds, err := a.loadDataset()
			if err != nil {
				return err
			}

			loader := a.fileLoader()
			bar := progressbar.NewOptions(ds.Len(),
				progressbar.OptionSetWriter(a.progress),
				progressbar.OptionSetDescription("Checking"),
				progressbar.OptionShowCount(),
				progressbar.OptionShowIts(),
				progressbar.OptionSetItsString("images"),
				progressbar.OptionSetTheme(progressbar.ThemeUnicode),
			)

			kept, dropped := dataset.FilterDecodable(ds, func(path string) error {
				defer bar.Add(1)
				err := loader.Check(path)
				if err != nil {
					log.Debug().Err(err).Str("path", path).Msg("Unreadable image")
				}
				return err
			})
			_ = bar.Finish()

			log.Info().Int("readable", kept.Len()).Int("unreadable", len(dropped)).Msg("Check complete")
			fmt.Fprintf(a.out, "%d of %d images readable\n", kept.Len(), ds.Len())
			for _, path := range dropped {
				fmt.Fprintf(a.out, "unreadable: %s\n", path)
			}
			return nil
		},
	}
}
