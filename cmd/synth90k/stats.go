package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print sample count and label statistics of a split",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := componentLogger("stats")
			log.Info().Str("root", a.cfg.Root).Str("split", a.cfg.Split).Msg("Loading annotations")

			ds, err := a.loadDataset()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(a.out, ds.String())
			return err
		},
	}
}
