package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tsawler/go-synth90k/batchfile"
)

func (a *app) newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [batch-file]",
		Short: "Print the shape and decoded labels of each stored batch",
		Args:  cobra.ExactArgs(1),
		// Reading a batch file needs no dataset configuration
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := batchfile.Load(args[0])
			if err != nil {
				return err
			}

			m := f.Metadata
			fmt.Fprintf(a.out, "%s %s, created %s", m.Framework, m.Version, m.CreatedAt.Format("2006-01-02 15:04:05"))
			if m.Split != "" {
				fmt.Fprintf(a.out, ", split %s", m.Split)
			}
			fmt.Fprintf(a.out, ", %d batches\n", len(f.Batches))

			for i, b := range f.Batches {
				fmt.Fprintf(a.out, "batch %d: shape %v", i, b.Shape())
				if !b.Labeled() {
					fmt.Fprintln(a.out, " unlabeled")
					continue
				}
				texts, err := b.Texts()
				if err != nil {
					return fmt.Errorf("batch %d: %w", i, err)
				}
				fmt.Fprintf(a.out, " lengths %v\n  %s\n", b.Lengths, strings.Join(texts, " "))
			}
			return nil
		},
	}
}
