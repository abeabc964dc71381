package main

import (
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-synth90k/internal/config"
	"github.com/tsawler/go-synth90k/internal/logger"
	"github.com/tsawler/go-synth90k/vision/dataset"
	"github.com/tsawler/go-synth90k/vision/preprocessing"
)

var version = "1.0.0"

// app carries what every subcommand needs
type app struct {
	cfg *config.Config
	out io.Writer
	// progress receives progress bars; io.Discard hides them
	progress io.Writer
}

func newRootCmd(cfg *config.Config, out, progress io.Writer) *cobra.Command {
	a := &app{cfg: cfg, out: out, progress: progress}

	rootCmd := &cobra.Command{
		Use:   "synth90k",
		Short: "Inspect and batch a Synth90k text recognition dataset",
		Long: `synth90k reads a Synth90k (MJSynth) dataset root containing 1lexicon.txt and the
1annotation_{train,val,test}.txt files, and turns the listed word images into
normalized grayscale tensors with CTC-ready label codes.

Defaults come from SYNTH90K_* environment variables (optionally from a .env
file); flags override them.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.cfg.Validate()
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfg.Root, "root", cfg.Root, "Dataset root directory")
	flags.StringVar(&cfg.Split, "split", cfg.Split, "Annotation split: train, dev or test")
	flags.IntVar(&cfg.ImageWidth, "width", cfg.ImageWidth, "Output image width")
	flags.IntVar(&cfg.ImageHeight, "height", cfg.ImageHeight, "Output image height")
	flags.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Samples per batch")
	flags.IntVar(&cfg.Workers, "workers", cfg.Workers, "Images decoded in parallel")
	flags.IntVar(&cfg.CacheSize, "cache-size", cfg.CacheSize, "Decoded images kept in memory, 0 to disable")
	flags.IntVar(&cfg.MaxSkips, "max-skips", cfg.MaxSkips, "Unreadable images one fetch may skip, 0 for no bound")

	rootCmd.AddCommand(
		a.newStatsCmd(),
		a.newCheckCmd(),
		a.newExportCmd(),
		a.newInspectCmd(),
	)
	return rootCmd
}

func (a *app) loadDataset() (*dataset.Synth90kDataset, error) {
	return dataset.NewSynth90kDataset(a.cfg.Root, a.cfg.Split)
}

func (a *app) fileLoader() *preprocessing.FileLoader {
	return preprocessing.NewFileLoader(a.cfg.ImageWidth, a.cfg.ImageHeight, a.cfg.Root)
}

func componentLogger(name string) zerolog.Logger {
	return logger.WithComponent(name)
}
