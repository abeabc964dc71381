package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/tsawler/go-synth90k/async"
	"github.com/tsawler/go-synth90k/batchfile"
	"github.com/tsawler/go-synth90k/vision/dataloader"
	"github.com/tsawler/go-synth90k/vision/dataset"
)

type exportOptions struct {
	out         string
	batches     int
	shuffle     bool
	seed        int64
	dropLast    bool
	imageList   string
	description string
	metricsAddr string
	prefetch    int
}

func (a *app) newExportCmd() *cobra.Command {
	opts := &exportOptions{}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Run the data loader and store the collated batches",
		Long: `Load a split (or a plain list of image paths), fetch and collate batches with
the configured worker count and cache, and write them to a batch file. The
format follows the file extension: .json or .pb.`,
		Example: `  # First ten training batches as protobuf
  synth90k export --root /data/mjsynth --out train.pb --batches 10

  # Unlabeled batches for inference, with metrics on :9100
  synth90k export --image-list images.txt --out infer.json --metrics-addr :9100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runExport(ctx, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.out, "out", "o", "", "Output batch file (.json or .pb)")
	flags.IntVar(&opts.batches, "batches", 0, "Number of batches to export, 0 for a full epoch")
	flags.BoolVar(&opts.shuffle, "shuffle", false, "Shuffle sample order")
	flags.Int64Var(&opts.seed, "seed", 0, "Shuffle seed, 0 for time based")
	flags.BoolVar(&opts.dropLast, "drop-last", false, "Drop the final short batch")
	flags.StringVar(&opts.imageList, "image-list", "", "File with one image path per line; exports unlabeled batches")
	flags.StringVar(&opts.description, "description", "", "Free text stored in the file metadata")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while exporting")
	flags.IntVar(&opts.prefetch, "prefetch", 3, "Batches loaded ahead of the writer")
	_ = cmd.MarkFlagRequired("out")

	return cmd
}

func (a *app) runExport(ctx context.Context, opts *exportOptions) error {
	log := componentLogger("export")

	if _, err := batchfile.FormatFromPath(opts.out); err != nil {
		return err
	}

	ds, split, err := a.exportDataset(opts)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := dataloader.NewMetrics(reg)
	if opts.metricsAddr != "" {
		shutdown := serveMetrics(opts.metricsAddr, reg, log)
		defer shutdown()
	}

	// Cached images are only valid for one root and output size
	var cache *dataloader.CacheManager
	if a.cfg.CacheSize > 0 {
		name := fmt.Sprintf("%s@%dx%d", a.cfg.Root, a.cfg.ImageWidth, a.cfg.ImageHeight)
		cache, err = dataloader.GetGlobalSharedCache().GetOrCreateCache(name, a.cfg.CacheSize)
		if err != nil {
			return err
		}
	}

	dl, err := dataloader.NewDataLoader(ds, a.fileLoader(), dataloader.Config{
		BatchSize:    a.cfg.BatchSize,
		Shuffle:      opts.shuffle,
		Seed:         opts.seed,
		DropLast:     opts.dropLast,
		NumWorkers:   a.cfg.Workers,
		CacheManager: cache,
		MaxSkips:     a.cfg.MaxSkips,
		Metrics:      metrics,
		Logger:       &log,
	})
	if err != nil {
		return err
	}

	total := dl.Len()
	if opts.batches > 0 && opts.batches < total {
		total = opts.batches
	}

	log.Info().
		Int("samples", ds.Len()).
		Int("batches", total).
		Int("batch_size", a.cfg.BatchSize).
		Int("workers", a.cfg.Workers).
		Str("out", opts.out).
		Msg("Starting export")

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(a.progress),
		progressbar.OptionSetDescription("Exporting"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("batches"),
		progressbar.OptionSetTheme(progressbar.ThemeUnicode),
	)

	prefetcher, err := async.NewPrefetcher(dl, async.PrefetcherConfig{PrefetchDepth: opts.prefetch})
	if err != nil {
		return err
	}
	if err := prefetcher.Start(); err != nil {
		return err
	}
	defer prefetcher.Stop()

	// Stop the prefetcher when the command is interrupted
	go func() {
		<-ctx.Done()
		prefetcher.Stop()
	}()

	start := time.Now()
	f := &batchfile.File{
		Metadata: batchfile.Metadata{Split: split, Description: opts.description},
	}
	for len(f.Batches) < total {
		batch, err := prefetcher.GetBatch()
		if err != nil {
			_ = bar.Finish()
			return fmt.Errorf("export interrupted after %d batches: %w", len(f.Batches), err)
		}
		if batch == nil {
			break
		}
		f.Batches = append(f.Batches, batch)
		_ = bar.Add(1)
	}
	_ = bar.Finish()

	if err := batchfile.Save(opts.out, f); err != nil {
		return err
	}

	samples := 0
	for _, b := range f.Batches {
		samples += b.N
	}
	log.Info().
		Int("batches", len(f.Batches)).
		Int("samples", samples).
		Dur("duration", time.Since(start)).
		Str("cache", dl.Stats()).
		Msg("Export complete")
	fmt.Fprintf(a.out, "wrote %d batches (%d samples) to %s\n", len(f.Batches), samples, opts.out)
	return nil
}

// exportDataset returns the labeled split, or an unlabeled dataset when an
// image list is given
func (a *app) exportDataset(opts *exportOptions) (*dataset.Synth90kDataset, string, error) {
	if opts.imageList == "" {
		ds, err := a.loadDataset()
		return ds, a.cfg.Split, err
	}

	paths, err := readImageList(opts.imageList)
	if err != nil {
		return nil, "", err
	}
	ds, err := dataset.NewFromPaths(paths)
	return ds, "", err
}

func readImageList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image list: %w", err)
	}
	defer file.Close()

	var paths []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read image list: %w", err)
	}
	return paths, nil
}

// serveMetrics exposes reg on addr until the returned function is called
func serveMetrics(addr string, reg *prometheus.Registry, log zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Metrics server failed")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
