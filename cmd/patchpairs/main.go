// Command patchpairs mines pair-index shards from a directory of coordinate
// sidecar files.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hupe1980/patchpairs"
	"github.com/hupe1980/patchpairs/blobstore"
	"github.com/hupe1980/patchpairs/miner"
	"github.com/hupe1980/patchpairs/shard"
	"github.com/hupe1980/patchpairs/slide"
)

func main() {
	cfg, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := patchpairs.NewJSONLogger(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("mining aborted", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *Config, logger *patchpairs.Logger) error {
	source := slide.NewDirectorySource(cfg.SlidesDir)
	slides, err := source.Slides(ctx)
	if err != nil {
		return err
	}
	logger.Info("slides discovered", "count", len(slides), "dir", cfg.SlidesDir)

	blobs, err := blobstore.NewLocalStore(cfg.PairsDir)
	if err != nil {
		return err
	}
	compression, _ := shard.CompressionByName(cfg.Compression)
	store := shard.NewStore(blobs, func(o *shard.StoreOptions) {
		o.Compression = compression
	})

	m, err := miner.New(store, func(o *miner.Options) {
		o.Thresholds = miner.Thresholds{
			MaxSimilarMM:       cfg.MaxSimilarMM,
			MinDissimilarMM:    cfg.MinDissimilarMM,
			MinSimilarPairs:    cfg.MinSimilarPairs,
			MinDissimilarPairs: cfg.MinDissimilarPairs,
		}
		o.Downsample = cfg.Downsample
		o.SkipExisting = cfg.SkipExisting
		if cfg.Concurrency > 0 {
			o.Concurrency = cfg.Concurrency
		}
		o.Logger = logger
	})
	if err != nil {
		return err
	}

	report, err := m.Run(ctx, slides)
	if err != nil {
		return err
	}

	logger.Info("mining finished",
		"mined", len(report.Mined),
		"skipped", len(report.Skipped),
		"failed", len(report.Failures),
	)
	for _, f := range report.Failures {
		logger.Warn("slide failed", "slide_id", f.SlideID, "error", f.Err)
	}
	return nil
}
