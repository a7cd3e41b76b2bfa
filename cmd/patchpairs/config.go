package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/hupe1980/patchpairs/shard"
)

// Config is the mining CLI configuration. Values come from PATCHPAIRS_*
// environment variables with flag overrides; nothing is process-global.
type Config struct {
	SlidesDir          string  `envconfig:"SLIDES_DIR"`
	PairsDir           string  `envconfig:"PAIRS_DIR"`
	Downsample         int     `envconfig:"DOWNSAMPLE" default:"64"`
	MaxSimilarMM       float64 `envconfig:"MAX_SIMILAR_MM" default:"20"`
	MinDissimilarMM    float64 `envconfig:"MIN_DISSIMILAR_MM" default:"100"`
	MinSimilarPairs    int     `envconfig:"MIN_SIMILAR_PAIRS" default:"32"`
	MinDissimilarPairs int     `envconfig:"MIN_DISSIMILAR_PAIRS" default:"32"`
	SkipExisting       bool    `envconfig:"SKIP_EXISTING" default:"true"`
	Concurrency        int     `envconfig:"CONCURRENCY" default:"0"`
	Compression        string  `envconfig:"COMPRESSION" default:"zstd"`
	LogLevel           string  `envconfig:"LOG_LEVEL" default:"info"`
}

var (
	errNoSlidesDir    = errors.New("slides directory is required")
	errNoPairsDir     = errors.New("pairs directory is required")
	errBadCompression = errors.New("compression must be none, lz4 or zstd")
)

func loadConfig(args []string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("patchpairs", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}

	fs := flag.NewFlagSet("patchpairs", flag.ContinueOnError)
	fs.StringVar(&cfg.SlidesDir, "slides", cfg.SlidesDir, "Directory of coordinate sidecar files")
	fs.StringVar(&cfg.PairsDir, "pairs", cfg.PairsDir, "Directory to write pair-index shards to")
	fs.IntVar(&cfg.Downsample, "downsample", cfg.Downsample, "Downsample factor")
	fs.Float64Var(&cfg.MaxSimilarMM, "max-similar-mm", cfg.MaxSimilarMM, "Maximum similar distance in millimeters")
	fs.Float64Var(&cfg.MinDissimilarMM, "min-dissimilar-mm", cfg.MinDissimilarMM, "Minimum dissimilar distance in millimeters")
	fs.IntVar(&cfg.MinSimilarPairs, "min-similar", cfg.MinSimilarPairs, "Minimum similar pairs per slide")
	fs.IntVar(&cfg.MinDissimilarPairs, "min-dissimilar", cfg.MinDissimilarPairs, "Minimum dissimilar pairs per slide")
	fs.BoolVar(&cfg.SkipExisting, "skip-existing", cfg.SkipExisting, "Skip slides with an existing shard")
	fs.IntVar(&cfg.Concurrency, "concurrency", cfg.Concurrency, "Parallel slides (0 = GOMAXPROCS)")
	fs.StringVar(&cfg.Compression, "compression", cfg.Compression, "Shard compression: none, lz4 or zstd")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.SlidesDir == "" {
		return errNoSlidesDir
	}
	if c.PairsDir == "" {
		return errNoPairsDir
	}
	if c.Downsample < 1 {
		return fmt.Errorf("downsample must be a positive integer, got %d", c.Downsample)
	}
	if _, ok := shard.CompressionByName(c.Compression); !ok {
		return errBadCompression
	}
	return nil
}
