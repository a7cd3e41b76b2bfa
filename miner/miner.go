package miner

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/patchpairs"
	"github.com/hupe1980/patchpairs/shard"
	"github.com/hupe1980/patchpairs/slide"
)

// Options configure a Miner.
type Options struct {
	// Thresholds for pair classification.
	Thresholds Thresholds

	// Downsample is the positive downsample factor applied to the base
	// resolution.
	Downsample int

	// SkipExisting makes re-runs idempotent: slides with a persisted shard
	// are skipped without invoking the classifier.
	SkipExisting bool

	// Concurrency bounds the number of slides mined in parallel.
	// Defaults to GOMAXPROCS.
	Concurrency int

	// Resources optionally bounds the aggregate working set and shard write
	// throughput of concurrent mining. Nil disables bounding.
	Resources *ResourceConfig

	// Logger for structured mining logs. Defaults to a noop logger.
	Logger *patchpairs.Logger
}

// DefaultThresholds mirror the defaults of the original mining pipeline.
var DefaultThresholds = Thresholds{
	MaxSimilarMM:       20,
	MinDissimilarMM:    100,
	MinSimilarPairs:    32,
	MinDissimilarPairs: 32,
}

// Miner mines pair-index shards from slides. Safe for a single Run at a
// time; all per-slide work is independent.
type Miner struct {
	store     *shard.Store
	opts      Options
	resources *resourceController
}

// New creates a Miner writing shards to the given store.
func New(store *shard.Store, optFns ...func(o *Options)) (*Miner, error) {
	opts := Options{
		Thresholds:  DefaultThresholds,
		Downsample:  64,
		Concurrency: runtime.GOMAXPROCS(0),
		Logger:      patchpairs.NoopLogger(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if err := opts.Thresholds.validate(); err != nil {
		return nil, err
	}
	if opts.Downsample < 1 {
		return nil, fmt.Errorf("downsample must be a positive integer, got %d", opts.Downsample)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = patchpairs.NoopLogger()
	}

	return &Miner{
		store:     store,
		opts:      opts,
		resources: newResourceController(opts.Resources),
	}, nil
}

// Run mines all slides with a bounded worker pool. Per-slide failures are
// collected into the report and never abort sibling slides; only context
// cancellation stops the batch. Cancellation leaves no partial shard because
// shard writes are atomic.
func (m *Miner) Run(ctx context.Context, slides []slide.Slide) (*Report, error) {
	report := newReport()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Concurrency)

	for _, s := range slides {
		g.Go(func() error {
			skipped, err := m.mineOne(gctx, s)
			switch {
			case err != nil && gctx.Err() != nil:
				return gctx.Err()
			case err != nil:
				m.opts.Logger.LogMineFailed(gctx, s.ID(), err)
				report.addFailure(s.ID(), err)
			case skipped:
				report.addSkipped(s.ID())
			default:
				report.addMined(s.ID())
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.sort()
	return report, nil
}

// MineSlide mines a single slide and persists its shard. The returned error
// is per-slide: *slide.ErrMissingMetadata, *ErrInsufficientPairs, or I/O.
func (m *Miner) MineSlide(ctx context.Context, s slide.Slide) error {
	_, err := m.mineOne(ctx, s)
	return err
}

func (m *Miner) mineOne(ctx context.Context, s slide.Slide) (skipped bool, err error) {
	if m.opts.SkipExisting {
		exists, err := m.store.Exists(ctx, s.ID())
		if err != nil {
			return false, fmt.Errorf("check existing shard: %w", err)
		}
		if exists {
			return true, nil
		}
	}

	props, err := s.Properties(ctx)
	if err != nil {
		return false, fmt.Errorf("read properties: %w", err)
	}
	res, err := slide.ResolutionFromProperties(props)
	if err != nil {
		return false, err
	}
	mmPerPixel := res.MillimetersPerPixel(m.opts.Downsample)

	coords, err := s.Coordinates(ctx)
	if err != nil {
		return false, fmt.Errorf("read coordinates: %w", err)
	}

	if err := m.resources.acquire(ctx, int64(len(coords))); err != nil {
		return false, err
	}
	defer m.resources.release(int64(len(coords)))

	similar, dissimilar, err := Classify(ctx, coords, mmPerPixel, m.opts.Thresholds)
	if err != nil {
		return false, err
	}

	sh := &shard.Shard{
		SlideID:    s.ID(),
		Similar:    similar,
		Dissimilar: dissimilar,
	}
	if err := m.resources.waitWrite(ctx, (len(similar)+len(dissimilar))*8); err != nil {
		return false, err
	}
	if err := m.store.Write(ctx, sh); err != nil {
		return false, err
	}

	m.opts.Logger.LogShardWrite(ctx, s.ID(), len(similar), len(dissimilar))
	return false, nil
}
