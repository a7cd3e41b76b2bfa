package patchpairs

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/patchpairs/shard"
)

// errShardShorterThanHeader signals a shard whose decoded content holds
// fewer pairs than its header advertised.
var errShardShorterThanHeader = errors.New("shard content shorter than header counts")

type options struct {
	logger          *Logger
	patches         PatchStore
	shardCacheSize  int
	openConcurrency int
}

// Option configures Open behavior.
type Option func(*options)

// WithLogger configures the logger. If nil is passed, logging is disabled.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithPatchStore configures the patch image collaborator used by Get.
func WithPatchStore(ps PatchStore) Option {
	return func(o *options) {
		o.patches = ps
	}
}

// WithShardCacheSize configures how many decoded shards random access keeps
// in memory. Values below 1 fall back to the default.
func WithShardCacheSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shardCacheSize = n
		}
	}
}

// WithOpenConcurrency bounds the parallel shard header reads during Open.
func WithOpenConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.openConcurrency = n
		}
	}
}

// PairRef is a resolved pair: two patch indices into one slide's coordinate
// set, plus the category the pair was mined under.
type PairRef struct {
	SlideID  string
	Category shard.Category
	I        uint32
	J        uint32
}

// Item is a fully dereferenced pair: the two patch images.
type Item struct {
	PairRef
	A []byte
	B []byte
}

// Dataset stitches all per-slide shards into one flat, randomly-addressable
// sequence of pairs. It is immutable after Open and safe for unbounded
// concurrent readers.
type Dataset struct {
	store   *shard.Store
	patches PatchStore
	index   *bucketIndex
	cache   *lru.Cache[string, *shard.Shard]
	logger  *Logger

	// single-flight per slide so concurrent readers don't decode one shard
	// multiple times
	loadMu sync.Mutex
	loads  map[string]*shardLoad
}

type shardLoad struct {
	done chan struct{}
	sh   *shard.Shard
	err  error
}

// Open builds the global bucket index over all shards in the store, reading
// only headers. Unavailable shards are logged and excluded; they never abort
// the build. Returns ErrEmptyDataset when no usable pairs remain.
func Open(ctx context.Context, store *shard.Store, optFns ...Option) (*Dataset, error) {
	opts := options{
		logger:          NoopLogger(),
		shardCacheSize:  32,
		openConcurrency: runtime.GOMAXPROCS(0),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	ids, err := store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shards: %w", err)
	}

	headers := make([]shard.Header, len(ids))
	usable := make([]bool, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.openConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			h, err := readHeaderRetry(gctx, store, id)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				opts.logger.LogShardSkipped(gctx, id, err)
				return nil
			}
			headers[i] = h
			usable[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	usableIDs := make([]string, 0, len(ids))
	usableHeaders := make([]shard.Header, 0, len(ids))
	for i, id := range ids {
		if usable[i] {
			usableIDs = append(usableIDs, id)
			usableHeaders = append(usableHeaders, headers[i])
		}
	}

	index := newBucketIndex(usableIDs, usableHeaders)
	if index.total == 0 {
		return nil, fmt.Errorf("%w (%d of %d shards usable)", ErrEmptyDataset, len(usableIDs), len(ids))
	}

	cache, err := lru.New[string, *shard.Shard](opts.shardCacheSize)
	if err != nil {
		return nil, err
	}

	opts.logger.LogDatasetOpen(ctx, len(usableIDs), len(ids)-len(usableIDs), index.total)

	return &Dataset{
		store:   store,
		patches: opts.patches,
		index:   index,
		cache:   cache,
		logger:  opts.logger,
		loads:   make(map[string]*shardLoad),
	}, nil
}

// readHeaderRetry reads a shard header, retrying once on failure. Header
// read errors during indexing are often transient I/O; classification
// results themselves are deterministic and never retried.
func readHeaderRetry(ctx context.Context, store *shard.Store, slideID string) (shard.Header, error) {
	h, err := store.ReadHeader(ctx, slideID)
	if err == nil || ctx.Err() != nil {
		return h, err
	}
	return store.ReadHeader(ctx, slideID)
}

// Len returns the total number of pairs.
func (d *Dataset) Len() int {
	return int(d.index.total)
}

// TotalPairs returns the total number of pairs.
func (d *Dataset) TotalPairs() uint64 {
	return d.index.total
}

// Slides returns the number of slides contributing to the dataset.
func (d *Dataset) Slides() int {
	return len(d.index.buckets) / 2
}

// Resolve maps a flat index to (slide identifier, category, local offset).
// Fails with *ErrIndexOutOfRange outside [0, TotalPairs()).
func (d *Dataset) Resolve(index uint64) (string, shard.Category, uint64, error) {
	return d.index.resolve(index)
}

// Pair resolves a flat index and fetches the pair's two patch indices from
// the owning shard.
func (d *Dataset) Pair(ctx context.Context, index uint64) (PairRef, error) {
	slideID, category, local, err := d.Resolve(index)
	if err != nil {
		return PairRef{}, err
	}

	sh, err := d.getShard(ctx, slideID)
	if err != nil {
		return PairRef{}, err
	}

	pairs := sh.Pairs(category)
	if local >= uint64(len(pairs)) {
		// Header and content disagree; treat the shard as corrupt rather
		// than exposing a stale entry.
		return PairRef{}, shard.NewErrUnavailable(slideID, errShardShorterThanHeader)
	}
	p := pairs[local]
	return PairRef{SlideID: slideID, Category: category, I: p.I, J: p.J}, nil
}

// Get dereferences a flat index into the pair's two patch images via the
// configured PatchStore.
func (d *Dataset) Get(ctx context.Context, index uint64) (Item, error) {
	if d.patches == nil {
		return Item{}, ErrNoPatchStore
	}
	ref, err := d.Pair(ctx, index)
	if err != nil {
		return Item{}, err
	}
	a, err := d.patches.Patch(ctx, ref.SlideID, ref.I)
	if err != nil {
		return Item{}, fmt.Errorf("patch %d of slide %q: %w", ref.I, ref.SlideID, err)
	}
	b, err := d.patches.Patch(ctx, ref.SlideID, ref.J)
	if err != nil {
		return Item{}, fmt.Errorf("patch %d of slide %q: %w", ref.J, ref.SlideID, err)
	}
	return Item{PairRef: ref, A: a, B: b}, nil
}

// getShard returns a decoded shard, serving repeated accesses from the LRU
// cache and collapsing concurrent loads of the same slide.
func (d *Dataset) getShard(ctx context.Context, slideID string) (*shard.Shard, error) {
	if sh, ok := d.cache.Get(slideID); ok {
		return sh, nil
	}

	d.loadMu.Lock()
	if sh, ok := d.cache.Get(slideID); ok {
		d.loadMu.Unlock()
		return sh, nil
	}
	if l, ok := d.loads[slideID]; ok {
		d.loadMu.Unlock()
		select {
		case <-l.done:
			return l.sh, l.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	l := &shardLoad{done: make(chan struct{})}
	d.loads[slideID] = l
	d.loadMu.Unlock()

	l.sh, l.err = d.store.Read(ctx, slideID)
	close(l.done)

	d.loadMu.Lock()
	delete(d.loads, slideID)
	if l.err == nil {
		d.cache.Add(slideID, l.sh)
	}
	d.loadMu.Unlock()

	return l.sh, l.err
}
