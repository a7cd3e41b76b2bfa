package slide

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/patchpairs/codec"
)

// SidecarExt is the filename extension of coordinate sidecar files.
const SidecarExt = ".json"

// sidecar is the on-disk interchange format produced by patch extraction
// tooling: resolution metadata plus the ordered coordinate set.
type sidecar struct {
	MPPX   float64      `json:"mpp_x"`
	MPPY   float64      `json:"mpp_y"`
	Coords [][2]float64 `json:"coords"`
}

// DirectorySourceOptions configure a DirectorySource.
type DirectorySourceOptions struct {
	// Codec decodes sidecar files. Defaults to codec.Default.
	Codec codec.Codec
}

// DirectorySource reads slides from a directory of per-slide coordinate
// sidecar files (<slideID>.json). It is the built-in Slide collaborator for
// the mining CLI and for tests; production callers with their own slide
// backends implement Slide directly.
type DirectorySource struct {
	dir   string
	codec codec.Codec
}

// NewDirectorySource creates a DirectorySource rooted at dir.
func NewDirectorySource(dir string, optFns ...func(o *DirectorySourceOptions)) *DirectorySource {
	opts := DirectorySourceOptions{
		Codec: codec.Default,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	return &DirectorySource{dir: dir, codec: opts.Codec}
}

// Slides returns one Slide per sidecar file, sorted by slide identifier.
// Sidecar contents are loaded lazily on first Properties/Coordinates call.
func (s *DirectorySource) Slides(ctx context.Context) ([]Slide, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read sidecar directory: %w", err)
	}

	var slides []Slide
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), SidecarExt) {
			continue
		}
		id := strings.TrimSuffix(e.Name(), SidecarExt)
		slides = append(slides, &fileSlide{
			id:    id,
			path:  filepath.Join(s.dir, e.Name()),
			codec: s.codec,
		})
	}

	sort.Slice(slides, func(i, j int) bool { return slides[i].ID() < slides[j].ID() })
	return slides, nil
}

// fileSlide implements Slide over one sidecar file.
type fileSlide struct {
	id    string
	path  string
	codec codec.Codec

	once sync.Once
	sc   sidecar
	err  error
}

func (f *fileSlide) ID() string { return f.id }

func (f *fileSlide) load() error {
	f.once.Do(func() {
		data, err := os.ReadFile(f.path)
		if err != nil {
			f.err = err
			return
		}
		if err := f.codec.Unmarshal(data, &f.sc); err != nil {
			f.err = fmt.Errorf("decode sidecar %s: %w", f.path, err)
		}
	})
	return f.err
}

func (f *fileSlide) Properties(_ context.Context) (map[string]string, error) {
	if err := f.load(); err != nil {
		return nil, err
	}
	props := make(map[string]string, 2)
	// A sidecar written without resolution metadata stays absent from the
	// map so that mining surfaces ErrMissingMetadata instead of mpp=0.
	if f.sc.MPPX > 0 {
		props[PropMPPX] = strconv.FormatFloat(f.sc.MPPX, 'g', -1, 64)
	}
	if f.sc.MPPY > 0 {
		props[PropMPPY] = strconv.FormatFloat(f.sc.MPPY, 'g', -1, 64)
	}
	return props, nil
}

func (f *fileSlide) Coordinates(_ context.Context) ([]Coord, error) {
	if err := f.load(); err != nil {
		return nil, err
	}
	coords := make([]Coord, len(f.sc.Coords))
	for i, c := range f.sc.Coords {
		coords[i] = Coord{X: c[0], Y: c[1]}
	}
	return coords, nil
}
