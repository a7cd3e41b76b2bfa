// Package slide defines the read-only collaborator surface for whole-slide
// images: per-slide resolution metadata and extracted patch coordinates.
//
// The package never touches pixel data. It exposes what pair mining needs:
// microns-per-pixel metadata at base magnification and the ordered set of
// patch coordinates in base-resolution pixel space.
package slide

import (
	"context"
	"fmt"
	"strconv"
)

// OpenSlide property keys for microns-per-pixel at base magnification.
const (
	PropMPPX = "openslide.mpp-x"
	PropMPPY = "openslide.mpp-y"
)

// Coord is a patch coordinate in base-resolution pixel space.
type Coord struct {
	X float64
	Y float64
}

// Slide exposes one slide's identity, resolution metadata and patch
// coordinates. Implementations must be safe for concurrent use; all data is
// immutable once extracted.
type Slide interface {
	// ID returns the slide identifier.
	ID() string

	// Properties returns the slide's resolution metadata map
	// (e.g. PropMPPX/PropMPPY).
	Properties(ctx context.Context) (map[string]string, error)

	// Coordinates returns the ordered, index-addressable patch coordinate
	// set. The length is fixed once extracted.
	Coordinates(ctx context.Context) ([]Coord, error)
}

// Resolution holds microns-per-pixel along each axis at base magnification.
type Resolution struct {
	MPPX float64
	MPPY float64
}

// ErrMissingMetadata indicates absent or unparsable resolution metadata.
// Mining cannot proceed for the slide; the condition is fatal per slide and
// must be surfaced, never defaulted.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type ErrMissingMetadata struct {
	Property string
	cause    error
}

func (e *ErrMissingMetadata) Error() string {
	return fmt.Sprintf("missing resolution metadata: property %q", e.Property)
}

func (e *ErrMissingMetadata) Unwrap() error { return e.cause }

// ResolutionFromProperties extracts microns-per-pixel along both axes from a
// slide's property map.
func ResolutionFromProperties(props map[string]string) (Resolution, error) {
	mppX, err := parseMPP(props, PropMPPX)
	if err != nil {
		return Resolution{}, err
	}
	mppY, err := parseMPP(props, PropMPPY)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{MPPX: mppX, MPPY: mppY}, nil
}

func parseMPP(props map[string]string, key string) (float64, error) {
	raw, ok := props[key]
	if !ok {
		return 0, &ErrMissingMetadata{Property: key}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ErrMissingMetadata{Property: key, cause: err}
	}
	if v <= 0 {
		return 0, &ErrMissingMetadata{Property: key, cause: fmt.Errorf("non-positive value %q", raw)}
	}
	return v, nil
}

// MillimetersPerPixel converts the resolution and a downsample factor into a
// single physical-distance scale. The max of the two axes gives a
// conservative scale when pixel spacing is anisotropic.
func (r Resolution) MillimetersPerPixel(downsample int) float64 {
	mpp := r.MPPX
	if r.MPPY > mpp {
		mpp = r.MPPY
	}
	return mpp * float64(downsample) / 1000
}
