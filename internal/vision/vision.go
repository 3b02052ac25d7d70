// Package vision declares the image collaborators the pipeline depends on:
// frame capture, stateless image transforms, and persistence codecs.
//
// The pipeline only relies on the shapes declared here. Two implementations
// exist: vision/software (pure Go on disintegration/imaging, always built) and
// vision/opencv (gocv, built with -tags opencv).
package vision

import (
	"context"
	"fmt"
	"image"
	"strings"

	"framewatch/internal/frame"
)

// Capture produces camera frames.
type Capture interface {
	Open(device int) error
	Configure(width, height int) error
	// Next returns the next frame. An empty frame means no frame this tick
	// and is not an error.
	Next(ctx context.Context) (frame.Frame, error)
	Close() error
}

// Segment is a detected line segment.
type Segment struct {
	A image.Point
	B image.Point
}

// Circle is a detected circle.
type Circle struct {
	Center image.Point
	Radius int
}

// FilterMethod selects the smoothing kernel applied before edge extraction.
type FilterMethod int

const (
	FilterGaussian FilterMethod = iota
	Filter2D
	FilterSeparable
)

func (m FilterMethod) String() string {
	switch m {
	case FilterGaussian:
		return "gaussian"
	case Filter2D:
		return "filter2d"
	case FilterSeparable:
		return "sepfilter2d"
	default:
		return fmt.Sprintf("filter(%d)", int(m))
	}
}

// ParseFilter maps a configuration name to a FilterMethod.
func ParseFilter(raw string) (FilterMethod, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "gaussian", "blur":
		return FilterGaussian, nil
	case "filter2d":
		return Filter2D, nil
	case "sepfilter2d", "separable":
		return FilterSeparable, nil
	default:
		return FilterGaussian, fmt.Errorf("unknown filter method %q", raw)
	}
}

// Transformer is a set of stateless image functions. Every returned frame
// is a new allocation owned by the caller; inputs are never mutated or
// released.
type Transformer interface {
	Grayscale(f frame.Frame) frame.Frame
	Difference(a, b frame.Frame) frame.Frame
	Threshold(f frame.Frame, level uint8) frame.Frame
	CountNonZero(mask frame.Frame) int
	EdgeEnhance(f frame.Frame, method FilterMethod) frame.Frame
	DetectLines(f frame.Frame) []Segment
	DetectCircles(f frame.Frame) []Circle
	Overlay(f frame.Frame, lines []Segment, circles []Circle) frame.Frame
	Annotate(f frame.Frame, text string, at image.Point) frame.Frame
}

// Persister stores stills and appends to a running video.
type Persister interface {
	SaveStill(f frame.Frame, path string) error
	AppendVideo(f frame.Frame) error
	Close() error
}
