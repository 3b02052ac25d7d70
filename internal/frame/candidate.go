package frame

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// SaveVariant selects which derived representation of a candidate is
// persisted.
type SaveVariant uint8

const (
	VariantColor SaveVariant = iota
	VariantGray
	VariantDiff
	VariantThreshold
)

func (v SaveVariant) String() string {
	switch v {
	case VariantColor:
		return "color"
	case VariantGray:
		return "gray"
	case VariantDiff:
		return "diff"
	case VariantThreshold:
		return "threshold"
	default:
		return fmt.Sprintf("variant(%d)", uint8(v))
	}
}

// ParseSaveVariant accepts the names produced by String plus a few aliases.
func ParseSaveVariant(raw string) (SaveVariant, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "color", "colour":
		return VariantColor, nil
	case "gray", "grey", "grayscale":
		return VariantGray, nil
	case "diff", "diff-mask":
		return VariantDiff, nil
	case "threshold", "thresh", "threshold-mask":
		return VariantThreshold, nil
	default:
		return VariantColor, fmt.Errorf("unknown save variant %q", raw)
	}
}

// Candidate is a frame flagged by motion detection plus its metadata. It
// owns Frame, Diff, and Mask. Diff and Mask are the difference image and
// threshold mask that flagged the frame; Write picks which of the three to
// persist from Variant.
type Candidate struct {
	Frame    Frame
	Diff     Frame
	Mask     Frame
	Seq      uint64
	Detected time.Time
	Variant  SaveVariant
	Motion   int
	Lines    int
	Circles  int
}

// Release releases every frame the candidate owns.
func (c Candidate) Release() error {
	return errors.Join(c.Frame.Release(), c.Diff.Release(), c.Mask.Release())
}

// Malformed reports whether the candidate has unusable dimensions.
func (c Candidate) Malformed() bool {
	return c.Frame.Width <= 0 || c.Frame.Height <= 0 || c.Frame.Empty()
}
