package software

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

var (
	lineColor   = color.NRGBA{R: 255, A: 255}
	circleColor = color.NRGBA{G: 255, A: 255}
	textColor   = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
	shadowColor = color.NRGBA{A: 255}

	laplacian = [9]float64{
		-1, -1, -1,
		-1, 8, -1,
		-1, -1, -1,
	}
	box = [9]float64{
		1, 1, 1,
		1, 1, 1,
		1, 1, 1,
	}
	rowBinomial = [9]float64{
		0, 0, 0,
		1, 2, 1,
		0, 0, 0,
	}
	colBinomial = [9]float64{
		0, 1, 0,
		0, 2, 0,
		0, 1, 0,
	}
)

// Transformer is the pure-Go image collaborator.
type Transformer struct {
	// EdgeLevel is the edge-map value treated as an edge pixel by
	// DetectLines.
	EdgeLevel uint8
	// LineVotes is the minimum Hough accumulator count for a line.
	LineVotes int
	// MaxLines caps the number of returned segments.
	MaxLines int
}

// New returns a Transformer with defaults matching the OpenCV backend's
// line detection threshold.
func New() *Transformer {
	return &Transformer{EdgeLevel: 128, LineVotes: 80, MaxLines: 16}
}

var _ vision.Transformer = (*Transformer)(nil)

func adopt(src, out frame.Frame) frame.Frame {
	out.Seq = src.Seq
	out.Captured = src.Captured
	return out
}

// Grayscale converts f to a single-channel frame.
func (t *Transformer) Grayscale(f frame.Frame) frame.Frame {
	if f.Empty() {
		return frame.Frame{}
	}
	if f.Format == frame.FormatGray {
		return f.Clone()
	}
	return adopt(f, frame.FromImage(f.Ledger(), imaging.Grayscale(f.Image()), frame.FormatGray))
}

// Difference returns |a-b| per pixel for two gray frames of equal size.
func (t *Transformer) Difference(a, b frame.Frame) frame.Frame {
	if a.Empty() || b.Empty() || a.Width != b.Width || a.Height != b.Height ||
		a.Format != frame.FormatGray || b.Format != frame.FormatGray {
		return frame.Frame{}
	}
	out := a.Derive(frame.FormatGray)
	dst, pa, pb := out.Pix(), a.Pix(), b.Pix()
	for i := range dst {
		if pa[i] > pb[i] {
			dst[i] = pa[i] - pb[i]
		} else {
			dst[i] = pb[i] - pa[i]
		}
	}
	return out
}

// Threshold produces a binary mask: 255 where a gray pixel exceeds level.
func (t *Transformer) Threshold(f frame.Frame, level uint8) frame.Frame {
	if f.Empty() || f.Format != frame.FormatGray {
		return frame.Frame{}
	}
	out := f.Derive(frame.FormatGray)
	dst := out.Pix()
	for i, v := range f.Pix() {
		if v > level {
			dst[i] = 255
		}
	}
	return out
}

// CountNonZero counts non-zero bytes of a gray mask.
func (t *Transformer) CountNonZero(mask frame.Frame) int {
	if mask.Empty() || mask.Format != frame.FormatGray {
		return 0
	}
	n := 0
	for _, v := range mask.Pix() {
		if v != 0 {
			n++
		}
	}
	return n
}

// EdgeEnhance smooths f with the selected filter and returns a gray
// Laplacian edge map.
func (t *Transformer) EdgeEnhance(f frame.Frame, method vision.FilterMethod) frame.Frame {
	if f.Empty() {
		return frame.Frame{}
	}
	img := image.Image(imaging.Grayscale(f.Image()))
	switch method {
	case vision.Filter2D:
		img = imaging.Convolve3x3(img, box, &imaging.ConvolveOptions{Normalize: true})
	case vision.FilterSeparable:
		img = imaging.Convolve3x3(img, rowBinomial, &imaging.ConvolveOptions{Normalize: true})
		img = imaging.Convolve3x3(img, colBinomial, &imaging.ConvolveOptions{Normalize: true})
	default:
		img = imaging.Blur(img, 1.0)
	}
	edges := imaging.Convolve3x3(img, laplacian, &imaging.ConvolveOptions{Abs: true})
	return adopt(f, frame.FromImage(f.Ledger(), edges, frame.FormatGray))
}

// DetectLines runs a Hough line search over the edge pixels of f.
func (t *Transformer) DetectLines(f frame.Frame) []vision.Segment {
	if f.Empty() {
		return nil
	}
	gray := f
	if f.Format != frame.FormatGray {
		gray = t.Grayscale(f)
		defer gray.Release()
	}
	return houghLines(gray.Pix(), gray.Width, gray.Height, t.EdgeLevel, t.LineVotes, t.MaxLines)
}

// DetectCircles is not supported by the software backend.
func (t *Transformer) DetectCircles(frame.Frame) []vision.Circle {
	return nil
}

// Overlay draws lines in red and circles in green onto an RGB copy of f.
func (t *Transformer) Overlay(f frame.Frame, lines []vision.Segment, circles []vision.Circle) frame.Frame {
	if f.Empty() {
		return frame.Frame{}
	}
	canvas := imaging.Clone(f.Image())
	for _, seg := range lines {
		drawLine(canvas, seg.A, seg.B, lineColor)
	}
	for _, c := range circles {
		drawCircle(canvas, c.Center, c.Radius, circleColor)
	}
	return adopt(f, frame.FromImage(f.Ledger(), canvas, frame.FormatRGB))
}

// Annotate stamps text at the given baseline position, keeping f's format.
func (t *Transformer) Annotate(f frame.Frame, text string, at image.Point) frame.Frame {
	if f.Empty() {
		return frame.Frame{}
	}
	canvas := imaging.Clone(f.Image())
	drawText(canvas, text, at.Add(image.Pt(1, 1)), shadowColor)
	drawText(canvas, text, at, textColor)
	return adopt(f, frame.FromImage(f.Ledger(), canvas, f.Format))
}

func drawText(dst draw.Image, text string, at image.Point, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(at.X, at.Y),
	}
	d.DrawString(text)
}

func init() {
	vision.Register("software", func(*frame.Ledger) (vision.Backend, error) {
		return vision.Backend{Transformer: New()}, nil
	})
}
