//go:build opencv

package opencv

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"

	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

var (
	red   = color.RGBA{R: 255, A: 255}
	green = color.RGBA{G: 255, A: 255}
	white = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Transformer runs the image functions through OpenCV.
type Transformer struct{}

// NewTransformer returns an OpenCV-backed Transformer.
func NewTransformer() *Transformer {
	return &Transformer{}
}

var _ vision.Transformer = (*Transformer)(nil)

func (t *Transformer) Grayscale(f frame.Frame) frame.Frame {
	if f.Format == frame.FormatGray {
		return f.Clone()
	}
	src, err := toMat(f)
	if err != nil {
		return frame.Frame{}
	}
	defer src.Close()
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return fromMat(f.Ledger(), f, gray)
}

func (t *Transformer) Difference(a, b frame.Frame) frame.Frame {
	if a.Width != b.Width || a.Height != b.Height || a.Format != b.Format {
		return frame.Frame{}
	}
	ma, err := toMat(a)
	if err != nil {
		return frame.Frame{}
	}
	defer ma.Close()
	mb, err := toMat(b)
	if err != nil {
		return frame.Frame{}
	}
	defer mb.Close()
	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(ma, mb, &diff)
	return fromMat(a.Ledger(), a, diff)
}

func (t *Transformer) Threshold(f frame.Frame, level uint8) frame.Frame {
	src, err := toMat(f)
	if err != nil {
		return frame.Frame{}
	}
	defer src.Close()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(src, &mask, float32(level), 255, gocv.ThresholdBinary)
	return fromMat(f.Ledger(), f, mask)
}

func (t *Transformer) CountNonZero(mask frame.Frame) int {
	if mask.Format != frame.FormatGray {
		return 0
	}
	src, err := toMat(mask)
	if err != nil {
		return 0
	}
	defer src.Close()
	return gocv.CountNonZero(src)
}

// EdgeEnhance smooths with the selected filter, then runs Canny.
func (t *Transformer) EdgeEnhance(f frame.Frame, method vision.FilterMethod) frame.Frame {
	gray, err := grayMat(f)
	if err != nil {
		return frame.Frame{}
	}
	defer gray.Close()
	smooth := gocv.NewMat()
	defer smooth.Close()
	switch method {
	case vision.Filter2D:
		kernel := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1.0/9, 0, 0, 0), 3, 3, gocv.MatTypeCV32F)
		defer kernel.Close()
		gocv.Filter2D(gray, &smooth, -1, kernel, image.Pt(-1, -1), 0, gocv.BorderDefault)
	case vision.FilterSeparable:
		kx := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1.0/3, 0, 0, 0), 1, 3, gocv.MatTypeCV32F)
		defer kx.Close()
		ky := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(1.0/3, 0, 0, 0), 3, 1, gocv.MatTypeCV32F)
		defer ky.Close()
		gocv.SepFilter2D(gray, &smooth, -1, kx, ky, image.Pt(-1, -1), 0, gocv.BorderDefault)
	default:
		gocv.GaussianBlur(gray, &smooth, image.Pt(5, 5), 0, 0, gocv.BorderDefault)
	}
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(smooth, &edges, 80, 320)
	return fromMat(f.Ledger(), f, edges)
}

func (t *Transformer) DetectLines(f frame.Frame) []vision.Segment {
	gray, err := grayMat(f)
	if err != nil {
		return nil
	}
	defer gray.Close()
	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(gray, &lines, 1, math.Pi/180, 80, 80, 10)
	out := make([]vision.Segment, 0, lines.Rows())
	for i := 0; i < lines.Rows(); i++ {
		v := lines.GetVeciAt(i, 0)
		out = append(out, vision.Segment{A: image.Pt(int(v[0]), int(v[1])), B: image.Pt(int(v[2]), int(v[3]))})
	}
	return out
}

func (t *Transformer) DetectCircles(f frame.Frame) []vision.Circle {
	gray, err := grayMat(f)
	if err != nil {
		return nil
	}
	defer gray.Close()
	circles := gocv.NewMat()
	defer circles.Close()
	minDist := float64(gray.Rows()) / 8
	gocv.HoughCirclesWithParams(gray, &circles, gocv.HoughGradient, 1, minDist, 320, 40, 0, 0)
	out := make([]vision.Circle, 0, circles.Cols())
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		out = append(out, vision.Circle{
			Center: image.Pt(int(math.Round(float64(v[0]))), int(math.Round(float64(v[1])))),
			Radius: int(math.Round(float64(v[2]))),
		})
	}
	return out
}

func (t *Transformer) Overlay(f frame.Frame, lines []vision.Segment, circles []vision.Circle) frame.Frame {
	canvas, err := bgrMat(f)
	if err != nil {
		return frame.Frame{}
	}
	defer canvas.Close()
	for _, seg := range lines {
		gocv.Line(&canvas, seg.A, seg.B, red, 3)
	}
	for _, c := range circles {
		gocv.Circle(&canvas, c.Center, c.Radius, green, 3)
	}
	return fromMat(f.Ledger(), f, canvas)
}

func (t *Transformer) Annotate(f frame.Frame, text string, at image.Point) frame.Frame {
	canvas, err := toMat(f)
	if err != nil {
		return frame.Frame{}
	}
	defer canvas.Close()
	gocv.PutText(&canvas, text, at, gocv.FontHersheyPlain, 1, white, 1)
	return fromMat(f.Ledger(), f, canvas)
}

func grayMat(f frame.Frame) (gocv.Mat, error) {
	src, err := toMat(f)
	if err != nil || f.Format == frame.FormatGray {
		return src, err
	}
	defer src.Close()
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray, nil
}

func bgrMat(f frame.Frame) (gocv.Mat, error) {
	src, err := toMat(f)
	if err != nil || f.Format != frame.FormatGray {
		return src, err
	}
	defer src.Close()
	bgr := gocv.NewMat()
	gocv.CvtColor(src, &bgr, gocv.ColorGrayToBGR)
	return bgr, nil
}
