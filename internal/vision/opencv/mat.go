//go:build opencv

package opencv

import (
	"fmt"

	"gocv.io/x/gocv"

	"framewatch/internal/frame"
)

// toMat copies a frame into a new Mat. RGB frames become BGR.
func toMat(f frame.Frame) (gocv.Mat, error) {
	if f.Empty() {
		return gocv.NewMat(), fmt.Errorf("empty frame")
	}
	switch f.Format {
	case frame.FormatGray:
		view, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC1, f.Pix())
		if err != nil {
			return gocv.NewMat(), err
		}
		defer view.Close()
		return view.Clone(), nil
	default:
		view, err := gocv.NewMatFromBytes(f.Height, f.Width, gocv.MatTypeCV8UC3, f.Pix())
		if err != nil {
			return gocv.NewMat(), err
		}
		defer view.Close()
		bgr := gocv.NewMat()
		gocv.CvtColor(view, &bgr, gocv.ColorRGBToBGR)
		return bgr, nil
	}
}

// fromMat allocates a frame from m against ledger, keeping the metadata of
// like.
func fromMat(ledger *frame.Ledger, like frame.Frame, m gocv.Mat) frame.Frame {
	if m.Empty() {
		return frame.Frame{}
	}
	format := frame.FormatGray
	src := m
	if m.Channels() == 3 {
		format = frame.FormatRGB
		rgb := gocv.NewMat()
		defer rgb.Close()
		gocv.CvtColor(m, &rgb, gocv.ColorBGRToRGB)
		src = rgb
	}
	out, err := frame.FromPixels(ledger, src.Cols(), src.Rows(), format, src.ToBytes())
	if err != nil {
		return frame.Frame{}
	}
	out.Seq = like.Seq
	out.Captured = like.Captured
	return out
}
