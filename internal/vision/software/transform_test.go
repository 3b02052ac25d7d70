package software

import (
	"image"
	"testing"

	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

func grayFrame(t *testing.T, ledger *frame.Ledger, w, h int, fill func(x, y int) byte) frame.Frame {
	t.Helper()
	pix := make([]byte, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			pix[y*w+x] = fill(x, y)
		}
	}
	f, err := frame.FromPixels(ledger, w, h, frame.FormatGray, pix)
	if err != nil {
		t.Fatalf("FromPixels: %v", err)
	}
	return f
}

func TestDifferenceThresholdCount(t *testing.T) {
	ledger := frame.NewLedger()
	tr := New()
	a := grayFrame(t, ledger, 8, 8, func(x, y int) byte { return 10 })
	b := grayFrame(t, ledger, 8, 8, func(x, y int) byte {
		if x < 4 {
			return 200
		}
		return 30
	})
	diff := tr.Difference(a, b)
	mask := tr.Threshold(diff, 50)
	if got := tr.CountNonZero(mask); got != 32 {
		t.Fatalf("CountNonZero = %d, want 32", got)
	}
	if diff.Pix()[0] != 190 || diff.Pix()[7] != 20 {
		t.Fatalf("unexpected diff values %d %d", diff.Pix()[0], diff.Pix()[7])
	}
	for _, f := range []frame.Frame{a, b, diff, mask} {
		if err := f.Release(); err != nil {
			t.Fatalf("Release: %v", err)
		}
	}
	if ledger.Outstanding() != 0 {
		t.Fatalf("outstanding = %d", ledger.Outstanding())
	}
}

func TestDifferenceRejectsMismatchedFrames(t *testing.T) {
	ledger := frame.NewLedger()
	tr := New()
	a := grayFrame(t, ledger, 4, 4, func(int, int) byte { return 0 })
	b := grayFrame(t, ledger, 5, 4, func(int, int) byte { return 0 })
	defer a.Release()
	defer b.Release()
	if out := tr.Difference(a, b); !out.Empty() {
		t.Fatal("expected empty frame for mismatched sizes")
	}
}

func TestGrayscaleKeepsMetadata(t *testing.T) {
	ledger := frame.NewLedger()
	tr := New()
	rgb := frame.New(ledger, 6, 4, frame.FormatRGB)
	rgb.Seq = 42
	for i := range rgb.Pix() {
		rgb.Pix()[i] = 128
	}
	gray := tr.Grayscale(rgb)
	if gray.Format != frame.FormatGray || gray.Seq != 42 || gray.Width != 6 {
		t.Fatalf("unexpected gray frame %+v", gray)
	}
	_ = rgb.Release()
	_ = gray.Release()
	if ledger.Outstanding() != 0 {
		t.Fatalf("outstanding = %d", ledger.Outstanding())
	}
}

func TestEdgeEnhanceFilters(t *testing.T) {
	ledger := frame.NewLedger()
	tr := New()
	src := grayFrame(t, ledger, 16, 16, func(x, y int) byte {
		if x >= 8 {
			return 255
		}
		return 0
	})
	defer src.Release()
	for _, method := range []vision.FilterMethod{vision.FilterGaussian, vision.Filter2D, vision.FilterSeparable} {
		t.Run(method.String(), func(t *testing.T) {
			edges := tr.EdgeEnhance(src, method)
			defer edges.Release()
			if edges.Format != frame.FormatGray || edges.Width != 16 || edges.Height != 16 {
				t.Fatalf("unexpected edge frame %dx%d %s", edges.Width, edges.Height, edges.Format)
			}
			if tr.CountNonZero(edges) == 0 {
				t.Fatal("expected edge response along the step")
			}
		})
	}
}

func TestDetectLinesFindsVerticalLine(t *testing.T) {
	ledger := frame.NewLedger()
	tr := New()
	tr.LineVotes = 50
	src := grayFrame(t, ledger, 100, 100, func(x, y int) byte {
		if x == 30 {
			return 255
		}
		return 0
	})
	defer src.Release()
	lines := tr.DetectLines(src)
	if len(lines) == 0 {
		t.Fatal("expected a line")
	}
	seg := lines[0]
	if abs(seg.A.X-30) > 1 || abs(seg.B.X-30) > 1 {
		t.Fatalf("segment %v is not near x=30", seg)
	}
}

func TestOverlayProducesRGB(t *testing.T) {
	ledger := frame.NewLedger()
	tr := New()
	src := grayFrame(t, ledger, 20, 20, func(int, int) byte { return 0 })
	defer src.Release()
	out := tr.Overlay(src, []vision.Segment{{A: image.Pt(0, 0), B: image.Pt(19, 0)}},
		[]vision.Circle{{Center: image.Pt(10, 10), Radius: 5}})
	defer out.Release()
	if out.Format != frame.FormatRGB {
		t.Fatalf("format = %s, want rgb", out.Format)
	}
	pix := out.Pix()
	if pix[0] != 255 || pix[1] != 0 {
		t.Fatalf("expected red line pixel, got %v", pix[:3])
	}
	i := (10*20 + 15) * 3
	if pix[i+1] != 255 || pix[i] != 0 {
		t.Fatalf("expected green circle pixel, got %v", pix[i:i+3])
	}
}

func TestAnnotateKeepsFormat(t *testing.T) {
	ledger := frame.NewLedger()
	tr := New()
	src := grayFrame(t, ledger, 80, 20, func(int, int) byte { return 0 })
	defer src.Release()
	out := tr.Annotate(src, "seq 1", image.Pt(2, 14))
	defer out.Release()
	if out.Format != frame.FormatGray {
		t.Fatalf("format = %s", out.Format)
	}
	if tr.CountNonZero(out) == 0 {
		t.Fatal("expected text pixels")
	}
}
