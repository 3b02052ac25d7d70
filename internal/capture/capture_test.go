package capture

import (
	"context"
	"errors"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"framewatch/internal/faults"
	"framewatch/internal/frame"
	"framewatch/internal/testsupport"
)

func TestSyntheticAlternating(t *testing.T) {
	ledger := frame.NewLedger()
	src := NewSynthetic(ledger, Alternating(2, 10, 200))
	if err := src.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := src.Configure(4, 4); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	want := []byte{10, 10, 200, 200, 10}
	for i, level := range want {
		f, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if f.Seq != uint64(i+1) {
			t.Fatalf("seq = %d, want %d", f.Seq, i+1)
		}
		if f.Pix()[0] != level {
			t.Fatalf("frame %d level = %d, want %d", i+1, f.Pix()[0], level)
		}
		_ = f.Release()
	}
	if ledger.Outstanding() != 0 {
		t.Fatalf("outstanding = %d", ledger.Outstanding())
	}
}

func TestSyntheticRequiresOpen(t *testing.T) {
	src := NewSynthetic(frame.NewLedger(), nil)
	if _, err := src.Next(context.Background()); err == nil {
		t.Fatal("expected error before Open")
	}
}

type flakyCapture struct {
	ledger *frame.Ledger
	empty  int
	errs   int
	calls  int
}

func (f *flakyCapture) Open(int) error           { return nil }
func (f *flakyCapture) Configure(int, int) error { return nil }
func (f *flakyCapture) Close() error             { return nil }

func (f *flakyCapture) Next(context.Context) (frame.Frame, error) {
	f.calls++
	if f.errs > 0 {
		f.errs--
		return frame.Frame{}, errors.New("device busy")
	}
	if f.empty > 0 {
		f.empty--
		return frame.Frame{}, nil
	}
	return frame.New(f.ledger, 2, 2, frame.FormatGray), nil
}

func TestRetryingRecoversAfterEmptyReads(t *testing.T) {
	ledger := frame.NewLedger()
	inner := &flakyCapture{ledger: ledger, empty: 2}
	r := &Retrying{Capture: inner, Retries: 3}
	f, err := r.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if f.Empty() || inner.calls != 3 {
		t.Fatalf("frame empty=%v calls=%d", f.Empty(), inner.calls)
	}
	_ = f.Release()
}

func TestRetryingGivesUpWithTransientError(t *testing.T) {
	inner := &flakyCapture{ledger: frame.NewLedger(), errs: 10}
	r := &Retrying{Capture: inner, Retries: 2}
	f, err := r.Next(context.Background())
	if !f.Empty() {
		t.Fatal("expected empty frame")
	}
	if !errors.Is(err, faults.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if inner.calls != 3 {
		t.Fatalf("calls = %d, want 3", inner.calls)
	}
}

func TestRetryingEmptyWithoutErrorIsNotAnError(t *testing.T) {
	inner := &flakyCapture{ledger: frame.NewLedger(), empty: 10}
	r := &Retrying{Capture: inner, Retries: 1}
	f, err := r.Next(context.Background())
	if err != nil || !f.Empty() {
		t.Fatalf("got frame empty=%v err=%v", f.Empty(), err)
	}
}

func TestDirectoryReplayLoopsAndResizes(t *testing.T) {
	dir := t.TempDir()
	for i, c := range []color.NRGBA{{R: 255, A: 255}, {G: 255, A: 255}} {
		img := imaging.New(8, 8, c)
		if err := imaging.Save(img, filepath.Join(dir, []string{"a.png", "b.png"}[i])); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	ledger := frame.NewLedger()
	src := NewDirectory(ledger, dir)
	if err := src.Open(0); err != nil {
		t.Fatalf("Open: %v", err)
	}
	_ = src.Configure(4, 2)
	var got []byte
	for i := 0; i < 3; i++ {
		f, err := src.Next(context.Background())
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if f.Width != 4 || f.Height != 2 || f.Format != frame.FormatRGB {
			t.Fatalf("frame %dx%d %s", f.Width, f.Height, f.Format)
		}
		got = append(got, f.Pix()[0])
		_ = f.Release()
	}
	if got[0] != 255 || got[1] != 0 || got[2] != 255 {
		t.Fatalf("unexpected replay order %v", got)
	}
	if ledger.Outstanding() != 0 {
		t.Fatalf("outstanding = %d", ledger.Outstanding())
	}
}

func TestDirectoryOpenRejectsEmptyDir(t *testing.T) {
	if err := NewDirectory(frame.NewLedger(), t.TempDir()).Open(0); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestOpenSelectsSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Camera.Source = "synthetic"
	cfg.Camera.Width, cfg.Camera.Height = 8, 6
	src, err := Open(cfg, frame.NewLedger(), testsupport.Backend(), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer src.Close()
	f, err := src.Next(context.Background())
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	defer f.Release()
	if f.Width != 8 || f.Height != 6 {
		t.Fatalf("frame %dx%d, want 8x6", f.Width, f.Height)
	}

	cfg.Camera.Source = "device"
	if _, err := Open(cfg, frame.NewLedger(), testsupport.Backend(), nil); !faults.IsFatal(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
