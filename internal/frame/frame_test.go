package frame

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestLedgerBalancesAllocAndRelease(t *testing.T) {
	ledger := NewLedger()
	a := New(ledger, 4, 2, FormatRGB)
	b := a.Clone()
	c := b.Derive(FormatGray)

	if got := ledger.Outstanding(); got != 3 {
		t.Fatalf("expected 3 outstanding, got %d", got)
	}
	for _, f := range []Frame{a, b, c} {
		if err := f.Release(); err != nil {
			t.Fatalf("release: %v", err)
		}
	}
	snap := ledger.Snapshot()
	if snap.Outstanding != 0 || snap.Allocated != 3 || snap.Released != 3 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestDoubleReleaseIsRejected(t *testing.T) {
	ledger := NewLedger()
	f := New(ledger, 2, 2, FormatGray)
	alias := f
	if err := f.Release(); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := alias.Release(); !errors.Is(err, ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
	if ledger.Released() != 1 || ledger.DoubleReleases() != 1 {
		t.Fatalf("unexpected counters released=%d doubles=%d", ledger.Released(), ledger.DoubleReleases())
	}
	if !alias.Released() {
		t.Fatal("expected alias to observe release")
	}
}

func TestEmptyFrameReleaseIsNoop(t *testing.T) {
	var f Frame
	if !f.Empty() {
		t.Fatal("zero frame should be empty")
	}
	if err := f.Release(); err != nil {
		t.Fatalf("release empty: %v", err)
	}
	zero := New(NewLedger(), 0, 10, FormatGray)
	if !zero.Empty() || zero.Ledger() != nil {
		t.Fatal("zero-width frame should not allocate")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	f, err := FromPixels(nil, 2, 1, FormatGray, []byte{1, 2})
	if err != nil {
		t.Fatalf("FromPixels: %v", err)
	}
	f.Seq = 9
	clone := f.Clone()
	clone.Pix()[0] = 99
	if f.Pix()[0] != 1 {
		t.Fatal("clone shares pixel storage with original")
	}
	if clone.Seq != 9 {
		t.Fatalf("clone lost metadata: seq=%d", clone.Seq)
	}
}

func TestFromPixelsValidatesLength(t *testing.T) {
	if _, err := FromPixels(nil, 2, 2, FormatRGB, make([]byte, 5)); err == nil {
		t.Fatal("expected length mismatch error")
	}
	if _, err := FromPixels(nil, 0, 2, FormatRGB, nil); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestImageRoundTrip(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	src.Set(0, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	src.Set(1, 0, color.NRGBA{R: 40, G: 50, B: 60, A: 255})

	f := FromImage(nil, src, FormatRGB)
	if got := f.Pix(); got[3] != 40 || got[5] != 60 {
		t.Fatalf("unexpected pixels %v", got)
	}
	img := f.Image()
	r, g, b, _ := img.At(0, 0).RGBA()
	if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
		t.Fatalf("unexpected pixel at 0,0: %d %d %d", r>>8, g>>8, b>>8)
	}

	gray := FromImage(nil, src, FormatGray)
	if gray.Format != FormatGray || len(gray.Pix()) != 2 {
		t.Fatalf("unexpected gray frame %+v", gray)
	}
}

func TestParseSaveVariant(t *testing.T) {
	cases := map[string]SaveVariant{
		"":               VariantColor,
		"Color":          VariantColor,
		"grayscale":      VariantGray,
		"diff-mask":      VariantDiff,
		"threshold-mask": VariantThreshold,
	}
	for raw, want := range cases {
		got, err := ParseSaveVariant(raw)
		if err != nil || got != want {
			t.Fatalf("ParseSaveVariant(%q) = %v, %v; want %v", raw, got, err, want)
		}
		if back, _ := ParseSaveVariant(got.String()); back != got {
			t.Fatalf("String round trip failed for %v", got)
		}
	}
	if _, err := ParseSaveVariant("sepia"); err == nil {
		t.Fatal("expected error for unknown variant")
	}
}

func TestCandidateMalformed(t *testing.T) {
	c := Candidate{Frame: Frame{Width: 0, Height: 10}}
	if !c.Malformed() {
		t.Fatal("zero width candidate should be malformed")
	}
	ok := Candidate{Frame: New(nil, 1, 1, FormatGray)}
	if ok.Malformed() {
		t.Fatal("valid candidate reported malformed")
	}
}

func TestCandidateReleaseFreesAllFrames(t *testing.T) {
	ledger := NewLedger()
	c := Candidate{
		Frame: New(ledger, 2, 2, FormatRGB),
		Diff:  New(ledger, 2, 2, FormatGray),
		Mask:  New(ledger, 2, 2, FormatGray),
	}
	if err := c.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if ledger.Outstanding() != 0 {
		t.Fatalf("outstanding = %d", ledger.Outstanding())
	}
	if err := c.Release(); !errors.Is(err, ErrReleased) {
		t.Fatalf("second release = %v, want ErrReleased", err)
	}
}
