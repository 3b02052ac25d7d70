package capture

import (
	"context"
	"errors"
	"sync"
	"time"

	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

// Painter fills an RGB pixel buffer for the frame with the given sequence
// number.
type Painter func(seq uint64, width, height int, pix []byte)

// Synthetic generates frames in memory.
type Synthetic struct {
	ledger  *frame.Ledger
	painter Painter

	mu     sync.Mutex
	open   bool
	width  int
	height int
	seq    uint64
}

var _ vision.Capture = (*Synthetic)(nil)

// NewSynthetic returns a synthetic source. A nil painter draws a moving
// square.
func NewSynthetic(ledger *frame.Ledger, painter Painter) *Synthetic {
	if painter == nil {
		painter = MovingSquare(32, 4)
	}
	return &Synthetic{ledger: ledger, painter: painter, width: 640, height: 480}
}

func (s *Synthetic) Open(int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = true
	return nil
}

func (s *Synthetic) Configure(width, height int) error {
	if width <= 0 || height <= 0 {
		return errors.New("synthetic capture dimensions must be positive")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.width, s.height = width, height
	return nil
}

func (s *Synthetic) Next(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return frame.Frame{}, errors.New("synthetic capture not open")
	}
	s.seq++
	f := frame.New(s.ledger, s.width, s.height, frame.FormatRGB)
	f.Seq = s.seq
	f.Captured = time.Now()
	s.painter(s.seq, s.width, s.height, f.Pix())
	return f, nil
}

func (s *Synthetic) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// MovingSquare draws a white square of the given size on a dark background,
// advancing step pixels per frame and wrapping at the right edge.
func MovingSquare(size, step int) Painter {
	return func(seq uint64, width, height int, pix []byte) {
		fill(pix, 16)
		x0 := int(seq*uint64(step)) % max(width-size, 1)
		y0 := max(height/2-size/2, 0)
		for y := y0; y < min(y0+size, height); y++ {
			for x := x0; x < min(x0+size, width); x++ {
				i := (y*width + x) * 3
				pix[i], pix[i+1], pix[i+2] = 240, 240, 240
			}
		}
	}
}

// Alternating produces runs of identical frames: period frames of a dark
// field followed by period frames of a bright field, repeating. With
// period 1 every consecutive pair differs.
func Alternating(period int, dark, bright byte) Painter {
	if period < 1 {
		period = 1
	}
	return func(seq uint64, _, _ int, pix []byte) {
		if ((seq-1)/uint64(period))%2 == 0 {
			fill(pix, dark)
		} else {
			fill(pix, bright)
		}
	}
}

// Sequence paints frame n with levels[(n-1) % len(levels)].
func Sequence(levels ...byte) Painter {
	return func(seq uint64, _, _ int, pix []byte) {
		if len(levels) == 0 {
			fill(pix, 0)
			return
		}
		fill(pix, levels[(seq-1)%uint64(len(levels))])
	}
}

func fill(pix []byte, v byte) {
	for i := range pix {
		pix[i] = v
	}
}
