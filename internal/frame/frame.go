package frame

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync/atomic"
	"time"
)

// ErrReleased is returned when a frame's buffer is released a second time.
var ErrReleased = errors.New("frame buffer already released")

// Format identifies the pixel layout of a frame.
type Format uint8

const (
	FormatGray Format = 1
	FormatRGB  Format = 3
)

// Channels returns the number of bytes per pixel.
func (f Format) Channels() int {
	return int(f)
}

func (f Format) String() string {
	switch f {
	case FormatGray:
		return "gray"
	case FormatRGB:
		return "rgb"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

type buffer struct {
	pix      []byte
	ledger   *Ledger
	released atomic.Bool
}

// Frame is a raw image with an owned pixel buffer. Copying the struct copies
// the handle, not the pixels; only one copy may be treated as the owner.
type Frame struct {
	Width    int
	Height   int
	Format   Format
	Seq      uint64
	Captured time.Time

	buf *buffer
}

// New allocates a zeroed frame accounted against ledger. A nil ledger
// disables accounting.
func New(ledger *Ledger, width, height int, format Format) Frame {
	if width <= 0 || height <= 0 || format.Channels() <= 0 {
		return Frame{Width: width, Height: height, Format: format}
	}
	ledger.noteAlloc()
	return Frame{
		Width:  width,
		Height: height,
		Format: format,
		buf: &buffer{
			pix:    make([]byte, width*height*format.Channels()),
			ledger: ledger,
		},
	}
}

// FromPixels allocates a frame and copies pix into it.
func FromPixels(ledger *Ledger, width, height int, format Format, pix []byte) (Frame, error) {
	want := width * height * format.Channels()
	if width <= 0 || height <= 0 {
		return Frame{}, fmt.Errorf("frame dimensions %dx%d are not positive", width, height)
	}
	if len(pix) != want {
		return Frame{}, fmt.Errorf("pixel buffer length %d does not match %dx%d %s (%d)", len(pix), width, height, format, want)
	}
	f := New(ledger, width, height, format)
	copy(f.buf.pix, pix)
	return f, nil
}

// FromImage converts img into a frame of the requested format.
func FromImage(ledger *Ledger, img image.Image, format Format) Frame {
	if img == nil {
		return Frame{}
	}
	b := img.Bounds()
	f := New(ledger, b.Dx(), b.Dy(), format)
	if f.Empty() {
		return f
	}
	switch format {
	case FormatGray:
		gray := &image.Gray{Pix: f.buf.pix, Stride: f.Width, Rect: image.Rect(0, 0, f.Width, f.Height)}
		draw.Draw(gray, gray.Rect, img, b.Min, draw.Src)
	default:
		i := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
				f.buf.pix[i] = c.R
				f.buf.pix[i+1] = c.G
				f.buf.pix[i+2] = c.B
				i += 3
			}
		}
	}
	return f
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.buf == nil || f.Width <= 0 || f.Height <= 0
}

// Pix exposes the pixel bytes. Callers must own the frame to mutate them.
func (f Frame) Pix() []byte {
	if f.buf == nil {
		return nil
	}
	return f.buf.pix
}

// Stride returns the number of bytes per row.
func (f Frame) Stride() int {
	return f.Width * f.Format.Channels()
}

// Ledger returns the ledger the frame was allocated against.
func (f Frame) Ledger() *Ledger {
	if f.buf == nil {
		return nil
	}
	return f.buf.ledger
}

// Derive allocates a new frame with the same dimensions and metadata in the
// given format, accounted against the same ledger.
func (f Frame) Derive(format Format) Frame {
	out := New(f.Ledger(), f.Width, f.Height, format)
	out.Seq = f.Seq
	out.Captured = f.Captured
	return out
}

// Clone returns an independent deep copy.
func (f Frame) Clone() Frame {
	if f.Empty() {
		return Frame{Width: f.Width, Height: f.Height, Format: f.Format, Seq: f.Seq, Captured: f.Captured}
	}
	out := f.Derive(f.Format)
	copy(out.buf.pix, f.buf.pix)
	return out
}

// Release returns the buffer to the ledger. Releasing an empty frame is a
// no-op; releasing twice returns ErrReleased.
func (f Frame) Release() error {
	if f.buf == nil {
		return nil
	}
	if !f.buf.released.CompareAndSwap(false, true) {
		f.buf.ledger.noteDouble()
		return ErrReleased
	}
	f.buf.ledger.noteFree()
	f.buf.pix = nil
	return nil
}

// Released reports whether the buffer has been released.
func (f Frame) Released() bool {
	return f.buf != nil && f.buf.released.Load()
}

// Image returns an image view for encoders. Gray frames alias the pixel
// buffer; RGB frames are converted into a new NRGBA image.
func (f Frame) Image() image.Image {
	if f.Empty() {
		return image.NewGray(image.Rect(0, 0, 0, 0))
	}
	rect := image.Rect(0, 0, f.Width, f.Height)
	if f.Format == FormatGray {
		return &image.Gray{Pix: f.buf.pix, Stride: f.Width, Rect: rect}
	}
	out := image.NewNRGBA(rect)
	src := f.buf.pix
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		out.Pix[j] = src[i]
		out.Pix[j+1] = src[i+1]
		out.Pix[j+2] = src[i+2]
		out.Pix[j+3] = 0xff
	}
	return out
}
