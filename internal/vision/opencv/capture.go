//go:build opencv

package opencv

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"framewatch/internal/frame"
	"framewatch/internal/vision"
)

// Capture reads frames from a V4L2 device through cv::VideoCapture.
type Capture struct {
	ledger *frame.Ledger

	mu      sync.Mutex
	webcam  *gocv.VideoCapture
	scratch gocv.Mat
	seq     uint64
}

// NewCapture returns a Capture that allocates frames against ledger.
func NewCapture(ledger *frame.Ledger) *Capture {
	return &Capture{ledger: ledger, scratch: gocv.NewMat()}
}

var _ vision.Capture = (*Capture)(nil)

func (c *Capture) Open(device int) error {
	webcam, err := gocv.VideoCaptureDevice(device)
	if err != nil {
		return fmt.Errorf("open video device %d: %w", device, err)
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return fmt.Errorf("video device %d did not open", device)
	}
	webcam.Set(gocv.VideoCaptureBufferSize, 1)
	c.mu.Lock()
	c.webcam = webcam
	c.mu.Unlock()
	return nil
}

func (c *Capture) Configure(width, height int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.webcam == nil {
		return fmt.Errorf("capture not open")
	}
	c.webcam.Set(gocv.VideoCaptureFrameWidth, float64(width))
	c.webcam.Set(gocv.VideoCaptureFrameHeight, float64(height))
	return nil
}

// Next grabs one frame. A failed read yields an empty frame and no error so
// the caller's retry policy applies.
func (c *Capture) Next(ctx context.Context) (frame.Frame, error) {
	if err := ctx.Err(); err != nil {
		return frame.Frame{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.webcam == nil {
		return frame.Frame{}, fmt.Errorf("capture not open")
	}
	if ok := c.webcam.Read(&c.scratch); !ok || c.scratch.Empty() {
		return frame.Frame{}, nil
	}
	c.seq++
	like := frame.Frame{Seq: c.seq, Captured: time.Now()}
	out := fromMat(c.ledger, like, c.scratch)
	if out.Empty() {
		return frame.Frame{}, nil
	}
	return out, nil
}

func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if c.webcam != nil {
		err = c.webcam.Close()
		c.webcam = nil
	}
	c.scratch.Close()
	return err
}
