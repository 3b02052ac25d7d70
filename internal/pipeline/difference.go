package pipeline

import (
	"context"
	"time"

	"framewatch/internal/frame"
	"framewatch/internal/logging"
)

type differenceStage struct {
	p               *Pipeline
	pixelThreshold  uint8
	motionThreshold int
	settleFrames    int
	variant         frame.SaveVariant
	dropLog         *logging.Throttle

	// prevGray is the baseline the next frame is compared against. Only the
	// difference worker touches it until shutdown resets it.
	prevGray frame.Frame
	// settling counts frames still to skip after motion; pendingMotion is
	// the count that triggered the skip.
	pending       bool
	settling      int
	pendingMotion int
}

// work drains the ring. Every frame is compared against the previous one;
// frames whose changed-pixel count exceeds the motion threshold become
// candidates for the select channel, the rest are freed.
func (d *differenceStage) work(ctx context.Context) (int, error) {
	units := 0
	for {
		if ctx.Err() != nil {
			return units, nil
		}
		f, ok := d.p.ringGet()
		if !ok {
			return units, nil
		}
		units++
		d.examine(f)
	}
}

func (d *differenceStage) examine(f frame.Frame) {
	p := d.p
	if f.Empty() || f.Width <= 0 || f.Height <= 0 {
		logging.ErrorWithContext(p.logger, "discarding malformed frame", "malformed_frame",
			logging.Uint64(logging.FieldFrame, f.Seq),
			logging.Int("width", f.Width),
			logging.Int("height", f.Height),
			logging.String(logging.FieldErrorHint, "check the capture source resolution"),
		)
		p.metrics.Malformed()
		_ = f.Release()
		return
	}

	gray := p.transformer.Grayscale(f)
	if gray.Empty() {
		p.metrics.Malformed()
		_ = f.Release()
		return
	}
	prev := d.prevGray
	d.prevGray = gray
	if prev.Empty() {
		p.logger.Debug("difference baseline established", logging.Uint64(logging.FieldFrame, f.Seq))
		_ = f.Release()
		return
	}
	if prev.Width != gray.Width || prev.Height != gray.Height {
		p.logger.Info("frame size changed; resetting difference baseline",
			logging.Uint64(logging.FieldFrame, f.Seq),
			logging.Int("width", gray.Width),
			logging.Int("height", gray.Height),
		)
		_ = prev.Release()
		_ = f.Release()
		return
	}

	diff := p.transformer.Difference(prev, gray)
	_ = prev.Release()
	mask := p.transformer.Threshold(diff, d.pixelThreshold)
	selected, motion := d.accept(p.transformer.CountNonZero(mask))
	if !selected {
		_ = diff.Release()
		_ = mask.Release()
		_ = f.Release()
		return
	}

	p.metrics.Candidate()
	c := frame.Candidate{
		Frame:    f,
		Diff:     diff,
		Mask:     mask,
		Seq:      f.Seq,
		Detected: time.Now(),
		Variant:  d.variant,
		Motion:   motion,
	}
	p.logger.Debug("motion candidate",
		logging.Uint64(logging.FieldFrame, c.Seq),
		logging.Int("motion", motion),
	)
	if err := sendOrRelease(p.selectQ, c, p.cfg.SendTimeout()); err != nil {
		p.metrics.Drop("select")
		d.dropLog.Do(func(suppressed uint64) {
			p.logger.Info("select channel rejected candidate; frame dropped",
				logging.Uint64(logging.FieldFrame, c.Seq),
				logging.String(logging.FieldChannel, "select"),
				logging.Uint64("suppressed", suppressed),
				logging.Error(err),
			)
		})
	}
}

// accept applies the motion threshold and the settle delay. With a settle
// delay configured, the frame that crossed the threshold and the next
// settleFrames frames are skipped, and the frame after them is selected
// whatever its own count.
func (d *differenceStage) accept(motion int) (bool, int) {
	if d.pending {
		if d.settling > 0 {
			d.settling--
			return false, motion
		}
		d.pending = false
		return true, d.pendingMotion
	}
	if motion <= d.motionThreshold {
		return false, motion
	}
	if d.settleFrames > 0 {
		d.pending = true
		d.settling = d.settleFrames
		d.pendingMotion = motion
		return false, motion
	}
	return true, motion
}

// reset frees the baseline. Called after the worker has exited.
func (d *differenceStage) reset() int {
	if d.prevGray.Empty() {
		return 0
	}
	_ = d.prevGray.Release()
	d.prevGray = frame.Frame{}
	return 1
}
