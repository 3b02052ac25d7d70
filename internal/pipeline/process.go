package pipeline

import (
	"context"
	"errors"

	"framewatch/internal/frame"
	"framewatch/internal/logging"
	"framewatch/internal/mailbox"
	"framewatch/internal/vision"
)

type processStage struct {
	p            *Pipeline
	edgeEnhance  bool
	lineDetect   bool
	circleDetect bool
	filter       vision.FilterMethod
	dropLog      *logging.Throttle
}

// work drains the select channel, applies the enabled transforms to each
// candidate, and forwards it to the write channel.
func (s *processStage) work(ctx context.Context) (int, error) {
	units := 0
	for {
		if ctx.Err() != nil {
			return units, nil
		}
		c, err := s.p.selectQ.TryReceive()
		if err != nil {
			if errors.Is(err, mailbox.ErrWouldBlock) || errors.Is(err, mailbox.ErrClosed) {
				return units, nil
			}
			return units, err
		}
		units++
		s.handle(c)
	}
}

func (s *processStage) handle(c frame.Candidate) {
	p := s.p
	if c.Malformed() {
		logging.ErrorWithContext(p.logger, "discarding malformed candidate", "malformed_frame",
			logging.Uint64(logging.FieldFrame, c.Seq),
			logging.Int("width", c.Frame.Width),
			logging.Int("height", c.Frame.Height),
			logging.String(logging.FieldErrorHint, "check the capture source resolution"),
		)
		p.metrics.Malformed()
		_ = c.Release()
		return
	}

	if s.edgeEnhance {
		if enhanced := p.transformer.EdgeEnhance(c.Frame, s.filter); !enhanced.Empty() {
			_ = c.Frame.Release()
			c.Frame = enhanced
		}
	}
	if s.lineDetect || s.circleDetect {
		var (
			lines   []vision.Segment
			circles []vision.Circle
		)
		if s.lineDetect {
			lines = p.transformer.DetectLines(c.Frame)
		}
		if s.circleDetect {
			circles = p.transformer.DetectCircles(c.Frame)
		}
		c.Lines, c.Circles = len(lines), len(circles)
		if len(lines)+len(circles) > 0 {
			if drawn := p.transformer.Overlay(c.Frame, lines, circles); !drawn.Empty() {
				_ = c.Frame.Release()
				c.Frame = drawn
			}
		}
	}

	if err := sendOrRelease(p.writeQ, c, p.cfg.SendTimeout()); err != nil {
		p.metrics.Drop("write")
		s.dropLog.Do(func(suppressed uint64) {
			p.logger.Info("write channel rejected candidate; frame dropped",
				logging.Uint64(logging.FieldFrame, c.Seq),
				logging.String(logging.FieldChannel, "write"),
				logging.Uint64("suppressed", suppressed),
				logging.Error(err),
			)
		})
	}
}
