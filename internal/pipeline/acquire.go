package pipeline

import (
	"context"
	"errors"

	"framewatch/internal/faults"
	"framewatch/internal/logging"
)

type acquireStage struct {
	p        *Pipeline
	warmup   int
	skipped  int
	evictLog *logging.Throttle
}

// work reads one frame and pushes it into the ring. A full ring overwrites
// its oldest frame, which is freed here.
func (a *acquireStage) work(ctx context.Context) (int, error) {
	p := a.p
	f, err := p.capture.Next(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return 0, nil
		}
		if faults.Classify(err) == faults.ClassTransient {
			p.logger.Info("capture read failed; skipping tick", logging.Error(err))
			return 0, nil
		}
		return 0, err
	}
	if f.Empty() {
		p.logger.Debug("capture returned no frame")
		return 0, nil
	}
	if a.skipped < a.warmup {
		a.skipped++
		_ = f.Release()
		return 0, nil
	}

	old, evicted := p.ringPut(f)
	if evicted {
		_ = old.Release()
		p.metrics.Evicted()
		a.evictLog.Do(func(suppressed uint64) {
			p.logger.Warn("acquisition ring full; oldest frame overwritten",
				logging.Uint64(logging.FieldFrame, old.Seq),
				logging.Int("capacity", p.ring.Capacity()),
				logging.Uint64("suppressed", suppressed),
				logging.String(logging.FieldImpact, "difference stage is falling behind acquisition"),
			)
		})
	}
	return 1, nil
}
