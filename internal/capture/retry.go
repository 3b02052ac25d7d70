package capture

import (
	"context"
	"log/slog"
	"time"

	"framewatch/internal/faults"
	"framewatch/internal/frame"
	"framewatch/internal/logging"
	"framewatch/internal/vision"
)

// Retrying retries empty or failed reads with exponential backoff starting
// at Backoff. After Retries extra attempts it gives up and reports an empty
// frame; the last read error, if any, is returned marked transient.
type Retrying struct {
	vision.Capture
	Retries int
	Backoff time.Duration
	Logger  *slog.Logger
}

// Next implements vision.Capture.
func (r *Retrying) Next(ctx context.Context) (frame.Frame, error) {
	var lastErr error
	for attempt := 0; attempt <= r.Retries; attempt++ {
		f, err := r.Capture.Next(ctx)
		if err == nil && !f.Empty() {
			return f, nil
		}
		_ = f.Release()
		if err != nil {
			if ctx.Err() != nil {
				return frame.Frame{}, ctx.Err()
			}
			lastErr = err
		}
		if attempt == r.Retries {
			break
		}
		delay := r.Backoff << attempt
		if r.Logger != nil {
			r.Logger.Debug("capture read empty; retrying",
				logging.Int("attempt", attempt+1),
				logging.Duration("delay", delay),
			)
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return frame.Frame{}, ctx.Err()
			case <-timer.C:
			}
		}
	}
	if lastErr != nil {
		return frame.Frame{}, faults.Wrap(faults.ErrTransient, "capture", "read", "retries exhausted", lastErr)
	}
	return frame.Frame{}, nil
}
