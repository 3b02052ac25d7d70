package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"framewatch/internal/frame"
	"framewatch/internal/logging"
	"framewatch/internal/mailbox"
	"framewatch/internal/persist"
	"framewatch/internal/store"
)

type writeStage struct {
	p    *Pipeline
	host string
}

// work drains the write channel and persists each candidate. Candidates
// arriving after the completion threshold are freed without writing.
func (w *writeStage) work(ctx context.Context) (int, error) {
	var errs []error
	units := 0
	for {
		if ctx.Err() != nil {
			break
		}
		c, err := w.p.writeQ.TryReceive()
		if err != nil {
			if !errors.Is(err, mailbox.ErrWouldBlock) && !errors.Is(err, mailbox.ErrClosed) {
				errs = append(errs, err)
			}
			break
		}
		units++
		if err := w.persist(ctx, c); err != nil {
			errs = append(errs, err)
		}
	}
	return units, errors.Join(errs...)
}

func (w *writeStage) persist(ctx context.Context, c frame.Candidate) error {
	p := w.p
	defer func() { _ = c.Release() }()

	if limit := uint64(p.cfg.Sequencer.MaxFrames); limit > 0 && p.seq.Completed() >= limit {
		p.logger.Debug("completion threshold reached; candidate not written", logging.Uint64(logging.FieldFrame, c.Seq))
		return nil
	}

	src, owned := w.selectVariant(c)
	if owned {
		defer func() { _ = src.Release() }()
	}
	labelled := p.transformer.Annotate(src, persist.Label(w.host, c.Frame.Captured, c.Seq), image.Pt(8, 20))
	if labelled.Empty() {
		labelled = src.Clone()
	}
	defer func() { _ = labelled.Release() }()

	variant := c.Variant.String()
	path := p.output.StillPath(variant, p.runID, c.Seq)
	if err := p.output.Persister.SaveStill(labelled, path); err != nil {
		return fmt.Errorf("save still %d: %w", c.Seq, err)
	}
	if p.cfg.Output.VideoEnabled {
		if err := p.output.Persister.AppendVideo(labelled); err != nil {
			logging.WarnWithContext(p.logger, "appending to run video failed", "video_append_failed",
				logging.Uint64(logging.FieldFrame, c.Seq),
				logging.Error(err),
				logging.String(logging.FieldImpact, "the still was written; the video skips this frame"),
			)
		}
	}

	if p.store != nil {
		rec := store.FrameRecord{
			RunID:       p.runID,
			Seq:         c.Seq,
			Variant:     variant,
			Path:        path,
			Width:       labelled.Width,
			Height:      labelled.Height,
			Motion:      c.Motion,
			Lines:       c.Lines,
			Circles:     c.Circles,
			CapturedAt:  c.Frame.Captured,
			PersistedAt: time.Now(),
		}
		if err := p.store.RecordFrame(ctx, rec); err != nil {
			p.logger.Warn("indexing persisted frame failed",
				logging.Uint64(logging.FieldFrame, c.Seq),
				logging.Error(err),
			)
		}
	}

	completed := p.seq.MarkCompleted()
	p.metrics.Persisted()
	p.logger.Debug("frame persisted",
		logging.Uint64(logging.FieldFrame, c.Seq),
		logging.String("path", path),
		logging.Uint64("completed", completed),
	)
	return nil
}

// selectVariant picks the representation to persist. owned reports whether
// the returned frame was allocated here and must be released by the caller.
func (w *writeStage) selectVariant(c frame.Candidate) (frame.Frame, bool) {
	var (
		out   frame.Frame
		owned bool
	)
	switch c.Variant {
	case frame.VariantGray:
		out, owned = w.p.transformer.Grayscale(c.Frame), true
	case frame.VariantDiff:
		out = c.Diff
	case frame.VariantThreshold:
		out = c.Mask
	default:
		out = c.Frame
	}
	if out.Empty() {
		if owned {
			_ = out.Release()
		}
		return c.Frame, false
	}
	return out, owned
}
