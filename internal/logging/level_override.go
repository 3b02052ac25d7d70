package logging

import (
	"context"
	"log/slog"
	"strings"

	"framewatch/internal/config"
)

// levelOverrideHandler enforces a per-logger minimum level while delegating
// output to the wrapped handler.
type levelOverrideHandler struct {
	next  slog.Handler
	level slog.Level
}

func (h *levelOverrideHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level && h.next.Enabled(ctx, level)
}

func (h *levelOverrideHandler) Handle(ctx context.Context, record slog.Record) error {
	if record.Level < h.level {
		return nil
	}
	return h.next.Handle(ctx, record)
}

func (h *levelOverrideHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelOverrideHandler) WithGroup(name string) slog.Handler {
	return &levelOverrideHandler{next: h.next.WithGroup(name), level: h.level}
}

// WithLevelOverride returns a logger that drops records below level.
// Overrides can only make a logger quieter than its base handler.
func WithLevelOverride(logger *slog.Logger, level slog.Level) *slog.Logger {
	if logger == nil {
		return NewNop()
	}
	next := logger.Handler()
	if existing, ok := next.(*levelOverrideHandler); ok {
		next = existing.next
	}
	return slog.New(&levelOverrideHandler{next: next, level: level})
}

// ForStage returns a component logger for a pipeline stage, applying the
// [logging.stage_levels] override for that stage when configured.
func ForStage(logger *slog.Logger, cfg *config.Config, stage string) *slog.Logger {
	l := NewComponentLogger(logger, "pipeline").With(String(FieldStage, stage))
	if cfg == nil {
		return l
	}
	if raw, ok := cfg.Logging.StageLevels[stage]; ok && strings.TrimSpace(raw) != "" {
		return WithLevelOverride(l, ParseLevel(raw))
	}
	return l
}
