package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// DatabaseHealth summarizes the capture index for diagnostics.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	IntegrityCheck   bool
	TotalRuns        int
	TotalFrames      int
	Error            string
}

// CheckHealth pings the database and runs an integrity check.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if s.path == "" {
		return health, errors.New("capture database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		return health, fmt.Errorf("stat capture database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("capture database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping capture database: %w", err)
	}
	health.DatabaseReadable = true

	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM runs").Scan(&health.TotalRuns); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count runs: %w", err)
	}
	if err := s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM frames").Scan(&health.TotalFrames); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("count frames: %w", err)
	}

	var integrity string
	if err := s.db.QueryRowContext(connCtx, "PRAGMA integrity_check").Scan(&integrity); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrity, "ok")
	return health, nil
}
