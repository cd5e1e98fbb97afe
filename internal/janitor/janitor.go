// Package janitor sweeps aged temporary files out of the work
// directory. The pipeline cleans up after itself on every path; the
// janitor is the safety net for files orphaned by a crash or kill.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/silviaroy/upscalerd/internal/logger"
	"github.com/silviaroy/upscalerd/internal/metrics"
)

type Janitor struct {
	dir      string
	maxAge   time.Duration
	interval time.Duration
}

func New(dir string, maxAge, interval time.Duration) *Janitor {
	return &Janitor{
		dir:      dir,
		maxAge:   maxAge,
		interval: interval,
	}
}

// Run sweeps on a fixed interval until the context is cancelled.
func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept := j.Sweep(ctx)
			if swept > 0 {
				logger.FromContext(ctx).Info("janitor sweep", "removed", swept)
			}
		}
	}
}

// Sweep removes regular files in the work directory older than maxAge
// and returns how many were removed. Errors are logged, not escalated.
func (j *Janitor) Sweep(ctx context.Context) int {
	log := logger.FromContext(ctx)
	cutoff := time.Now().Add(-j.maxAge)

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		log.Warn("janitor cannot read work dir", "dir", j.dir, "error", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Warn("janitor failed to remove file", "path", path, "error", err)
			continue
		}
		removed++
		metrics.JanitorSweptTotal.Inc()
	}

	return removed
}
