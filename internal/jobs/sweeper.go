package jobs

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aldengreen/kokoro-live-tts/internal/metrics"
)

// DefaultMaxAge is the TTL after which a job's last_accessed_at makes it
// eligible for cleanup, used unless overridden by JOB_MAX_AGE.
const DefaultMaxAge = 7 * 24 * time.Hour

// DefaultSweepInterval is how often the sweeper runs, used unless
// overridden by JOB_SWEEP_INTERVAL.
const DefaultSweepInterval = time.Hour

// RunSweeper runs SweepOnce every interval until ctx is cancelled. A
// non-positive interval or maxAge (e.g. a misconfigured env var) falls back
// to the defaults rather than panicking NewTicker or sweeping every row on
// every tick.
func RunSweeper(ctx context.Context, store *Store, storagePath string, interval, maxAge time.Duration) {
	if interval <= 0 {
		slog.Warn("jobs: invalid sweep interval, using default", "configured", interval, "default", DefaultSweepInterval)
		interval = DefaultSweepInterval
	}
	if maxAge <= 0 {
		slog.Warn("jobs: invalid job max age, using default", "configured", maxAge, "default", DefaultMaxAge)
		maxAge = DefaultMaxAge
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			SweepOnce(store, storagePath, maxAge)
		}
	}
}

// SweepOnce deletes expired job rows and unlinks their files. A file path
// is only unlinked if it is a descendant of storagePath — defense against
// a stored path escaping the storage root. Running twice back-to-back is
// a no-op the second time, since the DB delete is the source of truth.
func SweepOnce(store *Store, storagePath string, maxAge time.Duration) {
	count, paths, err := store.SweepExpired(maxAge)
	if err != nil {
		slog.Error("jobs: sweep query failed", "err", err)
		return
	}
	root, err := filepath.Abs(storagePath)
	if err != nil {
		slog.Error("jobs: resolve storage root failed", "err", err)
		return
	}

	if count > 0 {
		metrics.JobsSwept.Add(float64(count))
	}

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			slog.Warn("jobs: skipping unresolvable path", "path", p, "err", err)
			continue
		}
		if !withinRoot(abs, root) {
			slog.Warn("jobs: refusing to delete path outside storage root", "path", abs, "root", root)
			continue
		}
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			slog.Warn("jobs: failed to remove expired file", "path", abs, "err", err)
		}
	}
}

func withinRoot(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
