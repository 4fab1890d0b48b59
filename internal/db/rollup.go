package db

import (
	"sort"
	"time"

	"go.uber.org/zap"
)

// rollupStore is what the aggregation pass needs from the usage store.
type rollupStore interface {
	eventsBetween(start, end time.Time) ([]UsageEvent, error)
	UpsertBucket(b *UsageBucket) error
}

// runRollupOnce aggregates usage events for the hour starting at bucketStart
// into UsageBucket rows. Call with bucketStart truncated to the hour, UTC.
func runRollupOnce(store rollupStore, bucketStart time.Time) error {
	events, err := store.eventsBetween(bucketStart, bucketStart.Add(time.Hour))
	if err != nil {
		return err
	}

	type point struct {
		status string
		dur    int64
		hasDur bool
	}
	groups := make(map[string][]point)
	for _, e := range events {
		p := point{status: e.Status}
		if e.DurationMs != nil {
			p.dur = *e.DurationMs
			p.hasDur = true
		}
		groups[e.PrincipalID] = append(groups[e.PrincipalID], p)
	}

	for principalID, list := range groups {
		var errorCount int64
		durations := make([]int64, 0, len(list))
		for _, p := range list {
			if p.status == StatusError {
				errorCount++
			}
			if p.hasDur {
				durations = append(durations, p.dur)
			}
		}
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		var p50, p95, p99 int64
		if n := len(durations); n > 0 {
			p50 = durations[(n*50)/100]
			p95 = durations[(n*95)/100]
			p99 = durations[(n*99)/100]
		}

		bucket := &UsageBucket{
			PrincipalID:   principalID,
			BucketStart:   bucketStart,
			TotalCount:    int64(len(list)),
			ErrorCount:    errorCount,
			DurationP50Ms: p50,
			DurationP95Ms: p95,
			DurationP99Ms: p99,
		}
		if err := store.UpsertBucket(bucket); err != nil {
			return err
		}
	}
	return nil
}

// StartRollupWorker launches a background goroutine that aggregates the
// previous full hour at startup and then once per hour. The worker only
// writes rollup rows; raw events are never touched.
func StartRollupWorker(store *UsageStore, logger *zap.Logger) {
	go func() {
		prevHour := time.Now().UTC().Truncate(time.Hour).Add(-time.Hour)
		if err := runRollupOnce(store, prevHour); err != nil {
			logger.Warn("usage rollup failed (startup)", zap.Error(err))
		}

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for range ticker.C {
			prevHour := time.Now().UTC().Truncate(time.Hour).Add(-time.Hour)
			if err := runRollupOnce(store, prevHour); err != nil {
				logger.Warn("usage rollup failed", zap.Error(err))
			}
		}
	}()
}
