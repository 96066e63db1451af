package query

import (
	"context"
	"errors"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

// ErrStaleSnapshot signals that a batch finished against a snapshot that has
// since been replaced. Callers must discard the results and rerun against
// the current snapshot; applying them would let a slow batch for an old
// advisory overwrite fresher assessments.
var ErrStaleSnapshot = errors.New("snapshot superseded during batch")

// defaultBatchConcurrency bounds fan-out when the caller does not.
const defaultBatchConcurrency = 8

// Target is one point in a batch assessment.
type Target struct {
	ID      string
	Point   orb.Point
	Coastal bool
}

// AssessBatch assesses many targets concurrently against one snapshot,
// sharing a polygon memo across the whole batch. If holder is non-nil and
// the snapshot is superseded while the batch runs, the results are dropped
// and ErrStaleSnapshot is returned.
func (e *Engine) AssessBatch(ctx context.Context, holder *forecast.Holder, snap *forecast.Snapshot, targets []Target, w risk.Weights, concurrency int) (map[string]Assessment, error) {
	if snap == nil || snap.Store == nil {
		return nil, errors.New("no forecast snapshot")
	}
	if concurrency <= 0 {
		concurrency = defaultBatchConcurrency
	}

	start := time.Now()
	memo := NewMemo(e.metrics)
	results := make([]Assessment, len(targets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, target := range targets {
		g.Go(func() error {
			results[i] = e.Assess(gctx, snap, target.Point, target.Coastal, w, memo)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if e.metrics != nil {
		e.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}

	if holder != nil && holder.Stale(snap) {
		if e.metrics != nil {
			e.metrics.StaleBatches.Inc()
		}
		return nil, ErrStaleSnapshot
	}

	out := make(map[string]Assessment, len(targets))
	for i, target := range targets {
		out[target.ID] = results[i]
	}
	return out, nil
}
