package query

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

func TestAssessBatch(t *testing.T) {
	snap := newSnapshot(t)
	e := NewEngine(nil, nil, testLogger(), nil)

	SetClock(clockwork.NewFakeClockAt(qT0))
	defer SetClock(nil)

	targets := []Target{
		{ID: "hot", Point: orb.Point{-80, 25}, Coastal: true},
		{ID: "cold", Point: orb.Point{0, 0}},
	}

	got, err := e.AssessBatch(context.Background(), nil, snap, targets, risk.DefaultWeights(), 4)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.InDelta(t, 8, got["hot"].Result.Score, 1e-9)
	assert.Zero(t, got["cold"].Result.Score)
}

func TestAssessBatch_NoSnapshot(t *testing.T) {
	e := NewEngine(nil, nil, testLogger(), nil)

	_, err := e.AssessBatch(context.Background(), nil, nil, nil, risk.DefaultWeights(), 0)
	assert.ErrorContains(t, err, "no forecast snapshot")

	_, err = e.AssessBatch(context.Background(), nil, &forecast.Snapshot{}, nil, risk.DefaultWeights(), 0)
	assert.ErrorContains(t, err, "no forecast snapshot")
}

func TestAssessBatch_StaleSnapshotDiscarded(t *testing.T) {
	snap := newSnapshot(t)
	e := NewEngine(nil, nil, testLogger(), nil)

	holder := &forecast.Holder{}
	old := holder.Swap(snap.Store, "test", qT0)

	// A second ingestion supersedes the snapshot the batch runs against.
	holder.Swap(snap.Store, "test", qT1)

	targets := []Target{{ID: "a", Point: orb.Point{-80, 25}}}
	got, err := e.AssessBatch(context.Background(), holder, old, targets, risk.DefaultWeights(), 2)
	assert.ErrorIs(t, err, ErrStaleSnapshot)
	assert.Nil(t, got, "stale results are discarded, never partially returned")
}

func TestAssessBatch_CurrentSnapshotSurvives(t *testing.T) {
	snap := newSnapshot(t)
	e := NewEngine(nil, nil, testLogger(), nil)

	holder := &forecast.Holder{}
	current := holder.Swap(snap.Store, "test", qT0)

	got, err := e.AssessBatch(context.Background(), holder, current,
		[]Target{{ID: "a", Point: orb.Point{-80, 25}}}, risk.DefaultWeights(), 2)
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, current.Generation, got["a"].Generation)
}

func TestAssessBatch_ManyTargetsShareMemo(t *testing.T) {
	snap := newSnapshot(t)
	e := NewEngine(nil, nil, testLogger(), nil)

	var targets []Target
	for i := 0; i < 50; i++ {
		targets = append(targets, Target{
			ID:    fmt.Sprintf("p%d", i),
			Point: orb.Point{-80.5 + 0.02*float64(i), 25},
		})
	}

	got, err := e.AssessBatch(context.Background(), nil, snap, targets, risk.DefaultWeights(), 8)
	require.NoError(t, err)
	assert.Len(t, got, 50)
	for id, a := range got {
		assert.GreaterOrEqual(t, a.Result.Score, 0.0, id)
		assert.LessOrEqual(t, a.Result.Score, 10.0, id)
	}
}

func TestMemo_FeaturesAt(t *testing.T) {
	snap := newSnapshot(t)
	memo := NewMemo(nil)

	first := memo.FeaturesAt(snap.Store, forecast.LayerWind, qT0, forecast.Wind34)
	require.Len(t, first, 1)

	// Cached: the second call returns the identical slice.
	second := memo.FeaturesAt(snap.Store, forecast.LayerWind, qT0, forecast.Wind34)
	assert.Equal(t, first, second)

	// Different key, different set.
	assert.Empty(t, memo.FeaturesAt(snap.Store, forecast.LayerWind, qT0, forecast.Wind64))
	assert.Len(t, memo.FeaturesAt(snap.Store, forecast.LayerWarnings, time.Time{}, 0), 1)
}
