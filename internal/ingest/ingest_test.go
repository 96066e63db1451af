package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/observability"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failingSource always errors, standing in for an unreachable upstream.
type failingSource struct {
	name string
	err  error
}

func (s *failingSource) Name() string { return s.name }
func (s *failingSource) Fetch(context.Context) (*forecast.Bundle, error) {
	return nil, s.err
}

func TestChain_FallsThroughToDemo(t *testing.T) {
	chain := NewChain(testLogger(), nil,
		&failingSource{name: "live", err: errors.New("connection refused")},
		&failingSource{name: "mirror", err: ErrNoData},
		NewDemoSource(),
	)

	bundle, source, err := chain.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo", source)
	assert.Equal(t, "AL092025", bundle.StormID)
}

func TestChain_FirstSuccessWins(t *testing.T) {
	chain := NewChain(testLogger(), nil, NewDemoSource(),
		&failingSource{name: "never-reached", err: errors.New("boom")})

	_, source, err := chain.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "demo", source)
}

func TestChain_AllFail(t *testing.T) {
	chain := NewChain(testLogger(), nil,
		&failingSource{name: "live", err: errors.New("down")},
		&failingSource{name: "mirror", err: ErrNoData},
	)

	_, _, err := chain.Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoData, "last error is wrapped")
	assert.ErrorContains(t, err, "all ingestion sources failed")
}

func TestChain_CountsFallbacks(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	chain := NewChain(testLogger(), metrics,
		&failingSource{name: "live", err: errors.New("down")},
		NewDemoSource(),
	)

	_, _, err := chain.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SourceFallbacks.WithLabelValues("live")))
}

func TestDemoSource_Fetch(t *testing.T) {
	bundle, err := NewDemoSource().Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "AL092025", bundle.StormID)
	assert.Equal(t, "Demo", bundle.Name)
	assert.Len(t, bundle.Timeline, 6)
	assert.Len(t, bundle.Track, 6)
	assert.Len(t, bundle.Layers[forecast.LayerWind], 18, "three radii per timeline step")
	assert.Len(t, bundle.Layers[forecast.LayerWarnings], 2)
	assert.NotEmpty(t, bundle.Layers[forecast.LayerArrivalMostLike])

	// The embedded demo must always build a valid store.
	store, err := forecast.NewStore(bundle)
	require.NoError(t, err)
	assert.Len(t, store.Timeline(), 6)
}

// Re-ingesting the same document must produce an identical store: same
// timeline, same polygon count per layer, same track. Refreshes replace the
// snapshot wholesale, so a drifting re-ingest would show up as phantom
// advisory changes.
func TestDemoSource_FetchIdempotent(t *testing.T) {
	layerCounts := func(s *forecast.Store) map[forecast.Layer]int {
		counts := make(map[forecast.Layer]int)
		for _, layer := range []forecast.Layer{
			forecast.LayerCone, forecast.LayerWind, forecast.LayerWarnings,
			forecast.LayerArrivalMostLike, forecast.LayerArrivalEarliest,
		} {
			counts[layer] = len(s.Polygons(layer, time.Time{}, 0))
		}
		return counts
	}

	first, err := NewDemoSource().Fetch(context.Background())
	require.NoError(t, err)
	second, err := NewDemoSource().Fetch(context.Background())
	require.NoError(t, err)

	storeA, err := forecast.NewStore(first)
	require.NoError(t, err)
	storeB, err := forecast.NewStore(second)
	require.NoError(t, err)

	if diff := cmp.Diff(storeA.Timeline(), storeB.Timeline()); diff != "" {
		t.Errorf("timeline mismatch (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(layerCounts(storeA), layerCounts(storeB)); diff != "" {
		t.Errorf("layer polygon counts mismatch (-first +second):\n%s", diff)
	}
	assert.Equal(t, len(storeA.Track()), len(storeB.Track()))
}

func TestDemoSource_TrackCarriesTimes(t *testing.T) {
	bundle, err := NewDemoSource().Fetch(context.Background())
	require.NoError(t, err)

	for i, pos := range bundle.Track {
		assert.False(t, pos.Time.IsZero(), "track position %d has no time", i)
	}
}
