package query

import (
	"sync"
	"time"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/observability"
)

// memoKey is the structured cache key for one polygon set. Using a struct
// key (rather than an ad hoc string) keeps lookups typo-proof and lets the
// cache be dropped wholesale with its batch.
type memoKey struct {
	layer     forecast.Layer
	validTime int64 // unix millis; 0 for non-time-sliced layers
	windCode  int
}

// Memo caches (layer, valid-time, windcode) polygon sets for the duration of
// one assessment batch. A county or grid scan tests the same polygon sets
// against hundreds of points; filtering the store once per set instead of
// once per point dominates batch cost. The memo is scoped to a single
// snapshot and discarded with the batch, so re-ingestion can never serve
// stale polygons.
type Memo struct {
	mu       sync.Mutex
	features map[memoKey][]forecast.Feature
	metrics  *observability.Metrics
}

// NewMemo creates an empty memo. metrics may be nil.
func NewMemo(metrics *observability.Metrics) *Memo {
	return &Memo{
		features: make(map[memoKey][]forecast.Feature),
		metrics:  metrics,
	}
}

// FeaturesAt returns the polygon set for the key, consulting the store on
// first use.
func (m *Memo) FeaturesAt(store *forecast.Store, layer forecast.Layer, at time.Time, windcode int) []forecast.Feature {
	key := memoKey{layer: layer, windCode: windcode}
	if !at.IsZero() {
		key.validTime = at.UnixMilli()
	}

	m.mu.Lock()
	feats, ok := m.features[key]
	if !ok {
		feats = store.Polygons(layer, at, windcode)
		m.features[key] = feats
	}
	m.mu.Unlock()

	if m.metrics != nil {
		if ok {
			m.metrics.MemoCache.WithLabelValues("hit").Inc()
		} else {
			m.metrics.MemoCache.WithLabelValues("miss").Inc()
		}
	}
	return feats
}
