// Package ingest normalizes heterogeneous upstream forecast products into
// the canonical forecast.Bundle: the NHC active-storm index plus the
// nowCOAST map service ("live"), manually configured layer URLs pointing at
// a mirror ("mirror"), and an embedded offline bundle ("demo").
//
// Sources are tried in priority order by Chain. Any failure — network,
// schema mismatch, empty result set — falls through to the next source
// rather than propagating, so the service degrades to fewer facts instead
// of halting. A bundle is always built completely before the caller swaps
// it into the store; no source ever mutates live state.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/observability"
)

// Sentinel errors for the failure taxonomy. All of them are recoverable by
// falling through the chain.
var (
	// ErrNoStorms means the index was reachable but lists no active storms.
	ErrNoStorms = errors.New("no active storms")
	// ErrSchemaMismatch means a response parsed as JSON but lacks the
	// expected fields.
	ErrSchemaMismatch = errors.New("unexpected upstream schema")
	// ErrNoData means a structurally valid response carried an empty
	// result set.
	ErrNoData = errors.New("no data")
)

// Source produces a complete normalized bundle for one storm.
type Source interface {
	Name() string
	Fetch(ctx context.Context) (*forecast.Bundle, error)
}

// Chain tries sources in priority order and returns the first bundle.
type Chain struct {
	sources []Source
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewChain builds a fallback chain. Order matters: pass highest priority
// first (live, then mirror, then demo).
func NewChain(logger *slog.Logger, metrics *observability.Metrics, sources ...Source) *Chain {
	return &Chain{sources: sources, logger: logger, metrics: metrics}
}

// Fetch returns the first source's bundle along with the source name. It
// fails only when every source fails, which a chain ending in the embedded
// demo source never does outside of programmer error.
func (c *Chain) Fetch(ctx context.Context) (*forecast.Bundle, string, error) {
	var lastErr error
	for _, src := range c.sources {
		bundle, err := src.Fetch(ctx)
		if err != nil {
			c.logger.Warn("ingestion source failed, falling back",
				"source", src.Name(),
				"error", err,
			)
			if c.metrics != nil {
				c.metrics.SourceFallbacks.WithLabelValues(src.Name()).Inc()
			}
			lastErr = err
			continue
		}
		return bundle, src.Name(), nil
	}
	return nil, "", fmt.Errorf("all ingestion sources failed: %w", lastErr)
}
