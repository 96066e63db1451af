package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
)

// LiveSource resolves the active storm through the index and fetches its
// layers from the map service.
type LiveSource struct {
	index   *IndexClient
	maps    *MapClient
	stormID string
	logger  *slog.Logger
}

// NewLiveSource creates the live source. A non-empty stormID pins the storm
// instead of consulting the index.
func NewLiveSource(index *IndexClient, maps *MapClient, stormID string, logger *slog.Logger) *LiveSource {
	return &LiveSource{index: index, maps: maps, stormID: stormID, logger: logger}
}

func (s *LiveSource) Name() string { return "live" }

func (s *LiveSource) Fetch(ctx context.Context) (*forecast.Bundle, error) {
	storm, err := s.resolveStorm(ctx)
	if err != nil {
		return nil, err
	}
	s.logger.Info("fetching live storm", "storm_id", storm.ID, "name", storm.Name)
	return s.maps.FetchStorm(ctx, storm)
}

// resolveStorm picks the storm to track: the pinned ID when configured,
// otherwise the first Atlantic storm in the index, otherwise the first storm
// listed.
func (s *LiveSource) resolveStorm(ctx context.Context) (StormSummary, error) {
	if s.stormID != "" {
		return StormSummary{ID: s.stormID, Name: s.stormID}, nil
	}

	storms, err := s.index.ActiveStorms(ctx)
	if err != nil {
		return StormSummary{}, fmt.Errorf("resolve storm: %w", err)
	}
	for _, storm := range storms {
		if strings.EqualFold(storm.Basin, "AL") {
			return storm, nil
		}
	}
	return storms[0], nil
}
