package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
)

// ManualURLs points the mirror source at individually hosted GeoJSON layer
// files. Unset URLs yield empty collections.
type ManualURLs struct {
	Cone     string
	Track    string
	Points   string
	Wind     string
	Warnings string
}

func (u ManualURLs) empty() bool {
	return u.Cone == "" && u.Track == "" && u.Points == "" && u.Wind == "" && u.Warnings == ""
}

// ManualSource fetches pre-exported layer files from a mirror. It sits
// between live and demo in the chain: useful when the map service is down
// but a mirror still republishes advisories.
type ManualSource struct {
	urls       ManualURLs
	stormID    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewManualSource creates the mirror source. stormID labels the resulting
// bundle; mirrors carry a single storm per file set.
func NewManualSource(urls ManualURLs, stormID string, timeout time.Duration, logger *slog.Logger) *ManualSource {
	if stormID == "" {
		stormID = "MIRROR"
	}
	return &ManualSource{
		urls:    urls,
		stormID: stormID,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

func (s *ManualSource) Name() string { return "mirror" }

// Fetch pulls the configured layer files concurrently. No URLs configured,
// or every configured layer empty, is ErrNoData so the chain falls through
// to demo.
func (s *ManualSource) Fetch(ctx context.Context) (*forecast.Bundle, error) {
	if s.urls.empty() {
		return nil, fmt.Errorf("no mirror urls configured: %w", ErrNoData)
	}

	var cone, track, points, wind, warnings *geojson.FeatureCollection
	g, gctx := errgroup.WithContext(ctx)
	fetch := func(url string, dst **geojson.FeatureCollection) {
		if url == "" {
			return
		}
		g.Go(func() error {
			fc, err := s.fetchCollection(gctx, url)
			if err != nil {
				return err
			}
			*dst = fc
			return nil
		})
	}
	fetch(s.urls.Cone, &cone)
	fetch(s.urls.Track, &track)
	fetch(s.urls.Points, &points)
	fetch(s.urls.Wind, &wind)
	fetch(s.urls.Warnings, &warnings)
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("fetch mirror layers: %w", err)
	}

	layers := make(map[forecast.Layer][]forecast.Feature)
	for _, part := range []struct {
		fc    *geojson.FeatureCollection
		layer forecast.Layer
	}{
		{cone, forecast.LayerCone},
		{track, forecast.LayerTrack},
		{wind, forecast.LayerWind},
		{warnings, forecast.LayerWarnings},
	} {
		if feats := layerFeatures(part.fc, part.layer); len(feats) > 0 {
			layers[part.layer] = feats
		}
	}

	trackPos := trackPositions(points, track)
	timeline := inferTimeline(wind, trackPos)
	if len(layers) == 0 && len(trackPos) == 0 {
		return nil, fmt.Errorf("mirror layers all empty: %w", ErrNoData)
	}

	return &forecast.Bundle{
		StormID:  s.stormID,
		Name:     s.stormID,
		Timeline: timeline,
		Layers:   layers,
		Track:    trackPos,
	}, nil
}

func (s *ManualSource) fetchCollection(ctx context.Context, url string) (*geojson.FeatureCollection, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", url, ErrSchemaMismatch, err)
	}
	return fc, nil
}
