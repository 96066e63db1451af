package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/query"
)

// MapClient talks to an ArcGIS map service laid out like nowCOAST's
// NHC_tropical_weather service: numbered sublayers discovered by name, each
// queryable by attribute filter (f=geojson) or point intersection (f=json).
type MapClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	layers *LayerIDs
}

// LayerIDs holds discovered sublayer numbers. Nil means the service does not
// expose that product; dependent features degrade instead of failing.
type LayerIDs struct {
	Cone      *int
	Track     *int
	Points    *int
	Wind      *int
	ArrivalML *int
	ArrivalER *int
	Warnings  *int
}

// NewMapClient creates a client for the given service root, e.g.
// ".../tropical/NHC_tropical_weather/MapServer".
func NewMapClient(baseURL string, timeout time.Duration, logger *slog.Logger) *MapClient {
	return &MapClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Layers discovers sublayer IDs by name, caching the result. Layer numbering
// shifts between service revisions, so IDs are never hardcoded.
func (c *MapClient) Layers(ctx context.Context) (*LayerIDs, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.layers != nil {
		return c.layers, nil
	}

	var meta struct {
		Layers []struct {
			ID   int    `json:"id"`
			Name string `json:"name"`
		} `json:"layers"`
	}
	if err := c.getJSON(ctx, c.baseURL+"?f=pjson", &meta); err != nil {
		return nil, fmt.Errorf("discover layers: %w", err)
	}
	if len(meta.Layers) == 0 {
		return nil, fmt.Errorf("discover layers: empty layer list: %w", ErrSchemaMismatch)
	}

	find := func(substrings ...string) *int {
		for _, lyr := range meta.Layers {
			name := strings.ToLower(lyr.Name)
			all := true
			for _, s := range substrings {
				if !strings.Contains(name, s) {
					all = false
					break
				}
			}
			if all {
				id := lyr.ID
				return &id
			}
		}
		return nil
	}
	first := func(alternatives ...[]string) *int {
		for _, alt := range alternatives {
			if id := find(alt...); id != nil {
				return id
			}
		}
		return nil
	}

	c.layers = &LayerIDs{
		Cone:      first([]string{"forecast cone"}, []string{"cone"}),
		Track:     first([]string{"forecast track"}, []string{"line"}),
		Points:    first([]string{"forecast points"}, []string{"positions"}),
		Wind:      find("forecast wind radii"),
		ArrivalML: find("arrival time", "most likely"),
		ArrivalER: find("arrival time", "earliest"),
		Warnings:  find("watches", "warnings"),
	}
	c.logger.Info("map service layers discovered",
		"cone", intOrDash(c.layers.Cone),
		"track", intOrDash(c.layers.Track),
		"points", intOrDash(c.layers.Points),
		"wind", intOrDash(c.layers.Wind),
		"warnings", intOrDash(c.layers.Warnings),
	)
	return c.layers, nil
}

// FetchStorm builds a complete bundle for one storm: timed forecast points
// drive the timeline and track, with cone, wind radii, warnings, and arrival
// contours fetched storm-wide and bucketed by their own properties.
func (c *MapClient) FetchStorm(ctx context.Context, storm StormSummary) (*forecast.Bundle, error) {
	ids, err := c.Layers(ctx)
	if err != nil {
		return nil, err
	}
	if ids.Points == nil {
		return nil, fmt.Errorf("no forecast points layer: %w", ErrSchemaMismatch)
	}

	stormWhere := fmt.Sprintf("stormid='%s'", storm.ID)

	points, err := c.queryGeoJSON(ctx, *ids.Points, stormWhere, "validtime")
	if err != nil {
		return nil, fmt.Errorf("fetch forecast points: %w", err)
	}
	track := trackPositions(points, nil)
	if len(track) == 0 {
		return nil, fmt.Errorf("storm %s: %w", storm.ID, ErrNoData)
	}

	layers := make(map[forecast.Layer][]forecast.Feature)
	fetchLayer := func(id *int, layer forecast.Layer) error {
		if id == nil {
			return nil
		}
		fc, err := c.queryGeoJSON(ctx, *id, stormWhere, "")
		if err != nil {
			return fmt.Errorf("fetch %s: %w", layer, err)
		}
		if feats := layerFeatures(fc, layer); len(feats) > 0 {
			layers[layer] = feats
		}
		return nil
	}
	for _, part := range []struct {
		id    *int
		layer forecast.Layer
	}{
		{ids.Cone, forecast.LayerCone},
		{ids.Track, forecast.LayerTrack},
		{ids.Wind, forecast.LayerWind},
		{ids.Warnings, forecast.LayerWarnings},
		{ids.ArrivalML, forecast.LayerArrivalMostLike},
		{ids.ArrivalER, forecast.LayerArrivalEarliest},
	} {
		if err := fetchLayer(part.id, part.layer); err != nil {
			return nil, err
		}
	}

	times := make([]time.Time, 0, len(track))
	for _, pos := range track {
		times = append(times, pos.Time)
	}
	timeline := forecast.BuildTimeline(times)
	if len(timeline) == 0 {
		return nil, fmt.Errorf("storm %s: no timed forecast points: %w", storm.ID, ErrNoData)
	}

	return &forecast.Bundle{
		StormID:  storm.ID,
		Name:     storm.Name,
		Basin:    storm.Basin,
		Year:     storm.Year,
		Timeline: timeline,
		Layers:   layers,
		Track:    track,
	}, nil
}

// ArrivalAt resolves the arrival contour covering pt server-side. A zero
// time with nil error means no contour covers the point.
func (c *MapClient) ArrivalAt(ctx context.Context, pt orb.Point, mode query.ArrivalMode) (time.Time, error) {
	ids, err := c.Layers(ctx)
	if err != nil {
		return time.Time{}, err
	}
	id := ids.ArrivalML
	if mode == query.ArrivalEarliest {
		id = ids.ArrivalER
	}
	if id == nil {
		return time.Time{}, nil
	}

	attrs, err := c.identify(ctx, *id, pt)
	if err != nil {
		return time.Time{}, err
	}
	if attrs == nil {
		return time.Time{}, nil
	}
	for _, k := range validTimeProps {
		if v, ok := attrs[k]; ok {
			if t, parsed := forecast.ParseValidTime(v); parsed {
				return t, nil
			}
		}
	}
	return time.Time{}, nil
}

// WarningAt resolves the active watch/warning product covering pt. Empty
// string with nil error means no product covers the point.
func (c *MapClient) WarningAt(ctx context.Context, pt orb.Point) (string, error) {
	ids, err := c.Layers(ctx)
	if err != nil {
		return "", err
	}
	if ids.Warnings == nil {
		return "", nil
	}

	attrs, err := c.identify(ctx, *ids.Warnings, pt)
	if err != nil {
		return "", err
	}
	if attrs == nil {
		return "", nil
	}
	for _, k := range productProps {
		if s, ok := attrs[k].(string); ok && s != "" {
			return s, nil
		}
	}
	return "", nil
}

// queryGeoJSON runs an attribute-filtered layer query returning GeoJSON.
func (c *MapClient) queryGeoJSON(ctx context.Context, layerID int, where, orderBy string) (*geojson.FeatureCollection, error) {
	params := url.Values{
		"where":     {where},
		"outFields": {"*"},
		"f":         {"geojson"},
	}
	if orderBy != "" {
		params.Set("orderByFields", orderBy)
	}

	data, err := c.get(ctx, fmt.Sprintf("%s/%d/query?%s", c.baseURL, layerID, params.Encode()))
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("layer %d: %w: %v", layerID, ErrSchemaMismatch, err)
	}
	return fc, nil
}

// identify runs a point-intersection query and returns the first hit's
// attributes, or nil when nothing covers the point.
func (c *MapClient) identify(ctx context.Context, layerID int, pt orb.Point) (map[string]any, error) {
	params := url.Values{
		"geometry":       {fmt.Sprintf("%f,%f", pt[0], pt[1])},
		"geometryType":   {"esriGeometryPoint"},
		"inSR":           {"4326"},
		"spatialRel":     {"esriSpatialRelIntersects"},
		"outFields":      {"*"},
		"returnGeometry": {"false"},
		"f":              {"json"},
	}

	var result struct {
		Features []struct {
			Attributes map[string]any `json:"attributes"`
		} `json:"features"`
	}
	u := fmt.Sprintf("%s/%d/query?%s", c.baseURL, layerID, params.Encode())
	if err := c.getJSON(ctx, u, &result); err != nil {
		return nil, err
	}
	if len(result.Features) == 0 {
		return nil, nil
	}
	return result.Features[0].Attributes, nil
}

func (c *MapClient) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	return io.ReadAll(resp.Body)
}

func (c *MapClient) getJSON(ctx context.Context, u string, out any) error {
	data, err := c.get(ctx, u)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	return nil
}

func intOrDash(id *int) any {
	if id == nil {
		return "-"
	}
	return *id
}
