package ingest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
)

// bundleDoc is the serialized bundle shape used by the embedded demo data,
// cmd/gendemo output, and pasted-JSON ingestion.
type bundleDoc struct {
	ID       string                     `json:"id"`
	Name     string                     `json:"name"`
	Basin    string                     `json:"basin"`
	Year     int                        `json:"year"`
	Timeline []string                   `json:"timeline"`
	Layers   map[string]json.RawMessage `json:"layers"`
}

// bundleLayerNames maps serialized layer keys onto store layers. "points"
// and "track" feed the track instead.
var bundleLayerNames = map[string]forecast.Layer{
	"cone":              forecast.LayerCone,
	"wind":              forecast.LayerWind,
	"warnings":          forecast.LayerWarnings,
	"arrivalMostLikely": forecast.LayerArrivalMostLike,
	"arrivalEarliest":   forecast.LayerArrivalEarliest,
}

// ParseBundle decodes a serialized bundle document (demo file, pasted JSON,
// gendemo output) into a normalized Bundle.
func ParseBundle(data []byte) (*forecast.Bundle, error) {
	var doc bundleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse bundle: %w", err)
	}
	if doc.ID == "" {
		return nil, fmt.Errorf("parse bundle: missing storm id: %w", ErrSchemaMismatch)
	}

	collections := make(map[string]*geojson.FeatureCollection, len(doc.Layers))
	for name, raw := range doc.Layers {
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			return nil, fmt.Errorf("parse bundle layer %q: %w", name, err)
		}
		collections[name] = fc
	}

	layers := make(map[forecast.Layer][]forecast.Feature)
	for name, layer := range bundleLayerNames {
		if fc, ok := collections[name]; ok {
			layers[layer] = layerFeatures(fc, layer)
		}
	}

	track := trackPositions(collections["points"], collections["track"])
	if fc, ok := collections["track"]; ok {
		layers[forecast.LayerTrack] = layerFeatures(fc, forecast.LayerTrack)
	}

	timeline := make([]time.Time, 0, len(doc.Timeline))
	for _, s := range doc.Timeline {
		if t, ok := forecast.ParseValidTime(s); ok {
			timeline = append(timeline, t)
		}
	}
	if len(timeline) == 0 {
		timeline = inferTimeline(collections["wind"], track)
	}

	return &forecast.Bundle{
		StormID:  doc.ID,
		Name:     doc.Name,
		Basin:    doc.Basin,
		Year:     doc.Year,
		Timeline: timeline,
		Layers:   layers,
		Track:    track,
	}, nil
}
