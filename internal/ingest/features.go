package ingest

import (
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/geo"
)

// Property name fallbacks seen across the NHC/nowCOAST products and their
// community mirrors. Checked in order.
var (
	validTimeProps = []string{"validtime", "VALIDTIME", "datetime", "time"}
	windCodeProps  = []string{"windcode", "WINDCODE", "radii", "RADII"}
	productProps   = []string{"prodtype", "PROD_TYPE", "product"}
)

// layerFeatures converts a GeoJSON feature collection into store features
// for the given layer. Features without geometry are dropped; degenerate
// polygons are kept but never match containment (the geometry layer absorbs
// them).
func layerFeatures(fc *geojson.FeatureCollection, layer forecast.Layer) []forecast.Feature {
	if fc == nil {
		return nil
	}
	out := make([]forecast.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f == nil || f.Geometry == nil {
			continue
		}
		feat := forecast.Feature{
			Geometry: f.Geometry,
			Outer:    geo.OuterRing(f.Geometry),
		}

		when, hasWhen := propTime(f.Properties, validTimeProps)
		switch layer {
		case forecast.LayerArrivalMostLike, forecast.LayerArrivalEarliest:
			if hasWhen {
				feat.Arrival = when
			}
		case forecast.LayerWarnings:
			feat.Product = propString(f.Properties, productProps)
		default:
			if hasWhen {
				feat.ValidTime = when
			}
			feat.WindCode = propInt(f.Properties, windCodeProps)
		}

		out = append(out, feat)
	}
	return out
}

// trackPositions extracts an ordered track. Point features carry their own
// valid-time; LineString features contribute untimed vertices (used only
// when no timed points exist).
func trackPositions(points, track *geojson.FeatureCollection) []forecast.TrackPosition {
	var out []forecast.TrackPosition
	if points != nil {
		for _, f := range points.Features {
			if f == nil {
				continue
			}
			pt, ok := f.Geometry.(orb.Point)
			if !ok {
				continue
			}
			pos := forecast.TrackPosition{Point: pt}
			if when, hasWhen := propTime(f.Properties, validTimeProps); hasWhen {
				pos.Time = when
			}
			out = append(out, pos)
		}
	}
	if len(out) > 0 || track == nil {
		return out
	}
	for _, f := range track.Features {
		if f == nil {
			continue
		}
		ls, ok := f.Geometry.(orb.LineString)
		if !ok {
			continue
		}
		for _, v := range ls {
			out = append(out, forecast.TrackPosition{Point: v})
		}
	}
	return out
}

// inferTimeline derives the advisory timeline from wind-radii valid-times,
// falling back to track-point times.
func inferTimeline(wind *geojson.FeatureCollection, track []forecast.TrackPosition) []time.Time {
	var times []time.Time
	if wind != nil {
		for _, f := range wind.Features {
			if f == nil {
				continue
			}
			if when, ok := propTime(f.Properties, validTimeProps); ok {
				times = append(times, when)
			}
		}
	}
	if len(times) == 0 {
		for _, pos := range track {
			times = append(times, pos.Time)
		}
	}
	return forecast.BuildTimeline(times)
}

func propTime(props geojson.Properties, keys []string) (time.Time, bool) {
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if t, parsed := forecast.ParseValidTime(v); parsed {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func propInt(props geojson.Properties, keys []string) int {
	for _, k := range keys {
		switch v := props[k].(type) {
		case float64:
			return int(v)
		case int:
			return v
		}
	}
	return 0
}

func propString(props geojson.Properties, keys []string) string {
	for _, k := range keys {
		if s, ok := props[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
