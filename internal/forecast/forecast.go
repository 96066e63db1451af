// Package forecast holds the normalized in-memory model of one storm's
// forecast products: an ordered timeline of advisory valid-times and, per
// layer, the polygon features that apply to each time and wind threshold.
//
// # Layers
//
// The layer names mirror the NHC tropical weather MapServer products:
//
//	cone                the cone of uncertainty, sliced per valid-time
//	track               the forecast track, an ordered position sequence
//	wind                wind radii polygons, per valid-time and windcode
//	arrivalMostLikely   arrival-time contours, "most likely" estimation
//	arrivalEarliest     arrival-time contours, "earliest reasonable"
//	warnings            active watch/warning product polygons
//
// Wind thresholds (windcode) are sustained-wind speeds in knots: 34
// (tropical-storm force), 50, and 64 (hurricane force).
//
// A Store is immutable once built. Re-ingestion always builds a fresh Store
// off to the side and swaps it in through a Holder, so concurrent readers
// never observe a partially constructed forecast.
package forecast

import (
	"time"

	"github.com/paulmach/orb"
)

// Layer identifies one forecast product collection within a store.
type Layer string

// Forecast layers in the canonical model.
const (
	LayerCone            Layer = "cone"
	LayerTrack           Layer = "track"
	LayerWind            Layer = "wind"
	LayerArrivalMostLike Layer = "arrivalMostLikely"
	LayerArrivalEarliest Layer = "arrivalEarliest"
	LayerWarnings        Layer = "warnings"
)

// Wind threshold codes in knots.
const (
	Wind34 = 34
	Wind50 = 50
	Wind64 = 64
)

// Feature is one polygon product tagged with the attributes the query engine
// filters on. ValidTime is zero for layers that are not time-sliced
// (warnings, arrival contours). WindCode is zero outside the wind layer.
type Feature struct {
	Geometry  orb.Geometry
	Outer     orb.Ring // cached outer ring used for containment
	ValidTime time.Time
	WindCode  int

	// Product is the advisory product text carried by warning features,
	// e.g. "Hurricane Warning".
	Product string

	// Arrival is the forecast arrival time carried by arrival-contour
	// features.
	Arrival time.Time
}

// TrackPosition is one vertex of the forecast track.
type TrackPosition struct {
	Point orb.Point
	Time  time.Time
}

// Bundle is the adapter-normalized input to NewStore: whatever the upstream
// source looked like, ingestion reduces it to this shape.
type Bundle struct {
	StormID string
	Name    string
	Basin   string
	Year    int

	Timeline []time.Time
	Layers   map[Layer][]Feature
	Track    []TrackPosition
}
