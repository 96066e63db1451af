// Package query derives per-location facts from a forecast snapshot: when
// damaging winds arrive, how long they last, which advisory product is in
// effect, and how close the track comes. Every operation degrades to an
// explicit "absent" value instead of surfacing an error; fewer facts lower
// the confidence level downstream, they never halt a caller.
package query

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/geo"
	"github.com/couchcryptid/hurricane-risk-service/internal/observability"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

// ArrivalMode selects which upstream arrival-time estimation to use.
type ArrivalMode int

const (
	// ArrivalMostLikely is the median arrival estimate.
	ArrivalMostLikely ArrivalMode = iota
	// ArrivalEarliest is the earliest-reasonable estimate.
	ArrivalEarliest
)

func (m ArrivalMode) layer() forecast.Layer {
	if m == ArrivalEarliest {
		return forecast.LayerArrivalEarliest
	}
	return forecast.LayerArrivalMostLike
}

// ArrivalSource answers point-intersect arrival lookups remotely when the
// local snapshot carries no arrival contours (the live map service
// precomputes them server-side). A zero time means no contour covers the
// point.
type ArrivalSource interface {
	ArrivalAt(ctx context.Context, pt orb.Point, mode ArrivalMode) (time.Time, error)
}

// WarningSource answers point-intersect watch/warning lookups remotely. An
// empty product text means no active product covers the point.
type WarningSource interface {
	WarningAt(ctx context.Context, pt orb.Point) (string, error)
}

// Arrival is when a point first experiences tropical-storm-force winds.
// Nil fields mean the lookup produced no data. A negative HoursUntil means
// the event window has already begun.
type Arrival struct {
	When       *time.Time `json:"when,omitempty"`
	HoursUntil *int       `json:"hours_until,omitempty"`
}

// Duration is the span a point spends inside a wind threshold across the
// timeline. It measures first to last positive sample: if the point exits
// and re-enters, the gap is not subtracted. That mirrors the upstream
// product behavior and is pinned by tests; do not "fix" it silently.
type Duration struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
	Hours *int       `json:"hours,omitempty"`
}

// Approach is the closest pass of the forecast track to a point.
type Approach struct {
	DistanceKm float64   `json:"distance_km"`
	Time       time.Time `json:"time"`
}

// Engine executes point queries against forecast snapshots. Remote sources
// are optional; when nil, only the local store answers.
type Engine struct {
	arrival ArrivalSource
	warning WarningSource
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewEngine creates an Engine. Pass nil sources to run purely off the local
// store (offline/demo mode).
func NewEngine(arrival ArrivalSource, warning WarningSource, logger *slog.Logger, metrics *observability.Metrics) *Engine {
	return &Engine{arrival: arrival, warning: warning, logger: logger, metrics: metrics}
}

func (e *Engine) count(kind string) {
	if e.metrics != nil {
		e.metrics.PointQueries.WithLabelValues(kind).Inc()
	}
}

// ArrivalTime resolves the forecast arrival of tropical-storm-force winds at
// pt. Local arrival contours win; otherwise the remote source is consulted.
// Any failure yields the empty Arrival.
func (e *Engine) ArrivalTime(ctx context.Context, snap *forecast.Snapshot, pt orb.Point, mode ArrivalMode) Arrival {
	e.count("arrival")
	if snap == nil || snap.Store == nil {
		return Arrival{}
	}

	if feats := snap.Store.Containing(mode.layer(), pt, time.Time{}, 0); len(feats) > 0 {
		return e.arrivalFrom(arrivalOf(feats[0]))
	}

	if e.arrival == nil {
		return Arrival{}
	}
	when, err := e.arrival.ArrivalAt(ctx, pt, mode)
	if err != nil {
		e.logger.Warn("remote arrival lookup failed", "lon", pt[0], "lat", pt[1], "error", err)
		return Arrival{}
	}
	return e.arrivalFrom(when)
}

func arrivalOf(f forecast.Feature) time.Time {
	if !f.Arrival.IsZero() {
		return f.Arrival
	}
	return f.ValidTime
}

func (e *Engine) arrivalFrom(when time.Time) Arrival {
	if when.IsZero() {
		return Arrival{}
	}
	hours := int(math.Round(when.Sub(clock.Now()).Hours()))
	return Arrival{When: &when, HoursUntil: &hours}
}

// DurationInside scans the whole timeline and returns the span between the
// first and last step where pt lies inside any windcode polygon. Hours is
// the rounded span, floored at zero. Never inside → all fields nil.
func (e *Engine) DurationInside(snap *forecast.Snapshot, pt orb.Point, windcode int) Duration {
	return e.durationInside(snap, pt, windcode, nil)
}

func (e *Engine) durationInside(snap *forecast.Snapshot, pt orb.Point, windcode int, memo *Memo) Duration {
	e.count("duration")
	if snap == nil || snap.Store == nil {
		return Duration{}
	}

	timeline := snap.Store.Timeline()
	first, last := -1, -1
	for i, t := range timeline {
		if !e.insideWindAt(snap, pt, t, windcode, memo) {
			continue
		}
		if first == -1 {
			first = i
		}
		last = i
	}
	if first == -1 {
		return Duration{}
	}

	start, end := timeline[first], timeline[last]
	hours := int(math.Round(end.Sub(start).Hours()))
	if hours < 0 {
		hours = 0
	}
	return Duration{Start: &start, End: &end, Hours: &hours}
}

// WindPresence reports whether pt falls inside the windcode polygon at any
// timeline step, short-circuiting on the first hit.
func (e *Engine) WindPresence(snap *forecast.Snapshot, pt orb.Point, windcode int) bool {
	return e.windPresence(snap, pt, windcode, nil)
}

func (e *Engine) windPresence(snap *forecast.Snapshot, pt orb.Point, windcode int, memo *Memo) bool {
	e.count("wind")
	if snap == nil || snap.Store == nil {
		return false
	}
	for _, t := range snap.Store.Timeline() {
		if e.insideWindAt(snap, pt, t, windcode, memo) {
			return true
		}
	}
	return false
}

func (e *Engine) insideWindAt(snap *forecast.Snapshot, pt orb.Point, t time.Time, windcode int, memo *Memo) bool {
	if memo != nil {
		for _, f := range memo.FeaturesAt(snap.Store, forecast.LayerWind, t, windcode) {
			if geo.PointInRing(pt, f.Outer) {
				return true
			}
		}
		return false
	}
	return len(snap.Store.Containing(forecast.LayerWind, pt, t, windcode)) > 0
}

// ActiveWarning classifies the watch/warning product covering pt, or nil
// when none does. Local warning polygons win; otherwise the remote source
// is consulted. Failures classify as nil, never as an error.
func (e *Engine) ActiveWarning(ctx context.Context, snap *forecast.Snapshot, pt orb.Point) *Warning {
	e.count("warning")
	if snap == nil || snap.Store == nil {
		return nil
	}

	if feats := snap.Store.Containing(forecast.LayerWarnings, pt, time.Time{}, 0); len(feats) > 0 {
		return ClassifyProduct(feats[0].Product)
	}
	if len(snap.Store.Polygons(forecast.LayerWarnings, time.Time{}, 0)) > 0 {
		return nil // warnings present, none cover this point
	}

	if e.warning == nil {
		return nil
	}
	product, err := e.warning.WarningAt(ctx, pt)
	if err != nil {
		e.logger.Warn("remote warning lookup failed", "lon", pt[0], "lat", pt[1], "error", err)
		return nil
	}
	return ClassifyProduct(product)
}

// ClosestApproach finds the minimum great-circle distance from pt to any
// forecast track vertex, with the vertex's valid-time. Ties keep the
// earliest-encountered vertex. Nil when the store has no track.
func (e *Engine) ClosestApproach(snap *forecast.Snapshot, pt orb.Point) *Approach {
	e.count("approach")
	if snap == nil || snap.Store == nil {
		return nil
	}
	track := snap.Store.Track()
	if len(track) == 0 {
		return nil
	}

	best := Approach{DistanceKm: math.Inf(1)}
	for _, pos := range track {
		if d := geo.DistanceKm(pt, pos.Point); d < best.DistanceKm {
			best = Approach{DistanceKm: d, Time: pos.Time}
		}
	}
	return &best
}

// Facts is the complete fact set for one point, as consumed by risk scoring.
type Facts struct {
	Arrival  Arrival  `json:"arrival"`
	Duration Duration `json:"duration"`
	Warning  *Warning `json:"warning,omitempty"`
	Has64    bool     `json:"has_64kt"`
	Has50    bool     `json:"has_50kt"`
	Coastal  bool     `json:"coastal"`
}

// Facts gathers all point facts concurrently. The five lookups are
// independent and, in live mode, each may cost a network round trip.
func (e *Engine) Facts(ctx context.Context, snap *forecast.Snapshot, pt orb.Point, coastal bool, memo *Memo) Facts {
	facts := Facts{Coastal: coastal}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		facts.Arrival = e.ArrivalTime(gctx, snap, pt, ArrivalMostLikely)
		return nil
	})
	g.Go(func() error {
		facts.Duration = e.durationInside(snap, pt, forecast.Wind34, memo)
		return nil
	})
	g.Go(func() error {
		facts.Warning = e.ActiveWarning(gctx, snap, pt)
		return nil
	})
	g.Go(func() error {
		facts.Has64 = e.windPresence(snap, pt, forecast.Wind64, memo)
		return nil
	})
	g.Go(func() error {
		facts.Has50 = e.windPresence(snap, pt, forecast.Wind50, memo)
		return nil
	})
	_ = g.Wait() // workers never return errors; absence is encoded in the facts

	return facts
}

// Assessment is a fully derived risk view of one point, tagged with the
// snapshot generation it was computed against.
type Assessment struct {
	Point      orb.Point            `json:"point"`
	Facts      Facts                `json:"facts"`
	Result     risk.Result          `json:"result"`
	Bucket     risk.BucketInfo      `json:"bucket"`
	Confidence risk.ConfidenceLevel `json:"confidence"`
	Category   risk.Category        `json:"category"`
	Approach   *Approach            `json:"approach,omitempty"`
	Generation string               `json:"-"`
}

// Assess derives the composite risk for one point.
func (e *Engine) Assess(ctx context.Context, snap *forecast.Snapshot, pt orb.Point, coastal bool, w risk.Weights, memo *Memo) Assessment {
	facts := e.Facts(ctx, snap, pt, coastal, memo)

	result := risk.Score(risk.Input{
		WarningType:   warningType(facts.Warning),
		HoursUntil:    facts.Arrival.HoursUntil,
		DurationHours: facts.Duration.Hours,
		Has64:         facts.Has64,
		Has50:         facts.Has50,
		Coastal:       coastal,
	}, w)

	a := Assessment{
		Point:      pt,
		Facts:      facts,
		Result:     result,
		Bucket:     risk.Bucket(result.Score),
		Confidence: risk.Confidence(facts.Arrival.When != nil, facts.Duration.Hours != nil, facts.Warning != nil),
		Category:   risk.ArrivalCategory(facts.Arrival.HoursUntil),
		Approach:   e.ClosestApproach(snap, pt),
	}
	if snap != nil {
		a.Generation = snap.Generation
	}
	return a
}

func warningType(w *Warning) string {
	if w == nil {
		return ""
	}
	return w.Type
}
