package places

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/geo"
	"github.com/couchcryptid/hurricane-risk-service/internal/query"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

// County sampling: a 0.15 degree lattice over the boundary, capped so the
// largest counties stay cheap. Counties without boundaries fall back to
// their centroid.
const (
	countySampleSpacing = 0.15
	countySampleMax     = 24
)

// Area scan shape around a command center.
const (
	areaScanRings  = 2
	areaScanSpokes = 12
)

// Service assesses the tracked places, counties, and ad-hoc areas against
// the current forecast snapshot.
type Service struct {
	engine      *query.Engine
	holder      *forecast.Holder
	weights     risk.Weights
	places      []Place
	counties    []County
	tracker     *Tracker
	concurrency int
	logger      *slog.Logger
}

// NewService wires the assessment service. places and counties default to
// the embedded datasets when nil.
func NewService(engine *query.Engine, holder *forecast.Holder, weights risk.Weights, placeList []Place, counties []County, concurrency int, logger *slog.Logger) *Service {
	if placeList == nil {
		placeList = DefaultPlaces()
	}
	if counties == nil {
		counties = DefaultCounties()
	}
	return &Service{
		engine:      engine,
		holder:      holder,
		weights:     weights,
		places:      placeList,
		counties:    counties,
		tracker:     NewTracker(),
		concurrency: concurrency,
		logger:      logger,
	}
}

// Places returns the tracked places in configuration order.
func (s *Service) Places() []Place { return s.places }

// Impacts assesses every tracked place against snap and diffs the result
// against the previous refresh. Alerts are empty on the first refresh and
// whenever nothing shifted materially.
func (s *Service) Impacts(ctx context.Context, snap *forecast.Snapshot) ([]Impact, []Alert, error) {
	targets := make([]query.Target, 0, len(s.places))
	for _, p := range s.places {
		targets = append(targets, query.Target{ID: p.ID, Point: p.Point(), Coastal: p.Coastal})
	}

	results, err := s.engine.AssessBatch(ctx, s.holder, snap, targets, s.weights, s.concurrency)
	if err != nil {
		return nil, nil, fmt.Errorf("assess tracked places: %w", err)
	}

	impacts := make([]Impact, 0, len(s.places))
	for _, p := range s.places {
		impacts = append(impacts, Impact{Place: p, Assessment: results[p.ID]})
	}

	alerts := s.tracker.Observe(snap.Store.StormID(), impacts, snap.IngestedAt)
	return impacts, alerts, nil
}

// ResetBaseline clears the delta baselines, used when the tracked storm
// changes identity.
func (s *Service) ResetBaseline() { s.tracker.Reset() }

// GroupSummary is the rollup of one category of tracked places: worst score,
// soonest arrival, longest wind duration, and whether any member sits under
// a warning-level product.
type GroupSummary struct {
	Category         Category        `json:"category"`
	Count            int             `json:"count"`
	MaxScore         float64         `json:"max_score"`
	Bucket           risk.BucketInfo `json:"bucket"`
	MinETAHours      *int            `json:"min_eta_hours,omitempty"`
	MaxDurationHours int             `json:"max_duration_hours"`
	AnyWarning       bool            `json:"any_warning"`
}

// Groups rolls impacts up by category, in fixed category order, skipping
// empty groups.
func Groups(impacts []Impact) []GroupSummary {
	byCategory := make(map[Category][]Impact)
	for _, imp := range impacts {
		cat := imp.Place.Category.Normalize()
		byCategory[cat] = append(byCategory[cat], imp)
	}

	var out []GroupSummary
	for _, cat := range categoryOrder {
		members := byCategory[cat]
		if len(members) == 0 {
			continue
		}
		g := GroupSummary{Category: cat, Count: len(members)}
		for _, imp := range members {
			a := imp.Assessment
			if a.Result.Score > g.MaxScore {
				g.MaxScore = a.Result.Score
			}
			if h := a.Facts.Arrival.HoursUntil; h != nil {
				if g.MinETAHours == nil || *h < *g.MinETAHours {
					v := *h
					g.MinETAHours = &v
				}
			}
			if d := a.Facts.Duration.Hours; d != nil && *d > g.MaxDurationHours {
				g.MaxDurationHours = *d
			}
			if w := a.Facts.Warning; w != nil && strings.Contains(strings.ToUpper(w.Type), "WARNING") {
				g.AnyWarning = true
			}
		}
		g.Bucket = risk.Bucket(g.MaxScore)
		out = append(out, g)
	}
	return out
}

// CountyRisk is the aggregated risk for one county.
type CountyRisk struct {
	County County          `json:"county"`
	Score  float64         `json:"score"`
	Bucket risk.BucketInfo `json:"bucket"`
}

// Counties scores every county as the maximum over its sample points. Sample
// points are deduplicated across counties at millidegree precision so shared
// border cells are assessed once; all samples run in a single batch sharing
// one polygon memo.
func (s *Service) Counties(ctx context.Context, snap *forecast.Snapshot) ([]CountyRisk, error) {
	type sampleRef struct {
		county int
		id     string
	}
	var (
		targets []query.Target
		refs    []sampleRef
		dedupe  = make(map[[2]int64]string)
	)
	for ci, c := range s.counties {
		pts := countySamples(c)
		for _, pt := range pts {
			key := [2]int64{int64(math.Round(pt[0] * 1000)), int64(math.Round(pt[1] * 1000))}
			id, seen := dedupe[key]
			if !seen {
				id = fmt.Sprintf("s%d", len(targets))
				dedupe[key] = id
				targets = append(targets, query.Target{ID: id, Point: pt, Coastal: c.Coastal})
			}
			refs = append(refs, sampleRef{county: ci, id: id})
		}
	}

	results, err := s.engine.AssessBatch(ctx, s.holder, snap, targets, s.weights, s.concurrency)
	if err != nil {
		return nil, fmt.Errorf("assess counties: %w", err)
	}

	out := make([]CountyRisk, len(s.counties))
	for i, c := range s.counties {
		out[i] = CountyRisk{County: c}
	}
	for _, ref := range refs {
		if a, ok := results[ref.id]; ok && a.Result.Score > out[ref.county].Score {
			out[ref.county].Score = a.Result.Score
		}
	}
	for i := range out {
		out[i].Bucket = risk.Bucket(out[i].Score)
	}
	return out, nil
}

func countySamples(c County) []orb.Point {
	if ring := c.Ring(); ring != nil {
		return geo.SamplePoints(ring, countySampleSpacing, countySampleMax)
	}
	return []orb.Point{c.Centroid()}
}

// AreaSummary aggregates an area scan: soonest arrival, longest duration,
// and worst score across the sampled ring points.
type AreaSummary struct {
	Center           orb.Point       `json:"center"`
	RadiusKm         float64         `json:"radius_km"`
	MaxScore         float64         `json:"max_score"`
	Bucket           risk.BucketInfo `json:"bucket"`
	MinETAHours      *int            `json:"min_eta_hours,omitempty"`
	MaxDurationHours int             `json:"max_duration_hours"`
	Warning          *query.Warning  `json:"warning,omitempty"`
}

// Area scans two concentric rings of twelve spokes around center and
// aggregates the worst case. The warning reported is the first warning-level
// product found on any sample.
func (s *Service) Area(ctx context.Context, snap *forecast.Snapshot, center orb.Point, radiusKm float64) (AreaSummary, error) {
	targets := make([]query.Target, 0, areaScanRings*areaScanSpokes)
	for r := 1; r <= areaScanRings; r++ {
		dist := radiusKm * float64(r) / float64(areaScanRings)
		for i := 0; i < areaScanSpokes; i++ {
			bearing := float64(i) / float64(areaScanSpokes) * 360
			targets = append(targets, query.Target{
				ID:    fmt.Sprintf("r%d-s%d", r, i),
				Point: geo.Destination(center, dist, bearing),
			})
		}
	}

	results, err := s.engine.AssessBatch(ctx, s.holder, snap, targets, s.weights, s.concurrency)
	if err != nil {
		return AreaSummary{}, fmt.Errorf("assess area: %w", err)
	}

	sum := AreaSummary{Center: center, RadiusKm: radiusKm}
	for _, target := range targets {
		a := results[target.ID]
		if a.Result.Score > sum.MaxScore {
			sum.MaxScore = a.Result.Score
		}
		if h := a.Facts.Arrival.HoursUntil; h != nil {
			if sum.MinETAHours == nil || *h < *sum.MinETAHours {
				v := *h
				sum.MinETAHours = &v
			}
		}
		if d := a.Facts.Duration.Hours; d != nil && *d > sum.MaxDurationHours {
			sum.MaxDurationHours = *d
		}
		if w := a.Facts.Warning; w != nil && sum.Warning == nil &&
			strings.Contains(strings.ToUpper(w.Type), "WARNING") {
			sum.Warning = w
		}
	}
	sum.Bucket = risk.Bucket(sum.MaxScore)
	return sum, nil
}
