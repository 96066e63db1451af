// Command gendemo regenerates the embedded offline demo bundle. It builds a
// synthetic Atlantic storm tracking toward the Florida gulf coast and runs
// the result through the real ingest and query packages, so the fixture is
// guaranteed to parse and to produce sensible assessments.
//
// Usage:
//
//	go run ./cmd/gendemo -out internal/ingest/demo_storm.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/ingest"
	"github.com/couchcryptid/hurricane-risk-service/internal/query"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

// Shape parameters for the synthetic storm. The wind radii are diamonds
// because four vertices are enough for containment tests and keep the
// fixture readable.
var (
	baseTime  = time.Date(2025, time.August, 15, 0, 0, 0, 0, time.UTC)
	stepHours = 6
	steps     = 6
	startLon  = -77.0
	startLat  = 23.0
	stepLon   = -1.1
	stepLat   = 1.0

	windRadii = map[int]float64{
		forecast.Wind34: 2.0,
		forecast.Wind50: 1.2,
		forecast.Wind64: 0.7,
	}
)

// demoDoc matches the bundle document shape the ingest package parses.
type demoDoc struct {
	ID       string                                `json:"id"`
	Name     string                                `json:"name"`
	Basin    string                                `json:"basin"`
	Year     int                                   `json:"year"`
	Timeline []string                              `json:"timeline"`
	Layers   map[string]*geojson.FeatureCollection `json:"layers"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "internal/ingest/demo_storm.json", "output path for the demo bundle")
	stormID := flag.String("storm-id", "AL092025", "storm identifier")
	name := flag.String("name", "Demo", "storm name")
	flag.Parse()

	doc := buildDoc(*stormID, *name)

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(*out), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(*out, data, 0o600); err != nil {
		return err
	}
	log.Printf("wrote demo bundle: %s (%d bytes)", *out, len(data))

	return verify(data)
}

func buildDoc(stormID, name string) demoDoc {
	timeline := make([]string, steps)
	track := make([]orb.Point, steps)
	for i := 0; i < steps; i++ {
		timeline[i] = stepTime(i).Format("2006-01-02T15:04:05Z")
		track[i] = orb.Point{startLon + stepLon*float64(i), startLat + stepLat*float64(i)}
	}

	wind := geojson.NewFeatureCollection()
	cone := geojson.NewFeatureCollection()
	points := geojson.NewFeatureCollection()
	for i, center := range track {
		for _, code := range []int{forecast.Wind34, forecast.Wind50, forecast.Wind64} {
			f := geojson.NewFeature(orb.Polygon{diamond(center, windRadii[code])})
			f.Properties = geojson.Properties{"validtime": timeline[i], "windcode": code}
			wind.Append(f)
		}

		c := geojson.NewFeature(orb.Polygon{diamond(center, 0.5+0.15*float64(i))})
		c.Properties = geojson.Properties{"validtime": timeline[i]}
		cone.Append(c)

		p := geojson.NewFeature(center)
		p.Properties = geojson.Properties{"validtime": timeline[i]}
		points.Append(p)
	}

	trackFC := geojson.NewFeatureCollection()
	trackFC.Append(geojson.NewFeature(orb.LineString(track)))

	warnings := geojson.NewFeatureCollection()
	hw := geojson.NewFeature(orb.Polygon{rect(-83.5, 26.5, -81.5, 29.0)})
	hw.Properties = geojson.Properties{"prodtype": "Hurricane Warning"}
	warnings.Append(hw)
	tsw := geojson.NewFeature(orb.Polygon{rect(-82.0, 25.0, -80.0, 26.5)})
	tsw.Properties = geojson.Properties{"prodtype": "Tropical Storm Watch"}
	warnings.Append(tsw)

	arrival := geojson.NewFeatureCollection()
	near := geojson.NewFeature(orb.Polygon{rect(-84.0, 26.8, -81.5, 29.0)})
	near.Properties = geojson.Properties{"validtime": baseTime.Add(30 * time.Hour).Format("2006-01-02T15:04:05Z")}
	arrival.Append(near)
	far := geojson.NewFeature(orb.Polygon{rect(-82.0, 24.5, -79.5, 26.8)})
	far.Properties = geojson.Properties{"validtime": baseTime.Add(48 * time.Hour).Format("2006-01-02T15:04:05Z")}
	arrival.Append(far)

	return demoDoc{
		ID:       stormID,
		Name:     name,
		Basin:    "AL",
		Year:     baseTime.Year(),
		Timeline: timeline,
		Layers: map[string]*geojson.FeatureCollection{
			"cone":              cone,
			"wind":              wind,
			"warnings":          warnings,
			"arrivalMostLikely": arrival,
			"points":            points,
			"track":             trackFC,
		},
	}
}

// verify round-trips the fixture through the real parse, store, and query
// paths and prints reference assessments for updating test assertions.
func verify(data []byte) error {
	bundle, err := ingest.ParseBundle(data)
	if err != nil {
		return fmt.Errorf("fixture does not parse: %w", err)
	}
	store, err := forecast.NewStore(bundle)
	if err != nil {
		return fmt.Errorf("fixture does not build a store: %w", err)
	}

	// Fix the clock so hours-until values are reproducible.
	query.SetClock(clockwork.NewFakeClockAt(baseTime))
	defer query.SetClock(nil)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	engine := query.NewEngine(nil, nil, logger, nil)
	snap := &forecast.Snapshot{Store: store, Source: "demo", IngestedAt: baseTime}

	fmt.Println("\n=== Reference assessments ===")
	fmt.Printf("Storm: %s (%s), %d timeline steps\n",
		store.StormID(), store.Name(), len(store.Timeline()))
	for _, probe := range []struct {
		name    string
		pt      orb.Point
		coastal bool
	}{
		{"Tampa", orb.Point{-82.4572, 27.9506}, true},
		{"Miami", orb.Point{-80.1918, 25.7617}, true},
		{"Orlando", orb.Point{-81.3789, 28.5384}, false},
	} {
		a := engine.Assess(context.Background(), snap, probe.pt, probe.coastal, risk.DefaultWeights(), nil)
		fmt.Printf("%-8s score=%.1f bucket=%s confidence=%s category=%q\n",
			probe.name, a.Result.Score, a.Bucket.Class, a.Confidence.Label, a.Category.Text)
	}
	return nil
}

func stepTime(i int) time.Time {
	return baseTime.Add(time.Duration(i*stepHours) * time.Hour)
}

func diamond(c orb.Point, r float64) orb.Ring {
	return orb.Ring{
		{c[0] + r, c[1]},
		{c[0], c[1] + r},
		{c[0] - r, c[1]},
		{c[0], c[1] - r},
		{c[0] + r, c[1]},
	}
}

func rect(w, s, e, n float64) orb.Ring {
	return orb.Ring{{w, s}, {e, s}, {e, n}, {w, n}, {w, s}}
}
