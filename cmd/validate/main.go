// Command validate performs end-to-end integrity checks on a forecast bundle
// file: document structure, layer geometry, store and query behavior, and
// risk scoring sanity. It runs the real ingest, forecast, and query packages
// so a passing bundle is guaranteed to work in the service.
//
// Usage:
//
//	go run ./cmd/validate -bundle internal/ingest/demo_storm.json
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/hurricane-risk-service/internal/forecast"
	"github.com/couchcryptid/hurricane-risk-service/internal/geo"
	"github.com/couchcryptid/hurricane-risk-service/internal/ingest"
	"github.com/couchcryptid/hurricane-risk-service/internal/observability"
	"github.com/couchcryptid/hurricane-risk-service/internal/query"
	"github.com/couchcryptid/hurricane-risk-service/internal/risk"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	bundlePath := flag.String("bundle", "internal/ingest/demo_storm.json", "path to a forecast bundle JSON file")
	flag.Parse()

	if code := run(*bundlePath); code != 0 {
		os.Exit(code)
	}
}

func run(bundlePath string) int {
	fmt.Println("=== Forecast Bundle Integrity Validation ===")
	fmt.Println()

	data, err := os.ReadFile(bundlePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read bundle: %v\n", err)
		return 1
	}

	bundle, err := ingest.ParseBundle(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: parse bundle: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStructure(bundle),
		validateGeometry(bundle),
		validateStore(bundle),
		validateScoring(bundle),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Bundle: %s (%s), %d timeline steps, %d layers, %d track positions\n",
		bundle.StormID, bundle.Name, len(bundle.Timeline), len(bundle.Layers), len(bundle.Track))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Document Structure ──
// Validates identifiers, timeline ordering, and layer presence.

func validateStructure(b *forecast.Bundle) *phase {
	p := &phase{name: "Phase 1: Document Structure"}

	if b.StormID == "" {
		p.errorf("missing storm id")
	}
	if len(b.Timeline) == 0 {
		p.errorf("empty timeline")
	}
	for i := 1; i < len(b.Timeline); i++ {
		if !b.Timeline[i].After(b.Timeline[i-1]) {
			p.errorf("timeline not strictly increasing at step %d: %s then %s",
				i, b.Timeline[i-1].Format(time.RFC3339), b.Timeline[i].Format(time.RFC3339))
		}
	}
	if len(b.Layers[forecast.LayerWind]) == 0 {
		p.errorf("no wind radii features")
	}
	if len(b.Track) == 0 {
		p.errorf("no track positions")
	}
	return p
}

// ── Phase 2: Layer Geometry ──
// Validates rings, valid-times, and wind codes on every polygon feature.

func validateGeometry(b *forecast.Bundle) *phase {
	p := &phase{name: "Phase 2: Layer Geometry"}

	onTimeline := make(map[time.Time]bool, len(b.Timeline))
	for _, t := range b.Timeline {
		onTimeline[t] = true
	}
	knownCodes := map[int]bool{forecast.Wind34: true, forecast.Wind50: true, forecast.Wind64: true}

	for layer, feats := range b.Layers {
		if layer == forecast.LayerTrack {
			continue
		}
		for i, f := range feats {
			if len(f.Outer) < 3 {
				p.errorf("%s feature %d: degenerate outer ring (%d vertices)", layer, i, len(f.Outer))
				continue
			}
			if layer == forecast.LayerWind {
				if !f.ValidTime.IsZero() && !onTimeline[f.ValidTime] {
					p.errorf("%s feature %d: validtime %s not on timeline",
						layer, i, f.ValidTime.Format(time.RFC3339))
				}
				if !knownCodes[f.WindCode] {
					p.errorf("%s feature %d: unknown wind code %d", layer, i, f.WindCode)
				}
			}
		}
	}
	return p
}

// ── Phase 3: Store Behavior ──
// Builds the spatial store and probes containment at feature centroids.

func validateStore(b *forecast.Bundle) *phase {
	p := &phase{name: "Phase 3: Store Behavior"}

	store, err := forecast.NewStore(b)
	if err != nil {
		p.errorf("build store: %v", err)
		return p
	}

	for _, f := range b.Layers[forecast.LayerWind] {
		if len(f.Outer) < 3 {
			continue
		}
		center := geo.Centroid(f.Outer)
		hits := store.Containing(forecast.LayerWind, center, f.ValidTime, f.WindCode)
		if len(hits) == 0 {
			p.errorf("wind %dkt at %s: centroid (%.3f, %.3f) not contained by its own polygon",
				f.WindCode, f.ValidTime.Format(time.RFC3339), center[0], center[1])
		}
	}

	if len(b.Track) > 0 {
		mid := b.Track[len(b.Track)/2]
		if got := store.Containing(forecast.LayerWind, mid.Point, mid.Time, forecast.Wind34); len(got) == 0 {
			p.errorf("track midpoint not inside its own 34kt radii")
		}
	}
	return p
}

// ── Phase 4: Scoring Sanity ──
// Assesses probe points and checks score bounds and derived labels.

func validateScoring(b *forecast.Bundle) *phase {
	p := &phase{name: "Phase 4: Scoring Sanity"}

	store, err := forecast.NewStore(b)
	if err != nil {
		p.errorf("build store: %v", err)
		return p
	}
	if len(b.Timeline) == 0 {
		p.errorf("no timeline to pin the clock to; skipping scoring probes")
		return p
	}

	// Pin the clock to the first advisory so hours-until is reproducible.
	query.SetClock(clockwork.NewFakeClockAt(b.Timeline[0]))
	defer query.SetClock(nil)

	logger := observability.NewLogger(quietConfig{})
	engine := query.NewEngine(nil, nil, logger, nil)
	snap := &forecast.Snapshot{Store: store, Source: "validate", IngestedAt: b.Timeline[0]}

	probes := []orb.Point{}
	for _, pos := range b.Track {
		probes = append(probes, pos.Point)
	}
	probes = append(probes, orb.Point{0, 0}) // far outside any layer

	validBuckets := map[string]bool{"danger": true, "warn": true, "watch": true, "calm": true}
	for i, pt := range probes {
		a := engine.Assess(context.Background(), snap, pt, false, risk.DefaultWeights(), nil)
		if a.Result.Score < 0 || a.Result.Score > 10 {
			p.errorf("probe %d: score %.2f out of [0, 10]", i, a.Result.Score)
		}
		if !validBuckets[a.Bucket.Class] {
			p.errorf("probe %d: unknown bucket class %q", i, a.Bucket.Class)
		}
	}

	far := engine.Assess(context.Background(), snap, orb.Point{0, 0}, false, risk.DefaultWeights(), nil)
	if far.Result.Score != 0 {
		p.errorf("point far outside all layers scored %.2f, expected 0", far.Result.Score)
	}
	return p
}

// quietConfig keeps validator log output at warnings only.
type quietConfig struct{}

func (quietConfig) GetLogLevel() string  { return "warn" }
func (quietConfig) GetLogFormat() string { return "text" }
