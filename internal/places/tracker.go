package places

import (
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/hurricane-risk-service/internal/query"
)

// Thresholds for refresh-to-refresh deltas, in hours. Smaller shifts are
// forecast jitter, not news.
const (
	etaShiftHours      = 6
	durationShiftHours = 6
)

// ChangeKind classifies an impact delta.
type ChangeKind string

const (
	ChangeETAEarlier   ChangeKind = "eta_earlier"
	ChangeETALater     ChangeKind = "eta_later"
	ChangeLongerWinds  ChangeKind = "longer_winds"
	ChangeShorterWinds ChangeKind = "shorter_winds"
	ChangeAdvisory     ChangeKind = "advisory_changed"
)

// Impact is one place's current assessment.
type Impact struct {
	Place      Place            `json:"place"`
	Assessment query.Assessment `json:"assessment"`
}

// Alert is a material change in a place's outlook between two refreshes.
// These feed the alert publisher.
type Alert struct {
	StormID    string     `json:"storm_id"`
	PlaceID    string     `json:"place_id"`
	PlaceName  string     `json:"place_name"`
	Kind       ChangeKind `json:"kind"`
	Detail     string     `json:"detail"`
	ObservedAt time.Time  `json:"observed_at"`
}

// previous is the per-place state compared on the next refresh.
type previous struct {
	hoursUntil    int
	durationHours int
	warningType   string
}

// Tracker diffs consecutive refreshes of the tracked-place assessments. The
// first observation of a place establishes a baseline and raises nothing.
type Tracker struct {
	mu   sync.Mutex
	prev map[string]previous
}

func NewTracker() *Tracker {
	return &Tracker{prev: make(map[string]previous)}
}

// Observe records the latest impacts and returns alerts for material deltas:
// ETA shift of 6h or more, wind-duration shift of 6h or more, or any change
// of the active advisory product. Missing facts compare as zero, matching
// how the outlook reads when data drops out.
func (t *Tracker) Observe(stormID string, impacts []Impact, now time.Time) []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	var alerts []Alert
	for _, imp := range impacts {
		cur := previous{
			hoursUntil:    intOrZero(imp.Assessment.Facts.Arrival.HoursUntil),
			durationHours: intOrZero(imp.Assessment.Facts.Duration.Hours),
			warningType:   warningTypeOf(imp.Assessment),
		}
		old, seen := t.prev[imp.Place.ID]
		t.prev[imp.Place.ID] = cur
		if !seen {
			continue
		}

		if d := cur.hoursUntil - old.hoursUntil; abs(d) >= etaShiftHours {
			kind := ChangeETALater
			if d < 0 {
				kind = ChangeETAEarlier
			}
			alerts = append(alerts, t.alert(stormID, imp, kind,
				fmt.Sprintf("arrival shifted %dh", abs(d)), now))
		}
		if d := cur.durationHours - old.durationHours; abs(d) >= durationShiftHours {
			kind := ChangeLongerWinds
			if d < 0 {
				kind = ChangeShorterWinds
			}
			alerts = append(alerts, t.alert(stormID, imp, kind,
				fmt.Sprintf("wind duration shifted %dh", abs(d)), now))
		}
		if cur.warningType != old.warningType {
			alerts = append(alerts, t.alert(stormID, imp, ChangeAdvisory,
				fmt.Sprintf("advisory %q -> %q", old.warningType, cur.warningType), now))
		}
	}
	return alerts
}

// Reset clears baselines, e.g. when the tracked storm changes.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prev = make(map[string]previous)
}

func (t *Tracker) alert(stormID string, imp Impact, kind ChangeKind, detail string, now time.Time) Alert {
	return Alert{
		StormID:    stormID,
		PlaceID:    imp.Place.ID,
		PlaceName:  imp.Place.Name,
		Kind:       kind,
		Detail:     detail,
		ObservedAt: now,
	}
}

func warningTypeOf(a query.Assessment) string {
	if a.Facts.Warning == nil {
		return ""
	}
	return a.Facts.Warning.Type
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
