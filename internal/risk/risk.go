// Package risk turns point-query facts into a bounded composite risk score,
// a discrete urgency bucket, and a data-completeness confidence level.
//
// The score is an additive point system. Within each category (warning tier,
// arrival tier, duration tier) exactly one row fires, highest tier first,
// and each row is multiplied by its named weight. The total is clamped to
// 10; no lower clamp is needed because every term is non-negative.
//
//	Storm Surge Warning    4  × warnings × surge
//	Storm Surge Watch      2  × warnings × surge
//	Hurricane Warning      3  × warnings
//	Hurricane Watch        2  × warnings
//	Tropical Storm Warning 2  × warnings
//	Tropical Storm Watch   1  × warnings
//	hoursUntil < 24        3  × arrival
//	hoursUntil < 48        2  × arrival
//	hoursUntil < 72        1  × arrival
//	duration ≥ 24h         2  × duration
//	duration ≥ 12h         1  × duration
//	64kt wind presence     2  × intensity
//	else 50kt presence     1  × intensity
//	coastal flag           1  × coastal
package risk

import "strings"

// Weights are the six user-adjustable non-negative multipliers applied to
// category sub-scores.
type Weights struct {
	Warnings  float64 `json:"warnings"`
	Surge     float64 `json:"surge"`
	Arrival   float64 `json:"arrival"`
	Duration  float64 `json:"duration"`
	Intensity float64 `json:"intensity"`
	Coastal   float64 `json:"coastal"`
}

// DefaultWeights returns the stock weight vector: 1.0 everywhere except
// surge, which carries 1.5.
func DefaultWeights() Weights {
	return Weights{Warnings: 1, Surge: 1.5, Arrival: 1, Duration: 1, Intensity: 1, Coastal: 1}
}

// Input is the fact set a score is derived from. Nil pointers mean the fact
// is absent (no data), which is distinct from zero.
type Input struct {
	WarningType   string `json:"warning_type,omitempty"`
	HoursUntil    *int   `json:"hours_until,omitempty"`
	DurationHours *int   `json:"duration_hours,omitempty"`
	Has64         bool   `json:"has_64kt"`
	Has50         bool   `json:"has_50kt"`
	Coastal       bool   `json:"coastal"`
}

// Result is a derived risk score plus the evidence it was computed from.
// Results are recomputed on demand and never persisted.
type Result struct {
	Score    float64 `json:"score"`
	Evidence Input   `json:"evidence"`
}

// maxScore caps the composite so the UI scale stays 0–10.
const maxScore = 10

// Score combines the facts into the weighted composite.
func Score(in Input, w Weights) Result {
	var score float64

	wt := strings.ToUpper(in.WarningType)
	switch {
	case strings.Contains(wt, "STORM SURGE WARNING"):
		score += 4 * w.Warnings * w.Surge
	case strings.Contains(wt, "STORM SURGE WATCH"):
		score += 2 * w.Warnings * w.Surge
	case strings.Contains(wt, "HURRICANE WARNING"):
		score += 3 * w.Warnings
	case strings.Contains(wt, "HURRICANE WATCH"):
		score += 2 * w.Warnings
	case strings.Contains(wt, "TROPICAL STORM WARNING"):
		score += 2 * w.Warnings
	case strings.Contains(wt, "TROPICAL STORM WATCH"):
		score += 1 * w.Warnings
	}

	if in.HoursUntil != nil {
		switch hu := *in.HoursUntil; {
		case hu < 24:
			score += 3 * w.Arrival
		case hu < 48:
			score += 2 * w.Arrival
		case hu < 72:
			score += 1 * w.Arrival
		}
	}

	if in.DurationHours != nil {
		switch d := *in.DurationHours; {
		case d >= 24:
			score += 2 * w.Duration
		case d >= 12:
			score += 1 * w.Duration
		}
	}

	if in.Has64 {
		score += 2 * w.Intensity
	} else if in.Has50 {
		score += 1 * w.Intensity
	}

	if in.Coastal {
		score += 1 * w.Coastal
	}

	if score > maxScore {
		score = maxScore
	}
	return Result{Score: score, Evidence: in}
}

// BucketInfo is a discrete urgency classification with its action text.
type BucketInfo struct {
	Class string `json:"class"`
	Text  string `json:"text"`
}

// Bucket maps a score to its urgency bucket. Boundaries are inclusive-lower:
// exactly 7 lands in the top bucket.
func Bucket(score float64) BucketInfo {
	switch {
	case score >= 7:
		return BucketInfo{Class: "danger", Text: "Evacuate if ordered"}
	case score >= 4:
		return BucketInfo{Class: "warn", Text: "Consider leaving (vulnerable/coastal)"}
	case score >= 2:
		return BucketInfo{Class: "watch", Text: "Shelter & prepare"}
	default:
		return BucketInfo{Class: "calm", Text: "Monitor"}
	}
}

// ConfidenceLevel indicates how complete the underlying data is. It says
// nothing about forecast quality.
type ConfidenceLevel struct {
	Label string `json:"label"`
	Class string `json:"class"`
}

// Confidence counts how many of the three derivable facts are present:
// three present is High, two Medium, one or none Low.
func Confidence(hasArrival, hasDuration, hasWarning bool) ConfidenceLevel {
	count := 0
	for _, ok := range []bool{hasArrival, hasDuration, hasWarning} {
		if ok {
			count++
		}
	}
	switch {
	case count >= 3:
		return ConfidenceLevel{Label: "High", Class: "high"}
	case count == 2:
		return ConfidenceLevel{Label: "Medium", Class: "med"}
	default:
		return ConfidenceLevel{Label: "Low", Class: "low"}
	}
}

// Category is a coarse arrival-urgency label for list displays.
type Category struct {
	Text  string `json:"text"`
	Class string `json:"class"`
}

// ArrivalCategory maps hours-until-arrival onto an urgency label. A nil
// value (no arrival data) reads as low urgency.
func ArrivalCategory(hoursUntil *int) Category {
	if hoursUntil == nil {
		return Category{Text: "Low", Class: "calm"}
	}
	switch hu := *hoursUntil; {
	case hu < 24:
		return Category{Text: "Act now", Class: "danger"}
	case hu < 48:
		return Category{Text: "Prepare", Class: "warn"}
	case hu < 72:
		return Category{Text: "Monitor", Class: "watch"}
	default:
		return Category{Text: "Low", Class: "calm"}
	}
}
