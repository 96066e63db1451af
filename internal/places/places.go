// Package places holds the tracked-location model: named places grouped by
// category, county centroids and boundaries, refresh-to-refresh impact
// deltas, and the area scan around a command center. It consumes the query
// engine's assessments; it never computes risk itself.
package places

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
)

// Category groups tracked places for rollup summaries.
type Category string

const (
	CategoryHome        Category = "Home"
	CategoryWork        Category = "Work"
	CategoryFamily      Category = "Family"
	CategoryFriend      Category = "Friend"
	CategorySignificant Category = "Significant other"
	CategoryOther       Category = "Other"
)

// categoryOrder fixes rollup ordering.
var categoryOrder = []Category{
	CategoryHome, CategoryWork, CategoryFamily,
	CategoryFriend, CategorySignificant, CategoryOther,
}

// Normalize maps unknown or empty categories to Other.
func (c Category) Normalize() Category {
	for _, known := range categoryOrder {
		if c == known {
			return c
		}
	}
	return CategoryOther
}

// Place is one tracked location.
type Place struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	County   string   `json:"county,omitempty"`
	Coastal  bool     `json:"coastal,omitempty"`
}

// Point returns the place position in GeoJSON [lon, lat] order.
func (p Place) Point() orb.Point { return orb.Point{p.Lon, p.Lat} }

// County is a risk-aggregation region. Boundary is optional; when absent the
// centroid stands in for the whole county.
type County struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Lat      float64     `json:"lat"`
	Lon      float64     `json:"lon"`
	Coastal  bool        `json:"coastal,omitempty"`
	Boundary [][]float64 `json:"boundary,omitempty"`
}

// Centroid returns the county reference point in [lon, lat] order.
func (c County) Centroid() orb.Point { return orb.Point{c.Lon, c.Lat} }

// Ring converts the optional boundary into an orb.Ring. Nil when no usable
// boundary is present.
func (c County) Ring() orb.Ring {
	if len(c.Boundary) < 3 {
		return nil
	}
	ring := make(orb.Ring, 0, len(c.Boundary))
	for _, v := range c.Boundary {
		if len(v) < 2 {
			return nil
		}
		ring = append(ring, orb.Point{v[0], v[1]})
	}
	return ring
}

// Default datasets: Florida coastal cities and counties. Deployments replace
// them via config.
var (
	//go:embed cities_fl.json
	defaultCitiesJSON []byte
	//go:embed counties_fl.json
	defaultCountiesJSON []byte
)

// DefaultPlaces returns the embedded city list as tracked places.
func DefaultPlaces() []Place {
	places, err := ParsePlaces(defaultCitiesJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded cities dataset: %v", err))
	}
	return places
}

// DefaultCounties returns the embedded county list.
func DefaultCounties() []County {
	counties, err := ParseCounties(defaultCountiesJSON)
	if err != nil {
		panic(fmt.Sprintf("embedded counties dataset: %v", err))
	}
	return counties
}

// ParsePlaces decodes a place list, normalizing categories and rejecting
// entries without an ID.
func ParsePlaces(data []byte) ([]Place, error) {
	var places []Place
	if err := json.Unmarshal(data, &places); err != nil {
		return nil, fmt.Errorf("parse places: %w", err)
	}
	for i := range places {
		if places[i].ID == "" {
			return nil, fmt.Errorf("parse places: entry %d missing id", i)
		}
		places[i].Category = places[i].Category.Normalize()
	}
	return places, nil
}

// ParseCounties decodes a county list.
func ParseCounties(data []byte) ([]County, error) {
	var counties []County
	if err := json.Unmarshal(data, &counties); err != nil {
		return nil, fmt.Errorf("parse counties: %w", err)
	}
	for i, c := range counties {
		if c.ID == "" {
			return nil, fmt.Errorf("parse counties: entry %d missing id", i)
		}
	}
	return counties, nil
}
