package forecast

import (
	"fmt"
	"time"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/hurricane-risk-service/internal/geo"
)

// minExtent pads degenerate bounding boxes so every feature gets a valid
// R-tree rectangle.
const minExtent = 1e-9

// Store is the immutable normalized forecast for a single storm. All reads
// are safe for concurrent use; there are no writes after NewStore returns.
type Store struct {
	stormID  string
	name     string
	timeline []time.Time
	layers   map[Layer][]Feature
	track    []TrackPosition
	index    map[Layer]*rtreego.Rtree
}

type indexEntry struct {
	rect    rtreego.Rect
	feature *Feature
}

func (e *indexEntry) Bounds() rtreego.Rect { return e.rect }

// NewStore normalizes a bundle into an immutable store. The timeline is
// sorted and deduplicated, outer rings are cached, and per-layer R-trees are
// built so point queries prune by bounding box before running containment.
func NewStore(b *Bundle) (*Store, error) {
	if b == nil {
		return nil, fmt.Errorf("new store: nil bundle")
	}
	if b.StormID == "" {
		return nil, fmt.Errorf("new store: bundle has no storm id")
	}

	s := &Store{
		stormID:  b.StormID,
		name:     b.Name,
		timeline: BuildTimeline(b.Timeline),
		layers:   make(map[Layer][]Feature, len(b.Layers)),
		track:    append([]TrackPosition(nil), b.Track...),
		index:    make(map[Layer]*rtreego.Rtree),
	}

	for layer, feats := range b.Layers {
		kept := make([]Feature, 0, len(feats))
		for _, f := range feats {
			if f.Outer == nil {
				f.Outer = geo.OuterRing(f.Geometry)
			}
			kept = append(kept, f)
		}
		s.layers[layer] = kept

		tree := rtreego.NewTree(2, 25, 50)
		for i := range kept {
			f := &kept[i]
			if len(f.Outer) < 3 {
				continue // degenerate ring, unqueryable but retained
			}
			rect, err := boundsRect(geo.BoundingBox(f.Outer))
			if err != nil {
				continue
			}
			tree.Insert(&indexEntry{rect: rect, feature: f})
		}
		s.index[layer] = tree
	}

	return s, nil
}

// StormID returns the upstream storm identifier, e.g. "AL092024".
func (s *Store) StormID() string { return s.stormID }

// Name returns the storm's given name.
func (s *Store) Name() string { return s.name }

// Timeline returns the ordered, deduplicated advisory valid-times.
func (s *Store) Timeline() []time.Time {
	return append([]time.Time(nil), s.timeline...)
}

// ActiveTime returns the valid-time at index i, or false when i is out of
// bounds.
func (s *Store) ActiveTime(i int) (time.Time, bool) {
	if i < 0 || i >= len(s.timeline) {
		return time.Time{}, false
	}
	return s.timeline[i], true
}

// Track returns the forecast track positions in time order.
func (s *Store) Track() []TrackPosition {
	return append([]TrackPosition(nil), s.track...)
}

// Polygons returns the features of a layer filtered by valid-time and
// windcode. A zero time or zero windcode means "any". The result is never
// nil.
func (s *Store) Polygons(layer Layer, at time.Time, windcode int) []Feature {
	out := []Feature{}
	for _, f := range s.layers[layer] {
		if matches(&f, at, windcode) {
			out = append(out, f)
		}
	}
	return out
}

// Containing returns the features of a layer whose outer ring contains pt,
// filtered by valid-time and windcode. The R-tree prunes candidates by
// bounding box first.
func (s *Store) Containing(layer Layer, pt orb.Point, at time.Time, windcode int) []Feature {
	tree := s.index[layer]
	if tree == nil {
		return []Feature{}
	}
	rect, err := pointRect(pt)
	if err != nil {
		return []Feature{}
	}

	out := []Feature{}
	for _, spatial := range tree.SearchIntersect(rect) {
		f := spatial.(*indexEntry).feature
		if !matches(f, at, windcode) {
			continue
		}
		if geo.PointInRing(pt, f.Outer) {
			out = append(out, *f)
		}
	}
	return out
}

func matches(f *Feature, at time.Time, windcode int) bool {
	if !at.IsZero() && !f.ValidTime.Equal(at) {
		return false
	}
	if windcode != 0 && f.WindCode != windcode {
		return false
	}
	return true
}

func boundsRect(b orb.Bound) (rtreego.Rect, error) {
	w := b.Max[0] - b.Min[0]
	h := b.Max[1] - b.Min[1]
	if w < minExtent {
		w = minExtent
	}
	if h < minExtent {
		h = minExtent
	}
	return rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
}

func pointRect(pt orb.Point) (rtreego.Rect, error) {
	return rtreego.NewRect(rtreego.Point{pt[0], pt[1]}, []float64{minExtent, minExtent})
}
