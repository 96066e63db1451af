// Package geo provides the planar geometry primitives used by the forecast
// store and the point query engine: even-odd containment tests, bounding
// boxes, deterministic grid sampling, and great-circle distance.
//
// Coordinates follow GeoJSON order: [longitude, latitude] in WGS-84 degrees.
// Forecast polygons from upstream are small enough (storm scale) that planar
// containment is adequate; distances use the haversine formula.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/umahmood/haversine"
)

// epsilon keeps the crossing-test denominator away from zero when an edge is
// horizontal at exactly the query latitude.
const epsilon = 1e-12

// PointInRing reports whether p lies inside ring using the even-odd
// crossing-number test. Rings with fewer than three vertices are degenerate
// and always return false. Points exactly on an edge are
// implementation-defined but never panic.
func PointInRing(p orb.Point, ring orb.Ring) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]

		if (yi > p[1]) == (yj > p[1]) {
			continue
		}
		den := yj - yi
		if den >= 0 {
			den += epsilon
		} else {
			den -= epsilon
		}
		if p[0] < (xj-xi)*(p[1]-yi)/den+xi {
			inside = !inside
		}
	}
	return inside
}

// OuterRing extracts the containment ring from a GeoJSON-style geometry:
// the outer ring of a Polygon, or the outer ring of the first polygon of a
// MultiPolygon. Other geometry types and empty polygons yield nil.
func OuterRing(g orb.Geometry) orb.Ring {
	switch geom := g.(type) {
	case orb.Ring:
		return geom
	case orb.Polygon:
		if len(geom) > 0 {
			return geom[0]
		}
	case orb.MultiPolygon:
		if len(geom) > 0 && len(geom[0]) > 0 {
			return geom[0][0]
		}
	}
	return nil
}

// BoundingBox returns the axis-aligned bound of a ring. A nil or empty ring
// yields the zero bound.
func BoundingBox(ring orb.Ring) orb.Bound {
	if len(ring) == 0 {
		return orb.Bound{}
	}
	b := orb.Bound{Min: ring[0], Max: ring[0]}
	for _, v := range ring[1:] {
		if v[0] < b.Min[0] {
			b.Min[0] = v[0]
		}
		if v[1] < b.Min[1] {
			b.Min[1] = v[1]
		}
		if v[0] > b.Max[0] {
			b.Max[0] = v[0]
		}
		if v[1] > b.Max[1] {
			b.Max[1] = v[1]
		}
	}
	return b
}

// SampleGrid produces a regular lattice of points covering bound with the
// given spacing in degrees. The sequence is deterministic: rows south to
// north, columns west to east. A non-positive spacing yields nil.
func SampleGrid(bound orb.Bound, spacingDeg float64) []orb.Point {
	if spacingDeg <= 0 {
		return nil
	}
	var pts []orb.Point
	for lat := bound.Min[1]; lat <= bound.Max[1]; lat += spacingDeg {
		for lon := bound.Min[0]; lon <= bound.Max[0]; lon += spacingDeg {
			pts = append(pts, orb.Point{lon, lat})
		}
	}
	return pts
}

// SamplePoints returns up to max grid points that fall inside ring. When the
// grid misses the interior entirely (small or sliver rings), it degrades to
// the single vertex-mean centroid so callers always get at least one point.
func SamplePoints(ring orb.Ring, spacingDeg float64, max int) []orb.Point {
	if len(ring) < 3 {
		return nil
	}
	var inside []orb.Point
	for _, p := range SampleGrid(BoundingBox(ring), spacingDeg) {
		if !PointInRing(p, ring) {
			continue
		}
		inside = append(inside, p)
		if max > 0 && len(inside) >= max {
			break
		}
	}
	if len(inside) == 0 {
		return []orb.Point{Centroid(ring)}
	}
	return inside
}

// Centroid returns the vertex mean of a ring, ignoring a duplicated closing
// vertex. Adequate at county scale; not an area-weighted centroid.
func Centroid(ring orb.Ring) orb.Point {
	n := len(ring)
	if n == 0 {
		return orb.Point{}
	}
	if n > 1 && ring[0] == ring[n-1] {
		ring = ring[:n-1]
		n--
	}
	var sx, sy float64
	for _, v := range ring {
		sx += v[0]
		sy += v[1]
	}
	return orb.Point{sx / float64(n), sy / float64(n)}
}

// earthRadiusKm matches the haversine package's sphere radius so Destination
// and DistanceKm agree.
const earthRadiusKm = 6371.0

// Destination returns the point reached by travelling distanceKm from start
// along the given initial bearing (degrees clockwise from north) on a
// spherical earth.
func Destination(start orb.Point, distanceKm, bearingDeg float64) orb.Point {
	lat1 := start[1] * math.Pi / 180
	lon1 := start[0] * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	d := distanceKm / earthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lon2 := lon1 + math.Atan2(
		math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)
	return orb.Point{lon2 * 180 / math.Pi, lat2 * 180 / math.Pi}
}

// DistanceKm returns the great-circle distance between two [lon, lat] points
// in kilometers.
func DistanceKm(a, b orb.Point) float64 {
	_, km := haversine.Distance(
		haversine.Coord{Lat: a[1], Lon: a[0]},
		haversine.Coord{Lat: b[1], Lon: b[0]},
	)
	return km
}
