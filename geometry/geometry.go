// Package geometry implements planar point in polygon tests over lng/lat rings.
package geometry

import (
	"github.com/golang/geo/r2"
)

// Point is a coordinate in degrees.
type Point struct {
	Lng, Lat float64
}

// Ring is an implicitly closed sequence of points,
// the last point connects back to the first one.
type Ring []Point

// Polygon is an exterior ring with optional holes.
type Polygon struct {
	Exterior Ring
	Holes    []Ring

	bound   r2.Rect
	bounded bool
}

// MultiPolygon is a collection of polygons.
type MultiPolygon []Polygon

// NewPolygon returns a Polygon with its exterior bounding rectangle computed.
func NewPolygon(exterior Ring, holes ...Ring) Polygon {
	return Polygon{
		Exterior: exterior,
		Holes:    holes,
		bound:    ringBound(exterior),
		bounded:  true,
	}
}

// Bound returns the bounding rectangle of the exterior ring, X is lng, Y is lat.
func (p Polygon) Bound() r2.Rect {
	if !p.bounded {
		return ringBound(p.Exterior)
	}

	return p.bound
}

func ringBound(r Ring) r2.Rect {
	if len(r) == 0 {
		return r2.EmptyRect()
	}
	pts := make([]r2.Point, len(r))
	for i, pt := range r {
		pts[i] = r2.Point{X: pt.Lng, Y: pt.Lat}
	}

	return r2.RectFromPoints(pts...)
}

// RingContains reports whether p is inside r using the even-odd rule.
// An edge is only considered when p.Lat lies in [min(lat1, lat2), max(lat1, lat2)),
// horizontal edges never count and a vertex shared by two edges is counted once.
func RingContains(r Ring, p Point) bool {
	n := len(r)
	if n < 3 {
		return false
	}

	in := false
	j := n - 1
	for i := 0; i < n; i++ {
		a, b := r[i], r[j]
		if (a.Lat > p.Lat) != (b.Lat > p.Lat) {
			// lng of the edge at the ray's latitude
			x := a.Lng + (p.Lat-a.Lat)*(b.Lng-a.Lng)/(b.Lat-a.Lat)
			if p.Lng < x {
				in = !in
			}
		}
		j = i
	}

	return in
}

// PolygonContains reports whether p is inside the exterior ring and outside every hole.
func PolygonContains(poly Polygon, p Point) bool {
	// polygons not built with NewPolygon skip the rectangle test
	if poly.bounded && !poly.bound.ContainsPoint(r2.Point{X: p.Lng, Y: p.Lat}) {
		return false
	}

	if !RingContains(poly.Exterior, p) {
		return false
	}

	for _, h := range poly.Holes {
		if RingContains(h, p) {
			return false
		}
	}

	return true
}

// MultiPolygonContains reports whether any polygon of mp contains p.
func MultiPolygonContains(mp MultiPolygon, p Point) bool {
	for _, poly := range mp {
		if PolygonContains(poly, p) {
			return true
		}
	}

	return false
}
