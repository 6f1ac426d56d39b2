package tracker

import (
	"fmt"
)

// Point is a pixel position in (row, col) order. Frame buffers are indexed
// row first, so all tracker geometry keeps that order and conversion to
// image.Point (x, y) happens only at the drawing boundary.
type Point struct {
	Row int
	Col int
}

// Add returns the point translated by the given offset.
func (p Point) Add(o Point) Point {
	return Point{Row: p.Row + o.Row, Col: p.Col + o.Col}
}

// LineKey identifies one line segment reported by the detection backend.
// Triangle candidates reference three of them; the vertex shared by two
// segments is looked up in the PointsOfInterest table under their pair.
type LineKey int

// pairKey is the normalised (low, high) form of two line keys so lookups
// are order independent.
type pairKey struct {
	a, b LineKey
}

func newPairKey(a, b LineKey) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{a: a, b: b}
}

// PointsOfInterest maps pairs of line keys to the concrete pixel position
// where the two segments cross. The backend fills one table per detect
// call and guarantees all three pairs exist for any barycenter it reports.
type PointsOfInterest struct {
	points map[pairKey]Point
}

// NewPointsOfInterest returns an empty points of interest table.
func NewPointsOfInterest() PointsOfInterest {
	return PointsOfInterest{points: make(map[pairKey]Point)}
}

// Set records the crossing point of the segments a and b.
func (poi PointsOfInterest) Set(a, b LineKey, pt Point) {
	poi.points[newPairKey(a, b)] = pt
}

// At returns the crossing point of the segments a and b.
func (poi PointsOfInterest) At(a, b LineKey) (Point, bool) {
	pt, ok := poi.points[newPairKey(a, b)]
	return pt, ok
}

// Len returns the number of recorded crossing points.
func (poi PointsOfInterest) Len() int {
	return len(poi.points)
}

// Vertices resolves the three triangle corners referenced by a key triple
// (k0, k1, k2) as the pairwise crossings (k0,k1), (k0,k2), (k1,k2). The
// backend contract guarantees all three pairs are present for any reported
// barycenter; a missing pair is a contract violation and returns an error.
func (poi PointsOfInterest) Vertices(keys [3]LineKey) ([3]Point, error) {
	pairs := [3][2]LineKey{
		{keys[0], keys[1]},
		{keys[0], keys[2]},
		{keys[1], keys[2]},
	}

	var verts [3]Point

	for i, pair := range pairs {
		pt, ok := poi.At(pair[0], pair[1])

		if !ok {
			return verts, fmt.Errorf(
				"no point of interest for key pair (%d, %d)", pair[0], pair[1])
		}

		verts[i] = pt
	}

	return verts, nil
}
