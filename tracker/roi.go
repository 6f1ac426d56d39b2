package tracker

import (
	"image"
)

// Lifespan is the health budget a region starts with. Every restricted
// scan that fails to re-confirm the region costs one point; at zero the
// region is dead and dropped from the active list.
const Lifespan = 30

// minReach is the fallback half-extent for the bounding box of a
// degenerate detection whose vertices collapse onto the barycenter.
const minReach = 4

// ROI is a tracked candidate sign region: an axis-aligned bounding box on
// the frame, the triangle approximating the sign outline and the remaining
// health. Bounds are half-open, rowStart <= rowEnd and
// colStart <= colEnd, all clamped to the frame extent.
//
// A ROI is replaced, not mutated, when a detection re-confirms it; only
// Punish mutates it in place.
type ROI struct {
	rowStart, rowEnd int
	colStart, colEnd int

	vertices [3]Point
	health   int

	frameRows, frameCols int
}

// NewROI builds a full-health region around a detected barycenter. The box
// half-extent adapts to the triangle size: twice the largest chebyshev
// distance from the barycenter to a vertex, so the region keeps a sign in
// view while it drifts between scans.
func NewROI(frameRows, frameCols int, barycenter Point, vertices [3]Point) *ROI {

	reach := minReach

	for _, v := range vertices {
		if d := abs(v.Row - barycenter.Row); d > reach {
			reach = d
		}
		if d := abs(v.Col - barycenter.Col); d > reach {
			reach = d
		}
	}

	margin := 2 * reach

	return &ROI{
		rowStart:  clamp(barycenter.Row-margin, 0, frameRows),
		rowEnd:    clamp(barycenter.Row+margin, 0, frameRows),
		colStart:  clamp(barycenter.Col-margin, 0, frameCols),
		colEnd:    clamp(barycenter.Col+margin, 0, frameCols),
		vertices:  vertices,
		health:    Lifespan,
		frameRows: frameRows,
		frameCols: frameCols,
	}
}

// Rect returns the bounding box as an image.Rectangle in (x, y) order,
// suitable for taking a Mat sub-region view.
func (r *ROI) Rect() image.Rectangle {
	return image.Rect(r.colStart, r.rowStart, r.colEnd, r.rowEnd)
}

// RowStart returns the first row of the bounding box.
func (r *ROI) RowStart() int { return r.rowStart }

// ColStart returns the first column of the bounding box.
func (r *ROI) ColStart() int { return r.colStart }

// Vertices returns the triangle corners in full-frame coordinates.
func (r *ROI) Vertices() [3]Point { return r.vertices }

// Health returns the remaining health in [0, Lifespan].
func (r *ROI) Health() int { return r.health }

// HealthRatio returns health scaled to [0, 1] for drawing.
func (r *ROI) HealthRatio() float64 {
	return float64(r.health) / float64(Lifespan)
}

// Dead reports whether the region ran out of health.
func (r *ROI) Dead() bool { return r.health == 0 }

// Punish costs the region one health point for a missed re-confirmation.
// A dead region is not punished further.
func (r *ROI) Punish() {
	if r.health > 0 {
		r.health--
	}
}

// Intersects reports whether the bounding boxes of r and o overlap. The
// test is strict on the half-open bounds: boxes that merely touch along an
// edge do not intersect. It is symmetric and used only as a conservative
// duplicate-suppression check.
func (r *ROI) Intersects(o *ROI) bool {
	return r.rowStart < o.rowEnd && o.rowStart < r.rowEnd &&
		r.colStart < o.colEnd && o.colStart < r.colEnd
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
