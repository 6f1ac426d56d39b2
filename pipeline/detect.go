package pipeline

import (
	"image"
	"image/color"
	"math"
	"sort"

	clipper "github.com/ctessum/go.clipper"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/dreadworks/college-cv/tracker"
)

// extendTol allows crossings slightly beyond a Hough segment's endpoints,
// as fractions of the segment length. Canny plus Hough routinely clip the
// last pixels off a triangle side, so the true corner lies just outside
// the reported segment.
const extendTol = 0.5

// segment is one probabilistic Hough line in pixel coordinates.
type segment struct {
	p1, p2 image.Point
}

func (s segment) length() float64 {
	dx := float64(s.p2.X - s.p1.X)
	dy := float64(s.p2.Y - s.p1.Y)
	return math.Hypot(dx, dy)
}

// triangle is a candidate in (x, y) pixel coordinates.
type triangle [3]image.Point

// Detect finds triangle candidates in the edge mask. Hough segments become
// the line keys; their pairwise crossings are recorded as points of
// interest; segment triples whose three crossings exist and pass the size,
// coverage and overlap gates are reported with the centroid of their
// corners as barycenter.
func (p *Pipeline) Detect(edges, binary gocv.Mat) ([]tracker.Detection, tracker.PointsOfInterest, error) {

	pois := tracker.NewPointsOfInterest()
	segs := p.houghSegments(edges)

	if len(segs) == 0 {
		return nil, pois, nil
	}

	rows := edges.Rows()
	cols := edges.Cols()

	for i := 0; i < len(segs); i++ {
		for j := i + 1; j < len(segs); j++ {
			pt, ok := p.crossing(segs[i], segs[j])

			if !ok {
				continue
			}

			if pt.Row < 0 || pt.Row >= rows || pt.Col < 0 || pt.Col >= cols {
				continue
			}

			pois.Set(tracker.LineKey(i), tracker.LineKey(j), pt)
		}
	}

	var dets []tracker.Detection
	var accepted []triangle

	for i := 0; i < len(segs); i++ {
		for j := i + 1; j < len(segs); j++ {
			for k := j + 1; k < len(segs); k++ {

				keys := [3]tracker.LineKey{
					tracker.LineKey(i),
					tracker.LineKey(j),
					tracker.LineKey(k),
				}

				verts, err := pois.Vertices(keys)

				if err != nil {
					// one crossing missing, not a triangle
					continue
				}

				tri := triangle{
					image.Pt(verts[0].Col, verts[0].Row),
					image.Pt(verts[1].Col, verts[1].Row),
					image.Pt(verts[2].Col, verts[2].Row),
				}

				if tri.shortestSide() < p.cfg.MinTriangleSide {
					continue
				}

				if p.coverage(binary, tri) < p.cfg.MinCoverage {
					continue
				}

				if p.overlapsAccepted(tri, accepted) {
					continue
				}

				dets = append(dets, tracker.Detection{
					Keys:       keys,
					Barycenter: centroid(verts),
				})
				accepted = append(accepted, tri)
			}
		}
	}

	return dets, pois, nil
}

// houghSegments extracts line segments from the edge mask, longest first,
// capped to keep the triple search bounded.
func (p *Pipeline) houghSegments(edges gocv.Mat) []segment {

	lines := gocv.NewMat()
	defer lines.Close()

	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180,
		p.cfg.HoughThreshold,
		float32(p.cfg.HoughMinLength), float32(p.cfg.HoughMaxGap))

	segs := make([]segment, 0, lines.Rows())

	for r := 0; r < lines.Rows(); r++ {
		v := lines.GetVeciAt(r, 0)
		segs = append(segs, segment{
			p1: image.Pt(int(v[0]), int(v[1])),
			p2: image.Pt(int(v[2]), int(v[3])),
		})
	}

	sort.Slice(segs, func(a, b int) bool {
		return segs[a].length() > segs[b].length()
	})

	if len(segs) > p.cfg.HoughMaxSegments {
		segs = segs[:p.cfg.HoughMaxSegments]
	}

	return segs
}

// crossing solves for the intersection of the two segments' carrier lines.
// Near-parallel pairs and crossings far outside both segments are
// rejected.
func (p *Pipeline) crossing(s1, s2 segment) (tracker.Point, bool) {

	d1x := float64(s1.p2.X - s1.p1.X)
	d1y := float64(s1.p2.Y - s1.p1.Y)
	d2x := float64(s2.p2.X - s2.p1.X)
	d2y := float64(s2.p2.Y - s2.p1.Y)

	if !angleAbove(d1x, d1y, d2x, d2y, p.cfg.AngleMin) {
		return tracker.Point{}, false
	}

	// s1.p1 + t*d1 == s2.p1 + u*d2
	a := mat.NewDense(2, 2, []float64{
		d1x, -d2x,
		d1y, -d2y,
	})
	b := mat.NewVecDense(2, []float64{
		float64(s2.p1.X - s1.p1.X),
		float64(s2.p1.Y - s1.p1.Y),
	})

	var x mat.VecDense

	if err := x.SolveVec(a, b); err != nil {
		// singular system, segments are parallel
		return tracker.Point{}, false
	}

	t := x.AtVec(0)
	u := x.AtVec(1)

	if t < -extendTol || t > 1+extendTol || u < -extendTol || u > 1+extendTol {
		return tracker.Point{}, false
	}

	return tracker.Point{
		Row: int(math.Round(float64(s1.p1.Y) + t*d1y)),
		Col: int(math.Round(float64(s1.p1.X) + t*d1x)),
	}, true
}

// angleAbove reports whether the angle between two direction vectors
// exceeds minDeg.
func angleAbove(d1x, d1y, d2x, d2y, minDeg float64) bool {

	n1 := math.Hypot(d1x, d1y)
	n2 := math.Hypot(d2x, d2y)

	if n1 == 0 || n2 == 0 {
		return false
	}

	cos := math.Abs(d1x*d2x+d1y*d2y) / (n1 * n2)

	if cos > 1 {
		cos = 1
	}

	return math.Acos(cos) >= minDeg*math.Pi/180
}

func (t triangle) shortestSide() float64 {

	shortest := math.Inf(1)

	for i := 0; i < 3; i++ {
		a, b := t[i], t[(i+1)%3]
		d := math.Hypot(float64(b.X-a.X), float64(b.Y-a.Y))

		if d < shortest {
			shortest = d
		}
	}

	return shortest
}

// coverage rasterizes the candidate and measures which fraction of its
// interior the segmentation mask marks as sign-colored.
func (p *Pipeline) coverage(binary gocv.Mat, tri triangle) float64 {

	fill := gocv.NewMatWithSize(binary.Rows(), binary.Cols(), gocv.MatTypeCV8U)
	defer fill.Close()
	fill.SetTo(gocv.NewScalar(0, 0, 0, 0))

	pts := gocv.NewPointsVectorFromPoints([][]image.Point{tri[:]})
	defer pts.Close()
	gocv.FillPoly(&fill, pts, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	area := gocv.CountNonZero(fill)

	if area == 0 {
		return 0
	}

	overlap := gocv.NewMat()
	defer overlap.Close()
	gocv.BitwiseAnd(fill, binary, &overlap)

	return float64(gocv.CountNonZero(overlap)) / float64(area)
}

// overlapsAccepted checks the candidate against every accepted triangle
// with a polygon intersection. The tracker's axis-aligned test does not
// apply here since the triangles themselves are compared.
func (p *Pipeline) overlapsAccepted(tri triangle, accepted []triangle) bool {

	area := polygonArea(tri.path())

	if area == 0 {
		return true
	}

	for _, other := range accepted {

		otherArea := polygonArea(other.path())

		c := clipper.NewClipper(clipper.IoNone)
		c.AddPath(tri.path(), clipper.PtSubject, true)
		c.AddPath(other.path(), clipper.PtClip, true)

		solution, ok := c.Execute1(clipper.CtIntersection,
			clipper.PftEvenOdd, clipper.PftEvenOdd)

		if !ok {
			continue
		}

		var inter float64

		for _, path := range solution {
			inter += polygonArea(path)
		}

		if inter/math.Min(area, otherArea) > p.cfg.MaxOverlap {
			return true
		}
	}

	return false
}

func (t triangle) path() clipper.Path {

	path := make(clipper.Path, 0, 3)

	for _, pt := range t {
		path = append(path, &clipper.IntPoint{
			X: clipper.CInt(pt.X),
			Y: clipper.CInt(pt.Y),
		})
	}

	return path
}

// polygonArea is the shoelace formula over a clipper path.
func polygonArea(path clipper.Path) float64 {

	if len(path) < 3 {
		return 0
	}

	var sum float64

	for i := range path {
		j := (i + 1) % len(path)
		sum += float64(path[i].X)*float64(path[j].Y) -
			float64(path[j].X)*float64(path[i].Y)
	}

	return math.Abs(sum) / 2
}

// centroid returns the mean of the triangle corners.
func centroid(verts [3]tracker.Point) tracker.Point {
	return tracker.Point{
		Row: (verts[0].Row + verts[1].Row + verts[2].Row) / 3,
		Col: (verts[0].Col + verts[1].Col + verts[2].Col) / 3,
	}
}
