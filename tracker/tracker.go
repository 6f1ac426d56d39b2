// Package tracker keeps a list of candidate sign regions alive across a
// video frame sequence. Expensive full-frame detection only runs on a fixed
// cadence or when no region is tracked; in between, every region is
// re-confirmed by a cheap scan restricted to its own bounding box and pays
// one health point for every miss.
package tracker

import (
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"
)

// RescanInterval is the full-scan cadence: frame indices divisible by it
// are always scanned over their whole extent.
const RescanInterval = 15

// Tracker owns the active region list and drives the scan scheduler and
// merge policy for one processing run. It is not safe for concurrent use;
// frames must be processed strictly in order because each frame consumes
// the region list produced by the previous one.
type Tracker struct {
	pipe   Pipeline
	log    *slog.Logger
	active []*ROI
}

// New returns a Tracker scanning through the given backend.
func New(pipe Pipeline, log *slog.Logger) *Tracker {
	return &Tracker{
		pipe: pipe,
		log:  log,
	}
}

// Active returns the region list carried into the next frame. It never
// contains dead regions.
func (t *Tracker) Active() []*ROI {
	return t.active
}

// Process runs frame i through the scan scheduler and merge engine. The
// binary and edges Mats are the frame's mask planes and are written in
// place: whole-frame on a full scan, sub-region only on restricted scans.
//
// The returned list is the frame's draw list. It can contain one region
// that was just punished to zero health (drawn once, fully faded); the
// active list carried into frame i+1 excludes it.
func (t *Tracker) Process(i int, original, binary, edges gocv.Mat) ([]*ROI, error) {

	rows := original.Rows()
	cols := original.Cols()

	var next []*ROI

	// full scan when the cadence hits or nothing is tracked
	if i%RescanInterval == 0 || len(t.active) == 0 {
		found, err := t.scanFull(original, binary, edges)

		if err != nil {
			return nil, fmt.Errorf("full scan of frame %d: %w", i, err)
		}

		t.log.Debug("full scan", "frame", i, "found", len(found))
		next = found
	}

	// restricted scan over the carried-in regions, never over this
	// frame's fresh detections
	for _, roi := range t.active {
		dets, pois, err := t.scanROI(original, binary, edges, roi)

		if err != nil {
			return nil, fmt.Errorf("restricted scan of frame %d: %w", i, err)
		}

		if len(dets) == 0 {
			// the expected steady-state miss: punish and carry forward
			if !roi.Dead() {
				roi.Punish()
				next = append(next, roi)
			}
			continue
		}

		// only the first detection is considered; later ones sharing the
		// sub-region are dropped
		cand, err := t.mergeDetection(rows, cols, roi, dets[0], pois)

		if err != nil {
			return nil, fmt.Errorf("merging frame %d: %w", i, err)
		}

		// first accepted wins: a replacement overlapping a region already
		// accepted this frame is silently dropped
		if !intersectsAny(cand, next) {
			next = append(next, cand)
		}
	}

	t.active = livingOf(next)

	return next, nil
}

// scanFull runs the whole chain over the complete frame and converts every
// detection into a fresh region. Candidates are only filtered against each
// other, first accepted wins.
func (t *Tracker) scanFull(original, binary, edges gocv.Mat) ([]*ROI, error) {

	mask, err := t.pipe.Binarize(original)

	if err != nil {
		return nil, fmt.Errorf("binarize: %w", err)
	}

	defer mask.Close()
	mask.CopyTo(&binary)

	if t.pipe.Mode() == ModeBinaryOnly {
		return nil, nil
	}

	edgeMask, err := t.pipe.Edge(mask)

	if err != nil {
		return nil, fmt.Errorf("edge: %w", err)
	}

	defer edgeMask.Close()
	edgeMask.CopyTo(&edges)

	if t.pipe.Mode() == ModeEdgesOnly {
		return nil, nil
	}

	dets, pois, err := t.pipe.Detect(edgeMask, mask)

	if err != nil {
		return nil, fmt.Errorf("detect: %w", err)
	}

	var found []*ROI

	for _, det := range dets {
		verts, err := pois.Vertices(det.Keys)

		if err != nil {
			return nil, err
		}

		cand := NewROI(original.Rows(), original.Cols(), det.Barycenter, verts)

		if !intersectsAny(cand, found) {
			found = append(found, cand)
		}
	}

	return found, nil
}

// scanROI runs the chain over one region's bounding box. Masks are written
// back into the frame planes inside that box only; the backend always sees
// the clean masks, debug markers are stamped in afterwards by the renderer.
func (t *Tracker) scanROI(original, binary, edges gocv.Mat, roi *ROI) ([]Detection, PointsOfInterest, error) {

	rect := roi.Rect()

	region := original.Region(rect)
	mask, err := t.pipe.Binarize(region)
	region.Close()

	if err != nil {
		return nil, PointsOfInterest{}, fmt.Errorf("binarize: %w", err)
	}

	defer mask.Close()

	binDst := binary.Region(rect)
	mask.CopyTo(&binDst)
	binDst.Close()

	if t.pipe.Mode() == ModeBinaryOnly {
		return nil, PointsOfInterest{}, nil
	}

	edgeMask, err := t.pipe.Edge(mask)

	if err != nil {
		return nil, PointsOfInterest{}, fmt.Errorf("edge: %w", err)
	}

	defer edgeMask.Close()

	edgeDst := edges.Region(rect)
	edgeMask.CopyTo(&edgeDst)
	edgeDst.Close()

	if t.pipe.Mode() == ModeEdgesOnly {
		return nil, PointsOfInterest{}, nil
	}

	dets, pois, err := t.pipe.Detect(edgeMask, mask)

	if err != nil {
		return nil, PointsOfInterest{}, fmt.Errorf("detect: %w", err)
	}

	return dets, pois, nil
}

// mergeDetection turns a restricted-scan detection back into a full-frame
// region: vertices and barycenter are local to the scanned sub-region and
// get translated by the region's origin. The replacement starts at full
// health.
func (t *Tracker) mergeDetection(rows, cols int, roi *ROI, det Detection,
	pois PointsOfInterest) (*ROI, error) {

	verts, err := pois.Vertices(det.Keys)

	if err != nil {
		return nil, err
	}

	offset := Point{Row: roi.RowStart(), Col: roi.ColStart()}

	for n := range verts {
		verts[n] = verts[n].Add(offset)
	}

	return NewROI(rows, cols, det.Barycenter.Add(offset), verts), nil
}

// intersectsAny reports whether cand overlaps any already accepted region.
func intersectsAny(cand *ROI, accepted []*ROI) bool {
	for _, roi := range accepted {
		if cand.Intersects(roi) {
			return true
		}
	}

	return false
}

// livingOf filters dead regions out of a frame's draw list to form the
// next frame's active list.
func livingOf(rois []*ROI) []*ROI {
	alive := make([]*ROI, 0, len(rois))

	for _, roi := range rois {
		if !roi.Dead() {
			alive = append(alive, roi)
		}
	}

	return alive
}
