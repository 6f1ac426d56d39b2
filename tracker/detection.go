package tracker

import "gocv.io/x/gocv"

// Detection is a single sign-shaped candidate reported by the pipeline
// backend. The keys identify the three segments whose pairwise crossings
// form the triangle, the barycenter locates it in the scanned extent.
type Detection struct {
	Keys       [3]LineKey
	Barycenter Point
}

// Mode selects how far the pipeline runs before detection.
type Mode int

const (
	// ModeFull runs segmentation, edge detection and shape detection.
	ModeFull Mode = iota

	// ModeBinaryOnly stops after segmentation and morphology.
	ModeBinaryOnly

	// ModeEdgesOnly stops after edge detection.
	ModeEdgesOnly
)

// Pipeline is the detection backend the tracker drives. Binarize and Edge
// produce the mask for the given extent, Detect reports the candidates
// found on those masks in extent-local coordinates.
type Pipeline interface {
	Binarize(region gocv.Mat) (gocv.Mat, error)
	Edge(binary gocv.Mat) (gocv.Mat, error)
	Detect(edges, binary gocv.Mat) ([]Detection, PointsOfInterest, error)
	Mode() Mode
}
