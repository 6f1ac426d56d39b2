// Package render stamps the tracker's debug overlay into the frame buffer:
// darkened source frames, health-faded triangle perimeters and bounding-box
// markers with a decay indicator disc. Drawing goes through gocv primitives
// which clip to the frame bounds.
package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/dreadworks/college-cv/tracker"
)

// DarkenDivisor is the integer factor every original frame is divided by
// before overlays are drawn, so markers stand out against the scene.
const DarkenDivisor = 3

// decayRadius is the radius of the health indicator disc at a marker's
// top-left corner.
const decayRadius = 5

// Darken scales the frame's pixel intensities down in place. Called once
// per frame index and run.
func Darken(frame *gocv.Mat) {
	frame.DivideUChar(DarkenDivisor)
}

// Triangle draws the region's triangle perimeter, fully red at full health
// and fading to black as the region decays.
func Triangle(frame *gocv.Mat, roi *tracker.ROI) {

	verts := roi.Vertices()
	clr := scaled(Red, roi.HealthRatio())

	for i := range verts {
		a := verts[i]
		b := verts[(i+1)%len(verts)]

		gocv.Line(frame,
			image.Pt(a.Col, a.Row), image.Pt(b.Col, b.Row), clr, 1)
	}
}

// Marker stamps the region's bounding-box perimeter at full marker
// intensity plus the decay indicator: a filled disc at the top-left corner
// scaled by the health ratio under an unscaled disc outline. The same
// marker is used on the color frame and, with White, as value 255 on the
// mask planes.
func Marker(frame *gocv.Mat, roi *tracker.ROI, clr color.RGBA) {

	rect := roi.Rect()

	// one pixel outside the scanned region so the marker never covers
	// pipeline output
	box := image.Rect(rect.Min.X-1, rect.Min.Y-1, rect.Max.X, rect.Max.Y)
	gocv.Rectangle(frame, box, clr, 1)

	corner := image.Pt(rect.Min.X-1, rect.Min.Y-1)
	gocv.Circle(frame, corner, decayRadius, scaled(clr, roi.HealthRatio()), -1)
	gocv.Circle(frame, corner, decayRadius, clr, 1)
}
