// Package pipeline is the gocv vision backend behind the tracker: it
// segments red sign candidates, extracts edges and turns edge masks into
// triangle detections. Every stage is a deterministic function of its
// input region and the run configuration.
package pipeline

import (
	"fmt"
	"image"
	"log/slog"

	"gocv.io/x/gocv"

	"github.com/dreadworks/college-cv/config"
	"github.com/dreadworks/college-cv/tracker"
)

// Pipeline implements tracker.Pipeline. One instance serves a whole run;
// the run mode is fixed at construction.
type Pipeline struct {
	cfg  *config.Config
	mode tracker.Mode
	log  *slog.Logger

	// structuring element reused across all binarize calls
	kernel gocv.Mat
}

// New builds a pipeline for the given configuration and run mode.
func New(cfg *config.Config, mode tracker.Mode, log *slog.Logger) *Pipeline {
	return &Pipeline{
		cfg:  cfg,
		mode: mode,
		log:  log,
		kernel: gocv.GetStructuringElement(gocv.MorphRect,
			image.Pt(cfg.MorphKernel, cfg.MorphKernel)),
	}
}

// Mode reports the run mode selected at startup.
func (p *Pipeline) Mode() tracker.Mode {
	return p.mode
}

// Close releases the pipeline's cached Mats.
func (p *Pipeline) Close() {
	p.kernel.Close()
}

// Binarize segments the red portions of a BGR region into a CV_8U mask.
// Red straddles the hue wrap-around, so two windows are thresholded and
// combined before morphological open/close removes speckle and fills the
// sign interior.
func (p *Pipeline) Binarize(region gocv.Mat) (gocv.Mat, error) {

	if region.Empty() {
		return gocv.Mat{}, fmt.Errorf("binarize: empty region")
	}

	if region.Channels() != 3 {
		return gocv.Mat{}, fmt.Errorf(
			"binarize: expected 3 channels, got %d", region.Channels())
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(region, &hsv, gocv.ColorBGRToHSV)

	low := gocv.NewMat()
	defer low.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(0, p.cfg.SatMin, p.cfg.ValMin, 0),
		gocv.NewScalar(p.cfg.HueLow, 255, 255, 0),
		&low)

	high := gocv.NewMat()
	defer high.Close()
	gocv.InRangeWithScalar(hsv,
		gocv.NewScalar(p.cfg.HueHigh, p.cfg.SatMin, p.cfg.ValMin, 0),
		gocv.NewScalar(180, 255, 255, 0),
		&high)

	mask := gocv.NewMat()
	gocv.BitwiseOr(low, high, &mask)

	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, p.kernel)
	gocv.MorphologyEx(mask, &mask, gocv.MorphClose, p.kernel)

	return mask, nil
}

// Edge computes a Canny edge mask from a segmentation mask.
func (p *Pipeline) Edge(binary gocv.Mat) (gocv.Mat, error) {

	if binary.Empty() {
		return gocv.Mat{}, fmt.Errorf("edge: empty mask")
	}

	edges := gocv.NewMat()
	gocv.Canny(binary, &edges, p.cfg.CannyLow, p.cfg.CannyHigh)

	return edges, nil
}
