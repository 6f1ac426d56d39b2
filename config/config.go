// Package config carries the parse-once settings for a processing run.
// There is no ambient global state: the value is constructed at startup
// and handed to the pipeline.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// section is the one INI section a configuration file must provide.
const section = "options"

// Config holds every tunable of the vision pipeline. Values not present
// in the configuration file keep their defaults.
type Config struct {
	// Segmentation: red hue window (OpenCV hue range 0..180 wraps at 0,
	// so the window is hue <= HueLow or hue >= HueHigh) and the
	// saturation/value floors below which pixels are ignored.
	HueLow  float64
	HueHigh float64
	SatMin  float64
	ValMin  float64

	// MorphKernel is the side length of the rectangular structuring
	// element used to open and close the segmentation mask.
	MorphKernel int

	// Canny hysteresis thresholds for the edge stage.
	CannyLow  float32
	CannyHigh float32

	// Probabilistic Hough transform parameters for the detect stage.
	HoughThreshold   int
	HoughMinLength   float64
	HoughMaxGap      float64
	HoughMaxSegments int

	// AngleMin is the minimum angle in degrees between two segments for
	// their crossing to count as a point of interest.
	AngleMin float64

	// MinTriangleSide rejects candidate triangles with any side shorter
	// than this many pixels.
	MinTriangleSide float64

	// MinCoverage is the fraction of a candidate triangle's interior
	// that must be segmented for the candidate to survive.
	MinCoverage float64

	// MaxOverlap is the polygon overlap ratio above which a candidate is
	// dropped as a duplicate of an already accepted one.
	MaxOverlap float64
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		HueLow:           10,
		HueHigh:          160,
		SatMin:           80,
		ValMin:           60,
		MorphKernel:      5,
		CannyLow:         50,
		CannyHigh:        150,
		HoughThreshold:   20,
		HoughMinLength:   10,
		HoughMaxGap:      5,
		HoughMaxSegments: 24,
		AngleMin:         25,
		MinTriangleSide:  10,
		MinCoverage:      0.35,
		MaxOverlap:       0.5,
	}
}

// Load reads a configuration file and overlays it onto the defaults. A
// file without the [options] section is a fatal precondition violation.
func Load(path string) (*Config, error) {

	file, err := ini.Load(path)

	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if _, err := file.GetSection(section); err != nil {
		return nil, fmt.Errorf("config %s: missing [%s] section", path, section)
	}

	sec := file.Section(section)
	c := Default()

	c.HueLow = sec.Key("hue_low").MustFloat64(c.HueLow)
	c.HueHigh = sec.Key("hue_high").MustFloat64(c.HueHigh)
	c.SatMin = sec.Key("sat_min").MustFloat64(c.SatMin)
	c.ValMin = sec.Key("val_min").MustFloat64(c.ValMin)
	c.MorphKernel = sec.Key("morph_kernel").MustInt(c.MorphKernel)
	c.CannyLow = float32(sec.Key("canny_low").MustFloat64(float64(c.CannyLow)))
	c.CannyHigh = float32(sec.Key("canny_high").MustFloat64(float64(c.CannyHigh)))
	c.HoughThreshold = sec.Key("hough_threshold").MustInt(c.HoughThreshold)
	c.HoughMinLength = sec.Key("hough_min_length").MustFloat64(c.HoughMinLength)
	c.HoughMaxGap = sec.Key("hough_max_gap").MustFloat64(c.HoughMaxGap)
	c.HoughMaxSegments = sec.Key("hough_max_segments").MustInt(c.HoughMaxSegments)
	c.AngleMin = sec.Key("angle_min").MustFloat64(c.AngleMin)
	c.MinTriangleSide = sec.Key("min_triangle_side").MustFloat64(c.MinTriangleSide)
	c.MinCoverage = sec.Key("min_coverage").MustFloat64(c.MinCoverage)
	c.MaxOverlap = sec.Key("max_overlap").MustFloat64(c.MaxOverlap)

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return c, nil
}

// Validate clamps values into safe ranges and rejects combinations the
// pipeline cannot run with.
func (c *Config) Validate() error {

	if c.HueLow < 0 || c.HueLow > 180 || c.HueHigh < 0 || c.HueHigh > 180 {
		return fmt.Errorf("hue window must lie in [0, 180], got %.0f/%.0f",
			c.HueLow, c.HueHigh)
	}

	if c.HueLow >= c.HueHigh {
		return fmt.Errorf("hue_low (%.0f) must be below hue_high (%.0f)",
			c.HueLow, c.HueHigh)
	}

	if c.MorphKernel < 3 {
		c.MorphKernel = 3
	}

	// structuring elements need an anchor pixel
	if c.MorphKernel%2 == 0 {
		c.MorphKernel++
	}

	if c.CannyLow > c.CannyHigh {
		c.CannyLow, c.CannyHigh = c.CannyHigh, c.CannyLow
	}

	if c.HoughThreshold < 1 {
		c.HoughThreshold = 1
	}

	if c.HoughMaxSegments < 3 {
		c.HoughMaxSegments = 3
	}

	if c.MinCoverage < 0 {
		c.MinCoverage = 0
	}
	if c.MinCoverage > 1 {
		c.MinCoverage = 1
	}

	if c.MaxOverlap < 0 {
		c.MaxOverlap = 0
	}
	if c.MaxOverlap > 1 {
		c.MaxOverlap = 1
	}

	return nil
}
