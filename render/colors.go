package render

import "image/color"

var (
	// Red is the triangle perimeter color at full health.
	Red = color.RGBA{R: 255, A: 255}

	// White is the box marker color. Stamped onto the single-channel mask
	// planes it degrades to the marker value 255.
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// scaled fades a color towards black by the given ratio in [0, 1].
func scaled(clr color.RGBA, ratio float64) color.RGBA {

	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}

	return color.RGBA{
		R: uint8(float64(clr.R) * ratio),
		G: uint8(float64(clr.G) * ratio),
		B: uint8(float64(clr.B) * ratio),
		A: clr.A,
	}
}
