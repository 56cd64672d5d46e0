package engine

import (
	"image"
	"math"
)

// Distance is the Euclidean distance between a and b
func Distance(a, b image.Point) float64 {
	return math.Hypot(float64(a.X-b.X), float64(a.Y-b.Y))
}

// Displaced reports whether pos has left target by more than tolerance pixels on either axis
func Displaced(target, pos image.Point, tolerance int) bool {
	d := pos.Sub(target)
	return abs(d.X) > tolerance || abs(d.Y) > tolerance
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
