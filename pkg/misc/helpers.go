package misc

import "math"

// Ptr returns a pointer to a copy of v
func Ptr[T any](v T) *T {
	return &v
}

// FoldDegrees maps any angle onto [0, 360)
func FoldDegrees(deg float64) float64 {
	f := math.Mod(deg, 360)
	if f < 0 {
		f += 360
	}
	// -1e-15 + 360 rounds to exactly 360
	if f >= 360 {
		f = 0
	}
	return f
}

// AngularDistance is the smallest difference between two angles in degrees
func AngularDistance(a, b float64) float64 {
	d := math.Abs(FoldDegrees(a) - FoldDegrees(b))
	if d > 180 {
		d = 360 - d
	}
	return d
}
