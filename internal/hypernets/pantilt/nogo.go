package pantilt

import "github.com/hypernets/sequencer/pkg/misc"

// NoGoZone is a tilt range the head must never be sent into. A range
// with TiltMin > TiltMax wraps through 0.
type NoGoZone struct {
	TiltMin float64
	TiltMax float64
}

func (z *NoGoZone) Contains(tilt float64) bool {
	if z == nil {
		return false
	}

	t := misc.FoldDegrees(tilt)
	lo, hi := misc.FoldDegrees(z.TiltMin), misc.FoldDegrees(z.TiltMax)
	if lo <= hi {
		return t >= lo && t <= hi
	}
	return t >= lo || t <= hi
}
