package geometry

import (
	"time"

	"github.com/hypernets/sequencer/pkg/misc"
	"github.com/soniakeys/meeus/v3/coord"
	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
	"github.com/soniakeys/unit"
)

// SunPositioner returns the sun azimuth (degrees from north, clockwise)
// and zenith angle (degrees) seen from the given site at time t.
type SunPositioner interface {
	SunPosition(t time.Time, latitude, longitude, elevation float64) (azimuth float64, zenith float64, err error)
}

// MeeusSun computes the apparent solar position with the algorithms of
// Astronomical Algorithms. Refraction and parallax are ignored, the error is
// well below the pan-tilt resolution.
type MeeusSun struct{}

func (MeeusSun) SunPosition(t time.Time, latitude, longitude, _ float64) (float64, float64, error) {
	jd := julian.TimeToJD(t.UTC())

	// the solar series want dynamical time, the difference is about a minute
	ra, dec := solar.ApparentEquatorial(jd)
	st := sidereal.Apparent(jd)

	// meeus counts longitude positive west
	az, alt := coord.EqToHz(ra, dec, unit.AngleFromDeg(latitude), unit.AngleFromDeg(-longitude), st)

	// meeus measures azimuth westward from south
	azimuth := misc.FoldDegrees(az.Deg() + 180)
	zenith := 90 - alt.Deg()
	return azimuth, zenith, nil
}

// FixedSun always reports the same position, for dry runs and tests
type FixedSun struct {
	Azimuth float64
	Zenith  float64
}

func (f FixedSun) SunPosition(time.Time, float64, float64, float64) (float64, float64, error) {
	return f.Azimuth, f.Zenith, nil
}
