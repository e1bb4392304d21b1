package geometry

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hypernets/sequencer/pkg/log"
	"github.com/hypernets/sequencer/pkg/misc"
	"go.uber.org/zap"
)

var ErrMissingLocation = errors.New("sun referenced geometry needs latitude and longitude")

// Orientation is the site and mounting information needed to turn a
// requested geometry into absolute pan-tilt angles.
type Orientation struct {
	OffsetPan     float64
	OffsetTilt    float64
	ReverseTilt   bool
	AzimuthSwitch float64

	// Only required when a sun reference is resolved
	Latitude  *float64
	Longitude *float64
	Elevation float64
}

// Geometry is one pointing request of a sequence
type Geometry struct {
	Reference int
	Pan       float64
	Tilt      float64
	Flags     []string

	PanAbs  float64
	TiltAbs float64
}

// New builds a geometry from reference names, flags are kept in order
func New(panRef string, pan float64, tiltRef string, tilt float64, flags ...string) (*Geometry, error) {
	ref, err := ReferenceToInt(panRef, tiltRef)
	if err != nil {
		return nil, err
	}
	return FromCode(ref, pan, tilt, flags...), nil
}

// FromCode builds a geometry from an already packed reference code
func FromCode(reference int, pan, tilt float64, flags ...string) *Geometry {
	g := &Geometry{Reference: reference, Pan: pan, Tilt: tilt, Flags: flags}
	g.PanAbs, g.TiltAbs = pan, tilt
	return g
}

func (g *Geometry) PanReference() int {
	return g.Reference / 3
}

func (g *Geometry) TiltReference() int {
	return g.Reference % 3
}

func (g *Geometry) usesSun() bool {
	return g.PanReference() == RefSun || g.TiltReference() == RefSun
}

// ResolveAbsolute recomputes PanAbs and TiltAbs for the instant now.
// Calling it again with the same inputs yields the same result.
func (g *Geometry) ResolveAbsolute(now time.Time, o Orientation, sun SunPositioner) error {
	panAbs, tiltAbs := g.Pan, g.Tilt

	if g.usesSun() {
		if o.Latitude == nil || o.Longitude == nil {
			return ErrMissingLocation
		}

		azimuth, zenith, err := sun.SunPosition(now, *o.Latitude, *o.Longitude, o.Elevation)
		if err != nil {
			return fmt.Errorf("sun position: %w", err)
		}
		zenith = 180 - zenith

		// south of the equator the sun crosses north at noon
		compared := azimuth
		if *o.Latitude < 0 {
			compared = misc.FoldDegrees(azimuth + 180)
		}

		if g.PanReference() == RefSun {
			if compared < o.AzimuthSwitch {
				panAbs = azimuth + g.Pan
			} else {
				panAbs = azimuth - g.Pan
			}
		}

		if g.TiltReference() == RefSun {
			tiltAbs = zenith + g.Tilt
		}

		log.Debug("sun position", zap.Float64("azimuth", azimuth), zap.Float64("zenith", 180-zenith))
	}

	sign := 1.0
	if o.ReverseTilt {
		sign = -1.0
	}

	if g.PanReference() != RefAbsolute {
		panAbs -= sign * o.OffsetPan
	}
	if g.TiltReference() != RefAbsolute {
		tiltAbs -= sign * o.OffsetTilt
	}

	if o.ReverseTilt {
		tiltAbs = -tiltAbs
		panAbs += 180
	}

	g.PanAbs = misc.FoldDegrees(panAbs)
	g.TiltAbs = misc.FoldDegrees(tiltAbs)
	return nil
}

// BlockPositionName is the SS_LLL_PPPP_R_TTTT prefix used for the files of
// one request, pan and tilt are truncated to whole degrees.
func (g *Geometry) BlockPositionName(iterLine, iterScheduler int) string {
	return fmt.Sprintf("%02d_%03d_%04d_%d_%04d", iterScheduler, iterLine, int(g.Pan), g.Reference, int(g.Tilt))
}

// PositionTuple formats an angle pair the way the metadata file stores it
func PositionTuple(pan, tilt float64) string {
	return fmt.Sprintf("%.2f; %.2f", pan, tilt)
}

func (g *Geometry) String() string {
	panRef, tiltRef := IntToReference(g.Reference)
	s := fmt.Sprintf("pan = %.2f (%s), tilt = %.2f (%s)", g.Pan, panRef, g.Tilt, tiltRef)
	if len(g.Flags) > 0 {
		s += " flags = [" + strings.Join(g.Flags, ",") + "]"
	}
	return s
}
