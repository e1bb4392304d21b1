package sequence

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/pantilt"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/hypernets/sequencer/pkg/misc"
	"go.uber.org/zap"
)

var ErrPointing = errors.New("pan-tilt did not reach the requested position")

// pointing serializes access to the head between the control goroutine
// and the power watchdog.
type pointing struct {
	mu        sync.Mutex
	pointer   Pointer
	noGo      *pantilt.NoGoZone
	tolerance float64
	attempts  int
	parkTilt  float64
}

// point moves to the absolute position of g. A target inside the no-go
// zone returns pantilt.ErrNoGoZone without moving. When every attempt
// misses, the last report is returned with ErrPointing.
func (p *pointing) point(ctx context.Context, g *geometry.Geometry) (pantilt.Result, error) {
	if p.noGo.Contains(g.TiltAbs) {
		return pantilt.Result{}, fmt.Errorf("%w: tilt %.2f", pantilt.ErrNoGoZone, g.TiltAbs)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	pan, tilt := g.PanAbs, g.TiltAbs
	var last pantilt.Result
	for attempt := 1; attempt <= p.attempts; attempt++ {
		res, err := p.pointer.MoveTo(ctx, &pan, &tilt, true)
		if errors.Is(err, pantilt.ErrNoGoZone) {
			return res, err
		}
		if err != nil {
			log.Warn("pan-tilt move failed", zap.Int("attempt", attempt), zap.Error(err))
			if ctx.Err() != nil {
				return last, ctx.Err()
			}
			continue
		}

		last = res
		if !res.Known {
			log.Warn("pan-tilt position unknown after move", zap.Int("attempt", attempt))
			continue
		}

		gotPan, gotTilt := res.Degrees()
		dPan, dTilt := misc.AngularDistance(gotPan, pan), misc.AngularDistance(gotTilt, tilt)
		if dPan <= p.tolerance && dTilt <= p.tolerance {
			return res, nil
		}

		log.Warn("pan-tilt deviates from the requested position",
			zap.Int("attempt", attempt),
			zap.Float64("pan_error", dPan),
			zap.Float64("tilt_error", dTilt))
	}

	return last, ErrPointing
}

// park sends the head to nadir, failures are logged only
func (p *pointing) park(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Info("parking pan-tilt to nadir")
	tilt := p.parkTilt
	if _, err := p.pointer.MoveTo(ctx, nil, &tilt, true); err != nil {
		log.Error("parking failed", zap.Error(err))
	}
}
