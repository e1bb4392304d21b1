package sequence

import (
	"errors"
	"fmt"
	"time"

	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/protocol"
	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

const VarElapsedTime = "$elapsed_time"

// SpectraVar names the state variable holding the integration time used
// by the n-th request of the run, channel is "vnir" or "swir".
func SpectraVar(n int, channel string) string {
	return fmt.Sprintf("$spectra_file%d.it_%s", n, channel)
}

// runState is everything a run remembers between lines
type runState struct {
	start time.Time
	vars  map[string]float64

	// Last integration times reported by the instrument, reused by dark
	// requests with automatic exposure.
	lastITVNIR int
	lastITSWIR int

	iterLine int
	errors   int
}

func newRunState(start time.Time) *runState {
	return &runState{start: start, vars: map[string]float64{VarElapsedTime: 0}}
}

func (s *runState) refreshElapsed(now time.Time) {
	s.vars[VarElapsedTime] = now.Sub(s.start).Seconds()
}

// evalFlags evaluates the flags of g in order. Every evaluation replaces
// the previous outcome, the last evaluated flag decides. A flag whose
// variable is not set yet makes the condition false and the geometry is
// skipped; older tooling left the previous outcome untouched and ran it.
func (s *runState) evalFlags(flags map[string]protocol.Condition, g *geometry.Geometry) bool {
	condition := true
	for i, name := range g.Flags {
		c, ok := flags[name]
		if !ok {
			log.Warn("flag is not defined, ignored", zap.Int("index", i+1), zap.String("flag", name))
			continue
		}

		v, err := c.Eval(s.vars)
		if err != nil {
			if errors.Is(err, protocol.ErrUndefinedVariable) {
				log.Warn("flag variable not set, condition is false", zap.String("flag", name), zap.Stringer("condition", c))
			} else {
				log.Error("flag evaluation failed", zap.String("flag", name), zap.Error(err))
			}
			condition = false
			continue
		}

		log.Info("flag evaluated", zap.String("flag", name), zap.Stringer("condition", c),
			zap.Float64("value", s.vars[c.Variable]), zap.Bool("result", v))
		condition = v
	}
	return condition
}

// prepare copies the parsed request so the protocol is never modified and
// fills in the last known integration times for automatic dark captures.
func (s *runState) prepare(r *request.Request) *request.Request {
	req := *r
	if req.IsDark() {
		if req.ITVNIR == 0 && req.Radiometer.HasVNIR() && s.lastITVNIR > 0 {
			req.ITVNIR = s.lastITVNIR
		}
		if req.ITSWIR == 0 && req.Radiometer.HasSWIR() && s.lastITSWIR > 0 {
			req.ITSWIR = s.lastITSWIR
		}
	}
	return &req
}

// record stores the integration times of request n, also after a failed
// capture.
func (s *runState) record(n int, r *request.Request) {
	s.vars[SpectraVar(n, "vnir")] = float64(r.ITVNIR)
	s.vars[SpectraVar(n, "swir")] = float64(r.ITSWIR)

	if r.Action != request.ActionMeasurement {
		return
	}
	if r.Radiometer.HasVNIR() && r.ITVNIR > 0 {
		s.lastITVNIR = r.ITVNIR
	}
	if r.Radiometer.HasSWIR() && r.ITSWIR > 0 {
		s.lastITSWIR = r.ITSWIR
	}
}
