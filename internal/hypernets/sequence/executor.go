package sequence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/instrument"
	"github.com/hypernets/sequencer/internal/hypernets/metrics"
	"github.com/hypernets/sequencer/internal/hypernets/pantilt"
	"github.com/hypernets/sequencer/internal/hypernets/protocol"
	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/internal/hypernets/yocto"
	"github.com/hypernets/sequencer/pkg/constants"
	"github.com/hypernets/sequencer/pkg/file"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/hypernets/sequencer/pkg/misc"
	"go.uber.org/zap"
)

// Outcome summarizes a finished or aborted run
type Outcome struct {
	Reason AbortReason
	// Directory is SEQ<start> after completion, the CUR<start> working
	// directory otherwise. Empty when the run stopped before creating it.
	Directory string
	Requests  int
	Errors    int
	Started   time.Time
	Ended     time.Time
}

// Runner executes one sequence file
type Runner struct {
	opts    Options
	c       Collaborators
	now     func() time.Time
	metrics *metrics.Run

	pointing *pointing
	watchdog *watchdog
}

func NewRunner(opts Options, c Collaborators) *Runner {
	opts.setDefaults()

	if c.Sun == nil {
		c.Sun = geometry.MeeusSun{}
	}

	r := &Runner{opts: opts, c: c, now: time.Now, metrics: metrics.NewRun()}
	if c.Pointer != nil && !opts.Standalone {
		r.pointing = &pointing{
			pointer:   c.Pointer,
			noGo:      opts.NoGo,
			tolerance: opts.Tolerance,
			attempts:  opts.Attempts,
			parkTilt:  opts.ParkTilt,
		}
	}
	return r
}

// Metrics of the last run
func (r *Runner) Metrics() *metrics.Run {
	return r.metrics
}

// Run executes the sequence. Aborts are reported as *AbortError, the
// outcome is filled in either way.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	out := &Outcome{Started: r.now()}

	err := r.run(ctx, out)

	out.Ended = r.now()
	code := out.Reason.ExitCode()
	var abortErr *AbortError
	if errors.As(err, &abortErr) {
		out.Reason = abortErr.Reason
		code = out.Reason.ExitCode()
	} else if err != nil {
		code = 1
	}

	log.Info("sequence finished",
		zap.Stringer("reason", out.Reason),
		zap.Int("requests", out.Requests),
		zap.Int("errors", out.Errors),
		zap.Duration("duration", out.Ended.Sub(out.Started)),
		zap.String("directory", out.Directory))

	r.metrics.Finish(out.Started, out.Ended, code)
	if r.opts.MetricsFile != "" {
		if err := r.metrics.WriteTextfile(r.opts.MetricsFile); err != nil {
			log.Warn("could not write metrics", zap.String("file", r.opts.MetricsFile), zap.Error(err))
		}
	}

	return out, err
}

func (r *Runner) park(ctx context.Context) {
	if r.pointing != nil {
		r.pointing.park(ctx)
	}
}

// raining treats a failing sensor as dry
func (r *Runner) raining(ctx context.Context) bool {
	if r.c.Rain == nil {
		return false
	}
	raining, err := r.c.Rain.Raining(ctx)
	if err != nil {
		log.Warn("rain sensor failed, assuming dry", zap.Error(err))
		return false
	}
	return raining
}

func (r *Runner) run(ctx context.Context, out *Outcome) error {
	p, err := protocol.ParseFile(r.opts.SequenceFile)
	if errors.Is(err, protocol.ErrSequenceMissing) {
		return abort(SequenceMissing, err)
	}
	if err != nil {
		return abort(SequenceMalformed, err)
	}
	log.Info("protocol loaded", zap.Stringer("protocol", p))

	if r.raining(ctx) {
		log.Warn("raining, sequence not started")
		r.park(ctx)
		return abort(RainBeforeStart, nil)
	}

	dir, err := createRunDirectory(r.opts.DataDir, r.opts.SequenceFile, out.Started)
	if err != nil {
		return fmt.Errorf("run directory: %w", err)
	}
	out.Directory = dir.path

	if r.opts.SaveConfig != nil {
		if err := r.opts.SaveConfig(dir.file(ConfigFile)); err != nil {
			log.Warn("could not save configuration", zap.Error(err))
		}
	}

	if !r.opts.Standalone && r.c.Meteo != nil {
		r.writeMeteo(ctx, dir.file(MeteoFile))
	}

	var inst Instrument
	if p.InstrumentRequested() {
		inst, err = r.openInstrument(ctx)
		if err != nil {
			return err
		}
		defer r.teardown(inst, p.SWIRRequested())
	}

	header := &MetadataHeader{
		User:            r.opts.Metadata,
		ToolsVersion:    r.opts.Version,
		RunID:           uuid.New(),
		DateTime:        r.now(),
		ProtocolFile:    filepath.Base(r.opts.SequenceFile),
		ProtocolVersion: p.Version,
		Latitude:        r.opts.Orientation.Latitude,
		Longitude:       r.opts.Orientation.Longitude,
	}
	if !r.opts.Standalone {
		header.OffsetPan = &r.opts.Orientation.OffsetPan
		header.OffsetTilt = &r.opts.Orientation.OffsetTilt
		header.AzimuthSwitch = &r.opts.Orientation.AzimuthSwitch
	}
	if inst != nil {
		sn := inst.Serials()
		header.HypstarSN, header.LEDSN = sn.Instrument, sn.VM
	}

	md, err := createMetadataFile(dir.file(MetadataFile), header)
	if err != nil {
		return fmt.Errorf("metadata: %w", err)
	}
	defer func() {
		if md != nil {
			_ = md.Close()
		}
	}()

	if inst != nil && p.SWIRRequested() {
		if err := r.coolSWIR(ctx, inst); err != nil {
			return abort(HardwareNotReady, err)
		}
	}

	if !r.opts.Standalone && r.c.Light != nil {
		stop, err := r.startLightLogger(ctx, dir.file(LightFile))
		if err != nil {
			log.Warn("light sensor logging disabled", zap.Error(err))
		} else {
			defer stop()
		}
	}

	if !r.opts.Standalone && r.c.Power != nil && r.opts.PowerMargin > 0 {
		r.watchdog = newWatchdog(r.c.Power, r.opts.PowerMargin, r.opts.WatchdogInterval, r.park)
		r.watchdog.start(ctx)
		defer r.watchdog.stop()
	}

	x := &execution{
		protocol: p,
		state:    newRunState(out.Started),
		inst:     inst,
		dir:      dir,
		md:       md,
	}
	defer func() {
		out.Requests = x.state.iterLine
		out.Errors = x.state.errors
	}()

	for i, line := range p.Lines {
		if err := r.runLine(ctx, x, i+1, line); err != nil {
			return err
		}
	}

	if err := md.Close(); err != nil {
		log.Warn("closing metadata failed", zap.Error(err))
	}
	md = nil

	final, err := dir.commit()
	if err != nil {
		return fmt.Errorf("commit run directory: %w", err)
	}
	out.Directory = final

	if r.opts.Archive {
		if err := file.CreateArchive(final+".zip", final); err != nil {
			log.Warn("archive failed", zap.String("directory", final), zap.Error(err))
		} else if size, err := file.GetFileSize(final + ".zip"); err == nil {
			log.Info("run archived", zap.String("archive", final+".zip"), zap.String("size", humanize.Bytes(uint64(size))))
		}
	}
	return nil
}

// execution is the per-run context handed to every line
type execution struct {
	protocol *protocol.Protocol
	state    *runState
	inst     Instrument
	dir      *runDirectory
	md       *metadataFile
}

func (r *Runner) runLine(ctx context.Context, x *execution, lineNo int, line protocol.Line) error {
	state := x.state
	state.refreshElapsed(r.now())
	if r.watchdog.check() {
		return abort(PowerShutdown, nil)
	}

	if r.raining(ctx) {
		log.Warn("rain detected, aborting sequence", zap.Int("line", lineNo))
		r.park(ctx)
		return abort(RainDuringRun, nil)
	}

	// the parsed protocol stays untouched
	geo := *line.Geometry

	log.Info("sequence line", zap.Int("line", lineNo), zap.Stringer("geometry", &geo), zap.Int("flags", len(geo.Flags)))
	if !state.evalFlags(x.protocol.Flags, &geo) {
		log.Info("skipping geometry because of its flags", zap.Int("line", lineNo))
		r.metrics.LinesSkipped.WithLabelValues("flag").Inc()
		return nil
	}

	refPan, refTilt := 0.0, 0.0
	if r.pointing != nil {
		if r.watchdog.check() {
			return abort(PowerShutdown, nil)
		}

		if err := geo.ResolveAbsolute(r.now(), r.opts.Orientation, r.c.Sun); err != nil {
			log.Error("cannot resolve geometry", zap.Int("line", lineNo), zap.Error(err))
			state.errors++
			r.metrics.Errors.Inc()
			r.metrics.LinesSkipped.WithLabelValues("geometry").Inc()
			return nil
		}
		log.Info("requested position", zap.Float64("pan_abs", geo.PanAbs), zap.Float64("tilt_abs", geo.TiltAbs))

		res, err := r.pointing.point(ctx, &geo)
		switch {
		case errors.Is(err, pantilt.ErrNoGoZone):
			log.Warn("position inside no-go zone, skipping line", zap.Int("line", lineNo), zap.Error(err))
			r.metrics.LinesSkipped.WithLabelValues("nogo").Inc()
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			log.Warn("pointing failed, measuring anyway", zap.Int("line", lineNo), zap.Error(err))
			state.errors++
			r.metrics.Errors.Inc()
		}

		refPan, refTilt = constants.UNKNOWN_POSITION, constants.UNKNOWN_POSITION
		if res.Known {
			refPan, refTilt = res.Degrees()
		}
		log.Info("final position", zap.Stringer("position", res))
	}

	for _, parsed := range line.Requests {
		if r.watchdog.check() {
			return abort(PowerShutdown, nil)
		}

		state.iterLine++
		n := state.iterLine
		req := state.prepare(parsed)

		now := r.now()
		block := geo.BlockPositionName(n, r.opts.Iteration)
		name := req.SpectraName(block, now)
		log.Info("request", zap.Int("n", n), zap.Stringer("request", req), zap.String("file", name))

		size, err := r.execute(ctx, x.inst, req, x.dir.spectra(name))
		state.record(n, req)

		outcome := "ok"
		if err != nil {
			outcome = "error"
			state.errors++
			r.metrics.Errors.Inc()
			log.Error("request failed", zap.Int("n", n), zap.Stringer("request", req), zap.Error(err))
		} else if size > 0 {
			r.metrics.BytesWritten.Add(float64(size))
			log.Debug("request saved", zap.Int("n", n), zap.String("size", humanize.Bytes(uint64(size))))
		}
		r.metrics.Requests.WithLabelValues(req.Action.String(), outcome).Inc()

		werr := x.md.write(&Block{
			Position: block,
			Filename: name,
			Time:     now,
			AskPan:   geo.Pan,
			AskTilt:  geo.Tilt,
			AbsPan:   geo.PanAbs,
			AbsTilt:  geo.TiltAbs,
			RefPan:   refPan,
			RefTilt:  refTilt,
		})
		if werr != nil {
			log.Error("metadata write failed", zap.Error(werr))
		}

		if err != nil && req.Action == request.ActionValidation {
			r.park(ctx)
			return abort(ValidationFailed, err)
		}
	}
	return nil
}

func (r *Runner) execute(ctx context.Context, inst Instrument, req *request.Request, path string) (int64, error) {
	if req.Action == request.ActionNone {
		return 0, nil
	}
	if inst == nil {
		return 0, instrument.ErrNoResponse
	}

	switch req.Action {
	case request.ActionPicture:
		return inst.TakePicture(ctx, path)
	case request.ActionValidation:
		return inst.Validate(ctx, req, path)
	default:
		return inst.Capture(ctx, req, path)
	}
}

func (r *Runner) openInstrument(ctx context.Context) (Instrument, error) {
	if r.c.OpenInstrument == nil {
		return nil, abort(InstrumentNoResponse, errors.New("no instrument configured"))
	}

	inst, err := r.bootInstrument(ctx)
	if errors.Is(err, instrument.ErrNotReady) {
		return nil, abort(HardwareNotReady, err)
	}
	if err != nil {
		return nil, abort(InstrumentNoResponse, err)
	}

	sn := inst.Serials()
	log.Info("instrument ready",
		zap.Int("instrument_sn", sn.Instrument),
		zap.Int("vnir_sn", sn.VNIR),
		zap.Int("swir_sn", sn.SWIR),
		zap.Int("vm_sn", sn.VM))
	r.logEnv(ctx, inst)
	return inst, nil
}

type opened struct {
	inst Instrument
	err  error
}

// bootInstrument runs the opener under BootTimeout. An instrument that
// shows up after the deadline is closed again.
func (r *Runner) bootInstrument(ctx context.Context) (Instrument, error) {
	bootCtx, cancel := context.WithTimeout(ctx, r.opts.BootTimeout)
	defer cancel()

	res := make(chan opened, 1)
	go func() {
		inst, err := r.c.OpenInstrument(bootCtx)
		res <- opened{inst, err}
	}()

	select {
	case o := <-res:
		return o.inst, o.err
	case <-bootCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	go func() {
		if o := <-res; o.err == nil && o.inst != nil {
			log.Warn("instrument answered after boot timeout, closing it")
			_ = o.inst.Close()
		}
	}()

	return nil, fmt.Errorf("%w: %w", instrument.ErrNotReady,
		misc.NewTimedOutError("instrument boot", r.opts.BootTimeout))
}

func (r *Runner) logEnv(ctx context.Context, inst Instrument) {
	env, err := inst.EnvLog(ctx)
	if err != nil {
		log.Debug("environment log unavailable", zap.Error(err))
		return
	}
	log.Debug("instrument environment", zap.Stringer("env", env))
}

// coolSWIR brings the SWIR module to its set point. The TEC hardware may
// need a few tries after boot.
func (r *Runner) coolSWIR(ctx context.Context, inst Instrument) error {
	log.Info("cooling SWIR module", zap.Float64("celsius", r.opts.SWIRTemperature))

	attempt := 0
	op := func() error {
		attempt++
		err := inst.SetSWIRTemperature(ctx, r.opts.SWIRTemperature)
		if err != nil {
			log.Warn("SWIR thermal control not ready", zap.Int("attempt", attempt), zap.Error(err))
		}
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.opts.TECInterval), uint64(r.opts.TECAttempts-1)), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("SWIR TEC after %d attempts: %w", attempt, err)
	}

	log.Info("SWIR module at set point")
	return nil
}

// teardown runs after every run that opened the instrument, errors are
// logged only
func (r *Runner) teardown(inst Instrument, swir bool) {
	ctx := context.Background()
	if swir {
		if err := inst.ShutdownSWIRTEC(ctx); err != nil {
			log.Error("SWIR TEC shutdown failed", zap.Error(err))
		}
	}
	r.logEnv(ctx, inst)
	if err := inst.Close(); err != nil {
		log.Error("closing instrument failed", zap.Error(err))
	}
}

// writeMeteo writes the one line meteo.csv, a failure is recorded in the
// file instead of the values.
func (r *Runner) writeMeteo(ctx context.Context, path string) {
	var line string
	readings, err := r.c.Meteo.Meteo(ctx)
	if err != nil {
		log.Warn("meteo unavailable", zap.Error(err))
		line = err.Error()
	} else {
		values := make([]string, 0, len(readings))
		for _, rd := range readings {
			values = append(values, fmt.Sprintf("%g%s", rd.Value, rd.Unit))
		}
		line = strings.Join(values, "; ")
	}

	if err := file.WriteTo(path, []byte(line+"\n")); err != nil {
		log.Warn("could not write meteo file", zap.Error(err))
	}
}

func (r *Runner) startLightLogger(ctx context.Context, path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}

	logger := yocto.NewLightLogger(r.c.Light, f, r.opts.LightInterval)
	logger.Start(ctx)

	return func() {
		logger.Stop()
		_ = f.Close()
	}, nil
}
