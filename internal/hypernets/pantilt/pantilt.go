package pantilt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hypernets/sequencer/pkg/log"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	DefaultBaudrate     = 2400
	DefaultAddress      = 0x01
	DefaultReadTimeout  = 200 * time.Millisecond
	DefaultMoveTimeout  = 65 * time.Second
	DefaultPollInterval = time.Second

	// two readings closer than this are considered settled
	settleTolerance = 10
)

var (
	ErrNoGoZone  = errors.New("tilt inside no-go zone")
	ErrTimeout   = errors.New("pan-tilt did not answer")
	ErrNoRequest = errors.New("neither pan nor tilt requested")
)

// Result is a position report in centidegrees. Known is false when the
// head did not answer after a move.
type Result struct {
	Known bool
	Pan   int
	Tilt  int
}

// Degrees converts the report to degrees
func (r Result) Degrees() (float64, float64) {
	return float64(r.Pan) / 100, float64(r.Tilt) / 100
}

func (r Result) String() string {
	if !r.Known {
		return "unknown"
	}
	pan, tilt := r.Degrees()
	return fmt.Sprintf("(%.2f, %.2f)", pan, tilt)
}

// conn is the part of serial.Port the driver uses
type conn interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

type Options struct {
	Port         string
	Baudrate     int
	Address      byte
	MoveTimeout  time.Duration
	PollInterval time.Duration
	NoGo         *NoGoZone
}

func (o *Options) setDefaults() {
	if o.Baudrate == 0 {
		o.Baudrate = DefaultBaudrate
	}
	if o.Address == 0 {
		o.Address = DefaultAddress
	}
	if o.MoveTimeout == 0 {
		o.MoveTimeout = DefaultMoveTimeout
	}
	if o.PollInterval == 0 {
		o.PollInterval = DefaultPollInterval
	}
}

// Driver talks Pelco-D to the pan-tilt head. Calls are serialized, a move
// holds the line until it has settled.
type Driver struct {
	mu   sync.Mutex
	opts Options
	port conn
}

// Open opens the serial line, 8N1 at the configured baudrate
func Open(opts Options) (*Driver, error) {
	opts.setDefaults()

	p, err := serial.Open(opts.Port, &serial.Mode{
		BaudRate: opts.Baudrate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		log.Error("error while opening pan-tilt serial device", zap.String("port", opts.Port), zap.Error(err))
		return nil, err
	}

	// Set read timeout
	_ = p.SetReadTimeout(DefaultReadTimeout)

	log.Debug("pan-tilt serial opened", zap.String("port", opts.Port), zap.Int("baudrate", opts.Baudrate))
	return newDriver(p, opts), nil
}

func newDriver(c conn, opts Options) *Driver {
	opts.setDefaults()
	return &Driver{opts: opts, port: c}
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.port.Close()
}

func (d *Driver) send(cmd byte, value uint16) error {
	f := newFrame(d.opts.Address, cmd, value)
	log.Debug("pan-tilt request", zap.Binary("frame", f))
	_, err := d.port.Write(f)
	return err
}

// readFrame collects one reply, a read returning nothing is the line timeout
func (d *Driver) readFrame() ([]byte, error) {
	buf := make([]byte, 0, frameLen)
	tmp := make([]byte, frameLen)
	for len(buf) < frameLen {
		n, err := d.port.Read(tmp[:frameLen-len(buf)])
		if err != nil {
			return buf, err
		}
		if n == 0 {
			return buf, ErrTimeout
		}
		buf = append(buf, tmp[:n]...)
	}
	return buf, nil
}

func (d *Driver) queryAxis(cmd, reply byte) (int, error) {
	_ = d.port.ResetInputBuffer()
	if err := d.send(cmd, 0); err != nil {
		return 0, err
	}

	f, err := d.readFrame()
	if err != nil {
		return 0, err
	}
	return decodeReply(f, d.opts.Address, reply)
}

func (d *Driver) query() (Result, error) {
	pan, err := d.queryAxis(cmdQueryPan, cmdReplyPan)
	if err != nil {
		return Result{}, fmt.Errorf("query pan: %w", err)
	}
	tilt, err := d.queryAxis(cmdQueryTilt, cmdReplyTilt)
	if err != nil {
		return Result{}, fmt.Errorf("query tilt: %w", err)
	}
	return Result{Known: true, Pan: pan, Tilt: tilt}, nil
}

// Position queries the current pan and tilt
func (d *Driver) Position(ctx context.Context) (Result, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return d.query()
}

// MoveTo sends the requested absolute angles, nil leaves an axis alone.
// With wait it polls until two readings agree within 0.1 degree or the
// move timeout expires, then reports the final position.
func (d *Driver) MoveTo(ctx context.Context, pan, tilt *float64, wait bool) (Result, error) {
	if pan == nil && tilt == nil {
		return Result{}, ErrNoRequest
	}
	if tilt != nil && d.opts.NoGo.Contains(*tilt) {
		return Result{}, fmt.Errorf("%w: tilt %.2f", ErrNoGoZone, *tilt)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if pan != nil {
		v := encodeAngle(*pan, d.opts.Address, cmdSetPan)
		log.Info("pan request", zap.Float64("requested", *pan), zap.Uint16("centidegrees", v))
		if err := d.send(cmdSetPan, v); err != nil {
			return Result{}, err
		}
	}
	if tilt != nil {
		v := encodeAngle(*tilt, d.opts.Address, cmdSetTilt)
		log.Info("tilt request", zap.Float64("requested", *tilt), zap.Uint16("centidegrees", v))
		if err := d.send(cmdSetTilt, v); err != nil {
			return Result{}, err
		}
	}

	if !wait {
		return Result{}, nil
	}

	if err := d.waitSettled(ctx); err != nil {
		return Result{}, err
	}

	final, err := d.query()
	if err != nil {
		log.Warn("final pan-tilt position unknown", zap.Error(err))
		return Result{Known: false}, nil
	}

	log.Info("final pan-tilt position", zap.Stringer("position", final))
	return final, nil
}

func (d *Driver) waitSettled(ctx context.Context) error {
	half := d.opts.PollInterval / 2
	deadline := time.Now().Add(d.opts.MoveTimeout)

	for time.Now().Before(deadline) {
		if err := sleep(ctx, half); err != nil {
			return err
		}
		p0, err0 := d.query()
		if err := sleep(ctx, half); err != nil {
			return err
		}
		p1, err1 := d.query()

		if err0 != nil || err1 != nil {
			log.Debug("pan-tilt poll failed", zap.NamedError("first", err0), zap.NamedError("second", err1))
			continue
		}

		if abs(p0.Pan-p1.Pan) <= settleTolerance && abs(p0.Tilt-p1.Tilt) <= settleTolerance {
			return nil
		}
	}

	log.Warn("pan-tilt still moving at timeout", zap.Duration("timeout", d.opts.MoveTimeout))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
