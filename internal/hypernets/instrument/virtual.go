package instrument

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/pkg/file"
	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

const (
	VNIRPixels = 2048
	SWIRPixels = 256

	DefaultAutoITVNIR = 64
	DefaultAutoITSWIR = 128

	pictureWidth  = 160
	pictureHeight = 120
)

type VirtualOptions struct {
	Serials Serials

	// Integration times reported for automatic exposure
	AutoITVNIR int
	AutoITSWIR int

	// Number of SetSWIRTemperature calls failing before the TEC settles
	TECSettleAttempts int
}

// Virtual simulates a HYPSTAR. Spectra are synthetic but carry the
// request configuration and the integration time actually used.
type Virtual struct {
	mu     sync.Mutex
	opts   VirtualOptions
	now    func() time.Time
	closed bool

	tecOn     bool
	tecCalls  int
	swirTempC float64

	// Failure injection
	CaptureErr  error
	PictureErr  error
	ValidateErr error
}

func NewVirtual(opts VirtualOptions) *Virtual {
	if opts.AutoITVNIR <= 0 {
		opts.AutoITVNIR = DefaultAutoITVNIR
	}
	if opts.AutoITSWIR <= 0 {
		opts.AutoITSWIR = DefaultAutoITSWIR
	}
	if opts.Serials.Instrument == 0 {
		opts.Serials = Serials{Instrument: 220241, VNIR: 221241, SWIR: 222241, VM: 223241}
	}

	log.Info("using virtual instrument", zap.Int("serial", opts.Serials.Instrument))
	return &Virtual{opts: opts, now: time.Now, swirTempC: 25}
}

func (v *Virtual) check(ctx context.Context) error {
	if v.closed {
		return ErrNoResponse
	}
	return ctx.Err()
}

// Capture writes NumberCap spectra per selected radiometer to path and
// stores the integration times used back into r.
func (v *Virtual) Capture(ctx context.Context, r *request.Request, path string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(ctx); err != nil {
		return 0, err
	}
	if v.CaptureErr != nil {
		return 0, v.CaptureErr
	}
	if !r.Radiometer.HasVNIR() && !r.Radiometer.HasSWIR() {
		return 0, ErrEmptyCapture
	}

	caps := max(r.NumberCap, 1)
	buf := &bytes.Buffer{}
	for i := 0; i < caps; i++ {
		if r.Radiometer.HasVNIR() {
			if r.ITVNIR == 0 {
				r.ITVNIR = v.opts.AutoITVNIR
			}
			v.writeSpectrum(buf, request.RadiometerVNIR, r.Entrance, r.ITVNIR, VNIRPixels)
		}
		if r.Radiometer.HasSWIR() {
			if r.ITSWIR == 0 {
				r.ITSWIR = v.opts.AutoITSWIR
			}
			v.writeSpectrum(buf, request.RadiometerSWIR, r.Entrance, r.ITSWIR, SWIRPixels)
		}
	}

	return v.save(path, buf.Bytes())
}

// TakePicture writes a synthetic JPEG frame
func (v *Virtual) TakePicture(ctx context.Context, path string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(ctx); err != nil {
		return 0, err
	}
	if v.PictureErr != nil {
		return 0, v.PictureErr
	}

	img := image.NewGray(image.Rect(0, 0, pictureWidth, pictureHeight))
	for y := 0; y < pictureHeight; y++ {
		for x := 0; x < pictureWidth; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x + y) * 255 / (pictureWidth + pictureHeight))})
		}
	}

	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: 80}); err != nil {
		return 0, err
	}
	return v.save(path, buf.Bytes())
}

// Validate measures the validation light source on the VNIR irradiance
// entrance.
func (v *Virtual) Validate(ctx context.Context, r *request.Request, path string) (int64, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(ctx); err != nil {
		return 0, err
	}
	if v.ValidateErr != nil {
		return 0, v.ValidateErr
	}

	if r.ITVNIR == 0 {
		r.ITVNIR = v.opts.AutoITVNIR
	}

	buf := &bytes.Buffer{}
	v.writeSpectrum(buf, request.RadiometerVNIR, request.EntranceValidation, r.ITVNIR, VNIRPixels)
	log.Debug("validation light measured", zap.Int("current_ma", r.VMCurrentMA))
	return v.save(path, buf.Bytes())
}

func (v *Virtual) save(path string, data []byte) (int64, error) {
	if err := file.WriteTo(path, data); err != nil {
		return 0, err
	}
	log.Debug("saved", zap.String("path", path), zap.String("size", humanize.Bytes(uint64(len(data)))))
	return int64(len(data)), nil
}

// spectrum header, little endian
type spectrumHeader struct {
	Length          uint16
	Timestamp       uint64
	Config          uint8
	IntegrationTime uint16
	Temperature     float32
	Pixels          uint16
}

func (v *Virtual) writeSpectrum(buf *bytes.Buffer, rad request.Radiometer, ent request.Entrance, it int, pixels int) {
	h := spectrumHeader{
		Length:          uint16(binary.Size(spectrumHeader{}) + pixels*2 + 4),
		Timestamp:       uint64(v.now().UnixMilli()),
		Config:          uint8(rad.Code() | ent.Code()),
		IntegrationTime: uint16(it),
		Temperature:     float32(v.swirTempC),
		Pixels:          uint16(pixels),
	}

	body := &bytes.Buffer{}
	_ = binary.Write(body, binary.LittleEndian, h)

	// Dark spectra only carry the offset
	gain := math.Min(float64(it)/4, 50000)
	if ent == request.EntranceDark {
		gain = 0
	}
	for p := 0; p < pixels; p++ {
		shape := math.Sin(math.Pi * float64(p) / float64(pixels))
		_ = binary.Write(body, binary.LittleEndian, uint16(1000+gain*shape))
	}

	_ = binary.Write(body, binary.LittleEndian, crc32.ChecksumIEEE(body.Bytes()))
	buf.Write(body.Bytes())
}

func (v *Virtual) Serials() Serials {
	return v.opts.Serials
}

func (v *Virtual) EnvLog(ctx context.Context) (EnvLog, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(ctx); err != nil {
		return EnvLog{}, err
	}
	return EnvLog{
		InternalTemperature: 31.5,
		InternalHumidity:    12,
		SWIRTemperature:     v.swirTempC,
		InputVoltage:        12.1,
		InputCurrent:        420,
	}, nil
}

// SetSWIRTemperature starts the SWIR thermo-electric cooler and waits for
// the target temperature.
func (v *Virtual) SetSWIRTemperature(ctx context.Context, celsius float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(ctx); err != nil {
		return err
	}

	v.tecOn = true
	v.tecCalls++
	if v.tecCalls <= v.opts.TECSettleAttempts {
		return fmt.Errorf("%w: SWIR at %.1fC, target %.1fC", ErrNotReady, v.swirTempC, celsius)
	}

	v.swirTempC = celsius
	return nil
}

func (v *Virtual) ShutdownSWIRTEC(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.check(ctx); err != nil {
		return err
	}
	v.tecOn = false
	v.swirTempC = 25
	return nil
}

// TECOn reports whether the SWIR cooler is running
func (v *Virtual) TECOn() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tecOn
}

func (v *Virtual) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return ErrNoResponse
	}
	v.closed = true
	return nil
}
