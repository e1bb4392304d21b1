package sequence

import (
	"context"
	"time"

	"github.com/hypernets/sequencer/internal/hypernets/instrument"
	"github.com/hypernets/sequencer/internal/hypernets/pantilt"
	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/internal/hypernets/yocto"
)

// Pointer moves the pan-tilt head to absolute angles, nil leaves an axis
// alone. An unknown final position is reported through Result.Known.
type Pointer interface {
	MoveTo(ctx context.Context, pan, tilt *float64, wait bool) (pantilt.Result, error)
}

// Instrument is the radiometer. Capture and Validate write the integration
// times they used back into the request.
type Instrument interface {
	Capture(ctx context.Context, r *request.Request, path string) (int64, error)
	TakePicture(ctx context.Context, path string) (int64, error)
	Validate(ctx context.Context, r *request.Request, path string) (int64, error)
	Serials() instrument.Serials
	EnvLog(ctx context.Context) (instrument.EnvLog, error)
	SetSWIRTemperature(ctx context.Context, celsius float64) error
	ShutdownSWIRTEC(ctx context.Context) error
	Close() error
}

// InstrumentOpener boots the instrument, it is only called when the
// sequence contains requests for it.
type InstrumentOpener func(ctx context.Context) (Instrument, error)

type RainSensor interface {
	Raining(ctx context.Context) (bool, error)
}

// PowerMonitor reports the time left before the power is cut, 0 when no
// shutdown is scheduled.
type PowerMonitor interface {
	PowerOffCountdown(ctx context.Context) (time.Duration, error)
}

type MeteoReader interface {
	Meteo(ctx context.Context) ([]yocto.Reading, error)
}

type LightSampler = yocto.LightSampler
