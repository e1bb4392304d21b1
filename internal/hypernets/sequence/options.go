package sequence

import (
	"time"

	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/pantilt"
	"github.com/hypernets/sequencer/pkg/constants"
)

type Options struct {
	SequenceFile string
	DataDir      string
	// Standalone runs the instrument alone, without pan-tilt and yoctopuce
	Standalone bool
	// Scheduler iteration, first field of the block position name
	Iteration int

	Orientation geometry.Orientation
	NoGo        *pantilt.NoGoZone
	Tolerance   float64
	Attempts    int
	ParkTilt    float64

	// BootTimeout bounds the instrument open
	BootTimeout time.Duration

	SWIRTemperature float64
	TECAttempts     int
	TECInterval     time.Duration

	// Watchdog trips when the power countdown drops to PowerMargin
	PowerMargin      time.Duration
	WatchdogInterval time.Duration
	LightInterval    time.Duration

	// User fields of the metadata header
	Metadata map[string]string
	// SaveConfig writes the effective configuration into the run directory
	SaveConfig func(path string) error

	Archive     bool
	MetricsFile string
	Version     string
}

func (o *Options) setDefaults() {
	if o.Iteration <= 0 {
		o.Iteration = 1
	}
	if o.Tolerance <= 0 {
		o.Tolerance = constants.POINTING_TOLERANCE
	}
	if o.Attempts <= 0 {
		o.Attempts = constants.POINTING_ATTEMPTS
	}
	if o.BootTimeout <= 0 {
		o.BootTimeout = constants.INSTRUMENT_BOOT_TIMEOUT
	}
	if o.TECAttempts <= 0 {
		o.TECAttempts = constants.SWIR_TEC_ATTEMPTS
	}
	if o.TECInterval <= 0 {
		o.TECInterval = constants.SWIR_TEC_INTERVAL
	}
	if o.WatchdogInterval <= 0 {
		o.WatchdogInterval = constants.POWER_WATCHDOG_INTERVAL
	}
	if o.LightInterval <= 0 {
		o.LightInterval = constants.LIGHT_LOGGER_INTERVAL
	}
	if o.Version == "" {
		o.Version = constants.HYPERNETS_TOOLS_VERSION
	}
}

// Collaborators are the services a run talks to. Nil members are treated
// as not installed.
type Collaborators struct {
	Pointer        Pointer
	OpenInstrument InstrumentOpener
	Sun            geometry.SunPositioner
	Rain           RainSensor
	Power          PowerMonitor
	Meteo          MeteoReader
	Light          LightSampler
}
