package instrument

import (
	"errors"
	"fmt"
)

var (
	// ErrNotReady means the instrument booted without the hardware the
	// sequence needs (multiplexer, SWIR TEC).
	ErrNotReady = errors.New("instrument hardware not ready")

	// ErrNoResponse means the instrument did not answer at all
	ErrNoResponse = errors.New("instrument does not respond")

	ErrEmptyCapture = errors.New("capture returned no spectra")
)

// Serials of the instrument and its sub-assemblies
type Serials struct {
	Instrument int
	VNIR       int
	SWIR       int
	// VM is the validation module, reported as the LED serial
	VM int
}

// EnvLog is the housekeeping snapshot of the instrument
type EnvLog struct {
	InternalTemperature float64
	InternalHumidity    float64
	SWIRTemperature     float64
	InputVoltage        float64
	InputCurrent        float64
}

func (e EnvLog) String() string {
	return fmt.Sprintf("T=%.1fC RH=%.1f%% SWIR=%.1fC U=%.2fV I=%.0fmA",
		e.InternalTemperature, e.InternalHumidity, e.SWIRTemperature, e.InputVoltage, e.InputCurrent)
}
