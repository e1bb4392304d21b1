package config

import (
	"errors"
	"time"
)

const (
	DefaultPanTiltPort      = "/dev/ttyS3"
	DefaultPanTiltBaudrate  = 2400
	DefaultPanTiltAddress   = 1
	DefaultAzimuthSwitch    = 180.0
	DefaultPointingTol      = 1.0
	DefaultPointingAttempts = 2
	DefaultMoveTimeout      = 65 * time.Second
	DefaultPollInterval     = time.Second
)

type PanTiltConfig struct {
	Port          string       `toml:"port,omitempty"`
	Baudrate      int          `toml:"baudrate,omitempty"`
	Address       byte         `toml:"address,omitempty" comment:"pelco-d device address"`
	OffsetPan     *float64     `toml:"offset_pan,omitempty" comment:"mechanical pan offset in degrees"`
	OffsetTilt    *float64     `toml:"offset_tilt,omitempty" comment:"mechanical tilt offset in degrees"`
	ReverseTilt   bool         `toml:"reverse_tilt"`
	AzimuthSwitch *float64     `toml:"azimuth_switch,omitempty" comment:"sun azimuth at which sun relative pan changes side"`
	Tolerance     float64      `toml:"tolerance,omitempty" comment:"maximum accepted pointing deviation in degrees"`
	Attempts      int          `toml:"attempts,omitempty" comment:"pointing attempts per geometry"`
	MoveTimeout   TOMLDuration `toml:"move_timeout,omitempty"`
	PollInterval  TOMLDuration `toml:"poll_interval,omitempty"`
	NoGo          *NoGoConfig  `toml:"nogo,omitempty" comment:"tilt range the head must never enter, both bounds required"`
}

type NoGoConfig struct {
	TiltMin *float64 `toml:"tilt_min,omitempty"`
	TiltMax *float64 `toml:"tilt_max,omitempty"`
}

type PanTiltConfigManager struct {
	BaseConfigManager[PanTiltConfig]
}

func (a *PanTiltConfigManager) defaults() {
	if a.conf.Port == "" {
		a.conf.Port = DefaultPanTiltPort
	}
	if a.conf.Baudrate == 0 {
		a.conf.Baudrate = DefaultPanTiltBaudrate
	}
	if a.conf.Address == 0 {
		a.conf.Address = DefaultPanTiltAddress
	}
	defaultFloat(&a.conf.OffsetPan, 0, "pantilt.offset_pan")
	defaultFloat(&a.conf.OffsetTilt, 0, "pantilt.offset_tilt")
	defaultFloat(&a.conf.AzimuthSwitch, DefaultAzimuthSwitch, "pantilt.azimuth_switch")
	if a.conf.Tolerance == 0 {
		a.conf.Tolerance = DefaultPointingTol
	}
	if a.conf.Attempts == 0 {
		a.conf.Attempts = DefaultPointingAttempts
	}
	defaultDuration(&a.conf.MoveTimeout, DefaultMoveTimeout, "pantilt.move_timeout")
	defaultDuration(&a.conf.PollInterval, DefaultPollInterval, "pantilt.poll_interval")
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *PanTiltConfigManager) Verify() error {
	if a.conf.Tolerance < 0 {
		return errors.New("negative pointing tolerance")
	}
	if a.conf.Attempts < 1 {
		return errors.New("at least one pointing attempt is required")
	}

	// Safety thresholds never fall back to a default
	if nogo := a.conf.NoGo; nogo != nil {
		if nogo.TiltMin == nil || nogo.TiltMax == nil {
			return errors.New("nogo zone needs both tilt_min and tilt_max")
		}
	}

	return nil
}

func NewPanTiltConfigManager(config *PanTiltConfig, mgr *Manager) *PanTiltConfigManager {
	j := PanTiltConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
