package config

import "errors"

// If you want to modify any field at run-time here, make sure to lock it using a mutex
type GeneralConfig struct {
	DataDir     string  `toml:"data_dir,omitempty" comment:"sequence directories are created below this path"`
	Verbosity   string  `toml:"verbosity,omitempty" comment:"ERROR, WARNING, INFO or DEBUG"`
	Standalone  bool    `toml:"standalone" comment:"no pan-tilt attached, pointing is skipped"`
	SWIRTemp    float64 `toml:"swir_temperature,omitempty" comment:"SWIR TEC set point in degrees celsius"`
	Archive     bool    `toml:"archive" comment:"zip the sequence directory after a successful run"`
	MetricsFile string  `toml:"metrics_file,omitempty" comment:"node exporter textfile, empty disables run metrics"`
}

type GeneralConfigManager struct {
	BaseConfigManager[GeneralConfig]
}

func (a *GeneralConfigManager) defaults() {
	if a.conf.DataDir == "" {
		a.conf.DataDir = DefaultDataDir
	}
	if a.conf.Verbosity == "" {
		a.conf.Verbosity = "INFO"
	}
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *GeneralConfigManager) Verify() error {
	if a.conf.SWIRTemp < -40 || a.conf.SWIRTemp > 40 {
		return errors.New("swir_temperature out of range")
	}
	return nil
}

func NewGeneralConfigManager(config *GeneralConfig, mgr *Manager) *GeneralConfigManager {
	j := GeneralConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
