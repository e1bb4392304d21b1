package config

import "errors"

const DefaultRainCommand = "/opt/hypernets/bin/rain_sensor"

type RainConfig struct {
	Enabled bool     `toml:"enabled" comment:"skip or abort sequences while it rains"`
	Command string   `toml:"command,omitempty" comment:"probe program, exit status 1 means rain"`
	Args    []string `toml:"args,omitempty"`
}

type RainConfigManager struct {
	BaseConfigManager[RainConfig]
}

func (a *RainConfigManager) defaults() {
	if a.conf.Command == "" {
		a.conf.Command = DefaultRainCommand
	}
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *RainConfigManager) Verify() error {
	if a.conf.Enabled && a.conf.Command == "" {
		return errors.New("rain sensor enabled without command")
	}
	return nil
}

func NewRainConfigManager(config *RainConfig, mgr *Manager) *RainConfigManager {
	j := RainConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
