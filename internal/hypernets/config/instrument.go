package config

import (
	"fmt"
	"time"
)

const (
	InstrumentDriverVirtual = "virtual"

	DefaultInstrumentPort  = "/dev/radiometer0"
	DefaultBootTimeout     = 30 * time.Second
	DefaultPortWaitTimeout = 5 * time.Second
)

type InstrumentConfig struct {
	Driver      string       `toml:"driver,omitempty" comment:"instrument backend, only 'virtual' is built in"`
	Port        string       `toml:"port,omitempty" comment:"radiometer device node, must be a symlink"`
	BootTimeout TOMLDuration `toml:"boot_timeout,omitempty"`
	PortWait    TOMLDuration `toml:"port_wait,omitempty"`
	RequireUSB  bool         `toml:"require_usb" comment:"fail the run when the usb bridge is not enumerated"`
}

type InstrumentConfigManager struct {
	BaseConfigManager[InstrumentConfig]
}

func (a *InstrumentConfigManager) defaults() {
	if a.conf.Driver == "" {
		a.conf.Driver = InstrumentDriverVirtual
	}
	if a.conf.Port == "" {
		a.conf.Port = DefaultInstrumentPort
	}
	defaultDuration(&a.conf.BootTimeout, DefaultBootTimeout, "instrument.boot_timeout")
	defaultDuration(&a.conf.PortWait, DefaultPortWaitTimeout, "instrument.port_wait")
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *InstrumentConfigManager) Verify() error {
	if a.conf.Driver != InstrumentDriverVirtual {
		return fmt.Errorf("unsupported instrument driver %q", a.conf.Driver)
	}
	return nil
}

func NewInstrumentConfigManager(config *InstrumentConfig, mgr *Manager) *InstrumentConfigManager {
	j := InstrumentConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
