package config

import (
	"errors"
	"net/url"
	"time"
)

const (
	DefaultVirtualHubURL    = "http://127.0.0.1:4444"
	DefaultYoctoTimeout     = 5 * time.Second
	DefaultWatchdogInterval = 10 * time.Second
	DefaultLightInterval    = time.Second
)

type YoctopuceConfig struct {
	URL            string        `toml:"url,omitempty" comment:"VirtualHub base url"`
	MeteoSerial    string        `toml:"meteo_serial,omitempty"`
	GPSSerial      string        `toml:"gps_serial,omitempty"`
	WakeUpSerial   string        `toml:"wakeup_serial,omitempty" comment:"module carrying the wakeUpMonitor function"`
	RequestTimeout TOMLDuration  `toml:"request_timeout,omitempty"`
	LightLogging   bool          `toml:"light_logging" comment:"log the meteo light sensor during the run"`
	LightInterval  TOMLDuration  `toml:"light_interval,omitempty"`
	Watchdog       bool          `toml:"watchdog" comment:"park and abort before the station powers down"`
	WatchInterval  TOMLDuration  `toml:"watchdog_interval,omitempty"`
	PoweroffMargin *TOMLDuration `toml:"poweroff_margin,omitempty" comment:"required when watchdog is enabled"`
}

type YoctopuceConfigManager struct {
	BaseConfigManager[YoctopuceConfig]
}

func (a *YoctopuceConfigManager) defaults() {
	if a.conf.URL == "" {
		a.conf.URL = DefaultVirtualHubURL
	}
	defaultDuration(&a.conf.RequestTimeout, DefaultYoctoTimeout, "yoctopuce.request_timeout")
	defaultDuration(&a.conf.LightInterval, DefaultLightInterval, "yoctopuce.light_interval")
	defaultDuration(&a.conf.WatchInterval, DefaultWatchdogInterval, "yoctopuce.watchdog_interval")
}

// Verify verifies the "hard" conditions that the rest of the code relies on
func (a *YoctopuceConfigManager) Verify() error {
	if _, err := url.Parse(a.conf.URL); err != nil {
		return err
	}

	if a.conf.Watchdog {
		if a.conf.WakeUpSerial == "" {
			return errors.New("watchdog enabled without wakeup_serial")
		}
		if a.conf.PoweroffMargin == nil || *a.conf.PoweroffMargin <= 0 {
			return errors.New("watchdog enabled without poweroff_margin")
		}
	}

	if a.conf.LightLogging && a.conf.MeteoSerial == "" {
		return errors.New("light_logging enabled without meteo_serial")
	}

	return nil
}

func NewYoctopuceConfigManager(config *YoctopuceConfig, mgr *Manager) *YoctopuceConfigManager {
	j := YoctopuceConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
