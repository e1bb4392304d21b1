package config

import "errors"

type SiteConfig struct {
	Latitude  *float64 `toml:"latitude,omitempty" comment:"decimal degrees, north positive"`
	Longitude *float64 `toml:"longitude,omitempty" comment:"decimal degrees, east positive"`
	Elevation float64  `toml:"elevation,omitempty" comment:"meters above sea level"`
}

type SiteConfigManager struct {
	BaseConfigManager[SiteConfig]
}

func (a *SiteConfigManager) defaults() {}

// Verify verifies the "hard" conditions that the rest of the code relies on.
// A missing location is only fatal once a sun referenced geometry needs it.
func (a *SiteConfigManager) Verify() error {
	if lat := a.conf.Latitude; lat != nil && (*lat < -90 || *lat > 90) {
		return errors.New("latitude out of range")
	}
	if lon := a.conf.Longitude; lon != nil && (*lon < -180 || *lon > 180) {
		return errors.New("longitude out of range")
	}
	return nil
}

func NewSiteConfigManager(config *SiteConfig, mgr *Manager) *SiteConfigManager {
	j := SiteConfigManager{}
	j.conf = config
	j.mgr = mgr

	return &j
}
