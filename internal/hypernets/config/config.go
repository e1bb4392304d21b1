package config

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hypernets/sequencer/pkg/file"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/pelletier/go-toml/v2"
	"go.uber.org/zap"
)

const (
	ProductName = "hypernets"

	DefaultConfigPath   = "/opt/" + ProductName + "/config.toml"
	DefaultDataDir      = "DATA"
	DefaultDebugMode    = false
	DefaultSchedulerRun = 1
)

type CLIFlags struct {
	ConfigPath   string
	SequenceFile string
	DataDir      string
	Debug        bool
	Standalone   bool
	NoYocto      bool
	UseGPS       bool
	Iteration    int
}

type MainConfig struct {
	General    GeneralConfig     `toml:"general"`
	PanTilt    PanTiltConfig     `toml:"pantilt"`
	Site       SiteConfig        `toml:"site"`
	Instrument InstrumentConfig  `toml:"instrument"`
	Yoctopuce  YoctopuceConfig   `toml:"yoctopuce"`
	Rain       RainConfig        `toml:"rain"`
	Metadata   map[string]string `toml:"metadata,omitempty" comment:"free form site fields copied into every metadata.txt"`
}

type ConfigManager interface {
	lock()
	unlock()
	overridden() []string
	defaults()
	Verify() error
}

type ConfigManagerKey string

const (
	CMGeneral    ConfigManagerKey = "general"
	CMPanTilt    ConfigManagerKey = "pantilt"
	CMSite       ConfigManagerKey = "site"
	CMInstrument ConfigManagerKey = "instrument"
	CMYoctopuce  ConfigManagerKey = "yoctopuce"
	CMRain       ConfigManagerKey = "rain"
)

type ConfigManagerStore map[ConfigManagerKey]ConfigManager

type Manager struct {
	mu sync.RWMutex

	// The actual config, never share this with other code
	config *MainConfig

	// The config manager store (pointers)
	store ConfigManagerStore

	// The config path
	path string
}

func getManager[T ConfigManager](m *Manager, key ConfigManagerKey) T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cm, ok := m.store[key].(T)
	if !ok {
		log.Panic("implementation mistake, config section missing", zap.String("section", string(key)))
	}
	return cm
}

func (m *Manager) General() *GeneralConfigManager {
	return getManager[*GeneralConfigManager](m, CMGeneral)
}

func (m *Manager) PanTilt() *PanTiltConfigManager {
	return getManager[*PanTiltConfigManager](m, CMPanTilt)
}

func (m *Manager) Site() *SiteConfigManager {
	return getManager[*SiteConfigManager](m, CMSite)
}

func (m *Manager) Instrument() *InstrumentConfigManager {
	return getManager[*InstrumentConfigManager](m, CMInstrument)
}

func (m *Manager) Yoctopuce() *YoctopuceConfigManager {
	return getManager[*YoctopuceConfigManager](m, CMYoctopuce)
}

func (m *Manager) Rain() *RainConfigManager {
	return getManager[*RainConfigManager](m, CMRain)
}

// Metadata returns a copy of the free form metadata section
func (m *Manager) Metadata() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(m.config.Metadata))
	for k, v := range m.config.Metadata {
		out[k] = v
	}
	return out
}

// Path returns the file the configuration was loaded from
func (m *Manager) Path() string {
	return m.path
}

// Load reads the TOML file at path, missing optional values get their
// documented defaults. An unreadable file is only accepted with
// acceptEmptyConfig.
func (m *Manager) Load(path string, acceptEmptyConfig bool) error {
	data, err := os.ReadFile(path)
	if err == nil {
		if err = toml.Unmarshal(data, m.config); err != nil {
			log.Error("failed to unmarshal config file", zap.Error(err))
		}
	}

	if err != nil && !acceptEmptyConfig {
		return err
	}

	return m.setup(path)
}

// LoadBytes is Load for an in-memory document
func (m *Manager) LoadBytes(data []byte) error {
	if err := toml.Unmarshal(data, m.config); err != nil {
		return err
	}

	return m.setup("")
}

func (m *Manager) setup(path string) error {
	// Store the load path
	m.path = path

	// Each config section manager gets his own locking primitive
	m.store = ConfigManagerStore{
		CMGeneral:    NewGeneralConfigManager(&m.config.General, m),
		CMPanTilt:    NewPanTiltConfigManager(&m.config.PanTilt, m),
		CMSite:       NewSiteConfigManager(&m.config.Site, m),
		CMInstrument: NewInstrumentConfigManager(&m.config.Instrument, m),
		CMYoctopuce:  NewYoctopuceConfigManager(&m.config.Yoctopuce, m),
		CMRain:       NewRainConfigManager(&m.config.Rain, m),
	}

	// Verify all configs contain the mandatory values
	for key, value := range m.store {
		value.defaults()
		if err := value.Verify(); err != nil {
			return fmt.Errorf("config section [%s]: %w", key, err)
		}
	}

	// Debug log output
	log.Debug("active config", zap.Any("config", m.config), zap.String("path", m.path))

	return nil
}

// SaveTo locks all configs and writes the effective configuration to path
func (m *Manager) SaveTo(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Lock all config managers
	for _, value := range m.store {
		value.lock()
	}

	// Unlock the config managers when we are done
	defer func() {
		for _, value := range m.store {
			value.unlock()
		}
	}()

	// Marshal the config, does not use getters, so no locking => safe
	configData, err := toml.Marshal(m.config)
	if err != nil {
		return err
	}

	var overrides []string
	for key, value := range m.store {
		for _, k := range value.overridden() {
			overrides = append(overrides, string(key)+"."+k)
		}
	}
	if len(overrides) > 0 {
		sort.Strings(overrides)
		header := "# overridden at runtime: " + strings.Join(overrides, ", ") + "\n"
		configData = append([]byte(header), configData...)
	}

	if err := file.WriteTo(path, configData); err != nil {
		log.Error("Failed to write config file", zap.Error(err))
		return err
	}

	return nil
}

func New() *MainConfig {
	return &MainConfig{}
}

func NewManager() *Manager {
	return &Manager{
		mu:     sync.RWMutex{},
		store:  make(ConfigManagerStore),
		config: New(),
	}
}

func ParseCLIFlags() CLIFlags {
	flags := CLIFlags{}

	flag.StringVar(&flags.ConfigPath, "config", DefaultConfigPath, "relative or absolute path to the config file")
	flag.StringVar(&flags.SequenceFile, "file", "", "sequence file to execute")
	flag.StringVar(&flags.DataDir, "data-dir", "", "overrides general.data_dir")
	flag.BoolVar(&flags.Debug, "debug", DefaultDebugMode, "true if the debug logging should be enabled")
	flag.BoolVar(&flags.Standalone, "standalone", false, "run without pan-tilt")
	flag.BoolVar(&flags.NoYocto, "noyocto", false, "run without the yoctopuce modules")
	flag.BoolVar(&flags.UseGPS, "gps", false, "take latitude/longitude from the yoctopuce gps")
	flag.IntVar(&flags.Iteration, "iteration", DefaultSchedulerRun, "scheduler iteration, used in block names")

	flag.Parse()

	return flags
}

type TOMLDuration time.Duration

func (d *TOMLDuration) UnmarshalText(b []byte) error {
	x, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = TOMLDuration(x)
	return nil
}

func (c TOMLDuration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(c).String()), nil
}

func (c *TOMLDuration) Value() time.Duration {
	return time.Duration(*c)
}

// defaultDuration fills an unset duration and reports it
func defaultDuration(d *TOMLDuration, def time.Duration, key string) {
	if *d == 0 {
		log.Debug("config value missing, using default", zap.String("key", key), zap.Duration("default", def))
		*d = TOMLDuration(def)
	}
}

// defaultFloat fills an unset float pointer, warning about the fallback
func defaultFloat(v **float64, def float64, key string) {
	if *v == nil {
		log.Warn("config value missing, using default", zap.String("key", key), zap.Float64("default", def))
		*v = &def
	}
}
