package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hypernets/sequencer/internal/hypernets/config"
	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/instrument"
	"github.com/hypernets/sequencer/internal/hypernets/pantilt"
	"github.com/hypernets/sequencer/internal/hypernets/rain"
	"github.com/hypernets/sequencer/internal/hypernets/sequence"
	"github.com/hypernets/sequencer/internal/hypernets/yocto"
	"github.com/hypernets/sequencer/pkg/constants"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/hypernets/sequencer/pkg/misc"
	"github.com/hypernets/sequencer/pkg/usb"
	"go.uber.org/zap"
)

// App holds the configuration and every hardware service of a run
type App struct {
	ExitSignal chan os.Signal

	Flags config.CLIFlags
	Conf  *config.Manager

	PanTilt *pantilt.Driver
	Hub     *yocto.Hub
	Rain    *rain.Sensor

	TestRunning bool
}

func (a *App) Shutdown() {
	if a.PanTilt != nil {
		if err := a.PanTilt.Close(); err != nil {
			log.Warn("closing pan-tilt failed", zap.Error(err))
		}
	}

	if a.ExitSignal != nil {
		signal.Stop(a.ExitSignal)
	}

	log.Sync()
}

func (a *App) loadConfiguration(configPath string, acceptEmptyConfig bool) error {
	// Create the new config manager and load the configuration
	a.Conf = config.NewManager()
	if err := a.Conf.Load(configPath, acceptEmptyConfig); err != nil {
		log.Error("an error occurred while trying to load the config file", zap.String("path", configPath), zap.Error(err))
		return err
	}

	if a.Flags.DataDir != "" {
		a.Conf.General().Override("data_dir", "command line", func(c *config.GeneralConfig) {
			c.DataDir = a.Flags.DataDir
		})
	}

	if a.Flags.Standalone {
		a.Conf.General().Override("standalone", "command line", func(c *config.GeneralConfig) {
			c.Standalone = true
		})
	}

	return nil
}

func (a *App) standalone() bool {
	return a.Conf.General().C().Standalone
}

func (a *App) openPanTilt() error {
	pt := a.Conf.PanTilt().C()

	opts := pantilt.Options{
		Port:         pt.Port,
		Baudrate:     pt.Baudrate,
		Address:      pt.Address,
		MoveTimeout:  pt.MoveTimeout.Value(),
		PollInterval: pt.PollInterval.Value(),
		NoGo:         noGoZone(pt.NoGo),
	}

	d, err := pantilt.Open(opts)
	if err != nil {
		return err
	}

	a.PanTilt = d
	return nil
}

func noGoZone(c *config.NoGoConfig) *pantilt.NoGoZone {
	if c == nil || c.TiltMin == nil || c.TiltMax == nil {
		return nil
	}
	return &pantilt.NoGoZone{TiltMin: *c.TiltMin, TiltMax: *c.TiltMax}
}

func (a *App) setupYoctopuce() {
	yc := a.Conf.Yoctopuce().C()

	a.Hub = yocto.NewHub(yc.URL, yc.RequestTimeout.Value(), yocto.Modules{
		Meteo:  yc.MeteoSerial,
		GPS:    yc.GPSSerial,
		WakeUp: yc.WakeUpSerial,
	}, a.Flags.Debug)

	if !a.Flags.UseGPS {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), yc.RequestTimeout.Value())
	defer cancel()

	fix, err := a.Hub.Location(ctx)
	if err != nil {
		log.Warn("gps position unavailable, keeping configured site", zap.Error(err))
		return
	}

	log.Info("using gps position", zap.Float64("latitude", fix.Latitude), zap.Float64("longitude", fix.Longitude), zap.String("time", fix.DateTime))
	a.Conf.Site().Override("latitude", "gps", func(c *config.SiteConfig) {
		c.Latitude = &fix.Latitude
	})
	a.Conf.Site().Override("longitude", "gps", func(c *config.SiteConfig) {
		c.Longitude = &fix.Longitude
	})
}

// OpenInstrument boots the configured instrument driver
func (a *App) OpenInstrument(ctx context.Context) (sequence.Instrument, error) {
	ic := a.Conf.Instrument().C()

	if ic.RequireUSB {
		if err := usb.Require(usb.RadiometerBridge); err != nil {
			return nil, fmt.Errorf("%w: %v", instrument.ErrNotReady, err)
		}
		if err := instrument.WaitForPort(ctx, ic.Port, ic.PortWait.Value()); err != nil {
			if limit, ok := misc.TimedOut(err); ok {
				log.Error("instrument did not boot", zap.String("port", ic.Port), zap.Duration("waited", limit))
			}
			return nil, fmt.Errorf("%w: %v", instrument.ErrNotReady, err)
		}
	}

	switch ic.Driver {
	case config.InstrumentDriverVirtual:
		return instrument.NewVirtual(instrument.VirtualOptions{}), nil
	}
	return nil, fmt.Errorf("unsupported instrument driver %q", ic.Driver)
}

// Runner builds a sequence runner for file from the loaded configuration
func (a *App) Runner(file string) *sequence.Runner {
	gc := a.Conf.General().C()
	pt := a.Conf.PanTilt().C()
	site := a.Conf.Site().C()
	yc := a.Conf.Yoctopuce().C()
	ic := a.Conf.Instrument().C()

	opts := sequence.Options{
		SequenceFile: file,
		DataDir:      gc.DataDir,
		Standalone:   gc.Standalone,
		Iteration:    a.Flags.Iteration,
		Orientation: geometry.Orientation{
			OffsetPan:     *pt.OffsetPan,
			OffsetTilt:    *pt.OffsetTilt,
			ReverseTilt:   pt.ReverseTilt,
			AzimuthSwitch: *pt.AzimuthSwitch,
			Latitude:      site.Latitude,
			Longitude:     site.Longitude,
			Elevation:     site.Elevation,
		},
		NoGo:             noGoZone(pt.NoGo),
		Tolerance:        pt.Tolerance,
		Attempts:         pt.Attempts,
		ParkTilt:         constants.PARK_TILT,
		BootTimeout:      ic.BootTimeout.Value(),
		SWIRTemperature:  gc.SWIRTemp,
		WatchdogInterval: yc.WatchInterval.Value(),
		LightInterval:    yc.LightInterval.Value(),
		Metadata:         a.Conf.Metadata(),
		SaveConfig:       a.Conf.SaveTo,
		Archive:          gc.Archive,
		MetricsFile:      gc.MetricsFile,
	}

	c := sequence.Collaborators{
		OpenInstrument: a.OpenInstrument,
		Sun:            geometry.MeeusSun{},
	}

	// keep nil interfaces nil
	if a.PanTilt != nil {
		c.Pointer = a.PanTilt
	}
	if a.Rain != nil {
		c.Rain = a.Rain
	}
	if a.Hub != nil {
		if yc.MeteoSerial != "" {
			c.Meteo = a.Hub
		}
		if yc.LightLogging {
			c.Light = a.Hub
		}
		if yc.Watchdog && yc.PoweroffMargin != nil {
			c.Power = a.Hub
			opts.PowerMargin = yc.PoweroffMargin.Value()
		}
	}

	return sequence.NewRunner(opts, c)
}

// Setup parses the command line and prepares every service the
// configuration asks for.
func Setup(instrumentation bool) (*App, error) {
	var flags config.CLIFlags
	if !instrumentation {
		flags = config.ParseCLIFlags()
	} else {
		flags = config.CLIFlags{Debug: true, Standalone: true, NoYocto: true, Iteration: 1}
	}
	return SetupWithFlags(flags, instrumentation)
}

func SetupWithFlags(flags config.CLIFlags, instrumentation bool) (*App, error) {
	app := App{Flags: flags, TestRunning: instrumentation}

	// Register a quit signal
	app.ExitSignal = make(chan os.Signal, 1)
	signal.Notify(app.ExitSignal, os.Interrupt, syscall.SIGTERM)

	// Initialize logger
	log.Init(flags.Debug)
	log.Info("hypernets sequencer starting", zap.String("version", constants.HYPERNETS_TOOLS_VERSION))

	if err := app.loadConfiguration(flags.ConfigPath, instrumentation); err != nil {
		app.Shutdown()
		return nil, err
	}

	if !flags.Debug {
		log.SetLevel(app.Conf.General().C().Verbosity)
	}

	// Startup output only, a missing bridge is reported by the instrument
	if !instrumentation {
		if _, err := usb.Scan(); err != nil {
			log.Warn("usb scan failed", zap.Error(err))
		}
	}

	if !app.standalone() {
		if err := app.openPanTilt(); err != nil {
			app.Shutdown()
			return nil, fmt.Errorf("pan-tilt: %w", err)
		}
	}

	if !flags.NoYocto {
		app.setupYoctopuce()
	}

	if rc := app.Conf.Rain().C(); rc.Enabled {
		app.Rain = rain.NewSensor(rc.Command, rc.Args...)
	}

	return &app, nil
}

// Run executes file and cancels the run on SIGINT or SIGTERM
func (a *App) Run(file string) (*sequence.Outcome, error) {
	if file == "" {
		return &sequence.Outcome{Reason: sequence.SequenceMissing}, &sequence.AbortError{
			Reason: sequence.SequenceMissing,
			Err:    errors.New("no sequence file given"),
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case sig := <-a.ExitSignal:
			log.Warn("signal received, stopping sequence", zap.String("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	return a.Runner(file).Run(ctx)
}
