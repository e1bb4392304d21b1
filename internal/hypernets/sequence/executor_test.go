package sequence

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hypernets/sequencer/internal/hypernets/instrument"
	"github.com/hypernets/sequencer/internal/hypernets/pantilt"
	"github.com/hypernets/sequencer/pkg/misc"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const twoLines = `HypernetsProtocol v2.0
@0,abs,90,abs+vis.rad.0.0+vis.dark.0.0
@180,abs,45,abs+picture
`

func TestRunCompleted(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, twoLines)
	out, err := f.run()
	require.NoError(t, err)

	assert.Equal(t, Completed, out.Reason)
	assert.Equal(t, f.path("SEQ20240504T101112"), out.Directory)
	assert.Equal(t, 3, out.Requests)
	assert.Equal(t, 0, out.Errors)
	assert.NoDirExists(t, f.path("CUR20240504T101112"))

	moves, parks := f.pointer.count()
	assert.Equal(t, 2, moves)
	assert.Equal(t, 0, parks)

	assert.FileExists(t, f.path("SEQ20240504T101112", "sequence.txt"))
	assert.FileExists(t, f.path("SEQ20240504T101112", RadiometerDir, "01_001_0000_4_0090_128_16_0000_01_0000.spe"))
	// the dark capture reuses the integration time of the previous capture
	assert.FileExists(t, f.path("SEQ20240504T101112", RadiometerDir, "01_002_0000_4_0090_128_00_0064_01_0000.spe"))
	assert.FileExists(t, f.path("SEQ20240504T101112", RadiometerDir, "01_003_0180_4_0045.jpg"))

	md := f.read("SEQ20240504T101112", MetadataFile)
	assert.True(t, strings.HasPrefix(md, "[Metadata]\nprincipal_investigator = Nobody\nsite_name = Test Site\n"))
	assert.Contains(t, md, "protocol_file_name = sequence.txt\n")
	assert.Contains(t, md, "protocol_version = 2.0\n")
	assert.Contains(t, md, "hypstar_sn = 220241\n")
	assert.Contains(t, md, "latitude = 43.7\n")
	assert.Contains(t, md, "\n[01_001_0000_4_0090]\n01_001_0000_4_0090_128_16_0000_01_0000.spe=20240504T101112\n"+
		"pt_ask=0.00; 90.00\npt_abs=0.00;90.00\npt_ref=0.00; 90.00\n")
	assert.Contains(t, md, "\n[01_003_0180_4_0045]\n01_003_0180_4_0045.jpg=20240504T101112\n")

	assert.Equal(t, 2.0, testutil.ToFloat64(f.runner.Metrics().Requests.WithLabelValues("measurement", "ok")))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.runner.Metrics().ExitCode))

	// the instrument is released at teardown
	_, err = f.virtual.EnvLog(context.Background())
	assert.ErrorIs(t, err, instrument.ErrNoResponse)
}

func TestRunNamesSpectraWithRequestedIT(t *testing.T) {
	f := newFixture(t, "HypernetsProtocol v2.0\n@0,abs,90,abs+vis.rad.0.0\n")
	_, err := f.run()
	require.NoError(t, err)

	md := f.read("SEQ20240504T101112", MetadataFile)
	assert.Contains(t, md, "_0000_01_0000.spe=")
}

func TestRunFlags(t *testing.T) {
	// elapsed time stays 0 with a pinned clock
	sequence := `HypernetsProtocol v2.0
~never~$elapsed_time:>100
~always~$elapsed_time:=>0
~cold~$undefined:<5
@[10,abs,90,abs,always,never]+vis.rad.0.0
@[20,abs,90,abs,never,always]+vis.rad.0.0
@[30,abs,90,abs,unknown]+vis.rad.0.0
@[40,abs,90,abs,cold]+vis.rad.0.0
@[50,abs,90,abs,always,cold]+vis.rad.0.0
@[60,abs,90,abs,cold,always]+vis.rad.0.0
`
	f := newFixture(t, sequence)
	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, 3, out.Requests)

	md := f.read("SEQ20240504T101112", MetadataFile)
	assert.NotContains(t, md, "[01_001_0010")
	assert.Contains(t, md, "[01_001_0020_4_0090]")
	assert.Contains(t, md, "[01_002_0030_4_0090]")
	assert.NotContains(t, md, "_0040_4_")
	assert.NotContains(t, md, "_0050_4_")
	assert.Contains(t, md, "[01_003_0060_4_0090]")

	assert.Equal(t, 3.0, testutil.ToFloat64(f.runner.Metrics().LinesSkipped.WithLabelValues("flag")))
}

func TestRunValidationFailureParksOnceAndAborts(t *testing.T) {
	defer goleak.VerifyNone(t)

	sequence := `HypernetsProtocol v2.0
@0,abs,90,abs+vis.rad.0.0
@0,abs,45,abs+validation.vis.irr.0.0
@0,abs,10,abs+vis.rad.0.0
`
	f := newFixture(t, sequence)
	f.virtual.ValidateErr = errors.New("validation light failure")

	out, err := f.run()
	require.Error(t, err)
	assert.ErrorIs(t, err, &AbortError{Reason: ValidationFailed})
	assert.Equal(t, ValidationFailed, out.Reason)
	assert.Equal(t, 2, out.Requests)
	assert.Equal(t, 1, out.Errors)

	moves, parks := f.pointer.count()
	assert.Equal(t, 2, moves)
	assert.Equal(t, 1, parks)

	// the working directory stays with everything written so far
	assert.Equal(t, f.path("CUR20240504T101112"), out.Directory)
	md := f.read("CUR20240504T101112", MetadataFile)
	assert.Contains(t, md, "[01_002_0000_4_0045]")
	assert.NotContains(t, md, "_0010]")
	assert.NoDirExists(t, f.path("SEQ20240504T101112"))
}

func TestRunCaptureErrorsAreCounted(t *testing.T) {
	f := newFixture(t, twoLines)
	f.virtual.CaptureErr = errors.New("usb timeout")

	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, Completed, out.Reason)
	assert.Equal(t, 3, out.Requests)
	assert.Equal(t, 2, out.Errors)

	md := f.read("SEQ20240504T101112", MetadataFile)
	assert.Equal(t, 3, strings.Count(md, "pt_ref="))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.runner.Metrics().Requests.WithLabelValues("picture", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.runner.Metrics().Requests.WithLabelValues("measurement", "error")))
}

func TestRunDirectoryCollision(t *testing.T) {
	f := newFixture(t, twoLines)
	require.NoError(t, os.MkdirAll(f.path("CUR20240504T101112"), 0o750))
	require.NoError(t, os.MkdirAll(f.path("SEQ20240504T101112"), 0o750))
	require.NoError(t, os.MkdirAll(f.path("SEQ20240504T101112-001"), 0o750))

	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, f.path("SEQ20240504T101112-002"), out.Directory)

	// nothing existing was touched
	assert.DirExists(t, f.path("CUR20240504T101112"))
	assert.NoDirExists(t, f.path("CUR20240504T101112-001"))
	entries, err := os.ReadDir(f.path("SEQ20240504T101112"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunRainBeforeStart(t *testing.T) {
	f := newFixture(t, twoLines)
	rain := &fakeRain{answers: []bool{true}}
	f.collabs.Rain = rain

	out, err := f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: RainBeforeStart})
	assert.Equal(t, RainBeforeStart, out.Reason)
	assert.Empty(t, out.Directory)
	assert.NoDirExists(t, f.dataDir)

	_, parks := f.pointer.count()
	assert.Equal(t, 1, parks)
}

func TestRunRainDuringRun(t *testing.T) {
	f := newFixture(t, twoLines)
	f.collabs.Rain = &fakeRain{answers: []bool{false, false, true}}

	out, err := f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: RainDuringRun})
	assert.Equal(t, 2, out.Requests)

	moves, parks := f.pointer.count()
	assert.Equal(t, 1, moves)
	assert.Equal(t, 1, parks)
	assert.DirExists(t, f.path("CUR20240504T101112"))
}

func TestRunSequenceErrors(t *testing.T) {
	f := newFixture(t, "HypernetsProtocol v2.0\nvis.rad.0.0\n")
	out, err := f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: SequenceMalformed})
	assert.Equal(t, SequenceMalformed, out.Reason)

	f.opts.SequenceFile = f.seqFile + ".missing"
	out, err = f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: SequenceMissing})
	assert.Equal(t, 2, out.Reason.ExitCode())

	moves, parks := f.pointer.count()
	assert.Zero(t, moves+parks)
}

func TestRunSWIRCooling(t *testing.T) {
	sequence := "HypernetsProtocol v2.0\n@0,abs,90,abs+swi.rad.0.0\n"

	f := newFixture(t, sequence)
	f.virtual = instrument.NewVirtual(instrument.VirtualOptions{TECSettleAttempts: 2})
	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, Completed, out.Reason)
	assert.False(t, f.virtual.TECOn())

	f = newFixture(t, sequence)
	f.virtual = instrument.NewVirtual(instrument.VirtualOptions{TECSettleAttempts: 5})
	out, err = f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: HardwareNotReady})
	assert.ErrorIs(t, err, instrument.ErrNotReady)
	assert.Equal(t, 0, out.Requests)

	moves, _ := f.pointer.count()
	assert.Zero(t, moves)
}

func TestRunInstrumentOpenErrors(t *testing.T) {
	f := newFixture(t, twoLines)
	f.collabs.OpenInstrument = func(context.Context) (Instrument, error) {
		return nil, instrument.ErrNotReady
	}
	_, err := f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: HardwareNotReady})

	f.collabs.OpenInstrument = func(context.Context) (Instrument, error) {
		return nil, errors.New("no boot packet")
	}
	out, err := f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: InstrumentNoResponse})
	assert.Equal(t, 6, out.Reason.ExitCode())
}

func TestRunInstrumentBootTimeout(t *testing.T) {
	f := newFixture(t, twoLines)
	f.opts.BootTimeout = 20 * time.Millisecond

	release := make(chan struct{})
	f.collabs.OpenInstrument = func(context.Context) (Instrument, error) {
		<-release
		return f.virtual, nil
	}

	out, err := f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: HardwareNotReady})
	assert.ErrorIs(t, err, instrument.ErrNotReady)
	assert.ErrorIs(t, err, &misc.TimedOutError{})
	assert.Equal(t, 27, out.Reason.ExitCode())
	assert.Equal(t, 0, out.Requests)

	// a late instrument is released
	close(release)
	assert.Eventually(t, func() bool {
		_, err := f.virtual.EnvLog(context.Background())
		return errors.Is(err, instrument.ErrNoResponse)
	}, time.Second, 5*time.Millisecond)
}

func TestRunPositionUnknown(t *testing.T) {
	f := newFixture(t, "HypernetsProtocol v2.0\n@0,abs,90,abs+vis.rad.0.0\n")
	f.pointer.unknown = true

	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, 1, out.Errors)

	moves, _ := f.pointer.count()
	assert.Equal(t, 2, moves)

	md := f.read("SEQ20240504T101112", MetadataFile)
	assert.Contains(t, md, "pt_ref=-999.00; -999.00\n")
}

func TestRunNoGoZone(t *testing.T) {
	sequence := `HypernetsProtocol v2.0
@0,abs,120,abs+vis.rad.0.0
@0,abs,90,abs+vis.rad.0.0
`
	f := newFixture(t, sequence)
	f.opts.NoGo = &pantilt.NoGoZone{TiltMin: 100, TiltMax: 150}

	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, 1, out.Requests)

	moves, _ := f.pointer.count()
	assert.Equal(t, 1, moves)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.runner.Metrics().LinesSkipped.WithLabelValues("nogo")))
}

func TestRunStandalone(t *testing.T) {
	f := newFixture(t, "HypernetsProtocol v2.0\n@90,sun,40,hyp+vis.rad.0.0\n")
	f.opts.Standalone = true

	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, 1, out.Requests)

	moves, parks := f.pointer.count()
	assert.Zero(t, moves+parks)

	md := f.read("SEQ20240504T101112", MetadataFile)
	assert.Contains(t, md, "pt_ref=0.00; 0.00\n")
	assert.NotContains(t, md, "offset_pan")
}

func TestRunPowerWatchdog(t *testing.T) {
	defer goleak.VerifyNone(t)

	sequence := "HypernetsProtocol v2.0\n" + strings.Repeat("@0,abs,90,abs+vis.rad.0.0\n", 20)
	f := newFixture(t, sequence)
	f.pointer.delay = 20 * time.Millisecond
	f.collabs.Power = &fakePower{countdown: 30 * time.Second}
	f.opts.PowerMargin = time.Minute

	out, err := f.run()
	assert.ErrorIs(t, err, &AbortError{Reason: PowerShutdown})
	assert.Less(t, out.Requests, 20)

	_, parks := f.pointer.count()
	assert.Equal(t, 1, parks)
}

func TestRunPowerWatchdogIdle(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(t, twoLines)
	// countdown beyond the margin, no shutdown
	f.collabs.Power = &fakePower{countdown: time.Hour}
	f.opts.PowerMargin = time.Minute

	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, Completed, out.Reason)
}

func TestRunArchiveAndMetricsFile(t *testing.T) {
	f := newFixture(t, twoLines)
	f.opts.Archive = true
	f.opts.MetricsFile = f.path("..", "hypernets.prom")
	f.opts.SaveConfig = func(path string) error {
		return os.WriteFile(path, []byte("[general]\n"), 0o600)
	}

	_, err := f.run()
	require.NoError(t, err)

	assert.FileExists(t, f.path("SEQ20240504T101112.zip"))
	assert.FileExists(t, f.path("SEQ20240504T101112", ConfigFile))
	assert.Contains(t, f.read("..", "hypernets.prom"), "hypernets_sequence_requests_total")
}

func TestRunSunGeometry(t *testing.T) {
	f := newFixture(t, "HypernetsProtocol v2.0\n@90,sun,30,sun+vis.rad.0.0\n")
	f.opts.Orientation.Latitude = nil

	// without a location the line cannot be resolved
	out, err := f.run()
	require.NoError(t, err)
	assert.Equal(t, 0, out.Requests)
	assert.Equal(t, 1, out.Errors)

	f.opts.Orientation.Latitude = misc.Ptr(43.7)
	out, err = f.run()
	require.NoError(t, err)
	assert.Equal(t, 1, out.Requests)

	f.pointer.mu.Lock()
	last := f.pointer.moves[len(f.pointer.moves)-1]
	f.pointer.mu.Unlock()
	// azimuth 120 is before the switch: 120 + 90, zenith 40 -> 140 + 30
	assert.InDelta(t, 210, *last.pan, 1e-9)
	assert.InDelta(t, 170, *last.tilt, 1e-9)
}
