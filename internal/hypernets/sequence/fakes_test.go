package sequence

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/instrument"
	"github.com/hypernets/sequencer/internal/hypernets/pantilt"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/hypernets/sequencer/pkg/misc"
	"github.com/stretchr/testify/require"
)

var testStart = time.Date(2024, 5, 4, 10, 11, 12, 0, time.UTC)

type move struct {
	pan  *float64
	tilt *float64
}

type fakePointer struct {
	mu      sync.Mutex
	moves   []move
	unknown bool
	delay   time.Duration
}

func (f *fakePointer) MoveTo(_ context.Context, pan, tilt *float64, _ bool) (pantilt.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m := move{}
	if pan != nil {
		m.pan = misc.Ptr(*pan)
	}
	if tilt != nil {
		m.tilt = misc.Ptr(*tilt)
	}
	f.moves = append(f.moves, m)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.unknown {
		return pantilt.Result{}, nil
	}

	res := pantilt.Result{Known: true}
	if pan != nil {
		res.Pan = int(math.Round(*pan * 100))
	}
	if tilt != nil {
		res.Tilt = int(math.Round(*tilt * 100))
	}
	return res, nil
}

func (f *fakePointer) count() (moves int, parks int) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, m := range f.moves {
		if m.pan == nil {
			parks++
		} else {
			moves++
		}
	}
	return moves, parks
}

type fakeRain struct {
	mu      sync.Mutex
	answers []bool
	calls   int
}

// Raining replays answers, the last one repeats
func (f *fakeRain) Raining(context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := min(f.calls, len(f.answers)-1)
	f.calls++
	return f.answers[i], nil
}

type fakePower struct {
	countdown time.Duration
}

func (f *fakePower) PowerOffCountdown(context.Context) (time.Duration, error) {
	return f.countdown, nil
}

type fixture struct {
	t       *testing.T
	seqFile string
	dataDir string
	pointer *fakePointer
	virtual *instrument.Virtual
	opts    Options
	collabs Collaborators
	runner  *Runner
}

func newFixture(t *testing.T, sequence string) *fixture {
	t.Helper()
	log.Init(true)

	dir := t.TempDir()
	seqFile := filepath.Join(dir, "sequence.txt")
	require.NoError(t, os.WriteFile(seqFile, []byte(sequence), 0o600))

	f := &fixture{
		t:       t,
		seqFile: seqFile,
		dataDir: filepath.Join(dir, "DATA"),
		pointer: &fakePointer{},
		virtual: instrument.NewVirtual(instrument.VirtualOptions{}),
	}
	f.opts = Options{
		SequenceFile: seqFile,
		DataDir:      f.dataDir,
		Orientation: geometry.Orientation{
			AzimuthSwitch: 180,
			Latitude:      misc.Ptr(43.7),
			Longitude:     misc.Ptr(7.3),
		},
		TECInterval:      time.Millisecond,
		WatchdogInterval: 5 * time.Millisecond,
		Metadata:         map[string]string{"site_name": "Test Site", "principal_investigator": "Nobody"},
	}
	f.collabs = Collaborators{
		Pointer: f.pointer,
		Sun:     geometry.FixedSun{Azimuth: 120, Zenith: 40},
		OpenInstrument: func(context.Context) (Instrument, error) {
			return f.virtual, nil
		},
	}
	return f
}

func (f *fixture) run() (*Outcome, error) {
	f.runner = NewRunner(f.opts, f.collabs)
	f.runner.now = func() time.Time { return testStart }
	return f.runner.Run(context.Background())
}

func (f *fixture) path(elem ...string) string {
	return filepath.Join(append([]string{f.dataDir}, elem...)...)
}

func (f *fixture) read(elem ...string) string {
	f.t.Helper()
	data, err := os.ReadFile(f.path(elem...))
	require.NoError(f.t, err)
	return string(data)
}
