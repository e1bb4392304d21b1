package sequence

import (
	"testing"
	"time"

	"github.com/hypernets/sequencer/internal/hypernets/geometry"
	"github.com/hypernets/sequencer/internal/hypernets/protocol"
	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEvalFlagsThreshold(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	log.Replace(zap.New(core))

	flags := map[string]protocol.Condition{
		"late": {Variable: VarElapsedTime, Operator: protocol.OpGreaterEqual, Threshold: 100},
	}
	g := geometry.FromCode(4, 0, 90, "late")

	s := newRunState(time.Now())
	s.vars[VarElapsedTime] = 150
	assert.True(t, s.evalFlags(flags, g))

	s.vars[VarElapsedTime] = 50
	assert.False(t, s.evalFlags(flags, g))

	delete(s.vars, VarElapsedTime)
	assert.False(t, s.evalFlags(flags, g))
	assert.Equal(t, 1, logs.FilterMessage("flag variable not set, condition is false").Len())
}

func TestEvalFlagsLastWins(t *testing.T) {
	log.Init(true)

	flags := map[string]protocol.Condition{
		"yes": {Variable: VarElapsedTime, Operator: protocol.OpGreaterEqual, Threshold: 0},
		"no":  {Variable: VarElapsedTime, Operator: protocol.OpLess, Threshold: 0},
	}
	s := newRunState(time.Now())

	assert.False(t, s.evalFlags(flags, geometry.FromCode(4, 0, 0, "yes", "no")))
	assert.True(t, s.evalFlags(flags, geometry.FromCode(4, 0, 0, "no", "yes")))
	assert.True(t, s.evalFlags(flags, geometry.FromCode(4, 0, 0, "no", "undefined", "yes", "undefined")))
	assert.True(t, s.evalFlags(flags, geometry.FromCode(4, 0, 0)))
}

func TestRefreshElapsed(t *testing.T) {
	start := time.Date(2024, 5, 4, 10, 0, 0, 0, time.UTC)
	s := newRunState(start)
	s.refreshElapsed(start.Add(90 * time.Second))
	assert.Equal(t, 90.0, s.vars[VarElapsedTime])
}

func TestPrepareAndRecord(t *testing.T) {
	s := newRunState(time.Now())

	dark, err := request.FromParams(1, "bot", "dark", "0", "0")
	require.NoError(t, err)

	// nothing known yet
	r := s.prepare(dark)
	assert.Equal(t, 0, r.ITVNIR)

	rad, err := request.FromParams(1, "bot", "rad", "0", "0")
	require.NoError(t, err)
	r = s.prepare(rad)
	r.ITVNIR, r.ITSWIR = 128, 256
	s.record(1, r)

	assert.Equal(t, 0, rad.ITVNIR, "parsed request must not change")
	assert.Equal(t, 128.0, s.vars["$spectra_file1.it_vnir"])
	assert.Equal(t, 256.0, s.vars["$spectra_file1.it_swir"])

	r = s.prepare(dark)
	assert.Equal(t, 128, r.ITVNIR)
	assert.Equal(t, 256, r.ITSWIR)
	assert.Equal(t, 0, dark.ITVNIR)

	// fixed integration times are kept
	fixed, err := request.FromParams(1, "vis", "dark", "32", "0")
	require.NoError(t, err)
	assert.Equal(t, 32, s.prepare(fixed).ITVNIR)
}
