package misc

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFoldDegrees(t *testing.T) {
	for _, in := range []float64{-720.5, -360, -0.0001, 0, 45, 359.999, 360, 725, 1e9, -1e9} {
		out := FoldDegrees(in)
		assert.GreaterOrEqual(t, out, 0.0, "input %v", in)
		assert.Less(t, out, 360.0, "input %v", in)
	}

	assert.Equal(t, 90.0, FoldDegrees(-270))
	assert.Equal(t, 0.0, FoldDegrees(360))
	assert.Equal(t, 5.0, FoldDegrees(725))
}

func TestAngularDistance(t *testing.T) {
	assert.InDelta(t, 2.0, AngularDistance(359, 1), 1e-9)
	assert.InDelta(t, 0.5, AngularDistance(90.5, 90), 1e-9)
	assert.InDelta(t, 180.0, AngularDistance(0, 180), 1e-9)
}

func TestTimedOutError(t *testing.T) {
	err := fmt.Errorf("pan-tilt: %w", NewTimedOutError("position did not settle", 65*time.Second))
	assert.True(t, errors.Is(err, &TimedOutError{}))
	assert.Equal(t, "pan-tilt: position did not settle: gave up after 1m5s", err.Error())

	limit, ok := TimedOut(err)
	assert.True(t, ok)
	assert.Equal(t, 65*time.Second, limit)

	_, ok = TimedOut(errors.New("other"))
	assert.False(t, ok)
}
