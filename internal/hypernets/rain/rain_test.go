package rain

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, status int) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rain_sensor")
	script := "#!/bin/sh\necho probing\nexit " + string(rune('0'+status)) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestRaining(t *testing.T) {
	raining, err := NewSensor(probe(t, 0)).Raining(context.Background())
	require.NoError(t, err)
	assert.False(t, raining)

	raining, err = NewSensor(probe(t, 1)).Raining(context.Background())
	require.NoError(t, err)
	assert.True(t, raining)
}

func TestSensorFailure(t *testing.T) {
	_, err := NewSensor(probe(t, 3)).Raining(context.Background())
	assert.Error(t, err)

	_, err = NewSensor(filepath.Join(t.TempDir(), "missing")).Raining(context.Background())
	assert.Error(t, err)
}

func TestDry(t *testing.T) {
	raining, err := Dry{}.Raining(context.Background())
	require.NoError(t, err)
	assert.False(t, raining)
}
