package sequence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hypernets/sequencer/pkg/file"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDirectoryLifecycle(t *testing.T) {
	log.Init(true)

	base := t.TempDir()
	seq := filepath.Join(base, "water.txt")
	require.NoError(t, os.WriteFile(seq, []byte("HypernetsProtocol v2.0\n"), 0o600))

	data := filepath.Join(base, "DATA")
	start := time.Date(2024, 5, 4, 10, 11, 12, 0, time.FixedZone("CEST", 2*3600))

	d, err := createRunDirectory(data, seq, start)
	require.NoError(t, err)
	// names are always UTC
	assert.Equal(t, filepath.Join(data, "CUR20240504T081112"), d.path)
	assert.DirExists(t, filepath.Join(d.path, RadiometerDir))
	assert.FileExists(t, d.file("water.txt"))

	second, err := createRunDirectory(data, seq, start)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(data, "CUR20240504T081112-001"), second.path)

	final, err := d.commit()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(data, "SEQ20240504T081112"), final)

	final, err = second.commit()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(data, "SEQ20240504T081112-001"), final)
	assert.NoDirExists(t, filepath.Join(data, "CUR20240504T081112-001"))
}

func TestCreateRunDirectoryMissingSequence(t *testing.T) {
	_, err := createRunDirectory(t.TempDir(), filepath.Join(t.TempDir(), "missing.txt"), time.Now())
	assert.Error(t, err)
}

func TestCreateRunDirectoryDataDirIsFile(t *testing.T) {
	base := t.TempDir()
	seq := filepath.Join(base, "water.txt")
	require.NoError(t, os.WriteFile(seq, []byte("HypernetsProtocol v2.0\n"), 0o600))

	data := filepath.Join(base, "DATA")
	require.NoError(t, os.WriteFile(data, nil, 0o600))

	_, err := createRunDirectory(data, seq, time.Now())
	assert.ErrorIs(t, err, file.ErrPathIsFile)
}
