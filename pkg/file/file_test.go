package file

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hypernets/sequencer/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestZipArchiveDirectory(t *testing.T) {
	log.Init(true)

	seqDir := filepath.Join(t.TempDir(), "SEQ20240101T120000")
	files := map[string]string{
		"metadata.txt": "[Metadata]\n",
		"RADIOMETER/01_001_0000_4_0090_128_16_0000_01_0000.spe": strings.Repeat("boring sample spectrum", 1000),
		"RADIOMETER/01_002_0000_4_0090.jpg":                     "jpeg",
	}
	for name, content := range files {
		require.NoError(t, WriteTo(filepath.Join(seqDir, name), []byte(content)))
	}

	archivePath := seqDir + ".zip"
	require.NoError(t, CreateArchive(seqDir, seqDir))
	assert.FileExists(t, archivePath)

	zf, err := zip.OpenReader(archivePath)
	require.NoError(t, err)
	defer func() { _ = zf.Close() }()

	assert.Len(t, zf.File, len(files))
	for _, f := range zf.File {
		content, ok := files[f.Name]
		assert.True(t, ok, "unexpected entry %s", f.Name)
		assert.Equal(t, uint64(len(content)), f.UncompressedSize64)
	}

	// the repetitive spectrum must compress
	zipSize, err := GetFileSize(archivePath)
	require.NoError(t, err)
	assert.Less(t, zipSize, int64(len(files["RADIOMETER/01_001_0000_4_0090_128_16_0000_01_0000.spe"])))
}

func TestUniquePath(t *testing.T) {
	base := filepath.Join(t.TempDir(), "SEQ20240101T120000")

	p, err := UniquePath(base)
	assert.NoError(t, err)
	assert.Equal(t, base, p)

	require.NoError(t, os.Mkdir(base, 0750))
	p, err = UniquePath(base)
	assert.NoError(t, err)
	assert.Equal(t, base+"-001", p)

	require.NoError(t, os.Mkdir(base+"-001", 0750))
	p, err = UniquePath(base)
	assert.NoError(t, err)
	assert.Equal(t, base+"-002", p)
}

func TestCopyFileAndChecks(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "sequence.txt")
	dst := filepath.Join(dir, "run", "sequence.txt")

	require.NoError(t, WriteTo(src, []byte("HypernetsProtocol v2.0\n")))
	require.NoError(t, CopyFile(src, dst))

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "HypernetsProtocol v2.0\n", string(data))

	assert.NoError(t, Exists(dst))
	assert.ErrorIs(t, Exists(dir), ErrPathIsDir)
	assert.NoError(t, IsDir(dir))
	assert.ErrorIs(t, IsDir(dst), ErrPathIsFile)
}
