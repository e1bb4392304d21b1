package sequence

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hypernets/sequencer/internal/hypernets/request"
	"github.com/hypernets/sequencer/pkg/file"
	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

const (
	PrefixWorking = "CUR"
	PrefixFinal   = "SEQ"

	RadiometerDir = "RADIOMETER"
	MetadataFile  = "metadata.txt"
	MeteoFile     = "meteo.csv"
	LightFile     = "lightsensor.csv"
	ConfigFile    = "config.toml"
)

// SeqName is the run directory name for prefix and start time
func SeqName(prefix string, start time.Time) string {
	return prefix + start.UTC().Format(request.TimestampLayout)
}

// runDirectory is the working directory of a run. It is renamed from
// CUR<start> to SEQ<start> once the run completed, existing directories
// are never overwritten.
type runDirectory struct {
	dataDir string
	start   time.Time
	path    string
}

func createRunDirectory(dataDir, sequenceFile string, start time.Time) (*runDirectory, error) {
	if err := file.IsDir(dataDir); errors.Is(err, file.ErrPathIsFile) {
		return nil, fmt.Errorf("data directory %s: %w", dataDir, err)
	}
	if err := os.MkdirAll(dataDir, 0750); err != nil {
		return nil, err
	}

	path, err := file.UniquePath(filepath.Join(dataDir, SeqName(PrefixWorking, start)))
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Join(path, RadiometerDir), 0750); err != nil {
		return nil, err
	}

	if err := file.CopyFile(sequenceFile, filepath.Join(path, filepath.Base(sequenceFile))); err != nil {
		return nil, fmt.Errorf("copy sequence file: %w", err)
	}

	log.Info("run directory created", zap.String("path", path))
	return &runDirectory{dataDir: dataDir, start: start, path: path}, nil
}

func (d *runDirectory) file(name string) string {
	return filepath.Join(d.path, name)
}

func (d *runDirectory) spectra(name string) string {
	return filepath.Join(d.path, RadiometerDir, name)
}

// commit renames the working directory to its final name
func (d *runDirectory) commit() (string, error) {
	final, err := file.UniquePath(filepath.Join(d.dataDir, SeqName(PrefixFinal, d.start)))
	if err != nil {
		return "", err
	}

	if err := file.MoveFile(d.path, final); err != nil {
		return "", err
	}

	log.Info("run directory committed", zap.String("path", final))
	d.path = final
	return final, nil
}
