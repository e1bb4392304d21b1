package rain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

// Sensor runs an external probe program. Exit status 0 means dry,
// 1 means rain, anything else is a sensor failure.
type Sensor struct {
	Command string
	Args    []string
}

func NewSensor(command string, args ...string) *Sensor {
	return &Sensor{Command: command, Args: args}
}

func (s *Sensor) Raining(ctx context.Context) (bool, error) {
	out, err := exec.CommandContext(ctx, s.Command, s.Args...).CombinedOutput()
	if err == nil {
		return false, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
		log.Debug("rain sensor reports rain", zap.ByteString("output", out))
		return true, nil
	}

	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	return false, fmt.Errorf("rain sensor %s: %w", s.Command, err)
}

// Dry is used when no rain sensor is installed
type Dry struct{}

func (Dry) Raining(context.Context) (bool, error) {
	return false, nil
}
