package instrument

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/hypernets/sequencer/pkg/misc"
	"go.uber.org/zap"
)

var PortPollInterval = time.Second

// WaitForPort blocks until the radiometer device node shows up. The node
// has to be a symlink created by udev, a plain file means a misconfigured
// system.
func WaitForPort(ctx context.Context, path string, timeout time.Duration) error {
	log.Info("waiting for instrument port", zap.String("port", path), zap.Duration("timeout", timeout))

	retries := uint64(timeout / PortPollInterval)
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(PortPollInterval), retries), ctx)

	op := func() error {
		_, err := os.Lstat(path)
		if err != nil {
			log.Debug("instrument port not there yet", zap.String("port", path))
		}
		return err
	}

	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return misc.NewTimedOutError(path+" did not appear", timeout)
	}

	fi, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSymlink == 0 {
		return fmt.Errorf("%s is not a link", path)
	}
	return nil
}
