package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/hypernets/sequencer/internal/hypernets/app"
	"github.com/hypernets/sequencer/internal/hypernets/sequence"
	"github.com/hypernets/sequencer/pkg/log"
	"github.com/hypernets/sequencer/pkg/systemd"
	"go.uber.org/zap"
)

const watchdogPeriod = 10 * time.Second

// exitCode maps the run result to the status the scheduler scripts expect
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var abortErr *sequence.AbortError
	if errors.As(err, &abortErr) {
		return abortErr.Reason.ExitCode()
	}
	return 1
}

func main() {
	a, err := app.Setup(false)
	if err != nil || a == nil {
		fmt.Printf("Initialization failed, error: %s\n", err)
		os.Exit(1)
	}

	// Not running under systemd is fine
	_ = systemd.Notify(systemd.NotifyReady)
	_ = systemd.Status("running " + a.Flags.SequenceFile)

	// Keep the systemd watchdog happy while the sequence runs
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(watchdogPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = systemd.EntertainWatchdog()
				_ = systemd.ExtendTimeout(2 * watchdogPeriod)
			case <-done:
				return
			}
		}
	}()

	out, err := a.Run(a.Flags.SequenceFile)
	close(done)

	code := exitCode(err)
	if err != nil {
		log.Error("sequence did not complete", zap.Error(err), zap.Int("exit_code", code))
	} else if out != nil {
		log.Info("sequence completed", zap.String("directory", out.Directory), zap.Int("errors", out.Errors))
	}

	_ = systemd.Stopping(code, fmt.Sprintf("finished with exit code %d", code))

	// Shutdown everything
	a.Shutdown()

	// Exit with the proper code
	os.Exit(code)
}
