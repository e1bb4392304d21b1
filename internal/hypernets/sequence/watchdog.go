package sequence

import (
	"context"
	"sync"
	"time"

	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// watchdog polls the power monitor and handles an imminent shutdown: it
// raises the tripped flag, runs the emergency action and closes done.
type watchdog struct {
	monitor  PowerMonitor
	margin   time.Duration
	interval time.Duration
	onTrip   func(ctx context.Context)

	tripped *atomic.Bool
	done    chan struct{}

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newWatchdog(monitor PowerMonitor, margin, interval time.Duration, onTrip func(ctx context.Context)) *watchdog {
	return &watchdog{
		monitor:  monitor,
		margin:   margin,
		interval: interval,
		onTrip:   onTrip,
		tripped:  atomic.NewBool(false),
		done:     make(chan struct{}),
	}
}

func (w *watchdog) start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		log.Debug("power watchdog started", zap.Duration("margin", w.margin), zap.Duration("interval", w.interval))

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			if w.poll(ctx) {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (w *watchdog) poll(ctx context.Context) bool {
	countdown, err := w.monitor.PowerOffCountdown(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("power countdown unavailable", zap.Error(err))
		}
		return false
	}

	// zero means no shutdown scheduled
	if countdown <= 0 || countdown > w.margin {
		return false
	}

	log.Error("power shutdown imminent", zap.Duration("countdown", countdown))
	w.tripped.Store(true)
	w.onTrip(ctx)
	close(w.done)
	return true
}

// check reports whether the watchdog tripped. When it did, it blocks until
// the emergency action has finished.
func (w *watchdog) check() bool {
	if w == nil || !w.tripped.Load() {
		return false
	}
	<-w.done
	return true
}

func (w *watchdog) stop() {
	if w == nil || w.cancel == nil {
		return
	}
	w.cancel()
	w.wg.Wait()
}
