package yocto

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/hypernets/sequencer/pkg/log"
	"go.uber.org/zap"
)

// LightSampler returns one light sensor reading
type LightSampler interface {
	LightLevel(ctx context.Context) (float64, error)
}

// LightLogger appends "timestamp<TAB>value" lines to w until stopped
type LightLogger struct {
	sampler  LightSampler
	w        io.Writer
	interval time.Duration
	now      func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewLightLogger(sampler LightSampler, w io.Writer, interval time.Duration) *LightLogger {
	if interval <= 0 {
		interval = time.Second
	}
	return &LightLogger{sampler: sampler, w: w, interval: interval, now: time.Now}
}

// Start launches the sampling goroutine, it ends with ctx or Stop
func (l *LightLogger) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		log.Debug("starting light sensor logging", zap.Duration("interval", l.interval))

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			l.sample(ctx)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

func (l *LightLogger) sample(ctx context.Context) {
	v, err := l.sampler.LightLevel(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("light sensor sample failed", zap.Error(err))
		}
		return
	}

	stamp := l.now().UTC().Format("20060102T150405")
	if _, err := fmt.Fprintf(l.w, "%s\t%g\n", stamp, v); err != nil {
		log.Warn("light sensor log write failed", zap.Error(err))
	}
}

// Stop ends sampling and waits for the goroutine
func (l *LightLogger) Stop() {
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.wg.Wait()
	log.Debug("light sensor logging finished")
}
