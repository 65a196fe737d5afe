package service

import (
	"context"
	"sync"
	"time"

	"github.com/personal/adunit-lifecycle/pkg/logger"
)

// Runner drives a Driver from a ticker when no host frame loop exists
type Runner struct {
	driver   *Driver
	interval time.Duration
	logger   *logger.Logger
	now      func() time.Time
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRunner creates a new Runner
func NewRunner(driver *Driver, interval time.Duration, log *logger.Logger) *Runner {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &Runner{
		driver:   driver,
		interval: interval,
		logger:   log,
		now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// Start starts the tick loop
func (r *Runner) Start(ctx context.Context) error {
	r.logger.Infof("Starting tick loop every %s", r.interval)

	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Stop stops the tick loop and waits for the current tick to finish
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.logger.Info("Stopping tick loop...")
		close(r.stopChan)
		r.wg.Wait()
		r.logger.Info("Tick loop stopped")
	})
}

func (r *Runner) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.driver.Tick(r.now())
		}
	}
}
