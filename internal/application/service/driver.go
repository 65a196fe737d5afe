package service

import (
	"sync/atomic"
	"time"

	"github.com/personal/adunit-lifecycle/internal/domain/environment"
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
	"github.com/personal/adunit-lifecycle/pkg/config"
	"github.com/personal/adunit-lifecycle/pkg/logger"
	"github.com/personal/adunit-lifecycle/pkg/monitoring"
)

// Reload reasons
const (
	ReasonResume       = "resume"
	ReasonConnectivity = "connectivity"
	ReasonGeometry     = "geometry"
	ReasonRetry        = "retry"
)

// DriverConfig holds change detector timing
type DriverConfig struct {
	ConnectivitySettle time.Duration
	GeometrySettle     time.Duration
	RetryIntervalTicks int
}

// NewDriverConfig builds the detector timing from scheduler configuration
func NewDriverConfig(cfg config.SchedulerConfig) DriverConfig {
	return DriverConfig{
		ConnectivitySettle: cfg.ConnectivitySettle(),
		GeometrySettle:     cfg.GeometrySettle(),
		RetryIntervalTicks: cfg.RetryIntervalTicks,
	}
}

// DriverStats is a snapshot of the detector
type DriverStats struct {
	Ticks        uint64    `json:"ticks"`
	ReloadPasses int       `json:"reloadPasses"`
	LastReason   string    `json:"lastReason,omitempty"`
	LastReloadAt time.Time `json:"lastReloadAt,omitempty"`
	RetryCounter int       `json:"retryCounter"`
	Settling     string    `json:"settling,omitempty"`
	Online       bool      `json:"online"`
	Geometry     string    `json:"geometry"`
}

type step int

const (
	stepConnectivity step = iota
	stepConnectivitySettle
	stepGeometry
	stepGeometrySettle
	stepRetry
	stepDone
)

// pass is one detector evaluation. A pass parked on a settle window resumes
// on later ticks instead of blocking the tick.
type pass struct {
	step      step
	wait      *settleWait
	candidate environment.Geometry
	reloaded  bool
}

// Driver is the per-tick change detector. It watches connectivity and screen
// geometry, reloads units when a change persists and periodically retries
// failed units.
type Driver struct {
	manager *Manager
	env     environment.Reader
	config  DriverConfig
	logger  *logger.Logger

	busy   atomic.Bool
	resume atomic.Bool

	primed       bool
	lastOnline   bool
	lastGeometry environment.Geometry
	current      *pass
	retryCounter int
	stats        DriverStats
}

// NewDriver creates a new Driver
func NewDriver(manager *Manager, env environment.Reader, cfg DriverConfig, log *logger.Logger) *Driver {
	return &Driver{
		manager: manager,
		env:     env,
		config:  cfg,
		logger:  log,
	}
}

// OnPause records host pause and resume. Resuming remakes every unit on
// the next tick. Safe for concurrent use.
func (d *Driver) OnPause(paused bool) {
	if !paused {
		d.resume.Store(true)
	}
}

// Tick runs one detector step. Calls made while a tick is running return
// immediately.
func (d *Driver) Tick(now time.Time) {
	if !d.busy.CompareAndSwap(false, true) {
		return
	}
	defer d.busy.Store(false)

	start := time.Now()
	defer func() { monitoring.RecordTick(time.Since(start)) }()

	d.stats.Ticks++
	d.manager.beginTick()

	if !d.manager.Allow() {
		d.reset()
		return
	}
	if !d.manager.Acceptable() {
		d.manager.initialize()
		d.reset()
		return
	}

	if !d.primed {
		d.lastOnline = d.env.IsOnline()
		d.lastGeometry = d.env.Geometry()
		d.primed = true
		d.logger.WithFields(logger.Fields{
			"online":   d.lastOnline,
			"geometry": d.lastGeometry.String(),
		}).Debug("Change detector primed")
	}

	if d.resume.Swap(false) {
		if n := d.manager.ReMake(AllGroups, "", true); n > 0 {
			d.reloaded(ReasonResume, now)
		}
	}

	d.run(now)
}

func (d *Driver) reset() {
	d.primed = false
	d.current = nil
	d.retryCounter = 0
}

func (d *Driver) run(now time.Time) {
	if d.current == nil {
		d.current = &pass{step: stepConnectivity}
	}
	p := d.current

	for p.step != stepDone {
		switch p.step {
		case stepConnectivity:
			p.step = stepGeometry
			if d.env.IsOnline() == d.lastOnline {
				continue
			}
			p.wait = newSettleWait(ReasonConnectivity, now, d.config.ConnectivitySettle, func() bool {
				return d.env.IsOnline() == d.lastOnline
			})
			p.step = stepConnectivitySettle

		case stepConnectivitySettle:
			if !p.wait.over(now) {
				return
			}
			p.wait = nil
			p.step = stepGeometry

			online := d.env.IsOnline()
			persisted := online != d.lastOnline
			monitoring.RecordDebounce(ReasonConnectivity, persisted)
			if !persisted {
				continue
			}
			d.lastOnline = online
			d.logger.WithField("online", online).Info("Connectivity changed")
			if online {
				d.manager.ReMake(AllGroups, "", false)
				d.reloaded(ReasonConnectivity, now)
				p.reloaded = true
			}

		case stepGeometry:
			p.step = stepRetry
			g := d.env.Geometry()
			if g == d.lastGeometry {
				continue
			}
			p.candidate = g
			p.wait = newSettleWait(ReasonGeometry, now, d.config.GeometrySettle, func() bool {
				return d.env.Geometry() != g
			})
			p.step = stepGeometrySettle

		case stepGeometrySettle:
			if !p.wait.over(now) {
				return
			}
			p.wait = nil
			p.step = stepRetry

			persisted := d.env.Geometry() == p.candidate
			monitoring.RecordDebounce(ReasonGeometry, persisted)
			if !persisted {
				continue
			}
			d.lastGeometry = p.candidate
			d.logger.WithField("geometry", p.candidate.String()).Info("Screen geometry changed")
			d.manager.ReMake(AllGroups, unit.KindBanner, false)
			d.reloaded(ReasonGeometry, now)
			p.reloaded = true

		case stepRetry:
			p.step = stepDone
			if !p.reloaded {
				d.retry(now)
			}
		}
	}
	d.current = nil
}

// retry counts ticks while some unit needs a retry and reloads the failed
// ones once the interval is reached.
func (d *Driver) retry(now time.Time) {
	if !d.env.IsOnline() {
		return
	}
	interval := d.config.RetryIntervalTicks
	if !d.manager.AnyLoadFailed() && !d.manager.AnyStalled(uint64(interval)) {
		d.retryCounter = 0
		return
	}

	d.retryCounter++
	if d.retryCounter < interval {
		return
	}
	d.retryCounter = 0
	d.manager.ReLoad(uint64(interval))
	d.reloaded(ReasonRetry, now)
}

func (d *Driver) reloaded(reason string, now time.Time) {
	monitoring.RecordReloadPass(reason)
	d.stats.ReloadPasses++
	d.stats.LastReason = reason
	d.stats.LastReloadAt = now
}

// Stats returns a snapshot of the detector. Call on the tick goroutine.
func (d *Driver) Stats() DriverStats {
	s := d.stats
	s.RetryCounter = d.retryCounter
	s.Online = d.lastOnline
	s.Geometry = d.lastGeometry.String()
	if d.current != nil && d.current.wait != nil {
		s.Settling = d.current.wait.signal
	}
	return s
}

// RetryCounter returns the ticks counted toward the next retry
func (d *Driver) RetryCounter() int {
	return d.retryCounter
}
