package external

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/personal/adunit-lifecycle/internal/domain/environment"
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
)

// Simulated provider errors
var (
	ErrMissingUnitID   = errors.New("no ad unit id configured for kind")
	ErrUnknownHandle   = errors.New("unknown ad handle")
	ErrNotReady        = errors.New("ad is not ready")
	ErrNoFill          = errors.New("no fill")
	ErrInitUnavailable = errors.New("ad service unavailable")
)

// SimulatedProviderConfig controls the simulated ad network
type SimulatedProviderConfig struct {
	// FillRate is the probability that a load succeeds
	FillRate    float64
	LoadLatency time.Duration
	InitLatency time.Duration
	// InitFailures makes the first n Initialize calls fail
	InitFailures int
	// ShowDuration is how long a full-screen ad stays open before closing
	ShowDuration time.Duration
	// Manual disables timers; Initialize completes synchronously and loads
	// and closes are driven by Complete, Fail and Close.
	Manual bool
	Seed   int64
}

type adState int

const (
	adLoading adState = iota
	adReady
	adShowing
	adHidden
	adFailed
	adConsumed
)

type simulatedAd struct {
	request unit.Request
	sink    unit.EventSink
	state   adState
	timer   *time.Timer
}

// SimulatedProvider is an in-process ad network used by the host binary and
// tests. Callbacks are delivered from timer goroutines, like a real SDK.
type SimulatedProvider struct {
	config SimulatedProviderConfig
	env    environment.Reader

	mu        sync.Mutex
	rng       *rand.Rand
	ads       map[unit.Handle]*simulatedAd
	initCalls int
	requests  int
}

// NewSimulatedProvider creates a new simulated provider. env is used to size
// adaptive banners and may be nil.
func NewSimulatedProvider(cfg SimulatedProviderConfig, env environment.Reader) *SimulatedProvider {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.ShowDuration <= 0 {
		cfg.ShowDuration = 2 * time.Second
	}
	return &SimulatedProvider{
		config: cfg,
		env:    env,
		rng:    rand.New(rand.NewSource(seed)),
		ads:    make(map[unit.Handle]*simulatedAd),
	}
}

// Initialize implements unit.Provider
func (p *SimulatedProvider) Initialize(done func(error)) {
	p.mu.Lock()
	p.initCalls++
	var err error
	if p.initCalls <= p.config.InitFailures {
		err = ErrInitUnavailable
	}
	p.mu.Unlock()

	p.after(p.config.InitLatency, func() { done(err) })
}

// Request implements unit.Provider
func (p *SimulatedProvider) Request(req unit.Request, sink unit.EventSink) (unit.Handle, error) {
	if req.UnitID == "" {
		return "", ErrMissingUnitID
	}

	h := unit.Handle(uuid.New().String())
	ad := &simulatedAd{request: req, sink: sink, state: adLoading}

	p.mu.Lock()
	p.ads[h] = ad
	p.requests++
	p.mu.Unlock()

	if !p.config.Manual {
		ad.timer = time.AfterFunc(p.config.LoadLatency, func() { p.settle(h) })
	}
	return h, nil
}

func (p *SimulatedProvider) settle(h unit.Handle) {
	p.mu.Lock()
	filled := p.rng.Float64() < p.config.FillRate
	p.mu.Unlock()

	if filled {
		p.Complete(h)
	} else {
		p.Fail(h, ErrNoFill)
	}
}

// Complete finishes a pending load successfully
func (p *SimulatedProvider) Complete(h unit.Handle) bool {
	return p.finish(h, adReady, unit.Event{Type: unit.EventLoaded, Handle: h})
}

// Fail finishes a pending load with err
func (p *SimulatedProvider) Fail(h unit.Handle, err error) bool {
	return p.finish(h, adFailed, unit.Event{Type: unit.EventFailed, Handle: h, Err: err})
}

func (p *SimulatedProvider) finish(h unit.Handle, state adState, ev unit.Event) bool {
	p.mu.Lock()
	ad, ok := p.ads[h]
	if !ok || ad.state != adLoading {
		p.mu.Unlock()
		return false
	}
	ad.state = state
	sink := ad.sink
	p.mu.Unlock()

	sink.Post(ev)
	return true
}

// Show implements unit.Provider
func (p *SimulatedProvider) Show(h unit.Handle) error {
	p.mu.Lock()
	ad, ok := p.ads[h]
	if !ok {
		p.mu.Unlock()
		return ErrUnknownHandle
	}
	if ad.state != adReady && ad.state != adHidden && ad.state != adShowing {
		p.mu.Unlock()
		return ErrNotReady
	}
	reusable := ad.request.Kind.IsReusable()
	if !reusable && ad.state == adShowing {
		p.mu.Unlock()
		return nil
	}
	ad.state = adShowing
	sink := ad.sink
	p.mu.Unlock()

	if reusable {
		return nil
	}

	sink.Post(unit.Event{Type: unit.EventOpened, Handle: h})
	if !p.config.Manual {
		p.after(p.config.ShowDuration, func() { p.Close(h) })
	}
	return nil
}

// Close dismisses a showing full-screen ad, granting the reward first for
// rewarding kinds
func (p *SimulatedProvider) Close(h unit.Handle) bool {
	p.mu.Lock()
	ad, ok := p.ads[h]
	if !ok || ad.state != adShowing || ad.request.Kind.IsReusable() {
		p.mu.Unlock()
		return false
	}
	ad.state = adConsumed
	sink := ad.sink
	rewarding := ad.request.Kind.IsRewarding()
	p.mu.Unlock()

	if rewarding {
		sink.Post(unit.Event{Type: unit.EventReward, Handle: h, Reward: unit.Reward{Type: "coins", Amount: 10}})
	}
	sink.Post(unit.Event{Type: unit.EventClosed, Handle: h})
	return true
}

// Hide implements unit.Provider
func (p *SimulatedProvider) Hide(h unit.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ad, ok := p.ads[h]
	if !ok {
		return ErrUnknownHandle
	}
	if ad.request.Kind.IsReusable() && (ad.state == adShowing || ad.state == adReady) {
		ad.state = adHidden
	}
	return nil
}

// Destroy implements unit.Provider
func (p *SimulatedProvider) Destroy(h unit.Handle) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	ad, ok := p.ads[h]
	if !ok {
		return ErrUnknownHandle
	}
	if ad.timer != nil {
		ad.timer.Stop()
	}
	delete(p.ads, h)
	return nil
}

// IsDisplayable implements unit.Provider
func (p *SimulatedProvider) IsDisplayable(h unit.Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ad, ok := p.ads[h]
	if !ok {
		return false
	}
	return ad.state == adReady || ad.state == adShowing || ad.state == adHidden
}

// Expire makes loaded content stale without notifying anyone
func (p *SimulatedProvider) Expire(h unit.Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ad, ok := p.ads[h]; ok {
		ad.state = adConsumed
	}
}

// PixelSize implements unit.Measurer
func (p *SimulatedProvider) PixelSize(h unit.Handle) (int, int) {
	p.mu.Lock()
	ad, ok := p.ads[h]
	p.mu.Unlock()
	if !ok || !ad.request.Kind.IsReusable() {
		return 0, 0
	}

	size := ad.request.Placement.Size
	if !size.Adaptive {
		return size.Width, size.Height
	}

	width := unit.SizeBanner.Width
	if p.env != nil {
		if g := p.env.Geometry(); g.Width > 0 {
			width = g.Width
		}
	}
	height := 50
	if width >= 728 {
		height = 90
	}
	return width, height
}

// Handles returns the handles currently allocated
func (p *SimulatedProvider) Handles() []unit.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()

	result := make([]unit.Handle, 0, len(p.ads))
	for h := range p.ads {
		result = append(result, h)
	}
	return result
}

// Requests returns the total number of load requests received
func (p *SimulatedProvider) Requests() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests
}

func (p *SimulatedProvider) after(d time.Duration, fn func()) {
	if p.config.Manual {
		fn()
		return
	}
	if d <= 0 {
		go fn()
		return
	}
	time.AfterFunc(d, fn)
}
