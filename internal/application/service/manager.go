package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/personal/adunit-lifecycle/internal/domain/queue"
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
	"github.com/personal/adunit-lifecycle/pkg/logger"
	"github.com/personal/adunit-lifecycle/pkg/monitoring"
)

// AllGroups addresses every group in group-scoped operations. Units can
// never be created with an empty group name.
const AllGroups = ""

// Manager owns the unit registry and the global gate. Apart from Post,
// Submit, Call and the gate getters, its methods must run on the tick
// goroutine.
type Manager struct {
	provider unit.Provider
	repo     unit.Repository
	factory  *unit.Factory
	recorder *changeRecorder
	inbox    *queue.Inbox
	logger   *logger.Logger

	allow      atomic.Bool
	acceptable atomic.Bool
	frame      atomic.Uint64

	// initializing is set while a provider Initialize call is outstanding.
	initializing bool
	// generation invalidates Initialize callbacks issued before a teardown.
	generation uint64
}

// NewManager creates a new Manager. Observers are notified of every unit
// change after the manager's own logging and metrics.
func NewManager(provider unit.Provider, repo unit.Repository, log *logger.Logger, unitIDs map[unit.Kind]string, observers ...unit.Observer) *Manager {
	m := &Manager{
		provider: provider,
		repo:     repo,
		inbox:    queue.NewInbox(),
		logger:   log,
	}

	m.recorder = newChangeRecorder(log, append([]unit.Observer(nil), observers...))
	rt := &unit.Runtime{
		Provider: provider,
		Sink:     m,
		Frames:   m,
		Observer: m.recorder,
		UnitIDs:  unitIDs,
	}
	m.factory = unit.NewFactory(repo, rt)
	monitoring.UpdateGate(false, false)
	return m
}

// AddObserver registers another change observer. Call before the tick loop
// starts or on the tick goroutine.
func (m *Manager) AddObserver(o unit.Observer) {
	m.recorder.next = append(m.recorder.next, o)
}

// ParseUnitIDs converts configured kind names to unit identifiers
func ParseUnitIDs(ids map[string]string) (map[unit.Kind]string, error) {
	result := make(map[unit.Kind]string, len(ids))
	for name, id := range ids {
		k, err := unit.ParseKind(name)
		if err != nil {
			return nil, fmt.Errorf("provider unit id: %w", err)
		}
		result[k] = id
	}
	return result, nil
}

// Frame returns the number of the current tick
func (m *Manager) Frame() uint64 {
	return m.frame.Load()
}

// Post hands a provider callback to the tick goroutine. Safe for concurrent use.
func (m *Manager) Post(ev unit.Event) {
	m.inbox.Push(func() { m.dispatch(ev) })
}

// Submit schedules fn on the tick goroutine. Safe for concurrent use.
func (m *Manager) Submit(fn func()) {
	m.inbox.Push(queue.Task(fn))
}

// Call runs fn on the tick goroutine and waits for its result. If ctx ends
// before the task is reached, fn is skipped and Call returns ctx.Err().
func (m *Manager) Call(ctx context.Context, fn func() error) error {
	_, err := callValue(ctx, m, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

type callResult[T any] struct {
	value T
	err   error
}

// callValue runs fn on the tick goroutine and hands its result back over a
// channel, so nothing is shared with the caller once ctx ends.
func callValue[T any](ctx context.Context, m *Manager, fn func() (T, error)) (T, error) {
	done := make(chan callResult[T], 1)
	m.inbox.Push(func() {
		if err := ctx.Err(); err != nil {
			done <- callResult[T]{err: err}
			return
		}
		v, err := fn()
		done <- callResult[T]{value: v, err: err}
	})

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// beginTick advances the frame counter and runs everything handed over
// since the previous tick.
func (m *Manager) beginTick() int {
	m.frame.Add(1)
	return m.inbox.Drain()
}

func (m *Manager) dispatch(ev unit.Event) {
	u := m.repo.FindByHandle(ev.Handle)
	if u == nil || !u.HandleEvent(ev) {
		monitoring.RecordStaleEvent()
		m.logger.WithFields(logger.Fields{
			"handle": ev.Handle,
			"event":  ev.Type,
		}).Debug("Ignoring stale provider event")
	}
}

// Allow reports the application-level permission to run ads
func (m *Manager) Allow() bool {
	return m.allow.Load()
}

// Acceptable reports whether ads are allowed and the provider is initialized
func (m *Manager) Acceptable() bool {
	return m.allow.Load() && m.acceptable.Load()
}

// SetAllow opens or closes the global gate. Opening starts provider
// initialization. Closing releases every unit's provider resource and
// requires initialization again; units stay registered.
func (m *Manager) SetAllow(allow bool) {
	prev := m.allow.Swap(allow)
	if prev == allow {
		return
	}

	m.logger.WithField("allow", allow).Info("Ad gate changed")
	if allow {
		m.initialize()
	} else {
		m.acceptable.Store(false)
		m.initializing = false
		m.generation++
		for _, u := range m.repo.All() {
			u.Release()
		}
	}
	monitoring.UpdateGate(m.Allow(), m.Acceptable())
}

// initialize asks the provider to start unless that already happened or is
// in progress.
func (m *Manager) initialize() {
	if !m.allow.Load() || m.acceptable.Load() || m.initializing {
		return
	}
	m.initializing = true
	gen := m.generation

	m.logger.Info("Initializing ad provider")
	m.provider.Initialize(func(err error) {
		m.inbox.Push(func() { m.initialized(gen, err) })
	})
}

func (m *Manager) initialized(gen uint64, err error) {
	if gen != m.generation || !m.allow.Load() {
		return
	}
	m.initializing = false

	if err != nil {
		monitoring.RecordSystemError("provider", "warning")
		m.logger.WithError(err).Warn("Ad provider initialization failed, will retry")
		return
	}

	m.acceptable.Store(true)
	monitoring.UpdateGate(true, true)
	m.logger.WithField("units", m.repo.Count()).Info("Ad provider initialized")

	for _, u := range m.repo.All() {
		u.Load(unit.LoadOptions{})
	}
}

// NewUnit creates and registers a unit. The first load starts right away
// when the gate is acceptable, otherwise once the provider is initialized.
func (m *Manager) NewUnit(spec unit.Spec) (*unit.Unit, error) {
	if !m.allow.Load() {
		return nil, unit.ErrGateClosed
	}

	u, err := m.factory.CreateUnit(spec)
	if err != nil {
		m.logger.WithError(err).WithFields(logger.Fields{
			"group": spec.Group,
			"kind":  spec.Kind,
		}).Warn("Unit construction rejected")
		return nil, err
	}

	m.logger.WithFields(logger.Fields{
		"group":     u.Group(),
		"index":     u.Index(),
		"kind":      u.Kind(),
		"placement": u.Placement().String(),
	}).Info("Unit created")
	m.updateLiveUnits()

	if m.Acceptable() {
		u.Load(unit.LoadOptions{})
	}
	return u, nil
}

// NewBanner creates a banner unit
func (m *Manager) NewBanner(group string, size unit.Size, position unit.Position) (*unit.Unit, error) {
	return m.NewUnit(unit.BannerSpec(group, size, position))
}

// NewInterstitial creates an interstitial unit
func (m *Manager) NewInterstitial(group string) (*unit.Unit, error) {
	return m.NewUnit(unit.Spec{Group: group, Kind: unit.KindInterstitial})
}

// NewRewarded creates a rewarded unit. onReward may be nil.
func (m *Manager) NewRewarded(group string, onReward func(unit.Reward)) (*unit.Unit, error) {
	return m.NewUnit(unit.Spec{Group: group, Kind: unit.KindRewarded, OnReward: onReward})
}

// Units returns the units of a group, or every unit for AllGroups
func (m *Manager) Units(group string) []*unit.Unit {
	if group == AllGroups {
		return m.repo.All()
	}
	return m.repo.FindByGroup(group)
}

// Unit returns the unit at (group, index) or nil
func (m *Manager) Unit(group string, index int) *unit.Unit {
	return m.repo.Find(group, index)
}

// NextIndex returns the index the next unit created in group receives
func (m *Manager) NextIndex(group string) int {
	return m.repo.NextIndex(group)
}

// Destroy tears down the units of a group. AllGroups destroys every unit
// and empties the registry.
func (m *Manager) Destroy(group string) int {
	units := m.Units(group)
	for _, u := range units {
		u.Destroy()
	}
	if group == AllGroups {
		m.repo.Clear()
	}

	if len(units) > 0 {
		m.logger.WithFields(logger.Fields{
			"group": group,
			"units": len(units),
		}).Info("Units destroyed")
	}
	m.updateLiveUnits()
	return len(units)
}

// AnyLoadFailed reports whether any registered unit's last load failed
func (m *Manager) AnyLoadFailed() bool {
	for _, u := range m.repo.All() {
		if u.FailedToLoad() {
			return true
		}
	}
	return false
}

// AnyStalled reports whether any unit has been loading for at least ticks
func (m *Manager) AnyStalled(ticks uint64) bool {
	for _, u := range m.repo.All() {
		if u.IsStalled(ticks) {
			return true
		}
	}
	return false
}

func (m *Manager) updateLiveUnits() {
	counts := make(map[unit.Kind]int, len(unit.Kinds))
	for _, u := range m.repo.All() {
		counts[u.Kind()]++
	}
	for _, k := range unit.Kinds {
		monitoring.UpdateLiveUnits(string(k), counts[k])
	}
}
