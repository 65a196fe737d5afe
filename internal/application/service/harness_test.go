package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/personal/adunit-lifecycle/internal/domain/environment"
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
	"github.com/personal/adunit-lifecycle/internal/infrastructure/external"
	"github.com/personal/adunit-lifecycle/internal/infrastructure/persistence"
	"github.com/personal/adunit-lifecycle/pkg/logger"
)

const frame = 16 * time.Millisecond

type harness struct {
	t        *testing.T
	env      *external.StaticEnvironment
	provider *external.SimulatedProvider
	manager  *Manager
	driver   *Driver
	now      time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	env := external.NewStaticEnvironment(true, environment.Geometry{
		Width:       1080,
		Height:      1920,
		Orientation: environment.OrientationPortrait,
	})
	provider := external.NewSimulatedProvider(external.SimulatedProviderConfig{Manual: true, FillRate: 1}, env)

	ids := make(map[unit.Kind]string, len(unit.Kinds))
	for _, k := range unit.Kinds {
		ids[k] = "test-" + string(k)
	}

	manager := NewManager(provider, persistence.NewMemoryUnitRepository(), logger.Discard(), ids)
	driver := NewDriver(manager, env, DriverConfig{
		ConnectivitySettle: 500 * time.Millisecond,
		GeometrySettle:     200 * time.Millisecond,
		RetryIntervalTicks: 300,
	}, logger.Discard())

	return &harness{
		t:        t,
		env:      env,
		provider: provider,
		manager:  manager,
		driver:   driver,
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// tick advances the clock by step and runs one tick, n times
func (h *harness) tick(n int, step time.Duration) {
	for i := 0; i < n; i++ {
		h.now = h.now.Add(step)
		h.driver.Tick(h.now)
	}
}

// open opens the gate and completes provider initialization
func (h *harness) open() {
	h.manager.SetAllow(true)
	h.tick(1, frame)
	require.True(h.t, h.manager.Acceptable())
}

// complete finishes the pending loads of units and delivers the callbacks
func (h *harness) complete(units ...*unit.Unit) {
	for _, u := range units {
		require.True(h.t, h.provider.Complete(u.Handle()), "unit %s has no pending load", u)
	}
	h.tick(1, frame)
}

func (h *harness) fail(units ...*unit.Unit) {
	for _, u := range units {
		require.True(h.t, h.provider.Fail(u.Handle(), external.ErrNoFill))
	}
	h.tick(1, frame)
}

func (h *harness) banner(group string, size unit.Size, pos unit.Position) *unit.Unit {
	u, err := h.manager.NewBanner(group, size, pos)
	require.NoError(h.t, err)
	return u
}
