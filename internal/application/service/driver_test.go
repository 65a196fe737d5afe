package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personal/adunit-lifecycle/internal/domain/environment"
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
	"github.com/personal/adunit-lifecycle/pkg/config"
)

func TestDriver_NothingHappensWhileGateClosed(t *testing.T) {
	h := newHarness(t)

	h.tick(10, frame)

	assert.Equal(t, uint64(10), h.manager.Frame())
	assert.Zero(t, h.driver.Stats().ReloadPasses)
}

func TestDriver_ConnectivityRevertWithinWindowDoesNotReload(t *testing.T) {
	h := newHarness(t)
	h.env.SetOnline(false)
	h.open()
	u := h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	requests := h.provider.Requests()

	h.env.SetOnline(true)
	h.tick(1, 100*time.Millisecond)
	assert.Equal(t, ReasonConnectivity, h.driver.Stats().Settling)

	h.tick(2, 100*time.Millisecond)
	h.env.SetOnline(false)
	h.tick(5, 100*time.Millisecond)

	assert.Zero(t, h.driver.Stats().ReloadPasses)
	assert.Empty(t, h.driver.Stats().Settling)
	assert.Equal(t, requests, h.provider.Requests())
	assert.Equal(t, unit.StateLoading, u.State())
}

func TestDriver_ConnectivityRestoredReloadsOnce(t *testing.T) {
	h := newHarness(t)
	h.env.SetOnline(false)
	h.open()
	u := h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	h.fail(u)
	require.True(t, u.FailedToLoad())

	h.env.SetOnline(true)
	h.tick(5, 100*time.Millisecond)
	assert.Zero(t, h.driver.Stats().ReloadPasses, "still settling")

	h.tick(10, 100*time.Millisecond)

	stats := h.driver.Stats()
	assert.Equal(t, 1, stats.ReloadPasses)
	assert.Equal(t, ReasonConnectivity, stats.LastReason)
	assert.True(t, stats.Online)
	assert.Equal(t, unit.StateLoading, u.State())
}

func TestDriver_GoingOfflineDoesNotReload(t *testing.T) {
	h := newHarness(t)
	h.open()
	h.banner("menu", unit.SizeBanner, unit.PositionBottom)

	h.env.SetOnline(false)
	h.tick(10, 100*time.Millisecond)

	assert.Zero(t, h.driver.Stats().ReloadPasses)
	assert.False(t, h.driver.Stats().Online)
}

func TestDriver_GeometryChangeReloadsBanners(t *testing.T) {
	h := newHarness(t)
	h.open()
	banner := h.banner("menu", unit.SizeAdaptive, unit.PositionBottom)
	inter, err := h.manager.NewInterstitial("level")
	require.NoError(t, err)
	h.complete(banner, inter)
	bannerHandle, interHandle := banner.Handle(), inter.Handle()

	h.env.SetGeometry(environment.Geometry{Width: 1920, Height: 1080})
	h.tick(1, 100*time.Millisecond)
	assert.Equal(t, ReasonGeometry, h.driver.Stats().Settling)
	h.tick(2, 100*time.Millisecond)

	stats := h.driver.Stats()
	assert.Equal(t, 1, stats.ReloadPasses)
	assert.Equal(t, ReasonGeometry, stats.LastReason)
	assert.NotEqual(t, bannerHandle, banner.Handle())
	assert.Equal(t, interHandle, inter.Handle())

	h.tick(10, 100*time.Millisecond)
	assert.Equal(t, 1, h.driver.Stats().ReloadPasses)
}

func TestDriver_GeometryStillChangingDoesNotReload(t *testing.T) {
	h := newHarness(t)
	h.open()
	banner := h.banner("menu", unit.SizeAdaptive, unit.PositionBottom)
	handle := banner.Handle()

	h.env.SetGeometry(environment.Geometry{Width: 1200, Height: 1920})
	h.tick(1, 50*time.Millisecond)
	h.env.SetGeometry(environment.Geometry{Width: 1400, Height: 1920})
	h.tick(1, 50*time.Millisecond)

	assert.Zero(t, h.driver.Stats().ReloadPasses)
	assert.Equal(t, handle, banner.Handle())

	// the latest size settles on its own window
	h.tick(5, 100*time.Millisecond)
	assert.Equal(t, 1, h.driver.Stats().ReloadPasses)
}

func TestDriver_RetryFiresAfterInterval(t *testing.T) {
	h := newHarness(t)
	h.open()
	u, err := h.manager.NewInterstitial("level")
	require.NoError(t, err)
	h.fail(u)
	require.True(t, u.FailedToLoad())
	assert.Equal(t, 1, h.driver.RetryCounter())

	h.tick(298, frame)
	assert.Equal(t, 299, h.driver.RetryCounter())
	assert.Zero(t, h.driver.Stats().ReloadPasses)
	assert.Equal(t, unit.StateNone, u.State())

	h.tick(1, frame)

	stats := h.driver.Stats()
	assert.Equal(t, 1, stats.ReloadPasses)
	assert.Equal(t, ReasonRetry, stats.LastReason)
	assert.Equal(t, 0, h.driver.RetryCounter())
	assert.Equal(t, unit.StateLoading, u.State())
}

func TestDriver_RetryCounterResetsWhenNothingFails(t *testing.T) {
	h := newHarness(t)
	h.open()
	u, _ := h.manager.NewInterstitial("level")
	h.fail(u)
	h.tick(10, frame)
	require.Equal(t, 11, h.driver.RetryCounter())

	u.Load(unit.LoadOptions{})
	h.complete(u)

	assert.Equal(t, 0, h.driver.RetryCounter())
}

func TestDriver_RetryWaitsWhileOffline(t *testing.T) {
	h := newHarness(t)
	h.open()
	u, _ := h.manager.NewInterstitial("level")
	h.fail(u)
	counter := h.driver.RetryCounter()

	h.env.SetOnline(false)
	h.tick(400, frame)

	assert.Equal(t, counter, h.driver.RetryCounter())
	assert.Zero(t, h.driver.Stats().ReloadPasses)
}

func TestDriver_ResumeRemakesEverything(t *testing.T) {
	h := newHarness(t)
	h.open()
	inter, _ := h.manager.NewInterstitial("level")
	h.complete(inter)
	handle := inter.Handle()

	h.driver.OnPause(true)
	h.tick(1, frame)
	assert.Equal(t, handle, inter.Handle())

	h.driver.OnPause(false)
	h.tick(1, frame)

	assert.NotEqual(t, handle, inter.Handle())
	assert.Equal(t, ReasonResume, h.driver.Stats().LastReason)
}

func TestDriver_TickIsNotReentrant(t *testing.T) {
	h := newHarness(t)
	h.open()
	before := h.manager.Frame()

	h.manager.Submit(func() { h.driver.Tick(h.now) })
	h.tick(1, frame)

	assert.Equal(t, before+1, h.manager.Frame())
}

func TestDriver_StatsCountCurrentTick(t *testing.T) {
	h := newHarness(t)

	var seen DriverStats
	h.manager.Submit(func() { seen = h.driver.Stats() })
	h.tick(1, frame)

	assert.Equal(t, uint64(1), seen.Ticks)
	assert.Equal(t, h.manager.Frame(), seen.Ticks)

	h.tick(4, frame)
	assert.Equal(t, uint64(5), h.driver.Stats().Ticks)
}

func TestNewDriverConfig(t *testing.T) {
	cfg := NewDriverConfig(config.SchedulerConfig{
		FrameIntervalMS:      16,
		ConnectivitySettleMS: 750,
		GeometrySettleMS:     250,
		RetryIntervalTicks:   120,
	})

	assert.Equal(t, 750*time.Millisecond, cfg.ConnectivitySettle)
	assert.Equal(t, 250*time.Millisecond, cfg.GeometrySettle)
	assert.Equal(t, 120, cfg.RetryIntervalTicks)
}
