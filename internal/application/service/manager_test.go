package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personal/adunit-lifecycle/internal/domain/unit"
)

func TestManager_NewUnitNeedsGate(t *testing.T) {
	h := newHarness(t)

	u, err := h.manager.NewInterstitial("level")

	assert.ErrorIs(t, err, unit.ErrGateClosed)
	assert.Nil(t, u)
}

func TestManager_UnitsLoadOnceProviderInitialized(t *testing.T) {
	h := newHarness(t)
	h.manager.SetAllow(true)

	u := h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	assert.False(t, h.manager.Acceptable())
	assert.Equal(t, unit.StateNone, u.State())

	h.tick(1, frame)

	assert.True(t, h.manager.Acceptable())
	assert.Equal(t, unit.StateLoading, u.State())
}

func TestManager_NewUnitLoadsWhenAcceptable(t *testing.T) {
	h := newHarness(t)
	h.open()

	u, err := h.manager.NewRewarded("shop", nil)
	require.NoError(t, err)
	assert.Equal(t, unit.StateLoading, u.State())

	h.complete(u)
	assert.Equal(t, unit.StateLoaded, u.State())
	assert.True(t, u.IsLoaded())
}

func TestManager_SetActiveIsExclusive(t *testing.T) {
	h := newHarness(t)
	h.open()
	a := h.banner("a", unit.SizeBanner, unit.PositionBottom)
	b := h.banner("b", unit.SizeLargeBanner, unit.PositionTop)
	h.complete(a, b)

	h.manager.SetActive("a", true)
	assert.True(t, h.manager.GetActive("a"))
	assert.Equal(t, unit.StateShown, a.State())

	h.manager.SetActive("b", true)
	assert.False(t, h.manager.GetActive("a"))
	assert.True(t, h.manager.GetActive("b"))
	assert.Equal(t, unit.StateHidden, a.State())
	assert.Equal(t, unit.StateShown, b.State())

	h.manager.SetActive("b", false)
	assert.False(t, h.manager.GetActive("b"))
	assert.False(t, h.manager.GetActive("a"))
}

func TestManager_SetActiveAllGroups(t *testing.T) {
	h := newHarness(t)
	h.open()
	a := h.banner("a", unit.SizeBanner, unit.PositionBottom)
	b := h.banner("b", unit.SizeLargeBanner, unit.PositionTop)
	h.complete(a, b)

	h.manager.SetActive(AllGroups, true)

	assert.True(t, a.ActiveSelf())
	assert.True(t, b.ActiveSelf())
}

func TestManager_ActivationNeedsAcceptableGate(t *testing.T) {
	h := newHarness(t)
	h.manager.SetAllow(true)
	u := h.banner("menu", unit.SizeBanner, unit.PositionBottom)

	h.manager.SetActive("menu", true)

	assert.False(t, u.ShowRequested())
	assert.False(t, h.manager.GetActive("menu"))
}

func TestManager_ClosingGateReleasesUnits(t *testing.T) {
	h := newHarness(t)
	h.open()
	u := h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	h.complete(u)

	h.manager.SetAllow(false)

	assert.False(t, h.manager.Allow())
	assert.False(t, h.manager.Acceptable())
	assert.Equal(t, unit.StateNone, u.State())
	assert.Empty(t, h.provider.Handles())
	assert.Same(t, u, h.manager.Unit("menu", 0), "units stay registered")

	// reopening initializes again and reloads
	h.open()
	assert.Equal(t, unit.StateLoading, u.State())
}

func TestManager_StaleCallbackAfterReload(t *testing.T) {
	h := newHarness(t)
	h.open()
	u := h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	old := u.Handle()

	h.manager.ReMake("menu", "", false)
	require.NotEqual(t, old, u.Handle())

	h.manager.Post(unit.Event{Type: unit.EventLoaded, Handle: old})
	h.tick(1, frame)

	assert.Equal(t, unit.StateLoading, u.State())
}

func TestManager_ReMakeKeepsShowRequest(t *testing.T) {
	h := newHarness(t)
	h.open()
	banner := h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	inter, err := h.manager.NewInterstitial("level")
	require.NoError(t, err)
	h.complete(banner, inter)
	h.manager.SetActive("menu", true)
	interHandle := inter.Handle()

	count := h.manager.ReMake(AllGroups, "", false)

	assert.Equal(t, 1, count, "loaded single-use units are kept")
	assert.Equal(t, interHandle, inter.Handle())
	assert.Equal(t, unit.StateLoading, banner.State())
	assert.True(t, banner.ShowRequested())

	h.complete(banner)
	assert.Equal(t, unit.StateShown, banner.State())

	assert.Equal(t, 2, h.manager.ReMake(AllGroups, "", true))
	assert.NotEqual(t, interHandle, inter.Handle())
}

func TestManager_ReMakeFiltersKind(t *testing.T) {
	h := newHarness(t)
	h.open()
	banner := h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	inter, _ := h.manager.NewInterstitial("level")

	assert.Equal(t, 1, h.manager.ReMake(AllGroups, unit.KindInterstitial, true))
	assert.Equal(t, 0, h.manager.ReMake("other", "", true))
	assert.NotNil(t, banner)
	assert.NotNil(t, inter)
}

func TestManager_DestroyAll(t *testing.T) {
	h := newHarness(t)
	h.open()
	u := h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	_, err := h.manager.NewInterstitial("level")
	require.NoError(t, err)

	assert.Equal(t, 2, h.manager.Destroy(AllGroups))

	assert.Equal(t, unit.StateDeleted, u.State())
	assert.Empty(t, h.manager.Units(AllGroups))
	assert.Equal(t, 0, h.manager.NextIndex("menu"))
	assert.Empty(t, h.provider.Handles())
}

func TestManager_DestroyGroup(t *testing.T) {
	h := newHarness(t)
	h.open()
	h.banner("menu", unit.SizeBanner, unit.PositionBottom)
	shop, _ := h.manager.NewRewarded("shop", nil)

	assert.Equal(t, 1, h.manager.Destroy("menu"))
	assert.Equal(t, []*unit.Unit{shop}, h.manager.Units(AllGroups))
}

func TestManager_CallRunsOnTick(t *testing.T) {
	h := newHarness(t)
	h.open()

	done := make(chan error, 1)
	go func() {
		done <- h.manager.Call(context.Background(), func() error {
			_, err := h.manager.NewInterstitial("level")
			return err
		})
	}()

	require.Eventually(t, func() bool {
		h.tick(1, frame)
		select {
		case err := <-done:
			assert.NoError(t, err)
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	assert.Len(t, h.manager.Units("level"), 1)
}

func TestManager_CallHonoursContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ran := false
	err := h.manager.Call(ctx, func() error {
		ran = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	h.tick(1, frame)
	assert.False(t, ran, "tasks whose caller gave up are skipped")
}

func TestParseUnitIDs(t *testing.T) {
	ids, err := ParseUnitIDs(map[string]string{"banner": "b", "app_open": "o"})
	require.NoError(t, err)
	assert.Equal(t, "b", ids[unit.KindBanner])
	assert.Equal(t, "o", ids[unit.KindAppOpen])

	_, err = ParseUnitIDs(map[string]string{"native": "n"})
	assert.ErrorIs(t, err, unit.ErrInvalidKind)
}
