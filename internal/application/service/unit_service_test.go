package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUnitService(h *harness) *UnitService {
	return NewUnitService(h.manager, h.driver, h.env, nil)
}

func TestUnitService_CreateUnitAfterContextEnds(t *testing.T) {
	h := newHarness(t)
	h.open()
	svc := newUnitService(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := svc.CreateUnit(ctx, &CreateUnitRequest{Group: "level", Kind: "interstitial"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, resp)

	h.tick(1, frame)

	assert.Empty(t, h.manager.Units(AllGroups), "an abandoned request must not create a unit")
}

func TestUnitService_ResultsSurviveAbandonedCalls(t *testing.T) {
	h := newHarness(t)
	h.open()
	svc := newUnitService(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	units, err := svc.ListUnits(ctx, AllGroups)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, units)

	count, err := svc.DestroyGroup(ctx, AllGroups)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, count)

	stats, err := svc.SchedulerStats(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, stats)

	h.tick(1, frame)
}

func TestUnitService_CreateAndList(t *testing.T) {
	h := newHarness(t)
	h.open()
	svc := newUnitService(h)

	done := make(chan *UnitResponse, 1)
	go func() {
		resp, err := svc.CreateUnit(context.Background(), &CreateUnitRequest{
			Group:    "menu",
			Kind:     "banner",
			Size:     &SizeRequest{Width: 320, Height: 50},
			Position: "bottom",
		})
		assert.NoError(t, err)
		done <- resp
	}()

	var resp *UnitResponse
	require.Eventually(t, func() bool {
		h.tick(1, frame)
		select {
		case resp = <-done:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	require.NotNil(t, resp)
	assert.Equal(t, "menu", resp.Group)
	assert.Equal(t, "loading", resp.State)
	assert.Len(t, h.manager.Units("menu"), 1)
}

func TestUnitService_RecentJournalUnavailable(t *testing.T) {
	h := newHarness(t)

	_, err := newUnitService(h).RecentJournal(context.Background(), AllGroups, 10)

	assert.ErrorIs(t, err, ErrJournalUnavailable)
}
