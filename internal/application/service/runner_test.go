package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personal/adunit-lifecycle/pkg/logger"
)

func TestRunner_TicksUntilStopped(t *testing.T) {
	h := newHarness(t)
	h.manager.SetAllow(true)

	r := NewRunner(h.driver, time.Millisecond, logger.Discard())
	require.NoError(t, r.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return h.manager.Acceptable() && h.manager.Frame() > 3
	}, time.Second, 5*time.Millisecond)

	r.Stop()
	r.Stop()

	stopped := h.manager.Frame()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, stopped, h.manager.Frame())
}

func TestRunner_StopsOnContextCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	r := NewRunner(h.driver, time.Millisecond, logger.Discard())
	require.NoError(t, r.Start(ctx))
	assert.Eventually(t, func() bool { return h.manager.Frame() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	r.Stop()
}

func TestNewRunner_DefaultInterval(t *testing.T) {
	r := NewRunner(nil, 0, logger.Discard())
	assert.Equal(t, 16*time.Millisecond, r.interval)
}
