package monitoring

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/api/v1/units", "/api/v1/units"},
		{"/api/v1/units/menu/0/active", "/api/v1/units"},
		{"/api/v1/groups/menu/active", "/api/v1/groups/{group}"},
		{"/api/v1/groups", "/api/v1/groups"},
		{"/api/v1/gate", "/api/v1/gate"},
		{"/api/v1/journal", "/api/v1/journal"},
		{"/api/v1/remake", "/api/v1/remake"},
		{"/favicon.ico", "/other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizePath(tt.path))
		})
	}
}

func TestRecordDebounce(t *testing.T) {
	before := testutil.ToFloat64(DebounceOutcomesTotal.WithLabelValues("geometry", "reverted"))

	RecordDebounce("geometry", false)

	assert.Equal(t, before+1, testutil.ToFloat64(DebounceOutcomesTotal.WithLabelValues("geometry", "reverted")))
}

func TestUpdateGate(t *testing.T) {
	UpdateGate(true, false)

	assert.Equal(t, 1.0, testutil.ToFloat64(GateState.WithLabelValues("allow")))
	assert.Equal(t, 0.0, testutil.ToFloat64(GateState.WithLabelValues("acceptable")))
}
