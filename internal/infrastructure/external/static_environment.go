package external

import (
	"sync"

	"github.com/personal/adunit-lifecycle/internal/domain/environment"
)

// StaticEnvironment holds environment readings pushed by the host
type StaticEnvironment struct {
	mu       sync.RWMutex
	online   bool
	geometry environment.Geometry
}

// NewStaticEnvironment creates a new StaticEnvironment
func NewStaticEnvironment(online bool, geometry environment.Geometry) *StaticEnvironment {
	return &StaticEnvironment{online: online, geometry: geometry}
}

// IsOnline implements environment.Reader
func (e *StaticEnvironment) IsOnline() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.online
}

// Geometry implements environment.Reader
func (e *StaticEnvironment) Geometry() environment.Geometry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.geometry
}

// SetOnline implements environment.Controller
func (e *StaticEnvironment) SetOnline(online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = online
}

// SetGeometry implements environment.Controller. A zero orientation is
// derived from the size.
func (e *StaticEnvironment) SetGeometry(g environment.Geometry) {
	if g.Orientation == "" {
		g.Orientation = environment.OrientationPortrait
		if g.Width > g.Height {
			g.Orientation = environment.OrientationLandscape
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.geometry = g
}
