package service

import (
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
	"github.com/personal/adunit-lifecycle/pkg/logger"
)

// SetActive shows or hides the units of a group. Activating a group first
// deactivates every other group, so at most one group is active at a time.
// AllGroups targets every unit without the exclusivity step. Does nothing
// unless the gate is acceptable.
func (m *Manager) SetActive(group string, active bool) {
	if !m.Acceptable() {
		return
	}

	if active && group != AllGroups {
		for _, u := range m.repo.All() {
			if u.Group() != group {
				u.SetActiveSelf(false)
			}
		}
	}
	for _, u := range m.Units(group) {
		u.SetActiveSelf(active)
	}

	m.logger.WithFields(logger.Fields{
		"group":  group,
		"active": active,
	}).Debug("Group activation changed")
}

// GetActive reports whether any unit of the group has an active show request
func (m *Manager) GetActive(group string) bool {
	if !m.Acceptable() {
		return false
	}
	for _, u := range m.Units(group) {
		if u.ActiveSelf() {
			return true
		}
	}
	return false
}

// ReMake reloads the matching units while keeping their show requests.
// Banners always reload; single-use units reload only when they hold no
// displayable content, unless force is set. An empty kind matches every kind.
// Returns the number of units reloaded.
func (m *Manager) ReMake(group string, kind unit.Kind, force bool) int {
	if !m.Acceptable() {
		return 0
	}

	count := 0
	for _, u := range m.Units(group) {
		if kind != "" && u.Kind() != kind {
			continue
		}

		keep := u.ShowRequested()
		if u.Kind().IsReusable() || force || !u.IsLoaded() {
			u.Load(unit.LoadOptions{Force: true, KeepRequest: true})
			count++
		}
		if u.Kind().IsReusable() {
			u.SetActiveSelf(keep)
		}
	}

	if count > 0 {
		m.logger.WithFields(logger.Fields{
			"group": group,
			"kind":  kind,
			"force": force,
			"units": count,
		}).Info("Units remade")
	}
	return count
}

// ReLoad force-reloads every unit whose last load failed, that owns no
// resource, or whose load has been in flight for at least stallTicks.
// Show requests survive. Returns the number of units reloaded.
func (m *Manager) ReLoad(stallTicks uint64) int {
	if !m.Acceptable() {
		return 0
	}

	count := 0
	for _, u := range m.repo.All() {
		if u.FailedToLoad() || u.State() == unit.StateNone || u.IsStalled(stallTicks) {
			u.Load(unit.LoadOptions{Force: true, KeepRequest: true})
			count++
		}
	}

	if count > 0 {
		m.logger.WithField("units", count).Info("Retrying failed units")
	}
	return count
}
