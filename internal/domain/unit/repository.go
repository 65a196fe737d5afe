package unit

// Repository is the registry of live units. It is owned by the tick goroutine.
type Repository interface {
	// Add registers a unit. Fails with ErrUnitAlreadyExists if (group, index) is taken.
	Add(u *Unit) error

	// Remove unregisters a unit, reporting whether it was present
	Remove(u *Unit) bool

	// Find returns the unit with the given group and index, or nil
	Find(group string, index int) *Unit

	// FindByGroup returns the units of a group in creation order
	FindByGroup(group string) []*Unit

	// FindByHandle returns the unit currently owning h, or nil
	FindByHandle(h Handle) *Unit

	// All returns every unit in creation order
	All() []*Unit

	// NextIndex returns max(index in group)+1, or 0 for an empty group
	NextIndex(group string) int

	// Count returns the number of registered units
	Count() int

	// Clear unregisters every unit
	Clear()
}
