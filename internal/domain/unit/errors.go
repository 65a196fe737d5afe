package unit

import (
	"errors"
	"fmt"
)

// Domain errors for the Unit aggregate
var (
	ErrInvalidGroup         = errors.New("group cannot be empty")
	ErrInvalidKind          = errors.New("unsupported unit kind")
	ErrInvalidPlacement     = errors.New("invalid banner placement")
	ErrGroupOccupied        = errors.New("group already has units")
	ErrKindConflict         = errors.New("group already holds a full-screen unit")
	ErrDuplicatePosition    = errors.New("another banner in the group uses the same position")
	ErrSizePositionMismatch = errors.New("another banner with the same size uses a different position")
	ErrUnitAlreadyExists    = errors.New("unit already registered")
	ErrNoHandle             = errors.New("provider returned no handle")
	ErrGateClosed           = errors.New("ads are not allowed")
)

// ConstructionError reports a unit that could not be created because it would
// break group exclusivity. The unit is never added to the registry.
type ConstructionError struct {
	Group     string
	Kind      Kind
	Placement Placement
	Err       error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("cannot create %s unit %s in group %q: %v", e.Kind, e.Placement, e.Group, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }
