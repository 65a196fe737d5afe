package unit

// State represents the lifecycle state of a unit
type State string

const (
	StateNone    State = "none"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateShown   State = "shown"
	StateHidden  State = "hidden"
	StateDeleted State = "deleted"
)

// HasContent reports whether the state implies a successfully loaded provider
// resource. Membership is explicit so reordering the constants is harmless.
func (s State) HasContent() bool {
	switch s {
	case StateLoaded, StateShown, StateHidden:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave s
func (s State) IsTerminal() bool {
	return s == StateDeleted
}
