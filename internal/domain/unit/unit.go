package unit

import (
	"fmt"
	"time"
)

// Cause names what triggered a change
type Cause string

const (
	CauseLoad          Cause = "load"
	CauseLoaded        Cause = "loaded"
	CauseFailed        Cause = "failed"
	CauseShow          Cause = "show"
	CauseHide          Cause = "hide"
	CauseOpened        Cause = "opened"
	CauseClosed        Cause = "closed"
	CauseReward        Cause = "reward"
	CauseRelease       Cause = "release"
	CauseDestroy       Cause = "destroy"
	CauseProviderError Cause = "provider_error"
)

// Change describes one observable step of a unit. From equals To for events
// that do not move the state (rewards, banner clicks, provider call errors).
type Change struct {
	Unit   *Unit
	From   State
	To     State
	Cause  Cause
	Err    error
	Reward *Reward
}

// Observer is notified of every change on the tick goroutine
type Observer interface {
	OnChange(c Change)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(c Change)

func (f ObserverFunc) OnChange(c Change) { f(c) }

// Runtime carries the collaborators shared by every unit of one manager.
type Runtime struct {
	Provider Provider
	Sink     EventSink
	Frames   FrameSource
	Observer Observer
	UnitIDs  map[Kind]string
}

// LoadOptions controls Load
type LoadOptions struct {
	// Force discards an in-flight or loaded resource and requests a new one.
	Force bool
	// KeepRequest keeps a pending show request if this load fails.
	KeepRequest bool
}

// Unit is one logical ad placement. All methods must be called on the tick
// goroutine; provider callbacks reach it through HandleEvent.
type Unit struct {
	group     string
	index     int
	kind      Kind
	placement Placement
	createdAt time.Time

	state               State
	showRequested       bool
	keepRequest         bool
	handle              Handle
	failedToLoad        bool
	consecutiveFailures int
	loadStartedAt       uint64
	dirty               dirtyFlag

	onReward func(Reward)
	rt       *Runtime
	repo     Repository
}

// Getters
func (u *Unit) Group() string            { return u.group }
func (u *Unit) Index() int               { return u.index }
func (u *Unit) Kind() Kind               { return u.kind }
func (u *Unit) Placement() Placement     { return u.placement }
func (u *Unit) CreatedAt() time.Time     { return u.createdAt }
func (u *Unit) State() State             { return u.state }
func (u *Unit) ShowRequested() bool      { return u.showRequested }
func (u *Unit) Handle() Handle           { return u.handle }
func (u *Unit) FailedToLoad() bool       { return u.failedToLoad }
func (u *Unit) ConsecutiveFailures() int { return u.consecutiveFailures }

// IsValid reports whether the unit has not been destroyed
func (u *Unit) IsValid() bool {
	return !u.state.IsTerminal()
}

// String returns string representation
func (u *Unit) String() string {
	return fmt.Sprintf("%s/%d(%s)", u.group, u.index, u.kind)
}

// IsLoaded is true only while the state implies loaded content and the
// provider still considers the resource displayable. Resources can go stale
// without a callback, so the provider is always asked.
func (u *Unit) IsLoaded() bool {
	return u.IsValid() && u.state.HasContent() && u.handle != "" && u.rt.Provider.IsDisplayable(u.handle)
}

// ActiveSelf reports the request-level visibility of the unit.
func (u *Unit) ActiveSelf() bool {
	return u.IsValid() && u.showRequested && u.handle != ""
}

// SetActiveSelf maps to Show or Hide. It does not touch other units.
func (u *Unit) SetActiveSelf(active bool) {
	if active {
		u.Show()
	} else {
		u.Hide()
	}
}

// Dirty reports whether provider-visible state changed since it was last
// observed. All reads during the tick of the first read return true.
func (u *Unit) Dirty() bool {
	return u.dirty.read(u.frame())
}

// IsStalled reports whether a load has been in flight for at least ticks ticks.
func (u *Unit) IsStalled(ticks uint64) bool {
	return u.state == StateLoading && u.frame()-u.loadStartedAt >= ticks
}

// PixelSize returns the rendered banner size when the provider can measure it.
func (u *Unit) PixelSize() (width, height int) {
	if !u.IsValid() || u.handle == "" || !u.kind.IsReusable() {
		return 0, 0
	}
	if m, ok := u.rt.Provider.(Measurer); ok {
		return m.PixelSize(u.handle)
	}
	return 0, 0
}

// Load requests a fresh provider resource. Without Force it does nothing
// while a load is in flight or content is present. Any existing handle is
// destroyed before the new request is issued.
func (u *Unit) Load(opts LoadOptions) {
	if !u.IsValid() {
		return
	}
	if !opts.Force && (u.state == StateLoading || u.state.HasContent()) {
		return
	}

	from := u.state
	u.release()
	u.keepRequest = opts.KeepRequest

	handle, err := u.rt.Provider.Request(Request{
		UnitID:    u.rt.UnitIDs[u.kind],
		Kind:      u.kind,
		Placement: u.placement,
	}, u.rt.Sink)
	u.handle = handle
	u.state = StateLoading
	u.loadStartedAt = u.frame()
	u.changed(from, CauseLoad, nil)

	if err == nil && handle == "" {
		err = ErrNoHandle
	}
	if err != nil {
		u.fail(err)
	}
}

// Show records the show request and displays the unit if it is ready.
// Banners become Shown immediately; single-use kinds become Shown when the
// provider reports the content opened.
func (u *Unit) Show() {
	if !u.IsValid() {
		return
	}
	u.showRequested = true
	if !u.IsLoaded() {
		return
	}

	if u.kind.IsReusable() {
		if u.state == StateShown {
			return
		}
		if err := u.rt.Provider.Show(u.handle); err != nil {
			u.providerError("show", err)
			return
		}
		from := u.state
		u.state = StateShown
		u.changed(from, CauseShow, nil)
		return
	}

	if u.state == StateLoaded {
		if err := u.rt.Provider.Show(u.handle); err != nil {
			u.providerError("show", err)
		}
	}
}

// Hide withdraws the show request. Only banners have a hidden state;
// single-use kinds are consumed once shown. Hiding a loading banner only
// withdraws the request so the load completes hidden.
func (u *Unit) Hide() {
	if !u.IsValid() {
		return
	}
	u.showRequested = false
	if !u.kind.IsReusable() {
		return
	}
	if u.state != StateShown && u.state != StateLoaded {
		return
	}
	if err := u.rt.Provider.Hide(u.handle); err != nil {
		u.providerError("hide", err)
		return
	}
	from := u.state
	u.state = StateHidden
	u.changed(from, CauseHide, nil)
}

// Release destroys the provider resource but keeps the unit registered.
func (u *Unit) Release() {
	if !u.IsValid() {
		return
	}
	from := u.state
	u.release()
	u.failedToLoad = false
	u.consecutiveFailures = 0
	if from != StateNone {
		u.state = StateNone
		u.changed(from, CauseRelease, nil)
	}
}

// Destroy tears the unit down and removes it from the registry. Every later
// call on the unit is a no-op.
func (u *Unit) Destroy() {
	if !u.IsValid() {
		return
	}
	from := u.state
	u.release()
	if u.repo != nil {
		u.repo.Remove(u)
	}
	u.showRequested = false
	u.state = StateDeleted
	u.changed(from, CauseDestroy, nil)
}

// HandleEvent applies a provider callback. It returns false when the event
// belongs to a handle the unit no longer owns; such events are ignored.
func (u *Unit) HandleEvent(ev Event) bool {
	if !u.IsValid() || ev.Handle == "" || ev.Handle != u.handle {
		return false
	}

	switch ev.Type {
	case EventLoaded:
		u.loaded()
	case EventFailed:
		if u.state == StateLoading {
			u.fail(ev.Err)
		}
	case EventOpened:
		u.opened()
	case EventClosed:
		u.closed()
	case EventReward:
		u.rewarded(ev.Reward)
	}
	return true
}

func (u *Unit) loaded() {
	if u.state != StateLoading {
		return
	}
	u.state = StateLoaded
	u.failedToLoad = false
	u.consecutiveFailures = 0
	u.changed(StateLoading, CauseLoaded, nil)

	if u.showRequested {
		u.Show()
		return
	}
	// banners load hidden
	if u.kind.IsReusable() {
		if err := u.rt.Provider.Hide(u.handle); err != nil {
			u.providerError("hide", err)
		}
	}
}

func (u *Unit) fail(err error) {
	from := u.state
	u.release()
	u.state = StateNone
	u.failedToLoad = true
	u.consecutiveFailures++
	if !u.keepRequest {
		u.showRequested = false
	}
	u.changed(from, CauseFailed, err)
}

func (u *Unit) opened() {
	if u.kind.IsReusable() {
		// banner click
		u.notify(Change{Unit: u, From: u.state, To: u.state, Cause: CauseOpened})
		return
	}
	if u.state != StateLoaded {
		return
	}
	u.state = StateShown
	u.changed(StateLoaded, CauseOpened, nil)
}

func (u *Unit) closed() {
	if u.kind.IsReusable() || u.state != StateShown {
		return
	}
	u.showRequested = false
	u.release()
	u.state = StateNone
	u.changed(StateShown, CauseClosed, nil)

	// prefetch the next one
	u.Load(LoadOptions{})
}

func (u *Unit) rewarded(r Reward) {
	if u.onReward != nil {
		u.onReward(r)
	}
	u.notify(Change{Unit: u, From: u.state, To: u.state, Cause: CauseReward, Reward: &r})
}

// release destroys the current handle, if any
func (u *Unit) release() {
	if u.handle == "" {
		return
	}
	h := u.handle
	u.handle = ""
	if err := u.rt.Provider.Destroy(h); err != nil {
		u.providerError("destroy", err)
	}
}

func (u *Unit) providerError(op string, err error) {
	u.notify(Change{Unit: u, From: u.state, To: u.state, Cause: CauseProviderError, Err: fmt.Errorf("%s: %w", op, err)})
}

func (u *Unit) changed(from State, cause Cause, err error) {
	if from != u.state {
		u.dirty.mark()
	}
	u.notify(Change{Unit: u, From: from, To: u.state, Cause: cause, Err: err})
}

func (u *Unit) notify(c Change) {
	if u.rt.Observer != nil {
		u.rt.Observer.OnChange(c)
	}
}

func (u *Unit) frame() uint64 {
	if u.rt.Frames == nil {
		return 0
	}
	return u.rt.Frames.Frame()
}
