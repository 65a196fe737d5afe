package unit

// FrameSource reports the number of the tick currently being processed.
type FrameSource interface {
	Frame() uint64
}

// dirtyFlag marks a provider-visible change until it has been observed for one
// whole tick. Every reader on the tick of the first read sees true; the flag
// clears on the first read of a later tick.
type dirtyFlag struct {
	changed    bool
	observed   bool
	observedAt uint64
}

func (d *dirtyFlag) mark() {
	d.changed = true
	d.observed = false
}

func (d *dirtyFlag) read(frame uint64) bool {
	if !d.changed {
		return false
	}
	if !d.observed {
		d.observed = true
		d.observedAt = frame
		return true
	}
	if frame == d.observedAt {
		return true
	}
	d.changed = false
	d.observed = false
	return false
}
