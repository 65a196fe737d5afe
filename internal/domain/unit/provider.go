package unit

// Handle identifies one provider-side ad resource. The empty handle means the
// unit currently owns nothing.
type Handle string

// EventType is a provider callback
type EventType string

const (
	EventLoaded EventType = "loaded"
	EventFailed EventType = "failed"
	EventOpened EventType = "opened"
	EventClosed EventType = "closed"
	EventReward EventType = "reward"
)

// Reward is the payload of a reward callback
type Reward struct {
	Type   string  `json:"type"`
	Amount float64 `json:"amount"`
}

// Event is a provider callback addressed to the handle that produced it.
type Event struct {
	Type   EventType
	Handle Handle
	Err    error
	Reward Reward
}

// EventSink receives provider callbacks. Post must be safe to call from any
// goroutine; implementations hand the event over to the tick goroutine.
type EventSink interface {
	Post(ev Event)
}

// Request describes one load request
type Request struct {
	UnitID    string
	Kind      Kind
	Placement Placement
}

// Provider is the ad-serving capability consumed by units.
type Provider interface {
	// Initialize starts the provider SDK. done is invoked exactly once,
	// possibly from another goroutine.
	Initialize(done func(error))

	// Request starts loading a new resource and returns its handle. The
	// outcome arrives later as EventLoaded or EventFailed on sink.
	Request(req Request, sink EventSink) (Handle, error)

	// Show displays the resource
	Show(h Handle) error

	// Hide hides the resource. Only meaningful for reusable kinds.
	Hide(h Handle) error

	// Destroy releases the resource. The handle must not be used afterwards.
	Destroy(h Handle) error

	// IsDisplayable reports whether the resource can still be shown.
	IsDisplayable(h Handle) bool
}

// Measurer is implemented by providers that can report the rendered size of
// a banner in pixels.
type Measurer interface {
	PixelSize(h Handle) (width, height int)
}
