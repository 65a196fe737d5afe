package environment

import "fmt"

// Orientation of the screen
type Orientation string

const (
	OrientationUnknown   Orientation = "unknown"
	OrientationPortrait  Orientation = "portrait"
	OrientationLandscape Orientation = "landscape"
)

// Geometry is the current screen size and orientation
type Geometry struct {
	Width       int         `json:"width"`
	Height      int         `json:"height"`
	Orientation Orientation `json:"orientation"`
}

// String returns string representation
func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d/%s", g.Width, g.Height, g.Orientation)
}

// Reader supplies environment readings. It is polled on the tick goroutine
// and must not block.
type Reader interface {
	// IsOnline reports reachability only, not whether the network actually works
	IsOnline() bool

	// Geometry returns the current screen geometry
	Geometry() Geometry
}

// Controller is a Reader whose readings can be changed, used by hosts that
// push connectivity and screen updates instead of being polled.
type Controller interface {
	Reader
	SetOnline(online bool)
	SetGeometry(g Geometry)
}
