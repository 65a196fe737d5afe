package unit

import "fmt"

// Position is where a banner is anchored on screen.
type Position string

const (
	PositionTop         Position = "top"
	PositionBottom      Position = "bottom"
	PositionTopLeft     Position = "top_left"
	PositionTopRight    Position = "top_right"
	PositionBottomLeft  Position = "bottom_left"
	PositionBottomRight Position = "bottom_right"
	PositionCenter      Position = "center"
)

// IsValid validates the position value
func (p Position) IsValid() bool {
	switch p {
	case PositionTop, PositionBottom, PositionTopLeft, PositionTopRight,
		PositionBottomLeft, PositionBottomRight, PositionCenter:
		return true
	}
	return false
}

// Size is a banner size in density-independent pixels. An adaptive size has
// no fixed dimensions; the provider derives them from the screen width.
type Size struct {
	Width    int  `json:"width" mapstructure:"width"`
	Height   int  `json:"height" mapstructure:"height"`
	Adaptive bool `json:"adaptive,omitempty" mapstructure:"adaptive"`
}

// Standard banner sizes
var (
	SizeBanner          = Size{Width: 320, Height: 50}
	SizeLargeBanner     = Size{Width: 320, Height: 100}
	SizeMediumRectangle = Size{Width: 300, Height: 250}
	SizeFullBanner      = Size{Width: 468, Height: 60}
	SizeLeaderboard     = Size{Width: 728, Height: 90}
	SizeAdaptive        = Size{Adaptive: true}
)

// IsValid validates the size value
func (s Size) IsValid() bool {
	if s.Adaptive {
		return s.Width == 0 && s.Height == 0
	}
	return s.Width > 0 && s.Height > 0
}

// String returns string representation
func (s Size) String() string {
	if s.Adaptive {
		return "adaptive"
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Placement is the on-screen layout of a banner unit. Single-use kinds are
// full screen and carry the zero Placement.
type Placement struct {
	Size     Size     `json:"size"`
	Position Position `json:"position"`
}

// NewPlacement creates a placement, validating both parts
func NewPlacement(size Size, position Position) (Placement, error) {
	p := Placement{Size: size, Position: position}
	if !p.IsValid() {
		return Placement{}, fmt.Errorf("%w: %s at %q", ErrInvalidPlacement, size, position)
	}
	return p, nil
}

// IsValid validates the placement value
func (p Placement) IsValid() bool {
	return p.Size.IsValid() && p.Position.IsValid()
}

// IsZero reports whether p is the empty placement of full-screen kinds.
func (p Placement) IsZero() bool {
	return p == Placement{}
}

// String returns string representation
func (p Placement) String() string {
	if p.IsZero() {
		return "fullscreen"
	}
	return fmt.Sprintf("%s@%s", p.Size, p.Position)
}
