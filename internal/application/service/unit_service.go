package service

import (
	"context"
	"time"

	"github.com/personal/adunit-lifecycle/internal/domain/environment"
	"github.com/personal/adunit-lifecycle/internal/domain/journal"
	"github.com/personal/adunit-lifecycle/internal/domain/unit"
)

// UnitService exposes unit administration to goroutines other than the
// tick goroutine. Every operation touching units goes through Manager.Call.
type UnitService struct {
	manager *Manager
	driver  *Driver
	env     environment.Reader
	journal journal.Repository
}

// NewUnitService creates a new UnitService. journalRepo may be nil.
func NewUnitService(manager *Manager, driver *Driver, env environment.Reader, journalRepo journal.Repository) *UnitService {
	return &UnitService{
		manager: manager,
		driver:  driver,
		env:     env,
		journal: journalRepo,
	}
}

// SizeRequest describes a banner size
type SizeRequest struct {
	Width    int  `json:"width" validate:"min=0"`
	Height   int  `json:"height" validate:"min=0"`
	Adaptive bool `json:"adaptive"`
}

// CreateUnitRequest represents a request to create a unit
type CreateUnitRequest struct {
	Group    string       `json:"group" validate:"required,max=128"`
	Kind     string       `json:"kind" validate:"required,oneof=banner interstitial rewarded rewarded_interstitial app_open"`
	Size     *SizeRequest `json:"size,omitempty" validate:"required_if=Kind banner"`
	Position string       `json:"position,omitempty" validate:"omitempty,oneof=top bottom top_left top_right bottom_left bottom_right center"`
}

// UnitResponse describes a unit
type UnitResponse struct {
	Group               string    `json:"group"`
	Index               int       `json:"index"`
	Kind                string    `json:"kind"`
	Placement           string    `json:"placement,omitempty"`
	State               string    `json:"state"`
	ShowRequested       bool      `json:"showRequested"`
	Active              bool      `json:"active"`
	Loaded              bool      `json:"loaded"`
	FailedToLoad        bool      `json:"failedToLoad"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	PixelWidth          int       `json:"pixelWidth,omitempty"`
	PixelHeight         int       `json:"pixelHeight,omitempty"`
	CreatedAt           time.Time `json:"createdAt"`
}

// ReMakeRequest represents a request to reload units
type ReMakeRequest struct {
	Group string `json:"group"`
	Kind  string `json:"kind" validate:"omitempty,oneof=banner interstitial rewarded rewarded_interstitial app_open"`
	Force bool   `json:"force"`
}

// GateResponse describes the global gate
type GateResponse struct {
	Allow      bool `json:"allow"`
	Acceptable bool `json:"acceptable"`
}

// EnvironmentRequest represents a request to change the environment
type EnvironmentRequest struct {
	Online   *bool                 `json:"online,omitempty"`
	Geometry *environment.Geometry `json:"geometry,omitempty"`
}

// EnvironmentResponse describes the current environment readings
type EnvironmentResponse struct {
	Online   bool                 `json:"online"`
	Geometry environment.Geometry `json:"geometry"`
}

func toUnitResponse(u *unit.Unit) *UnitResponse {
	resp := &UnitResponse{
		Group:               u.Group(),
		Index:               u.Index(),
		Kind:                string(u.Kind()),
		State:               string(u.State()),
		ShowRequested:       u.ShowRequested(),
		Active:              u.ActiveSelf(),
		Loaded:              u.IsLoaded(),
		FailedToLoad:        u.FailedToLoad(),
		ConsecutiveFailures: u.ConsecutiveFailures(),
		CreatedAt:           u.CreatedAt(),
	}
	if !u.Placement().IsZero() {
		resp.Placement = u.Placement().String()
	}
	resp.PixelWidth, resp.PixelHeight = u.PixelSize()
	return resp
}

// CreateUnit creates a unit
func (s *UnitService) CreateUnit(ctx context.Context, req *CreateUnitRequest) (*UnitResponse, error) {
	kind, err := unit.ParseKind(req.Kind)
	if err != nil {
		return nil, err
	}

	spec := unit.Spec{Group: req.Group, Kind: kind}
	if kind.IsReusable() && req.Size != nil {
		size := unit.Size{Width: req.Size.Width, Height: req.Size.Height, Adaptive: req.Size.Adaptive}
		placement, err := unit.NewPlacement(size, unit.Position(req.Position))
		if err != nil {
			return nil, err
		}
		spec.Placement = placement
	}

	return callValue(ctx, s.manager, func() (*UnitResponse, error) {
		u, err := s.manager.NewUnit(spec)
		if err != nil {
			return nil, err
		}
		return toUnitResponse(u), nil
	})
}

// ListUnits lists the units of a group, or every unit for AllGroups
func (s *UnitService) ListUnits(ctx context.Context, group string) ([]*UnitResponse, error) {
	return callValue(ctx, s.manager, func() ([]*UnitResponse, error) {
		units := s.manager.Units(group)
		result := make([]*UnitResponse, 0, len(units))
		for _, u := range units {
			result = append(result, toUnitResponse(u))
		}
		return result, nil
	})
}

// GetUnit retrieves one unit
func (s *UnitService) GetUnit(ctx context.Context, group string, index int) (*UnitResponse, error) {
	return callValue(ctx, s.manager, func() (*UnitResponse, error) {
		u := s.manager.Unit(group, index)
		if u == nil {
			return nil, ErrUnitNotFound
		}
		return toUnitResponse(u), nil
	})
}

// DestroyUnit destroys one unit
func (s *UnitService) DestroyUnit(ctx context.Context, group string, index int) error {
	return s.manager.Call(ctx, func() error {
		u := s.manager.Unit(group, index)
		if u == nil {
			return ErrUnitNotFound
		}
		u.Destroy()
		s.manager.updateLiveUnits()
		return nil
	})
}

// SetUnitActive shows or hides one unit without touching the others
func (s *UnitService) SetUnitActive(ctx context.Context, group string, index int, active bool) (*UnitResponse, error) {
	return callValue(ctx, s.manager, func() (*UnitResponse, error) {
		if !s.manager.Acceptable() {
			return nil, unit.ErrGateClosed
		}
		u := s.manager.Unit(group, index)
		if u == nil {
			return nil, ErrUnitNotFound
		}
		u.SetActiveSelf(active)
		return toUnitResponse(u), nil
	})
}

// SetGroupActive activates a group exclusively, or deactivates it
func (s *UnitService) SetGroupActive(ctx context.Context, group string, active bool) error {
	return s.manager.Call(ctx, func() error {
		if !s.manager.Acceptable() {
			return unit.ErrGateClosed
		}
		s.manager.SetActive(group, active)
		return nil
	})
}

// GetGroupActive reports whether a group has an active unit
func (s *UnitService) GetGroupActive(ctx context.Context, group string) (bool, error) {
	return callValue(ctx, s.manager, func() (bool, error) {
		return s.manager.GetActive(group), nil
	})
}

// DestroyGroup destroys the units of a group, or all units for AllGroups
func (s *UnitService) DestroyGroup(ctx context.Context, group string) (int, error) {
	return callValue(ctx, s.manager, func() (int, error) {
		return s.manager.Destroy(group), nil
	})
}

// ReMake reloads matching units keeping their show requests
func (s *UnitService) ReMake(ctx context.Context, req *ReMakeRequest) (int, error) {
	var kind unit.Kind
	if req.Kind != "" {
		k, err := unit.ParseKind(req.Kind)
		if err != nil {
			return 0, err
		}
		kind = k
	}

	return callValue(ctx, s.manager, func() (int, error) {
		if !s.manager.Acceptable() {
			return 0, unit.ErrGateClosed
		}
		return s.manager.ReMake(req.Group, kind, req.Force), nil
	})
}

// Gate returns the global gate flags
func (s *UnitService) Gate(ctx context.Context) *GateResponse {
	return &GateResponse{Allow: s.manager.Allow(), Acceptable: s.manager.Acceptable()}
}

// SetAllow opens or closes the global gate
func (s *UnitService) SetAllow(ctx context.Context, allow bool) (*GateResponse, error) {
	err := s.manager.Call(ctx, func() error {
		s.manager.SetAllow(allow)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Gate(ctx), nil
}

// Pause forwards host pause and resume
func (s *UnitService) Pause(ctx context.Context, paused bool) {
	s.driver.OnPause(paused)
}

// Environment returns the current environment readings
func (s *UnitService) Environment(ctx context.Context) *EnvironmentResponse {
	return &EnvironmentResponse{Online: s.env.IsOnline(), Geometry: s.env.Geometry()}
}

// UpdateEnvironment changes the environment readings when the host allows it
func (s *UnitService) UpdateEnvironment(ctx context.Context, req *EnvironmentRequest) (*EnvironmentResponse, error) {
	ctrl, ok := s.env.(environment.Controller)
	if !ok {
		return nil, ErrEnvironmentReadOnly
	}
	if req.Online != nil {
		ctrl.SetOnline(*req.Online)
	}
	if req.Geometry != nil {
		ctrl.SetGeometry(*req.Geometry)
	}
	return s.Environment(ctx), nil
}

// SchedulerStats returns a snapshot of the change detector
func (s *UnitService) SchedulerStats(ctx context.Context) (*DriverStats, error) {
	return callValue(ctx, s.manager, func() (*DriverStats, error) {
		stats := s.driver.Stats()
		return &stats, nil
	})
}

// RecentJournal returns recent lifecycle entries, optionally for one group
func (s *UnitService) RecentJournal(ctx context.Context, group string, limit int) ([]*journal.Entry, error) {
	if s.journal == nil {
		return nil, ErrJournalUnavailable
	}
	if group == AllGroups {
		return s.journal.FindRecent(ctx, limit)
	}
	return s.journal.FindByGroup(ctx, group, limit)
}
