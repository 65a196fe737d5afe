package unit

import (
	"time"
)

// Spec describes a unit to create
type Spec struct {
	Group     string
	Kind      Kind
	Placement Placement
	// OnReward is invoked on the tick goroutine for rewarding kinds.
	OnReward func(Reward)
}

// BannerSpec is a convenience constructor for a banner spec
func BannerSpec(group string, size Size, position Position) Spec {
	return Spec{Group: group, Kind: KindBanner, Placement: Placement{Size: size, Position: position}}
}

// Factory creates units and registers them, enforcing group exclusivity
type Factory struct {
	repo Repository
	rt   *Runtime
	now  func() time.Time
}

// NewFactory creates a new Unit factory
func NewFactory(repo Repository, rt *Runtime) *Factory {
	return &Factory{
		repo: repo,
		rt:   rt,
		now:  time.Now,
	}
}

// CreateUnit validates the request against the registry, then constructs and
// registers the unit in state None. No provider request is issued here.
func (f *Factory) CreateUnit(spec Spec) (*Unit, error) {
	if spec.Group == "" {
		return nil, ErrInvalidGroup
	}
	if !spec.Kind.IsValid() {
		return nil, ErrInvalidKind
	}
	if spec.Kind.IsReusable() {
		if !spec.Placement.IsValid() {
			return nil, ErrInvalidPlacement
		}
	} else {
		spec.Placement = Placement{}
	}

	if err := f.checkExclusivity(spec); err != nil {
		return nil, &ConstructionError{
			Group:     spec.Group,
			Kind:      spec.Kind,
			Placement: spec.Placement,
			Err:       err,
		}
	}

	u := &Unit{
		group:     spec.Group,
		index:     f.repo.NextIndex(spec.Group),
		kind:      spec.Kind,
		placement: spec.Placement,
		createdAt: f.now(),
		state:     StateNone,
		onReward:  spec.OnReward,
		rt:        f.rt,
		repo:      f.repo,
	}
	if err := f.repo.Add(u); err != nil {
		return nil, err
	}
	return u, nil
}

// checkExclusivity enforces: one singleton per group and nothing beside it;
// banners in a group never share a position; banners sharing a size anywhere
// share the same position, since they reuse the same provider unit identifier.
func (f *Factory) checkExclusivity(spec Spec) error {
	siblings := f.repo.FindByGroup(spec.Group)

	if spec.Kind.IsSingleton() {
		if len(siblings) > 0 {
			return ErrGroupOccupied
		}
		return nil
	}

	for _, other := range siblings {
		if other.Kind().IsSingleton() {
			return ErrKindConflict
		}
		if other.Placement().Position == spec.Placement.Position {
			return ErrDuplicatePosition
		}
	}

	for _, other := range f.repo.All() {
		if !other.Kind().IsReusable() {
			continue
		}
		if other.Placement().Size == spec.Placement.Size && other.Placement().Position != spec.Placement.Position {
			return ErrSizePositionMismatch
		}
	}
	return nil
}
