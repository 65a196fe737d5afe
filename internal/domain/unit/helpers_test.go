package unit_test

import (
	"fmt"

	"github.com/personal/adunit-lifecycle/internal/domain/unit"
	"github.com/personal/adunit-lifecycle/internal/infrastructure/persistence"
)

// fakeProvider records every call and hands out sequential handles.
type fakeProvider struct {
	next       int
	requests   []unit.Request
	shown      []unit.Handle
	hidden     []unit.Handle
	destroyed  []unit.Handle
	live       map[unit.Handle]bool
	requestErr error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{live: make(map[unit.Handle]bool)}
}

func (p *fakeProvider) Initialize(done func(error)) { done(nil) }

func (p *fakeProvider) Request(req unit.Request, sink unit.EventSink) (unit.Handle, error) {
	p.requests = append(p.requests, req)
	if p.requestErr != nil {
		return "", p.requestErr
	}
	p.next++
	h := unit.Handle(fmt.Sprintf("h%d", p.next))
	p.live[h] = true
	return h, nil
}

func (p *fakeProvider) Show(h unit.Handle) error {
	p.shown = append(p.shown, h)
	return nil
}

func (p *fakeProvider) Hide(h unit.Handle) error {
	p.hidden = append(p.hidden, h)
	return nil
}

func (p *fakeProvider) Destroy(h unit.Handle) error {
	p.destroyed = append(p.destroyed, h)
	delete(p.live, h)
	return nil
}

func (p *fakeProvider) IsDisplayable(h unit.Handle) bool { return p.live[h] }

type frameCounter struct{ n uint64 }

func (f *frameCounter) Frame() uint64 { return f.n }

type fixture struct {
	provider *fakeProvider
	repo     *persistence.MemoryUnitRepository
	frames   *frameCounter
	changes  []unit.Change
	factory  *unit.Factory
}

func newFixture() *fixture {
	f := &fixture{
		provider: newFakeProvider(),
		repo:     persistence.NewMemoryUnitRepository(),
		frames:   &frameCounter{n: 1},
	}
	rt := &unit.Runtime{
		Provider: f.provider,
		Frames:   f.frames,
		Observer: unit.ObserverFunc(func(c unit.Change) { f.changes = append(f.changes, c) }),
		UnitIDs: map[unit.Kind]string{
			unit.KindBanner:       "banner-id",
			unit.KindInterstitial: "interstitial-id",
			unit.KindRewarded:     "rewarded-id",
		},
	}
	f.factory = unit.NewFactory(f.repo, rt)
	return f
}

func (f *fixture) banner(group string, size unit.Size, pos unit.Position) *unit.Unit {
	u, err := f.factory.CreateUnit(unit.BannerSpec(group, size, pos))
	if err != nil {
		panic(err)
	}
	return u
}

func (f *fixture) single(group string, kind unit.Kind) *unit.Unit {
	u, err := f.factory.CreateUnit(unit.Spec{Group: group, Kind: kind})
	if err != nil {
		panic(err)
	}
	return u
}

func loadedEvent(u *unit.Unit) unit.Event {
	return unit.Event{Type: unit.EventLoaded, Handle: u.Handle()}
}

func failedEvent(u *unit.Unit) unit.Event {
	return unit.Event{Type: unit.EventFailed, Handle: u.Handle(), Err: fmt.Errorf("no fill")}
}
