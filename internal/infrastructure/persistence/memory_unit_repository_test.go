package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/personal/adunit-lifecycle/internal/domain/unit"
)

func newRegistry(t *testing.T) (*MemoryUnitRepository, *unit.Factory) {
	t.Helper()
	repo := NewMemoryUnitRepository()
	return repo, unit.NewFactory(repo, &unit.Runtime{})
}

func TestMemoryUnitRepository_Lookup(t *testing.T) {
	repo, factory := newRegistry(t)

	banner, err := factory.CreateUnit(unit.BannerSpec("menu", unit.SizeBanner, unit.PositionBottom))
	require.NoError(t, err)
	rewarded, err := factory.CreateUnit(unit.Spec{Group: "shop", Kind: unit.KindRewarded})
	require.NoError(t, err)

	assert.Equal(t, 2, repo.Count())
	assert.Same(t, banner, repo.Find("menu", 0))
	assert.Nil(t, repo.Find("menu", 1))
	assert.Equal(t, []*unit.Unit{rewarded}, repo.FindByGroup("shop"))
	assert.Empty(t, repo.FindByGroup("missing"))
	assert.Equal(t, []*unit.Unit{banner, rewarded}, repo.All())
	assert.Nil(t, repo.FindByHandle(""))
}

func TestMemoryUnitRepository_AddTwice(t *testing.T) {
	repo, factory := newRegistry(t)
	u, err := factory.CreateUnit(unit.Spec{Group: "level", Kind: unit.KindInterstitial})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.Add(u), unit.ErrUnitAlreadyExists)
	assert.Equal(t, 1, repo.Count())
}

func TestMemoryUnitRepository_RemoveAndClear(t *testing.T) {
	repo, factory := newRegistry(t)
	first, _ := factory.CreateUnit(unit.BannerSpec("menu", unit.SizeBanner, unit.PositionBottom))
	_, _ = factory.CreateUnit(unit.BannerSpec("menu", unit.SizeLargeBanner, unit.PositionTop))

	assert.True(t, repo.Remove(first))
	assert.False(t, repo.Remove(first))
	assert.Equal(t, 2, repo.NextIndex("menu"))

	repo.Clear()
	assert.Equal(t, 0, repo.Count())
	assert.Equal(t, 0, repo.NextIndex("menu"))
}

func TestMemoryUnitRepository_AllReturnsCopy(t *testing.T) {
	repo, factory := newRegistry(t)
	_, _ = factory.CreateUnit(unit.BannerSpec("menu", unit.SizeBanner, unit.PositionBottom))

	all := repo.All()
	all[0] = nil

	assert.NotNil(t, repo.All()[0])
}
