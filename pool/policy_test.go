package pool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func entries(n int) []*Entry {
	out := make([]*Entry, n)
	for i := range out {
		out[i] = newEntry(uint64(i+1), nil, 1, Meta{})
	}
	return out
}

func TestRoundRobinCyclesThroughEligible(t *testing.T) {
	es := entries(3)
	p := NewRoundRobin()
	seen := make([]uint64, 6)
	for i := range seen {
		seen[i] = p.Select(es, SelectOpts{}).ID
	}
	require.Equal(t, []uint64{1, 2, 3, 1, 2, 3}, seen)
}

func TestRoundRobinEmptyReturnsNil(t *testing.T) {
	p := NewRoundRobin()
	require.Nil(t, p.Select(nil, SelectOpts{}))
}

func TestWeightedPolicyBiasesTowardHigherWeight(t *testing.T) {
	heavy := newEntry(1, nil, 100, Meta{})
	light := newEntry(2, nil, 1, Meta{})
	es := []*Entry{heavy, light}

	p := NewWeighted()
	counts := map[uint64]int{}
	for i := 0; i < 500; i++ {
		counts[p.Select(es, SelectOpts{}).ID]++
	}
	require.Greater(t, counts[1], counts[2]*5)
}

func TestWeightedPolicyPreferLocalDoublesLocalWeight(t *testing.T) {
	local := newEntry(1, nil, 1, Meta{Locality: LocalityLocal})
	wan := newEntry(2, nil, 1, Meta{Locality: LocalityWAN})
	es := []*Entry{local, wan}

	p := NewWeighted()
	counts := map[uint64]int{}
	for i := 0; i < 500; i++ {
		counts[p.Select(es, SelectOpts{PreferLocal: true}).ID]++
	}
	require.Greater(t, counts[1], counts[2])
}

func TestStickyPolicyIsStableForFixedKeyAndSet(t *testing.T) {
	es := entries(5)
	p := NewSticky(func(opts SelectOpts) []byte { return opts.StickyKey })

	key := []byte("user-42")
	first := p.Select(es, SelectOpts{StickyKey: key}).ID
	for i := 0; i < 20; i++ {
		got := p.Select(es, SelectOpts{StickyKey: key}).ID
		require.Equal(t, first, got)
	}
}

func TestStickyPolicyFallsBackToRoundRobinOnEmptyKey(t *testing.T) {
	es := entries(3)
	p := NewSticky(func(opts SelectOpts) []byte { return opts.StickyKey })
	seen := make([]uint64, 3)
	for i := range seen {
		seen[i] = p.Select(es, SelectOpts{}).ID
	}
	require.Equal(t, []uint64{1, 2, 3}, seen)
}

func TestDjb2IsDeterministic(t *testing.T) {
	require.Equal(t, djb2([]byte("abc")), djb2([]byte("abc")))
	require.NotEqual(t, djb2([]byte("abc")), djb2([]byte("abd")))
}
