package pool

import (
	"math/rand"
	"sync/atomic"
)

// SelectOpts is the information a Policy needs to pick an Entry for
// one call, derived from the caller's CallOpts.
type SelectOpts struct {
	PreferLocal bool
	StickyKey   []byte
}

// Policy selects one eligible Entry per call.
type Policy interface {
	Select(eligible []*Entry, opts SelectOpts) *Entry
}

// RoundRobinPolicy advances a shared counter modulo the eligible-list
// length exactly once per call.
type RoundRobinPolicy struct {
	counter atomic.Uint64
}

func NewRoundRobin() *RoundRobinPolicy { return &RoundRobinPolicy{} }

func (p *RoundRobinPolicy) Select(eligible []*Entry, _ SelectOpts) *Entry {
	if len(eligible) == 0 {
		return nil
	}
	n := p.counter.Add(1) - 1
	return eligible[int(n%uint64(len(eligible)))]
}

// WeightedPolicy samples over the eligible set with probability
// proportional to each entry's effective weight.
type WeightedPolicy struct{}

func NewWeighted() *WeightedPolicy { return &WeightedPolicy{} }

func (p *WeightedPolicy) Select(eligible []*Entry, opts SelectOpts) *Entry {
	if len(eligible) == 0 {
		return nil
	}
	weights := make([]float64, len(eligible))
	var total float64
	for i, e := range eligible {
		w := e.effectiveWeight(opts.PreferLocal)
		weights[i] = w
		total += w
	}
	if total <= 0 {
		return eligible[rand.Intn(len(eligible))]
	}
	r := rand.Float64() * total
	var acc float64
	for i, w := range weights {
		acc += w
		if r <= acc {
			return eligible[i]
		}
	}
	return eligible[len(eligible)-1]
}

// StickyPolicy picks eligible[hash(key) mod N], falling back to
// round-robin when the key is empty. The mapping is stable for a fixed
// eligibility set and key.
type StickyPolicy struct {
	keyFn    func(opts SelectOpts) []byte
	fallback *RoundRobinPolicy
}

// NewSticky builds a StickyPolicy using keyFn to derive the sticky key
// from each call's SelectOpts.
func NewSticky(keyFn func(opts SelectOpts) []byte) *StickyPolicy {
	return &StickyPolicy{keyFn: keyFn, fallback: NewRoundRobin()}
}

func (p *StickyPolicy) Select(eligible []*Entry, opts SelectOpts) *Entry {
	if len(eligible) == 0 {
		return nil
	}
	key := p.keyFn(opts)
	if len(key) == 0 {
		return p.fallback.Select(eligible, opts)
	}
	h := djb2(key)
	return eligible[int(h%uint32(len(eligible)))]
}

// djb2 is the classic unsigned 32-bit string hash.
func djb2(b []byte) uint32 {
	var h uint32 = 5381
	for _, c := range b {
		h = h*33 + uint32(c)
	}
	return h
}
