package pool

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zacharygriffee/neonplex"
	"github.com/zacharygriffee/neonplex/rpc"
)

func TestEffectiveWeightAppliesLocalityMultiplier(t *testing.T) {
	local := newEntry(1, nil, 1, Meta{Locality: LocalityLocal})
	wan := newEntry(2, nil, 1, Meta{Locality: LocalityWAN})
	require.Greater(t, local.effectiveWeight(false), wan.effectiveWeight(false))
}

func TestEffectiveWeightDecaysWithFailures(t *testing.T) {
	e := newEntry(1, nil, 1, Meta{})
	before := e.effectiveWeight(false)
	e.recordOutcome(time.Now(), nil, assert.AnError)
	after := e.effectiveWeight(false)
	require.Less(t, after, before)
}

func TestEffectiveWeightHasPositiveFloor(t *testing.T) {
	e := newEntry(1, nil, 0.0001, Meta{})
	for i := 0; i < 50; i++ {
		e.recordOutcome(time.Now(), nil, assert.AnError)
	}
	require.Greater(t, e.effectiveWeight(false), 0.0)
}

func TestRecordOutcomeThrownErrorStartsCooldown(t *testing.T) {
	e := newEntry(1, nil, 1, Meta{})
	require.True(t, e.eligible(time.Now()))
	e.recordOutcome(time.Now(), nil, assert.AnError)
	require.False(t, e.eligible(time.Now()))
	require.True(t, e.eligible(time.Now().Add(3*time.Second)))
}

func TestRecordOutcomeFailureEnvelopeCountsAsFailureNoCooldown(t *testing.T) {
	e := newEntry(1, nil, 1, Meta{})
	env := rpc.Fail(rpc.CodeBadArg, "nope")
	e.recordOutcome(time.Now(), &env, nil)
	require.True(t, e.eligible(time.Now()))
	snap := e.snapshot()
	require.Equal(t, 1, snap.Failures)
}

func TestRecordOutcomeSuccessIncrementsSuccesses(t *testing.T) {
	e := newEntry(1, nil, 1, Meta{})
	env := rpc.OKEnvelope(nil, nil)
	e.recordOutcome(time.Now(), &env, nil)
	snap := e.snapshot()
	require.Equal(t, 1, snap.Successes)
	require.Equal(t, 0, snap.Failures)
}

func TestClientForCachesByChannelAndLane(t *testing.T) {
	e := newEntry(1, nil, 1, Meta{})
	calls := 0
	connect := func() (*rpc.Client, error) {
		calls++
		return nil, nil
	}
	idA := neonplex.ChannelID{Data: []byte("a")}
	idB := neonplex.ChannelID{Data: []byte("b")}

	c1, err := e.clientFor(idA, "rpc", connect)
	require.NoError(t, err)
	c2, err := e.clientFor(idA, "rpc", connect)
	require.NoError(t, err)
	require.Equal(t, c1, c2)
	require.Equal(t, 1, calls)

	_, err = e.clientFor(idB, "rpc", connect)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
