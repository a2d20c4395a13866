package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_ConnectMaintainsBothDirections(t *testing.T) {
	sys := NewSystem(1, nil)
	a := NewFlowController(sys, "a")
	b := NewFlowController(sys, "b")
	c := NewFlowController(sys, "c")

	require.NoError(t, sys.Connect(b, a))
	require.NoError(t, sys.Connect(c, a))

	g := sys.Graph()
	assert.Equal(t, []NodeID{a.ID()}, g.Upstream(b.ID()))
	assert.ElementsMatch(t, []NodeID{b.ID(), c.ID()}, g.Downstream(a.ID()))
}

func TestGraph_SetUpstreamReplacesOldEdges(t *testing.T) {
	sys := NewSystem(1, nil)
	a := NewFlowController(sys, "a")
	b := NewFlowController(sys, "b")
	c := NewFlowController(sys, "c")

	require.NoError(t, sys.Connect(c, a))
	require.NoError(t, sys.Connect(c, b))

	g := sys.Graph()
	assert.Equal(t, []NodeID{b.ID()}, g.Upstream(c.ID()))
	assert.Empty(t, g.Downstream(a.ID()), "the stale reverse edge must be removed")
	assert.Equal(t, []NodeID{c.ID()}, g.Downstream(b.ID()))
}

func TestGraph_RejectsSelfLoop(t *testing.T) {
	sys := NewSystem(1, nil)
	a := NewFlowController(sys, "a")
	assert.ErrorIs(t, sys.Connect(a, a), ErrTopology)
}

func TestGraph_SinkCannotHaveDownstream(t *testing.T) {
	sys := NewSystem(1, nil)
	sink := NewSink(sys, "sink", 0, false)
	fc := NewFlowController(sys, "fc")
	assert.ErrorIs(t, sys.Connect(fc, sink), ErrTopology)
}

func TestGraph_SourceCannotHaveUpstream(t *testing.T) {
	sys := NewSystem(1, nil)
	src := NewSource(sys, "src", SourceConfig{CycleTime: 1})
	fc := NewFlowController(sys, "fc")
	assert.ErrorIs(t, sys.Connect(src, fc), ErrTopology)
}

func TestGraph_RejectsEdgesAcrossGroupBoundary(t *testing.T) {
	sys := NewSystem(1, nil)
	member := NewFlowController(sys, "member")
	outsider := NewFlowController(sys, "outsider")

	_, err := NewGroup(sys, "cell", []Node{member})
	require.NoError(t, err)

	assert.ErrorIs(t, sys.Connect(member, outsider), ErrTopology)
	assert.ErrorIs(t, sys.Connect(outsider, member), ErrTopology)
}

func TestGraph_FailedWiringLeavesEdgesUntouched(t *testing.T) {
	sys := NewSystem(1, nil)
	a := NewFlowController(sys, "a")
	b := NewFlowController(sys, "b")
	sink := NewSink(sys, "sink", 0, false)
	require.NoError(t, sys.Connect(b, a))

	// One bad upstream in the set rejects the whole call atomically.
	err := sys.Graph().SetUpstream(b, []Node{a, sink})
	require.ErrorIs(t, err, ErrTopology)
	assert.Equal(t, []NodeID{a.ID()}, sys.Graph().Upstream(b.ID()))
}
