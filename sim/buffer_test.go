package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffer_MinimumDelayHoldsParts(t *testing.T) {
	sys := NewSystem(1, NewMemoryRecorder())
	src := NewSource(sys, "src", SourceConfig{CycleTime: 3})
	buf := NewBuffer(sys, "buf", 10, 5)
	sink := NewSink(sys, "sink", 0, false)
	require.NoError(t, sys.Connect(buf, src))
	require.NoError(t, sys.Connect(sink, buf))

	require.NoError(t, sys.Simulate(20))

	// Parts enter the buffer at 3, 6, 9, ... and may leave 5 units later:
	// the sink sees them at 8, 11, 14, 17, 20.
	assert.Equal(t, 5, sink.ReceivedPartsCount())

	rec := sys.Recorder().(*MemoryRecorder)
	arrivals := rec.Datapoints("received_part", "sink")
	require.NotEmpty(t, arrivals)
	assert.InDelta(t, 8.0, arrivals[0].Time, 1e-9,
		"a part must never leave before its minimum residence time")
}

func TestBuffer_CapacityBoundsUpstream(t *testing.T) {
	sys := NewSystem(1, nil)
	src := NewSource(sys, "src", SourceConfig{CycleTime: 1})
	buf := NewBuffer(sys, "buf", 3, 0)
	require.NoError(t, sys.Connect(buf, src))
	// No downstream: the buffer can only ever fill up.

	require.NoError(t, sys.Simulate(50))

	assert.Equal(t, 3, buf.Level())
	assert.Equal(t, int64(3), src.Produced())
}

func TestBuffer_FIFOOrder(t *testing.T) {
	sys := NewSystem(1, nil)
	buf := NewBuffer(sys, "buf", 5, 0)
	sink := NewSink(sys, "sink", 0, true)
	require.NoError(t, sys.Connect(sink, buf))

	first := NewPart("first", 0, 1)
	second := NewPart("second", 0, 1)
	require.True(t, buf.GivePart(first))
	require.True(t, buf.GivePart(second))
	require.NoError(t, sys.Simulate(1))

	parts := sink.CollectedParts()
	require.Len(t, parts, 2)
	assert.Equal(t, "first", parts[0].Name())
	assert.Equal(t, "second", parts[1].Name())
}

func TestBuffer_DrainsBacklogWhenDownstreamFrees(t *testing.T) {
	sys := NewSystem(1, nil)
	src := NewSource(sys, "src", SourceConfig{CycleTime: 1, MaxParts: 6})
	buf := NewBuffer(sys, "buf", 10, 0)
	m := NewMachine(sys, "m", MachineConfig{CycleTime: 4})
	sink := NewSink(sys, "sink", 0, false)
	require.NoError(t, sys.Connect(buf, src))
	require.NoError(t, sys.Connect(m, buf))
	require.NoError(t, sys.Connect(sink, m))

	require.NoError(t, sys.Simulate(40))

	// The buffer absorbs the fast source; the slow machine drains it one
	// part per 4 units until all 6 made it through.
	assert.Equal(t, 6, sink.ReceivedPartsCount())
	assert.Equal(t, 0, buf.Level())
}

func TestBuffer_RejectsInvalidConfiguration(t *testing.T) {
	sys := NewSystem(1, nil)
	assert.Panics(t, func() { NewBuffer(sys, "bad", 0, 0) })
	assert.Panics(t, func() { NewBuffer(sys, "bad", 1, -1) })
}
