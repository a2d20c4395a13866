package sim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_FailureLosesPartMidProcessing(t *testing.T) {
	sys := NewSystem(1, NewMemoryRecorder())
	m := NewMachine(sys, "press", MachineConfig{CycleTime: 5})

	var lost *Part
	var wasFailure bool
	m.AddShutdownCallback(func(_ *Machine, isFailure bool, lostPart *Part) {
		wasFailure = isFailure
		lost = lostPart
	})

	p := NewPart("doomed", 1, 1)
	require.True(t, m.GivePart(p))
	require.NoError(t, m.ScheduleFailure(2, "breakdown"))
	require.NoError(t, sys.Simulate(10))

	assert.False(t, m.IsOperational())
	assert.True(t, wasFailure)
	assert.Same(t, p, lost, "the in-flight part is lost on failure")
	assert.Nil(t, m.HeldPart())
	assert.Nil(t, m.PendingOutput())

	rec := sys.Recorder().(*MemoryRecorder)
	failures := rec.Datapoints("device_failure", "press")
	require.Len(t, failures, 1)
	assert.Equal(t, 2.0, failures[0].Time)
}

func TestMachine_FailurePreservesPendingOutput(t *testing.T) {
	sys := NewSystem(1, nil)
	m := NewMachine(sys, "press", MachineConfig{CycleTime: 1})
	// No downstream: the finished part stays in the output slot.

	var lost *Part
	m.AddShutdownCallback(func(_ *Machine, _ bool, lostPart *Part) { lost = lostPart })

	p := NewPart("survivor", 1, 1)
	require.True(t, m.GivePart(p))
	require.NoError(t, m.ScheduleFailure(3, "breakdown"))
	require.NoError(t, sys.Simulate(10))

	assert.Nil(t, lost, "a part already in the output slot is not lost")
	assert.Same(t, p, m.PendingOutput())
}

func TestMachine_FailDuringShutdownDropsPausedCycle(t *testing.T) {
	sys := NewSystem(1, nil)
	m := NewMachine(sys, "press", MachineConfig{CycleTime: 5})

	finished := 0
	m.AddFinishProcessingCallback(func(*Machine, *Part) { finished++ })
	var lost *Part
	m.AddShutdownCallback(func(_ *Machine, isFailure bool, lostPart *Part) {
		if isFailure {
			lost = lostPart
		}
	})

	p := NewPart("doomed", 1, 1)
	require.True(t, m.GivePart(p))
	env := sys.Env()
	require.NoError(t, env.Schedule(1, EnvironmentActor, m.Shutdown, KindOtherHighPriority, "maintenance start"))
	require.NoError(t, env.Schedule(2, EnvironmentActor, m.Fail, KindFail, "breakdown"))
	require.NoError(t, env.Schedule(3, EnvironmentActor, m.RestoreFunctionality, KindOtherHighPriority, "back in service"))
	require.NoError(t, sys.Simulate(10))

	// The cycle paused at t=1 was voided by the failure at t=2: restoring
	// must not resume it against a part that no longer exists.
	assert.Equal(t, 0, finished)
	assert.Same(t, p, lost)
	assert.True(t, m.IsOperational())
	assert.Nil(t, m.HeldPart())
	assert.Nil(t, m.PendingOutput())
}

func TestMachine_ShutdownPreservesRemainingCycle(t *testing.T) {
	sys := NewSystem(1, nil)
	m := NewMachine(sys, "press", MachineConfig{CycleTime: 5})

	finishedAt := -1.0
	m.AddFinishProcessingCallback(func(_ *Machine, _ *Part) { finishedAt = sys.Env().Now() })

	require.True(t, m.GivePart(NewPart("p", 1, 1)))
	env := sys.Env()
	require.NoError(t, env.Schedule(2, EnvironmentActor, m.Shutdown, KindOtherHighPriority, "maintenance start"))
	require.NoError(t, env.Schedule(4, EnvironmentActor, m.RestoreFunctionality, KindOtherHighPriority, "maintenance end"))
	require.NoError(t, sys.Simulate(20))

	// Cycle started at 0 with 3 remaining when shut down at 2; resumed at 4,
	// so it completes at 7 instead of 5.
	assert.Equal(t, 7.0, finishedAt)
	assert.True(t, m.IsOperational())
}

func TestMachine_CallbacksFireInRegistrationOrder(t *testing.T) {
	sys := NewSystem(1, nil)
	m := NewMachine(sys, "press", MachineConfig{CycleTime: 1})
	sink := NewSink(sys, "sink", 0, false)
	require.NoError(t, sys.Connect(sink, m))

	var order []string
	m.AddFinishProcessingCallback(func(*Machine, *Part) { order = append(order, "first") })
	m.AddFinishProcessingCallback(func(*Machine, *Part) { order = append(order, "second") })

	require.True(t, m.GivePart(NewPart("p", 1, 1)))
	require.NoError(t, sys.Simulate(5))

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestMachine_ResourceGatedAcceptance(t *testing.T) {
	sys := NewSystem(1, nil)
	require.NoError(t, sys.Resources().AddResources("operator", 1))

	src := NewSource(sys, "src", SourceConfig{CycleTime: 1})
	a := NewMachine(sys, "a", MachineConfig{CycleTime: 10, Resources: map[string]float64{"operator": 1}})
	b := NewMachine(sys, "b", MachineConfig{CycleTime: 10, Resources: map[string]float64{"operator": 1}})
	sinkA := NewSink(sys, "sink_a", 0, false)
	sinkB := NewSink(sys, "sink_b", 0, false)
	require.NoError(t, sys.Connect(a, src))
	require.NoError(t, sys.Connect(b, src))
	require.NoError(t, sys.Connect(sinkA, a))
	require.NoError(t, sys.Connect(sinkB, b))

	require.NoError(t, sys.Simulate(25))

	// One operator serializes the two machines: only one can process at a
	// time, so combined throughput matches a single machine's.
	total := sinkA.ReceivedPartsCount() + sinkB.ReceivedPartsCount()
	assert.Equal(t, 2, total)
	assert.LessOrEqual(t, sys.Resources().InUse("operator"), 1.0)
}

func TestMachine_ReleaseSkippedWhenImmediatelyReused(t *testing.T) {
	sys := NewSystem(1, NewMemoryRecorder())
	require.NoError(t, sys.Resources().AddResources("operator", 1))

	src := NewSource(sys, "src", SourceConfig{CycleTime: 1})
	m := NewMachine(sys, "m", MachineConfig{CycleTime: 1, Resources: map[string]float64{"operator": 1}})
	sink := NewSink(sys, "sink", 0, false)
	require.NoError(t, sys.Connect(m, src))
	require.NoError(t, sys.Connect(sink, m))

	require.NoError(t, sys.Simulate(50))

	// Back-to-back parts keep the reservation alive across cycles instead
	// of releasing and re-reserving every time.
	assert.Equal(t, 49, sink.ReceivedPartsCount())
}

func TestMachine_RestoredCallbackAndUtilization(t *testing.T) {
	sys := NewSystem(1, nil)
	m := NewMachine(sys, "press", MachineConfig{CycleTime: 4})
	sink := NewSink(sys, "sink", 0, false)
	require.NoError(t, sys.Connect(sink, m))

	restored := 0
	m.AddRestoredCallback(func(*Machine) { restored++ })

	require.True(t, m.GivePart(NewPart("p", 1, 1)))
	env := sys.Env()
	require.NoError(t, env.Schedule(1, EnvironmentActor, m.Shutdown, KindOtherHighPriority, "down"))
	require.NoError(t, env.Schedule(3, EnvironmentActor, m.RestoreFunctionality, KindOtherHighPriority, "up"))
	require.NoError(t, sys.Simulate(10))

	assert.Equal(t, 1, restored)
	// Processing ran 0..1 and 3..6; the machine was down 1..3.
	assert.InDelta(t, 4.0, m.UtilizationTime(), 1e-9)
	assert.InDelta(t, 8.0, m.Uptime(), 1e-9)

	summary := SummarizeUtilization(m)
	assert.InDelta(t, 0.5, summary.Utilization, 1e-9)
}
