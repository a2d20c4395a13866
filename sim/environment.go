package sim

import (
	"container/heap"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
)

// NodeID is the stable integer identity of a simulation actor. Flow devices,
// the maintainer, and any other event-scheduling component each own one.
type NodeID int64

// EnvironmentActor is the actor ID used for events scheduled by the
// environment itself and by components without a registered node identity.
const EnvironmentActor NodeID = -1

// eventHeap implements a priority queue with deterministic ordering.
// Ordering: time -> kind priority (descending) -> tie-break -> actor -> seq.
type eventHeap struct {
	events []*Event
}

func (h *eventHeap) Len() int { return len(h.events) }
func (h *eventHeap) Less(i, j int) bool { return h.events[i].less(h.events[j]) }
func (h *eventHeap) Swap(i, j int) { h.events[i], h.events[j] = h.events[j], h.events[i] }
func (h *eventHeap) Push(x any) { h.events = append(h.events, x.(*Event)) }
func (h *eventHeap) Pop() any {
	old := h.events
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	h.events = old[:n-1]
	return item
}

// Environment holds the simulation clock and the pending event timeline.
// It is strictly single-threaded: all "concurrency" is logical concurrency of
// events at the same instant, resolved by the EventKind ordering.
type Environment struct {
	now        float64
	events     eventHeap
	paused     []*Event
	rng        *rand.Rand
	seq        uint64
	terminated bool // terminate marker fired during the current Run
	finished   bool // a Run has completed; the clock cannot be reused
	recorder   Recorder
}

// NewEnvironment creates an Environment whose event tie-breaks are drawn from
// rng. A nil recorder is replaced by NopRecorder.
func NewEnvironment(rng *rand.Rand, recorder Recorder) *Environment {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Environment{
		rng:      rng,
		recorder: recorder,
	}
}

// Now returns the current simulation time.
func (env *Environment) Now() float64 {
	return env.now
}

// Recorder returns the datapoint recorder shared by all components.
func (env *Environment) Recorder() Recorder {
	return env.recorder
}

// PendingEvents returns the number of scheduled (not paused) events.
func (env *Environment) PendingEvents() int {
	return env.events.Len()
}

// Schedule queues action to run at the given time on behalf of actor.
// Scheduling strictly before the current time fails with ErrInvalidSchedule;
// the time is never clamped.
func (env *Environment) Schedule(time float64, actor NodeID, action func(), kind EventKind, label string) error {
	if time < env.now {
		return fmt.Errorf("%w: now=%g time=%g actor=%d label=%q", ErrInvalidSchedule, env.now, time, actor, label)
	}
	env.seq++
	ev := &Event{
		Time:     time,
		Actor:    actor,
		Kind:     kind,
		Label:    label,
		action:   action,
		tieBreak: env.rng.Float64(),
		seq:      env.seq,
	}
	heap.Push(&env.events, ev)
	return nil
}

// mustSchedule is used by engine components scheduling at or after now, where
// a rejection would mean a broken invariant rather than a caller bug.
func (env *Environment) mustSchedule(time float64, actor NodeID, action func(), kind EventKind, label string) {
	if err := env.Schedule(time, actor, action, kind, label); err != nil {
		violation(env, actor, "internal schedule rejected: %v", err)
	}
}

// Step pops the single smallest-keyed non-cancelled event, advances the clock
// to its time, and executes it. Cancelled events are discarded as they
// surface, without advancing time through them. Returns ErrEmptyQueue when no
// executable event remains.
//
// A panic inside the action is re-raised as *EventFault carrying the event's
// time, actor, and label.
func (env *Environment) Step() error {
	for env.events.Len() > 0 {
		ev := heap.Pop(&env.events).(*Event)
		if ev.cancelled {
			continue
		}
		env.now = ev.Time
		env.execute(ev)
		return nil
	}
	return ErrEmptyQueue
}

func (env *Environment) execute(ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			panic(&EventFault{Time: ev.Time, Actor: ev.Actor, Kind: ev.Kind, Label: ev.Label, Cause: r})
		}
	}()
	logrus.Debugf("t=%g executing %s", env.now, ev)
	if !ev.executed {
		ev.executed = true
		ev.action()
	}
}

// Run injects a terminate marker at now+duration with the lowest possible
// priority for that time, then steps until the marker fires or the queue
// drains. Running an environment whose run already completed returns
// ErrClockTerminated.
func (env *Environment) Run(duration float64) error {
	if env.finished {
		return fmt.Errorf("%w: now=%g", ErrClockTerminated, env.now)
	}
	if err := env.Schedule(env.now+duration, EnvironmentActor, func() { env.terminated = true }, KindTerminate, "terminate"); err != nil {
		return err
	}
	for !env.terminated {
		if err := env.Step(); err != nil {
			break
		}
	}
	env.terminated = false
	env.finished = true
	return nil
}

// CancelMatching marks every queued and paused event owned by actor as
// cancelled. Already-executed events are unaffected.
func (env *Environment) CancelMatching(actor NodeID) {
	for _, ev := range env.events.events {
		if ev.Actor == actor {
			ev.cancelled = true
		}
	}
	for _, ev := range env.paused {
		if ev.Actor == actor {
			ev.cancelled = true
		}
	}
}

// PauseMatching moves every queued event owned by actor into the parked set,
// recording the pause time. Paused events do not execute until resumed.
func (env *Environment) PauseMatching(actor NodeID) {
	kept := env.events.events[:0]
	for _, ev := range env.events.events {
		if ev.Actor == actor {
			ev.paused = true
			ev.pausedAt = env.now
			env.paused = append(env.paused, ev)
		} else {
			kept = append(kept, ev)
		}
	}
	env.events.events = kept
	heap.Init(&env.events)
}

// ResumeMatching re-inserts actor's paused events, shifting each one's time
// by the duration of its pause so the remaining delay is preserved.
func (env *Environment) ResumeMatching(actor NodeID) {
	kept := env.paused[:0]
	for _, ev := range env.paused {
		if ev.Actor != actor {
			kept = append(kept, ev)
			continue
		}
		ev.Time += env.now - ev.pausedAt
		ev.paused = false
		heap.Push(&env.events, ev)
	}
	env.paused = kept
}
