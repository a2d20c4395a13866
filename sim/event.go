package sim

import "fmt"

// EventKind classifies simulation events and decides execution order between
// events scheduled at the exact same time. Higher values run first.
//
// The relative order is load-bearing: machine throughput depends on
// KindFinishProcessing outranking KindPassPart so that a device finishing a
// cycle at time T makes its part available before pass attempts at T run.
type EventKind int

const (
	// KindTerminate is reserved for the end-of-run marker and is always the
	// last event executed at its timestamp.
	KindTerminate EventKind = iota
	KindOtherLowPriority
	KindFinishWork
	KindRestoreResource
	KindPassPart
	KindFinishProcessing
	KindFail
	KindSensor
	KindOtherHighPriority
)

func (k EventKind) String() string {
	switch k {
	case KindTerminate:
		return "Terminate"
	case KindOtherLowPriority:
		return "OtherLowPriority"
	case KindFinishWork:
		return "FinishWork"
	case KindRestoreResource:
		return "RestoreResource"
	case KindPassPart:
		return "PassPart"
	case KindFinishProcessing:
		return "FinishProcessing"
	case KindFail:
		return "Fail"
	case KindSensor:
		return "Sensor"
	case KindOtherHighPriority:
		return "OtherHighPriority"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is a single scheduled action. Events are immutable once scheduled
// except for the cancelled and paused bookkeeping flags.
type Event struct {
	Time  float64
	Actor NodeID
	Kind  EventKind
	Label string

	action   func()
	tieBreak float64 // random weight breaking same-kind ties without favoring insertion order
	seq      uint64  // insertion counter, final fallback so the order is total
	pausedAt float64
	paused   bool

	cancelled bool
	executed  bool
}

// Cancelled reports whether the event has been marked cancelled.
func (e *Event) Cancelled() bool {
	return e.cancelled
}

// less implements the event order: (time, kind descending, tieBreak, actor, seq).
func (e *Event) less(o *Event) bool {
	if e.Time != o.Time {
		return e.Time < o.Time
	}
	if e.Kind != o.Kind {
		return e.Kind > o.Kind
	}
	if e.tieBreak != o.tieBreak {
		return e.tieBreak < o.tieBreak
	}
	if e.Actor != o.Actor {
		return e.Actor < o.Actor
	}
	return e.seq < o.seq
}

func (e *Event) String() string {
	return fmt.Sprintf("Event{time=%g actor=%d kind=%s label=%q}", e.Time, e.Actor, e.Kind, e.Label)
}

// EventFault wraps a panic raised while executing an event's action so the
// failure surfaces with full scheduling context instead of a bare value.
type EventFault struct {
	Time  float64
	Actor NodeID
	Kind  EventKind
	Label string
	Cause any
}

func (f *EventFault) Error() string {
	return fmt.Sprintf("event action failed: time=%g actor=%d kind=%s label=%q: %v",
		f.Time, f.Actor, f.Kind, f.Label, f.Cause)
}
