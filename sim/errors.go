package sim

import "fmt"

// Sentinel errors for the failure conditions callers are expected to handle.
// All errors returned by the engine wrap one of these, so callers can branch
// with errors.Is.
var (
	// ErrInvalidSchedule is returned when scheduling an event before the
	// current simulation time. Always a caller bug; never clamped.
	ErrInvalidSchedule = fmt.Errorf("invalid schedule")

	// ErrClockTerminated is returned by Run on an environment whose run
	// already finished.
	ErrClockTerminated = fmt.Errorf("clock already terminated")

	// ErrEmptyQueue is returned by Step when no executable event remains.
	ErrEmptyQueue = fmt.Errorf("event queue is empty")

	// ErrCapacityViolation is returned when a resource pool would be driven
	// below zero capacity.
	ErrCapacityViolation = fmt.Errorf("capacity violation")

	// ErrOverRelease is returned when releasing more of a resource than a
	// reservation holds.
	ErrOverRelease = fmt.Errorf("over-release")

	// ErrUnknownResource is returned when releasing a resource name that was
	// never part of the reservation.
	ErrUnknownResource = fmt.Errorf("unknown resource")

	// ErrTopology is returned for invalid graph wiring: a node upstream of
	// itself, a downstream added to a Sink, or edges crossing group
	// boundaries. Rejected at configuration time.
	ErrTopology = fmt.Errorf("topology error")
)

// StateViolation signals a broken engine invariant, e.g. a cancelled event
// firing or a finish-cycle action on a non-operational node. It is raised
// with panic, never returned: by the time it occurs the event graph is
// corrupt and the run must abort with full context.
type StateViolation struct {
	Time   float64
	Node   NodeID
	Detail string
}

func (v *StateViolation) Error() string {
	return fmt.Sprintf("state violation: time=%g node=%d: %s", v.Time, v.Node, v.Detail)
}

// violation panics with a StateViolation for the given node.
func violation(env *Environment, node NodeID, format string, args ...any) {
	now := 0.0
	if env != nil {
		now = env.Now()
	}
	panic(&StateViolation{Time: now, Node: node, Detail: fmt.Sprintf(format, args...)})
}
