package sim

// SchedulePhase is one step of an OperatingSchedule: whether controlled
// devices accept parts, and how long that holds before the next phase.
type SchedulePhase struct {
	Duration float64
	Active   bool
}

// ScheduleTarget is the device-side surface an OperatingSchedule drives.
// Every flow device satisfies it through its embedded base.
type ScheduleTarget interface {
	Name() string
	SetBlockInput(blocked bool)
}

// OperatingSchedule toggles part acceptance on a set of devices according to
// a timetable. An inactive phase blocks new parts only: work a device already
// holds continues. Going active signals upstream so blocked senders retry.
//
// A cyclical schedule loops back to the first phase after the last; otherwise
// the last phase persists indefinitely.
type OperatingSchedule struct {
	sys      *System
	actor    NodeID
	name     string
	phases   []SchedulePhase
	cyclical bool

	index   int
	active  bool
	targets []ScheduleTarget
}

// NewOperatingSchedule creates a schedule that starts in its first phase at
// the current simulation time. Panics on an empty timetable or a phase with a
// non-positive duration.
func NewOperatingSchedule(sys *System, name string, phases []SchedulePhase, cyclical bool) *OperatingSchedule {
	if len(phases) == 0 {
		panic(&StateViolation{Detail: "operating schedule needs at least one phase"})
	}
	for _, p := range phases {
		if p.Duration <= 0 {
			panic(&StateViolation{Detail: "operating schedule phase duration must be positive"})
		}
	}
	s := &OperatingSchedule{
		sys:      sys,
		actor:    sys.allocID(),
		name:     name,
		cyclical: cyclical,
		active:   true,
	}
	s.phases = append(s.phases, phases...)
	env := sys.env
	env.mustSchedule(env.Now(), s.actor, s.applyPhase, KindOtherHighPriority, "schedule start: "+name)
	return s
}

// Name returns the schedule's name.
func (s *OperatingSchedule) Name() string { return s.name }

// IsActive reports whether the current phase lets targets accept parts.
func (s *OperatingSchedule) IsActive() bool { return s.active }

// AddTarget puts a device under this schedule's control and applies the
// schedule's current state to it. Adding a device twice is a no-op.
func (s *OperatingSchedule) AddTarget(t ScheduleTarget) {
	for _, existing := range s.targets {
		if existing == t {
			return
		}
	}
	s.targets = append(s.targets, t)
	t.SetBlockInput(!s.active)
}

// RemoveTarget releases a device from this schedule's control. The device
// keeps whatever block state it was last given.
func (s *OperatingSchedule) RemoveTarget(t ScheduleTarget) {
	for i, existing := range s.targets {
		if existing == t {
			s.targets = append(s.targets[:i], s.targets[i+1:]...)
			return
		}
	}
}

func (s *OperatingSchedule) applyPhase() {
	p := s.phases[s.index]
	s.active = p.Active
	for _, t := range s.targets {
		t.SetBlockInput(!p.Active)
	}
	s.sys.recorder.Record("schedule_update", s.name, scheduleUpdate{Time: s.sys.env.Now(), Active: p.Active})

	// A single-phase timetable never changes state again.
	if len(s.phases) > 1 {
		env := s.sys.env
		env.mustSchedule(env.Now()+p.Duration, s.actor, s.advance, KindOtherHighPriority, "schedule update: "+s.name)
	}
}

func (s *OperatingSchedule) advance() {
	s.index++
	if !s.cyclical && s.index >= len(s.phases) {
		return
	}
	s.index %= len(s.phases)
	s.applyPhase()
}

type scheduleUpdate struct {
	Time   float64
	Active bool
}
