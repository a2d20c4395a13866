package sim

// SourceConfig configures a Source.
type SourceConfig struct {
	// Template is the prototype part; the source only ever passes fresh
	// logical copies of it downstream. Nil means a default part of value 0
	// and quality 1.
	Template *Part
	// Copy produces a fresh logical copy of the template. Nil uses
	// (*Part).Copy.
	Copy func(*Part) *Part
	// CycleTime is how long producing one part takes.
	CycleTime float64
	// MaxParts bounds how many parts the source will produce. Zero or
	// negative means unlimited.
	MaxParts int64
}

// Source produces copies of a template part. It has no upstream and will not
// start producing the next part until the previous one is passed downstream.
// Each part passed downstream charges the source the part's value, modeling
// the cost of production.
type Source struct {
	node

	template  *Part
	copyFn    func(*Part) *Part
	cycleTime float64
	maxParts  int64

	output         *Part
	produced       int64
	costOfProduced float64

	waitingForDownstream bool
	idleExhausted        bool
}

// NewSource creates and registers a part source.
func NewSource(sys *System, name string, cfg SourceConfig) *Source {
	template := cfg.Template
	if template == nil {
		template = NewPart("", 0, 1.0)
	}
	copyFn := cfg.Copy
	if copyFn == nil {
		copyFn = (*Part).Copy
	}
	s := &Source{
		template:  template,
		copyFn:    copyFn,
		cycleTime: cfg.CycleTime,
		maxParts:  cfg.MaxParts,
	}
	sys.register(s, &s.node, name, "Source")
	return s
}

func (s *Source) acceptsUpstream() bool { return false }

// GivePart always refuses: a source has no input.
func (s *Source) GivePart(*Part) bool { return false }

// WaitingForPartSince always reports not waiting: a source never waits for a
// part.
func (s *Source) WaitingForPartSince() (float64, bool) { return 0, false }

func (s *Source) start() {
	s.schedulePrepareNext()
}

// Produced returns how many parts this source has passed downstream.
func (s *Source) Produced() int64 { return s.produced }

// CostOfProducedParts returns the summed value of all parts passed
// downstream.
func (s *Source) CostOfProducedParts() float64 { return s.costOfProduced }

// RemainingBudget returns how many more parts the source may produce, and
// false when production is unlimited.
func (s *Source) RemainingBudget() (int64, bool) {
	if s.maxParts <= 0 {
		return 0, false
	}
	rem := s.maxParts - s.produced
	if rem < 0 {
		rem = 0
	}
	return rem, true
}

// SetMaxParts adjusts the production budget at runtime without disrupting an
// in-progress cycle. Raising an exhausted budget resumes production.
func (s *Source) SetMaxParts(maxParts int64) {
	s.maxParts = maxParts
	if s.idleExhausted && !s.exhausted() {
		s.idleExhausted = false
		s.schedulePrepareNext()
	}
}

func (s *Source) exhausted() bool {
	return s.maxParts > 0 && s.produced >= s.maxParts
}

func (s *Source) schedulePrepareNext() {
	env := s.env()
	env.mustSchedule(env.Now()+s.cycleTime, s.id, s.prepareNextPart, KindFinishProcessing, "prepare part: "+s.name)
}

func (s *Source) prepareNextPart() {
	if s.exhausted() {
		s.idleExhausted = true
		return
	}
	s.output = s.copyFn(s.template)
	s.output.addRoutingHistory(s.id)
	s.schedulePassPartDownstream()
}

func (s *Source) schedulePassPartDownstream() {
	s.waitingForDownstream = false
	env := s.env()
	env.mustSchedule(env.Now(), s.id, s.passPartDownstream, KindPassPart, "pass part: "+s.name)
}

func (s *Source) passPartDownstream() {
	if s.output == nil {
		return
	}
	for _, dwn := range s.sortedDownstream() {
		cost := s.output.Value()
		if dwn.GivePart(s.output) {
			s.output = nil
			s.produced++
			s.costOfProduced += cost
			s.record("supplied_new_part", s.env().Now())
			s.AddCost("supplied_part", cost)
			s.schedulePrepareNext()
			return
		}
	}
	s.waitingForDownstream = true
}

// SpaceAvailableDownstream schedules a pass retry when the source was
// blocked with a finished part.
func (s *Source) SpaceAvailableDownstream() {
	if s.waitingForDownstream && s.output != nil {
		s.schedulePassPartDownstream()
	}
}

// NotifyUpstreamOfAvailableSpace is a no-op: a source has no upstream.
func (s *Source) NotifyUpstreamOfAvailableSpace() {}
