package sim

// Sink is the end of a production line: it accepts parts, absorbs their
// value into its own value accumulator, and never passes them on. Adding a
// downstream to a Sink is a topology error.
type Sink struct {
	node

	cycleTime    float64 // minimum time between receiving parts
	collectParts bool

	slot          *Part
	collected     []*Part
	receivedCount int
	valueReceived float64
}

// NewSink creates and registers a sink. cycleTime is the minimum time
// between received parts; with collectParts set, received parts are retained
// and available through CollectedParts.
func NewSink(sys *System, name string, cycleTime float64, collectParts bool) *Sink {
	s := &Sink{cycleTime: cycleTime, collectParts: collectParts}
	sys.register(s, &s.node, name, "Sink")
	return s
}

func (s *Sink) acceptsDownstream() bool { return false }

func (s *Sink) start() {
	s.setWaitingForPart(true, true)
}

// ReceivedPartsCount returns how many parts the sink has collected.
func (s *Sink) ReceivedPartsCount() int { return s.receivedCount }

// ValueOfReceivedParts returns the summed value of all collected parts.
func (s *Sink) ValueOfReceivedParts() float64 { return s.valueReceived }

// CollectedParts returns the retained parts in the order they were received.
// Empty unless the sink was created with collectParts.
func (s *Sink) CollectedParts() []*Part { return s.collected }

// WaitingForPartSince reports when the sink started waiting for a part.
func (s *Sink) WaitingForPartSince() (float64, bool) {
	return s.waitingSince, s.waiting
}

// GivePart accepts and absorbs the part unless the sink is still in the
// cooldown window from the previous one.
func (s *Sink) GivePart(p *Part) bool {
	if p == nil || s.blockInput || s.slot != nil {
		return false
	}
	s.slot = p
	p.addRoutingHistory(s.id)
	s.setWaitingForPart(false, false)

	s.receivedCount++
	s.valueReceived += p.Value()
	s.AddValue("collected_part", p.Value())
	s.record("received_part", receivedPart{Time: s.env().Now(), PartID: p.ID(), Quality: p.Quality(), Value: p.Value()})
	if s.collectParts {
		s.collected = append(s.collected, p)
	}

	if s.cycleTime <= 0 {
		s.finishCycle()
	} else {
		env := s.env()
		env.mustSchedule(env.Now()+s.cycleTime, s.id, s.finishCycle, KindFinishProcessing, "finish cycle: "+s.name)
	}
	return true
}

func (s *Sink) finishCycle() {
	s.slot = nil
	s.NotifyUpstreamOfAvailableSpace()
}

// SpaceAvailableDownstream is a no-op: a sink has no downstream.
func (s *Sink) SpaceAvailableDownstream() {}

// NotifyUpstreamOfAvailableSpace marks the sink ready for the next part and
// relays the relief signal upstream.
func (s *Sink) NotifyUpstreamOfAvailableSpace() {
	s.setWaitingForPart(true, false)
	s.notifyUpstream()
}
