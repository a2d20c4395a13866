package sim

import "fmt"

// Handler is a production-line device that holds at most one part in transit
// and delays it for a configurable cycle time before passing it downstream.
// The held-part and pending-output slots are mutually exclusive windows: a
// new part is only accepted when both are empty.
//
// Handler provides the flow-control protocol that Machine, Buffer entry, and
// Sink build on: backpressure retries are scheduled as PassPart events, never
// run synchronously, so long chains cannot recurse through the call stack.
type Handler struct {
	node

	cycleTime       float64
	nextCycleOffset float64 // one-shot additive perturbation, reset each cycle

	part   *Part
	output *Part

	waitingForDownstream  bool
	receivedPartCallbacks []func(*Handler, *Part)

	// extension points for embedding devices
	operationalHook func() bool
	acceptHook      func(*Part) bool
	cycleStartHook  func()
	cycleFinishHook func(*Part)
}

// NewHandler creates and registers a single-slot part handler.
func NewHandler(sys *System, name string, cycleTime float64) *Handler {
	h := &Handler{cycleTime: cycleTime}
	sys.register(h, &h.node, name, "Handler")
	return h
}

func (h *Handler) operational() bool {
	if h.operationalHook != nil {
		return h.operationalHook()
	}
	return true
}

func (h *Handler) start() {
	h.setWaitingForPart(true, true)
}

// CycleTime returns the configured delay between accepting a part and making
// it available downstream.
func (h *Handler) CycleTime() float64 { return h.cycleTime }

// SetCycleTime changes the cycle time for future cycles. A cycle already in
// progress is unaffected.
func (h *Handler) SetCycleTime(ct float64) {
	if ct < 0 {
		panic(fmt.Sprintf("cycle time cannot be negative: %g", ct))
	}
	h.cycleTime = ct
}

// OffsetNextCycleTime perturbs only the next cycle's duration. Effects are
// cumulative across calls and reset to zero once the next cycle starts. If
// cycle time plus offset is negative, zero is used.
func (h *Handler) OffsetNextCycleTime(offset float64) {
	h.nextCycleOffset += offset
}

// HeldPart returns the part currently mid-cycle, if any.
func (h *Handler) HeldPart() *Part { return h.part }

// PendingOutput returns the part waiting to move downstream, if any.
func (h *Handler) PendingOutput() *Part { return h.output }

// WaitingForPartSince reports when this handler started waiting for a part.
func (h *Handler) WaitingForPartSince() (float64, bool) {
	return h.waitingSince, h.waiting
}

// AddReceivePartCallback registers a function invoked when the handler
// accepts a new part. Multiple callbacks fire in registration order.
func (h *Handler) AddReceivePartCallback(cb func(*Handler, *Part)) {
	h.receivedPartCallbacks = append(h.receivedPartCallbacks, cb)
}

// GivePart accepts the part iff the handler is operational, unblocked, and
// both part slots are free.
func (h *Handler) GivePart(p *Part) bool {
	if !h.canAcceptPart(p) {
		return false
	}
	h.acceptPart(p)
	return true
}

func (h *Handler) canAcceptPart(p *Part) bool {
	if !h.operational() || p == nil || h.blockInput || h.part != nil || h.output != nil {
		return false
	}
	if h.acceptHook != nil && !h.acceptHook(p) {
		return false
	}
	return true
}

func (h *Handler) acceptPart(p *Part) {
	h.part = p
	p.addRoutingHistory(h.id)
	h.setWaitingForPart(false, false)
	h.onReceivedNewPart()
}

func (h *Handler) onReceivedNewPart() {
	h.record("received_part", receivedPart{
		Time:    h.env().Now(),
		PartID:  h.part.ID(),
		Quality: h.part.Quality(),
		Value:   h.part.Value(),
	})
	for _, cb := range h.receivedPartCallbacks {
		cb(h, h.part)
	}
	if h.output == nil {
		h.tryMoveToOutput()
	}
}

type receivedPart struct {
	Time    float64
	PartID  string
	Quality float64
	Value   float64
}

func (h *Handler) tryMoveToOutput() {
	if !h.operational() || h.part == nil || h.output != nil {
		return
	}
	if h.cycleStartHook != nil {
		h.cycleStartHook()
	}
	h.scheduleFinishCycle(0)
}

// scheduleFinishCycle starts the cycle-time delay. A non-positive effective
// cycle time short-circuits straight to finishCycle so a chain of zero-delay
// nodes drains within a single simulated instant.
func (h *Handler) scheduleFinishCycle(timeOffset float64) {
	next := h.cycleTime + h.nextCycleOffset + timeOffset
	h.nextCycleOffset = 0
	if next <= 0 {
		h.finishCycle()
		return
	}
	env := h.env()
	env.mustSchedule(env.Now()+next, h.id, h.finishCycle, KindFinishProcessing, "finish cycle: "+h.name)
}

func (h *Handler) finishCycle() {
	// A finish on a non-operational handler means a paused or cancelled event
	// fired anyway; the event graph is corrupt.
	if !h.operational() {
		violation(h.env(), h.id, "finish cycle on non-operational handler %q", h.name)
	}
	if h.part == nil {
		violation(h.env(), h.id, "finish cycle with no input part in %q", h.name)
	}
	if h.output != nil {
		violation(h.env(), h.id, "finish cycle with output slot already full in %q", h.name)
	}
	h.output = h.part
	h.part = nil
	h.schedulePassPartDownstream()
	if h.cycleFinishHook != nil {
		h.cycleFinishHook(h.output)
	}
}

func (h *Handler) schedulePassPartDownstream() {
	h.waitingForDownstream = false
	env := h.env()
	env.mustSchedule(env.Now(), h.id, h.passPartDownstream, KindPassPart, "pass part: "+h.name)
}

func (h *Handler) passPartDownstream() {
	if !h.operational() || h.output == nil {
		return
	}
	for _, dwn := range h.sortedDownstream() {
		if dwn.GivePart(h.output) {
			h.output = nil
			h.self.NotifyUpstreamOfAvailableSpace()
			return
		}
	}
	h.waitingForDownstream = true
}

// SpaceAvailableDownstream schedules a pass retry, but only if the handler
// was blocked waiting for downstream space.
func (h *Handler) SpaceAvailableDownstream() {
	if h.operational() && h.waitingForDownstream {
		h.schedulePassPartDownstream()
	}
}

// NotifyUpstreamOfAvailableSpace marks the handler as waiting for a part and
// relays the relief signal to every immediate upstream node.
func (h *Handler) NotifyUpstreamOfAvailableSpace() {
	h.setWaitingForPart(true, false)
	h.notifyUpstream()
}
