package sim

import (
	"fmt"
	"math"
)

// timeEpsilon bounds floating-point rounding when comparing simulation
// times. A minimum delay smaller than float resolution must not make a part
// look perpetually not-yet-ready.
const timeEpsilon = 1e-9

// timeReached reports whether target is considered reached at now, using a
// relative epsilon so the comparison stays safe far from zero.
func timeReached(now, target float64) bool {
	return target-now <= timeEpsilon*math.Max(1, math.Abs(now))
}

type bufferedPart struct {
	part      *Part
	enteredAt float64
}

// Buffer stores parts from upstream and passes them downstream in FIFO
// order. It is bounded by capacity and may impose a minimum delay: a part
// cannot leave before minimumDelay has elapsed since it entered, even when
// downstream space is immediately available.
type Buffer struct {
	node

	capacity     int
	minimumDelay float64

	contents             []bufferedPart
	waitingForDownstream bool
	retryScheduled       bool
}

// NewBuffer creates and registers a bounded FIFO buffer. Capacity must be at
// least 1; a zero minimumDelay passes parts on as soon as downstream accepts.
func NewBuffer(sys *System, name string, capacity int, minimumDelay float64) *Buffer {
	if capacity < 1 {
		panic(fmt.Sprintf("buffer capacity must be at least 1, got %d", capacity))
	}
	if minimumDelay < 0 {
		panic(fmt.Sprintf("buffer minimum delay cannot be negative: %g", minimumDelay))
	}
	b := &Buffer{capacity: capacity, minimumDelay: minimumDelay}
	sys.register(b, &b.node, name, "Buffer")
	return b
}

func (b *Buffer) start() {
	b.setWaitingForPart(true, true)
}

// Level returns how many parts the buffer currently holds.
func (b *Buffer) Level() int { return len(b.contents) }

// Capacity returns the maximum number of parts the buffer can hold.
func (b *Buffer) Capacity() int { return b.capacity }

// MinimumDelay returns the minimum residence time of a part in the buffer.
func (b *Buffer) MinimumDelay() float64 { return b.minimumDelay }

// WaitingForPartSince reports when the buffer started waiting for a part.
func (b *Buffer) WaitingForPartSince() (float64, bool) {
	return b.waitingSince, b.waiting
}

// GivePart accepts the part unless the buffer is blocked or full.
func (b *Buffer) GivePart(p *Part) bool {
	if p == nil || b.blockInput || len(b.contents) >= b.capacity {
		return false
	}
	now := b.env().Now()
	p.addRoutingHistory(b.id)
	b.contents = append(b.contents, bufferedPart{part: p, enteredAt: now})
	b.setWaitingForPart(false, false)
	b.record("received_part", receivedPart{Time: now, PartID: p.ID(), Quality: p.Quality(), Value: p.Value()})

	if b.minimumDelay <= 0 {
		b.schedulePassPartDownstream()
	} else {
		b.scheduleReadyRetry(now + b.minimumDelay)
	}
	return true
}

// headReadyAt returns the earliest time the oldest part may leave.
func (b *Buffer) headReadyAt() float64 {
	return b.contents[0].enteredAt + b.minimumDelay
}

func (b *Buffer) schedulePassPartDownstream() {
	b.waitingForDownstream = false
	env := b.env()
	env.mustSchedule(env.Now(), b.id, b.passPartDownstream, KindPassPart, "pass part: "+b.name)
}

// scheduleReadyRetry schedules a pass attempt for when a part's minimum
// residence time elapses. At most one retry event is outstanding.
func (b *Buffer) scheduleReadyRetry(readyAt float64) {
	if b.retryScheduled {
		return
	}
	b.retryScheduled = true
	env := b.env()
	env.mustSchedule(math.Max(env.Now(), readyAt), b.id, func() {
		b.retryScheduled = false
		b.passPartDownstream()
	}, KindFinishProcessing, "minimum delay elapsed: "+b.name)
}

func (b *Buffer) passPartDownstream() {
	now := b.env().Now()
	passed := 0
	for _, dwn := range b.sortedDownstream() {
		for len(b.contents) > 0 && timeReached(now, b.headReadyAt()) && dwn.GivePart(b.contents[0].part) {
			b.contents = b.contents[1:]
			passed++
		}
	}
	if passed > 0 {
		b.NotifyUpstreamOfAvailableSpace()
	}
	if len(b.contents) == 0 {
		return
	}
	if !timeReached(now, b.headReadyAt()) {
		b.scheduleReadyRetry(b.headReadyAt())
	} else {
		b.waitingForDownstream = true
	}
}

// SpaceAvailableDownstream schedules a pass retry if the buffer was blocked
// on downstream space.
func (b *Buffer) SpaceAvailableDownstream() {
	if b.waitingForDownstream {
		b.schedulePassPartDownstream()
	}
}

// NotifyUpstreamOfAvailableSpace relays the relief signal upstream, but only
// while the buffer actually has room.
func (b *Buffer) NotifyUpstreamOfAvailableSpace() {
	if len(b.contents) >= b.capacity {
		return
	}
	b.setWaitingForPart(true, false)
	b.notifyUpstream()
}
