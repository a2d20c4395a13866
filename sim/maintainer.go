package sim

import (
	"github.com/sirupsen/logrus"
)

// Maintainable is implemented by devices that can receive maintenance or
// repair work. The tag distinguishes kinds of work on the same device, for
// example "preventive" versus a named failure mode.
type Maintainable interface {
	Name() string

	// GetWorkOrderDuration returns how long the work will take.
	GetWorkOrderDuration(tag string) float64
	// GetWorkOrderCapacity returns how much maintainer capacity the work
	// occupies while in progress.
	GetWorkOrderCapacity(tag string) float64
	// GetWorkOrderCost returns the cost charged to the maintainer when the
	// work begins.
	GetWorkOrderCost(tag string) float64

	// StartWork takes the device out of service for the duration of the work.
	StartWork(tag string)
	// EndWork returns the device to service once the work completes.
	EndWork(tag string)
}

// WorkOrder is one queued or in-progress unit of maintenance work.
type WorkOrder struct {
	Target   Maintainable
	Tag      string
	Capacity float64
	QueuedAt float64
}

type workOrderRecord struct {
	Time   float64
	Device string
	Tag    string
}

// Maintainer performs work orders on Maintainable devices subject to a fixed
// capacity. Requests queue first-in first-out, but a later request that fits
// the remaining capacity may start ahead of an earlier one that does not.
type Maintainer struct {
	sys      *System
	actor    NodeID
	name     string
	capacity float64
	inUse    float64
	value    float64
	queue    []*WorkOrder
	active   []*WorkOrder
}

// NewMaintainer creates a maintainer with the given total capacity.
func NewMaintainer(sys *System, name string, capacity float64) *Maintainer {
	if capacity <= 0 {
		panic(&StateViolation{Detail: "maintainer capacity must be positive"})
	}
	m := &Maintainer{sys: sys, actor: sys.allocID(), name: name, capacity: capacity}
	return m
}

// Name returns the maintainer's name.
func (m *Maintainer) Name() string { return m.name }

// Value returns the accumulated value of the maintainer, which work order
// costs count against.
func (m *Maintainer) Value() float64 { return m.value }

// TotalCapacity returns the maintainer's configured capacity.
func (m *Maintainer) TotalCapacity() float64 { return m.capacity }

// AvailableCapacity returns the capacity not occupied by in-progress work.
func (m *Maintainer) AvailableCapacity() float64 { return m.capacity - m.inUse }

// QueuedWorkOrders returns the work orders waiting to start, oldest first.
func (m *Maintainer) QueuedWorkOrders() []*WorkOrder {
	out := make([]*WorkOrder, len(m.queue))
	copy(out, m.queue)
	return out
}

// ActiveWorkOrders returns the work orders currently in progress.
func (m *Maintainer) ActiveWorkOrders() []*WorkOrder {
	out := make([]*WorkOrder, len(m.active))
	copy(out, m.active)
	return out
}

// CreateWorkOrder requests work on a device. It returns false without
// queueing anything if an identical (device, tag) order is already queued or
// in progress. A request needing more than the maintainer's total capacity is
// rejected outright.
func (m *Maintainer) CreateWorkOrder(target Maintainable, tag string) bool {
	for _, wo := range m.queue {
		if wo.Target == target && wo.Tag == tag {
			return false
		}
	}
	for _, wo := range m.active {
		if wo.Target == target && wo.Tag == tag {
			return false
		}
	}
	needed := target.GetWorkOrderCapacity(tag)
	if needed > m.capacity {
		logrus.Warnf("maintainer %s: work order (%s, %s) needs capacity %.3f, total is %.3f",
			m.name, target.Name(), tag, needed, m.capacity)
		return false
	}

	now := m.sys.env.Now()
	wo := &WorkOrder{Target: target, Tag: tag, Capacity: needed, QueuedAt: now}
	m.queue = append(m.queue, wo)
	m.sys.recorder.Record("enter_queue", m.name, workOrderRecord{Time: now, Device: target.Name(), Tag: tag})

	m.sys.env.mustSchedule(now, m.actor, m.tryWorkingRequests, KindOtherHighPriority, "Maintainer.tryWorkingRequests")
	return true
}

// tryWorkingRequests scans the queue oldest-first and starts every order that
// fits the remaining capacity. Orders that do not fit are skipped, not
// blocking later smaller ones.
func (m *Maintainer) tryWorkingRequests() {
	// StartWork callbacks may create further work orders mid-scan, so the
	// rebuilt queue must not alias the one being walked. New orders land past
	// the scanned prefix and stay queued behind the skipped ones.
	scanned := len(m.queue)
	remaining := make([]*WorkOrder, 0, scanned)
	for _, wo := range m.queue[:scanned] {
		if wo.Capacity <= m.capacity-m.inUse {
			m.startWorkOrder(wo)
		} else {
			remaining = append(remaining, wo)
		}
	}
	m.queue = append(remaining, m.queue[scanned:]...)
}

func (m *Maintainer) startWorkOrder(wo *WorkOrder) {
	now := m.sys.env.Now()
	m.inUse += wo.Capacity
	m.active = append(m.active, wo)
	m.value -= wo.Target.GetWorkOrderCost(wo.Tag)
	m.sys.recorder.Record("start_work_order", m.name,
		workOrderRecord{Time: now, Device: wo.Target.Name(), Tag: wo.Tag})
	logrus.Debugf("maintainer %s: starting (%s, %s) at t=%.3f", m.name, wo.Target.Name(), wo.Tag, now)

	wo.Target.StartWork(wo.Tag)

	m.sys.env.mustSchedule(now+wo.Target.GetWorkOrderDuration(wo.Tag), m.actor,
		func() { m.finishWorkOrder(wo) }, KindFinishWork, "Maintainer.finishWorkOrder")
}

func (m *Maintainer) finishWorkOrder(wo *WorkOrder) {
	now := m.sys.env.Now()
	for i, a := range m.active {
		if a == wo {
			m.active = append(m.active[:i], m.active[i+1:]...)
			break
		}
	}
	m.inUse -= wo.Capacity
	m.sys.recorder.Record("finish_work_order", m.name,
		workOrderRecord{Time: now, Device: wo.Target.Name(), Tag: wo.Tag})
	logrus.Debugf("maintainer %s: finished (%s, %s) at t=%.3f", m.name, wo.Target.Name(), wo.Tag, now)

	wo.Target.EndWork(wo.Tag)
	m.tryWorkingRequests()
}
