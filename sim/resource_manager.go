package sim

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// resourcePool tracks one named pool of fungible capacity. Usage may
// transiently exceed capacity after a capacity reduction; reservations are
// never forcibly evicted.
type resourcePool struct {
	name     string
	capacity float64
	inUse    float64
}

func (p *resourcePool) available() float64 {
	return p.capacity - p.inUse
}

// ResourceManager provides named pools of limited resources that callers
// reserve atomically and release back. Callers can reserve immediately or
// register a callback invoked when the requested amounts become available.
type ResourceManager struct {
	sys   *System
	actor NodeID

	pools map[string]*resourcePool
	order []string // pool creation order, for deterministic reporting

	waiters []*resourceWaiter

	// outstanding keeps reservation creation order so leak reports replay
	// identically across runs.
	outstanding []*Reservation
}

type resourceWaiter struct {
	request  map[string]float64
	callback func(request map[string]float64)
}

func newResourceManager(sys *System) *ResourceManager {
	return &ResourceManager{
		sys:   sys,
		actor: sys.allocID(),
		pools: make(map[string]*resourcePool),
	}
}

// AddResources increases (delta > 0) or decreases (delta < 0) the total
// capacity of a named pool, creating the pool on first reference. Reducing
// capacity below current usage is allowed — usage simply exceeds capacity
// until reservations are voluntarily released — but reducing total capacity
// below zero fails with ErrCapacityViolation.
func (rm *ResourceManager) AddResources(name string, delta float64) error {
	pool := rm.pool(name)
	if pool.capacity+delta < 0 {
		return fmt.Errorf("%w: cannot reduce resource %q capacity below zero (capacity=%g delta=%g)",
			ErrCapacityViolation, name, pool.capacity, delta)
	}
	pool.capacity += delta
	rm.recordPool(pool)
	rm.scheduleWaiterCheck()
	return nil
}

// Capacity returns the total capacity of a pool (0 for unknown pools).
func (rm *ResourceManager) Capacity(name string) float64 {
	if p, ok := rm.pools[name]; ok {
		return p.capacity
	}
	return 0
}

// InUse returns the reserved amount of a pool (0 for unknown pools).
func (rm *ResourceManager) InUse(name string) float64 {
	if p, ok := rm.pools[name]; ok {
		return p.inUse
	}
	return 0
}

// Reserve attempts an all-or-nothing reservation: either every named amount
// fits within the free capacity of every pool in the request and all are
// deducted atomically, or nothing is deducted and nil is returned. Zero
// amounts are always satisfiable and ignored for capacity checks.
func (rm *ResourceManager) Reserve(request map[string]float64) *Reservation {
	if !rm.canFulfill(request) {
		return nil
	}
	held := make(map[string]float64)
	for _, name := range sortedNames(request) {
		amount := request[name]
		if amount == 0 {
			continue
		}
		pool := rm.pools[name]
		pool.inUse += amount
		held[name] = amount
		rm.recordPool(pool)
	}
	res := &Reservation{rm: rm, held: held}
	rm.outstanding = append(rm.outstanding, res)
	return res
}

// ReserveWithCallback registers a pending waiter. Whenever any pool's usage
// or capacity changes, waiters are re-tested in FIFO registration order and
// those that now fit are invoked. No resources are held on a waiter's behalf:
// the callback must call Reserve itself if it still wants them.
func (rm *ResourceManager) ReserveWithCallback(request map[string]float64, callback func(request map[string]float64)) {
	req := make(map[string]float64, len(request))
	for name, amount := range request {
		req[name] = amount
	}
	rm.waiters = append(rm.waiters, &resourceWaiter{request: req, callback: callback})
	rm.scheduleWaiterCheck()
}

func (rm *ResourceManager) canFulfill(request map[string]float64) bool {
	for name, amount := range request {
		if amount == 0 {
			continue
		}
		pool, ok := rm.pools[name]
		if !ok || pool.available() < amount {
			return false
		}
	}
	return true
}

// scheduleWaiterCheck defers the waiter scan to a high-priority event so a
// release in the middle of another device's action cannot reenter that
// device synchronously.
func (rm *ResourceManager) scheduleWaiterCheck() {
	env := rm.sys.env
	env.mustSchedule(env.Now(), rm.actor, rm.checkWaiters, KindOtherHighPriority, "resource availability check")
}

func (rm *ResourceManager) checkWaiters() {
	// Callbacks may register follow-up waiters mid-scan, so the rebuilt list
	// must not alias the one being walked. Registrations made during the scan
	// land past the scanned prefix and keep their place behind the survivors.
	scanned := len(rm.waiters)
	kept := make([]*resourceWaiter, 0, scanned)
	for _, w := range rm.waiters[:scanned] {
		if rm.canFulfill(w.request) {
			w.callback(w.request)
		} else {
			kept = append(kept, w)
		}
	}
	rm.waiters = append(kept, rm.waiters[scanned:]...)
}

func (rm *ResourceManager) pool(name string) *resourcePool {
	p, ok := rm.pools[name]
	if !ok {
		p = &resourcePool{name: name}
		rm.pools[name] = p
		rm.order = append(rm.order, name)
	}
	return p
}

func (rm *ResourceManager) recordPool(p *resourcePool) {
	rm.sys.recorder.Record("resource_update", p.name, resourceUpdate{
		Time:     rm.sys.env.Now(),
		Capacity: p.capacity,
		InUse:    p.inUse,
	})
}

// sortedNames returns a request's pool names in stable order so pool
// mutations and their datapoints replay identically across runs.
func sortedNames(m map[string]float64) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type resourceUpdate struct {
	Time     float64
	Capacity float64
	InUse    float64
}

// reportLeaks logs every reservation still holding resources. Called at the
// end of a run: a leaked handle silently removes pool capacity forever, so it
// is surfaced as a programming error rather than ignored.
func (rm *ResourceManager) reportLeaks() int {
	leaks := 0
	for _, res := range rm.outstanding {
		if len(res.held) == 0 {
			continue
		}
		leaks++
		logrus.Warnf("reservation leak: handle still holds %v at end of run", res.held)
		rm.sys.recorder.Record("reservation_leak", "resource_manager", res.Held())
	}
	return leaks
}

// Reservation is a caller-owned receipt for exclusively-held amounts of one
// or more named resources. Release it exactly once per held amount; dropping
// a handle with nonzero holdings is reported as a leak at end of run.
type Reservation struct {
	rm   *ResourceManager
	held map[string]float64
}

// Held returns a copy of the resource amounts this handle currently holds.
func (r *Reservation) Held() map[string]float64 {
	out := make(map[string]float64, len(r.held))
	for name, amount := range r.held {
		out[name] = amount
	}
	return out
}

// Release returns resources to their pools. A nil request releases
// everything the handle holds; otherwise only the named subset is released.
// Releasing more than is held fails with ErrOverRelease and releasing a name
// that was never part of this reservation fails with ErrUnknownResource; in
// either case nothing is released.
func (r *Reservation) Release(request map[string]float64) error {
	if request == nil {
		request = r.Held()
	} else {
		for name, amount := range request {
			held, ok := r.held[name]
			if !ok {
				return fmt.Errorf("%w: %q is not part of this reservation", ErrUnknownResource, name)
			}
			if amount > held {
				return fmt.Errorf("%w: releasing %g of %q but only %g is held", ErrOverRelease, amount, name, held)
			}
		}
	}
	for _, name := range sortedNames(request) {
		amount := request[name]
		if amount == 0 {
			continue
		}
		pool := r.rm.pools[name]
		pool.inUse -= amount
		r.held[name] -= amount
		if r.held[name] == 0 {
			delete(r.held, name)
		}
		r.rm.recordPool(pool)
	}
	if len(r.held) == 0 {
		r.rm.dropOutstanding(r)
	}
	r.rm.scheduleWaiterCheck()
	return nil
}

// Merge consumes another handle's holdings into this one, leaving the other
// empty. Used when a device accumulates partial reservations over time.
func (r *Reservation) Merge(other *Reservation) {
	if other == nil || other == r {
		return
	}
	for name, amount := range other.held {
		r.held[name] += amount
	}
	other.held = make(map[string]float64)
	r.rm.dropOutstanding(other)
}

func (rm *ResourceManager) dropOutstanding(res *Reservation) {
	for i, o := range rm.outstanding {
		if o == res {
			rm.outstanding = append(rm.outstanding[:i], rm.outstanding[i+1:]...)
			return
		}
	}
}
