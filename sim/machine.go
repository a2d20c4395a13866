package sim

// MachineConfig configures a Machine.
type MachineConfig struct {
	// CycleTime is how long processing one part takes.
	CycleTime float64
	// Value is the machine's starting value.
	Value float64
	// Resources lists pools and amounts that must be reserved before a part
	// is accepted and are released once processing finishes. Nil means no
	// resource requirements.
	Resources map[string]float64
}

// MaintenancePolicy supplies the target-side answers the Maintainer needs for
// a work order. Nil functions default to zero duration, capacity, and cost.
type MaintenancePolicy struct {
	Duration func(tag string) float64
	Capacity func(tag string) float64
	Cost     func(tag string) float64
}

// Machine is a part-processing device with a shutdown/failure lifecycle. It
// extends Handler with:
//
//   - states Operational, Shutdown (paused, resumable without data loss
//     beyond an in-flight part), Failed (cancelled, in-flight input lost);
//   - optional resource-gated acceptance through the ResourceManager;
//   - ordered finish-processing, shutdown, and restored callback lists;
//   - the Maintainable interface, so it can be the target of work orders.
type Machine struct {
	Handler

	shutDown bool

	resourcesNeeded     map[string]float64
	reserved            *Reservation
	waitingForResources bool

	finishCallbacks   []func(*Machine, *Part)
	shutdownCallbacks []func(m *Machine, isFailure bool, lostPart *Part)
	restoredCallbacks []func(*Machine)

	maintenance MaintenancePolicy

	uptime       float64
	lastRestore  float64
	restoreValid bool
	timeInUse    float64
	lastUseStart float64
	inUse        bool
}

// NewMachine creates and registers a Machine.
func NewMachine(sys *System, name string, cfg MachineConfig) *Machine {
	m := &Machine{}
	m.cycleTime = cfg.CycleTime
	m.value = cfg.Value
	m.resourcesNeeded = cfg.Resources
	m.operationalHook = m.IsOperational
	m.acceptHook = m.tryReserveResources
	m.cycleStartHook = m.markUseStart
	m.cycleFinishHook = m.onCycleFinished
	sys.register(m, &m.node, name, "Machine")
	return m
}

// IsOperational reports whether the machine can handle and process parts.
func (m *Machine) IsOperational() bool {
	return !m.shutDown
}

func (m *Machine) start() {
	m.Handler.start()
	m.lastRestore = m.env().Now()
	m.restoreValid = true
}

// Uptime returns the total time the machine has been operational.
func (m *Machine) Uptime() float64 {
	if m.restoreValid {
		return m.uptime + (m.env().Now() - m.lastRestore)
	}
	return m.uptime
}

// UtilizationTime returns the total time spent processing parts.
func (m *Machine) UtilizationTime() float64 {
	if m.inUse {
		return m.timeInUse + (m.env().Now() - m.lastUseStart)
	}
	return m.timeInUse
}

// SetMaintenancePolicy installs the work-order duration/capacity/cost
// functions the Maintainer will consult for this machine.
func (m *Machine) SetMaintenancePolicy(p MaintenancePolicy) {
	m.maintenance = p
}

// AddFinishProcessingCallback registers a function invoked when a part
// finishes processing. Callbacks fire in registration order.
func (m *Machine) AddFinishProcessingCallback(cb func(*Machine, *Part)) {
	m.finishCallbacks = append(m.finishCallbacks, cb)
}

// AddShutdownCallback registers a function invoked when the machine shuts
// down or fails. On failure the lost in-flight input part, if any, is passed.
func (m *Machine) AddShutdownCallback(cb func(m *Machine, isFailure bool, lostPart *Part)) {
	m.shutdownCallbacks = append(m.shutdownCallbacks, cb)
}

// AddRestoredCallback registers a function invoked when the machine is
// restored after a shutdown or failure.
func (m *Machine) AddRestoredCallback(cb func(*Machine)) {
	m.restoredCallbacks = append(m.restoredCallbacks, cb)
}

// tryReserveResources gates part acceptance on the machine's resource
// requirements. On failure it registers an availability callback (once) and
// refuses the part; upstream is re-signaled only when that callback fires.
func (m *Machine) tryReserveResources(*Part) bool {
	if m.resourcesNeeded == nil || m.reserved != nil {
		return true
	}
	m.reserved = m.sys.resources.Reserve(m.resourcesNeeded)
	if m.reserved != nil {
		return true
	}
	if !m.waitingForResources {
		m.waitingForResources = true
		m.sys.resources.ReserveWithCallback(m.resourcesNeeded, m.resourcesAvailable)
	}
	return false
}

func (m *Machine) resourcesAvailable(map[string]float64) {
	m.waitingForResources = false
	m.NotifyUpstreamOfAvailableSpace()
}

func (m *Machine) markUseStart() {
	m.inUse = true
	m.lastUseStart = m.env().Now()
}

func (m *Machine) onCycleFinished(output *Part) {
	if m.inUse {
		m.timeInUse += m.env().Now() - m.lastUseStart
		m.inUse = false
	}
	if m.reserved != nil {
		env := m.env()
		env.mustSchedule(env.Now(), m.id, m.releaseResourcesIfIdle, KindRestoreResource, "release resources: "+m.name)
	}
	for _, cb := range m.finishCallbacks {
		cb(m, output)
	}
	m.record("produced_part", producedPart{
		Time:    m.env().Now(),
		PartID:  output.ID(),
		Quality: output.Quality(),
		Value:   output.Value(),
	})
}

type producedPart struct {
	Time    float64
	PartID  string
	Quality float64
	Value   float64
}

// releaseResourcesIfIdle keeps the reservation when a new part was accepted
// in the same instant, skipping a release/re-reserve round trip.
func (m *Machine) releaseResourcesIfIdle() {
	if !m.IsOperational() || m.part == nil {
		m.releaseReservedResources()
	}
}

func (m *Machine) releaseReservedResources() {
	if m.reserved != nil {
		if err := m.reserved.Release(nil); err != nil {
			violation(m.env(), m.id, "releasing machine resources: %v", err)
		}
		m.reserved = nil
	}
}

// ScheduleFailure schedules this machine to fail at the given time. On
// failure any part mid-processing is lost; a part already moved to the
// pending-output slot is preserved. The lost part can be captured with
// AddShutdownCallback.
func (m *Machine) ScheduleFailure(time float64, label string) error {
	return m.env().Schedule(time, m.id, m.fail, KindFail, label)
}

// Fail transitions the machine to the failed state immediately.
func (m *Machine) Fail() {
	m.fail()
}

func (m *Machine) fail() {
	lostPart := m.part
	m.part = nil
	m.releaseReservedResources()
	m.record("device_failure", deviceFailure{Time: m.env().Now(), LostPartID: partID(lostPart)})
	m.shutdown(true, lostPart)
}

type deviceFailure struct {
	Time       float64
	LostPartID string
}

func partID(p *Part) string {
	if p == nil {
		return ""
	}
	return p.ID()
}

// Shutdown pauses the machine. A part being processed resumes processing
// with its remaining cycle time when the machine is restored; new parts are
// not accepted. No-op if already shut down or failed.
//
// Do not call from the middle of this machine's own event actions; schedule
// it as a separate event instead.
func (m *Machine) Shutdown() {
	m.shutdown(false, nil)
}

func (m *Machine) shutdown(isFailure bool, lostPart *Part) {
	if m.shutDown {
		if !isFailure {
			return
		}
		// A failure while shut down converts the pause into a cancellation:
		// the cycle a plain shutdown parked must not resume after a restore,
		// because its input part is gone.
		m.env().CancelMatching(m.id)
		for _, cb := range m.shutdownCallbacks {
			cb(m, true, lostPart)
		}
		return
	}
	m.shutDown = true
	if isFailure {
		m.env().CancelMatching(m.id)
	} else {
		m.env().PauseMatching(m.id)
	}

	if m.restoreValid {
		m.uptime += m.env().Now() - m.lastRestore
		m.restoreValid = false
	}
	if m.inUse {
		m.timeInUse += m.env().Now() - m.lastUseStart
		m.inUse = false
	}

	m.setWaitingForPart(false, false)
	for _, cb := range m.shutdownCallbacks {
		cb(m, isFailure, lostPart)
	}
}

// RestoreFunctionality brings the machine back from the shutdown or failed
// state and resumes part flow. No-op if the machine is operational.
func (m *Machine) RestoreFunctionality() {
	if !m.shutDown {
		return
	}
	m.shutDown = false
	m.lastRestore = m.env().Now()
	m.restoreValid = true
	m.env().ResumeMatching(m.id)

	if m.output != nil {
		m.schedulePassPartDownstream()
	} else if m.part == nil {
		m.NotifyUpstreamOfAvailableSpace()
	}
	if m.part != nil {
		m.markUseStart()
	}

	for _, cb := range m.restoredCallbacks {
		cb(m)
	}
}

// Maintainable implementation. The Maintainer never inspects the machine
// beyond these five methods.

func (m *Machine) GetWorkOrderDuration(tag string) float64 {
	if m.maintenance.Duration != nil {
		return m.maintenance.Duration(tag)
	}
	return 0
}

func (m *Machine) GetWorkOrderCapacity(tag string) float64 {
	if m.maintenance.Capacity != nil {
		return m.maintenance.Capacity(tag)
	}
	return 0
}

func (m *Machine) GetWorkOrderCost(tag string) float64 {
	if m.maintenance.Cost != nil {
		return m.maintenance.Cost(tag)
	}
	return 0
}

func (m *Machine) StartWork(string) {
	m.Shutdown()
}

func (m *Machine) EndWork(string) {
	m.RestoreFunctionality()
}
