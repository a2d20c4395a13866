package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// System owns one complete simulation: the environment, the device graph,
// the resource manager, RNG partitioning, and the recorder. There is no
// process-global state; multiple Systems coexist in one process and two
// Systems built identically from the same seed produce identical runs.
type System struct {
	env       *Environment
	rng       *PartitionedRNG
	graph     *Graph
	resources *ResourceManager
	recorder  Recorder

	nextID      NodeID
	nodes       []Node
	initialized bool
}

// NewSystem creates a System seeded for deterministic replay. A nil recorder
// disables data collection.
func NewSystem(seed int64, recorder Recorder) *System {
	rng := NewPartitionedRNG(seed)
	if recorder == nil {
		recorder = NopRecorder{}
	}
	env := NewEnvironment(rng.ForSubsystem(SubsystemEvents), recorder)
	if mem, ok := recorder.(*MemoryRecorder); ok {
		mem.Bind(env)
	}
	sys := &System{
		env:      env,
		rng:      rng,
		graph:    newGraph(),
		recorder: recorder,
	}
	sys.resources = newResourceManager(sys)
	return sys
}

// Env returns the simulation environment.
func (sys *System) Env() *Environment { return sys.env }

// Graph returns the device graph.
func (sys *System) Graph() *Graph { return sys.graph }

// Resources returns the shared resource manager.
func (sys *System) Resources() *ResourceManager { return sys.resources }

// RNG returns the partitioned random source for this system.
func (sys *System) RNG() *PartitionedRNG { return sys.rng }

// Recorder returns the datapoint recorder.
func (sys *System) Recorder() Recorder { return sys.recorder }

// allocID hands out the next actor identity. Shared by flow nodes and
// non-flow actors such as the maintainer and the resource manager.
func (sys *System) allocID() NodeID {
	id := sys.nextID
	sys.nextID++
	return id
}

// register assigns a node its identity and adds it to the graph arena.
// An empty name defaults to kind_id.
func (sys *System) register(self Node, base *node, name, kind string) NodeID {
	id := sys.allocID()
	if name == "" {
		name = fmt.Sprintf("%s_%d", kind, id)
	}
	base.name = name
	self.attach(sys, self, id)
	sys.graph.add(id, self)
	sys.nodes = append(sys.nodes, self)
	return id
}

// Connect wires n downstream of each of the given upstream nodes. When
// called mid-simulation, n announces its available space so upstreams
// blocked on a full line can resume immediately.
func (sys *System) Connect(n Node, upstream ...Node) error {
	if err := sys.graph.SetUpstream(n, upstream); err != nil {
		return err
	}
	if sys.initialized {
		n.NotifyUpstreamOfAvailableSpace()
	}
	return nil
}

// Simulate starts every registered device and runs the system for the given
// duration of simulated time. A System runs once; running again returns
// ErrClockTerminated. Outstanding resource reservations are reported after
// the run.
func (sys *System) Simulate(duration float64) error {
	if duration <= 0 {
		return fmt.Errorf("%w: simulation duration must be positive, got %g", ErrInvalidSchedule, duration)
	}
	if !sys.initialized {
		sys.initialized = true
		for _, n := range sys.nodes {
			n.start()
		}
	}
	logrus.Infof("simulating %g time units from t=%g (%d devices, seed %d)",
		duration, sys.env.Now(), len(sys.nodes), sys.rng.Seed())
	if err := sys.env.Run(duration); err != nil {
		return err
	}
	sys.resources.reportLeaks()
	logrus.Infof("simulation stopped at t=%g", sys.env.Now())
	return nil
}
