package cmd

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	sim "github.com/prodsim/prodsim/sim"
)

// ScenarioConfig is the YAML schema for a simulated production line.
type ScenarioConfig struct {
	// Resources maps pool name to capacity in the shared resource manager.
	Resources map[string]float64 `yaml:"resources"`

	// Maintainer, when present, services the machines that carry a
	// maintenance block: a failed machine files a work order against it and
	// returns to service when the work completes.
	Maintainer *MaintainerConfig `yaml:"maintainer"`

	Devices []DeviceConfig `yaml:"devices"`
}

type MaintainerConfig struct {
	Name     string  `yaml:"name"`
	Capacity float64 `yaml:"capacity"`
}

// MaintenanceConfig describes the repair work one machine needs after a
// failure: how long it takes, how much maintainer capacity it occupies, and
// what it costs the maintainer.
type MaintenanceConfig struct {
	Tag      string  `yaml:"tag"`
	Duration float64 `yaml:"duration"`
	Capacity float64 `yaml:"capacity"`
	Cost     float64 `yaml:"cost"`
}

// DeviceConfig describes one node of the flow graph. Kind selects the device
// type; the remaining fields apply to the kinds that use them.
type DeviceConfig struct {
	Name     string   `yaml:"name"`
	Kind     string   `yaml:"kind"` // source, machine, buffer, sink, gate
	Upstream []string `yaml:"upstream"`

	// source and machine
	CycleTime float64 `yaml:"cycle_time"`

	// source
	PartName    string  `yaml:"part_name"`
	PartValue   float64 `yaml:"part_value"`
	PartQuality float64 `yaml:"part_quality"`
	MaxParts    int64   `yaml:"max_parts"`

	// machine
	Value       float64            `yaml:"value"`
	Resources   map[string]float64 `yaml:"needs_resources"`
	FailAt      []float64          `yaml:"fail_at"`
	Maintenance *MaintenanceConfig `yaml:"maintenance"`

	// buffer
	Capacity int     `yaml:"capacity"`
	MinDelay float64 `yaml:"min_delay"`

	// sink
	CollectParts bool `yaml:"collect_parts"`

	// gate
	MinQuality float64 `yaml:"min_quality"`
}

// LoadScenario reads and parses a scenario YAML file.
func LoadScenario(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}
	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}
	return &cfg, nil
}

// BuildSystem constructs a System from a scenario. Devices are registered in
// file order, then wired, so a scenario plus a seed fully determines a run.
func BuildSystem(cfg *ScenarioConfig, seed int64, recorder sim.Recorder) (*sim.System, error) {
	sys := sim.NewSystem(seed, recorder)

	// Pools are created in name order so a scenario always yields the same
	// registration sequence.
	names := make([]string, 0, len(cfg.Resources))
	for name := range cfg.Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := sys.Resources().AddResources(name, cfg.Resources[name]); err != nil {
			return nil, fmt.Errorf("resource pool %q: %w", name, err)
		}
	}
	var mt *sim.Maintainer
	if cfg.Maintainer != nil {
		name := cfg.Maintainer.Name
		if name == "" {
			name = "maintainer"
		}
		mt = sim.NewMaintainer(sys, name, cfg.Maintainer.Capacity)
	}

	nodes := make(map[string]sim.Node, len(cfg.Devices))
	for _, dc := range cfg.Devices {
		if dc.Name == "" {
			return nil, fmt.Errorf("device of kind %q has no name", dc.Kind)
		}
		if _, dup := nodes[dc.Name]; dup {
			return nil, fmt.Errorf("duplicate device name %q", dc.Name)
		}
		n, err := buildDevice(sys, dc)
		if err != nil {
			return nil, err
		}
		if m, ok := n.(*sim.Machine); ok {
			if err := configureMachineFaults(m, dc, mt); err != nil {
				return nil, err
			}
		}
		nodes[dc.Name] = n
	}

	for _, dc := range cfg.Devices {
		if len(dc.Upstream) == 0 {
			continue
		}
		ups := make([]sim.Node, 0, len(dc.Upstream))
		for _, uname := range dc.Upstream {
			up, ok := nodes[uname]
			if !ok {
				return nil, fmt.Errorf("device %q: unknown upstream %q", dc.Name, uname)
			}
			ups = append(ups, up)
		}
		if err := sys.Connect(nodes[dc.Name], ups...); err != nil {
			return nil, fmt.Errorf("wiring device %q: %w", dc.Name, err)
		}
	}
	return sys, nil
}

// configureMachineFaults applies a device's fail_at and maintenance blocks: a
// failure at each listed time, and a shutdown callback that files a repair
// work order with the maintainer on every failure. A maintenance block
// without a maintainer leaves the machine failed forever, so it is rejected.
func configureMachineFaults(m *sim.Machine, dc DeviceConfig, mt *sim.Maintainer) error {
	for _, t := range dc.FailAt {
		if err := m.ScheduleFailure(t, "scheduled failure: "+dc.Name); err != nil {
			return fmt.Errorf("device %q: fail_at %g: %w", dc.Name, t, err)
		}
	}
	if dc.Maintenance == nil {
		return nil
	}
	if mt == nil {
		return fmt.Errorf("device %q: maintenance configured but scenario has no maintainer", dc.Name)
	}
	mc := dc.Maintenance
	tag := mc.Tag
	if tag == "" {
		tag = "repair"
	}
	m.SetMaintenancePolicy(sim.MaintenancePolicy{
		Duration: func(string) float64 { return mc.Duration },
		Capacity: func(string) float64 { return mc.Capacity },
		Cost:     func(string) float64 { return mc.Cost },
	})
	m.AddShutdownCallback(func(failed *sim.Machine, isFailure bool, _ *sim.Part) {
		if isFailure {
			mt.CreateWorkOrder(failed, tag)
		}
	})
	return nil
}

func buildDevice(sys *sim.System, dc DeviceConfig) (sim.Node, error) {
	switch dc.Kind {
	case "source":
		quality := dc.PartQuality
		if quality == 0 {
			quality = 1.0
		}
		return sim.NewSource(sys, dc.Name, sim.SourceConfig{
			Template:  sim.NewPart(dc.PartName, dc.PartValue, quality),
			CycleTime: dc.CycleTime,
			MaxParts:  dc.MaxParts,
		}), nil
	case "machine":
		return sim.NewMachine(sys, dc.Name, sim.MachineConfig{
			CycleTime: dc.CycleTime,
			Value:     dc.Value,
			Resources: dc.Resources,
		}), nil
	case "buffer":
		capacity := dc.Capacity
		if capacity == 0 {
			capacity = 1
		}
		return sim.NewBuffer(sys, dc.Name, capacity, dc.MinDelay), nil
	case "sink":
		return sim.NewSink(sys, dc.Name, dc.CycleTime, dc.CollectParts), nil
	case "gate":
		threshold := dc.MinQuality
		return sim.NewDecisionGate(sys, dc.Name, func(p *sim.Part) bool {
			return p.Quality() >= threshold
		}), nil
	default:
		return nil, fmt.Errorf("device %q: unknown kind %q", dc.Name, dc.Kind)
	}
}
