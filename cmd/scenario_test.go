package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sim "github.com/prodsim/prodsim/sim"
)

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const lineScenario = `
resources:
  operator: 1
maintainer:
  capacity: 2
devices:
  - name: src
    kind: source
    cycle_time: 1
    part_name: widget
    part_value: 3
  - name: press
    kind: machine
    cycle_time: 1
    needs_resources:
      operator: 1
    upstream: [src]
  - name: staging
    kind: buffer
    capacity: 4
    upstream: [press]
  - name: done
    kind: sink
    upstream: [staging]
`

func TestLoadScenario_ValidYAML(t *testing.T) {
	path := writeTempYAML(t, lineScenario)
	cfg, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, 1.0, cfg.Resources["operator"])
	require.NotNil(t, cfg.Maintainer)
	assert.Equal(t, 2.0, cfg.Maintainer.Capacity)
	require.Len(t, cfg.Devices, 4)
	assert.Equal(t, "machine", cfg.Devices[1].Kind)
	assert.Equal(t, []string{"src"}, cfg.Devices[1].Upstream)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestBuildSystem_RunsScenarioEndToEnd(t *testing.T) {
	cfg, err := LoadScenario(writeTempYAML(t, lineScenario))
	require.NoError(t, err)

	rec := sim.NewMemoryRecorder()
	sys, err := BuildSystem(cfg, 42, rec)
	require.NoError(t, err)
	require.NoError(t, sys.Simulate(50))

	summary := sim.SummarizeThroughput(rec, "done")
	assert.Positive(t, summary.Count)
	assert.Equal(t, 3.0, summary.MeanValue)
}

func TestBuildSystem_FailureAndRepairCycle(t *testing.T) {
	cfg, err := LoadScenario(writeTempYAML(t, `
maintainer:
  name: crew
  capacity: 1
devices:
  - name: src
    kind: source
    cycle_time: 1
  - name: press
    kind: machine
    cycle_time: 1
    fail_at: [10]
    maintenance:
      tag: repair
      duration: 3
      capacity: 1
      cost: 20
    upstream: [src]
  - name: done
    kind: sink
    upstream: [press]
`))
	require.NoError(t, err)

	rec := sim.NewMemoryRecorder()
	sys, err := BuildSystem(cfg, 42, rec)
	require.NoError(t, err)
	require.NoError(t, sys.Simulate(20))

	// Parts arrive at 2..9, the press is down 10..13, and flow resumes with
	// arrivals at 14..20.
	summary := sim.SummarizeThroughput(rec, "done")
	assert.Equal(t, 15, summary.Count)

	starts := rec.Datapoints("start_work_order", "crew")
	require.Len(t, starts, 1)
	assert.Equal(t, 10.0, starts[0].Time)
	finishes := rec.Datapoints("finish_work_order", "crew")
	require.Len(t, finishes, 1)
	assert.Equal(t, 13.0, finishes[0].Time)
}

func TestBuildSystem_MaintenanceNeedsMaintainer(t *testing.T) {
	cfg := &ScenarioConfig{Devices: []DeviceConfig{{
		Name:        "press",
		Kind:        "machine",
		CycleTime:   1,
		Maintenance: &MaintenanceConfig{Duration: 1, Capacity: 1},
	}}}
	_, err := BuildSystem(cfg, 1, nil)
	assert.ErrorContains(t, err, "no maintainer")
}

func TestBuildSystem_UnknownUpstream(t *testing.T) {
	cfg, err := LoadScenario(writeTempYAML(t, `
devices:
  - name: done
    kind: sink
    upstream: [ghost]
`))
	require.NoError(t, err)
	_, err = BuildSystem(cfg, 1, nil)
	assert.ErrorContains(t, err, "unknown upstream")
}

func TestBuildSystem_UnknownKind(t *testing.T) {
	cfg := &ScenarioConfig{Devices: []DeviceConfig{{Name: "x", Kind: "teleporter"}}}
	_, err := BuildSystem(cfg, 1, nil)
	assert.ErrorContains(t, err, "unknown kind")
}

func TestBuildSystem_DuplicateNamesRejected(t *testing.T) {
	cfg := &ScenarioConfig{Devices: []DeviceConfig{
		{Name: "x", Kind: "sink"},
		{Name: "x", Kind: "sink"},
	}}
	_, err := BuildSystem(cfg, 1, nil)
	assert.ErrorContains(t, err, "duplicate device name")
}
