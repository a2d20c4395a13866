package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sim "github.com/prodsim/prodsim/sim"
)

var (
	seed         int64   // Seed for deterministic replay
	duration     float64 // Total simulated time
	logLevel     string  // Log verbosity level
	scenarioPath string  // Path to the scenario YAML
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "prodsim",
	Short: "Discrete-event simulator for production and processing lines",
}

// runCmd executes a scenario using parameters from CLI flags
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a production line scenario",
	Run: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)

		if scenarioPath == "" {
			logrus.Fatal("No scenario file provided. Exiting simulation.")
		}
		cfg, err := LoadScenario(scenarioPath)
		if err != nil {
			logrus.Fatalf("Unable to load scenario: %v", err)
		}

		recorder := sim.NewMemoryRecorder()
		sys, err := BuildSystem(cfg, seed, recorder)
		if err != nil {
			logrus.Fatalf("Unable to build system: %v", err)
		}

		logrus.Infof("Starting simulation: scenario=%s seed=%d duration=%g", scenarioPath, seed, duration)
		if err := sys.Simulate(duration); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}

		for _, dc := range cfg.Devices {
			if dc.Kind != "sink" {
				continue
			}
			s := sim.SummarizeThroughput(recorder, dc.Name)
			logrus.Infof("sink %s: received=%d mean_interval=%.3f stddev=%.3f p50=%.3f p95=%.3f mean_value=%.3f",
				dc.Name, s.Count, s.MeanInterval, s.StdDevInterval, s.P50Interval, s.P95Interval, s.MeanValue)
		}
		logrus.Info("Simulation complete.")
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for deterministic replay")
	runCmd.Flags().Float64Var(&duration, "duration", 1000, "Total simulated time units")
	runCmd.Flags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to scenario YAML file")

	rootCmd.AddCommand(runCmd)
}
