package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ScenarioConfig is the YAML shape for an `auractl sim` scenario file.
// It mirrors original_source/crates/aura-simulator/src/config's
// SimulationConfig tree (core run bounds, property-monitoring, perf,
// network, and scenario/byzantine knobs) — deliberately only the config
// *shape* and its validation, since the simulation harness itself is
// Non-goal/out-of-scope: this loads and validates a scenario file without
// running anything against it.
type ScenarioConfig struct {
	Simulation         SimulationCoreConfig     `yaml:"simulation"`
	PropertyMonitoring PropertyMonitoringConfig `yaml:"property_monitoring"`
	Performance        PerformanceConfig        `yaml:"performance"`
	Network            NetworkConfig            `yaml:"network"`
	Scenario           ScenarioDetail           `yaml:"scenario"`
}

type SimulationCoreConfig struct {
	MaxTicks       uint64 `yaml:"max_ticks"`
	MaxTimeMs      uint64 `yaml:"max_time_ms"`
	TickDurationMs uint64 `yaml:"tick_duration_ms"`
}

type PropertyMonitoringConfig struct {
	MaxTraceLength              uint64  `yaml:"max_trace_length"`
	EvaluationTimeoutMs         uint64  `yaml:"evaluation_timeout_ms"`
	ViolationConfidenceThreshold float64 `yaml:"violation_confidence_threshold"`
}

type PerformanceConfig struct {
	MaxCPUUtilization    float64 `yaml:"max_cpu_utilization"`
	MetricsIntervalTicks uint64  `yaml:"metrics_interval_ticks"`
}

type NetworkConfig struct {
	DropRate                float64  `yaml:"drop_rate"`
	LatencyRangeMs          [2]uint64 `yaml:"latency_range_ms"`
	DefaultPartitionDuration uint64   `yaml:"default_partition_duration"`
}

type ScenarioDetail struct {
	ByzantineConfig       ByzantineConfig `yaml:"byzantine_config"`
	ExpectedParticipants  *uint64         `yaml:"expected_participants,omitempty"`
}

type ByzantineConfig struct {
	MaxByzantineFraction float64 `yaml:"max_byzantine_fraction"`
}

// Validate checks the same invariants original_source's ConfigValidation
// impls enforce, field for field.
func (c *ScenarioConfig) Validate() error {
	if c.Simulation.MaxTicks == 0 {
		return fmt.Errorf("scenario: simulation.max_ticks must be greater than 0")
	}
	if c.Simulation.MaxTimeMs == 0 {
		return fmt.Errorf("scenario: simulation.max_time_ms must be greater than 0")
	}
	if c.Simulation.TickDurationMs == 0 {
		return fmt.Errorf("scenario: simulation.tick_duration_ms must be greater than 0")
	}
	if c.PropertyMonitoring.MaxTraceLength == 0 {
		return fmt.Errorf("scenario: property_monitoring.max_trace_length must be greater than 0")
	}
	if c.PropertyMonitoring.EvaluationTimeoutMs == 0 {
		return fmt.Errorf("scenario: property_monitoring.evaluation_timeout_ms must be greater than 0")
	}
	if c.PropertyMonitoring.ViolationConfidenceThreshold < 0 || c.PropertyMonitoring.ViolationConfidenceThreshold > 1 {
		return fmt.Errorf("scenario: property_monitoring.violation_confidence_threshold must be between 0.0 and 1.0")
	}
	if c.Performance.MaxCPUUtilization < 0 || c.Performance.MaxCPUUtilization > 1 {
		return fmt.Errorf("scenario: performance.max_cpu_utilization must be between 0.0 and 1.0")
	}
	if c.Performance.MetricsIntervalTicks == 0 {
		return fmt.Errorf("scenario: performance.metrics_interval_ticks must be greater than 0")
	}
	if c.Network.DropRate < 0 || c.Network.DropRate > 1 {
		return fmt.Errorf("scenario: network.drop_rate must be between 0.0 and 1.0")
	}
	if c.Network.LatencyRangeMs[0] > c.Network.LatencyRangeMs[1] {
		return fmt.Errorf("scenario: network.latency_range_ms min must be <= max")
	}
	if c.Network.DefaultPartitionDuration == 0 {
		return fmt.Errorf("scenario: network.default_partition_duration must be greater than 0")
	}
	if c.Scenario.ByzantineConfig.MaxByzantineFraction < 0 || c.Scenario.ByzantineConfig.MaxByzantineFraction > 1 {
		return fmt.Errorf("scenario: scenario.byzantine_config.max_byzantine_fraction must be between 0.0 and 1.0")
	}
	if c.Scenario.ExpectedParticipants != nil && *c.Scenario.ExpectedParticipants == 0 {
		return fmt.Errorf("scenario: scenario.expected_participants must be greater than 0")
	}
	return nil
}

func loadScenarioConfig(path string) (*ScenarioConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario file: %w", err)
	}
	var cfg ScenarioConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse scenario file: %w", err)
	}
	return &cfg, nil
}

// runSim loads and validates a scenario file; it intentionally does not
// drive any simulation — the harness itself is out of scope, only the
// config shape is supplemented here.
func runSim(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("sim: usage: auractl sim <scenario.yaml>")
	}
	cfg, err := loadScenarioConfig(args[0])
	if err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("sim: %w", err)
	}
	fmt.Printf("scenario %q is valid: %d ticks, %.0f%% max byzantine fraction\n",
		args[0], cfg.Simulation.MaxTicks, cfg.Scenario.ByzantineConfig.MaxByzantineFraction*100)
	return nil
}
