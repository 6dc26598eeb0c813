package main

import (
	"os"
	"path/filepath"
	"testing"
)

func validScenarioYAML() string {
	return `
simulation:
  max_ticks: 1000
  max_time_ms: 60000
  tick_duration_ms: 10
property_monitoring:
  max_trace_length: 500
  evaluation_timeout_ms: 1000
  violation_confidence_threshold: 0.9
performance:
  max_cpu_utilization: 0.8
  metrics_interval_ticks: 10
network:
  drop_rate: 0.01
  latency_range_ms: [5, 50]
  default_partition_duration: 100
scenario:
  byzantine_config:
    max_byzantine_fraction: 0.3
  expected_participants: 5
`
}

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scenario.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	return path
}

func TestLoadScenarioConfigValid(t *testing.T) {
	path := writeScenario(t, validScenarioYAML())
	cfg, err := loadScenarioConfig(path)
	if err != nil {
		t.Fatalf("loadScenarioConfig: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid scenario, got %v", err)
	}
	if cfg.Simulation.MaxTicks != 1000 {
		t.Fatalf("expected max_ticks 1000, got %d", cfg.Simulation.MaxTicks)
	}
}

func TestValidateRejectsZeroMaxTicks(t *testing.T) {
	cfg := &ScenarioConfig{}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected zero-value scenario to fail validation")
	}
}

func TestValidateRejectsOutOfRangeByzantineFraction(t *testing.T) {
	path := writeScenario(t, validScenarioYAML())
	cfg, err := loadScenarioConfig(path)
	if err != nil {
		t.Fatalf("loadScenarioConfig: %v", err)
	}
	cfg.Scenario.ByzantineConfig.MaxByzantineFraction = 1.5
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected out-of-range byzantine fraction to fail validation")
	}
}
