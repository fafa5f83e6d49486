// Package config loads the runtime's configuration surface from YAML, with
// Go struct defaults filled in before any file is read.
//
// Author: aaron-michaux
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PoolConfig controls worker count and queue shape for internal/pool.
type PoolConfig struct {
	ThreadCount     int `yaml:"thread_count"`
	NSegments       int `yaml:"n_segments"`
	SegmentCapacity int `yaml:"segment_capacity"`
}

// TimerConfig controls shard count and per-shard heap capacity for
// internal/timer.
type TimerConfig struct {
	NSegments       int `yaml:"n_segments"`
	SegmentCapacity int `yaml:"segment_capacity"`
}

// AgentConfig controls the default call deadline for internal/rpc.Agent.
type AgentConfig struct {
	DefaultDeadlineMillis uint32 `yaml:"default_deadline_millis"`
}

// MetricsConfig controls the ambient Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// LogConfig controls the ambient structured logger.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Config collects every tunable knob the runtime recognizes, plus the
// ambient knobs a runnable binary needs.
type Config struct {
	Pool    PoolConfig    `yaml:"pool"`
	Timer   TimerConfig   `yaml:"timer"`
	Agent   AgentConfig   `yaml:"agent"`
	Metrics MetricsConfig `yaml:"metrics"`
	Log     LogConfig     `yaml:"log"`

	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the baseline configuration: pool.thread_count=0 (meaning
// "auto", resolved to hardware concurrency by internal/pool.Config.normalize),
// pool.n_segments=0 (meaning "auto", resolved to 2*T), pool.segment_capacity=256,
// timer.n_segments=8, timer.segment_capacity=100, agent.default_deadline_millis=0
// (no deadline).
func Default() Config {
	return Config{
		Pool: PoolConfig{
			ThreadCount:     0,
			NSegments:       0,
			SegmentCapacity: 256,
		},
		Timer: TimerConfig{
			NSegments:       8,
			SegmentCapacity: 100,
		},
		Agent: AgentConfig{
			DefaultDeadlineMillis: 0,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
		Log: LogConfig{
			Level: "info",
		},
		ShutdownTimeout: 30 * time.Second,
	}
}

// Load reads and parses a YAML config file, starting from Default() so
// that any field the file omits keeps its default value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}
