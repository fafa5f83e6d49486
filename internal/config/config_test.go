package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Pool.SegmentCapacity != 256 {
		t.Fatalf("expected pool.segment_capacity=256, got %d", cfg.Pool.SegmentCapacity)
	}
	if cfg.Timer.NSegments != 8 || cfg.Timer.SegmentCapacity != 100 {
		t.Fatalf("unexpected timer defaults: %+v", cfg.Timer)
	}
	if cfg.Agent.DefaultDeadlineMillis != 0 {
		t.Fatalf("expected default_deadline_millis=0, got %d", cfg.Agent.DefaultDeadlineMillis)
	}
}

func TestLoadOverridesDefaultsPartially(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "zero.yaml")
	yamlContent := "pool:\n  thread_count: 8\nagent:\n  default_deadline_millis: 2000\n"
	if err := os.WriteFile(path, []byte(yamlContent), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Pool.ThreadCount != 8 {
		t.Fatalf("expected overridden thread_count=8, got %d", cfg.Pool.ThreadCount)
	}
	if cfg.Agent.DefaultDeadlineMillis != 2000 {
		t.Fatalf("expected overridden default_deadline_millis=2000, got %d", cfg.Agent.DefaultDeadlineMillis)
	}
	// Fields absent from the file keep their defaults.
	if cfg.Timer.NSegments != 8 {
		t.Fatalf("expected untouched timer.n_segments=8, got %d", cfg.Timer.NSegments)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
