package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/action-lang/actc/internal/config"
)

func TestDefaultsMatchFixedAddressSpace(t *testing.T) {
	d := config.Defaults()
	if d.ProgramBase != 0x2000 {
		t.Fatalf("ProgramBase = 0x%04X, want 0x2000", d.ProgramBase)
	}
	if err := d.Validate(); err != nil {
		t.Fatalf("Defaults() failed Validate: %v", err)
	}
}

func TestLoadOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "actc.yaml")
	if err := os.WriteFile(path, []byte("traceJSON: true\ntraceOutput: trace.jsonl\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.TraceJSON {
		t.Fatalf("TraceJSON = false, want true")
	}
	if cfg.TraceOutput != "trace.jsonl" {
		t.Fatalf("TraceOutput = %q, want trace.jsonl", cfg.TraceOutput)
	}
	if cfg.WorkStackSize != config.Defaults().WorkStackSize {
		t.Fatalf("WorkStackSize = %d, want default %d unchanged", cfg.WorkStackSize, config.Defaults().WorkStackSize)
	}
}

func TestValidateRejectsOverlappingPartitions(t *testing.T) {
	cfg := config.Defaults()
	cfg.ProgramBase = 0x1000 // inside the default work stack
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate: expected an error for an overlapping programBase")
	}
}

func TestLoadMissingFileIsError(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("Load: expected an error for a missing file")
	}
}
