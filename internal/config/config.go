// Package config loads optional YAML settings for the VM's memory
// layout and execution tracing, parsed with goccy/go-yaml (carried
// over from the teacher's own go.mod). Defaults match §4.5 of the
// language specification exactly. The layout fields are validated
// against the four-region shape of the address space but are not
// applied: the VM's partitions are fixed, and cmd/actc run uses only
// the trace fields.
package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config holds the memory-layout fields (validated only; the VM does
// not read them) plus trace-output settings. Field names match the YAML keys a user
// would write by hand: workStackSize, paramStackSize, programBase,
// traceJSON, traceOutput.
type Config struct {
	WorkStackSize  int    `yaml:"workStackSize"`
	ParamStackSize int    `yaml:"paramStackSize"`
	ProgramBase    int    `yaml:"programBase"`
	TraceJSON      bool   `yaml:"traceJSON"`
	TraceOutput    string `yaml:"traceOutput"`
}

// Defaults matches the fixed address space §4.5 specifies:
// 0x0800-0x1BFF work stack (0x1400 bytes), 0x1C00-0x1FFF parameter
// stack (0x400 bytes), 0x2000 program base.
func Defaults() Config {
	return Config{
		WorkStackSize:  0x1400,
		ParamStackSize: 0x0400,
		ProgramBase:    0x2000,
		TraceJSON:      false,
		TraceOutput:    "",
	}
}

// Load reads path, applying its keys over Defaults(); a missing or
// empty field keeps its default rather than zeroing it out. A zero
// value *Config is never returned on success.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	cfg := Defaults()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate checks that the configured partitions still fit inside the
// 64 KiB address space in the fixed order §4.5 lays them out: reserved,
// work stack, parameter stack, program image, ROM.
func (c Config) Validate() error {
	if c.WorkStackSize <= 0 {
		return fmt.Errorf("workStackSize must be positive, got %d", c.WorkStackSize)
	}
	if c.ParamStackSize <= 0 {
		return fmt.Errorf("paramStackSize must be positive, got %d", c.ParamStackSize)
	}
	workStart := 0x0800
	paramStart := workStart + c.WorkStackSize
	programStart := paramStart + c.ParamStackSize
	if c.ProgramBase != 0 && c.ProgramBase < programStart {
		return fmt.Errorf("programBase 0x%04X overlaps the parameter stack (ends at 0x%04X)", c.ProgramBase, programStart)
	}
	base := c.ProgramBase
	if base == 0 {
		base = programStart
	}
	if base >= 0xC000 {
		return fmt.Errorf("programBase 0x%04X leaves no room for the program image before ROM at 0xC000", base)
	}
	return nil
}
