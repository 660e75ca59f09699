// Package config holds the code generation settings shared by the CLI and
// the bytecode compiler.
package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/cpu"
	"gopkg.in/yaml.v3"

	"github.com/raymyers/ralph-jit/pkg/fpcompiler"
	"github.com/raymyers/ralph-jit/pkg/x86"
)

// FPAuto selects the floating point backend per method
const FPAuto = "auto"

// Config is the yaml file format. Zero values mean "use the default".
type Config struct {
	Mode              string `yaml:"mode"`     // 32 or 64
	FP                string `yaml:"fp"`       // fpu, sse or auto
	MaxStack          int    `yaml:"maxStack"` // overrides the method's stack= when set
	ArrayLengthOffset int    `yaml:"arrayLengthOffset"`
	ArrayDataOffset   int    `yaml:"arrayDataOffset"`
	Verify            bool   `yaml:"verify"`
	Trace             bool   `yaml:"trace"`
}

// Default returns the settings used without a config file
func Default() *Config {
	return &Config{
		Mode:              "32",
		FP:                "fpu",
		ArrayLengthOffset: 8,
		ArrayDataOffset:   12,
	}
}

// Load reads a yaml config file over the defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes yaml config data over the defaults and validates it
func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks the field values
func (c *Config) Validate() error {
	if _, err := x86.ParseMode(c.Mode); err != nil {
		return err
	}
	if !strings.EqualFold(c.FP, FPAuto) {
		if _, err := fpcompiler.ParseBackend(c.FP); err != nil {
			return err
		}
	}
	if c.MaxStack < 0 {
		return fmt.Errorf("maxStack must not be negative, got %d", c.MaxStack)
	}
	if c.ArrayLengthOffset < 0 || c.ArrayDataOffset < 0 {
		return fmt.Errorf("array offsets must not be negative")
	}
	if c.ArrayDataOffset != 0 && c.ArrayDataOffset < c.ArrayLengthOffset+4 {
		return fmt.Errorf("array data offset %d overlaps the length field at %d", c.ArrayDataOffset, c.ArrayLengthOffset)
	}
	return nil
}

// MachineMode returns the parsed code mode
func (c *Config) MachineMode() x86.Mode {
	m, err := x86.ParseMode(c.Mode)
	if err != nil {
		return x86.Code32
	}
	return m
}

// Arrays returns the array object layout
func (c *Config) Arrays() fpcompiler.Arrays {
	return fpcompiler.Arrays{LengthOffset: c.ArrayLengthOffset, DataOffset: c.ArrayDataOffset}
}

// HostHasSSE2 is replaced in tests
var HostHasSSE2 = func() bool { return cpu.X86.HasSSE2 }

// Backend picks the floating point backend for a method using the given
// operations. With fp: auto the SSE backend is chosen when the host has
// SSE2 and the SSE backend compiles every operation.
func (c *Config) Backend(ops []string) (fpcompiler.Backend, error) {
	if !strings.EqualFold(c.FP, FPAuto) {
		return fpcompiler.ParseBackend(c.FP)
	}
	if !HostHasSSE2() {
		return fpcompiler.FPU, nil
	}
	for _, op := range ops {
		if fpcompiler.Refuses(fpcompiler.SSE, c.MachineMode(), op) {
			return fpcompiler.FPU, nil
		}
	}
	return fpcompiler.SSE, nil
}
