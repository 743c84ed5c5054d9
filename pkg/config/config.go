// Package config loads compiler settings from altf4.yaml and the environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, ALTF4_*
// environment variables, command-line flags (applied by the caller).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"github.com/GriffinCanCode/altf4-compiler/pkg/logger"
)

const (
	DefaultFilename   = "altf4.yaml"
	DefaultCPU        = "cortex-m0"
	DefaultAlign      = 2
	DefaultAssembler  = "arm-none-eabi-as"
	DefaultMaxNesting = 256
)

// Colour modes for diagnostics.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

type Config struct {
	Log         LogConfig         `yaml:"log"`
	Target      TargetConfig      `yaml:"target"`
	Frontend    FrontendConfig    `yaml:"frontend"`
	Toolchain   ToolchainConfig   `yaml:"toolchain"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

type TargetConfig struct {
	CPU   string `yaml:"cpu"`
	Align int    `yaml:"align"`
}

type FrontendConfig struct {
	MaxNesting int `yaml:"maxNesting"`
}

type ToolchainConfig struct {
	Assembler string   `yaml:"assembler"`
	Flags     []string `yaml:"flags,omitempty"`
}

type DiagnosticsConfig struct {
	Color string `yaml:"color"`
}

// Default returns the built-in settings.
func Default() Config {
	var c Config
	c.normalize()
	return c
}

func (c *Config) normalize() {
	if c.Log.Level == "" {
		c.Log.Level = "warn"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Target.CPU == "" {
		c.Target.CPU = DefaultCPU
	}
	if c.Target.Align == 0 {
		c.Target.Align = DefaultAlign
	}
	if c.Frontend.MaxNesting == 0 {
		c.Frontend.MaxNesting = DefaultMaxNesting
	}
	if c.Toolchain.Assembler == "" {
		c.Toolchain.Assembler = DefaultAssembler
	}
	if c.Diagnostics.Color == "" {
		c.Diagnostics.Color = ColorAuto
	}
}

// applyEnv overrides file settings with ALTF4_* variables. NO_COLOR disables
// colour whatever the file says.
func (c *Config) applyEnv() {
	c.Log.Level = env.Str("ALTF4_LOG_LEVEL", c.Log.Level)
	c.Log.Format = env.Str("ALTF4_LOG_FORMAT", c.Log.Format)
	c.Log.File = env.Str("ALTF4_LOG_FILE", c.Log.File)
	c.Target.CPU = env.Str("ALTF4_CPU", c.Target.CPU)
	c.Target.Align = env.Int("ALTF4_ALIGN", c.Target.Align)
	c.Toolchain.Assembler = env.Str("ALTF4_ASSEMBLER", c.Toolchain.Assembler)
	c.Frontend.MaxNesting = env.Int("ALTF4_MAX_NESTING", c.Frontend.MaxNesting)
	if env.Has("NO_COLOR") {
		c.Diagnostics.Color = ColorNever
	}
}

// Validate reports settings no component can honour.
func (c Config) Validate() error {
	if _, err := logger.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format: must be text or json, got %q", c.Log.Format)
	}
	if c.Target.Align < 0 || c.Target.Align > 16 {
		return fmt.Errorf("target.align: %d out of range", c.Target.Align)
	}
	if c.Frontend.MaxNesting < 1 {
		return fmt.Errorf("frontend.maxNesting: must be positive, got %d", c.Frontend.MaxNesting)
	}
	switch c.Diagnostics.Color {
	case ColorAuto, ColorAlways, ColorNever:
	default:
		return fmt.Errorf("diagnostics.color: must be auto, always or never, got %q", c.Diagnostics.Color)
	}
	return nil
}

// Parse decodes YAML settings, rejecting unknown keys.
func Parse(data []byte) (Config, error) {
	var c Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	c.normalize()
	return c, nil
}

// Load reads path, or DefaultFilename in the working directory when path is
// empty, and applies environment overrides. A missing default file is not an
// error; a missing explicit file is.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultFilename
	}

	c := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		parsed, perr := Parse(data)
		if perr != nil {
			return Config{}, fmt.Errorf("parse %s: %w", filepath.Base(path), perr)
		}
		c = parsed
		logger.Debug("Loaded config", "path", path)
	case explicit || !os.IsNotExist(err):
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}

	c.applyEnv()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Write encodes c as YAML.
func (c Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// LoggerConfig translates the log section for logger.Init.
func (c Config) LoggerConfig() logger.Config {
	cfg := logger.DefaultConfig()
	if level, err := logger.ParseLevel(c.Log.Level); err == nil {
		cfg.Level = level
	}
	cfg.Format = c.Log.Format
	cfg.LogFile = c.Log.File
	return cfg
}
