// Package config resolves llamad's deployment settings once at process
// start. The resolved Config is read-only for the life of the process.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Devices accepted by the --device flag / LLAMAD_DEVICE.
const (
	DeviceAuto = "auto"
	DeviceCPU  = "cpu"
	DeviceCUDA = "cuda"
)

const maxRoundDigits = 12

// Config holds the fully-resolved deployment settings.
type Config struct {
	// Env is a free-form deployment tag (dev, staging, prod).
	Env string
	// Device selects where the runtime places the model (auto, cpu, cuda).
	Device string
	// ModelPath is the checkpoint the runtime loads at startup.
	ModelPath string
	// RoundDigits is the decimal precision applied to returned scores.
	RoundDigits int
	// RuntimeURL attaches to an already-running inference runtime instead
	// of spawning one.
	RuntimeURL string
	// RuntimeBin is the runtime binary spawned when RuntimeURL is empty.
	RuntimeBin string
	// Addr is the HTTP listen address.
	Addr string

	LogLevel  string
	LogFormat string
}

// fileConfig mirrors the optional config file (~/.config/llamad/config.yaml).
// Pointer fields distinguish "not set" from zero values.
type fileConfig struct {
	Env         string `yaml:"env"`
	Device      string `yaml:"device"`
	ModelPath   string `yaml:"model_path"`
	RoundDigits *int   `yaml:"round_digits"`
	RuntimeURL  string `yaml:"runtime_url"`
	RuntimeBin  string `yaml:"runtime_bin"`
	Addr        string `yaml:"server_address"`
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"`
}

// Default returns the built-in settings before any file, environment, or
// flag overrides.
func Default() Config {
	return Config{
		Env:         "dev",
		Device:      DeviceAuto,
		RoundDigits: 4,
		RuntimeBin:  "llama-server",
		Addr:        "127.0.0.1:8080",
		LogLevel:    "info",
		LogFormat:   "pretty",
	}
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "llamad", "config.yaml")
}

// Load resolves the configuration: defaults, then the config file (if any),
// then LLAMAD_* environment variables. Flag overrides are applied by the
// caller afterwards. A malformed file or environment value is a hard error
// so the process never starts half-configured.
func Load() (Config, error) {
	return load(configPath(), os.LookupEnv)
}

func load(path string, lookupEnv func(string) (string, bool)) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			var fc fileConfig
			if err := yaml.Unmarshal(data, &fc); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
			applyFile(&cfg, fc)
		} else if !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, lookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func applyFile(cfg *Config, fc fileConfig) {
	if fc.Env != "" {
		cfg.Env = fc.Env
	}
	if fc.Device != "" {
		cfg.Device = fc.Device
	}
	if fc.ModelPath != "" {
		cfg.ModelPath = fc.ModelPath
	}
	if fc.RoundDigits != nil {
		cfg.RoundDigits = *fc.RoundDigits
	}
	if fc.RuntimeURL != "" {
		cfg.RuntimeURL = fc.RuntimeURL
	}
	if fc.RuntimeBin != "" {
		cfg.RuntimeBin = fc.RuntimeBin
	}
	if fc.Addr != "" {
		cfg.Addr = fc.Addr
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFormat != "" {
		cfg.LogFormat = fc.LogFormat
	}
}

func applyEnv(cfg *Config, lookupEnv func(string) (string, bool)) error {
	if v, ok := lookupEnv("LLAMAD_ENV"); ok {
		cfg.Env = v
	}
	if v, ok := lookupEnv("LLAMAD_DEVICE"); ok {
		cfg.Device = v
	}
	if v, ok := lookupEnv("LLAMAD_MODEL"); ok {
		cfg.ModelPath = v
	}
	if v, ok := lookupEnv("LLAMAD_ROUND_DIGITS"); ok {
		digits, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("LLAMAD_ROUND_DIGITS: %w", err)
		}
		cfg.RoundDigits = digits
	}
	if v, ok := lookupEnv("LLAMAD_RUNTIME_URL"); ok {
		cfg.RuntimeURL = v
	}
	if v, ok := lookupEnv("LLAMAD_RUNTIME_BIN"); ok {
		cfg.RuntimeBin = v
	}
	if v, ok := lookupEnv("LLAMAD_ADDR"); ok {
		cfg.Addr = v
	}
	return nil
}

// Validate reports the first setting that would prevent a clean startup.
func (c Config) Validate() error {
	switch c.Device {
	case DeviceAuto, DeviceCPU, DeviceCUDA:
	default:
		return fmt.Errorf("unknown device %q (want auto, cpu, or cuda)", c.Device)
	}
	if c.RoundDigits < 0 || c.RoundDigits > maxRoundDigits {
		return fmt.Errorf("round_digits %d out of range [0,%d]", c.RoundDigits, maxRoundDigits)
	}
	if strings.TrimSpace(c.ModelPath) == "" && strings.TrimSpace(c.RuntimeURL) == "" {
		return fmt.Errorf("model path is required (set --model or LLAMAD_MODEL, or attach with --runtime-url)")
	}
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("listen address is required")
	}
	return nil
}

// ResolveDevice maps the auto device selection onto real hardware.
// cudaAvailable is the detection result from the diag package.
func (c Config) ResolveDevice(cudaAvailable bool) string {
	if c.Device != DeviceAuto {
		return c.Device
	}
	if cudaAvailable {
		return DeviceCUDA
	}
	return DeviceCPU
}
