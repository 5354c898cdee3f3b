// Package config loads gpuhal runtime settings from TOML.
//
// A minimal file:
//
//	max_frames_in_flight = 3
//	backends = ["vulkan", "noop"]
//	power_preference = "discrete"
//	log_level = "debug"
//	features = ["TimestampQuery"]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/gogpu/gpuhal"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

// DefaultMaxFramesInFlight is the frame ring size used when the file does
// not set one.
const DefaultMaxFramesInFlight = 2

var (
	backendNames = []string{"vulkan", "metal", "dx12", "gl", "gles", "noop", "software", "empty"}
	powerNames   = []string{"", "any", "discrete", "high-performance", "integrated", "low-power"}
	levelNames   = map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
)

// Config holds the settings a gpuhal application reads at startup.
type Config struct {
	// MaxFramesInFlight is the frame ring size K.
	MaxFramesInFlight int `toml:"max_frames_in_flight"`

	// Backends lists backend names to try in order. Empty tries every
	// registered backend.
	Backends []string `toml:"backends,omitempty"`

	// PowerPreference is "any", "discrete" or "integrated".
	PowerPreference string `toml:"power_preference,omitempty"`

	// LogLevel is "debug", "info", "warn" or "error".
	LogLevel string `toml:"log_level"`

	// Features names optional device features to request.
	Features []string `toml:"features,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		MaxFramesInFlight: DefaultMaxFramesInFlight,
		PowerPreference:   "any",
		LogLevel:          "info",
	}
}

// Load reads and validates the file at path. Unset keys keep their
// defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates TOML. Unknown keys are an error.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalid, strings.TrimSpace(strict.String()))
		}
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.MaxFramesInFlight < 1 {
		return fmt.Errorf("%w: max_frames_in_flight = %d, want >= 1", ErrInvalid, c.MaxFramesInFlight)
	}
	for _, b := range c.Backends {
		if !slices.Contains(backendNames, strings.ToLower(b)) {
			return fmt.Errorf("%w: unknown backend %q", ErrInvalid, b)
		}
	}
	if !slices.Contains(powerNames, strings.ToLower(c.PowerPreference)) {
		return fmt.Errorf("%w: unknown power_preference %q", ErrInvalid, c.PowerPreference)
	}
	if _, ok := levelNames[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalid, c.LogLevel)
	}
	for _, f := range c.Features {
		if _, ok := gpuhal.ParseFeature(f); !ok {
			return fmt.Errorf("%w: unknown feature %q", ErrInvalid, f)
		}
	}
	return nil
}

// Marshal encodes the configuration as TOML.
func (c Config) Marshal() ([]byte, error) {
	return toml.Marshal(c)
}

// SlogLevel returns the slog level for LogLevel. Unknown names map to
// slog.LevelInfo.
func (c Config) SlogLevel() slog.Level {
	if l, ok := levelNames[strings.ToLower(c.LogLevel)]; ok {
		return l
	}
	return slog.LevelInfo
}

// FeatureSet returns the requested features as a bitset. Unknown names are
// skipped.
func (c Config) FeatureSet() gpuhal.Features {
	var fs gpuhal.Features
	for _, name := range c.Features {
		if f, ok := gpuhal.ParseFeature(name); ok {
			fs |= f
		}
	}
	return fs
}
