package config

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/gogpu/gpuhal"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.MaxFramesInFlight != 2 {
		t.Errorf("MaxFramesInFlight = %d, want 2", cfg.MaxFramesInFlight)
	}
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Errorf("SlogLevel() = %v, want INFO", cfg.SlogLevel())
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Config
		wantErr bool
	}{
		{
			name:  "empty keeps defaults",
			input: "",
			want:  Default(),
		},
		{
			name: "all keys",
			input: `
max_frames_in_flight = 3
backends = ["vulkan", "noop"]
power_preference = "discrete"
log_level = "debug"
features = ["TimestampQuery", "shaderf16"]
`,
			want: Config{
				MaxFramesInFlight: 3,
				Backends:          []string{"vulkan", "noop"},
				PowerPreference:   "discrete",
				LogLevel:          "debug",
				Features:          []string{"TimestampQuery", "shaderf16"},
			},
		},
		{name: "zero frames", input: "max_frames_in_flight = 0", wantErr: true},
		{name: "unknown backend", input: `backends = ["directx9"]`, wantErr: true},
		{name: "unknown power", input: `power_preference = "turbo"`, wantErr: true},
		{name: "unknown level", input: `log_level = "trace"`, wantErr: true},
		{name: "unknown feature", input: `features = ["RayTracing"]`, wantErr: true},
		{name: "unknown key", input: "validate = true", wantErr: true},
		{name: "bad syntax", input: "max_frames_in_flight = ", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Parse() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_InvalidIsErrInvalid(t *testing.T) {
	for _, input := range []string{"max_frames_in_flight = -1", "unknown_key = 1"} {
		if _, err := Parse([]byte(input)); !errors.Is(err, ErrInvalid) {
			t.Errorf("Parse(%q) error = %v, want ErrInvalid", input, err)
		}
	}
}

func TestMarshal_RoundTrip(t *testing.T) {
	want := Config{
		MaxFramesInFlight: 4,
		Backends:          []string{"noop"},
		PowerPreference:   "integrated",
		LogLevel:          "warn",
		Features:          []string{"DepthClipControl"},
	}
	data, err := want.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v\n%s", err, data)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip = %+v, want %+v", got, want)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gpuhal.toml")
	if err := os.WriteFile(path, []byte("log_level = \"error\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SlogLevel() != slog.LevelError {
		t.Errorf("SlogLevel() = %v, want ERROR", cfg.SlogLevel())
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Load(missing) error = nil")
	}
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := (Config{LogLevel: tt.level}).SlogLevel(); got != tt.want {
			t.Errorf("SlogLevel(%q) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestFeatureSet(t *testing.T) {
	cfg := Config{Features: []string{"TimestampQuery", "TextureCompressionBC", "nope"}}
	want := gpuhal.FeatureTimestampQuery | gpuhal.FeatureTextureCompressionBC
	if got := cfg.FeatureSet(); got != want {
		t.Errorf("FeatureSet() = %v, want %v", got, want)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gpuhal.toml")
	if err := os.WriteFile(path, []byte("log_level = \"info\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	type result struct {
		cfg Config
		err error
	}
	got := make(chan result, 256)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, func(c Config, err error) { got <- result{c, err} })
	}()

	// The watcher registers asynchronously; keep rewriting until a reload
	// is observed.
	deadline := time.After(5 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
wait:
	for {
		select {
		case r := <-got:
			if r.err == nil && r.cfg.LogLevel == "debug" {
				break wait
			}
		case <-tick.C:
			if err := os.WriteFile(path, []byte("log_level = \"debug\"\n"), 0o600); err != nil {
				t.Fatal(err)
			}
		case <-deadline:
			t.Fatal("Watch did not deliver the rewritten config")
		}
	}

	// Unrelated files in the same directory are ignored.
	if err := os.WriteFile(filepath.Join(dir, "other.toml"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() = %v after cancel, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
