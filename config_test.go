package capture

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	t.Setenv("CAPTURE_DEVICE", "/dev/video2")
	cfg, err := ParseConfig([]byte(`
device:
  path: ${CAPTURE_DEVICE}
  width: 320
  height: 240
  input: 1
  norm: 1
  frequency: 217250000
  tuner_number: 2
  roundrobin_skip: 3
picture:
  brightness: 100
  hue: 40
  autobright: true
`))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Device.Path != "/dev/video2" {
		t.Errorf("path %q", cfg.Device.Path)
	}
	if cfg.Device.Buffers != TargetBuffers || cfg.HTTP.Listen != ":8080" {
		t.Errorf("defaults not applied: %+v", cfg)
	}

	s := cfg.Settings()
	want := Settings{
		Width:  320,
		Height: 240,
		Input:  InputParams{Index: 1, Norm: NormNTSC, Frequency: 217250000, TunerNumber: 2},
		Picture: PictureSettings{
			Brightness: 100,
			Hue:        40,
			AutoBright: true,
		},
		RoundRobinSkip: 3,
	}
	if s != want {
		t.Errorf("Settings() = %+v, want %+v", s, want)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Device.Path != "/dev/video0" || cfg.Device.Width != 640 || cfg.Device.Height != 480 {
		t.Errorf("defaults %+v", cfg.Device)
	}
	if err := cfg.Validate(); err != nil {
		t.Error(err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"odd width", "device: {width: 321}", "even"},
		{"negative height", "device: {height: -2}", "positive"},
		{"one buffer", "device: {buffers: 1}", "buffers"},
		{"negative input", "device: {input: -1}", "input"},
		{"negative skip", "device: {roundrobin_skip: -1}", "roundrobin_skip"},
		{"contrast range", "picture: {contrast: 300}", "contrast"},
		{"bad yaml", "device: [", "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseConfig([]byte(tt.yaml))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("got %v, want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.yaml")
	if err := os.WriteFile(path, []byte("http:\n  listen: 127.0.0.1:9000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTP.Listen != "127.0.0.1:9000" {
		t.Errorf("listen %q", cfg.HTTP.Listen)
	}
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file loaded")
	}
}
