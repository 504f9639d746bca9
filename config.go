package capture

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the on-disk configuration of a capture daemon.
type Config struct {
	Device  DeviceConfig  `yaml:"device"`
	Picture PictureConfig `yaml:"picture"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// DeviceConfig selects the device, input and frame size.
type DeviceConfig struct {
	Path           string `yaml:"path"`            // /dev/video0
	Width          int    `yaml:"width"`           // requested, the device may correct it
	Height         int    `yaml:"height"`          //
	Input          int    `yaml:"input"`           // 8 means the default input
	Norm           int    `yaml:"norm"`            // 0 PAL, 1 NTSC, 2 SECAM
	Frequency      uint64 `yaml:"frequency"`       // tuner frequency in Hz
	TunerNumber    int    `yaml:"tuner_number"`    //
	Buffers        int    `yaml:"buffers"`         // mmap buffers to request
	RoundRobinSkip int    `yaml:"roundrobin_skip"` // frames dropped after an input switch
}

// PictureConfig holds picture control targets on a 0..255 scale. Zero
// leaves a control at the device default.
type PictureConfig struct {
	Brightness int  `yaml:"brightness"`
	Contrast   int  `yaml:"contrast"`
	Saturation int  `yaml:"saturation"`
	Hue        int  `yaml:"hue"`
	AutoBright bool `yaml:"autobright"`
}

// HTTPConfig configures the snapshot server.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML after expanding environment variables.
func ParseConfig(data []byte) (*Config, error) {
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Device.Path == "" {
		c.Device.Path = "/dev/video0"
	}
	if c.Device.Width == 0 {
		c.Device.Width = 640
	}
	if c.Device.Height == 0 {
		c.Device.Height = 480
	}
	if c.Device.Buffers == 0 {
		c.Device.Buffers = TargetBuffers
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
}

// Validate checks ranges.
func (c *Config) Validate() error {
	if c.Device.Width <= 0 || c.Device.Height <= 0 || c.Device.Width%2 != 0 || c.Device.Height%2 != 0 {
		return fmt.Errorf("device: frame size %dx%d must be positive and even", c.Device.Width, c.Device.Height)
	}
	if c.Device.Buffers < MinBuffers {
		return fmt.Errorf("device: buffers must be at least %d, got %d", MinBuffers, c.Device.Buffers)
	}
	if c.Device.Input < 0 {
		return fmt.Errorf("device: input %d is negative", c.Device.Input)
	}
	if c.Device.RoundRobinSkip < 0 {
		return fmt.Errorf("device: roundrobin_skip %d is negative", c.Device.RoundRobinSkip)
	}
	for name, v := range map[string]int{
		"brightness": c.Picture.Brightness,
		"contrast":   c.Picture.Contrast,
		"saturation": c.Picture.Saturation,
		"hue":        c.Picture.Hue,
	} {
		if v < 0 || v > 255 {
			return fmt.Errorf("picture: %s %d outside 0..255", name, v)
		}
	}
	return nil
}

// Settings converts the configuration into session settings.
func (c *Config) Settings() Settings {
	return Settings{
		Width:  c.Device.Width,
		Height: c.Device.Height,
		Input: InputParams{
			Index:       c.Device.Input,
			Norm:        c.Device.Norm,
			Frequency:   c.Device.Frequency,
			TunerNumber: c.Device.TunerNumber,
		},
		Picture: PictureSettings{
			Brightness: c.Picture.Brightness,
			Contrast:   c.Picture.Contrast,
			Saturation: c.Picture.Saturation,
			Hue:        c.Picture.Hue,
			AutoBright: c.Picture.AutoBright,
		},
		RoundRobinSkip: c.Device.RoundRobinSkip,
	}
}
