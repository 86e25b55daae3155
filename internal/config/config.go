package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultDriver      = "simulated"
	DefaultDataDir     = ".posetrack"
	DefaultStatus      = "tui"
	DefaultWarmup      = time.Second
	DefaultCapacity    = 1 << 16
	DefaultRefreshRate = 30
	DefaultPreset      = "standard"

	DefaultMQTTBroker      = "tcp://localhost:1883"
	DefaultMQTTClientID    = "posetrack-recorder"
	DefaultMQTTTopicPrefix = "posetrack"
	DefaultMQTTTimeout     = 5 * time.Second
	DefaultMQTTStaleness   = 250 * time.Millisecond
)

type Config struct {
	Output    string          `yaml:"output"`
	Devices   []int           `yaml:"devices"`
	Driver    string          `yaml:"driver"`
	DataDir   string          `yaml:"data_dir"`
	Archive   bool            `yaml:"archive"`
	Status    string          `yaml:"status"`
	Capture   CaptureConfig   `yaml:"capture"`
	Simulated SimulatedConfig `yaml:"simulated"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
}

type CaptureConfig struct {
	// TickInterval paces the loop; zero polls as fast as possible.
	TickInterval time.Duration `yaml:"tick_interval"`
	// MaxDuration stops recording automatically; zero waits for a key press.
	MaxDuration time.Duration `yaml:"max_duration"`
	// Warmup is waited after the device runtime opens, before discovery.
	Warmup      time.Duration `yaml:"warmup"`
	Capacity    int           `yaml:"capacity"`
	RefreshRate int           `yaml:"refresh_rate"`
}

type SimulatedConfig struct {
	Preset  string      `yaml:"preset"`
	Devices []SimDevice `yaml:"devices"`
	// Dropout is the probability that a pose query reports invalid.
	Dropout float64 `yaml:"dropout"`
	Seed    int64   `yaml:"seed"`
}

type SimDevice struct {
	ID           int        `yaml:"id"`
	Class        string     `yaml:"class"`
	Name         string     `yaml:"name"`
	Motion       string     `yaml:"motion"`
	Center       [3]float64 `yaml:"center"`
	Radius       float64    `yaml:"radius"`
	Speed        float64    `yaml:"speed"`
	Disconnected bool       `yaml:"disconnected"`
}

type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	Staleness      time.Duration `yaml:"staleness"`
}

func DefaultConfig() *Config {
	return &Config{
		Driver:  DefaultDriver,
		DataDir: DefaultDataDir,
		Archive: true,
		Status:  DefaultStatus,
		Capture: CaptureConfig{
			Warmup:      DefaultWarmup,
			Capacity:    DefaultCapacity,
			RefreshRate: DefaultRefreshRate,
		},
		Simulated: SimulatedConfig{
			Preset: DefaultPreset,
			Seed:   1,
		},
		MQTT: MQTTConfig{
			Broker:         DefaultMQTTBroker,
			ClientID:       DefaultMQTTClientID,
			TopicPrefix:    DefaultMQTTTopicPrefix,
			ConnectTimeout: DefaultMQTTTimeout,
			Staleness:      DefaultMQTTStaleness,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks field ranges. Device ids and the output path are checked
// at session setup, where the discovered devices are known.
func (c *Config) Validate() error {
	switch c.Status {
	case "tui", "plain", "quiet":
	default:
		return fmt.Errorf("status must be tui, plain or quiet, got %q", c.Status)
	}
	if c.Driver == "" {
		return fmt.Errorf("driver is required")
	}
	if c.Capture.TickInterval < 0 {
		return fmt.Errorf("capture.tick_interval must not be negative")
	}
	if c.Capture.MaxDuration < 0 {
		return fmt.Errorf("capture.max_duration must not be negative")
	}
	if c.Capture.Warmup < 0 {
		return fmt.Errorf("capture.warmup must not be negative")
	}
	if c.Capture.Capacity < 0 {
		return fmt.Errorf("capture.capacity must not be negative, got %d", c.Capture.Capacity)
	}
	if c.Capture.RefreshRate <= 0 {
		return fmt.Errorf("capture.refresh_rate must be positive, got %d", c.Capture.RefreshRate)
	}
	if c.Simulated.Dropout < 0 || c.Simulated.Dropout > 1 {
		return fmt.Errorf("simulated.dropout must be within 0-1, got %f", c.Simulated.Dropout)
	}
	if c.Simulated.Preset != "" && len(c.Simulated.Devices) == 0 && GetRig(c.Simulated.Preset) == nil {
		return fmt.Errorf("unknown simulated preset: %s (available: %v)", c.Simulated.Preset, ListRigs())
	}
	return nil
}

// SimulatedDevices returns the explicit device list, or the preset rig.
func (c *Config) SimulatedDevices() []SimDevice {
	if len(c.Simulated.Devices) > 0 {
		return c.Simulated.Devices
	}
	return GetRig(c.Simulated.Preset)
}
