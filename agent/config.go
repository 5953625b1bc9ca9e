package agent

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DeviceID string       `yaml:"device_id"`
	Serial   SerialConfig `yaml:"serial"`
	MQTT     MQTTConfig   `yaml:"mqtt"`
	Status   StatusConfig `yaml:"status"`

	// Motors holds settings pushed to the board once at startup.
	Motors [2]MotorConfig `yaml:"motors"`
}

type SerialConfig struct {
	Device    string `yaml:"device"`
	Baud      int    `yaml:"baud"`
	TimeoutMs int    `yaml:"timeout_ms"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"` // e.g. tcp://host:1883
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type StatusConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

type MotorConfig struct {
	MaxSpeed uint16 `yaml:"max_speed"`
	Accel    uint16 `yaml:"accel"`
	Config   uint16 `yaml:"config"`
}

// Load reads and validates a config file, applying defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial.Baud == 0 {
		c.Serial.Baud = 115200
	}
	if c.Serial.TimeoutMs == 0 {
		c.Serial.TimeoutMs = 200
	}
	if c.Status.IntervalMs == 0 {
		c.Status.IntervalMs = 1000
	}
}

// Validate checks declarative correctness only; it must not mutate.
func (c *Config) Validate() error {
	if c.DeviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if c.Serial.Device == "" {
		return fmt.Errorf("serial.device is required")
	}
	if c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required")
	}
	if c.Status.IntervalMs < 0 {
		return fmt.Errorf("status.interval_ms must be positive")
	}
	return nil
}

func (c *Config) SerialTimeout() time.Duration {
	return time.Duration(c.Serial.TimeoutMs) * time.Millisecond
}

func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Status.IntervalMs) * time.Millisecond
}
