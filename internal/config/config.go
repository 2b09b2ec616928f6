// Package config loads the YAML configuration file describing devices, the
// attach policy, and scheduling defaults, following the same
// os.ReadFile+yaml.Unmarshal convention the pack's device-config loaders
// use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lucasdietrich/caniot-controller/internal/caniot"
)

// Config is the top-level shape of the controller's config file.
type Config struct {
	Listen   string         `yaml:"listen"`
	LogLevel string         `yaml:"logLevel"`
	CAN      CANConfig      `yaml:"can"`
	Settings string         `yaml:"settingsPath"`
	Devices  []DeviceConfig `yaml:"devices"`
}

// CANConfig selects the bus backend: a real SocketCAN interface name, or
// the in-process emulator.
type CANConfig struct {
	Interface string `yaml:"interface"` // e.g. "can0"
	Emulator  bool   `yaml:"emulator"`
}

// DeviceConfig is one entry of the attach-policy table: a device id paired
// with the controller kind it should run.
type DeviceConfig struct {
	Class int    `yaml:"class"`
	SubId int    `yaml:"subId"`
	Kind  string `yaml:"kind"`
}

// Did resolves the DeviceConfig's class/sub-id pair into a caniot.DeviceId.
func (d DeviceConfig) Did() (caniot.DeviceId, error) {
	return caniot.NewDeviceId(uint8(d.Class), uint8(d.SubId))
}

// Load reads and parses the YAML config file at path.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Listen == "" {
		c.Listen = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Settings == "" {
		c.Settings = "caniotd.db"
	}
}
