package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the operator tool's configuration. Every field has a
// working default, so a config file is only needed to override the
// standard sensor fit or archive location.
type Config struct {
	Database  string        `yaml:"database"`
	LogLevel  string        `yaml:"logLevel"`
	BatchSize int           `yaml:"batchSize"`
	Sensors   SensorsConfig `yaml:"sensors"`
	Tide      TideConfig    `yaml:"tide"`
	Import    ImportConfig  `yaml:"import"`
}

// SensorRef names one deployed sensor and its autopilot instance.
type SensorRef struct {
	Name     string `yaml:"name"`
	Instance int    `yaml:"instance"`
}

// SensorsConfig maps the vehicle's sensor fit: which deployment each
// recording directory belongs to and which autopilot sensor instances
// are ingested from binary logs.
type SensorsConfig struct {
	Video SensorRef `yaml:"video"`
	Image SensorRef `yaml:"image"`
	Sonar SensorRef `yaml:"sonar"`

	ImuInstances  string `yaml:"imuInstances"`
	MagInstances  string `yaml:"magInstances"`
	BaroInstances string `yaml:"baroInstances"`
}

// TideConfig names the reference tide gauge and the timezone its
// tables are published in.
type TideConfig struct {
	Port     string `yaml:"port"`
	Timezone string `yaml:"timezone"`
}

// ImportConfig tunes the session importer.
type ImportConfig struct {
	Workers int `yaml:"workers"`
}

// DefaultConfig returns the standard vehicle and archive setup.
func DefaultConfig() *Config {
	return &Config{
		Database:  "survey.db",
		LogLevel:  "info",
		BatchSize: 500,
		Sensors: SensorsConfig{
			Video: SensorRef{Name: "BR_LowLightCamera", Instance: 0},
			Image: SensorRef{Name: "Panasonic_BGH1", Instance: 1},
			Sonar: SensorRef{Name: "SonoptixECHO", Instance: 0},

			ImuInstances:  "0",
			MagInstances:  "0,1",
			BaroInstances: "1",
		},
		Tide: TideConfig{
			Port:     "funchal",
			Timezone: "Atlantic/Azores",
		},
		Import: ImportConfig{
			Workers: 8,
		},
	}
}

// LoadConfig reads the YAML configuration file over the defaults. An
// empty path returns the defaults unchanged.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return config, nil
}
