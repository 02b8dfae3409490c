package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Database != "survey.db" {
		t.Errorf("Database = %q, want survey.db", config.Database)
	}
	if config.Sensors.MagInstances != "0,1" {
		t.Errorf("MagInstances = %q, want 0,1", config.Sensors.MagInstances)
	}
	if config.Tide.Timezone != "Atlantic/Azores" {
		t.Errorf("Timezone = %q, want Atlantic/Azores", config.Tide.Timezone)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "surveyctl.yaml")
	content := `database: /archive/madeira.db
logLevel: debug
sensors:
  video:
    name: CustomCam
    instance: 2
tide:
  port: ponta-delgada
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config fixture: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.Database != "/archive/madeira.db" {
		t.Errorf("Database = %q", config.Database)
	}
	if config.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", config.LogLevel)
	}
	if config.Sensors.Video.Name != "CustomCam" || config.Sensors.Video.Instance != 2 {
		t.Errorf("Video sensor = %+v", config.Sensors.Video)
	}
	// Untouched sections keep their defaults.
	if config.Sensors.Sonar.Name != "SonoptixECHO" {
		t.Errorf("Sonar sensor = %+v", config.Sensors.Sonar)
	}
	if config.Tide.Port != "ponta-delgada" {
		t.Errorf("Tide port = %q", config.Tide.Port)
	}
	if config.Tide.Timezone != "Atlantic/Azores" {
		t.Errorf("Tide timezone = %q", config.Tide.Timezone)
	}
}
