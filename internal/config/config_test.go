package config

import (
	"testing"
)

func validConfig() *Config {
	return &Config{
		Server:  ServerConfig{Port: 8080, Host: "127.0.0.1"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
		Storage: StorageConfig{Type: "sqlite", SQLitePath: "data/test.db"},
		Satcom: SatcomConfig{
			Satellites: []SatelliteConfig{
				{ID: "XSAT-9", LongitudeDeg: -101},
				{ID: "XSAT-12", LongitudeDeg: -14.5},
			},
			NormalAzimuthMin: 160,
			NormalAzimuthMax: 200,
			RefuelAzimuthMin: 315,
			RefuelAzimuthMax: 45,
			AftAzimuthMin:    160,
			AftAzimuthMax:    200,
		},
		Telemetry: TelemetryConfig{SourceURL: "http://localhost:8090/t.json"},
	}
}

func TestValidateFillsDefaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() = %v, want nil", err)
	}

	if cfg.Satcom.MinElevationDeg != 5 {
		t.Errorf("MinElevationDeg = %v, want 5", cfg.Satcom.MinElevationDeg)
	}
	if cfg.Satcom.TakeoffBufferMins != 10 || cfg.Satcom.LandingBufferMins != 10 {
		t.Errorf("buffers = %d/%d, want 10/10", cfg.Satcom.TakeoffBufferMins, cfg.Satcom.LandingBufferMins)
	}
	if cfg.Satcom.TransitionWindowMins != 5 {
		t.Errorf("TransitionWindowMins = %d, want 5", cfg.Satcom.TransitionWindowMins)
	}
	if cfg.Satcom.SampleIntervalSecs != 60 {
		t.Errorf("SampleIntervalSecs = %d, want 60", cfg.Satcom.SampleIntervalSecs)
	}
	if cfg.FlightState.DepartureSpeedKts != 50 || cfg.FlightState.ArrivalDwellSec != 60 {
		t.Errorf("flight state defaults = %v/%d, want 50/60",
			cfg.FlightState.DepartureSpeedKts, cfg.FlightState.ArrivalDwellSec)
	}
	if cfg.ETA.DefaultSpeedKts != 450 {
		t.Errorf("ETA default speed = %v, want 450", cfg.ETA.DefaultSpeedKts)
	}
}

func TestValidateRejectsDuplicateSatellites(t *testing.T) {
	cfg := validConfig()
	cfg.Satcom.Satellites = append(cfg.Satcom.Satellites, SatelliteConfig{ID: "XSAT-9", LongitudeDeg: 52})
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for duplicate satellite id")
	}
}

func TestValidateRejectsDuplicatePorts(t *testing.T) {
	cfg := validConfig()
	cfg.Server.AdditionalPorts = []int{8080}
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for duplicate port")
	}
}

func TestValidateRequiresTelemetryURLWithoutSimulation(t *testing.T) {
	cfg := validConfig()
	cfg.Telemetry.SourceURL = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() = nil, want error for missing source_url")
	}

	cfg.Simulation.Enabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with simulation = %v, want nil", err)
	}
}

func TestCatalogResolvesLongitudes(t *testing.T) {
	catalog := validConfig().Satcom.Catalog()

	lon, ok := catalog.Longitude("XSAT-12")
	if !ok || lon != -14.5 {
		t.Errorf("Longitude(XSAT-12) = %v, %v, want -14.5, true", lon, ok)
	}
	if _, ok := catalog.Longitude("UNKNOWN"); ok {
		t.Error("Longitude(UNKNOWN) = true, want false")
	}
}
