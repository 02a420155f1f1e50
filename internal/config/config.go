package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/halverson/satcom-planner/internal/mission"
)

// Config represents the main application configuration structure
// containing all configuration sections
type Config struct {
	Server      ServerConfig      `toml:"server"`       // HTTP server settings
	Logging     LoggingConfig     `toml:"logging"`      // Application logging settings
	Storage     StorageConfig     `toml:"storage"`      // Data persistence settings
	Satcom      SatcomConfig      `toml:"satcom"`       // Satellite catalog and pointing constraints
	Coverage    CoverageConfig    `toml:"coverage"`     // Ka constellation coverage dataset settings
	FlightState FlightStateConfig `toml:"flight_state"` // Flight phase detection settings
	ETA         ETAConfig         `toml:"eta"`          // POI ETA calculation settings
	Telemetry   TelemetryConfig   `toml:"telemetry"`    // Aircraft telemetry source settings
	Simulation  SimulationConfig  `toml:"simulation"`   // Synthetic telemetry settings for ground testing
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port               int      `toml:"port"`                  // Primary HTTP port for the server
	Host               string   `toml:"host"`                  // Host address to bind to (e.g., 127.0.0.1 for localhost only, 0.0.0.0 for all interfaces)
	CORSAllowedOrigins []string `toml:"cors_allowed_origins"`  // List of origins allowed for CORS requests (use ["*"] for all origins)
	ReadTimeoutSecs    int      `toml:"read_timeout_seconds"`  // Maximum duration for reading the entire request (0 = no timeout)
	WriteTimeoutSecs   int      `toml:"write_timeout_seconds"` // Maximum duration for writing the response (0 = no timeout)
	IdleTimeoutSecs    int      `toml:"idle_timeout_seconds"`  // Maximum duration to wait for the next request when keep-alives are enabled
	AdditionalPorts    []int    `toml:"additional_ports"`      // Additional HTTP ports to listen on (useful for multiple interfaces)
}

// LoggingConfig contains application logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`  // Log level: "debug", "info", "warn", or "error"
	Format string `toml:"format"` // Log format: "json" (structured) or "console" (human-readable)
}

// StorageConfig contains data persistence configuration
type StorageConfig struct {
	Type       string `toml:"type"`        // Storage backend type (currently only "sqlite" is supported)
	SQLitePath string `toml:"sqlite_path"` // Path to the SQLite database file
}

// SatelliteConfig describes one geostationary X-band satellite
type SatelliteConfig struct {
	ID           string  `toml:"id"`            // Satellite identifier referenced by mission configs
	LongitudeDeg float64 `toml:"longitude_deg"` // Sub-satellite longitude in decimal degrees (-180..180)
}

// SatcomConfig contains the satellite catalog and antenna pointing constraints
type SatcomConfig struct {
	Satellites []SatelliteConfig `toml:"satellites"` // Geostationary X-band satellite catalog

	MinElevationDeg float64 `toml:"min_elevation_deg"` // Elevation floor below which the X link is unusable

	NormalAzimuthMin float64 `toml:"normal_azimuth_min"` // Normal flight exclusion arc start, degrees relative to heading
	NormalAzimuthMax float64 `toml:"normal_azimuth_max"` // Normal flight exclusion arc end
	RefuelAzimuthMin float64 `toml:"refuel_azimuth_min"` // Refueling exclusion arc start (wraps through 0 when min > max)
	RefuelAzimuthMax float64 `toml:"refuel_azimuth_max"` // Refueling exclusion arc end
	AftAzimuthMin    float64 `toml:"aft_azimuth_min"`    // Shared X/Ku aft antenna sector start
	AftAzimuthMax    float64 `toml:"aft_azimuth_max"`    // Shared X/Ku aft antenna sector end

	TakeoffBufferMins    int `toml:"takeoff_buffer_minutes"`    // Safety buffer around departure (default: 10)
	LandingBufferMins    int `toml:"landing_buffer_minutes"`    // Safety buffer around arrival (default: 10)
	TransitionWindowMins int `toml:"transition_window_minutes"` // Half-width of degrade window around satellite switches (default: 5)

	SampleIntervalSecs int `toml:"sample_interval_seconds"` // Route sampling cadence for the build sweep (default: 60)
}

// CoverageConfig contains the Ka constellation coverage dataset configuration
type CoverageConfig struct {
	GeoJSONPath string `toml:"geojson_path"` // Path to the coverage footprint GeoJSON file
}

// FlightStateConfig contains flight phase detection configuration
type FlightStateConfig struct {
	DepartureSpeedKts       float64 `toml:"departure_speed_kts"`        // Ground speed threshold for departure detection (default: 50)
	DeparturePersistenceSec int     `toml:"departure_persistence_secs"` // Seconds the speed must persist above threshold (default: 10)
	ArrivalRadiusM          float64 `toml:"arrival_radius_m"`           // Distance to destination for arrival detection (default: 100)
	ArrivalDwellSec         int     `toml:"arrival_dwell_secs"`         // Seconds the aircraft must dwell inside the radius (default: 60)
}

// ETAConfig contains POI ETA calculation configuration
type ETAConfig struct {
	DefaultSpeedKts      float64 `toml:"default_speed_kts"`      // Fallback ground speed when no live or planned speed exists (default: 450)
	PassedThresholdM     float64 `toml:"passed_threshold_m"`     // POIs inside this radius are marked passed (default: 500)
	ProjectionToleranceM float64 `toml:"projection_tolerance_m"` // Max distance from a projection to the route (default: 1000)
}

// TelemetryConfig contains aircraft telemetry source configuration
type TelemetryConfig struct {
	SourceURL         string `toml:"source_url"`             // URL of the aircraft telemetry JSON endpoint
	FetchIntervalSecs int    `toml:"fetch_interval_seconds"` // How often to poll the telemetry endpoint (default: 5)
	TimeoutSecs       int    `toml:"timeout_seconds"`        // HTTP timeout for telemetry requests (default: 10)
}

// SimulationConfig contains synthetic telemetry configuration for ground testing
type SimulationConfig struct {
	Enabled        bool    `toml:"enabled"`          // Replay the active route as synthetic telemetry instead of polling
	SpeedKts       float64 `toml:"speed_kts"`        // Simulated ground speed (default: 450)
	TickSecs       int     `toml:"tick_seconds"`     // Simulation tick interval (default: 1)
	TimeFactor     float64 `toml:"time_factor"`      // Simulated-seconds per wall-second (default: 1.0)
	StartFromStart bool    `toml:"start_from_start"` // Restart the route from its first point on activation
}

// Load loads the configuration from the specified file path
func Load(path string) (*Config, error) {
	var config Config

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	return &config, nil
}

// LoadWithFallback loads the configuration by checking multiple locations in order of preference
func LoadWithFallback(preferredPath string) (*Config, error) {
	searchPaths := []string{
		preferredPath,         // User-specified path (if provided)
		"configs/config.toml", // configs/ folder
		"config.toml",         // Root directory
	}

	uniquePaths := make([]string, 0, len(searchPaths))
	seen := make(map[string]bool)
	for _, path := range searchPaths {
		if path != "" && !seen[path] {
			uniquePaths = append(uniquePaths, path)
			seen[path] = true
		}
	}

	var lastErr error
	for _, path := range uniquePaths {
		if _, err := os.Stat(path); err == nil {
			config, err := Load(path)
			if err != nil {
				lastErr = fmt.Errorf("failed to load config from %s: %w", path, err)
				continue
			}
			return config, nil
		}
		lastErr = fmt.Errorf("config file not found: %s", path)
	}

	return nil, fmt.Errorf("config file not found in any of the expected locations: %v. Last error: %w", uniquePaths, lastErr)
}

// Validate validates the configuration and fills defaults
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	portsSeen := map[int]bool{c.Server.Port: true}
	for _, p := range c.Server.AdditionalPorts {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid additional server port: %d", p)
		}
		if portsSeen[p] {
			return fmt.Errorf("duplicate port configured: %d (primary or additional)", p)
		}
		portsSeen[p] = true
	}

	// Validate logging config
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	// Validate storage config
	if c.Storage.Type != "sqlite" {
		return fmt.Errorf("invalid storage type: %s (only 'sqlite' is supported)", c.Storage.Type)
	}
	if c.Storage.SQLitePath == "" {
		return fmt.Errorf("sqlite_path is required when storage type is sqlite")
	}

	if err := c.ValidateSatcom(); err != nil {
		return err
	}
	if err := c.ValidateFlightState(); err != nil {
		return err
	}
	if err := c.ValidateTelemetry(); err != nil {
		return err
	}

	// ETA defaults
	if c.ETA.DefaultSpeedKts == 0 {
		c.ETA.DefaultSpeedKts = 450
	}
	if c.ETA.PassedThresholdM == 0 {
		c.ETA.PassedThresholdM = 500
	}
	if c.ETA.ProjectionToleranceM == 0 {
		c.ETA.ProjectionToleranceM = 1000
	}
	if c.ETA.DefaultSpeedKts < 0 || c.ETA.PassedThresholdM < 0 || c.ETA.ProjectionToleranceM < 0 {
		return fmt.Errorf("eta thresholds must be non-negative")
	}

	// Simulation defaults
	if c.Simulation.SpeedKts == 0 {
		c.Simulation.SpeedKts = 450
	}
	if c.Simulation.TickSecs == 0 {
		c.Simulation.TickSecs = 1
	}
	if c.Simulation.TimeFactor == 0 {
		c.Simulation.TimeFactor = 1.0
	}
	if c.Simulation.TickSecs < 0 || c.Simulation.SpeedKts < 0 || c.Simulation.TimeFactor < 0 {
		return fmt.Errorf("simulation settings must be non-negative")
	}

	return nil
}

// ValidateSatcom validates the satellite catalog and pointing constraints
func (c *Config) ValidateSatcom() error {
	if len(c.Satcom.Satellites) == 0 {
		return fmt.Errorf("at least one satellite is required in [satcom] satellites")
	}
	idMap := make(map[string]bool)
	for i, sat := range c.Satcom.Satellites {
		if sat.ID == "" {
			return fmt.Errorf("satellite #%d: id is required", i+1)
		}
		if idMap[sat.ID] {
			return fmt.Errorf("satellite #%d: duplicate id: %s", i+1, sat.ID)
		}
		idMap[sat.ID] = true
		if sat.LongitudeDeg < -180 || sat.LongitudeDeg > 180 {
			return fmt.Errorf("satellite %s: invalid longitude: %f", sat.ID, sat.LongitudeDeg)
		}
	}

	if c.Satcom.MinElevationDeg == 0 {
		c.Satcom.MinElevationDeg = 5
	}
	if c.Satcom.MinElevationDeg < 0 || c.Satcom.MinElevationDeg >= 90 {
		return fmt.Errorf("min_elevation_deg out of range: %f", c.Satcom.MinElevationDeg)
	}

	for _, az := range []struct {
		name string
		v    float64
	}{
		{"normal_azimuth_min", c.Satcom.NormalAzimuthMin},
		{"normal_azimuth_max", c.Satcom.NormalAzimuthMax},
		{"refuel_azimuth_min", c.Satcom.RefuelAzimuthMin},
		{"refuel_azimuth_max", c.Satcom.RefuelAzimuthMax},
		{"aft_azimuth_min", c.Satcom.AftAzimuthMin},
		{"aft_azimuth_max", c.Satcom.AftAzimuthMax},
	} {
		if az.v < 0 || az.v >= 360 {
			return fmt.Errorf("%s out of range: %f", az.name, az.v)
		}
	}

	if c.Satcom.TakeoffBufferMins == 0 {
		c.Satcom.TakeoffBufferMins = 10
	}
	if c.Satcom.LandingBufferMins == 0 {
		c.Satcom.LandingBufferMins = 10
	}
	if c.Satcom.TransitionWindowMins == 0 {
		c.Satcom.TransitionWindowMins = 5
	}
	if c.Satcom.SampleIntervalSecs == 0 {
		c.Satcom.SampleIntervalSecs = 60
	}
	if c.Satcom.TakeoffBufferMins < 0 || c.Satcom.LandingBufferMins < 0 ||
		c.Satcom.TransitionWindowMins < 0 || c.Satcom.SampleIntervalSecs <= 0 {
		return fmt.Errorf("satcom buffer and interval settings must be positive")
	}

	return nil
}

// ValidateFlightState validates the flight phase detection configuration
func (c *Config) ValidateFlightState() error {
	if c.FlightState.DepartureSpeedKts == 0 {
		c.FlightState.DepartureSpeedKts = 50
	}
	if c.FlightState.DeparturePersistenceSec == 0 {
		c.FlightState.DeparturePersistenceSec = 10
	}
	if c.FlightState.ArrivalRadiusM == 0 {
		c.FlightState.ArrivalRadiusM = 100
	}
	if c.FlightState.ArrivalDwellSec == 0 {
		c.FlightState.ArrivalDwellSec = 60
	}

	if c.FlightState.DepartureSpeedKts < 0 {
		return fmt.Errorf("departure_speed_kts must be non-negative: %f", c.FlightState.DepartureSpeedKts)
	}
	if c.FlightState.DeparturePersistenceSec < 0 {
		return fmt.Errorf("departure_persistence_secs must be non-negative: %d", c.FlightState.DeparturePersistenceSec)
	}
	if c.FlightState.ArrivalRadiusM < 0 {
		return fmt.Errorf("arrival_radius_m must be non-negative: %f", c.FlightState.ArrivalRadiusM)
	}
	if c.FlightState.ArrivalDwellSec < 0 {
		return fmt.Errorf("arrival_dwell_secs must be non-negative: %d", c.FlightState.ArrivalDwellSec)
	}
	return nil
}

// ValidateTelemetry validates the telemetry source configuration
func (c *Config) ValidateTelemetry() error {
	if c.Telemetry.FetchIntervalSecs == 0 {
		c.Telemetry.FetchIntervalSecs = 5
	}
	if c.Telemetry.TimeoutSecs == 0 {
		c.Telemetry.TimeoutSecs = 10
	}
	if c.Telemetry.FetchIntervalSecs < 0 || c.Telemetry.TimeoutSecs < 0 {
		return fmt.Errorf("telemetry intervals must be non-negative")
	}
	// source_url may be empty when simulation is enabled
	if !c.Simulation.Enabled && c.Telemetry.SourceURL == "" {
		return fmt.Errorf("telemetry source_url is required when simulation is disabled")
	}
	return nil
}

// Catalog is the config-backed satellite catalog used by mission builds.
type Catalog map[string]float64

// Longitude resolves a satellite id to its sub-satellite longitude.
func (c Catalog) Longitude(id string) (float64, bool) {
	lon, ok := c[id]
	return lon, ok
}

// Catalog builds the satellite lookup from the configured list.
func (s SatcomConfig) Catalog() Catalog {
	catalog := make(Catalog, len(s.Satellites))
	for _, sat := range s.Satellites {
		catalog[sat.ID] = sat.LongitudeDeg
	}
	return catalog
}

// Constraints converts the satcom section into the per-build constraint set.
func (s SatcomConfig) Constraints() mission.ConstraintConfig {
	return mission.ConstraintConfig{
		MinElevationDeg:  s.MinElevationDeg,
		NormalAzimuthMin: s.NormalAzimuthMin,
		NormalAzimuthMax: s.NormalAzimuthMax,
		RefuelAzimuthMin: s.RefuelAzimuthMin,
		RefuelAzimuthMax: s.RefuelAzimuthMax,
		AftAzimuthMin:    s.AftAzimuthMin,
		AftAzimuthMax:    s.AftAzimuthMax,
		TakeoffBuffer:    time.Duration(s.TakeoffBufferMins) * time.Minute,
		LandingBuffer:    time.Duration(s.LandingBufferMins) * time.Minute,
		TransitionWindow: time.Duration(s.TransitionWindowMins) * time.Minute,
	}
}

// SampleInterval returns the configured sweep cadence.
func (s SatcomConfig) SampleInterval() time.Duration {
	return time.Duration(s.SampleIntervalSecs) * time.Second
}
