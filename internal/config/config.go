// Package config loads simulator configuration from defaults, an optional
// file and ORBITSIM_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/orbitlink-sim/core"
	"github.com/signalsfoundry/orbitlink-sim/model"
)

// Control ranges for the runtime-adjustable scalars.
const (
	MinSpeed       = 0.0
	MaxSpeed       = 5.0
	MinOrbitRadius = 1.8
	MaxOrbitRadius = 5.0
)

// SatelliteConfig describes one satellite. Angles are in radians.
type SatelliteConfig struct {
	ID          string   `mapstructure:"id"`
	Name        string   `mapstructure:"name"`
	Mode        string   `mapstructure:"mode"`
	Phase       float64  `mapstructure:"phase"`
	BaseRate    float64  `mapstructure:"base_rate"`
	Inclination *float64 `mapstructure:"inclination"`
	State       string   `mapstructure:"state"`
}

// StationConfig places a ground station on the planet surface. Latitude and
// longitude are in degrees.
type StationConfig struct {
	ID        string  `mapstructure:"id"`
	Name      string  `mapstructure:"name"`
	Latitude  float64 `mapstructure:"latitude"`
	Longitude float64 `mapstructure:"longitude"`
}

// LogConfig mirrors logging.Config.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TracingConfig mirrors observability.TracingConfig.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	ServiceName string  `mapstructure:"service_name"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Config is the full simulator configuration.
type Config struct {
	Speed       float64 `mapstructure:"speed"`
	OrbitRadius float64 `mapstructure:"orbit_radius"`

	FrameInterval time.Duration `mapstructure:"frame_interval"`
	Duration      time.Duration `mapstructure:"duration"`
	Mode          string        `mapstructure:"mode"` // realtime | accelerated

	PlanetSpinRate   float64 `mapstructure:"planet_spin_rate"`
	HorizonThreshold float64 `mapstructure:"horizon_threshold"`
	ISLMaxDistance   float64 `mapstructure:"isl_max_distance"`
	CoverageWindow   float64 `mapstructure:"coverage_window"`
	PrimarySatellite string  `mapstructure:"primary_satellite"`

	Satellites []SatelliteConfig `mapstructure:"satellites"`
	Stations   []StationConfig   `mapstructure:"stations"`

	HTTPAddr       string        `mapstructure:"http_addr"`
	GRPCAddr       string        `mapstructure:"grpc_addr"`
	BroadcastEvery int           `mapstructure:"broadcast_every"`
	CommandRate    float64       `mapstructure:"command_rate"`
	CommandBurst   int           `mapstructure:"command_burst"`
	LogEvery       time.Duration `mapstructure:"log_every"`

	Log     LogConfig     `mapstructure:"log"`
	Tracing TracingConfig `mapstructure:"tracing"`
}

// DefaultSatellites is the default two-satellite constellation.
func DefaultSatellites() []SatelliteConfig {
	inc := model.DefaultInclination
	return []SatelliteConfig{
		{ID: "sat1", Name: "Sat 1", Mode: "equatorial", Phase: 0.0, BaseRate: 1.0},
		{ID: "sat2", Name: "Sat 2", Mode: "inclined", Phase: 1.0, BaseRate: 0.8, Inclination: &inc},
	}
}

// DefaultStations is the default single equatorial ground station.
func DefaultStations() []StationConfig {
	return []StationConfig{{ID: "gs1", Name: "Ground Station", Latitude: 0, Longitude: 0}}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("speed", 1.0)
	v.SetDefault("orbit_radius", core.DefaultOrbitRadius)
	v.SetDefault("frame_interval", 16*time.Millisecond)
	v.SetDefault("duration", time.Duration(0))
	v.SetDefault("mode", "realtime")

	v.SetDefault("planet_spin_rate", core.PlanetSpinRate)
	v.SetDefault("horizon_threshold", core.DefaultHorizonThreshold)
	v.SetDefault("isl_max_distance", core.DefaultISLMaxDistance)
	v.SetDefault("coverage_window", core.DefaultCoverageWindow)
	v.SetDefault("primary_satellite", "")

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("grpc_addr", ":50051")
	v.SetDefault("broadcast_every", 2)
	v.SetDefault("command_rate", 20.0)
	v.SetDefault("command_burst", 10)
	v.SetDefault("log_every", 5*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "orbitlink-sim")
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 0.01)
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply. Environment variables use the ORBITSIM_
// prefix with "." replaced by "_" (ORBITSIM_LOG_LEVEL, ORBITSIM_SPEED).
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ORBITSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if len(cfg.Satellites) == 0 {
		cfg.Satellites = DefaultSatellites()
	}
	if len(cfg.Stations) == 0 {
		cfg.Stations = DefaultStations()
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and references. All problems are reported together.
func (c Config) Validate() error {
	var errs []error

	if c.Speed < MinSpeed || c.Speed > MaxSpeed {
		errs = append(errs, fmt.Errorf("speed %.2f outside [%.1f, %.1f]", c.Speed, MinSpeed, MaxSpeed))
	}
	if c.OrbitRadius < MinOrbitRadius || c.OrbitRadius > MaxOrbitRadius {
		errs = append(errs, fmt.Errorf("orbit_radius %.2f outside [%.1f, %.1f]", c.OrbitRadius, MinOrbitRadius, MaxOrbitRadius))
	}
	if c.FrameInterval <= 0 {
		errs = append(errs, fmt.Errorf("frame_interval must be positive"))
	}
	if c.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration must not be negative"))
	}
	switch strings.ToLower(c.Mode) {
	case "realtime":
	case "accelerated":
		// Accelerated frames do not wait on a ticker.
		if c.Duration <= 0 {
			errs = append(errs, fmt.Errorf("accelerated mode requires a positive duration"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	if c.ISLMaxDistance <= 0 {
		errs = append(errs, fmt.Errorf("isl_max_distance must be positive"))
	}
	if c.CoverageWindow <= 0 {
		errs = append(errs, fmt.Errorf("coverage_window must be positive"))
	}
	if c.BroadcastEvery < 1 {
		errs = append(errs, fmt.Errorf("broadcast_every must be at least 1"))
	}

	seen := make(map[string]bool, len(c.Satellites))
	for i, s := range c.Satellites {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("satellites[%d]: id is required", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("satellites[%d]: duplicate id %q", i, s.ID))
		}
		seen[s.ID] = true
		if _, err := model.ParseOrbitMode(s.Mode); err != nil {
			errs = append(errs, fmt.Errorf("satellites[%d]: %w", i, err))
		}
		if _, err := model.ParseSatelliteState(s.State); err != nil {
			errs = append(errs, fmt.Errorf("satellites[%d]: %w", i, err))
		}
	}
	if c.PrimarySatellite != "" && !seen[c.PrimarySatellite] {
		errs = append(errs, fmt.Errorf("primary_satellite %q is not a configured satellite", c.PrimarySatellite))
	}

	stations := make(map[string]bool, len(c.Stations))
	for i, st := range c.Stations {
		if st.ID == "" {
			errs = append(errs, fmt.Errorf("stations[%d]: id is required", i))
			continue
		}
		if stations[st.ID] {
			errs = append(errs, fmt.Errorf("stations[%d]: duplicate id %q", i, st.ID))
		}
		stations[st.ID] = true
		if math.Abs(st.Latitude) > 90 {
			errs = append(errs, fmt.Errorf("stations[%d]: latitude %.2f outside [-90, 90]", i, st.Latitude))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SimulationConfig converts c into core parameters.
func (c Config) SimulationConfig() core.Config {
	return core.Config{
		PlanetRadius:     core.PlanetRadius,
		PlanetSpinRate:   c.PlanetSpinRate,
		HorizonThreshold: c.HorizonThreshold,
		ISLMaxDistance:   c.ISLMaxDistance,
		CoverageWindow:   c.CoverageWindow,
		OrbitRadius:      c.OrbitRadius,
		PrimaryID:        c.PrimarySatellite,
	}
}

// SatelliteDefinitions builds model satellites from the config. Inclined
// satellites without an explicit inclination get model.DefaultInclination.
func (c Config) SatelliteDefinitions() ([]*model.SatelliteDefinition, error) {
	out := make([]*model.SatelliteDefinition, 0, len(c.Satellites))
	for _, s := range c.Satellites {
		mode, err := model.ParseOrbitMode(s.Mode)
		if err != nil {
			return nil, fmt.Errorf("satellite %q: %w", s.ID, err)
		}
		state, err := model.ParseSatelliteState(s.State)
		if err != nil {
			return nil, fmt.Errorf("satellite %q: %w", s.ID, err)
		}
		inc := model.DefaultInclination
		if s.Inclination != nil {
			inc = *s.Inclination
		}
		name := s.Name
		if name == "" {
			name = s.ID
		}
		out = append(out, &model.SatelliteDefinition{
			ID:          s.ID,
			Name:        name,
			Mode:        mode,
			Phase:       s.Phase,
			BaseRate:    s.BaseRate,
			Inclination: inc,
			State:       state,
		})
	}
	return out, nil
}

// GroundStations builds model stations on the planet surface.
func (c Config) GroundStations() []*model.GroundStation {
	const deg = math.Pi / 180
	out := make([]*model.GroundStation, 0, len(c.Stations))
	for _, st := range c.Stations {
		name := st.Name
		if name == "" {
			name = st.ID
		}
		out = append(out, &model.GroundStation{
			ID:    st.ID,
			Name:  name,
			Local: core.SurfacePoint(core.PlanetRadius, st.Latitude*deg, st.Longitude*deg).Motion(),
		})
	}
	return out
}

// ClampSpeed limits a requested speed multiplier to the control range.
func ClampSpeed(v float64) float64 {
	return clamp(v, MinSpeed, MaxSpeed)
}

// ClampOrbitRadius limits a requested orbit radius to the control range.
func ClampOrbitRadius(v float64) float64 {
	return clamp(v, MinOrbitRadius, MaxOrbitRadius)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
