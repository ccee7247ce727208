package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/orbitlink-sim/model"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Speed != 1.0 || cfg.OrbitRadius != 2.5 {
		t.Fatalf("speed/radius = %v/%v, want 1/2.5", cfg.Speed, cfg.OrbitRadius)
	}
	if cfg.FrameInterval != 16*time.Millisecond {
		t.Fatalf("frame_interval = %v, want 16ms", cfg.FrameInterval)
	}
	if len(cfg.Satellites) != 2 || len(cfg.Stations) != 1 {
		t.Fatalf("got %d satellites / %d stations, want 2 / 1", len(cfg.Satellites), len(cfg.Stations))
	}

	sats, err := cfg.SatelliteDefinitions()
	if err != nil {
		t.Fatalf("SatelliteDefinitions: %v", err)
	}
	if sats[1].Mode != model.OrbitInclined || sats[1].Inclination != model.DefaultInclination {
		t.Fatalf("sat2 = %+v, want inclined with default inclination", sats[1])
	}
	if sats[0].BaseRate != 1.0 || sats[1].BaseRate != 0.8 || sats[1].Phase != 1.0 {
		t.Fatalf("unexpected default orbit parameters: %+v %+v", sats[0], sats[1])
	}

	st := cfg.GroundStations()
	if len(st) != 1 || st[0].Local != (model.Motion{X: 1.5}) {
		t.Fatalf("default station = %+v, want local (1.5, 0, 0)", st)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sim.yaml")
	body := `
speed: 2
orbit_radius: 3.5
frame_interval: 20ms
mode: accelerated
duration: 10s
satellites:
  - id: a
    mode: equatorial
    base_rate: 0.5
  - id: b
    mode: inclined
    inclination: 0
    state: degraded
stations:
  - id: north
    latitude: 45
    longitude: 90
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("ORBITSIM_SPEED", "4")
	t.Setenv("ORBITSIM_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Speed != 4 {
		t.Fatalf("speed = %v, want env override 4", cfg.Speed)
	}
	if cfg.OrbitRadius != 3.5 || cfg.FrameInterval != 20*time.Millisecond || cfg.Mode != "accelerated" {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("log.level = %q, want debug", cfg.Log.Level)
	}

	sats, err := cfg.SatelliteDefinitions()
	if err != nil {
		t.Fatalf("SatelliteDefinitions: %v", err)
	}
	if sats[1].Inclination != 0 {
		t.Fatalf("explicit zero inclination replaced by %v", sats[1].Inclination)
	}
	if sats[1].State != model.StateDegraded {
		t.Fatalf("sat b state = %v, want DEGRADED", sats[1].State)
	}
	if sats[0].Name != "a" {
		t.Fatalf("missing name should default to id, got %q", sats[0].Name)
	}
}

func TestValidateAcceleratedNeedsDuration(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Mode = "accelerated"
	cfg.Duration = 0
	err = cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "accelerated mode requires a positive duration") {
		t.Fatalf("Validate() = %v, want accelerated duration error", err)
	}

	cfg.Duration = time.Minute
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() with duration = %v, want nil", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.Speed = 9
	cfg.OrbitRadius = 1
	cfg.Mode = "warp"
	cfg.PrimarySatellite = "ghost"
	cfg.Satellites = append(cfg.Satellites, SatelliteConfig{ID: "sat1", Mode: "polar"})

	err = cfg.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"speed", "orbit_radius", "mode", "ghost", "duplicate id", "polar"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("validation error %q does not mention %q", err, want)
		}
	}
}

func TestClamp(t *testing.T) {
	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{"speed below", ClampSpeed(-1), 0},
		{"speed above", ClampSpeed(7), 5},
		{"speed inside", ClampSpeed(2.5), 2.5},
		{"radius below", ClampOrbitRadius(1), 1.8},
		{"radius above", ClampOrbitRadius(9), 5},
		{"radius inside", ClampOrbitRadius(3), 3},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Fatalf("%s: got %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}
