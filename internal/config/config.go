// Package config loads the windsim configuration from defaults, an optional
// YAML file and WINDFIELD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/talgya/windfield/internal/curve"
	"github.com/talgya/windfield/internal/engine"
	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/gust"
	"github.com/talgya/windfield/internal/physics"
	"github.com/talgya/windfield/internal/scene"
	"github.com/talgya/windfield/internal/tracker"
	"github.com/talgya/windfield/internal/wind"
	"github.com/talgya/windfield/internal/zone"
)

// EnvPrefix prefixes every environment override, e.g. WINDFIELD_API_ADDR.
const EnvPrefix = "WINDFIELD"

// Config holds the entire application configuration.
type Config struct {
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Sim     SimConfig     `mapstructure:"sim" yaml:"sim"`
	Wind    WindConfig    `mapstructure:"wind" yaml:"wind"`
	Tracker TrackerConfig `mapstructure:"tracker" yaml:"tracker"`
	Zone    ZoneConfig    `mapstructure:"zone" yaml:"zone"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Weather WeatherConfig `mapstructure:"weather" yaml:"weather"`
}

// LoggingConfig selects the slog handler and the optional rotating file.
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level"`
	Format     string `mapstructure:"format" yaml:"format"` // text or json
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress" yaml:"compress"`
}

// SimConfig controls the stepping loop and the demo scene.
type SimConfig struct {
	Step  float64       `mapstructure:"step" yaml:"step"`
	Pace  time.Duration `mapstructure:"pace" yaml:"pace"`
	Speed float64       `mapstructure:"speed" yaml:"speed"`
	// Bodies scattered through Area at startup.
	Bodies     int        `mapstructure:"bodies" yaml:"bodies"`
	Area       Vec3Config `mapstructure:"area" yaml:"area"`
	SceneSeed  int64      `mapstructure:"scene_seed" yaml:"scene_seed"`
	TraceSteps int        `mapstructure:"trace_steps" yaml:"trace_steps"`
}

// Vec3Config is a vector in YAML form.
type Vec3Config struct {
	X float64 `mapstructure:"x" yaml:"x"`
	Y float64 `mapstructure:"y" yaml:"y"`
	Z float64 `mapstructure:"z" yaml:"z"`
}

// Vec converts to a geom.Vec3.
func (v Vec3Config) Vec() geom.Vec3 { return geom.V(v.X, v.Y, v.Z) }

// KeyConfig is one curve key.
type KeyConfig struct {
	Time       float64 `mapstructure:"time" yaml:"time"`
	Value      float64 `mapstructure:"value" yaml:"value"`
	InTangent  float64 `mapstructure:"in_tangent" yaml:"in_tangent"`
	OutTangent float64 `mapstructure:"out_tangent" yaml:"out_tangent"`
}

// CurveConfig is a curve in YAML form. An empty key list keeps the
// component's default curve.
type CurveConfig struct {
	Mode string      `mapstructure:"mode" yaml:"mode"`
	Keys []KeyConfig `mapstructure:"keys" yaml:"keys"`
}

// Curve returns the configured curve, or def when no keys are set.
func (c CurveConfig) Curve(def curve.Curve) curve.Curve {
	if len(c.Keys) == 0 {
		return def
	}
	keys := make([]curve.Key, len(c.Keys))
	for i, k := range c.Keys {
		keys[i] = curve.Key{Time: k.Time, Value: k.Value, InTangent: k.InTangent, OutTangent: k.OutTangent}
	}
	return curve.New(curve.ParseMode(c.Mode), keys...)
}

// WindConfig mirrors wind.Config.
type WindConfig struct {
	Seed         int64            `mapstructure:"seed" yaml:"seed"`
	Heading      Vec3Config       `mapstructure:"heading" yaml:"heading"`
	Magnitude    float64          `mapstructure:"magnitude" yaml:"magnitude"`
	MinMagnitude float64          `mapstructure:"min_magnitude" yaml:"min_magnitude"`
	MaxMagnitude float64          `mapstructure:"max_magnitude" yaml:"max_magnitude"`
	DayCycle     DayCycleConfig   `mapstructure:"day_cycle" yaml:"day_cycle"`
	Turbulence   TurbulenceConfig `mapstructure:"turbulence" yaml:"turbulence"`
	Gust         GustConfig       `mapstructure:"gust" yaml:"gust"`
}

type DayCycleConfig struct {
	Enabled      bool        `mapstructure:"enabled" yaml:"enabled"`
	Length       float64     `mapstructure:"length" yaml:"length"`
	ForceOverDay CurveConfig `mapstructure:"force_over_day" yaml:"force_over_day"`
	YawOverDay   CurveConfig `mapstructure:"yaw_over_day" yaml:"yaw_over_day"`
}

type TurbulenceConfig struct {
	Enabled   bool    `mapstructure:"enabled" yaml:"enabled"`
	Intensity float64 `mapstructure:"intensity" yaml:"intensity"`
	Scale     float64 `mapstructure:"scale" yaml:"scale"`
	Octaves   int     `mapstructure:"octaves" yaml:"octaves"`
}

type GustConfig struct {
	Enabled   bool        `mapstructure:"enabled" yaml:"enabled"`
	Intensity float64     `mapstructure:"intensity" yaml:"intensity"`
	Frequency float64     `mapstructure:"frequency" yaml:"frequency"`
	Duration  float64     `mapstructure:"duration" yaml:"duration"`
	Envelope  CurveConfig `mapstructure:"envelope" yaml:"envelope"`
}

// VolumeConfig describes a box (center + half extents) or a sphere
// (center + radius). Kinds other than "box" and "sphere" yield no volume.
type VolumeConfig struct {
	Kind    string     `mapstructure:"kind" yaml:"kind"`
	Name    string     `mapstructure:"name" yaml:"name"`
	Center  Vec3Config `mapstructure:"center" yaml:"center"`
	Extents Vec3Config `mapstructure:"extents" yaml:"extents"`
	Radius  float64    `mapstructure:"radius" yaml:"radius"`
}

// Volume converts to a scene volume, or nil for an unknown kind.
func (v VolumeConfig) Volume() physics.Volume {
	switch strings.ToLower(strings.TrimSpace(v.Kind)) {
	case "box":
		return scene.Box{Label: v.Name, Bounds: geom.Bounds{Center: v.Center.Vec(), Extents: v.Extents.Vec()}}
	case "sphere":
		return scene.Sphere{Label: v.Name, Center: v.Center.Vec(), Radius: v.Radius}
	}
	return nil
}

// TrackerConfig mirrors tracker.Config.
type TrackerConfig struct {
	Mode           string       `mapstructure:"mode" yaml:"mode"`
	RescanInterval float64      `mapstructure:"rescan_interval" yaml:"rescan_interval"`
	Layers         []int        `mapstructure:"layers" yaml:"layers"` // empty = all
	AreaLimited    bool         `mapstructure:"area_limited" yaml:"area_limited"`
	Area           VolumeConfig `mapstructure:"area" yaml:"area"`
	UseFalloff     bool         `mapstructure:"use_falloff" yaml:"use_falloff"`
	ForceMode      string       `mapstructure:"force_mode" yaml:"force_mode"`
}

// ZoneConfig mirrors zone.Config plus its volumes.
type ZoneConfig struct {
	Name             string         `mapstructure:"name" yaml:"name"`
	Strength         float64        `mapstructure:"strength" yaml:"strength"`
	UseFalloff       bool           `mapstructure:"use_falloff" yaml:"use_falloff"`
	Falloff          CurveConfig    `mapstructure:"falloff" yaml:"falloff"`
	Layers           []int          `mapstructure:"layers" yaml:"layers"`
	RequiredTag      string         `mapstructure:"required_tag" yaml:"required_tag"`
	ExcludeKinematic bool           `mapstructure:"exclude_kinematic" yaml:"exclude_kinematic"`
	TrackEvents      bool           `mapstructure:"track_events" yaml:"track_events"`
	Volumes          []VolumeConfig `mapstructure:"volumes" yaml:"volumes"`
}

// StoreConfig controls the sqlite sample log. An empty Path disables it.
type StoreConfig struct {
	Path        string `mapstructure:"path" yaml:"path"`
	SampleEvery int    `mapstructure:"sample_every" yaml:"sample_every"`
	Resume      bool   `mapstructure:"resume" yaml:"resume"`
}

// APIConfig controls the HTTP API. An empty Addr disables it.
type APIConfig struct {
	Addr          string   `mapstructure:"addr" yaml:"addr"`
	AdminKey      string   `mapstructure:"admin_key" yaml:"admin_key"`
	CORSOrigins   []string `mapstructure:"cors_origins" yaml:"cors_origins"`
	GustPerMinute int      `mapstructure:"gust_per_minute" yaml:"gust_per_minute"`
	// TrustProxy keys rate limits by X-Forwarded-For. Enable only behind
	// a reverse proxy that sets it.
	TrustProxy bool `mapstructure:"trust_proxy" yaml:"trust_proxy"`
}

// WeatherConfig enables the live wind seed when APIKey is set.
type WeatherConfig struct {
	APIKey     string  `mapstructure:"api_key" yaml:"api_key"`
	Location   string  `mapstructure:"location" yaml:"location"`
	ForcePerMS float64 `mapstructure:"force_per_ms" yaml:"force_per_ms"`
}

// Load reads defaults, then the file at path (or ./windfield.yaml when path
// is empty and the file exists), then environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("windfield")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// SetDefaults registers every scalar default. Defaults come from the
// components themselves so the two cannot drift.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 28)
	v.SetDefault("logging.compress", false)

	v.SetDefault("sim.step", engine.DefaultStep)
	v.SetDefault("sim.pace", time.Duration(engine.DefaultStep*float64(time.Second)))
	v.SetDefault("sim.speed", 1.0)
	v.SetDefault("sim.bodies", 200)
	v.SetDefault("sim.area.x", 50.0)
	v.SetDefault("sim.area.y", 10.0)
	v.SetDefault("sim.area.z", 50.0)
	v.SetDefault("sim.scene_seed", 1)
	v.SetDefault("sim.trace_steps", 500)

	w := wind.DefaultConfig()
	v.SetDefault("wind.seed", w.Seed)
	v.SetDefault("wind.heading.x", w.BaseHeading.X)
	v.SetDefault("wind.heading.y", w.BaseHeading.Y)
	v.SetDefault("wind.heading.z", w.BaseHeading.Z)
	v.SetDefault("wind.magnitude", w.BaseMagnitude)
	v.SetDefault("wind.min_magnitude", w.MinMagnitude)
	v.SetDefault("wind.max_magnitude", w.MaxMagnitude)
	v.SetDefault("wind.day_cycle.enabled", w.DayCycle.Enabled)
	v.SetDefault("wind.day_cycle.length", w.DayCycle.Length)
	v.SetDefault("wind.turbulence.enabled", w.Turbulence.Enabled)
	v.SetDefault("wind.turbulence.intensity", w.Turbulence.Intensity)
	v.SetDefault("wind.turbulence.scale", w.Turbulence.Scale)
	v.SetDefault("wind.turbulence.octaves", w.Turbulence.Octaves)
	v.SetDefault("wind.gust.enabled", w.Gust.Enabled)
	v.SetDefault("wind.gust.intensity", w.Gust.Intensity)
	v.SetDefault("wind.gust.frequency", w.Gust.Frequency)
	v.SetDefault("wind.gust.duration", w.Gust.Duration)

	t := tracker.DefaultConfig()
	v.SetDefault("tracker.mode", t.Mode.String())
	v.SetDefault("tracker.rescan_interval", t.RescanInterval)
	v.SetDefault("tracker.area_limited", t.AreaLimited)
	v.SetDefault("tracker.use_falloff", t.UseFalloff)
	v.SetDefault("tracker.force_mode", t.ForceMode.String())

	z := zone.DefaultConfig()
	v.SetDefault("zone.name", z.Name)
	v.SetDefault("zone.strength", z.Strength)
	v.SetDefault("zone.use_falloff", z.UseFalloff)
	v.SetDefault("zone.required_tag", z.Filter.RequiredTag)
	v.SetDefault("zone.exclude_kinematic", z.Filter.ExcludeKinematic)
	v.SetDefault("zone.track_events", z.TrackEvents)

	v.SetDefault("store.path", "")
	v.SetDefault("store.sample_every", 50)
	v.SetDefault("store.resume", true)

	v.SetDefault("api.addr", "")
	v.SetDefault("api.admin_key", "")
	v.SetDefault("api.gust_per_minute", 10)
	v.SetDefault("api.trust_proxy", false)

	v.SetDefault("weather.api_key", "")
	v.SetDefault("weather.location", "")
	v.SetDefault("weather.force_per_ms", 1.0)
}

// Engine converts the wind, tracker and zone sections to an engine
// configuration.
func (c Config) Engine() engine.Config {
	out := engine.DefaultConfig()
	out.Wind = c.Wind.toWind(out.Wind)
	out.Tracker = c.Tracker.toTracker()
	out.Zone = c.Zone.toZone(out.Zone.Config)
	return out
}

func (c WindConfig) toWind(def wind.Config) wind.Config {
	return wind.Config{
		Seed:          c.Seed,
		BaseHeading:   c.Heading.Vec(),
		BaseMagnitude: c.Magnitude,
		MinMagnitude:  c.MinMagnitude,
		MaxMagnitude:  c.MaxMagnitude,
		DayCycle: wind.DayCycleConfig{
			Enabled:      c.DayCycle.Enabled,
			Length:       c.DayCycle.Length,
			ForceOverDay: c.DayCycle.ForceOverDay.Curve(def.DayCycle.ForceOverDay),
			YawOverDay:   c.DayCycle.YawOverDay.Curve(def.DayCycle.YawOverDay),
		},
		Turbulence: wind.TurbulenceConfig{
			Enabled:   c.Turbulence.Enabled,
			Intensity: c.Turbulence.Intensity,
			Scale:     c.Turbulence.Scale,
			Octaves:   c.Turbulence.Octaves,
		},
		Gust: gustConfig(c.Gust, def),
	}
}

func gustConfig(c GustConfig, def wind.Config) gust.Config {
	g := def.Gust
	g.Enabled = c.Enabled
	g.Intensity = c.Intensity
	g.Frequency = c.Frequency
	g.Duration = c.Duration
	g.Envelope = c.Envelope.Curve(def.Gust.Envelope)
	return g
}

func (c TrackerConfig) toTracker() tracker.Config {
	out := tracker.Config{
		Mode:           tracker.ParseMode(c.Mode),
		RescanInterval: c.RescanInterval,
		LayerMask:      layerMask(c.Layers),
		AreaLimited:    c.AreaLimited,
		UseFalloff:     c.UseFalloff,
		ForceMode:      physics.ParseForceMode(c.ForceMode),
	}
	if c.AreaLimited {
		out.Area = c.Area.Volume()
	}
	return out
}

func (c ZoneConfig) toZone(def zone.Config) engine.ZoneSetup {
	setup := engine.ZoneSetup{Config: zone.Config{
		Name:       c.Name,
		Strength:   c.Strength,
		UseFalloff: c.UseFalloff,
		Falloff:    c.Falloff.Curve(def.Falloff),
		Filter: zone.Filter{
			LayerMask:        layerMask(c.Layers),
			RequiredTag:      c.RequiredTag,
			ExcludeKinematic: c.ExcludeKinematic,
		},
		TrackEvents: c.TrackEvents,
	}}
	for _, vc := range c.Volumes {
		if v := vc.Volume(); v != nil {
			setup.Volumes = append(setup.Volumes, v)
		}
	}
	return setup
}

// layerMask builds a mask from layer numbers. An empty list selects every
// layer; numbers outside 0..31 are ignored.
func layerMask(layers []int) physics.LayerMask {
	if len(layers) == 0 {
		return physics.AllLayers
	}
	var m physics.LayerMask
	for _, l := range layers {
		if l >= 0 && l < 32 {
			m |= 1 << uint(l)
		}
	}
	return m
}
