package wind

import (
	"math"

	"github.com/talgya/windfield/internal/curve"
	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/gust"
)

// Config holds every externally supplied wind parameter. Values are never
// rejected; Sanitize clamps them into a usable range.
type Config struct {
	// Seed for turbulence and gust rolls. 0 picks a non-deterministic seed.
	Seed int64

	// BaseHeading is the wind direction before day-cycle yaw and turbulence.
	BaseHeading   geom.Vec3
	BaseMagnitude float64
	MinMagnitude  float64
	MaxMagnitude  float64

	DayCycle   DayCycleConfig
	Turbulence TurbulenceConfig
	Gust       gust.Config
}

// DayCycleConfig drives magnitude and heading from a periodic [0,1) clock.
type DayCycleConfig struct {
	Enabled bool
	// Length of one simulated day in seconds.
	Length float64
	// ForceOverDay multiplies the base magnitude; negative values clamp to 0.
	ForceOverDay curve.Curve
	// YawOverDay rotates the base heading about the vertical axis, in degrees.
	YawOverDay curve.Curve
}

// TurbulenceConfig controls the coherent-noise perturbation.
type TurbulenceConfig struct {
	Enabled   bool
	Intensity float64
	Scale     float64
	Octaves   int
}

// DefaultConfig returns a steady 10-unit wind blowing along +X with every
// optional layer switched off.
func DefaultConfig() Config {
	return Config{
		Seed:          0,
		BaseHeading:   geom.Right,
		BaseMagnitude: 10,
		MinMagnitude:  0,
		MaxMagnitude:  100,
		DayCycle: DayCycleConfig{
			Enabled:      false,
			Length:       120,
			ForceOverDay: curve.Flat(1),
			YawOverDay:   curve.Linear(0, 0, 1, 360),
		},
		Turbulence: TurbulenceConfig{
			Enabled:   false,
			Intensity: 0.35,
			Scale:     0.15,
			Octaves:   3,
		},
		Gust: gust.DefaultConfig(),
	}
}

// Sanitize clamps the configuration into a consistent range.
func (c Config) Sanitize() Config {
	if h, ok := c.BaseHeading.TryNormalize(); ok {
		c.BaseHeading = h
	} else {
		c.BaseHeading = geom.Right
	}

	c.MinMagnitude = nonNegative(c.MinMagnitude)
	if math.IsNaN(c.MaxMagnitude) || c.MaxMagnitude < c.MinMagnitude {
		c.MaxMagnitude = c.MinMagnitude
	}
	c.BaseMagnitude = nonNegative(c.BaseMagnitude)

	c.DayCycle.Length = nonNegative(c.DayCycle.Length)
	if math.IsInf(c.DayCycle.Length, 0) {
		c.DayCycle.Length = 0
	}

	c.Turbulence.Intensity = nonNegative(c.Turbulence.Intensity)
	c.Turbulence.Scale = nonNegative(c.Turbulence.Scale)
	if c.Turbulence.Octaves < 1 {
		c.Turbulence.Octaves = 1
	}

	c.Gust = c.Gust.Sanitize()
	return c
}

func nonNegative(x float64) float64 {
	if !(x > 0) {
		return 0
	}
	return x
}
