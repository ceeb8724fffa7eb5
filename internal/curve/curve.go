// Package curve implements keyframed control curves: small immutable value
// types mapping a parameter (usually a normalized clock or progress) to a
// scalar, used for day-cycle force and yaw, gust envelopes and zone falloff.
package curve

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Mode selects how values are interpolated between two keys.
type Mode uint8

const (
	// ModeLinear interpolates straight between key values.
	ModeLinear Mode = iota
	// ModeSmooth eases in and out of every key (smoothstep).
	ModeSmooth
	// ModeHermite uses the key tangents, like an authored animation curve.
	ModeHermite
	// ModeConstant holds the value of the earlier key until the next one.
	ModeConstant
)

func (m Mode) String() string {
	switch m {
	case ModeLinear:
		return "linear"
	case ModeSmooth:
		return "smooth"
	case ModeHermite:
		return "hermite"
	case ModeConstant:
		return "constant"
	default:
		return fmt.Sprintf("Mode(%d)", m)
	}
}

// ParseMode maps a mode name to a Mode. Unknown names fall back to Smooth.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "linear":
		return ModeLinear
	case "hermite":
		return ModeHermite
	case "constant", "step":
		return ModeConstant
	default:
		return ModeSmooth
	}
}

// Key is a single keyframe. Tangents are slopes (dValue/dTime) and are only
// read in Hermite mode.
type Key struct {
	Time       float64 `json:"time"`
	Value      float64 `json:"value"`
	InTangent  float64 `json:"in_tangent"`
	OutTangent float64 `json:"out_tangent"`
}

// Curve is an ordered set of keys plus an interpolation mode. The zero
// value is an empty curve that evaluates to 0 everywhere.
type Curve struct {
	mode Mode
	keys []Key
}

// New builds a curve from keys, sorted by time. Keys with a NaN time are
// dropped. The keys are copied.
func New(mode Mode, keys ...Key) Curve {
	ks := make([]Key, 0, len(keys))
	for _, k := range keys {
		if math.IsNaN(k.Time) {
			continue
		}
		ks = append(ks, k)
	}
	slices.SortStableFunc(ks, func(a, b Key) int {
		switch {
		case a.Time < b.Time:
			return -1
		case a.Time > b.Time:
			return 1
		}
		return 0
	})
	return Curve{mode: mode, keys: ks}
}

// Linear returns a straight line from (x0, y0) to (x1, y1).
func Linear(x0, y0, x1, y1 float64) Curve {
	slope := 0.0
	if x1 != x0 {
		slope = (y1 - y0) / (x1 - x0)
	}
	return New(ModeLinear,
		Key{Time: x0, Value: y0, InTangent: slope, OutTangent: slope},
		Key{Time: x1, Value: y1, InTangent: slope, OutTangent: slope},
	)
}

// EaseInOut returns an S-shaped transition from (x0, y0) to (x1, y1).
func EaseInOut(x0, y0, x1, y1 float64) Curve {
	return New(ModeSmooth, Key{Time: x0, Value: y0}, Key{Time: x1, Value: y1})
}

// Flat returns a curve that is v everywhere on [0, 1].
func Flat(v float64) Curve {
	return New(ModeLinear, Key{Time: 0, Value: v}, Key{Time: 1, Value: v})
}

// Bell rises from 0 to 1 at the middle of [0, 1] and falls back to 0.
func Bell() Curve {
	return New(ModeSmooth,
		Key{Time: 0, Value: 0},
		Key{Time: 0.5, Value: 1},
		Key{Time: 1, Value: 0},
	)
}

// Mode returns the curve's interpolation mode.
func (c Curve) Mode() Mode { return c.mode }

// Keys returns a copy of the keyframes.
func (c Curve) Keys() []Key { return slices.Clone(c.keys) }

// Len returns the number of keys.
func (c Curve) Len() int { return len(c.keys) }

// Domain returns the first and last key times.
func (c Curve) Domain() (lo, hi float64) {
	if len(c.keys) == 0 {
		return 0, 0
	}
	return c.keys[0].Time, c.keys[len(c.keys)-1].Time
}

// Evaluate samples the curve at x. Input outside the key range is clamped to
// the first or last key; NaN is treated as the start of the domain.
func (c Curve) Evaluate(x float64) float64 {
	n := len(c.keys)
	if n == 0 {
		return 0
	}
	first, last := c.keys[0], c.keys[n-1]
	if math.IsNaN(x) || x <= first.Time {
		return first.Value
	}
	if x >= last.Time {
		return last.Value
	}

	// First key strictly after x; 1 <= i <= n-1 given the checks above.
	i, _ := slices.BinarySearchFunc(c.keys, x, func(k Key, t float64) int {
		if k.Time <= t {
			return -1
		}
		return 1
	})
	k0, k1 := c.keys[i-1], c.keys[i]
	span := k1.Time - k0.Time
	if span <= 0 {
		return k1.Value
	}
	s := (x - k0.Time) / span

	switch c.mode {
	case ModeConstant:
		return k0.Value
	case ModeSmooth:
		s = s * s * (3 - 2*s)
		return lerp(k0.Value, k1.Value, s)
	case ModeHermite:
		return hermite(k0, k1, span, s)
	default:
		return lerp(k0.Value, k1.Value, s)
	}
}

func lerp(a, b, s float64) float64 {
	return a + float64((b-a)*s)
}

// hermite evaluates the cubic Hermite segment between two keys at local
// parameter s in [0, 1].
func hermite(k0, k1 Key, span, s float64) float64 {
	s2 := s * s
	s3 := s2 * s
	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	m0 := k0.OutTangent * span
	m1 := k1.InTangent * span
	if math.IsInf(m0, 0) || math.IsInf(m1, 0) {
		// Infinite tangents step, as authored curves do.
		return k0.Value
	}
	return float64(h00*k0.Value) + float64(h10*m0) + float64(h01*k1.Value) + float64(h11*m1)
}
