// Package geom provides the float64 vector and bounds types shared by the
// wind engine and the host collaborators it talks to.
package geom

import (
	"fmt"
	"math"
)

// Vec3 is a float64 3D vector. Y is the vertical axis.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Common axes.
var (
	Zero    = Vec3{}
	Right   = Vec3{X: 1}
	Up      = Vec3{Y: 1}
	Forward = Vec3{Z: 1}
)

// V is shorthand for Vec3{x, y, z}.
func V(x, y, z float64) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Add(o Vec3) Vec3 {
	return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z}
}

func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z}
}

func (v Vec3) Scale(s float64) Vec3 {
	return Vec3{v.X * s, v.Y * s, v.Z * s}
}

func (v Vec3) Dot(o Vec3) float64 {
	return float64(v.X*o.X) + float64(v.Y*o.Y) + float64(v.Z*o.Z)
}

func (v Vec3) LenSq() float64 {
	return v.Dot(v)
}

func (v Vec3) Len() float64 {
	return math.Sqrt(v.LenSq())
}

// DistSq returns the squared distance between two points.
func (v Vec3) DistSq(o Vec3) float64 {
	return v.Sub(o).LenSq()
}

// Dist returns the distance between two points.
func (v Vec3) Dist(o Vec3) float64 {
	return v.Sub(o).Len()
}

// IsZero reports whether all components are exactly zero.
func (v Vec3) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

// IsFinite reports whether no component is NaN or infinite.
func (v Vec3) IsFinite() bool {
	return finite(v.X) && finite(v.Y) && finite(v.Z)
}

// Normalize returns the unit vector in the direction of v, or the zero
// vector when v has no usable length.
func (v Vec3) Normalize() Vec3 {
	n, ok := v.TryNormalize()
	if !ok {
		return Vec3{}
	}
	return n
}

// TryNormalize is Normalize with an explicit failure report for zero,
// denormal-length or non-finite input.
func (v Vec3) TryNormalize() (Vec3, bool) {
	if !v.IsFinite() {
		return Vec3{}, false
	}
	mag := v.Len()
	if mag < 1e-12 || !finite(mag) {
		return Vec3{}, false
	}
	inv := 1.0 / mag
	return Vec3{v.X * inv, v.Y * inv, v.Z * inv}, true
}

// RotateY rotates v about the vertical axis by deg degrees. Positive angles
// turn +X toward -Z (clockwise seen from above, left-handed Y-up).
func (v Vec3) RotateY(deg float64) Vec3 {
	rad := deg * math.Pi / 180
	sin, cos := math.Sincos(rad)
	return Vec3{
		X: float64(v.X*cos) + float64(v.Z*sin),
		Y: v.Y,
		Z: float64(-v.X*sin) + float64(v.Z*cos),
	}
}

// Min returns the component-wise minimum.
func (v Vec3) Min(o Vec3) Vec3 {
	return Vec3{min(v.X, o.X), min(v.Y, o.Y), min(v.Z, o.Z)}
}

// Max returns the component-wise maximum.
func (v Vec3) Max(o Vec3) Vec3 {
	return Vec3{max(v.X, o.X), max(v.Y, o.Y), max(v.Z, o.Z)}
}

// Abs returns the component-wise absolute value.
func (v Vec3) Abs() Vec3 {
	return Vec3{math.Abs(v.X), math.Abs(v.Y), math.Abs(v.Z)}
}

func (v Vec3) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f)", v.X, v.Y, v.Z)
}

// Clamp limits x to [lo, hi]. NaN maps to lo.
func Clamp(x, lo, hi float64) float64 {
	if !(x >= lo) {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// Clamp01 limits x to [0, 1]. NaN maps to 0.
func Clamp01(x float64) float64 {
	return Clamp(x, 0, 1)
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
