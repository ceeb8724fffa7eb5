package scene

import (
	"math"

	"github.com/talgya/windfield/internal/geom"
	"github.com/talgya/windfield/internal/physics"
)

// Box is an axis-aligned box volume.
type Box struct {
	Label  string
	Bounds geom.Bounds
}

// Name returns the box label.
func (b Box) Name() string { return b.Label }

// Sphere is a ball volume.
type Sphere struct {
	Label  string
	Center geom.Vec3
	Radius float64
}

// Name returns the sphere label.
func (s Sphere) Name() string { return s.Label }

// Geometry answers volume queries for Box and Sphere. Unknown volume types
// are treated as empty: infinitely far away and containing nothing.
type Geometry struct{}

var farAway = geom.V(math.Inf(1), math.Inf(1), math.Inf(1))

func (Geometry) ClosestPoint(v physics.Volume, p geom.Vec3) geom.Vec3 {
	switch s := v.(type) {
	case Box:
		return s.Bounds.ClosestPoint(p)
	case *Box:
		return s.Bounds.ClosestPoint(p)
	case Sphere:
		return sphereClosest(s, p)
	case *Sphere:
		return sphereClosest(*s, p)
	}
	return farAway
}

func (Geometry) Bounds(v physics.Volume) geom.Bounds {
	switch s := v.(type) {
	case Box:
		return s.Bounds
	case *Box:
		return s.Bounds
	case Sphere:
		return sphereBounds(s)
	case *Sphere:
		return sphereBounds(*s)
	}
	return geom.Bounds{}
}

func (Geometry) Contains(v physics.Volume, p geom.Vec3) bool {
	switch s := v.(type) {
	case Box:
		return s.Bounds.Contains(p)
	case *Box:
		return s.Bounds.Contains(p)
	case Sphere:
		return p.DistSq(s.Center) <= s.Radius*s.Radius
	case *Sphere:
		return p.DistSq(s.Center) <= s.Radius*s.Radius
	}
	return false
}

func sphereClosest(s Sphere, p geom.Vec3) geom.Vec3 {
	r := math.Abs(s.Radius)
	off := p.Sub(s.Center)
	if off.LenSq() <= r*r {
		return p
	}
	return s.Center.Add(off.Normalize().Scale(r))
}

func sphereBounds(s Sphere) geom.Bounds {
	r := math.Abs(s.Radius)
	return geom.Bounds{Center: s.Center, Extents: geom.V(r, r, r)}
}
