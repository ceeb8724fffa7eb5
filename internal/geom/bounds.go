package geom

// Bounds is an axis-aligned box described by its center and half-size.
type Bounds struct {
	Center  Vec3 `json:"center"`
	Extents Vec3 `json:"extents"`
}

// BoundsFromMinMax builds a box spanning the two corners.
func BoundsFromMinMax(lo, hi Vec3) Bounds {
	lo, hi = lo.Min(hi), lo.Max(hi)
	return Bounds{
		Center:  lo.Add(hi).Scale(0.5),
		Extents: hi.Sub(lo).Scale(0.5),
	}
}

func (b Bounds) Min() Vec3 { return b.Center.Sub(b.Extents.Abs()) }
func (b Bounds) Max() Vec3 { return b.Center.Add(b.Extents.Abs()) }

// Size returns the full edge lengths.
func (b Bounds) Size() Vec3 { return b.Extents.Abs().Scale(2) }

// Contains reports whether p lies inside or on the box.
func (b Bounds) Contains(p Vec3) bool {
	lo, hi := b.Min(), b.Max()
	return p.X >= lo.X && p.X <= hi.X &&
		p.Y >= lo.Y && p.Y <= hi.Y &&
		p.Z >= lo.Z && p.Z <= hi.Z
}

// ClosestPoint returns the point of the box nearest to p (p itself when inside).
func (b Bounds) ClosestPoint(p Vec3) Vec3 {
	lo, hi := b.Min(), b.Max()
	return Vec3{
		X: Clamp(p.X, lo.X, hi.X),
		Y: Clamp(p.Y, lo.Y, hi.Y),
		Z: Clamp(p.Z, lo.Z, hi.Z),
	}
}

// Encapsulate returns the smallest box containing both b and o.
func (b Bounds) Encapsulate(o Bounds) Bounds {
	return BoundsFromMinMax(b.Min().Min(o.Min()), b.Max().Max(o.Max()))
}
