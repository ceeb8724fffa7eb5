// Package physics declares the collaborators the wind engine talks to but
// does not implement: body enumeration, geometric volume queries, force
// application and trigger notifications. A host scene implements these.
package physics

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/windfield/internal/geom"
)

// BodyID is the stable identity of a body for the lifetime of a scene.
type BodyID = uuid.UUID

// Body is a handle to a simulated rigid body. Implementations backed by a
// pointer must answer every method on a nil receiver, with Valid false, so a
// typed nil inside a Body is skipped like any other invalid reference.
type Body interface {
	ID() BodyID
	IsKinematic() bool
	// Layer is the body's collision layer, 0..31.
	Layer() int
	Tag() string
	// CenterOfMass is the world-space point used for containment tests.
	CenterOfMass() geom.Vec3
	// Valid is false once the body has been destroyed.
	Valid() bool
}

// World enumerates the bodies currently in the simulation.
type World interface {
	AllBodies() []Body
}

// Volume is an opaque geometric volume owned by the host scene.
type Volume interface {
	Name() string
}

// Geometry answers spatial queries on volumes.
type Geometry interface {
	ClosestPoint(v Volume, p geom.Vec3) geom.Vec3
	Bounds(v Volume) geom.Bounds
	Contains(v Volume, p geom.Vec3) bool
}

// ForceApplier hands a force to the physics integrator.
type ForceApplier interface {
	ApplyForce(b Body, force geom.Vec3, mode ForceMode)
}

// TriggerListener receives enter/exit notifications from the host's trigger
// system.
type TriggerListener interface {
	OnEnter(b Body)
	OnExit(b Body)
}

// ForceMode selects how the integrator interprets a force. The engine passes
// it through untouched.
type ForceMode uint8

const (
	Force ForceMode = iota
	Acceleration
	Impulse
	VelocityChange
)

func (m ForceMode) String() string {
	switch m {
	case Force:
		return "force"
	case Acceleration:
		return "acceleration"
	case Impulse:
		return "impulse"
	case VelocityChange:
		return "velocity_change"
	default:
		return fmt.Sprintf("ForceMode(%d)", m)
	}
}

// ParseForceMode maps a name to a ForceMode. Unknown names map to Force.
func ParseForceMode(s string) ForceMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "acceleration":
		return Acceleration
	case "impulse":
		return Impulse
	case "velocity_change", "velocitychange":
		return VelocityChange
	default:
		return Force
	}
}

// IsValid reports whether b is non-nil and not destroyed. A typed nil relies
// on the nil-receiver contract of Body.
func IsValid(b Body) bool {
	return b != nil && b.Valid()
}

// LayerMask is a bit set over layers 0..31.
type LayerMask uint32

// AllLayers matches every layer.
const AllLayers LayerMask = ^LayerMask(0)

// Includes reports whether layer is in the mask. Layers outside 0..31 never
// match.
func (m LayerMask) Includes(layer int) bool {
	if layer < 0 || layer > 31 {
		return false
	}
	return m&(1<<uint(layer)) != 0
}

// CompareIDs orders body IDs bytewise.
func CompareIDs(a, b BodyID) int {
	return bytes.Compare(a[:], b[:])
}

// SortByID orders bodies by ID, giving set iteration a stable order.
func SortByID(bodies []Body) {
	slices.SortFunc(bodies, func(a, b Body) int {
		return CompareIDs(a.ID(), b.ID())
	})
}
