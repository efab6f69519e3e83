package fabrik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// angleSlack absorbs rounding so a joint that was just clamped onto the cone
// is not clamped again on the next sweep.
const angleSlack = 1e-9

// ConstrainCone keeps the bone constrained→movable within angle radians of
// the cone axis grandparent→constrained. It returns the corrected movable
// position and true, or movable and false when no correction is needed.
// The bone length |movable-constrained| is preserved exactly.
//
// The movable joint is projected onto the axis at signed distance s from the
// constrained joint, and the cross-section through that point is rotated into
// the XY plane. A joint outside the circle of radius s*tan(angle) is pulled
// onto the cone edge along its own azimuth. A joint behind the constrained
// joint (s < 0) has its axial coordinate mirrored first, so it lands on the
// near side of the cone rather than being clamped through the apex.
func ConstrainCone(grandparent, constrained, movable mgl64.Vec3, angle float64) (mgl64.Vec3, bool) {
	if angle >= math.Pi {
		return movable, false
	}
	if angle < 0 {
		angle = 0
	}
	axis := constrained.Sub(grandparent)
	axisLen := axis.Len()
	bone := movable.Sub(constrained)
	length := bone.Len()
	if axisLen < Epsilon || length < Epsilon {
		return movable, false
	}
	axis = axis.Mul(1 / axisLen)

	s := bone.Dot(axis)
	o := constrained.Add(axis.Mul(s))

	// Rows of toPlane are an orthonormal basis whose third vector is the
	// cone axis, so the cross-section through o lands in the XY plane.
	e1 := anyPerpendicular(axis)
	e2 := axis.Cross(e1)
	toPlane := mgl64.Mat3FromRows(e1, e2, axis)
	p := toPlane.Mul3x1(movable.Sub(o))
	radial := mgl64.Vec2{p.X(), p.Y()}
	r := radial.Len()

	if s > 0 && angle < math.Pi/2 {
		if r <= s*math.Tan(angle)+angleSlack*length {
			return movable, false
		}
	} else if math.Atan2(r, s) <= angle+angleSlack {
		return movable, false
	}

	var u mgl64.Vec2
	if r < Epsilon {
		// Directly behind on the axis: every azimuth is equally close.
		u = mgl64.Vec2{1, 0}
	} else {
		u = radial.Mul(1 / r)
	}
	sin, cos := math.Sincos(angle)
	local := mgl64.Vec3{u.X() * sin, u.Y() * sin, cos}
	dir := toPlane.Transpose().Mul3x1(local).Normalize()
	return constrained.Add(dir.Mul(length)), true
}

// ConstrainCone2D is the planar form of ConstrainCone: the bone
// constrained→movable is rotated toward the axis grandparent→constrained
// until it is within angle radians, on the side it already lies.
func ConstrainCone2D(grandparent, constrained, movable mgl64.Vec2, angle float64) (mgl64.Vec2, bool) {
	if angle >= math.Pi {
		return movable, false
	}
	if angle < 0 {
		angle = 0
	}
	axis := constrained.Sub(grandparent)
	bone := movable.Sub(constrained)
	length := bone.Len()
	if axis.Len() < Epsilon || length < Epsilon {
		return movable, false
	}
	base := math.Atan2(axis.Y(), axis.X())
	delta := wrapAngle(math.Atan2(bone.Y(), bone.X()) - base)
	if math.Abs(delta) <= angle+angleSlack {
		return movable, false
	}
	sin, cos := math.Sincos(base + math.Copysign(angle, delta))
	return constrained.Add(mgl64.Vec2{cos, sin}.Mul(length)), true
}

// AngleBetween returns the angle in radians between a and b, or 0 if either
// is degenerate.
func AngleBetween(a, b mgl64.Vec3) float64 {
	la, lb := a.Len(), b.Len()
	if la < Epsilon || lb < Epsilon {
		return 0
	}
	c := a.Dot(b) / (la * lb)
	return math.Acos(math.Max(-1, math.Min(1, c)))
}

// wrapAngle maps a into (-pi, pi].
func wrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
