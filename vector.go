package fabrik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Vector is the set of operations the solver needs from a position type.
// mgl64.Vec2 and mgl64.Vec3 both satisfy it.
type Vector[V any] interface {
	Add(V) V
	Sub(V) V
	Mul(float64) V
	Dot(V) float64
	Len() float64
}

// direction returns the unit vector from `from` toward `to`. When the two
// points coincide it returns fallback and false; fallback is expected to be a
// unit vector or the zero vector.
func direction[V Vector[V]](from, to, fallback V) (V, bool) {
	d := to.Sub(from)
	l := d.Len()
	if l < Epsilon {
		return fallback, false
	}
	return d.Mul(1 / l), true
}

// placeAt returns the point `length` away from anchor in the direction of
// toward. If toward coincides with anchor the point is placed along
// fallback, which must be a unit vector or zero; a zero fallback leaves the
// point at anchor rather than producing NaN.
func placeAt[V Vector[V]](anchor, toward V, length float64, fallback V) V {
	dir, _ := direction(anchor, toward, fallback)
	return anchor.Add(dir.Mul(length))
}

// unitOr normalizes v, or returns fallback when v is degenerate.
func unitOr[V Vector[V]](v, fallback V) V {
	l := v.Len()
	if l < Epsilon {
		return fallback
	}
	return v.Mul(1 / l)
}

// distance is the Euclidean distance between a and b.
func distance[V Vector[V]](a, b V) float64 {
	return b.Sub(a).Len()
}

// centroid is the arithmetic mean of points. It returns the zero vector for
// an empty slice.
func centroid(points []mgl64.Vec3) mgl64.Vec3 {
	var sum mgl64.Vec3
	if len(points) == 0 {
		return sum
	}
	for _, p := range points {
		sum = sum.Add(p)
	}
	return sum.Mul(1 / float64(len(points)))
}

// anyPerpendicular returns a unit vector perpendicular to the unit vector v.
func anyPerpendicular(v mgl64.Vec3) mgl64.Vec3 {
	ref := mgl64.Vec3{1, 0, 0}
	if v.X() > 0.9 || v.X() < -0.9 {
		ref = mgl64.Vec3{0, 1, 0}
	}
	return v.Cross(ref).Normalize()
}

// rotationBetween returns the shortest rotation taking unit vector from onto
// unit vector to. Opposite vectors rotate half a turn about an arbitrary
// perpendicular axis.
func rotationBetween(from, to mgl64.Vec3) mgl64.Quat {
	c := from.Dot(to)
	if c < -1+1e-12 {
		return mgl64.QuatRotate(math.Pi, anyPerpendicular(from))
	}
	axis := from.Cross(to)
	w := math.Sqrt((1 + c) * 2)
	return mgl64.Quat{W: w / 2, V: axis.Mul(1 / w)}.Normalize()
}
