package fabrik

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func deg(d float64) float64 { return d * math.Pi / 180 }

func TestConstrainConeClampsToLimit(t *testing.T) {
	gp := mgl64.Vec3{0, 0, 0}
	c := mgl64.Vec3{0, 0, 5}
	// 60° off the +Z axis, bone length 4.
	s, co := math.Sincos(deg(60))
	movable := c.Add(mgl64.Vec3{s, 0, co}.Mul(4))

	got, ok := ConstrainCone(gp, c, movable, deg(45))
	if !ok {
		t.Fatal("expected a correction")
	}
	bone := got.Sub(c)
	assertNearTol(t, "bone length", bone.Len(), 4, 1e-9)
	assertNearTol(t, "angle", AngleBetween(c.Sub(gp), bone), deg(45), 1e-9)

	s45, c45 := math.Sincos(deg(45))
	assertVec3(t, "corrected", got, c.Add(mgl64.Vec3{s45, 0, c45}.Mul(4)), 1e-9)
}

func TestConstrainConeKeepsAzimuth(t *testing.T) {
	gp := mgl64.Vec3{1, 1, 1}
	c := mgl64.Vec3{1, 4, 1} // axis +Y
	movable := c.Add(mgl64.Vec3{2, 1, -2})

	got, ok := ConstrainCone(gp, c, movable, deg(20))
	if !ok {
		t.Fatal("expected a correction")
	}
	bone := got.Sub(c)
	// The radial part keeps the direction (1, 0, -1).
	radial := mgl64.Vec3{bone.X(), 0, bone.Z()}.Normalize()
	assertVec3(t, "azimuth", radial, mgl64.Vec3{1, 0, -1}.Normalize(), 1e-9)
	assertNearTol(t, "angle", AngleBetween(mgl64.Vec3{0, 1, 0}, bone), deg(20), 1e-9)
	assertNearTol(t, "length", bone.Len(), mgl64.Vec3{2, 1, -2}.Len(), 1e-9)
}

func TestConstrainConeInsideIsUnchanged(t *testing.T) {
	gp := mgl64.Vec3{0, 0, 0}
	c := mgl64.Vec3{0, 0, 5}
	s, co := math.Sincos(deg(30))
	movable := c.Add(mgl64.Vec3{0, s, co}.Mul(2))

	got, ok := ConstrainCone(gp, c, movable, deg(45))
	if ok {
		t.Errorf("unexpected correction to %v", got)
	}
	if got != movable {
		t.Errorf("got %v, want input %v", got, movable)
	}
}

func TestConstrainConeOnBoundaryIsUnchanged(t *testing.T) {
	gp := mgl64.Vec3{0, 0, 0}
	c := mgl64.Vec3{0, 0, 5}
	s, co := math.Sincos(deg(45))
	movable := c.Add(mgl64.Vec3{s, 0, co}.Mul(3))

	if _, ok := ConstrainCone(gp, c, movable, deg(45)); ok {
		t.Error("joint exactly on the cone should not be corrected")
	}
}

func TestConstrainConeBehindReflects(t *testing.T) {
	gp := mgl64.Vec3{0, 0, 0}
	c := mgl64.Vec3{0, 0, 5}
	// Bent 150° back toward the grandparent.
	s, co := math.Sincos(deg(150))
	movable := c.Add(mgl64.Vec3{0, s, co}.Mul(2))

	got, ok := ConstrainCone(gp, c, movable, deg(30))
	if !ok {
		t.Fatal("expected a correction")
	}
	bone := got.Sub(c)
	if bone.Z() <= 0 {
		t.Errorf("corrected bone %v still points behind the joint", bone)
	}
	if bone.Y() <= 0 {
		t.Errorf("corrected bone %v left its side of the axis", bone)
	}
	assertNearTol(t, "angle", AngleBetween(c.Sub(gp), bone), deg(30), 1e-9)
	assertNearTol(t, "length", bone.Len(), 2, 1e-9)
}

func TestConstrainConeDirectlyBehind(t *testing.T) {
	gp := mgl64.Vec3{0, 0, 0}
	c := mgl64.Vec3{0, 0, 5}
	movable := mgl64.Vec3{0, 0, 2}

	got, ok := ConstrainCone(gp, c, movable, deg(10))
	if !ok {
		t.Fatal("expected a correction")
	}
	bone := got.Sub(c)
	assertNearTol(t, "angle", AngleBetween(c.Sub(gp), bone), deg(10), 1e-9)
	assertNearTol(t, "length", bone.Len(), 3, 1e-9)
}

func TestConstrainConeWideAngle(t *testing.T) {
	gp := mgl64.Vec3{0, 0, 0}
	c := mgl64.Vec3{0, 0, 5}
	s, co := math.Sincos(deg(120))
	movable := c.Add(mgl64.Vec3{s, 0, co})

	if _, ok := ConstrainCone(gp, c, movable, deg(130)); ok {
		t.Error("120° bend is inside a 130° cone")
	}
	got, ok := ConstrainCone(gp, c, movable, deg(100))
	if !ok {
		t.Fatal("120° bend is outside a 100° cone")
	}
	assertNearTol(t, "angle", AngleBetween(c.Sub(gp), got.Sub(c)), deg(100), 1e-9)
}

func TestConstrainConeZeroAngleLocksToAxis(t *testing.T) {
	gp := mgl64.Vec3{0, 0, 0}
	c := mgl64.Vec3{0, 2, 0}
	got, ok := ConstrainCone(gp, c, mgl64.Vec3{3, 6, 0}, 0)
	if !ok {
		t.Fatal("expected a correction")
	}
	assertVec3(t, "locked", got, mgl64.Vec3{0, 7, 0}, 1e-9)
}

func TestConstrainConeDegenerateInputs(t *testing.T) {
	p := mgl64.Vec3{1, 2, 3}
	if _, ok := ConstrainCone(p, p, mgl64.Vec3{4, 5, 6}, deg(10)); ok {
		t.Error("zero-length axis should not correct")
	}
	if _, ok := ConstrainCone(mgl64.Vec3{}, p, p, deg(10)); ok {
		t.Error("zero-length bone should not correct")
	}
	if _, ok := ConstrainCone(mgl64.Vec3{}, p, mgl64.Vec3{-5, 0, 0}, math.Pi); ok {
		t.Error("a pi cone admits every direction")
	}
}

func TestConstrainConeAntiparallelAxis(t *testing.T) {
	// Axis pointing at -Z.
	gp := mgl64.Vec3{0, 0, 5}
	c := mgl64.Vec3{0, 0, 0}
	movable := mgl64.Vec3{3, 0, -1}

	got, ok := ConstrainCone(gp, c, movable, deg(15))
	if !ok {
		t.Fatal("expected a correction")
	}
	bone := got.Sub(c)
	assertNearTol(t, "angle", AngleBetween(mgl64.Vec3{0, 0, -1}, bone), deg(15), 1e-9)
	if bone.X() <= 0 {
		t.Errorf("corrected bone %v flipped sides", bone)
	}
}

// --- 2D ---

func TestConstrainCone2D(t *testing.T) {
	gp := mgl64.Vec2{0, 0}
	c := mgl64.Vec2{10, 0}
	movable := mgl64.Vec2{10, 5} // 90° left

	got, ok := ConstrainCone2D(gp, c, movable, deg(30))
	if !ok {
		t.Fatal("expected a correction")
	}
	s, co := math.Sincos(deg(30))
	assertVec2(t, "corrected", got, mgl64.Vec2{10 + 5*co, 5 * s}, 1e-9)
}

func TestConstrainCone2DRightSide(t *testing.T) {
	got, ok := ConstrainCone2D(mgl64.Vec2{0, 0}, mgl64.Vec2{0, 1}, mgl64.Vec2{2, 1}, deg(45))
	if !ok {
		t.Fatal("expected a correction")
	}
	s := math.Sqrt2
	assertVec2(t, "corrected", got, mgl64.Vec2{s, 1 + s}, 1e-9)
}

func TestConstrainCone2DInside(t *testing.T) {
	movable := mgl64.Vec2{15, 1}
	got, ok := ConstrainCone2D(mgl64.Vec2{0, 0}, mgl64.Vec2{10, 0}, movable, deg(30))
	if ok || got != movable {
		t.Errorf("got %v, %v; want unchanged", got, ok)
	}
}

func TestWrapAngle(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{0, 0},
		{math.Pi, math.Pi},
		{-math.Pi, math.Pi},
		{3 * math.Pi / 2, -math.Pi / 2},
		{-3 * math.Pi / 2, math.Pi / 2},
	}
	for _, c := range cases {
		assertNearTol(t, "wrap", wrapAngle(c.in), c.want, 1e-12)
	}
}
