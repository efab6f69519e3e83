package fabrik

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const epsilon = 1e-9

func assertNear(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > epsilon {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertNearTol(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %v, want %v (±%v)", name, got, want, tol)
	}
}

func assertVec3(t *testing.T, name string, got, want mgl64.Vec3, tol float64) {
	t.Helper()
	if got.Sub(want).Len() > tol {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertVec2(t *testing.T, name string, got, want mgl64.Vec2, tol float64) {
	t.Helper()
	if got.Sub(want).Len() > tol {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

func assertMatrix(t *testing.T, name string, got, want [6]float64) {
	t.Helper()
	for i := range got {
		if math.Abs(got[i]-want[i]) > epsilon {
			t.Errorf("%s[%d] = %v, want %v (full: %v vs %v)", name, i, got[i], want[i], got, want)
		}
	}
}

// --- rotationTranslation ---

func TestRotationTranslationIdentity(t *testing.T) {
	assertMatrix(t, "identity", rotationTranslation(0, 0, 0), identityTransform)
}

func TestRotationTranslationRotation90(t *testing.T) {
	got := rotationTranslation(math.Pi/2, 10, 20)
	// cos(90)=0, sin(90)=1 → a=0, b=1, c=-1, d=0
	assertMatrix(t, "rot90", got, [6]float64{0, 1, -1, 0, 10, 20})
}

// --- multiplyAffine ---

func TestMultiplyAffineIdentity(t *testing.T) {
	id := identityTransform
	m := [6]float64{2, 1, 3, 4, 5, 6}
	assertMatrix(t, "id*m", multiplyAffine(id, m), m)
	assertMatrix(t, "m*id", multiplyAffine(m, id), m)
}

func TestMultiplyAffineTranslations(t *testing.T) {
	a := [6]float64{1, 0, 0, 1, 10, 20}
	b := [6]float64{1, 0, 0, 1, 5, 3}
	got := multiplyAffine(a, b)
	assertMatrix(t, "translations", got, [6]float64{1, 0, 0, 1, 15, 23})
}

// --- invertAffine ---

func TestInvertAffine(t *testing.T) {
	m := [6]float64{2, 0, 0, 3, 10, 20}
	inv := invertAffine(m)
	result := multiplyAffine(m, inv)
	assertMatrix(t, "m*inv=id", result, identityTransform)
}

func TestInvertAffineRotation(t *testing.T) {
	m := rotationTranslation(math.Pi/3, 4, -7)
	result := multiplyAffine(m, invertAffine(m))
	assertMatrix(t, "m*inv=id", result, identityTransform)
}

func TestInvertAffineSingular(t *testing.T) {
	m := [6]float64{0, 0, 0, 0, 5, 5}
	assertMatrix(t, "singular", invertAffine(m), identityTransform)
}

// --- transformPoint ---

func TestTransformPointRoundtrip(t *testing.T) {
	m := rotationTranslation(math.Pi/6, 100, 50)
	x, y := transformPoint(m, 3, 4)
	lx, ly := transformPoint(invertAffine(m), x, y)
	assertNear(t, "roundtrip.x", lx, 3)
	assertNear(t, "roundtrip.y", ly, 4)
}

// --- decomposeAffine ---

func TestDecomposeAffine(t *testing.T) {
	m := rotationTranslation(0.75, 12, -3)
	rot, tx, ty, sx, sy := decomposeAffine(m)
	assertNear(t, "rotation", rot, 0.75)
	assertNear(t, "tx", tx, 12)
	assertNear(t, "ty", ty, -3)
	assertNear(t, "sx", sx, 1)
	assertNear(t, "sy", sy, 1)
}

func TestDecomposeAffineScaled(t *testing.T) {
	m := multiplyAffine(rotationTranslation(-1.2, 0, 0), [6]float64{2, 0, 0, 3, 0, 0})
	rot, _, _, sx, sy := decomposeAffine(m)
	assertNear(t, "rotation", rot, -1.2)
	assertNear(t, "sx", sx, 2)
	assertNear(t, "sy", sy, 3)
}
