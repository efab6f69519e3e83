package fabrik

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

const boneTol = 1e-4

func assertBoneLengths2D(t *testing.T, pos []mgl64.Vec2, lengths []float64) {
	t.Helper()
	for i, l := range lengths {
		if d := pos[i+1].Sub(pos[i]).Len(); math.Abs(d-l) > boneTol {
			t.Errorf("bone %d length = %v, want %v", i, d, l)
		}
	}
}

func assertBoneLengths3D(t *testing.T, pos []mgl64.Vec3, lengths []float64) {
	t.Helper()
	for i, l := range lengths {
		if d := pos[i+1].Sub(pos[i]).Len(); math.Abs(d-l) > boneTol {
			t.Errorf("bone %d length = %v, want %v", i, d, l)
		}
	}
}

// --- Scenarios ---

func TestSolveChainReachableTwoBones(t *testing.T) {
	pos := []mgl64.Vec2{{0, 0}, {0, 10}, {10, 10}}
	lengths := []float64{10, 10}
	target := mgl64.Vec2{15, 0}

	res := Solve2D(pos, lengths, target, ChainOptions2D{Tolerance: 0.01})

	if !res.Reachable {
		t.Fatal("target at 15 should be reachable by a 20-long chain")
	}
	if !res.Converged {
		t.Fatalf("did not converge: %+v", res)
	}
	if res.Distance > 0.01 {
		t.Errorf("tip distance = %v, want <= 0.01", res.Distance)
	}
	assertVec2(t, "root", pos[0], mgl64.Vec2{0, 0}, 0)
	assertVec2(t, "tip", pos[2], target, 0.01)
	assertBoneLengths2D(t, pos, lengths)
}

func TestSolveChainUnreachableStraightensTowardTarget(t *testing.T) {
	pos := []mgl64.Vec2{{0, 0}, {0, 10}, {10, 10}}
	lengths := []float64{10, 10}

	res := Solve2D(pos, lengths, mgl64.Vec2{25, 0}, ChainOptions2D{})

	if res.Reachable {
		t.Fatal("target at 25 should be unreachable by a 20-long chain")
	}
	if res.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", res.Iterations)
	}
	assertVec2(t, "root", pos[0], mgl64.Vec2{0, 0}, 0)
	assertVec2(t, "joint1", pos[1], mgl64.Vec2{10, 0}, 1e-9)
	assertVec2(t, "tip", pos[2], mgl64.Vec2{20, 0}, 1e-9)
	assertNear(t, "distance", res.Distance, 5)
}

func TestSolveChainUnreachableDiagonal(t *testing.T) {
	pos := []mgl64.Vec3{{1, 1, 1}, {1, 4, 1}, {1, 6, 1}}
	lengths := ChainLengths(pos)
	target := mgl64.Vec3{101, 1, 1}

	Solve3D(pos, lengths, target, ChainOptions3D{})

	dir := mgl64.Vec3{1, 0, 0}
	assertVec3(t, "root", pos[0], mgl64.Vec3{1, 1, 1}, 0)
	assertVec3(t, "joint1", pos[1], mgl64.Vec3{1, 1, 1}.Add(dir.Mul(3)), 1e-9)
	assertVec3(t, "tip", pos[2], mgl64.Vec3{1, 1, 1}.Add(dir.Mul(5)), 1e-9)
}

// --- Properties ---

func TestSolveChainPreservesBoneLengths3D(t *testing.T) {
	targets := []mgl64.Vec3{
		{6, 8, 3}, {-4, 2, 9}, {0, -12, 0}, {3, 3, 3}, {0, 0, 0.5}, {40, 0, 0},
	}
	for _, target := range targets {
		pos := []mgl64.Vec3{{0, 0, 0}, {0, 5, 0}, {1, 9, 0}, {3, 13, 0}}
		lengths := ChainLengths(pos)

		Solve3D(pos, lengths, target, ChainOptions3D{})

		assertVec3(t, "root", pos[0], mgl64.Vec3{}, 0)
		assertBoneLengths3D(t, pos, lengths)
	}
}

func TestSolveChainConvergesOrExhaustsBudget(t *testing.T) {
	pos := []mgl64.Vec3{{0, 0, 0}, {0, 5, 0}, {1, 9, 0}, {3, 13, 0}}
	lengths := ChainLengths(pos)

	res := Solve3D(pos, lengths, mgl64.Vec3{6, 8, 3}, ChainOptions3D{Tolerance: 0.01})

	if !res.Converged && res.Iterations != DefaultMaxIterations {
		t.Errorf("stopped after %d iterations without converging", res.Iterations)
	}
	if res.Iterations > DefaultMaxIterations {
		t.Errorf("Iterations = %d exceeds budget", res.Iterations)
	}
	if res.Converged && res.Distance > 0.01 {
		t.Errorf("Converged with distance %v", res.Distance)
	}
}

func TestSolveChainRespectsIterationBudget(t *testing.T) {
	pos := []mgl64.Vec2{{0, 0}, {0, 10}, {10, 10}}
	res := Solve2D(pos, []float64{10, 10}, mgl64.Vec2{15, 0}, ChainOptions2D{
		MaxIterations: 1,
		Tolerance:     0,
	})
	if res.Iterations != 1 {
		t.Errorf("Iterations = %d, want 1", res.Iterations)
	}
}

func TestSolveChainAlreadyAtTarget(t *testing.T) {
	pos := []mgl64.Vec2{{0, 0}, {0, 10}, {10, 10}}
	res := Solve2D(pos, []float64{10, 10}, mgl64.Vec2{10, 10}, ChainOptions2D{Tolerance: 0.01})
	if res.Iterations != 0 || !res.Converged {
		t.Errorf("result = %+v, want 0 iterations and converged", res)
	}
	assertVec2(t, "joint1", pos[1], mgl64.Vec2{0, 10}, 0)
}

func TestSolveChainTargetAtRoot(t *testing.T) {
	pos := []mgl64.Vec2{{0, 0}, {0, 10}, {10, 10}}
	lengths := []float64{10, 10}

	Solve2D(pos, lengths, mgl64.Vec2{0, 0}, ChainOptions2D{})

	for i, p := range pos {
		if math.IsNaN(p.X()) || math.IsNaN(p.Y()) {
			t.Fatalf("joint %d is NaN", i)
		}
	}
	assertVec2(t, "root", pos[0], mgl64.Vec2{}, 0)
	assertBoneLengths2D(t, pos, lengths)
}

func TestSolveChainCoincidentJointsDoNotProduceNaN(t *testing.T) {
	// Joint 1 collapsed onto the root in the live pose.
	pos := []mgl64.Vec3{{0, 0, 0}, {0, 0, 0}, {0, 10, 0}}
	lengths := []float64{5, 5}

	Solve3D(pos, lengths, mgl64.Vec3{3, 3, 0}, ChainOptions3D{})

	for i, p := range pos {
		for k := 0; k < 3; k++ {
			if math.IsNaN(p[k]) || math.IsInf(p[k], 0) {
				t.Fatalf("joint %d component %d = %v", i, k, p[k])
			}
		}
	}
	assertBoneLengths3D(t, pos, lengths)
}

func TestSolveChainSingleJoint(t *testing.T) {
	pos := []mgl64.Vec2{{3, 4}}
	res := Solve2D(pos, nil, mgl64.Vec2{100, 100}, ChainOptions2D{})
	assertVec2(t, "root", pos[0], mgl64.Vec2{3, 4}, 0)
	if res.Iterations != 0 {
		t.Errorf("Iterations = %d, want 0", res.Iterations)
	}
}

func TestSolveChainLengthMismatchPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for mismatched lengths")
		}
	}()
	SolveChain([]mgl64.Vec2{{0, 0}, {1, 0}}, []float64{1, 1}, mgl64.Vec2{}, ChainOptions2D{})
}

// --- Constraints ---

func TestSolveChainConstraintCallback(t *testing.T) {
	pos := []mgl64.Vec2{{0, 0}, {0, 10}, {0, 20}, {0, 30}}
	lengths := ChainLengths(pos)
	limit := math.Pi / 8
	angles := []float64{-1, -1, limit, limit}

	var calls int
	constrain := ConeConstraints2D(angles)
	Solve2D(pos, lengths, mgl64.Vec2{15, 5}, ChainOptions2D{
		Constrain: func(i int, gp, p, q mgl64.Vec2) (mgl64.Vec2, bool) {
			calls++
			if i < 2 {
				t.Errorf("constraint called for joint %d", i)
			}
			return constrain(i, gp, p, q)
		},
	})

	if calls == 0 {
		t.Fatal("constraint callback never called")
	}
	assertVec2(t, "root", pos[0], mgl64.Vec2{}, 0)
	assertBoneLengths2D(t, pos, lengths)
	for i := 2; i < len(pos); i++ {
		axis := pos[i-1].Sub(pos[i-2]).Vec3(0)
		bone := pos[i].Sub(pos[i-1]).Vec3(0)
		if a := AngleBetween(axis, bone); a > limit+1e-6 {
			t.Errorf("joint %d bends %v rad, limit %v", i, a, limit)
		}
	}
}

func TestChainLengths(t *testing.T) {
	got := ChainLengths([]mgl64.Vec2{{0, 0}, {3, 4}, {3, 10}})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	assertNear(t, "l0", got[0], 5)
	assertNear(t, "l1", got[1], 6)
	if ChainLengths([]mgl64.Vec2{{1, 1}}) != nil {
		t.Error("single point should have no lengths")
	}
}
