package fabrik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// ChainOptions configures SolveChain.
type ChainOptions[V Vector[V]] struct {
	// MaxIterations bounds the forward/backward sweep pairs.
	// Zero or negative selects DefaultMaxIterations.
	MaxIterations int

	// Tolerance is the accepted distance between tip and target.
	// Negative selects DefaultTolerance; zero demands an exact hit.
	Tolerance float64

	// Constrain, when set, is called during the backward pass for every
	// joint i >= 2 after it has been placed. It receives the grandparent,
	// the parent and the proposed position of joint i and returns a
	// corrected position, or false to keep the proposal.
	Constrain func(i int, grandparent, parent, proposed V) (V, bool)
}

func (o ChainOptions[V]) maxIterations() int {
	if o.MaxIterations <= 0 {
		return DefaultMaxIterations
	}
	return o.MaxIterations
}

func (o ChainOptions[V]) tolerance() float64 {
	if o.Tolerance < 0 || math.IsNaN(o.Tolerance) {
		return DefaultTolerance
	}
	return o.Tolerance
}

// ChainResult describes how a solve ended. Not converging is not an error:
// the positions hold the best pose found within the iteration budget.
type ChainResult struct {
	Iterations int
	Reachable  bool
	Converged  bool
	Distance   float64 // final tip-to-target distance
}

// ChainOptions2D and ChainOptions3D name the two concrete option types.
type (
	ChainOptions2D = ChainOptions[mgl64.Vec2]
	ChainOptions3D = ChainOptions[mgl64.Vec3]
)

// SolveChain runs FABRIK on a single chain, updating positions in place.
// positions[0] is the root and is never moved; positions[len-1] is the tip.
// lengths[i] is the rest length of the bone between positions[i] and
// positions[i+1], so len(lengths) must be len(positions)-1.
//
// A target farther from the root than the total chain length is not
// iterated on: the chain is laid out straight from the root toward it.
func SolveChain[V Vector[V]](positions []V, lengths []float64, target V, opts ChainOptions[V]) ChainResult {
	n := len(positions)
	if n == 0 {
		return ChainResult{}
	}
	if len(lengths) != n-1 {
		panic("fabrik: SolveChain needs exactly one length per bone")
	}
	tol := opts.tolerance()
	tip := n - 1
	root := positions[0]

	total := 0.0
	for _, l := range lengths {
		total += l
	}

	var zero V
	toTarget, _ := direction(root, target, zero)

	res := ChainResult{Reachable: distance(root, target) <= total}
	if !res.Reachable {
		for i := 1; i < n; i++ {
			positions[i] = positions[i-1].Add(toTarget.Mul(lengths[i-1]))
		}
		res.Distance = distance(positions[tip], target)
		return res
	}

	prev := make([]V, n)
	maxIter := opts.maxIterations()
	res.Distance = distance(positions[tip], target)
	for res.Distance > tol && res.Iterations < maxIter {
		copy(prev, positions)

		// Forward: pin the tip to the target and pull each joint toward it.
		positions[tip] = target
		for i := tip - 1; i >= 0; i-- {
			fallback := unitOr(prev[i].Sub(prev[i+1]), toTarget.Mul(-1))
			positions[i] = placeAt(positions[i+1], positions[i], lengths[i], fallback)
		}

		// Backward: re-anchor the root and push each joint back out.
		positions[0] = root
		for i := 1; i < n; i++ {
			fallback := unitOr(prev[i].Sub(prev[i-1]), toTarget)
			p := placeAt(positions[i-1], positions[i], lengths[i-1], fallback)
			if opts.Constrain != nil && i >= 2 {
				if c, ok := opts.Constrain(i, positions[i-2], positions[i-1], p); ok {
					p = c
				}
			}
			positions[i] = p
		}

		res.Iterations++
		res.Distance = distance(positions[tip], target)
	}
	res.Converged = res.Distance <= tol
	return res
}

// Solve2D runs SolveChain on planar positions.
func Solve2D(positions []mgl64.Vec2, lengths []float64, target mgl64.Vec2, opts ChainOptions2D) ChainResult {
	return SolveChain(positions, lengths, target, opts)
}

// Solve3D runs SolveChain on spatial positions.
func Solve3D(positions []mgl64.Vec3, lengths []float64, target mgl64.Vec3, opts ChainOptions3D) ChainResult {
	return SolveChain(positions, lengths, target, opts)
}

// ConeConstraints3D adapts per-joint cone angles to ChainOptions.Constrain.
// angles[i] applies to the bone ending at joint i; a negative angle or an
// index past the end of angles leaves the joint free.
func ConeConstraints3D(angles []float64) func(int, mgl64.Vec3, mgl64.Vec3, mgl64.Vec3) (mgl64.Vec3, bool) {
	return func(i int, grandparent, parent, proposed mgl64.Vec3) (mgl64.Vec3, bool) {
		if i >= len(angles) || angles[i] < 0 {
			return proposed, false
		}
		return ConstrainCone(grandparent, parent, proposed, angles[i])
	}
}

// ConeConstraints2D is the planar form of ConeConstraints3D.
func ConeConstraints2D(angles []float64) func(int, mgl64.Vec2, mgl64.Vec2, mgl64.Vec2) (mgl64.Vec2, bool) {
	return func(i int, grandparent, parent, proposed mgl64.Vec2) (mgl64.Vec2, bool) {
		if i >= len(angles) || angles[i] < 0 {
			return proposed, false
		}
		return ConstrainCone2D(grandparent, parent, proposed, angles[i])
	}
}

// ChainLengths returns the distances between consecutive positions, the
// form SolveChain expects for rest lengths.
func ChainLengths[V Vector[V]](positions []V) []float64 {
	if len(positions) < 2 {
		return nil
	}
	out := make([]float64, len(positions)-1)
	for i := range out {
		out[i] = distance(positions[i], positions[i+1])
	}
	return out
}
