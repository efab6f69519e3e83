package fabrik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// fallbackUp is the last-resort bone direction when a joint and its
// neighbour coincide and no previous direction is known.
var fallbackUp = mgl64.Vec3{0, 1, 0}

// TreeOptions configures SolveTree.
type TreeOptions struct {
	// MaxIterations bounds the sweep pairs. Zero or negative selects
	// DefaultTreeIterations.
	MaxIterations int

	// Constraints holds a cone half-angle per arena index, as produced by
	// Graph.ConstraintAngles. Negative entries and a nil slice mean free.
	Constraints []float64
}

// EffectorResult is the per-effector outcome of a tree solve.
type EffectorResult struct {
	Effector  JointID
	Distance  float64
	Reachable bool
	Converged bool
}

// TreeResult describes how a tree solve ended.
type TreeResult struct {
	Iterations int
	Converged  bool // every targeted effector is within its tolerance
	Effectors  []EffectorResult
}

// SolveTree runs multi-effector FABRIK over g, updating snap.Positions in
// place. Each effector in targets that belongs to g is pulled toward its
// target; graph effectors without a target are left free. Sub-base joints
// take the centroid of the positions their children demand in the forward
// pass. The root is pinned in the backward pass, where cone constraints are
// applied.
func SolveTree(g *Graph, snap *Snapshot, targets []EndEffector, opts TreeOptions) TreeResult {
	ts := newTreeSolver(g, snap, targets, opts)
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultTreeIterations
	}

	var res TreeResult
	res.Converged = ts.converged()
	for !res.Converged && res.Iterations < maxIter {
		ts.remember()
		ts.forward()
		ts.backward()
		res.Iterations++
		res.Converged = ts.converged()
	}

	for _, i := range ts.goals {
		id := g.ids[i]
		d := distance(ts.pos[i], ts.target[i])
		res.Effectors = append(res.Effectors, EffectorResult{
			Effector:  id,
			Distance:  d,
			Reachable: distance(ts.rootPos, ts.target[i]) <= g.TotalLength(id),
			Converged: d <= ts.tol[i],
		})
	}
	return res
}

type treeSolver struct {
	g       *Graph
	pos     []mgl64.Vec3
	prev    []mgl64.Vec3
	rootPos mgl64.Vec3

	pinned []bool
	target []mgl64.Vec3
	tol    []float64
	goals  []int  // arena indices of targeted effectors
	active []bool // subtree contains a targeted effector

	angles  []float64
	demands []mgl64.Vec3
}

func newTreeSolver(g *Graph, snap *Snapshot, targets []EndEffector, opts TreeOptions) *treeSolver {
	n := g.Len()
	ts := &treeSolver{
		g:       g,
		pos:     snap.Positions,
		prev:    make([]mgl64.Vec3, n),
		rootPos: snap.Positions[0],
		pinned:  make([]bool, n),
		target:  make([]mgl64.Vec3, n),
		tol:     make([]float64, n),
		active:  make([]bool, n),
		angles:  opts.Constraints,
	}
	for _, e := range targets {
		i, ok := g.index[e.Joint]
		if !ok || !g.HasEffector(e.Joint) || ts.pinned[i] {
			continue
		}
		ts.pinned[i] = true
		ts.target[i] = e.Target
		ts.tol[i] = e.tolerance()
		ts.goals = append(ts.goals, i)
	}
	for _, i := range g.postOrder {
		if ts.pinned[i] {
			ts.active[i] = true
		}
		if p := g.parent[i]; p >= 0 && ts.active[i] {
			ts.active[p] = true
		}
	}
	return ts
}

func (ts *treeSolver) remember() {
	copy(ts.prev, ts.pos)
}

func (ts *treeSolver) converged() bool {
	for _, i := range ts.goals {
		if distance(ts.pos[i], ts.target[i]) > ts.tol[i] {
			return false
		}
	}
	return true
}

// forward sweeps leaf to root. Targeted effectors snap to their targets;
// every other joint with targeted descendants moves to the mean of the
// positions its active children demand.
func (ts *treeSolver) forward() {
	g := ts.g
	for _, i := range g.postOrder {
		if ts.pinned[i] {
			ts.pos[i] = ts.target[i]
			continue
		}
		if !ts.active[i] {
			continue
		}
		ts.demands = ts.demands[:0]
		for _, c := range g.children[i] {
			if !ts.active[c] {
				continue
			}
			fallback := unitOr(ts.prev[i].Sub(ts.prev[c]), fallbackUp.Mul(-1))
			ts.demands = append(ts.demands, placeAt(ts.pos[c], ts.pos[i], g.lengths[c], fallback))
		}
		ts.pos[i] = centroid(ts.demands)
	}
}

// backward sweeps root to leaf, restoring every bone length from the pinned
// root outward and applying cone constraints.
func (ts *treeSolver) backward() {
	g := ts.g
	ts.pos[0] = ts.rootPos
	for _, i := range g.preOrder[1:] {
		p := g.parent[i]
		fallback := unitOr(ts.prev[i].Sub(ts.prev[p]), fallbackUp)
		q := placeAt(ts.pos[p], ts.pos[i], g.lengths[i], fallback)
		if gp := g.parent[p]; gp >= 0 && i < len(ts.angles) && ts.angles[i] >= 0 {
			if c, ok := ConstrainCone(ts.pos[gp], ts.pos[p], q, ts.angles[i]); ok {
				q = c
			}
		}
		ts.pos[i] = q
	}
}

// maxBoneError returns the largest deviation of any bone from its rest
// length. Used by tests and debug stats.
func maxBoneError(g *Graph, pos []mgl64.Vec3) float64 {
	worst := 0.0
	for i := 1; i < g.Len(); i++ {
		d := math.Abs(distance(pos[g.parent[i]], pos[i]) - g.lengths[i])
		if d > worst {
			worst = d
		}
	}
	return worst
}
