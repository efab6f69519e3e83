package fabrik

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/sync/errgroup"
)

// SolverConfig holds optional Solver settings. The zero value is usable.
type SolverConfig struct {
	// MaxIterations bounds single-chain solves (DefaultMaxIterations if <= 0).
	MaxIterations int
	// TreeIterations bounds multi-effector solves (DefaultTreeIterations if <= 0).
	TreeIterations int
	// BoneAxis is the joint-local axis aimed at the next joint (DefaultBoneAxis if zero).
	BoneAxis mgl64.Vec3
	// ParentGlobal is the world transform above every top-level root joint (identity if zero).
	ParentGlobal mgl64.Mat4
	// ParentTransform, when set, returns the world transform of a chain
	// root's parent in the host hierarchy. Without it that parent is taken as
	// unrotated at its frame position, since a Frame carries no orientation.
	ParentTransform func(parent JointID) mgl64.Mat4
	// Parallel > 1 solves independent graphs concurrently, at most Parallel at once.
	Parallel int
	// Log receives warnings and debug stats. Defaults to os.Stderr.
	Log io.Writer
}

// ChainReport is the outcome of solving one graph this frame.
type ChainReport struct {
	Root       JointID
	Chain      bool // solved with the single-chain engine
	Iterations int
	Converged  bool
	Effectors  []EffectorResult
	Err        error // set when the graph was skipped this frame
}

// Output is everything a Solve produced.
type Output struct {
	// Transforms holds parent-relative transforms for every joint of every
	// solved graph, each graph root to leaf, graphs in cache order. Each joint
	// appears once: where graphs overlap, the later graph in cache order
	// replaces the earlier entry in place.
	Transforms []JointTransform
	Reports    []ChainReport
	// Skipped lists effectors whose chain could not be built this frame.
	Skipped []EffectorError
}

// Solver is the top-level object that owns the cached IK graphs and runs
// snapshot, iteration and pose writing for every rig in a frame.
//
// Topology is cached per root the first time an effector is seen. Re-parenting
// joints afterwards is not detected; call Invalidate or Reset after changing
// the hierarchy.
type Solver struct {
	cfg SolverConfig
	log io.Writer

	graphs []*Graph
	byRoot map[JointID]*Graph
	// effector id → descriptor used to build its graph
	known map[JointID]EndEffector
	// effector id → root of the graph that contains it
	owner map[JointID]JointID

	warned map[string]bool
	debug  bool
}

// NewSolver creates a solver with an empty graph cache.
func NewSolver(cfg SolverConfig) *Solver {
	s := &Solver{
		cfg:    cfg,
		log:    cfg.Log,
		byRoot: make(map[JointID]*Graph),
		known:  make(map[JointID]EndEffector),
		owner:  make(map[JointID]JointID),
		warned: make(map[string]bool),
	}
	if s.log == nil {
		s.log = os.Stderr
	}
	return s
}

// Graphs returns the cached graphs. The returned slice MUST NOT be mutated.
func (s *Solver) Graphs() []*Graph {
	return s.graphs
}

// Graph returns the cached graph rooted at root.
func (s *Solver) Graph(root JointID) (*Graph, bool) {
	g, ok := s.byRoot[root]
	return g, ok
}

// Invalidate drops the cached graph rooted at root. Its effectors are
// rebuilt from the hierarchy on the next Solve.
func (s *Solver) Invalidate(root JointID) {
	if _, ok := s.byRoot[root]; !ok {
		return
	}
	delete(s.byRoot, root)
	for i, g := range s.graphs {
		if g.Root() == root {
			s.graphs = append(s.graphs[:i], s.graphs[i+1:]...)
			break
		}
	}
	for eff, r := range s.owner {
		if r == root {
			delete(s.owner, eff)
			delete(s.known, eff)
		}
	}
}

// Reset drops every cached graph.
func (s *Solver) Reset() {
	s.graphs = nil
	s.byRoot = make(map[JointID]*Graph)
	s.known = make(map[JointID]EndEffector)
	s.owner = make(map[JointID]JointID)
	s.warned = make(map[string]bool)
}

// Solve runs one frame. Graphs are built for effectors not seen before,
// every graph with at least one effector in the frame is solved, and the
// resulting parent-relative transforms are returned. A failure in one chain,
// including a broken hierarchy on its walk to the root, is reported and
// logged without affecting the others. The returned error is non-nil only
// for a nil frame.
func (s *Solver) Solve(frame *Frame) (Output, error) {
	if frame == nil {
		return Output{}, ErrNilFrame
	}
	var stats debugStats
	var t0 time.Time
	if s.debug {
		t0 = time.Now()
	}
	for _, c := range frame.Constraints {
		if err := c.Validate(); err != nil {
			s.warnOnce(err.Error(), "ignoring constraint: %v", err)
		}
	}

	idx := frame.lookup()
	var out Output
	out.Skipped = s.discover(frame, idx)

	if s.debug {
		stats.buildTime = time.Since(t0)
		t0 = time.Now()
	}

	targets := make(map[JointID][]EndEffector)
	for _, e := range frame.Effectors {
		if root, ok := s.owner[e.Joint]; ok {
			targets[root] = append(targets[root], e)
		}
	}
	var work []*Graph
	var parents []mgl64.Mat4
	for _, g := range s.graphs {
		if len(targets[g.Root()]) > 0 {
			work = append(work, g)
			parents = append(parents, s.rootParent(frame, idx, g.Root()))
		}
	}

	positions := frame.Positions()
	results := make([]graphResult, len(work))
	solveOne := func(k int) {
		g := work[k]
		results[k] = s.solveGraph(g, positions, targets[g.Root()], frame.Constraints, parents[k])
	}
	if s.cfg.Parallel > 1 && len(work) > 1 {
		var eg errgroup.Group
		eg.SetLimit(s.cfg.Parallel)
		for k := range work {
			eg.Go(func() error {
				solveOne(k)
				return nil
			})
		}
		_ = eg.Wait()
	} else {
		for k := range work {
			solveOne(k)
		}
	}

	slot := make(map[JointID]int)
	for _, r := range results {
		out.Reports = append(out.Reports, r.report)
		for _, tr := range r.transforms {
			if k, ok := slot[tr.Joint]; ok {
				out.Transforms[k] = tr
				s.warnOnce(fmt.Sprintf("overlap %d", tr.Joint),
					"joint %d is in more than one chain; using the chain rooted at %d", tr.Joint, r.report.Root)
				continue
			}
			slot[tr.Joint] = len(out.Transforms)
			out.Transforms = append(out.Transforms, tr)
		}
		if r.report.Err != nil {
			s.warnOnce(r.report.Err.Error(), "skipping chain rooted at %d: %v", r.report.Root, r.report.Err)
		}
		stats.iterations += r.report.Iterations
		if !r.report.Converged {
			stats.unconverged++
		}
	}

	if s.debug {
		stats.solveTime = time.Since(t0)
		stats.graphCount = len(work)
		stats.jointCount = len(out.Transforms)
		s.debugLog(stats)
	}
	return out, nil
}

// discover builds graphs for effectors that are not yet cached, merging them
// into any graph that already owns their root. A cached effector that no
// longer builds during such a merge is dropped from the cache and retried
// like a new one on later frames.
func (s *Solver) discover(frame *Frame, idx frameIndex) []EffectorError {
	var fresh []EndEffector
	for _, e := range frame.Effectors {
		if _, ok := s.owner[e.Joint]; !ok {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	var skipped []EffectorError
	rebuild := make(map[JointID][]EndEffector)
	var order []JointID
	for _, e := range fresh {
		path, err := ancestorWalk(frame, idx, e)
		if err == nil {
			err = checkBones(frame, idx, path)
		}
		if err != nil {
			ee := EffectorError{Effector: e.Joint, Err: err}
			skipped = append(skipped, ee)
			s.warnOnce(ee.Error(), "skipping %v", ee)
			continue
		}
		root := path[len(path)-1]
		if _, ok := rebuild[root]; !ok {
			order = append(order, root)
			if g, ok := s.byRoot[root]; ok {
				for _, eff := range g.Effectors() {
					rebuild[root] = append(rebuild[root], s.known[eff])
				}
			}
		}
		rebuild[root] = append(rebuild[root], e)
	}

	for _, root := range order {
		graphs, errs := BuildGraph(frame, rebuild[root]...)
		for _, ee := range errs {
			skipped = append(skipped, ee)
			s.warnOnce(ee.Error(), "skipping %v", ee)
		}
		if _, cached := s.byRoot[root]; cached && !rootedAt(graphs, root) {
			s.Invalidate(root)
		}
		for _, e := range rebuild[root] {
			delete(s.owner, e.Joint)
			delete(s.known, e.Joint)
		}
		for _, g := range graphs {
			s.store(g)
			for _, e := range rebuild[root] {
				if g.HasEffector(e.Joint) {
					s.known[e.Joint] = e
					s.owner[e.Joint] = g.Root()
				}
			}
		}
	}
	return skipped
}

func rootedAt(graphs []*Graph, root JointID) bool {
	for _, g := range graphs {
		if g.Root() == root {
			return true
		}
	}
	return false
}

// store replaces or appends a graph in the cache, keeping cache order stable.
func (s *Solver) store(g *Graph) {
	root := g.Root()
	if _, ok := s.byRoot[root]; ok {
		for i := range s.graphs {
			if s.graphs[i].Root() == root {
				s.graphs[i] = g
			}
		}
	} else {
		s.graphs = append(s.graphs, g)
	}
	s.byRoot[root] = g
}

// rootParent returns the world transform above a graph's root: the host's
// transform for its parent joint, or ParentGlobal for a top-level root.
func (s *Solver) rootParent(frame *Frame, idx frameIndex, root JointID) mgl64.Mat4 {
	i, err := idx.at(root)
	if err != nil {
		return s.cfg.ParentGlobal
	}
	parent := frame.Joints[i].Parent
	if parent == NoJoint {
		return s.cfg.ParentGlobal
	}
	if s.cfg.ParentTransform != nil {
		return s.cfg.ParentTransform(parent)
	}
	pi, err := idx.at(parent)
	if err != nil {
		return s.cfg.ParentGlobal
	}
	p := frame.Joints[pi].Position
	return mgl64.Translate3D(p.X(), p.Y(), p.Z())
}

type graphResult struct {
	report     ChainReport
	transforms []JointTransform
}

// solveGraph snapshots, solves and writes one graph. It touches only
// chain-local state, so calls for different graphs may run concurrently.
func (s *Solver) solveGraph(g *Graph, src PositionSource, targets []EndEffector, constraints []JointConstraint, parentGlobal mgl64.Mat4) graphResult {
	report := ChainReport{Root: g.Root()}
	snap, err := TakeSnapshot(g, src)
	if err != nil {
		report.Err = err
		return graphResult{report: report}
	}
	angles := g.ConstraintAngles(constraints)

	if g.IsChain() {
		report.Chain = true
		eff := targets[0]
		tip := g.Joint(g.effectors[0])
		for _, t := range targets {
			if t.Joint == tip {
				eff = t
			}
		}
		r := SolveChain(snap.Positions, g.lengths[1:], eff.Target, ChainOptions3D{
			MaxIterations: s.cfg.MaxIterations,
			Tolerance:     eff.tolerance(),
			Constrain:     ConeConstraints3D(angles),
		})
		report.Iterations = r.Iterations
		report.Converged = r.Converged
		report.Effectors = []EffectorResult{{
			Effector:  eff.Joint,
			Distance:  r.Distance,
			Reachable: r.Reachable,
			Converged: r.Converged,
		}}
	} else {
		r := SolveTree(g, &snap, targets, TreeOptions{
			MaxIterations: s.cfg.TreeIterations,
			Constraints:   angles,
		})
		report.Iterations = r.Iterations
		report.Converged = r.Converged
		report.Effectors = r.Effectors
	}

	transforms := WritePose(g, snap.Positions, PoseOptions{
		BoneAxis:     s.cfg.BoneAxis,
		ParentGlobal: parentGlobal,
	})
	return graphResult{report: report, transforms: transforms}
}
