package fabrik

import "fmt"

// Graph is the cached topology of one IK rig: an arena of joints indexed by
// int, rooted at index 0, with each edge weighted by its rest bone length.
// A Graph is immutable after construction and safe to share between
// goroutines; all per-solve state lives in a Snapshot.
type Graph struct {
	ids       []JointID
	index     map[JointID]int
	parent    []int // -1 for the root
	children  [][]int
	lengths   []float64 // rest length of the bone to the parent; 0 for the root
	effectors []int

	preOrder  []int
	postOrder []int
}

// Root returns the id of the graph's root joint.
func (g *Graph) Root() JointID { return g.ids[0] }

// Len returns the number of joints in the graph.
func (g *Graph) Len() int { return len(g.ids) }

// Joint returns the id of the joint at index i.
func (g *Graph) Joint(i int) JointID { return g.ids[i] }

// Index returns the arena index of a joint id.
func (g *Graph) Index(id JointID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Parent returns the parent index of i, or -1 for the root.
func (g *Graph) Parent(i int) int { return g.parent[i] }

// Children returns the child indices of i. The returned slice MUST NOT be mutated.
func (g *Graph) Children(i int) []int { return g.children[i] }

// BoneLength returns the rest length of the bone from i to its parent.
func (g *Graph) BoneLength(i int) float64 { return g.lengths[i] }

// Effectors returns the end-effector joint ids in build order.
func (g *Graph) Effectors() []JointID {
	out := make([]JointID, len(g.effectors))
	for k, i := range g.effectors {
		out[k] = g.ids[i]
	}
	return out
}

// HasEffector reports whether id is one of the graph's end effectors.
func (g *Graph) HasEffector(id JointID) bool {
	i, ok := g.index[id]
	if !ok {
		return false
	}
	for _, e := range g.effectors {
		if e == i {
			return true
		}
	}
	return false
}

// IsChain reports whether the graph is a single unbranched chain whose only
// end effector is its tip.
func (g *Graph) IsChain() bool {
	if len(g.effectors) != 1 {
		return false
	}
	for i := range g.children {
		if len(g.children[i]) > 1 {
			return false
		}
	}
	return len(g.children[g.effectors[0]]) == 0
}

// PreOrder returns joint indices with every parent before its children.
// The returned slice MUST NOT be mutated.
func (g *Graph) PreOrder() []int { return g.preOrder }

// PostOrder returns joint indices with every child before its parent.
// The returned slice MUST NOT be mutated.
func (g *Graph) PostOrder() []int { return g.postOrder }

// ChainTo returns the joint indices from the root to id, inclusive.
func (g *Graph) ChainTo(id JointID) ([]int, bool) {
	i, ok := g.index[id]
	if !ok {
		return nil, false
	}
	var path []int
	for ; i >= 0; i = g.parent[i] {
		path = append(path, i)
	}
	for l, r := 0, len(path)-1; l < r; l, r = l+1, r-1 {
		path[l], path[r] = path[r], path[l]
	}
	return path, true
}

// TotalLength returns the sum of rest bone lengths from the root to id.
func (g *Graph) TotalLength(id JointID) float64 {
	i, ok := g.index[id]
	if !ok {
		return 0
	}
	total := 0.0
	for ; i > 0; i = g.parent[i] {
		total += g.lengths[i]
	}
	return total
}

// ConstraintAngles maps constraints onto arena indices. Joints without a
// constraint, and constraints on joints outside the graph, are reported as -1.
func (g *Graph) ConstraintAngles(constraints []JointConstraint) []float64 {
	angles := make([]float64, len(g.ids))
	for i := range angles {
		angles[i] = -1
	}
	for _, c := range constraints {
		if i, ok := g.index[c.Joint]; ok && c.Validate() == nil {
			angles[i] = c.Angle
		}
	}
	return angles
}

// --- Building ---

// BuildChain walks from the effector toward the root, bounded by
// eff.BoneCount or ending at the nearest joint marked Root, and returns the
// resulting single-chain graph. Rest lengths are taken from the positions
// in frame. Only the joints on the walk are checked, so faults elsewhere in
// the frame do not affect the result.
func BuildChain(frame *Frame, eff EndEffector) (*Graph, error) {
	idx := frame.lookup()
	path, err := ancestorWalk(frame, idx, eff)
	if err != nil {
		return nil, err
	}
	b := newGraphBuilder(path[len(path)-1])
	if err := b.addPath(frame, idx, path); err != nil {
		return nil, err
	}
	return b.finish(), nil
}

// BuildGraph builds one graph per distinct root. Effector walks that end at
// the same root are merged into a single tree. An effector whose walk fails
// is reported in the returned errors and left out; the others are unaffected.
// That includes hierarchy faults (duplicate ids, missing parents, cycles) on
// the effector's own walk. Graphs are returned in order of first appearance
// of their root.
func BuildGraph(frame *Frame, effectors ...EndEffector) ([]*Graph, []EffectorError) {
	idx := frame.lookup()
	var (
		builders []*graphBuilder
		byRoot   = make(map[JointID]*graphBuilder)
		errs     []EffectorError
	)
	for _, eff := range effectors {
		path, err := ancestorWalk(frame, idx, eff)
		if err == nil {
			err = checkBones(frame, idx, path)
		}
		if err != nil {
			errs = append(errs, EffectorError{Effector: eff.Joint, Err: err})
			continue
		}
		root := path[len(path)-1]
		b, ok := byRoot[root]
		if !ok {
			b = newGraphBuilder(root)
			byRoot[root] = b
			builders = append(builders, b)
		}
		// checkBones already rejected the only failure addPath reports.
		_ = b.addPath(frame, idx, path)
	}

	graphs := make([]*Graph, len(builders))
	for i, b := range builders {
		graphs[i] = b.finish()
	}
	return graphs, errs
}

// ancestorWalk returns joint ids from the effector up to its chain root.
// Every joint on the walk, and every ancestor above the chain root, is
// checked for duplicate ids, missing parents and cycles.
func ancestorWalk(frame *Frame, idx frameIndex, eff EndEffector) ([]JointID, error) {
	i, err := idx.at(eff.Joint)
	if err != nil {
		return nil, fmt.Errorf("effector %d: %w", eff.Joint, err)
	}
	cur := frame.Joints[i]
	path := []JointID{cur.ID}
	for steps := 0; ; steps++ {
		if eff.BoneCount > 0 && steps == eff.BoneCount {
			break
		}
		if eff.BoneCount <= 0 && steps > 0 && cur.Root {
			break
		}
		if cur.Parent == NoJoint {
			if eff.BoneCount > 0 {
				return nil, fmt.Errorf("effector %d: hierarchy ends after %d of %d bones: %w",
					eff.Joint, steps, eff.BoneCount, ErrNoRoot)
			}
			return nil, fmt.Errorf("effector %d: no ancestor marked as root: %w", eff.Joint, ErrNoRoot)
		}
		i, err := idx.at(cur.Parent)
		if err != nil {
			return nil, fmt.Errorf("effector %d: parent %d of joint %d: %w", eff.Joint, cur.Parent, cur.ID, err)
		}
		if containsJoint(path, cur.Parent) {
			return nil, fmt.Errorf("effector %d: joint %d: %w", eff.Joint, cur.Parent, ErrCycle)
		}
		cur = frame.Joints[i]
		path = append(path, cur.ID)
	}
	if err := checkAbove(frame, idx, path); err != nil {
		return nil, fmt.Errorf("effector %d: %w", eff.Joint, err)
	}
	return path, nil
}

// checkAbove follows parents from the chain root to the top of the host
// hierarchy and rejects a walk that loops back on itself. Ancestors missing
// from the frame end the check; the chain does not depend on them.
func checkAbove(frame *Frame, idx frameIndex, path []JointID) error {
	seen := make(map[JointID]bool, len(path))
	for _, id := range path {
		seen[id] = true
	}
	cur := frame.Joints[idx[path[len(path)-1]]]
	for cur.Parent != NoJoint {
		if seen[cur.Parent] {
			return fmt.Errorf("joint %d: %w", cur.Parent, ErrCycle)
		}
		i, err := idx.at(cur.Parent)
		if err != nil {
			return nil
		}
		seen[cur.Parent] = true
		cur = frame.Joints[i]
	}
	return nil
}

func containsJoint(path []JointID, id JointID) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}

// checkBones rejects walks containing a bone with zero rest length.
func checkBones(frame *Frame, idx frameIndex, path []JointID) error {
	for k := 0; k+1 < len(path); k++ {
		a := frame.Joints[idx[path[k]]].Position
		b := frame.Joints[idx[path[k+1]]].Position
		if distance(a, b) < Epsilon {
			return fmt.Errorf("bone %d-%d: %w", path[k+1], path[k], ErrZeroLengthBone)
		}
	}
	return nil
}

type graphBuilder struct {
	g *Graph
}

func newGraphBuilder(root JointID) *graphBuilder {
	g := &Graph{index: make(map[JointID]int)}
	g.addNode(root, -1, 0)
	return &graphBuilder{g: g}
}

// addPath merges an effector→root walk into the graph.
func (b *graphBuilder) addPath(frame *Frame, idx frameIndex, path []JointID) error {
	if err := checkBones(frame, idx, path); err != nil {
		return err
	}
	g := b.g
	parent := 0
	for k := len(path) - 2; k >= 0; k-- {
		id := path[k]
		if i, ok := g.index[id]; ok {
			parent = i
			continue
		}
		pos := frame.Joints[idx[id]].Position
		parentPos := frame.Joints[idx[g.ids[parent]]].Position
		parent = g.addNode(id, parent, distance(parentPos, pos))
	}
	eff := g.index[path[0]]
	for _, e := range g.effectors {
		if e == eff {
			return nil
		}
	}
	g.effectors = append(g.effectors, eff)
	return nil
}

func (g *Graph) addNode(id JointID, parent int, length float64) int {
	i := len(g.ids)
	g.ids = append(g.ids, id)
	g.index[id] = i
	g.parent = append(g.parent, parent)
	g.children = append(g.children, nil)
	g.lengths = append(g.lengths, length)
	if parent >= 0 {
		g.children[parent] = append(g.children[parent], i)
	}
	return i
}

// finish computes the traversal orders and returns the graph.
func (b *graphBuilder) finish() *Graph {
	g := b.g
	n := len(g.ids)

	g.preOrder = make([]int, 0, n)
	stack := []int{0}
	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		g.preOrder = append(g.preOrder, i)
		kids := g.children[i]
		for k := len(kids) - 1; k >= 0; k-- {
			stack = append(stack, kids[k])
		}
	}

	type frame struct{ node, next int }
	g.postOrder = make([]int, 0, n)
	walk := []frame{{node: 0}}
	for len(walk) > 0 {
		top := &walk[len(walk)-1]
		if top.next < len(g.children[top.node]) {
			child := g.children[top.node][top.next]
			top.next++
			walk = append(walk, frame{node: child})
			continue
		}
		g.postOrder = append(g.postOrder, top.node)
		walk = walk[:len(walk)-1]
	}
	return g
}
