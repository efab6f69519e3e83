package fabrik

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
)

// PositionSource supplies live world-space joint positions. It is read
// once per solve and never written.
type PositionSource interface {
	WorldPosition(id JointID) (mgl64.Vec3, bool)
}

// PositionMap is a map-backed PositionSource.
type PositionMap map[JointID]mgl64.Vec3

// WorldPosition implements PositionSource.
func (m PositionMap) WorldPosition(id JointID) (mgl64.Vec3, bool) {
	p, ok := m[id]
	return p, ok
}

// Positions indexes the frame's joints by id.
func (f *Frame) Positions() PositionMap {
	m := make(PositionMap, len(f.Joints))
	for _, j := range f.Joints {
		m[j.ID] = j.Position
	}
	return m
}

// Snapshot is a chain-local working copy of joint positions for one graph,
// indexed by the graph's arena index. Solvers mutate Positions in place;
// the host's own data is never touched.
type Snapshot struct {
	Positions []mgl64.Vec3

	graph  *Graph
	totals []float64 // per graph effector, in Graph.Effectors order
}

// TakeSnapshot reads the current position of every joint in g.
func TakeSnapshot(g *Graph, src PositionSource) (Snapshot, error) {
	s := Snapshot{
		Positions: make([]mgl64.Vec3, g.Len()),
		graph:     g,
		totals:    make([]float64, len(g.effectors)),
	}
	for i, id := range g.ids {
		p, ok := src.WorldPosition(id)
		if !ok {
			return Snapshot{}, fmt.Errorf("joint %d: %w", id, ErrMissingJoint)
		}
		s.Positions[i] = p
	}
	for k, e := range g.effectors {
		s.totals[k] = g.TotalLength(g.ids[e])
	}
	return s, nil
}

// TotalLength returns the sum of bone lengths from the root to the given
// effector, or 0 if it is not an effector of the snapshot's graph.
func (s Snapshot) TotalLength(effector JointID) float64 {
	if s.graph == nil {
		return 0
	}
	i, ok := s.graph.index[effector]
	if !ok {
		return 0
	}
	for k, e := range s.graph.effectors {
		if e == i {
			return s.totals[k]
		}
	}
	return 0
}

// Position returns the snapshot position of a joint id.
func (s Snapshot) Position(id JointID) (mgl64.Vec3, bool) {
	if s.graph == nil {
		return mgl64.Vec3{}, false
	}
	i, ok := s.graph.index[id]
	if !ok {
		return mgl64.Vec3{}, false
	}
	return s.Positions[i], true
}

// Clone returns a copy whose Positions can be mutated independently.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.Positions = append([]mgl64.Vec3(nil), s.Positions...)
	return c
}
