// Package ecs provides Donburi components and a system for fabrik.
package ecs

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/phanxgames/fabrik"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"
	"github.com/yohamta/donburi/filter"
	"github.com/yohamta/donburi/query"
)

// JointData is one joint of an IK rig. Position is in world space and is
// read, never written, by the system.
type JointData struct {
	Parent   donburi.Entity // donburi.Null for a top-level joint
	Position mgl64.Vec3
	Root     bool
}

// EffectorData makes a joint an end effector.
type EffectorData struct {
	Target    mgl64.Vec3
	Tolerance float64 // negative selects fabrik.DefaultTolerance
	BoneCount int     // 0 walks to the nearest Root joint
}

// ConstraintData limits the bone ending at a joint to a cone of half-angle
// Angle radians around its parent bone.
type ConstraintData struct {
	Angle float64
}

// Components.
var (
	Joint          = donburi.NewComponentType[JointData]()
	Effector       = donburi.NewComponentType[EffectorData]()
	Constraint     = donburi.NewComponentType[ConstraintData]()
	LocalTransform = donburi.NewComponentType[fabrik.JointTransform]()
)

// SolveEventType is the Donburi event type for per-rig solve reports.
// Subscribe to it to react to unconverged or skipped chains.
var SolveEventType = events.NewEventType[fabrik.ChainReport]()

// SkipEventType is published for every end effector whose chain could not
// be built this Update, for example because a joint on its way to the root
// was destroyed or the hierarchy loops.
var SkipEventType = events.NewEventType[fabrik.EffectorError]()

// NewJoint creates a joint entity.
func NewJoint(w donburi.World, parent donburi.Entity, pos mgl64.Vec3, root bool) donburi.Entity {
	e := w.Create(Joint)
	Joint.SetValue(w.Entry(e), JointData{Parent: parent, Position: pos, Root: root})
	return e
}

// SetEffector adds or replaces the end effector on a joint entity.
func SetEffector(w donburi.World, e donburi.Entity, eff EffectorData) {
	entry := w.Entry(e)
	if !entry.HasComponent(Effector) {
		entry.AddComponent(Effector)
	}
	Effector.SetValue(entry, eff)
}

// SetConstraint adds or replaces the cone limit on a joint entity.
func SetConstraint(w donburi.World, e donburi.Entity, angle float64) {
	entry := w.Entry(e)
	if !entry.HasComponent(Constraint) {
		entry.AddComponent(Constraint)
	}
	Constraint.SetValue(entry, ConstraintData{Angle: angle})
}

// System solves every rig in a world once per Update. Entities are mapped
// to stable fabrik joint ids for as long as they exist.
type System struct {
	solver *fabrik.Solver
	joints *query.Query

	ids      map[donburi.Entity]fabrik.JointID
	entities map[fabrik.JointID]donburi.Entity
	next     fabrik.JointID

	frame   fabrik.Frame
	seen    map[donburi.Entity]bool
	orphans []fabrik.JointID
}

// Orphans returns the joints left out of the last Update because their
// parent entity no longer exists or is not a joint.
func (s *System) Orphans() []fabrik.JointID { return s.orphans }

// NewSystem creates a system backed by a fresh fabrik.Solver.
func NewSystem(cfg fabrik.SolverConfig) *System {
	return &System{
		solver:   fabrik.NewSolver(cfg),
		joints:   query.NewQuery(filter.Contains(Joint)),
		ids:      make(map[donburi.Entity]fabrik.JointID),
		entities: make(map[fabrik.JointID]donburi.Entity),
		seen:     make(map[donburi.Entity]bool),
	}
}

// Solver returns the underlying solver, for debug mode and cache control.
func (s *System) Solver() *fabrik.Solver { return s.solver }

// Entity returns the entity mapped to a joint id.
func (s *System) Entity(id fabrik.JointID) (donburi.Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// Update gathers joints, effectors and constraints from w, solves them, and
// writes LocalTransform on every solved joint. Broken rigs are reported
// through SolveEventType and SkipEventType and never stop the others.
func (s *System) Update(w donburi.World) error {
	s.gather(w)

	out, err := s.solver.Solve(&s.frame)
	if err != nil {
		return fmt.Errorf("ecs: solve: %w", err)
	}

	for _, tr := range out.Transforms {
		e, ok := s.entities[tr.Joint]
		if !ok || !w.Valid(e) {
			continue
		}
		entry := w.Entry(e)
		if !entry.HasComponent(LocalTransform) {
			entry.AddComponent(LocalTransform)
		}
		LocalTransform.SetValue(entry, tr)
	}
	for _, r := range out.Reports {
		SolveEventType.Publish(w, r)
	}
	for _, e := range out.Skipped {
		SkipEventType.Publish(w, e)
	}
	return nil
}

// gather rebuilds s.frame from the world. Entities that disappeared since
// the last Update are forgotten and the solver cache is dropped, since the
// hierarchy they belonged to has changed. A joint whose parent is no longer
// a live joint is left out of the frame, so only chains through it fail.
func (s *System) gather(w donburi.World) {
	s.frame.Joints = s.frame.Joints[:0]
	s.frame.Effectors = s.frame.Effectors[:0]
	s.frame.Constraints = s.frame.Constraints[:0]
	clear(s.seen)
	var orphans []fabrik.JointID

	s.joints.Each(w, func(entry *donburi.Entry) {
		e := entry.Entity()
		id := s.idFor(e)
		s.seen[e] = true

		j := Joint.Get(entry)
		parent := fabrik.NoJoint
		orphan := false
		if j.Parent != donburi.Null {
			if w.Valid(j.Parent) && w.Entry(j.Parent).HasComponent(Joint) {
				parent = s.idFor(j.Parent)
			} else {
				orphan = true
				orphans = append(orphans, id)
			}
		}
		if !orphan {
			s.frame.Joints = append(s.frame.Joints, fabrik.JointState{
				ID:       id,
				Parent:   parent,
				Position: j.Position,
				Root:     j.Root,
			})
		}

		if entry.HasComponent(Effector) {
			eff := Effector.Get(entry)
			s.frame.Effectors = append(s.frame.Effectors, fabrik.EndEffector{
				Joint:     id,
				Target:    eff.Target,
				Tolerance: eff.Tolerance,
				BoneCount: eff.BoneCount,
			})
		}
		if entry.HasComponent(Constraint) {
			s.frame.Constraints = append(s.frame.Constraints, fabrik.JointConstraint{
				Joint: id,
				Angle: Constraint.Get(entry).Angle,
			})
		}
	})

	stale := false
	for e, id := range s.ids {
		if !s.seen[e] {
			delete(s.ids, e)
			delete(s.entities, id)
			stale = true
		}
	}
	if stale {
		s.solver.Reset()
	}
	s.orphans = orphans
}

// idFor returns the joint id mapped to e, assigning the next free id on
// first sight.
func (s *System) idFor(e donburi.Entity) fabrik.JointID {
	if id, ok := s.ids[e]; ok {
		return id
	}
	s.next++
	s.ids[e] = s.next
	s.entities[s.next] = e
	return s.next
}
