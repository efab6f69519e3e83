// Package ecs runs the fabrik IK solver over a [Donburi] world.
//
// Joints are entities carrying the [Joint] component; end effectors and cone
// limits are added with [Effector] and [Constraint]. Each call to
// [System.Update] gathers the world into a [fabrik.Frame], solves it, writes
// the resulting parent-relative transform into every solved entity's
// [LocalTransform] component, and publishes one [fabrik.ChainReport] per
// solved rig on [SolveEventType]. Effectors that could not be solved, for
// example because a joint on the way to their root was destroyed, are
// published on [SkipEventType].
//
// Usage:
//
//	sys := ecs.NewSystem(fabrik.SolverConfig{})
//	hip := ecs.NewJoint(world, donburi.Null, mgl64.Vec3{0, 0, 0}, true)
//	knee := ecs.NewJoint(world, hip, mgl64.Vec3{0, -4, 0}, false)
//	foot := ecs.NewJoint(world, knee, mgl64.Vec3{0, -8, 0}, false)
//	ecs.SetEffector(world, foot, ecs.EffectorData{Target: mgl64.Vec3{2, -7, 0}})
//
//	// each tick
//	if err := sys.Update(world); err != nil { ... }
//	ecs.SolveEventType.ProcessEvents(world)
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
