// Package fabrik is a FABRIK (Forward And Backward Reaching Inverse
// Kinematics) solver for game rigs, in 2D and 3D.
//
// The solver never touches a scene graph. The host hands it a [Frame] (joint
// hierarchy with this frame's world positions, [EndEffector] targets and
// optional [JointConstraint] cones), and gets back parent-relative
// [JointTransform] values to write into its own transforms.
//
// # Quick start
//
// The simplest way to drive a rig every tick is a [Solver], which caches the
// topology of each rig the first time it sees an end effector:
//
//	solver := fabrik.NewSolver(fabrik.SolverConfig{})
//	out, err := solver.Solve(frame)
//	if err != nil {
//		return err // frame was nil
//	}
//	for _, skip := range out.Skipped {
//		// a broken walk (missing parent, cycle, no root) skips only its own effector
//	}
//	for _, t := range out.Transforms {
//		// write t.Rotation, t.Translation, t.Scale into joint t.Joint
//	}
//
// For a single planar chain the generic engine can be called directly on a
// slice of positions:
//
//	pos := []mgl64.Vec2{{0, 0}, {0, 10}, {10, 10}}
//	res := fabrik.SolveChain(pos, fabrik.ChainLengths(pos), mgl64.Vec2{15, 0},
//		fabrik.ChainOptions2D{Tolerance: 0.01})
//
// # Pipeline
//
// A solve runs four stages, each usable on its own:
//
//   - [BuildChain] / [BuildGraph] walk the hierarchy from each effector to its
//     root and produce a cached [Graph] with rest bone lengths.
//   - [TakeSnapshot] copies live positions into a chain-local [Snapshot].
//   - [SolveChain] (single chain, 10 iterations) or [SolveTree] (branches,
//     centroid sub-bases, 3 iterations) move the snapshot, consulting
//     [ConstrainCone] for constrained joints.
//   - [WritePose] / [WritePose2D] turn positions into parent-relative
//     transforms.
//
// Rigs can be described in YAML ([LoadRig]) and target motion scripted in
// JSON ([LoadTargetScript]) or tweened ([TweenTarget], via [gween]). ECS
// integration lives in fabrik/ecs (via a [Donburi] adapter) and fabrik/debugdraw
// draws chains and poses with Ebitengine.
//
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
package fabrik
