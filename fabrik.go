package fabrik

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// JointID identifies a joint. IDs are opaque handles chosen by the host;
// NoJoint (0) is reserved to mean "no parent".
type JointID uint32

// NoJoint is the zero JointID. A joint whose Parent is NoJoint is a top-level
// joint in the host hierarchy.
const NoJoint JointID = 0

const (
	// DefaultMaxIterations bounds the forward/backward sweep pairs of the
	// single-chain solver.
	DefaultMaxIterations = 10

	// DefaultTreeIterations bounds the sweep pairs of the multi-effector
	// tree solver.
	DefaultTreeIterations = 3

	// DefaultTolerance is used when an end effector declares a negative
	// tolerance.
	DefaultTolerance = 1e-3

	// Epsilon is the length below which a vector is treated as degenerate
	// and is never normalized.
	Epsilon = 1e-9
)

// Sentinel errors. Wrapped errors returned from this package can be matched
// with errors.Is.
var (
	ErrNoRoot         = errors.New("fabrik: no root found for end effector")
	ErrUnknownJoint   = errors.New("fabrik: unknown joint")
	ErrDuplicateJoint = errors.New("fabrik: duplicate joint id")
	ErrCycle          = errors.New("fabrik: joint hierarchy contains a cycle")
	ErrZeroLengthBone = errors.New("fabrik: bone has zero rest length")
	ErrBadConstraint  = errors.New("fabrik: constraint angle outside [0, pi]")
	ErrMissingJoint   = errors.New("fabrik: joint missing from position source")
	ErrNilFrame       = errors.New("fabrik: nil frame")
)

// JointState is one entry of the host hierarchy as seen this frame.
type JointState struct {
	ID       JointID
	Parent   JointID    // NoJoint for a top-level joint
	Position mgl64.Vec3 // world-space position
	Root     bool       // marks a chain root for effectors with BoneCount == 0
}

// EndEffector drives a joint toward Target. BoneCount is the number of
// bones between the effector and its chain root; zero means "walk up to the
// nearest joint marked Root".
type EndEffector struct {
	Joint     JointID
	Target    mgl64.Vec3
	Tolerance float64
	BoneCount int
}

// tolerance returns the effective convergence tolerance.
func (e EndEffector) tolerance() float64 {
	if e.Tolerance < 0 || math.IsNaN(e.Tolerance) {
		return DefaultTolerance
	}
	return e.Tolerance
}

// JointConstraint limits how far the bone ending at Joint may swing away from
// the straight-line extension of its parent bone. Angle is a cone half-angle
// in radians.
type JointConstraint struct {
	Joint JointID
	Angle float64
}

// Validate reports whether the constraint angle lies in [0, pi].
func (c JointConstraint) Validate() error {
	if math.IsNaN(c.Angle) || c.Angle < 0 || c.Angle > math.Pi {
		return fmt.Errorf("joint %d angle %v: %w", c.Joint, c.Angle, ErrBadConstraint)
	}
	return nil
}

// Frame is the complete per-solve input supplied by the host: the hierarchy
// with this frame's live positions, the end effectors and the constraints.
type Frame struct {
	Joints      []JointState
	Effectors   []EndEffector
	Constraints []JointConstraint
}

// WorldPosition implements PositionSource by linear search. Solvers index the
// frame once per solve, so this is only used for ad-hoc lookups.
func (f *Frame) WorldPosition(id JointID) (mgl64.Vec3, bool) {
	for i := range f.Joints {
		if f.Joints[i].ID == id {
			return f.Joints[i].Position, true
		}
	}
	return mgl64.Vec3{}, false
}

// Validate checks the frame for duplicate or zero IDs, parents that do not
// exist, cycles, and constraint angles outside [0, pi].
func (f *Frame) Validate() error {
	_, err := f.index()
	if err != nil {
		return err
	}
	for _, c := range f.Constraints {
		if err := c.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// frameIndex maps joint IDs to their position in Frame.Joints. An id used
// by more than one joint maps to -1.
type frameIndex map[JointID]int

// at returns the position of id, or why it cannot be used.
func (idx frameIndex) at(id JointID) (int, error) {
	i, ok := idx[id]
	switch {
	case !ok:
		return 0, ErrUnknownJoint
	case i < 0:
		return 0, ErrDuplicateJoint
	}
	return i, nil
}

// lookup indexes the frame without rejecting it. Faults are left for the
// walks that reach them, so one broken rig does not hide the others.
func (f *Frame) lookup() frameIndex {
	idx := make(frameIndex, len(f.Joints))
	for i, j := range f.Joints {
		if j.ID == NoJoint {
			continue
		}
		if _, dup := idx[j.ID]; dup {
			idx[j.ID] = -1
			continue
		}
		idx[j.ID] = i
	}
	return idx
}

// index builds the id lookup and verifies the hierarchy is a forest.
func (f *Frame) index() (frameIndex, error) {
	idx := make(frameIndex, len(f.Joints))
	for i, j := range f.Joints {
		if j.ID == NoJoint {
			return nil, fmt.Errorf("joint at index %d: %w", i, ErrUnknownJoint)
		}
		if _, dup := idx[j.ID]; dup {
			return nil, fmt.Errorf("joint %d: %w", j.ID, ErrDuplicateJoint)
		}
		idx[j.ID] = i
	}
	for _, j := range f.Joints {
		if j.Parent != NoJoint {
			if _, ok := idx[j.Parent]; !ok {
				return nil, fmt.Errorf("parent %d of joint %d: %w", j.Parent, j.ID, ErrUnknownJoint)
			}
		}
	}
	// A walk longer than the joint count can only happen inside a cycle.
	for _, j := range f.Joints {
		steps := 0
		for p := j.Parent; p != NoJoint; p = f.Joints[idx[p]].Parent {
			steps++
			if steps > len(f.Joints) {
				return nil, fmt.Errorf("joint %d: %w", j.ID, ErrCycle)
			}
		}
	}
	return idx, nil
}

// JointTransform is a solved parent-relative transform for one joint.
type JointTransform struct {
	Joint       JointID
	Rotation    mgl64.Quat
	Translation mgl64.Vec3
	Scale       mgl64.Vec3
}

// JointTransform2D is the planar form of JointTransform. Rotation is in
// radians, counter-clockwise from +X.
type JointTransform2D struct {
	Joint       JointID
	Rotation    float64
	Translation mgl64.Vec2
	Scale       mgl64.Vec2
}

// EffectorError records why an end effector was skipped this frame.
type EffectorError struct {
	Effector JointID
	Err      error
}

func (e EffectorError) Error() string {
	return fmt.Sprintf("effector %d: %v", e.Effector, e.Err)
}

func (e EffectorError) Unwrap() error { return e.Err }
