package fabrik

import (
	"fmt"
	"math"
	"os"

	"github.com/go-gl/mathgl/mgl64"
	"gopkg.in/yaml.v3"
)

// Point is a position in a rig file, written as a YAML sequence of two or
// three numbers. A missing Z is zero.
type Point mgl64.Vec3

// UnmarshalYAML implements yaml.Unmarshaler for Point.
func (p *Point) UnmarshalYAML(value *yaml.Node) error {
	var xs []float64
	if err := value.Decode(&xs); err != nil {
		return fmt.Errorf("line %d: point: %w", value.Line, err)
	}
	if len(xs) != 2 && len(xs) != 3 {
		return fmt.Errorf("line %d: point needs 2 or 3 coordinates, got %d", value.Line, len(xs))
	}
	*p = Point{}
	copy(p[:], xs)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Point.
func (p Point) MarshalYAML() (any, error) {
	return []float64{p[0], p[1], p[2]}, nil
}

// Vec3 returns p as an mgl64.Vec3.
func (p Point) Vec3() mgl64.Vec3 { return mgl64.Vec3(p) }

// RigJoint is one joint of a rig file.
type RigJoint struct {
	Name     string   `yaml:"name"`
	Parent   string   `yaml:"parent,omitempty"`
	Position Point    `yaml:"position"`
	Root     bool     `yaml:"root,omitempty"`
	Cone     *float64 `yaml:"cone,omitempty"` // half-angle in degrees
}

// RigEffector is one end effector of a rig file.
type RigEffector struct {
	Joint     string   `yaml:"joint"`
	Target    Point    `yaml:"target"`
	Tolerance *float64 `yaml:"tolerance,omitempty"`
	Bones     int      `yaml:"bones,omitempty"`
}

// Rig is a named-joint description of an IK rig, loaded from YAML. Joint
// IDs are assigned in file order starting at 1.
type Rig struct {
	Name      string        `yaml:"name"`
	Joints    []RigJoint    `yaml:"joints"`
	Effectors []RigEffector `yaml:"effectors"`

	ids map[string]JointID
}

// LoadRig parses and validates a YAML rig description.
func LoadRig(data []byte) (*Rig, error) {
	var rig Rig
	if err := yaml.Unmarshal(data, &rig); err != nil {
		return nil, fmt.Errorf("parse rig: %w", err)
	}
	if err := rig.init(); err != nil {
		return nil, fmt.Errorf("parse rig: %w", err)
	}
	return &rig, nil
}

// LoadRigFile reads and parses a YAML rig description from path.
func LoadRigFile(path string) (*Rig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rig: %w", err)
	}
	return LoadRig(data)
}

func (r *Rig) init() error {
	if len(r.Joints) == 0 {
		return fmt.Errorf("no joints")
	}
	r.ids = make(map[string]JointID, len(r.Joints))
	for i, j := range r.Joints {
		if j.Name == "" {
			return fmt.Errorf("joint %d has no name", i)
		}
		if _, dup := r.ids[j.Name]; dup {
			return fmt.Errorf("joint %q: %w", j.Name, ErrDuplicateJoint)
		}
		r.ids[j.Name] = JointID(i + 1)
	}
	for _, j := range r.Joints {
		if j.Parent != "" {
			if _, ok := r.ids[j.Parent]; !ok {
				return fmt.Errorf("parent %q of joint %q: %w", j.Parent, j.Name, ErrUnknownJoint)
			}
		}
		if j.Cone != nil && (*j.Cone < 0 || *j.Cone > 180) {
			return fmt.Errorf("joint %q cone %v degrees: %w", j.Name, *j.Cone, ErrBadConstraint)
		}
	}
	for _, e := range r.Effectors {
		if _, ok := r.ids[e.Joint]; !ok {
			return fmt.Errorf("effector %q: %w", e.Joint, ErrUnknownJoint)
		}
	}
	f := r.Frame()
	_, err := f.index()
	return err
}

// ID returns the JointID assigned to a joint name.
func (r *Rig) ID(name string) (JointID, bool) {
	id, ok := r.ids[name]
	return id, ok
}

// JointName returns the joint name for id, or "" if unknown.
func (r *Rig) JointName(id JointID) string {
	i := int(id) - 1
	if i < 0 || i >= len(r.Joints) {
		return ""
	}
	return r.Joints[i].Name
}

// Frame converts the rig into solver input. Each call returns a fresh frame
// the caller may mutate.
func (r *Rig) Frame() *Frame {
	f := &Frame{Joints: make([]JointState, len(r.Joints))}
	for i, j := range r.Joints {
		f.Joints[i] = JointState{
			ID:       JointID(i + 1),
			Parent:   r.ids[j.Parent],
			Position: j.Position.Vec3(),
			Root:     j.Root,
		}
		if j.Cone != nil {
			f.Constraints = append(f.Constraints, JointConstraint{
				Joint: JointID(i + 1),
				Angle: *j.Cone * math.Pi / 180,
			})
		}
	}
	for _, e := range r.Effectors {
		tol := DefaultTolerance
		if e.Tolerance != nil {
			tol = *e.Tolerance
		}
		f.Effectors = append(f.Effectors, EndEffector{
			Joint:     r.ids[e.Joint],
			Target:    e.Target.Vec3(),
			Tolerance: tol,
			BoneCount: e.Bones,
		})
	}
	return f
}
