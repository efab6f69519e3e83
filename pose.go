package fabrik

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultBoneAxis is the joint-local axis that is turned to point at the
// next joint.
var DefaultBoneAxis = mgl64.Vec3{0, 1, 0}

// PoseOptions configures WritePose.
type PoseOptions struct {
	// BoneAxis is the joint-local direction that points along the bone.
	// The zero vector selects DefaultBoneAxis.
	BoneAxis mgl64.Vec3

	// ParentGlobal is the world transform of the root joint's parent in the
	// host hierarchy. The zero matrix selects identity.
	ParentGlobal mgl64.Mat4
}

// WritePose converts solved world positions (indexed by arena index) into
// parent-relative transforms, in root-to-leaf order.
//
// Each joint is oriented by the shortest rotation that turns BoneAxis toward
// its child; a branch joint aims at the centroid of its children. Tips, and
// joints that coincide with their aim point, inherit the parent's
// orientation. The local transform is inverse(parent global) * global.
func WritePose(g *Graph, positions []mgl64.Vec3, opts PoseOptions) []JointTransform {
	axis := opts.BoneAxis
	if axis.Len() < Epsilon {
		axis = DefaultBoneAxis
	}
	axis = axis.Normalize()
	parentGlobal := opts.ParentGlobal
	if parentGlobal == (mgl64.Mat4{}) {
		parentGlobal = mgl64.Ident4()
	}

	n := g.Len()
	globals := make([]mgl64.Mat4, n)
	rots := make([]mgl64.Quat, n)
	out := make([]JointTransform, 0, n)
	aims := make([]mgl64.Vec3, 0, 4)

	for _, i := range g.preOrder {
		p := g.parent[i]
		inherited := mgl64.QuatIdent()
		if p >= 0 {
			inherited = rots[p]
		}

		rot := inherited
		if kids := g.children[i]; len(kids) > 0 {
			aims = aims[:0]
			for _, c := range kids {
				aims = append(aims, positions[c])
			}
			if dir, ok := direction(positions[i], centroid(aims), mgl64.Vec3{}); ok {
				rot = rotationBetween(axis, dir)
			}
		}
		rots[i] = rot

		pos := positions[i]
		globals[i] = mgl64.Translate3D(pos.X(), pos.Y(), pos.Z()).Mul4(rot.Mat4())

		pg := parentGlobal
		if p >= 0 {
			pg = globals[p]
		}
		local := pg.Inv().Mul4(globals[i])
		out = append(out, decomposeMat4(g.ids[i], local))
	}
	return out
}

// decomposeMat4 splits a skew-free affine matrix into rotation, translation
// and scale.
func decomposeMat4(id JointID, m mgl64.Mat4) JointTransform {
	c0, c1, c2 := m.Col(0).Vec3(), m.Col(1).Vec3(), m.Col(2).Vec3()
	scale := mgl64.Vec3{c0.Len(), c1.Len(), c2.Len()}
	for k := 0; k < 3; k++ {
		if scale[k] < Epsilon {
			scale[k] = 1
		}
	}
	if c0.Cross(c1).Dot(c2) < 0 {
		scale[0] = -scale[0]
	}
	rm := mgl64.Mat3FromCols(c0.Mul(1/scale[0]), c1.Mul(1/scale[1]), c2.Mul(1/scale[2]))
	return JointTransform{
		Joint:       id,
		Rotation:    mgl64.Mat4ToQuat(rm.Mat4()).Normalize(),
		Translation: m.Col(3).Vec3(),
		Scale:       scale,
	}
}

// WritePose2D converts a solved planar chain into parent-relative
// transforms. ids and positions run root to tip. Each joint's rotation
// points its +X axis at the next joint; the tip inherits its parent's
// rotation. parentGlobal is the world matrix of the root's parent; the zero
// matrix selects identity.
func WritePose2D(ids []JointID, positions []mgl64.Vec2, parentGlobal [6]float64) []JointTransform2D {
	if len(ids) != len(positions) {
		panic("fabrik: WritePose2D needs one id per position")
	}
	if parentGlobal == ([6]float64{}) {
		parentGlobal = identityTransform
	}
	out := make([]JointTransform2D, len(ids))
	pg := parentGlobal
	angle := 0.0
	for i := range ids {
		if i+1 < len(positions) {
			d := positions[i+1].Sub(positions[i])
			if d.Len() >= Epsilon {
				angle = math.Atan2(d.Y(), d.X())
			}
		}
		global := rotationTranslation(angle, positions[i].X(), positions[i].Y())
		local := multiplyAffine(invertAffine(pg), global)
		rot, tx, ty, sx, sy := decomposeAffine(local)
		out[i] = JointTransform2D{
			Joint:       ids[i],
			Rotation:    rot,
			Translation: mgl64.Vec2{tx, ty},
			Scale:       mgl64.Vec2{sx, sy},
		}
		pg = global
	}
	return out
}

// ComposePose2D is the planar inverse of WritePose2D: it applies the
// transforms root to tip under parentGlobal and returns each joint's world
// position. The zero matrix selects identity.
func ComposePose2D(locals []JointTransform2D, parentGlobal [6]float64) []mgl64.Vec2 {
	if parentGlobal == ([6]float64{}) {
		parentGlobal = identityTransform
	}
	out := make([]mgl64.Vec2, len(locals))
	m := parentGlobal
	for i, l := range locals {
		local := multiplyAffine(
			rotationTranslation(l.Rotation, l.Translation.X(), l.Translation.Y()),
			[6]float64{l.Scale.X(), 0, 0, l.Scale.Y(), 0, 0},
		)
		m = multiplyAffine(m, local)
		x, y := transformPoint(m, 0, 0)
		out[i] = mgl64.Vec2{x, y}
	}
	return out
}

// ComposePose rebuilds world-space joint origins from parent-relative
// transforms produced by WritePose, applying them root to leaf. It is the
// inverse of WritePose and is what a host does when it writes the result
// back into its scene graph.
func ComposePose(g *Graph, locals []JointTransform, parentGlobal mgl64.Mat4) []mgl64.Vec3 {
	if parentGlobal == (mgl64.Mat4{}) {
		parentGlobal = mgl64.Ident4()
	}
	byID := make(map[JointID]JointTransform, len(locals))
	for _, l := range locals {
		byID[l.Joint] = l
	}
	globals := make([]mgl64.Mat4, g.Len())
	out := make([]mgl64.Vec3, g.Len())
	for _, i := range g.preOrder {
		l := byID[g.ids[i]]
		t := l.Translation
		local := mgl64.Translate3D(t.X(), t.Y(), t.Z()).
			Mul4(l.Rotation.Mat4()).
			Mul4(mgl64.Scale3D(l.Scale.X(), l.Scale.Y(), l.Scale.Z()))
		pg := parentGlobal
		if p := g.parent[i]; p >= 0 {
			pg = globals[p]
		}
		globals[i] = pg.Mul4(local)
		out[i] = globals[i].Col(3).Vec3()
	}
	return out
}
