// Package spatialmath defines the rigid transform math used throughout the replay pipeline.
package spatialmath

import (
	"fmt"
	"math"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/num/quat"
)

// RigidTransform is a 6-DOF pose: a translation paired with a unit rotation
// quaternion. The zero value is not a valid transform; use NewRigidTransform
// or Identity.
type RigidTransform struct {
	Translation r3.Vector
	Rotation    quat.Number
}

// Identity returns the identity transform.
func Identity() *RigidTransform {
	return &RigidTransform{Rotation: quat.Number{Real: 1}}
}

// NewRigidTransform returns a transform with the given translation and
// rotation. The rotation is normalized to a unit quaternion.
func NewRigidTransform(translation r3.Vector, rotation quat.Number) *RigidTransform {
	return &RigidTransform{
		Translation: translation,
		Rotation:    normalize(rotation),
	}
}

// NewRigidTransformFromXYZW builds a transform from a translation and a
// quaternion in (x, y, z, w) component order, the order pose-bearing log
// messages carry.
func NewRigidTransformFromXYZW(translation r3.Vector, xyzw [4]float64) *RigidTransform {
	return NewRigidTransform(translation, quat.Number{
		Real: xyzw[3],
		Imag: xyzw[0],
		Jmag: xyzw[1],
		Kmag: xyzw[2],
	})
}

// XYZW returns the rotation in (x, y, z, w) component order.
func (rt *RigidTransform) XYZW() [4]float64 {
	return [4]float64{rt.Rotation.Imag, rt.Rotation.Jmag, rt.Rotation.Kmag, rt.Rotation.Real}
}

// Compose returns the transform equivalent to applying other first and then rt.
func (rt *RigidTransform) Compose(other *RigidTransform) *RigidTransform {
	return &RigidTransform{
		Translation: rt.TransformPoint(other.Translation),
		Rotation:    normalize(quat.Mul(rt.Rotation, other.Rotation)),
	}
}

// Invert returns the inverse transform.
func (rt *RigidTransform) Invert() *RigidTransform {
	inv := quat.Conj(rt.Rotation)
	return &RigidTransform{
		Translation: rotate(inv, rt.Translation.Mul(-1)),
		Rotation:    inv,
	}
}

// TransformPoint applies the transform to a point.
func (rt *RigidTransform) TransformPoint(p r3.Vector) r3.Vector {
	return rotate(rt.Rotation, p).Add(rt.Translation)
}

func (rt *RigidTransform) String() string {
	return fmt.Sprintf("t=[%.4f %.4f %.4f] q=[x:%.4f y:%.4f z:%.4f w:%.4f]",
		rt.Translation.X, rt.Translation.Y, rt.Translation.Z,
		rt.Rotation.Imag, rt.Rotation.Jmag, rt.Rotation.Kmag, rt.Rotation.Real)
}

func rotate(q quat.Number, p r3.Vector) r3.Vector {
	pq := quat.Number{Imag: p.X, Jmag: p.Y, Kmag: p.Z}
	res := quat.Mul(quat.Mul(q, pq), quat.Conj(q))
	return r3.Vector{X: res.Imag, Y: res.Jmag, Z: res.Kmag}
}

func normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}
