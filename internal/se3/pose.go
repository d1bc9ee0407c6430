// Package se3 implements the pure SE(3)/SO(3) algebra the frame-graph engine
// is built on: composition, inversion, numerical validation of a submitted
// matrix, and the snap-to-zero hygiene pass applied when loading stored
// scalars. A dense 4x4 row-major matrix is the canonical I/O form; internally
// a Pose keeps the rotation as a 3x3 array and the translation as an
// r3.Vector, matching the flat-column schema the store persists.
package se3

import (
	"errors"
	"math"

	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

// Epsilon is double-precision machine epsilon, used both for the SO(3)
// validation tolerance (100*Epsilon) and for the snap-to-zero threshold.
const Epsilon = 2.220446049250313e-16

// soTolerance is the tolerance spec.md requires for the SO(3) checks.
const soTolerance = 100 * Epsilon

// Pose is a rigid transform (R, t) with R in SO(3) and t in R^3.
type Pose struct {
	R [3][3]float64
	T r3.Vector
}

// Identity returns the identity pose (R=I, t=0).
func Identity() Pose {
	return Pose{R: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

// mulR returns a*b for two 3x3 rotations.
func mulR(a, b [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += a[i][k] * b[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// apply returns R*v for a 3x3 rotation and a vector.
func apply(r [3][3]float64, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

func transposeR(r [3][3]float64) [3][3]float64 {
	var out [3][3]float64
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = r[j][i]
		}
	}
	return out
}

// Compose returns a∘b = (R_a*R_b, R_a*t_b + t_a), the pose obtained by
// applying b then a.
func Compose(a, b Pose) Pose {
	return Pose{
		R: mulR(a.R, b.R),
		T: apply(a.R, b.T).Add(a.T),
	}
}

// Invert returns (R,t)^-1 = (Rt, -Rt*t).
func Invert(p Pose) Pose {
	rt := transposeR(p.R)
	return Pose{R: rt, T: apply(rt, p.T).Mul(-1)}
}

// RigidInverse is the "reverse-set" inverse used by Set's case 3:
// [Rt | -t], i.e. the translation is negated but NOT re-rotated by Rt.
// This is not the group inverse (see Invert); spec.md §9 requires this
// exact convention be preserved for reverse-set.
func RigidInverse(p Pose) Pose {
	return Pose{R: transposeR(p.R), T: p.T.Mul(-1)}
}

// SnapToZero replaces any scalar with magnitude below Epsilon with exactly
// zero. This is a display/composition hygiene step applied when loading
// stored scalars, not a correctness gate — it must not run on values that
// are about to be validated for bit-exact round-tripping.
func SnapToZero(p Pose) Pose {
	snap := func(v float64) float64 {
		if math.Abs(v) < Epsilon {
			return 0
		}
		return v
	}
	var out Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out.R[i][j] = snap(p.R[i][j])
		}
	}
	out.T = r3.Vector{X: snap(p.T.X), Y: snap(p.T.Y), Z: snap(p.T.Z)}
	return out
}

// ToMatrix renders the pose as a dense 4x4 homogeneous matrix.
func ToMatrix(p Pose) *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, p.R[i][j])
		}
	}
	m.Set(0, 3, p.T.X)
	m.Set(1, 3, p.T.Y)
	m.Set(2, 3, p.T.Z)
	m.Set(3, 3, 1)
	return m
}

// Validate checks a submitted 4x4 matrix against the SE(3) constraints: the
// last row must be exactly [0,0,0,1], and the upper-left 3x3 must be a
// proper rotation within the 100*Epsilon Frobenius/determinant tolerances.
// On success it returns the decomposed Pose.
//
// All three checks run independently so a caller inspecting the returned
// Error's Cause can see every failure at once, even though the reported
// Fault is still the single, highest-priority sub-code the spec calls for
// (last row, then orthogonality, then determinant).
func Validate(m *mat.Dense) (Pose, *wrterr.Error) {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return Pose{}, wrterr.BadMatrixErr(wrterr.BadLastRow, "matrix must be 4x4")
	}

	// 3) Last row must equal exactly [0,0,0,1] — no tolerance on this check.
	var lastRowErr error
	if m.At(3, 0) != 0 || m.At(3, 1) != 0 || m.At(3, 2) != 0 || m.At(3, 3) != 1 {
		lastRowErr = errors.New("last row must be exactly [0 0 0 1]")
	}

	rot := mat.NewDense(3, 3, nil)
	rot.Copy(m.Slice(0, 3, 0, 3))

	// 1) R*Rt - I must be near zero in Frobenius norm.
	var rrt mat.Dense
	rrt.Mul(rot, rot.T())
	var diff mat.Dense
	diff.Sub(&rrt, identity3())
	var orthoErr error
	if mat.Norm(&diff, 2) > soTolerance {
		orthoErr = errors.New("R*Rt is not close enough to the identity")
	}

	// 2) det(R) must be close to 1.
	det := mat.Det(rot)
	var detErr error
	if math.Abs(det-1) > soTolerance {
		detErr = errors.New("det(R) is not close enough to 1")
	}

	if aggregate := multierr.Combine(lastRowErr, orthoErr, detErr); aggregate != nil {
		switch {
		case lastRowErr != nil:
			return Pose{}, wrterr.BadMatrixErrCause(wrterr.BadLastRow, lastRowErr.Error(), aggregate)
		case orthoErr != nil:
			return Pose{}, wrterr.BadMatrixErrCause(wrterr.NotOrthogonal, orthoErr.Error(), aggregate)
		default:
			return Pose{}, wrterr.BadMatrixErrCause(wrterr.WrongDeterminant, detErr.Error(), aggregate)
		}
	}

	var p Pose
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			p.R[i][j] = rot.At(i, j)
		}
	}
	p.T = r3.Vector{X: m.At(0, 3), Y: m.At(1, 3), Z: m.At(2, 3)}
	return p, nil
}

func identity3() *mat.Dense {
	m := mat.NewDense(3, 3, nil)
	m.Set(0, 0, 1)
	m.Set(1, 1, 1)
	m.Set(2, 2, 1)
	return m
}

// ToQuat converts a rotation matrix to a unit quaternion, used by the
// quaternion-based tree walk that cross-checks the store's recursive
// root-walk for kinematic loops (see internal/framegraph/loopcheck.go).
func ToQuat(r [3][3]float64) quat.Number {
	// Standard matrix-to-quaternion conversion (Shepperd's method).
	tr := r[0][0] + r[1][1] + r[2][2]
	var w, x, y, z float64
	switch {
	case tr > 0:
		s := math.Sqrt(tr+1.0) * 2
		w = 0.25 * s
		x = (r[2][1] - r[1][2]) / s
		y = (r[0][2] - r[2][0]) / s
		z = (r[1][0] - r[0][1]) / s
	case r[0][0] > r[1][1] && r[0][0] > r[2][2]:
		s := math.Sqrt(1.0+r[0][0]-r[1][1]-r[2][2]) * 2
		w = (r[2][1] - r[1][2]) / s
		x = 0.25 * s
		y = (r[0][1] + r[1][0]) / s
		z = (r[0][2] + r[2][0]) / s
	case r[1][1] > r[2][2]:
		s := math.Sqrt(1.0+r[1][1]-r[0][0]-r[2][2]) * 2
		w = (r[0][2] - r[2][0]) / s
		x = (r[0][1] + r[1][0]) / s
		y = 0.25 * s
		z = (r[1][2] + r[2][1]) / s
	default:
		s := math.Sqrt(1.0+r[2][2]-r[0][0]-r[1][1]) * 2
		w = (r[1][0] - r[0][1]) / s
		x = (r[0][2] + r[2][0]) / s
		y = (r[1][2] + r[2][1]) / s
		z = 0.25 * s
	}
	q := quat.Number{Real: w, Imag: x, Jmag: y, Kmag: z}
	return normalize(q)
}

func normalize(q quat.Number) quat.Number {
	n := math.Sqrt(q.Real*q.Real + q.Imag*q.Imag + q.Jmag*q.Jmag + q.Kmag*q.Kmag)
	if n == 0 {
		return quat.Number{Real: 1}
	}
	return quat.Number{Real: q.Real / n, Imag: q.Imag / n, Jmag: q.Jmag / n, Kmag: q.Kmag / n}
}

// FromQuat converts a unit quaternion back to a rotation matrix.
func FromQuat(q quat.Number) [3][3]float64 {
	q = normalize(q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w)},
		{2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w)},
		{2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y)},
	}
}

// ComposeQuat composes two poses the same way Compose does but round-trips
// the rotation through a quaternion product, for the chained-composition
// stability the quaternion tree walk relies on.
func ComposeQuat(a, b Pose) Pose {
	qa, qb := ToQuat(a.R), ToQuat(b.R)
	qr := quat.Mul(qa, qb)
	return Pose{
		R: FromQuat(qr),
		T: apply(a.R, b.T).Add(a.T),
	}
}
