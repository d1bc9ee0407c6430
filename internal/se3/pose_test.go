package se3

import (
	"math"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

func rotX90() [3][3]float64 {
	return [3][3]float64{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}}
}

func rotZ90() [3][3]float64 {
	return [3][3]float64{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
}

func TestComposeIdentity(t *testing.T) {
	p := Pose{R: rotX90(), T: r3.Vector{X: 1, Y: 2, Z: 3}}
	out := Compose(Identity(), p)
	assert.Equal(t, p, out)

	out = Compose(p, Identity())
	assert.Equal(t, p, out)
}

func TestInvertIsGroupInverse(t *testing.T) {
	p := Pose{R: rotZ90(), T: r3.Vector{X: 1, Y: -1, Z: 2}}
	inv := Invert(p)

	id := Compose(p, inv)
	assert.InDelta(t, 1, id.R[0][0], 1e-12)
	assert.InDelta(t, 1, id.R[1][1], 1e-12)
	assert.InDelta(t, 1, id.R[2][2], 1e-12)
	assert.InDelta(t, 0, id.T.X, 1e-12)
	assert.InDelta(t, 0, id.T.Y, 1e-12)
	assert.InDelta(t, 0, id.T.Z, 1e-12)
}

func TestRigidInverseIsNotGroupInverse(t *testing.T) {
	p := Pose{R: rotX90(), T: r3.Vector{X: 1, Y: 0, Z: 0}}
	rev := RigidInverse(p)

	assert.Equal(t, transposeR(p.R), rev.R)
	assert.Equal(t, p.T.Mul(-1), rev.T)
}

func TestSnapToZero(t *testing.T) {
	p := Pose{R: [3][3]float64{{1e-20, 1, 0}, {0, 1, 0}, {0, 0, 1}}, T: r3.Vector{X: 1e-20, Y: 1, Z: 0}}
	out := SnapToZero(p)
	assert.Equal(t, 0.0, out.R[0][0])
	assert.Equal(t, 0.0, out.T.X)
	assert.Equal(t, 1.0, out.T.Y)
}

func TestValidateAcceptsIdentity(t *testing.T) {
	m := ToMatrix(Identity())
	p, werr := Validate(m)
	require.Nil(t, werr)
	assert.Equal(t, Identity(), p)
}

func TestValidateRejectsBadLastRowWithNoTolerance(t *testing.T) {
	m := mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 0.9999,
	})
	_, werr := Validate(m)
	require.NotNil(t, werr)
	assert.Equal(t, wrterr.BadLastRow, werr.Fault)
}

func TestValidateRejectsNonOrthogonal(t *testing.T) {
	m := mat.NewDense(4, 4, []float64{
		1, 0.2, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	_, werr := Validate(m)
	require.NotNil(t, werr)
	assert.Equal(t, wrterr.NotOrthogonal, werr.Fault)
}

func TestQuatRoundTrip(t *testing.T) {
	for _, r := range [][3][3]float64{Identity().R, rotX90(), rotZ90()} {
		q := ToQuat(r)
		back := FromQuat(q)
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				assert.InDelta(t, r[i][j], back[i][j], 1e-9)
			}
		}
	}
}

func TestComposeQuatMatchesCompose(t *testing.T) {
	a := Pose{R: rotX90(), T: r3.Vector{X: 1, Y: 0, Z: 0}}
	b := Pose{R: rotZ90(), T: r3.Vector{X: 0, Y: 1, Z: 0}}

	want := Compose(a, b)
	got := ComposeQuat(a, b)

	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, want.R[i][j], got.R[i][j], 1e-9)
		}
	}
	assert.InDelta(t, want.T.X, got.T.X, 1e-9)
	assert.InDelta(t, want.T.Y, got.T.Y, 1e-9)
	assert.InDelta(t, want.T.Z, got.T.Z, 1e-9)
}

func TestEpsilonIsMachineEpsilon(t *testing.T) {
	assert.Equal(t, math.Nextafter(1, 2)-1, Epsilon)
}
