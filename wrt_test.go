package wrt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func identity() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

func TestBuilderSetThenGetRoundTrip(t *testing.T) {
	dir := t.TempDir()

	err := In("demo", WithDir(dir)).Set("a").Wrt("world").Ei("world").As(mat.NewDense(4, 4, []float64{
		1, 0, 0, 2,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}))
	require.NoError(t, err)

	m, err := In("demo", WithDir(dir)).Get("a").Wrt("world").Ei("world")
	require.NoError(t, err)
	require.Equal(t, 2.0, m.At(0, 3))
}

func TestBuilderRootImmutable(t *testing.T) {
	dir := t.TempDir()
	err := In("demo", WithDir(dir)).Set("world").Wrt("world").Ei("world").As(identity())
	require.Error(t, err)

	var werr *Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, RootImmutable, werr.Kind)
}

func TestBuilderInvalidName(t *testing.T) {
	dir := t.TempDir()
	err := In("demo", WithDir(dir)).Set("Hello").Wrt("world").Ei("world").As(identity())
	require.Error(t, err)

	var werr *Error
	require.ErrorAs(t, err, &werr)
	require.Equal(t, InvalidName, werr.Kind)
}

func TestBuilderTemporaryWorldIsCleanedUp(t *testing.T) {
	dir := t.TempDir()
	err := In("scratch", WithDir(dir), WithTemporary()).Set("a").Wrt("world").Ei("world").As(identity())
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Join(dir, "scratch.db"))
	require.True(t, os.IsNotExist(statErr))
}
