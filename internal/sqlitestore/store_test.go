package sqlitestore

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/PhilNad/with-respect-to/internal/se3"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "world.db")
	s, err := Open(path, false, nil)
	require.NoError(t, err)
	require.NoError(t, s.SeedRoot())
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSeedRootIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SeedRoot())

	rec, err := s.FetchByName(RootName)
	require.NoError(t, err)
	require.NotNil(t, rec)
	want := &Record{Name: RootName, Parent: "", Pose: se3.Identity()}
	if diff := cmp.Diff(want, rec); diff != "" {
		t.Fatalf("root record mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchMissingReturnsNilNil(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.FetchByName("nope")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestUpsertReplaceOverwrites(t *testing.T) {
	s := openTestStore(t)
	rec := Record{
		Name:   "a",
		Parent: RootName,
		Pose:   se3.Pose{R: se3.Identity().R, T: r3.Vector{X: 1, Y: 0, Z: 0}},
	}
	require.NoError(t, s.UpsertReplace(rec))

	got, err := s.FetchByName("a")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 1.0, got.Pose.T.X)

	rec.Pose.T.X = 5
	require.NoError(t, s.UpsertReplace(rec))
	got, err = s.FetchByName("a")
	require.NoError(t, err)
	require.Equal(t, 5.0, got.Pose.T.X)
}

func TestWalkToRootSingleHop(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertReplace(Record{
		Name: "a", Parent: RootName,
		Pose: se3.Pose{R: se3.Identity().R, T: r3.Vector{X: 1, Y: 2, Z: 3}},
	}))

	wr, err := s.WalkToRoot("a")
	require.NoError(t, err)
	require.NotNil(t, wr)
	require.True(t, wr.ReachedNilParent)
	wantPose := se3.Pose{R: se3.Identity().R, T: r3.Vector{X: 1, Y: 2, Z: 3}}
	if diff := cmp.Diff(RootName, wr.RootName); diff != "" {
		t.Fatalf("root name mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(wantPose, wr.Pose); diff != "" {
		t.Fatalf("composed pose mismatch (-want +got):\n%s", diff)
	}
}

func TestWalkToRootComposesChain(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.UpsertReplace(Record{
		Name: "a", Parent: RootName,
		Pose: se3.Pose{R: se3.Identity().R, T: r3.Vector{X: 1, Y: 0, Z: 0}},
	}))
	require.NoError(t, s.UpsertReplace(Record{
		Name: "b", Parent: "a",
		Pose: se3.Pose{R: se3.Identity().R, T: r3.Vector{X: 0, Y: 1, Z: 0}},
	}))

	wr, err := s.WalkToRoot("b")
	require.NoError(t, err)
	require.True(t, wr.ReachedNilParent)
	require.Equal(t, RootName, wr.RootName)
	require.Equal(t, 1.0, wr.Pose.T.X)
	require.Equal(t, 1.0, wr.Pose.T.Y)
}

func TestWalkToRootMissingFrameReturnsNil(t *testing.T) {
	s := openTestStore(t)
	wr, err := s.WalkToRoot("ghost")
	require.NoError(t, err)
	require.Nil(t, wr)
}

func TestWalkToRootTruncatesBeyondMaxDepth(t *testing.T) {
	s := openTestStore(t)
	prev := RootName
	for i := 0; i < MaxDepth+5; i++ {
		name := fmt.Sprintf("f%03d", i)
		require.NoError(t, s.UpsertReplace(Record{
			Name: name, Parent: prev,
			Pose: se3.Pose{R: se3.Identity().R, T: r3.Vector{X: 1}},
		}))
		prev = name
	}

	wr, err := s.WalkToRoot(prev)
	require.NoError(t, err)
	require.NotNil(t, wr)
	require.False(t, wr.ReachedNilParent)
}

// TestWalkToRootSucceedsAtExactMaxDepth pins the boundary spec.md promises:
// a chain that takes exactly MaxDepth hops to reach world must still
// resolve, not be cut one hop short.
func TestWalkToRootSucceedsAtExactMaxDepth(t *testing.T) {
	s := openTestStore(t)
	prev := RootName
	for i := 0; i < MaxDepth; i++ {
		name := fmt.Sprintf("f%03d", i)
		require.NoError(t, s.UpsertReplace(Record{
			Name: name, Parent: prev,
			Pose: se3.Pose{R: se3.Identity().R, T: r3.Vector{X: 1}},
		}))
		prev = name
	}

	wr, err := s.WalkToRoot(prev)
	require.NoError(t, err)
	require.NotNil(t, wr)
	require.True(t, wr.ReachedNilParent)
	require.Equal(t, RootName, wr.RootName)
	require.Equal(t, MaxDepth, wr.Depth)
}
