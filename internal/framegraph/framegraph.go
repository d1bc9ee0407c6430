// Package framegraph is the semantic layer over the Store: it knows about
// subject/basis/expressed-in roles and implements the three-frame
// re-expression algorithm (Get) and the existence-driven case analysis
// behind Set. It never holds an in-memory tree — every lookup and walk goes
// back to the Store by name, per spec.md §9's "frame records as values, not
// nodes" design note.
package framegraph

import (
	"github.com/golang/geo/r3"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/PhilNad/with-respect-to/internal/namecheck"
	"github.com/PhilNad/with-respect-to/internal/se3"
	"github.com/PhilNad/with-respect-to/internal/sqlitestore"
	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

// FrameGraph resolves Get/Set queries against a single world's Store.
type FrameGraph struct {
	store *sqlitestore.Store
	log   *zap.Logger
}

// New wraps a Store with the role-aware re-expression algebra.
func New(store *sqlitestore.Store, log *zap.Logger) *FrameGraph {
	if log == nil {
		log = zap.NewNop()
	}
	return &FrameGraph{store: store, log: log}
}

// exists reports whether name has a record, surfacing any store failure.
func (g *FrameGraph) exists(name string) (bool, error) {
	rec, err := g.store.FetchByName(name)
	if err != nil {
		return false, err
	}
	return rec != nil, nil
}

// walkTerminal composes the parent chain from name up to whatever row the
// store's bounded walk last reaches, without judging whether that row is a
// genuine tree root. Callers that only need to compare terminal names across
// two walks (basis/csys resolution in Get) use this directly; callers that
// need the pose itself go through walk, which additionally enforces that the
// walk actually reached a NIL parent.
func (g *FrameGraph) walkTerminal(name string) (*sqlitestore.WalkResult, *wrterr.Error) {
	wr, err := g.store.WalkToRoot(name)
	if err != nil {
		if we, ok := err.(*wrterr.Error); ok {
			return nil, we
		}
		return nil, wrterr.Wrap(wrterr.StoreBusy, err, "root-walk failed")
	}
	if wr == nil {
		return nil, wrterr.Named(wrterr.MissingReference, name, "frame does not exist")
	}
	return wr, nil
}

// walk composes the parent chain from name to its deepest reachable
// ancestor and enforces the observable TruncatedChain behavior spec.md §9
// settles on: a chain that doesn't reach a NIL parent within MAX_DEPTH
// fails outright rather than silently returning a partial pose.
func (g *FrameGraph) walk(name string) (*sqlitestore.WalkResult, *wrterr.Error) {
	wr, werr := g.walkTerminal(name)
	if werr != nil {
		return nil, werr
	}
	if !wr.ReachedNilParent {
		if loopErr := g.quatLoopCheck(name); loopErr != nil {
			return nil, loopErr
		}
		return nil, wrterr.Named(wrterr.TruncatedChain, name, "parent chain did not reach a NIL parent within MAX_DEPTH")
	}
	return wr, nil
}

// Get resolves the pose of subject with respect to basis, with the
// translation expressed in csys — the six-step algorithm of spec.md §4.3.
func (g *FrameGraph) Get(subject, basis, csys string) (se3.Pose, *wrterr.Error) {
	// 1. Walk S to its root.
	wrS, werr := g.walk(subject)
	if werr != nil {
		return se3.Pose{}, werr
	}
	xSW, rootS := wrS.Pose, wrS.RootName

	// 2. Resolve B. The root-mismatch check runs against the raw terminal
	// walk before any TruncatedChain/KinematicLoop enforcement: a subtree
	// that never reaches S's root is DisconnectedGraph regardless of
	// whether its own walk happened to reach a NIL parent.
	xBW := se3.Identity()
	if basis != rootS {
		wrB, werr := g.walkTerminal(basis)
		if werr != nil {
			return se3.Pose{}, werr
		}
		if wrB.RootName != rootS {
			return se3.Pose{}, wrterr.Named(wrterr.DisconnectedGraph, basis, "basis resolves to a different root than the subject")
		}
		xBW = wrB.Pose
	}

	// 3. Resolve C, same root-mismatch-first treatment as B.
	xCW := se3.Identity()
	if csys != rootS {
		wrC, werr := g.walkTerminal(csys)
		if werr != nil {
			return se3.Pose{}, werr
		}
		if wrC.RootName != rootS {
			return se3.Pose{}, wrterr.Named(wrterr.DisconnectedGraph, csys, "coordinate system resolves to a different root than the subject")
		}
		xCW = wrC.Pose
	}

	// 4. X_S_B = X_B_W^-1 ∘ X_S_W.
	xSB := se3.Compose(se3.Invert(xBW), xSW)

	// 5. Re-express the translation into C:
	//    p_S_B_C = R_W_C * R_B_W * p_S_B_W.
	rWC := se3.Invert(xCW).R
	rBW := xBW.R
	pSBW := xSB.T
	pSBC := applyRot(rWC, applyRot(rBW, pSBW))

	// 6. Rotation is never re-expressed by Ei — only the translation is.
	return se3.Pose{R: xSB.R, T: pSBC}, nil
}

// applyRot applies a 3x3 rotation to a translation vector (kept local to
// avoid exporting an internal helper from se3 beyond what Pose needs).
func applyRot(r [3][3]float64, v r3.Vector) r3.Vector {
	return r3.Vector{
		X: r[0][0]*v.X + r[0][1]*v.Y + r[0][2]*v.Z,
		Y: r[1][0]*v.X + r[1][1]*v.Y + r[1][2]*v.Z,
		Z: r[2][0]*v.X + r[2][1]*v.Y + r[2][2]*v.Z,
	}
}

// GetMatrix is Get rendered to the canonical 4x4 I/O form.
func (g *FrameGraph) GetMatrix(subject, basis, csys string) (*mat.Dense, *wrterr.Error) {
	p, err := g.Get(subject, basis, csys)
	if err != nil {
		return nil, err
	}
	return se3.ToMatrix(p), nil
}

// ValidateRoleNames checks the name grammar for all three roles in one call,
// used by Set and by the query builder's Get-path Ei stage.
func ValidateRoleNames(names ...string) *wrterr.Error {
	for _, n := range names {
		if err := namecheck.Validate(n); err != nil {
			return err
		}
	}
	return nil
}
