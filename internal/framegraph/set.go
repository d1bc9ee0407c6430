package framegraph

import (
	"gonum.org/v1/gonum/mat"

	"github.com/PhilNad/with-respect-to/internal/se3"
	"github.com/PhilNad/with-respect-to/internal/sqlitestore"
	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

// Set implements spec.md §4.3's Set(S).Wrt(B).Ei(C).As(M), including the
// full existence-driven case matrix (rows 1-8) and the reverse-set
// rigid-pose convention.
func (g *FrameGraph) Set(subject, basis, csys string, m *mat.Dense) *wrterr.Error {
	if subject == sqlitestore.RootName {
		return wrterr.Named(wrterr.RootImmutable, subject, "the world root frame cannot be set")
	}
	if basis == subject {
		return wrterr.Named(wrterr.SelfReference, subject, "basis cannot equal the subject")
	}
	if werr := ValidateRoleNames(subject, basis, csys); werr != nil {
		return werr
	}

	pose, verr := se3.Validate(m)
	if verr != nil {
		return verr
	}

	return g.setPose(subject, basis, csys, pose)
}

// setPose is the recursive core of Set, operating on an already-validated
// Pose so the reverse-set branch (case 3) need not re-marshal through a
// 4x4 matrix to recurse.
func (g *FrameGraph) setPose(subject, basis, csys string, pose se3.Pose) *wrterr.Error {
	existsB, err := g.exists(basis)
	if err != nil {
		return asWrterr(err)
	}
	existsS, err := g.exists(subject)
	if err != nil {
		return asWrterr(err)
	}
	existsC, err := g.exists(csys)
	if err != nil {
		return asWrterr(err)
	}

	switch {
	case existsB && existsC:
		// Case 1/2: normal store (S may or may not already exist — a
		// fresh leaf is just a replace of a row that wasn't there).
		return g.storeDirect(subject, basis, csys, pose)

	case !existsB && existsS && existsC:
		// Case 3: reverse. Recurse with roles swapped, preserving Ei,
		// using the rigid-pose reversal (not the full SE(3) inverse):
		// [Rt | -t], per spec.md §9's reverse-set sign convention.
		return g.setPose(basis, subject, csys, se3.RigidInverse(pose))

	case basis == csys:
		// Case 6/7: permitted disconnected subtree — B (==C) need not
		// exist yet. Stored exactly like the B==C branch of a normal
		// store, since that branch never needed B to exist either.
		return g.storeDirect(subject, basis, csys, pose)

	default:
		// Cases 4/5/8.
		missing := basis
		if existsB {
			missing = csys
		}
		return wrterr.Named(wrterr.MissingReference, missing, "required reference frame does not exist")
	}
}

// storeDirect computes R_S_B = R_in and p_S_B_B = R_C_B * p_in, then
// replaces the row named subject with parent = basis. When basis == csys,
// R_C_B is taken to be the identity without needing basis to exist (case
// 6/7); otherwise R_C_B is resolved via Get(csys).Wrt(basis).Ei(basis),
// which does require both to exist (guaranteed by the caller in case 1/2).
func (g *FrameGraph) storeDirect(subject, basis, csys string, pose se3.Pose) *wrterr.Error {
	rCB := se3.Identity().R
	if basis != csys {
		cWrtB, werr := g.Get(csys, basis, basis)
		if werr != nil {
			return werr
		}
		rCB = cWrtB.R
	}

	stored := se3.Pose{
		R: pose.R,
		T: applyRot(rCB, pose.T),
	}

	rec := sqlitestore.Record{Name: subject, Parent: basis, Pose: stored}
	if err := g.store.UpsertReplace(rec); err != nil {
		return asWrterr(err)
	}
	return nil
}

func asWrterr(err error) *wrterr.Error {
	if werr, ok := err.(*wrterr.Error); ok {
		return werr
	}
	return wrterr.Wrap(wrterr.StoreBusy, err, "store operation failed")
}
