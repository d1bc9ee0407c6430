// Package wrt is the public, staged query builder described in spec.md
// §4.5: In(world) selects a world, then either Get(name).Wrt(basis).Ei(csys)
// resolves a pose, or Set(name).Wrt(basis).Ei(csys).As(matrix) stores one.
// Each stage's public surface exposes only the next legal call, so the
// builder cannot be used out of order — the compiler enforces the grammar.
//
// The builder itself is stateless between calls: each terminal call (Ei for
// a Get, As for a Set) opens the world's session, performs the one
// operation, and closes it again.
package wrt

import (
	"gonum.org/v1/gonum/mat"
	"go.uber.org/zap"

	"github.com/PhilNad/with-respect-to/internal/framegraph"
	"github.com/PhilNad/with-respect-to/internal/session"
	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

// Error, Kind and MatrixFault are re-exported here rather than defined fresh
// so that callers can errors.As against a single public type while the
// internal packages (se3, sqlitestore, framegraph, session) stay free to
// construct them without importing this root package — avoiding the import
// cycle a root-owned error type would otherwise force.
type (
	Error       = wrterr.Error
	Kind        = wrterr.Kind
	MatrixFault = wrterr.MatrixFault
)

const (
	InvalidName       = wrterr.InvalidName
	RootImmutable     = wrterr.RootImmutable
	SelfReference     = wrterr.SelfReference
	BadMatrix         = wrterr.BadMatrix
	MissingReference  = wrterr.MissingReference
	DisconnectedGraph = wrterr.DisconnectedGraph
	KinematicLoop     = wrterr.KinematicLoop
	TruncatedChain    = wrterr.TruncatedChain
	NotWritable       = wrterr.NotWritable
	StoreBusy         = wrterr.StoreBusy
)

const (
	NoFault          = wrterr.NoFault
	NotOrthogonal    = wrterr.NotOrthogonal
	WrongDeterminant = wrterr.WrongDeterminant
	BadLastRow       = wrterr.BadLastRow
)

// Option configures the session a world resolves to: where its database
// file lives and whether it is temporary.
type Option func(*session.Options)

// WithDir overrides the Store's directory, skipping the temp/executable/home
// priority chain entirely.
func WithDir(dir string) Option {
	return func(o *session.Options) { o.Dir = dir }
}

// WithTemporary marks the world's database as disposable: /tmp is preferred
// over the executable's directory, and the file (with its WAL/SHM sidecars)
// is deleted once the operation completes.
func WithTemporary() Option {
	return func(o *session.Options) { o.Temporary = true }
}

// WithLogger attaches a zap logger to the session opened for this world.
func WithLogger(log *zap.Logger) Option {
	return func(o *session.Options) { o.Logger = log }
}

// WorldStage is the result of In(world): the only two legal next calls are
// Get and Set.
type WorldStage struct {
	world string
	opts  session.Options
}

// In selects (creating on first use) the named world.
func In(world string, opts ...Option) *WorldStage {
	var so session.Options
	for _, o := range opts {
		o(&so)
	}
	return &WorldStage{world: world, opts: so}
}

func (w *WorldStage) open() (*session.Session, error) {
	sess, werr := session.Open(w.world, w.opts)
	if werr != nil {
		return nil, werr
	}
	return sess, nil
}

// Get begins a read query for subject's pose.
func (w *WorldStage) Get(subject string) *GetStage {
	return &GetStage{world: w, subject: subject}
}

// Set begins a write of subject's pose.
func (w *WorldStage) Set(subject string) *SetStage {
	return &SetStage{world: w, subject: subject}
}

// GetStage is Get(subject); the only legal next call is Wrt.
type GetStage struct {
	world   *WorldStage
	subject string
}

// Wrt names the basis subject's pose is reported relative to.
func (g *GetStage) Wrt(basis string) *GetWrtStage {
	return &GetWrtStage{get: g, basis: basis}
}

// GetWrtStage is Get(subject).Wrt(basis); the only legal next call is Ei.
type GetWrtStage struct {
	get   *GetStage
	basis string
}

// Ei names the coordinate system the translation is expressed in and
// resolves the query, returning the canonical 4x4 homogeneous matrix.
func (s *GetWrtStage) Ei(csys string) (*mat.Dense, error) {
	if werr := framegraph.ValidateRoleNames(s.get.subject, s.basis, csys); werr != nil {
		return nil, werr
	}
	sess, err := s.get.world.open()
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	m, werr := sess.FrameGraph().GetMatrix(s.get.subject, s.basis, csys)
	if werr != nil {
		return nil, werr
	}
	return m, nil
}

// SetStage is Set(subject); the only legal next call is Wrt.
type SetStage struct {
	world   *WorldStage
	subject string
}

// Wrt names the basis the subject's new pose will be stored relative to.
func (s *SetStage) Wrt(basis string) *SetWrtStage {
	return &SetWrtStage{set: s, basis: basis}
}

// SetWrtStage is Set(subject).Wrt(basis); the only legal next call is Ei.
type SetWrtStage struct {
	set   *SetStage
	basis string
}

// Ei names the coordinate system the incoming matrix's translation is
// expressed in.
func (s *SetWrtStage) Ei(csys string) *SetEiStage {
	return &SetEiStage{wrt: s, csys: csys}
}

// SetEiStage is Set(subject).Wrt(basis).Ei(csys); the only legal next call
// is As, which performs the write.
type SetEiStage struct {
	wrt  *SetWrtStage
	csys string
}

// As stores m as subject's pose and resolves the query.
func (s *SetEiStage) As(m *mat.Dense) error {
	sess, err := s.wrt.set.world.open()
	if err != nil {
		return err
	}
	defer sess.Close()

	if werr := sess.FrameGraph().Set(s.wrt.set.subject, s.wrt.basis, s.csys, m); werr != nil {
		return werr
	}
	return nil
}
