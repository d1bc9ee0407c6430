// Package sqlitestore is the durable, indexed table of frame records for one
// world. It knows nothing about roles (subject/basis/expressed-in) or the
// re-expression algebra — that lives in internal/framegraph — it only knows
// how to fetch a row by name, replace a row transactionally, and compose an
// entire parent chain into one row with a single recursive query.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/PhilNad/with-respect-to/internal/se3"
	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

// MaxDepth bounds both the parent-chain length a world may have and the
// number of steps the recursive root-walk will take before giving up.
const MaxDepth = 100

// BusyTimeout is the per-operation lock wait before a write fails with
// StoreBusy, per spec.md §4.2/§5.
const BusyTimeout = 10000 * time.Millisecond

// RootName is the reserved, unmodifiable root frame of every world.
const RootName = "world"

// Record is one durable row: a frame's name, its parent (empty for the
// root), and its stored rigid transform relative to that parent.
type Record struct {
	Name   string
	Parent string // empty means NULL / no parent (only valid for RootName)
	Pose   se3.Pose
}

// WalkResult is the outcome of composing a parent chain from a starting
// frame up to the deepest ancestor reached.
type WalkResult struct {
	// RootName is the name of the last frame successfully merged into Pose.
	RootName string
	// Pose is the starting frame's pose with respect to RootName.
	Pose se3.Pose
	// Depth is the number of hops taken (0 if the starting frame is itself root-like).
	Depth int
	// ReachedNilParent is true if RootName's own parent column is NULL,
	// i.e. the walk legitimately terminated at a tree root rather than
	// being cut off by the MaxDepth bound.
	ReachedNilParent bool
}

// Store is a handle onto one world's database file. It opens its database
// connection on demand per operation rather than holding a long-lived
// in-memory cache — concurrency between processes is mediated entirely by
// SQLite's own locking (spec.md §5).
type Store struct {
	db     *sql.DB
	path   string
	log    *zap.Logger
	closed bool
}

// Open opens (creating the schema if absent) the frames database at path.
// readOnly selects SQLite's read-only open mode; the caller is responsible
// for seeding the root record on first creation (see internal/session).
func Open(path string, readOnly bool, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	mode := "rwc"
	if readOnly {
		mode = "ro"
	}
	dsn := fmt.Sprintf(
		"file:%s?mode=%s&_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d",
		path, mode, BusyTimeout.Milliseconds(),
	)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "sql.Open"), "failed to open store")
	}
	// A single writer connection avoids spurious SQLITE_BUSY from this
	// process's own connection pool contending with itself; cross-process
	// contention is still handled by the busy_timeout pragma above.
	if !readOnly {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, path: path, log: log}
	if !readOnly {
		if err := s.ensureSchema(); err != nil {
			db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Path returns the filesystem path this store was opened with.
func (s *Store) Path() string { return s.path }

func (s *Store) ensureSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS frames (
		name   TEXT PRIMARY KEY,
		parent TEXT,
		R00 REAL, R01 REAL, R02 REAL,
		R10 REAL, R11 REAL, R12 REAL,
		R20 REAL, R21 REAL, R22 REAL,
		t0 REAL, t1 REAL, t2 REAL
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "creating frames table"), "failed to create frames table")
	}
	return nil
}

// SeedRoot inserts the immutable root record if it is not already present.
func (s *Store) SeedRoot() error {
	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO frames VALUES ('world', NULL, 1,0,0, 0,1,0, 0,0,1, 0,0,0)`,
	)
	if err != nil {
		return wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "seeding root frame"), "failed to seed root frame")
	}
	return nil
}

// FetchByName returns at most one record. A nil, nil result means the name
// is simply absent — that is a signal the caller interprets, not a fault.
func (s *Store) FetchByName(name string) (*Record, error) {
	row := s.db.QueryRow(
		`SELECT name, parent, R00,R01,R02,R10,R11,R12,R20,R21,R22, t0,t1,t2
		 FROM frames WHERE name = ?`, name,
	)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "scanning frame row"), "fetch failed")
	}
	return rec, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var name string
	var parent sql.NullString
	var r00, r01, r02, r10, r11, r12, r20, r21, r22, t0, t1, t2 float64
	if err := row.Scan(&name, &parent, &r00, &r01, &r02, &r10, &r11, &r12, &r20, &r21, &r22, &t0, &t1, &t2); err != nil {
		return nil, err
	}
	rec := &Record{
		Name:   name,
		Parent: parent.String,
		Pose: se3.SnapToZero(se3.Pose{
			R: [3][3]float64{{r00, r01, r02}, {r10, r11, r12}, {r20, r21, r22}},
			T: r3.Vector{X: t0, Y: t1, Z: t2},
		}),
	}
	return rec, nil
}

// UpsertReplace deletes any existing row named rec.Name and inserts rec, all
// within a single transaction: either the row is fully replaced, or (on any
// failure) it is left untouched.
func (s *Store) UpsertReplace(rec Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "db.Begin"), "failed to start transaction")
	}
	defer tx.Rollback() //nolint:errcheck // no-op once committed

	if _, err := tx.Exec(`DELETE FROM frames WHERE name = ?`, rec.Name); err != nil {
		return wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "delete-before-replace"), "delete-before-replace failed")
	}

	var parent interface{}
	if rec.Parent != "" {
		parent = rec.Parent
	}
	_, err = tx.Exec(
		`INSERT INTO frames VALUES (?, ?, ?,?,?, ?,?,?, ?,?,?, ?,?,?)`,
		rec.Name, parent,
		rec.Pose.R[0][0], rec.Pose.R[0][1], rec.Pose.R[0][2],
		rec.Pose.R[1][0], rec.Pose.R[1][1], rec.Pose.R[1][2],
		rec.Pose.R[2][0], rec.Pose.R[2][1], rec.Pose.R[2][2],
		rec.Pose.T.X, rec.Pose.T.Y, rec.Pose.T.Z,
	)
	if err != nil {
		return wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "insert"), "insert failed")
	}

	if err := tx.Commit(); err != nil {
		return wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "tx.Commit"), "commit failed")
	}
	s.log.Debug("upserted frame", zap.String("name", rec.Name), zap.String("parent", rec.Parent))
	return nil
}

// walkQuery is the single indexed recursive traversal described in spec.md
// §4.2: starting at the named frame, it composes the chain up to its
// deepest reachable ancestor in one query rather than one round trip per
// hop. At each step the accumulator is updated as
//
//	b' = R_parent * b
//	t' = R_parent * t + t_parent
//
// matching the recurrence given in the spec verbatim (unrolled into scalar
// column arithmetic since SQLite has no matrix type).
const walkQuery = `
WITH RECURSIVE walk(cur_name, cur_parent, b00,b01,b02,b10,b11,b12,b20,b21,b22, bx,by,bz, depth) AS (
	SELECT name, parent, R00,R01,R02,R10,R11,R12,R20,R21,R22, t0,t1,t2, 0
	FROM frames WHERE name = ?1
	UNION ALL
	SELECT
		p.name, p.parent,
		p.R00*w.b00 + p.R01*w.b10 + p.R02*w.b20,
		p.R00*w.b01 + p.R01*w.b11 + p.R02*w.b21,
		p.R00*w.b02 + p.R01*w.b12 + p.R02*w.b22,
		p.R10*w.b00 + p.R11*w.b10 + p.R12*w.b20,
		p.R10*w.b01 + p.R11*w.b11 + p.R12*w.b21,
		p.R10*w.b02 + p.R11*w.b12 + p.R12*w.b22,
		p.R20*w.b00 + p.R21*w.b10 + p.R22*w.b20,
		p.R20*w.b01 + p.R21*w.b11 + p.R22*w.b21,
		p.R20*w.b02 + p.R21*w.b12 + p.R22*w.b22,
		p.R00*w.bx + p.R01*w.by + p.R02*w.bz + p.t0,
		p.R10*w.bx + p.R11*w.by + p.R12*w.bz + p.t1,
		p.R20*w.bx + p.R21*w.by + p.R22*w.bz + p.t2,
		w.depth + 1
	FROM walk w
	JOIN frames p ON p.name = w.cur_parent
	WHERE w.cur_parent IS NOT NULL AND w.depth < ?2
)
SELECT cur_name, cur_parent, b00,b01,b02,b10,b11,b12,b20,b21,b22, bx,by,bz, depth
FROM walk ORDER BY depth DESC LIMIT 1`

// WalkToRoot composes the parent chain starting at name, entirely inside the
// store, bounded by MaxDepth steps. If name itself does not exist, it
// returns nil, nil — that is a MissingReference signal for the caller, not a
// store fault.
func (s *Store) WalkToRoot(name string) (*WalkResult, error) {
	row := s.db.QueryRow(walkQuery, name, MaxDepth)

	var curName string
	var curParent sql.NullString
	var b00, b01, b02, b10, b11, b12, b20, b21, b22, bx, by, bz float64
	var depth int
	err := row.Scan(&curName, &curParent, &b00, &b01, &b02, &b10, &b11, &b12, &b20, &b21, &b22, &bx, &by, &bz, &depth)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrterr.Wrap(wrterr.StoreBusy, pkgerrors.Wrap(err, "recursive root-walk query"), "recursive root-walk failed")
	}

	return &WalkResult{
		RootName: curName,
		Pose: se3.SnapToZero(se3.Pose{
			R: [3][3]float64{{b00, b01, b02}, {b10, b11, b12}, {b20, b21, b22}},
			T: r3.Vector{X: bx, Y: by, Z: bz},
		}),
		Depth:            depth,
		ReachedNilParent: !curParent.Valid,
	}, nil
}
