// Package session connects to a named world: it validates the world name,
// resolves which directory the backing store lives in, creates the Store
// file and seeds the root record on first use, and owns the Store handle
// for as long as the Session is open.
package session

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PhilNad/with-respect-to/internal/framegraph"
	"github.com/PhilNad/with-respect-to/internal/namecheck"
	"github.com/PhilNad/with-respect-to/internal/sqlitestore"
	"github.com/PhilNad/with-respect-to/internal/wrterr"
)

// Options configures how a Session locates and manages its backing Store.
type Options struct {
	// Dir overrides directory selection entirely when non-empty.
	Dir string
	// Temporary selects the TEMPORARY_DATABASE flag: prefer /tmp over the
	// executable's directory, and delete the database file (plus its WAL
	// and SHM sidecars) on Close.
	Temporary bool
	// Logger receives structured diagnostics; a no-op logger is used if nil.
	Logger *zap.Logger
}

// Session is a live connection to one world's Store.
type Session struct {
	world     string
	dir       string
	path      string
	temporary bool
	store     *sqlitestore.Store
	graph     *framegraph.FrameGraph
	log       *zap.Logger
}

// Open implements In(world): validate the name, resolve a writable
// directory, open (creating if absent) the world's database, and seed the
// immutable root record.
func Open(world string, opts Options) (*Session, *wrterr.Error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if werr := namecheck.Validate(world); werr != nil {
		return nil, werr
	}

	dir, werr := resolveDir(opts)
	if werr != nil {
		return nil, werr
	}

	path := filepath.Join(dir, world+".db")
	store, err := sqlitestore.Open(path, false, log)
	if err != nil {
		if we, ok := err.(*wrterr.Error); ok {
			return nil, we
		}
		return nil, wrterr.Wrap(wrterr.StoreBusy, err, "failed to open world store")
	}
	if err := store.SeedRoot(); err != nil {
		store.Close()
		if we, ok := err.(*wrterr.Error); ok {
			return nil, we
		}
		return nil, wrterr.Wrap(wrterr.StoreBusy, err, "failed to seed root frame")
	}

	log.Debug("opened world", zap.String("world", world), zap.String("path", path))
	return &Session{
		world:     world,
		dir:       dir,
		path:      path,
		temporary: opts.Temporary,
		store:     store,
		graph:     framegraph.New(store, log),
		log:       log,
	}, nil
}

// World returns the name this session was opened with.
func (s *Session) World() string { return s.world }

// Path returns the resolved database file path.
func (s *Session) Path() string { return s.path }

// FrameGraph exposes the role-aware re-expression engine over this
// session's store.
func (s *Session) FrameGraph() *framegraph.FrameGraph { return s.graph }

// Close releases the Store handle. If this Session was opened with the
// Temporary option, it also deletes the database file and its WAL/SHM
// sidecars — temporary databases are owned exclusively by the Session that
// created them.
func (s *Session) Close() error {
	err := s.store.Close()
	if s.temporary {
		os.Remove(s.path)
		os.Remove(s.path + "-shm")
		os.Remove(s.path + "-wal")
	}
	return err
}

// resolveDir implements the directory-selection priority of spec.md §4.4:
//  1. caller-supplied override, if any;
//  2. /tmp if Temporary and writable, else the home directory;
//  3. otherwise the running executable's directory if writable, else the
//     home directory.
func resolveDir(opts Options) (string, *wrterr.Error) {
	if opts.Dir != "" {
		if !writable(opts.Dir) {
			return "", wrterr.Named(wrterr.NotWritable, opts.Dir, "override directory is not writable")
		}
		return opts.Dir, nil
	}

	if opts.Temporary {
		if tmp := os.TempDir(); writable(tmp) {
			return tmp, nil
		}
		if home, err := os.UserHomeDir(); err == nil && writable(home) {
			return home, nil
		}
		return "", wrterr.New(wrterr.NotWritable, "neither /tmp nor the home directory is writable")
	}

	if exeDir, err := executableDir(); err == nil && writable(exeDir) {
		return exeDir, nil
	}
	if home, err := os.UserHomeDir(); err == nil && writable(home) {
		return home, nil
	}
	return "", wrterr.New(wrterr.NotWritable, "neither the executable directory nor the home directory is writable")
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// writable determines writability by attempting to create and delete a
// probe file, per spec.md §4.4. A random suffix avoids collisions between
// concurrent sessions probing the same candidate directory.
func writable(dir string) bool {
	probe := filepath.Join(dir, ".wrt-probe-"+uuid.NewString())
	f, err := os.Create(probe)
	if err != nil {
		return false
	}
	f.Close()
	os.Remove(probe)
	return true
}
