// Package pipeline orchestrates the migration: it walks the declarative job
// lists, resolves target locations, dispatches content handlers and runs the
// three rewrite passes (plain paths, identifiers in paths, identifiers in
// data) followed by timestamp reconciliation.
package pipeline

import (
	"sync"

	assert "github.com/ZanzyTHEbar/assert-lib"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/ids"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pathmap"
)

// Env is the explicit pipeline context threaded through every component
// call. The mappings it carries are read-only snapshots for the current
// pass, which makes the Env safe to share across workers; the only mutable
// state is the library database location, recorded once under a lock when
// the relevant job resolves it.
type Env struct {
	// OriginalRoot is the root the library was originally installed under
	// (for example C:/ProgramData/Jellyfin), which may differ from the
	// copied tree being read.
	OriginalRoot string
	// SourceRoot is the copy of the library being migrated.
	SourceRoot string
	// TargetRoot is where migrated files are written.
	TargetRoot string

	// PathMap rewrites path prefixes; FSMap translates container/bind-mount
	// paths back to real filesystem locations.
	PathMap *pathmap.Mapping
	FSMap   *pathmap.Mapping

	// IDs and IDPathKeys are the identifier snapshot for the second and
	// third pass; nil until derivation ran.
	IDs        *ids.Mapping
	IDPathKeys map[string]string

	// ItemsTable is the table identifiers are derived from.
	ItemsTable string

	// AllowInPlace permits jobs whose resolved target equals the source.
	// Off by default: mutating originals is almost always a mistake.
	AllowInPlace bool

	// Parallel enables the worker pool for large wildcard expansions.
	Parallel  bool
	Workers   int
	ChunkSize int

	// Confirm is consulted when identifier collisions are detected. Nil
	// rejects, aborting before any duplicate row is deleted.
	Confirm ids.ConfirmPolicy

	// Ignore filters wildcard expansions; cache and log content has no
	// business being migrated.
	Ignore *ignore.GitIgnore

	// Assert guards pipeline invariants that indicate programmer error.
	Assert *assert.AssertHandler

	mu              sync.Mutex
	libraryDBSource string
	libraryDBTarget string
}

// RecordLibraryDB remembers where the library database ended up. The
// derivation step and the timestamp reconciler need it later.
func (e *Env) RecordLibraryDB(source, target string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.libraryDBSource = source
	e.libraryDBTarget = target
}

// LibraryDB returns the recorded library database locations.
func (e *Env) LibraryDB() (source, target string, ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.libraryDBSource, e.libraryDBTarget, e.libraryDBTarget != ""
}

func (e *Env) workers() int {
	if e.Workers <= 0 {
		return 8
	}
	return e.Workers
}

func (e *Env) chunkSize() int {
	if e.ChunkSize <= 0 {
		return 2000
	}
	return e.ChunkSize
}

func (e *Env) slash() string {
	if e.PathMap != nil && e.PathMap.Slash != "" {
		return e.PathMap.Slash
	}
	return "/"
}
