package pipeline

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/db"
)

// PassMode selects which rewrite a pass applies to file content.
type PassMode int

const (
	// PassPaths rewrites plain path prefixes.
	PassPaths PassMode = iota
	// PassIDPaths rewrites identifiers embedded in paths and relocates
	// files whose own location contains an identifier.
	PassIDPaths
	// PassIDColumns rewrites identifier columns in databases.
	PassIDColumns
)

// HandlerKind tags the content handler a job file is processed with. The
// set is closed: job declarations name the handler up front instead of
// sniffing file content at run time.
type HandlerKind int

const (
	// HandlerCopyOnly moves the file without touching its content.
	HandlerCopyOnly HandlerKind = iota
	// HandlerDatabase rewrites columns of an SQLite database.
	HandlerDatabase
	// HandlerXML rewrites element text of an XML document.
	HandlerXML
	// HandlerJSON rewrites string values of a JSON document.
	HandlerJSON
	// HandlerMBLink rewrites a MusicBrainz link file as one raw string.
	HandlerMBLink
)

// HandlerRule binds a file extension to a handler for mixed wildcard jobs.
type HandlerRule struct {
	Ext  string
	Kind HandlerKind
}

// Target policies understood by ResolveTarget. Anything else is taken as
// an explicit target path.
const (
	// TargetAuto derives the target from the source via the path mappings
	// and copies the file there.
	TargetAuto = "auto"
	// TargetAutoExisting derives the target the same way but expects the
	// file to already exist there and skips the copy.
	TargetAutoExisting = "auto-existing"
)

// Job declares one unit of migration work: which file or glob to process,
// where the result goes and how its content is rewritten.
type Job struct {
	// Source is an absolute path or a doublestar glob pattern.
	Source string
	// Target is TargetAuto, TargetAutoExisting or an explicit path.
	Target string

	// Handler applies when Rules is empty or no rule matches.
	Handler HandlerKind
	// Rules maps extensions to handlers for mixed wildcard jobs.
	Rules []HandlerRule

	// Tables drives HandlerDatabase during the path passes.
	Tables []db.TableSpec
	// IDTables drives HandlerDatabase during the identifier column pass,
	// keyed by table name.
	IDTables map[string]db.IDTableSpec

	// NoLog suppresses per-file logging for bulk jobs.
	NoLog bool
}

func (j *Job) handlerFor(path string) HandlerKind {
	if len(j.Rules) == 0 {
		return j.Handler
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, r := range j.Rules {
		if strings.ToLower(r.Ext) == ext {
			return r.Kind
		}
	}
	return j.Handler
}

// idTableSpecs returns the identifier column specs in a stable order.
func (j *Job) idTableSpecs() []idTable {
	out := make([]idTable, 0, len(j.IDTables))
	for name, spec := range j.IDTables {
		out = append(out, idTable{name: name, spec: spec})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].name < out[b].name })
	return out
}

type idTable struct {
	name string
	spec db.IDTableSpec
}
