package pipeline

import (
	"path/filepath"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/db"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/ids"
)

// extensionRules is the shared extension dispatch for mixed wildcard jobs,
// matching how Jellyfin stores its sidecar files: .nfo files are XML and
// .mblink files hold a single raw path.
var extensionRules = []HandlerRule{
	{Ext: ".xml", Kind: HandlerXML},
	{Ext: ".nfo", Kind: HandlerXML},
	{Ext: ".json", Kind: HandlerJSON},
	{Ext: ".mblink", Kind: HandlerMBLink},
}

func libraryDBTables() []db.TableSpec {
	return []db.TableSpec{
		{
			Table:        "TypedBaseItems",
			PathColumns:  []string{"path"},
			ImageColumns: []string{"Images"},
			JSONColumns:  []string{"data"},
		},
		{
			Table:       "mediastreams",
			PathColumns: []string{"Path"},
		},
		{
			Table:        "Chapters2",
			ImageColumns: []string{"ImagePath"},
		},
	}
}

// DefaultPathJobs is the first pass: every file of a Jellyfin installation
// that can contain paths, most specific first so the catch-all copy at the
// end only sees what nothing else claimed.
func DefaultPathJobs(env *Env) []Job {
	src := func(rel string) string {
		return filepath.Join(env.SourceRoot, filepath.FromSlash(rel))
	}
	return []Job{
		{
			Source:  src("data/library.db"),
			Target:  TargetAuto,
			Handler: HandlerDatabase,
			Tables:  libraryDBTables(),
		},
		{
			Source:  src("data/jellyfin.db"),
			Target:  TargetAuto,
			Handler: HandlerDatabase,
			Tables: []db.TableSpec{
				{Table: "ImageInfos", PathColumns: []string{"Path"}},
			},
		},
		// Remaining databases hold no paths, copy them untouched.
		{
			Source:  src("data/*.db"),
			Target:  TargetAuto,
			Handler: HandlerCopyOnly,
			NoLog:   true,
		},
		{
			Source:  src("plugins/**/*.json"),
			Target:  TargetAuto,
			Handler: HandlerJSON,
		},
		{
			Source:  src("config/*.xml"),
			Target:  TargetAuto,
			Handler: HandlerXML,
		},
		{
			Source:  src("metadata/**/*.nfo"),
			Target:  TargetAuto,
			Handler: HandlerXML,
		},
		// Library folder trees mix .xml, .mblink and .collection files.
		{
			Source: src("root/**/*.*"),
			Target: TargetAuto,
			Rules:  extensionRules,
		},
		{
			Source:  src("data/collections/**/collection.xml"),
			Target:  TargetAuto,
			Handler: HandlerXML,
		},
		{
			Source:  src("data/playlists/**/playlist.xml"),
			Target:  TargetAuto,
			Handler: HandlerXML,
		},
		// Whatever is left gets copied verbatim.
		{
			Source:  src("**/*.*"),
			Target:  TargetAuto,
			Handler: HandlerCopyOnly,
			NoLog:   true,
		},
	}
}

// DefaultIDPathJobs is the second pass: rewrite identifiers occurring
// inside stored paths and relocate files whose own location embeds one.
// Targets are auto-existing because the first pass already copied
// everything.
func DefaultIDPathJobs(env *Env) []Job {
	src := func(rel string) string {
		return filepath.Join(env.SourceRoot, filepath.FromSlash(rel))
	}
	return []Job{
		{
			Source:  src("data/library.db"),
			Target:  TargetAutoExisting,
			Handler: HandlerDatabase,
			Tables:  libraryDBTables(),
		},
		{
			Source:  src("config/*.xml"),
			Target:  TargetAutoExisting,
			Handler: HandlerXML,
		},
		{
			Source: src("metadata/**/*"),
			Target: TargetAutoExisting,
			Rules:  extensionRules,
		},
		{
			Source: src("root/**/*"),
			Target: TargetAutoExisting,
			Rules:  extensionRules,
		},
		{
			Source: src("data/**/*"),
			Target: TargetAutoExisting,
			Rules:  extensionRules,
		},
	}
}

// DefaultIDJobs is the third pass: identifier columns stored outside of
// paths, per representation.
func DefaultIDJobs(env *Env) []Job {
	src := func(rel string) string {
		return filepath.Join(env.SourceRoot, filepath.FromSlash(rel))
	}
	return []Job{
		{
			Source:  src("data/library.db"),
			Target:  TargetAutoExisting,
			Handler: HandlerDatabase,
			IDTables: map[string]db.IDTableSpec{
				"AncestorIds": {
					ids.FormatAncestor: {"AncestorIdText"},
					ids.FormatBinary:   {"ItemId", "AncestorId"},
				},
				"Chapters2": {
					ids.FormatBinary: {"ItemId"},
				},
				"ItemValues": {
					ids.FormatBinary: {"ItemId"},
				},
				"People": {
					ids.FormatBinary: {"ItemId"},
				},
				"TypedBaseItems": {
					ids.FormatAncestor: {"TopParentId", "PresentationUniqueKey", "SeriesPresentationUniqueKey"},
					ids.FormatDashed:   {"UserDataKey", "ExtraIds"},
					ids.FormatBinary:   {"guid", "ParentId", "SeasonId", "SeriesId", "OwnerId"},
				},
				"UserDatas": {
					ids.FormatDashed: {"key"},
				},
				"mediaattachments": {
					ids.FormatBinary: {"ItemId"},
				},
				"mediastreams": {
					ids.FormatBinary: {"ItemId"},
				},
			},
		},
		{
			Source:  src("data/playback_reporting.db"),
			Target:  TargetAutoExisting,
			Handler: HandlerDatabase,
			IDTables: map[string]db.IDTableSpec{
				"PlaybackActivity": {
					ids.FormatAncestor: {"ItemId"},
				},
			},
		},
	}
}
