package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"

	internal "github.com/sunipkm/Jellyfin-Migrator/jfmigrate"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/db"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pathmap"
)

// Tags whose text is free-form prose. Plugins occasionally write paths
// into descriptions, but rewriting prose does more harm than good.
var xmlExcludedTags = map[string]bool{
	"biography": true,
	"outline":   true,
}

// replacerFor returns the value rewrite applied by the current pass.
func (e *Env) replacerFor(mode PassMode) db.ValueReplacer {
	switch mode {
	case PassIDPaths:
		return func(v any) (any, pathmap.Stats) {
			return pathmap.ReplaceIDs(v, e.IDPathKeys, e.slash())
		}
	default:
		return func(v any) (any, pathmap.Stats) {
			return pathmap.Replace(v, e.PathMap)
		}
	}
}

// processFile applies the job's content handler to the resolved target.
func processFile(ctx context.Context, env *Env, job *Job, source, target string, mode PassMode) error {
	if target == "" {
		return nil
	}
	if info, err := os.Stat(target); err == nil && info.IsDir() {
		return nil
	}
	if !job.NoLog {
		slog.Debug("processing", "path", target)
	}

	var err error
	switch job.handlerFor(target) {
	case HandlerCopyOnly:
		// Content untouched.
	case HandlerDatabase:
		err = rewriteDatabase(ctx, env, job, source, target, mode)
	case HandlerXML:
		err = rewriteXML(target, env.replacerFor(mode), job.NoLog)
	case HandlerJSON:
		err = rewriteJSON(target, env.replacerFor(mode), job.NoLog)
	case HandlerMBLink:
		err = rewriteMBLink(target, env.replacerFor(mode))
	default:
		err = fmt.Errorf("unknown handler for %s", target)
	}
	if err != nil {
		return err
	}

	if mode == PassIDPaths {
		return relocateByID(env, target)
	}
	return nil
}

// relocateByID moves a file whose own location embeds an identifier that
// changed, re-deriving the sharded parent folder along the way.
func relocateByID(env *Env, target string) error {
	moved, ok := pathmap.ReplaceIDPath(filepath.ToSlash(target), env.IDPathKeys, "/")
	if !ok {
		return nil
	}
	return moveFile(target, filepath.FromSlash(moved))
}

func rewriteDatabase(ctx context.Context, env *Env, job *Job, source, target string, mode PassMode) error {
	if filepath.Base(target) == internal.DefaultLibraryDBName {
		env.RecordLibraryDB(source, target)
	}
	d, err := db.Open(target)
	if err != nil {
		return err
	}
	defer d.Close()

	if mode == PassIDColumns {
		if env.IDs == nil {
			return fmt.Errorf("identifier mapping not derived yet")
		}
		for _, t := range job.idTableSpecs() {
			changed, err := d.UpdateIDColumns(ctx, t.name, t.spec, env.IDs)
			if err != nil {
				return fmt.Errorf("table %s: %w", t.name, err)
			}
			if !job.NoLog {
				slog.Info("identifier columns rewritten",
					"db", filepath.Base(target), "table", t.name, "changed", changed)
			}
		}
		return nil
	}

	replace := env.replacerFor(mode)
	for _, spec := range job.Tables {
		modified, stats, err := d.UpdateTable(ctx, spec, replace)
		if err != nil {
			return fmt.Errorf("table %s: %w", spec.Table, err)
		}
		if !job.NoLog {
			slog.Info("table rewritten",
				"db", filepath.Base(target), "table", spec.Table,
				"modified", modified, "unmatched", stats.Unmatched)
		}
	}
	return nil
}

func rewriteXML(path string, replace db.ValueReplacer, quiet bool) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	var stats pathmap.Stats
	var walk func(el *etree.Element)
	walk = func(el *etree.Element) {
		if !xmlExcludedTags[strings.ToLower(el.Tag)] {
			if text := el.Text(); text != "" {
				out, st := replace(text)
				stats.Add(st)
				if st.Modified > 0 {
					el.SetText(out.(string))
				}
			}
		}
		for _, child := range el.ChildElements() {
			walk(child)
		}
	}
	if root := doc.Root(); root != nil {
		walk(root)
	}
	if stats.Modified == 0 {
		return nil
	}
	if !quiet {
		slog.Debug("xml rewritten", "path", path, "modified", stats.Modified)
	}
	if err := doc.WriteToFile(path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func rewriteJSON(path string, replace db.ValueReplacer, quiet bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var value any
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	out, stats := replace(value)
	if stats.Modified == 0 {
		return nil
	}
	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if !quiet {
		slog.Debug("json rewritten", "path", path, "modified", stats.Modified)
	}
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// rewriteMBLink treats the whole file as a single path string, the way
// MusicBrainz link files are stored.
func rewriteMBLink(path string, replace db.ValueReplacer) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	out, stats := replace(string(raw))
	if stats.Modified == 0 {
		return nil
	}
	if err := os.WriteFile(path, []byte(out.(string)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
