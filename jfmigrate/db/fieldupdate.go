package db

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pathmap"
)

// TableSpec declares which columns of a table hold which kind of content.
type TableSpec struct {
	Table string
	// PathColumns hold a plain path string.
	PathColumns []string
	// JSONColumns hold a JSON document with paths (and, during the
	// identifier passes, identifiers) somewhere inside.
	JSONColumns []string
	// ImageColumns hold Jellyfin's composite image metadata strings:
	// |-separated entries of *-separated fields whose first field is a path.
	ImageColumns []string
}

// ValueReplacer is the rewriting primitive applied to column content. The
// path pass plugs in pathmap.Replace, the identifier pass pathmap.ReplaceIDs.
type ValueReplacer func(v any) (any, pathmap.Stats)

// UpdateTable applies the replacer to the declared columns of every row of
// one table. Only columns that actually changed are written back; rows
// where nothing changed are skipped entirely, which makes the operation
// idempotent and cheap to re-run.
//
// A row that cannot be read with the expected cardinality is logged and
// skipped. A write that affects zero rows means the database changed under
// us and aborts with an error.
func (d *DB) UpdateTable(ctx context.Context, spec TableSpec, replace ValueReplacer) (int, pathmap.Stats, error) {
	var stats pathmap.Stats

	cols := make([]string, 0, len(spec.JSONColumns)+len(spec.PathColumns)+len(spec.ImageColumns))
	cols = append(cols, spec.JSONColumns...)
	cols = append(cols, spec.PathColumns...)
	cols = append(cols, spec.ImageColumns...)
	if len(cols) == 0 {
		return 0, stats, nil
	}

	// Read the full rowid list up front: the rows are mutated inside the
	// loop, which would break a live result set.
	rowids, err := d.tableRowIDs(ctx, spec.Table)
	if err != nil {
		return 0, stats, err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = fmt.Sprintf("`%s`", c)
	}
	selectQuery := fmt.Sprintf("SELECT %s FROM `%s` WHERE `rowid` = ?", strings.Join(quoted, ", "), spec.Table)

	jsonStop := len(spec.JSONColumns)
	pathStop := jsonStop + len(spec.PathColumns)

	for _, rowid := range rowids {
		values, ok, err := d.fetchSingleRow(ctx, selectQuery, rowid, len(cols))
		if err != nil {
			return stats.Modified, stats, err
		}
		if !ok {
			continue
		}

		changed := make(map[string]any)

		for i, v := range values[:jsonStop] {
			raw := asString(v)
			if raw == "" {
				continue
			}
			var doc any
			if err := json.Unmarshal([]byte(raw), &doc); err != nil {
				slog.Warn("Skipping malformed JSON column",
					"table", spec.Table, "column", spec.JSONColumns[i], "rowid", rowid, "error", err)
				continue
			}
			doc, st := replace(doc)
			stats.Add(st)
			if st.Modified == 0 {
				continue
			}
			encoded, err := json.Marshal(doc)
			if err != nil {
				return stats.Modified, stats, fmt.Errorf("failed to re-encode JSON column %s: %w", spec.JSONColumns[i], err)
			}
			changed[spec.JSONColumns[i]] = string(encoded)
		}

		for i, v := range values[jsonStop:pathStop] {
			raw := asString(v)
			out, st := replace(raw)
			stats.Add(st)
			if st.Modified > 0 {
				changed[spec.PathColumns[i]] = out
			}
		}

		for i, v := range values[pathStop:] {
			raw := asString(v)
			if raw == "" {
				continue
			}
			out, st := RewriteImageBlob(raw, replace)
			stats.Add(st)
			if st.Modified > 0 {
				changed[spec.ImageColumns[i]] = out
			}
		}

		if len(changed) == 0 {
			continue
		}
		if err := d.writeRow(ctx, spec.Table, rowid, changed); err != nil {
			return stats.Modified, stats, err
		}
	}

	slog.Info("Processed table",
		"table", spec.Table, "rows", len(rowids), "modified", stats.Modified)
	return stats.Modified, stats, nil
}

// RewriteImageBlob rewrites the path field of every entry in a composite
// image metadata string, leaving all other fields byte-identical. A typical
// entry looks like
//
//	%MetadataPath%\library\71\71d0...\poster.jpg*637693022742223153*Primary*198*198*<blurhash>
//
// and several entries may be packed into one value separated by |.
func RewriteImageBlob(s string, replace ValueReplacer) (string, pathmap.Stats) {
	var stats pathmap.Stats
	entries := strings.Split(s, "|")
	for i, entry := range entries {
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, "*")
		out, st := replace(fields[0])
		stats.Add(st)
		if path, ok := out.(string); ok {
			fields[0] = path
		}
		entries[i] = strings.Join(fields, "*")
	}
	return strings.Join(entries, "|"), stats
}

func (d *DB) tableRowIDs(ctx context.Context, table string) ([]int64, error) {
	rows, err := d.conn.QueryContext(ctx, fmt.Sprintf("SELECT `rowid` FROM `%s`", table))
	if err != nil {
		return nil, fmt.Errorf("failed to list rows of %s: %w", table, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan rowid: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// fetchSingleRow reads the declared columns of one row. The second return
// is false when the row did not resolve to exactly one result; that is a
// malformed-row condition which the caller skips.
func (d *DB) fetchSingleRow(ctx context.Context, query string, rowid int64, ncols int) ([]any, bool, error) {
	rows, err := d.conn.QueryContext(ctx, query, rowid)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch row %d: %w", rowid, err)
	}
	defer rows.Close()

	var results [][]any
	for rows.Next() {
		values := make([]any, ncols)
		ptrs := make([]any, ncols)
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, fmt.Errorf("failed to scan row %d: %w", rowid, err)
		}
		results = append(results, values)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(results) != 1 {
		slog.Warn("Row query returned unexpected cardinality, skipping row",
			"rowid", rowid, "results", len(results))
		return nil, false, nil
	}
	return results[0], true, nil
}

func (d *DB) writeRow(ctx context.Context, table string, rowid int64, changed map[string]any) error {
	sets := make([]string, 0, len(changed))
	args := make([]any, 0, len(changed)+1)
	for col, val := range changed {
		sets = append(sets, fmt.Sprintf("`%s` = ?", col))
		args = append(args, val)
	}
	args = append(args, rowid)

	query := fmt.Sprintf("UPDATE `%s` SET %s WHERE `rowid` = ?", table, strings.Join(sets, ", "))
	res, err := d.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update row %d of %s: %w", rowid, table, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		// The rowid was read moments ago; a zero-row update means the
		// database is not in the state we believe it to be.
		return fmt.Errorf("update of row %d in %s affected no rows: internal consistency violated", rowid, table)
	}
	return nil
}

// asString normalizes the driver's column representations. SQLite TEXT may
// surface as string or []byte depending on declared column affinity.
func asString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return ""
	}
}
