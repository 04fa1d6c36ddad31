package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/ids"
)

// IDTableSpec declares, per identifier representation, which columns of a
// table store identifiers in that form.
type IDTableSpec map[ids.Format][]string

// UpdateIDColumns rewrites every occurrence of a changed identifier in the
// declared columns. Values are matched exactly against the mapping of the
// column's declared representation.
//
// When an update would violate a uniqueness constraint, the new identifier
// already exists on another row: that is the collision case from the
// derivation step, and the conflicting rows carrying the old identifier are
// deleted instead, with their content logged for the operator to audit.
func (d *DB) UpdateIDColumns(ctx context.Context, table string, spec IDTableSpec, mapping *ids.Mapping) (int, error) {
	updated := 0
	for format, columns := range spec {
		lookup := mapping.ByFormat(format)
		if lookup == nil {
			return updated, fmt.Errorf("unknown identifier format %q for table %s", format, table)
		}
		for _, column := range columns {
			n, err := d.updateIDColumn(ctx, table, column, format, lookup)
			if err != nil {
				return updated, err
			}
			updated += n
		}
	}
	return updated, nil
}

func (d *DB) updateIDColumn(ctx context.Context, table, column string, format ids.Format, lookup map[string]string) (int, error) {
	slog.Info("Updating identifiers", "table", table, "column", column, "format", string(format))

	// Distinct values first; the rows are mutated below, so no live cursor.
	values, err := d.distinctColumn(ctx, table, column)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, old := range values {
		newValue, ok := lookup[old]
		if !ok {
			continue
		}
		oldArg, newArg := idArgs(format, old, newValue)

		query := fmt.Sprintf("UPDATE `%s` SET `%s` = ? WHERE `%s` = ?", table, column, column)
		if _, err := d.conn.ExecContext(ctx, query, newArg, oldArg); err != nil {
			if !isConstraintViolation(err) {
				return updated, fmt.Errorf("failed to update %s.%s: %w", table, column, err)
			}
			if err := d.deleteConflictingRows(ctx, table, column, oldArg); err != nil {
				return updated, err
			}
		}
		updated++
	}
	return updated, nil
}

// deleteConflictingRows drops the rows still carrying the old identifier
// after their target value turned out to exist already. There is no
// principled way to merge two item records, so delete-and-log it is. Other
// tables referencing the deleted identifier are cleaned up by their own
// entries in the identifier job list; the logged row content lets the
// operator audit what was dropped.
func (d *DB) deleteConflictingRows(ctx context.Context, table, column string, oldArg any) error {
	rows, err := d.conn.QueryContext(ctx,
		fmt.Sprintf("SELECT * FROM `%s` WHERE `%s` = ?", table, column), oldArg)
	if err != nil {
		return fmt.Errorf("failed to fetch conflicting rows from %s: %w", table, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return err
	}
	count := 0
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			rows.Close()
			return err
		}
		fields := make([]string, len(cols))
		for i, c := range cols {
			fields[i] = fmt.Sprintf("%s=%v", c, values[i])
		}
		count++
		slog.Debug("Deleting duplicated row", "table", table, "row", strings.Join(fields, " "))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	slog.Info("Deleting duplicated entries after identifier collision",
		"table", table, "column", column, "rows", count)
	if _, err := d.conn.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM `%s` WHERE `%s` = ?", table, column), oldArg); err != nil {
		return fmt.Errorf("failed to delete conflicting rows from %s: %w", table, err)
	}
	return nil
}

func (d *DB) distinctColumn(ctx context.Context, table, column string) ([]string, error) {
	rows, err := d.conn.QueryContext(ctx,
		fmt.Sprintf("SELECT DISTINCT `%s` FROM `%s`", column, table))
	if err != nil {
		return nil, fmt.Errorf("failed to scan distinct values of %s.%s: %w", table, column, err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		switch val := v.(type) {
		case string:
			values = append(values, val)
		case []byte:
			values = append(values, string(val))
		}
	}
	return values, rows.Err()
}

// idArgs converts mapping keys back to the driver representation of the
// column: binary identifiers are stored as BLOBs, everything else as TEXT.
func idArgs(format ids.Format, old, new string) (any, any) {
	if format == ids.FormatBinary {
		return []byte(old), []byte(new)
	}
	return old, new
}

func isConstraintViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || strings.Contains(msg, "constraint failed")
}
