package ids

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// CollisionEntry describes one item contributing to an identifier collision.
type CollisionEntry struct {
	OldID   string // compact form
	OldPath string // path in the original database
	NewPath string // path in the rewritten database
}

// Collision reports that two or more old identifiers derive to the same new
// identifier. This happens legitimately when previously separate source
// directories are consolidated into one target directory; the duplicate rows
// will be deleted, not merged, later in the pipeline.
type Collision struct {
	NewID   string // compact form
	Entries []CollisionEntry
}

// Options configures identifier derivation.
type Options struct {
	// ItemsTable is the table carrying guid/type/Path. Defaults to
	// TypedBaseItems.
	ItemsTable string
	// Confirm is consulted when collisions are found. Nil means AutoReject:
	// deleting duplicated rows needs an explicit go-ahead.
	Confirm ConfirmPolicy
}

// Derive recomputes the content-addressed identifier of every item in the
// rewritten library database and returns the mapping of identifiers that
// changed, in all representations. rewritten must already have gone through
// the path pass; original is the untouched source database and is only used
// to report old paths when collisions are found.
func Derive(ctx context.Context, rewritten, original *sql.DB, opts Options) (*Mapping, []Collision, error) {
	table := opts.ItemsTable
	if table == "" {
		table = "TypedBaseItems"
	}

	binary := make(map[string]string)
	rows, err := rewritten.QueryContext(ctx, fmt.Sprintf("SELECT `guid`, `type`, `Path` FROM `%s`", table))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query items from %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var guid []byte
		var itemType string
		var path sql.NullString
		if err := rows.Scan(&guid, &itemType, &path); err != nil {
			return nil, nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		// Placeholder paths like %MetadataPath%\... are virtual and do not
		// participate in identifier derivation.
		if !path.Valid || path.String == "" || path.String[0] == '%' {
			continue
		}
		newGUID := DotNetMD5(itemType + path.String)
		if !bytes.Equal(newGUID, guid) {
			binary[string(guid)] = string(newGUID)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to iterate items: %w", err)
	}

	mapping := NewMapping(binary)
	slog.Info("Derived identifier mapping", "changed", mapping.Len())

	collisions, err := findCollisions(ctx, rewritten, original, table, mapping)
	if err != nil {
		return nil, nil, err
	}
	if len(collisions) > 0 {
		reportCollisions(collisions)
		confirm := opts.Confirm
		if confirm == nil {
			confirm = AutoReject
		}
		if err := confirm(collisions); err != nil {
			return nil, collisions, fmt.Errorf("identifier collisions not confirmed: %w", err)
		}
	}
	return mapping, collisions, nil
}

// findCollisions groups old identifiers by the new identifier they map to
// and fetches the implicated paths from both databases for diagnostics.
func findCollisions(ctx context.Context, rewritten, original *sql.DB, table string, m *Mapping) ([]Collision, error) {
	byNew := make(map[string][]string)
	for oldID, newID := range m.Compact {
		byNew[newID] = append(byNew[newID], oldID)
	}

	var collisions []Collision
	for newID, oldIDs := range byNew {
		if len(oldIDs) < 2 {
			continue
		}
		col := Collision{NewID: newID}
		for _, oldID := range oldIDs {
			bin, err := Binary(oldID)
			if err != nil {
				return nil, err
			}
			entry := CollisionEntry{OldID: oldID}
			// The rewritten database still carries the old guid at this
			// point; only the paths have changed.
			if err := rewritten.QueryRowContext(ctx,
				fmt.Sprintf("SELECT `Path` FROM `%s` WHERE `guid` = ?", table), bin).Scan(&entry.NewPath); err != nil && err != sql.ErrNoRows {
				return nil, fmt.Errorf("failed to fetch rewritten path for %s: %w", oldID, err)
			}
			if original != nil {
				if err := original.QueryRowContext(ctx,
					fmt.Sprintf("SELECT `Path` FROM `%s` WHERE `guid` = ?", table), bin).Scan(&entry.OldPath); err != nil && err != sql.ErrNoRows {
					return nil, fmt.Errorf("failed to fetch original path for %s: %w", oldID, err)
				}
			}
			col.Entries = append(col.Entries, entry)
		}
		collisions = append(collisions, col)
	}
	return collisions, nil
}

func reportCollisions(collisions []Collision) {
	slog.Warn("Duplicate identifiers detected among newly derived IDs. "+
		"This indicates media from different source directories being consolidated into fewer target directories. "+
		"The duplicated item rows will be DELETED from the database, not merged.",
		"collisions", len(collisions))
	for _, col := range collisions {
		for _, e := range col.Entries {
			slog.Warn("Colliding item",
				"old_id", e.OldID,
				"new_id", col.NewID,
				"old_path", e.OldPath,
				"new_path", e.NewPath)
		}
	}
}
