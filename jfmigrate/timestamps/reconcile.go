package timestamps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v2"
	"github.com/sourcegraph/conc/pool"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/db"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pathmap"
)

// Options configures a reconciliation run.
type Options struct {
	// Table is the items table. Defaults to TypedBaseItems.
	Table string
	// FSMap translates database paths back to real filesystem locations
	// (undoing container/bind-mount prefixes).
	FSMap *pathmap.Mapping
	// TargetRoot anchors rooted/relative mapped paths.
	TargetRoot string
	// Parallel enables the concurrent stat phase.
	Parallel bool
	// Workers bounds the stat pool. Zero means a sensible default.
	Workers int
	// ChunkSize partitions the row list for the stat pool. Zero means 2000.
	ChunkSize int
}

type rowDates struct {
	rowid    int64
	path     string
	created  string
	modified string
}

// datePatch carries the corrections for one row; nil fields stay untouched.
type datePatch struct {
	rowid    int64
	created  *string
	modified *string
}

// Reconcile replaces sentinel creation/modification dates in the database
// with the actual filesystem timestamps of the migrated files. The stat
// phase may run on a worker pool; database writes are always sequential.
// Rows whose backing file does not exist are skipped; that is expected for
// library entries whose media was deliberately excluded from the migration.
func Reconcile(ctx context.Context, d *db.DB, opts Options) (int, error) {
	table := opts.Table
	if table == "" {
		table = "TypedBaseItems"
	}
	slog.Info("Updating file dates. Reading file metadata can be slow, this may take a while.")

	rows, err := d.RawDB().QueryContext(ctx, fmt.Sprintf(
		"SELECT `rowid`, `Path`, `DateCreated`, `DateModified` FROM `%s`", table))
	if err != nil {
		return 0, fmt.Errorf("failed to query dates from %s: %w", table, err)
	}
	var todo []rowDates
	for rows.Next() {
		var r rowDates
		var path, created, modified *string
		if err := rows.Scan(&r.rowid, &path, &created, &modified); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan date row: %w", err)
		}
		if path == nil || *path == "" {
			continue
		}
		r.path = *path
		if created != nil {
			r.created = *created
		}
		if modified != nil {
			r.modified = *modified
		}
		todo = append(todo, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	var patches []datePatch
	if opts.Parallel {
		patches, err = statParallel(ctx, todo, opts)
	} else {
		patches, err = statSequential(todo, opts)
	}
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, p := range patches {
		if p.created != nil {
			if _, err := d.RawDB().ExecContext(ctx, fmt.Sprintf(
				"UPDATE `%s` SET `DateCreated` = ? WHERE `rowid` = ?", table), *p.created, p.rowid); err != nil {
				return updated, fmt.Errorf("failed to update DateCreated of row %d: %w", p.rowid, err)
			}
		}
		if p.modified != nil {
			if _, err := d.RawDB().ExecContext(ctx, fmt.Sprintf(
				"UPDATE `%s` SET `DateModified` = ? WHERE `rowid` = ?", table), *p.modified, p.rowid); err != nil {
				return updated, fmt.Errorf("failed to update DateModified of row %d: %w", p.rowid, err)
			}
		}
		updated++
	}
	slog.Info("File dates updated", "rows", updated)
	return updated, nil
}

func statSequential(todo []rowDates, opts Options) ([]datePatch, error) {
	var bar *progressbar.ProgressBar
	if len(todo) > 100 {
		bar = progressbar.NewOptions(len(todo), progressbar.OptionSetDescription("Reading file dates"))
	}
	var patches []datePatch
	for _, r := range todo {
		if bar != nil {
			_ = bar.Add(1)
		}
		p, err := reconcileRow(r, opts)
		if err != nil {
			return nil, err
		}
		if p != nil {
			patches = append(patches, *p)
		}
	}
	return patches, nil
}

func statParallel(ctx context.Context, todo []rowDates, opts Options) ([]datePatch, error) {
	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 2000
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 8
	}

	var mu sync.Mutex
	var patches []datePatch

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for start := 0; start < len(todo); start += chunkSize {
		end := min(start+chunkSize, len(todo))
		chunk := todo[start:end]
		p.Go(func(ctx context.Context) error {
			local := make([]datePatch, 0, len(chunk))
			for _, r := range chunk {
				patch, err := reconcileRow(r, opts)
				if err != nil {
					return err
				}
				if patch != nil {
					local = append(local, *patch)
				}
			}
			mu.Lock()
			patches = append(patches, local...)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return patches, nil
}

// reconcileRow decides whether a row needs new dates. Both stored fields are
// parsed; negative values are the sentinel for "derive from filesystem".
func reconcileRow(r rowDates, opts Options) (*datePatch, error) {
	resolved, _ := pathmap.ReplacePath(r.path, opts.FSMap)
	target := pathmap.Anchor(resolved, opts.TargetRoot)

	// A missing value behaves like the sentinel: derive from the filesystem.
	createdNS := int64(-1)
	modifiedNS := int64(-1)
	var err error
	if r.created != "" {
		if createdNS, err = Parse(r.created); err != nil {
			return nil, fmt.Errorf("row %d: bad DateCreated: %w", r.rowid, err)
		}
	}
	if r.modified != "" {
		if modifiedNS, err = Parse(r.modified); err != nil {
			return nil, fmt.Errorf("row %d: bad DateModified: %w", r.rowid, err)
		}
	}
	if createdNS >= 0 && modifiedNS >= 0 {
		return nil, nil
	}

	info, err := os.Stat(target)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("File does not exist, cannot update its dates", "path", target)
			return nil, nil
		}
		return nil, fmt.Errorf("row %d: failed to stat %s: %w", r.rowid, target, err)
	}

	ctimeNS, mtimeNS := fileTimes(info)
	patch := &datePatch{rowid: r.rowid}
	if createdNS < 0 {
		s := Format(ctimeNS)
		patch.created = &s
	}
	if modifiedNS < 0 {
		s := Format(mtimeNS)
		patch.modified = &s
	}
	return patch, nil
}
