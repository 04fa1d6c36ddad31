package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/db"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/ids"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/timestamps"
)

// Pipeline runs a full migration: path rewriting, identifier derivation,
// identifier rewriting in paths and data, then timestamp reconciliation.
// Job lists default to the standard Jellyfin layout but can be swapped out
// for partial runs.
type Pipeline struct {
	Env        *Env
	PathJobs   []Job
	IDPathJobs []Job
	IDJobs     []Job
}

// New builds a pipeline with the default Jellyfin job lists.
func New(env *Env) *Pipeline {
	return &Pipeline{
		Env:        env,
		PathJobs:   DefaultPathJobs(env),
		IDPathJobs: DefaultIDPathJobs(env),
		IDJobs:     DefaultIDJobs(env),
	}
}

// Run executes the passes in order. Later passes depend on state produced
// by earlier ones: identifier derivation needs the rewritten library
// database, the identifier passes need the derived mapping, and timestamp
// reconciliation needs all relocations to be final.
func (p *Pipeline) Run(ctx context.Context) error {
	env := p.Env
	if env.Assert != nil {
		env.Assert.Assert(ctx, env.PathMap != nil, "path mapping must be configured")
		env.Assert.Assert(ctx, env.FSMap != nil, "filesystem mapping must be configured")
	}

	slog.Info("rewriting paths")
	if err := RunJobs(ctx, env, p.PathJobs, PassPaths); err != nil {
		return fmt.Errorf("path pass: %w", err)
	}

	if err := p.deriveIDs(ctx); err != nil {
		return err
	}

	slog.Info("rewriting identifiers in paths")
	if err := RunJobs(ctx, env, p.IDPathJobs, PassIDPaths); err != nil {
		return fmt.Errorf("identifier path pass: %w", err)
	}

	// Relocations leave hollowed-out shard folders behind.
	slog.Info("removing empty directories")
	if removed, err := removeEmptyDirs(env.TargetRoot); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	} else if removed > 0 {
		slog.Info("removed empty directories", "count", removed)
	}

	slog.Info("rewriting identifier columns")
	if err := RunJobs(ctx, env, p.IDJobs, PassIDColumns); err != nil {
		return fmt.Errorf("identifier column pass: %w", err)
	}

	return p.reconcileTimestamps(ctx)
}

// deriveIDs recomputes content-addressed identifiers from the rewritten
// library database and stores the old-to-new mapping on the Env.
func (p *Pipeline) deriveIDs(ctx context.Context) error {
	env := p.Env
	srcPath, tgtPath, ok := env.LibraryDB()
	if !ok {
		return fmt.Errorf("library database was not encountered during the path pass")
	}
	slog.Info("deriving new item identifiers", "db", tgtPath)

	rewritten, err := db.Open(tgtPath)
	if err != nil {
		return fmt.Errorf("rewritten library db: %w", err)
	}
	defer rewritten.Close()
	original, err := db.Open(srcPath)
	if err != nil {
		return fmt.Errorf("original library db: %w", err)
	}
	defer original.Close()

	mapping, collisions, err := ids.Derive(ctx, rewritten.RawDB(), original.RawDB(), ids.Options{
		ItemsTable: env.ItemsTable,
		Confirm:    env.Confirm,
	})
	if err != nil {
		return fmt.Errorf("identifier derivation: %w", err)
	}
	if len(collisions) > 0 {
		slog.Warn("continuing despite identifier collisions", "count", len(collisions))
	}
	env.IDs = mapping
	env.IDPathKeys = mapping.PathKeys()
	slog.Info("identifiers derived", "changed", mapping.Len())
	return nil
}

func (p *Pipeline) reconcileTimestamps(ctx context.Context) error {
	env := p.Env
	_, tgtPath, ok := env.LibraryDB()
	if !ok {
		return fmt.Errorf("library database was not encountered during the path pass")
	}
	slog.Info("reconciling dates with filesystem", "db", tgtPath)

	d, err := db.Open(tgtPath)
	if err != nil {
		return fmt.Errorf("library db: %w", err)
	}
	defer d.Close()

	updated, err := timestamps.Reconcile(ctx, d, timestamps.Options{
		Table:      env.ItemsTable,
		FSMap:      env.FSMap,
		TargetRoot: env.TargetRoot,
		Parallel:   env.Parallel,
		Workers:    env.workers(),
		ChunkSize:  env.chunkSize(),
	})
	if err != nil {
		return fmt.Errorf("timestamp reconciliation: %w", err)
	}
	slog.Info("timestamps reconciled", "rows", updated)
	return nil
}
