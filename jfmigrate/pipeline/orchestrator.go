package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v2"
	"github.com/sourcegraph/conc/pool"

	internal "github.com/sunipkm/Jellyfin-Migrator/jfmigrate"
)

// RunJobs executes one pass over the given job list. Wildcard jobs are
// expanded, filtered against the ignore rules and the set of files earlier
// jobs already handled, then processed either sequentially or on a worker
// pool depending on size.
func RunJobs(ctx context.Context, env *Env, jobs []Job, mode PassMode) error {
	done := newProcessedSet()
	for i := range jobs {
		job := &jobs[i]
		slog.Info("starting job", "source", job.Source)
		if err := runJob(ctx, env, job, done, mode); err != nil {
			return fmt.Errorf("job %s: %w", job.Source, err)
		}
	}
	slog.Info("pass complete", "files", done.Len())
	return nil
}

func runJob(ctx context.Context, env *Env, job *Job, done *processedSet, mode PassMode) error {
	if !strings.ContainsAny(job.Source, "*?[") {
		if !done.Add(job.Source) {
			return nil
		}
		return processOne(ctx, env, job, job.Source, mode)
	}

	files, err := expandWildcard(env, job, done)
	if err != nil {
		return err
	}
	if env.Parallel && len(files) >= internal.DefaultParallelFloor {
		return processParallel(ctx, env, job, files, mode)
	}
	return processSequential(ctx, env, job, files, mode)
}

// expandWildcard resolves a glob pattern to the files this job will
// handle. Directories, ignored paths and files claimed by earlier jobs are
// dropped; surviving files are claimed immediately so later jobs skip them.
func expandWildcard(env *Env, job *Job, done *processedSet) ([]string, error) {
	matches, err := doublestar.FilepathGlob(job.Source)
	if err != nil {
		return nil, fmt.Errorf("bad pattern: %w", err)
	}
	files := make([]string, 0, len(matches))
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if env.Ignore != nil {
			if rel, err := filepath.Rel(env.SourceRoot, m); err == nil && env.Ignore.MatchesPath(rel) {
				continue
			}
		}
		if !done.Add(m) {
			continue
		}
		files = append(files, m)
	}
	slog.Info("expanded wildcard", "pattern", job.Source, "files", len(files))
	return files, nil
}

func processSequential(ctx context.Context, env *Env, job *Job, files []string, mode PassMode) error {
	var bar *progressbar.ProgressBar
	if len(files) >= internal.DefaultProgressFloor {
		bar = progressbar.New(len(files))
	}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := processOne(ctx, env, job, f, mode); err != nil {
			return err
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return nil
}

// processParallel fans chunks of the expansion out to a bounded worker
// pool. Progress is tracked under a lock since the bar is not safe for
// concurrent use.
func processParallel(ctx context.Context, env *Env, job *Job, files []string, mode PassMode) error {
	var (
		mu  sync.Mutex
		bar *progressbar.ProgressBar
	)
	if len(files) >= internal.DefaultProgressFloor {
		bar = progressbar.New(len(files))
	}

	p := pool.New().WithMaxGoroutines(env.workers()).WithContext(ctx).WithCancelOnError()
	size := env.chunkSize()
	for start := 0; start < len(files); start += size {
		end := start + size
		if end > len(files) {
			end = len(files)
		}
		chunk := files[start:end]
		p.Go(func(ctx context.Context) error {
			for _, f := range chunk {
				if err := processOne(ctx, env, job, f, mode); err != nil {
					return err
				}
				if bar != nil {
					mu.Lock()
					_ = bar.Add(1)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	err := p.Wait()
	if bar != nil {
		_ = bar.Finish()
	}
	return err
}

func processOne(ctx context.Context, env *Env, job *Job, source string, mode PassMode) error {
	target, err := ResolveTarget(source, job, env)
	if err != nil {
		return err
	}
	return processFile(ctx, env, job, source, target, mode)
}
