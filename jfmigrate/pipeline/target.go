package pipeline

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pathmap"
)

// ResolveTarget determines where the migrated copy of source lives and,
// for TargetAuto jobs, performs the copy. An empty returned path means the
// file is skipped: either the mapping resolved it onto itself and in-place
// processing is disabled, or the auto-existing target is missing.
func ResolveTarget(source string, job *Job, env *Env) (string, error) {
	target := job.Target
	if target == "" {
		// A job with no target is an explicit skip.
		return "", nil
	}
	copyNeeded := target != TargetAutoExisting

	switch target {
	case TargetAuto, TargetAutoExisting:
		rel, err := filepath.Rel(env.SourceRoot, source)
		if err != nil {
			return "", fmt.Errorf("source %s outside source root: %w", source, err)
		}
		// The mappings are phrased against the original install location,
		// not the copy being read.
		original := env.OriginalRoot + "/" + filepath.ToSlash(rel)
		mapped, matched := pathmap.ReplacePath(original, env.PathMap)
		if !matched && !job.NoLog {
			slog.Debug("target resolution left path unchanged", "path", original)
		}
		mapped, _ = pathmap.ReplacePath(mapped, env.FSMap)
		target = pathmap.Anchor(mapped, env.TargetRoot)
	}

	if sameFile(source, target) {
		if !env.AllowInPlace {
			slog.Warn("resolved target equals source, skipping", "path", source)
			return "", nil
		}
		return target, nil
	}

	if copyNeeded {
		if err := copyFile(source, target); err != nil {
			return "", err
		}
		if !job.NoLog {
			slog.Debug("copied", "source", source, "target", target)
		}
	} else if job.Target == TargetAutoExisting {
		if _, err := os.Stat(target); err != nil {
			slog.Warn("expected file missing at target, skipping", "target", target)
			return "", nil
		}
	}
	return target, nil
}

func sameFile(a, b string) bool {
	return filepath.Clean(a) == filepath.Clean(b)
}

func copyFile(source, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	in, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("failed to create target file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s: %w", source, err)
	}
	return out.Sync()
}

// moveFile relocates a file that the identifier pass renamed. The parent
// directory of the new location may not exist yet.
func moveFile(from, to string) error {
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return fmt.Errorf("failed to create target directory: %w", err)
	}
	if err := os.Rename(from, to); err != nil {
		if os.IsNotExist(err) {
			slog.Warn("file to relocate does not exist", "path", from)
			return nil
		}
		return fmt.Errorf("failed to move %s: %w", from, err)
	}
	return nil
}
