// Command jellyfin-migrator rewrites a copied Jellyfin installation so it
// runs on a new host: path prefixes inside databases and sidecar files,
// the content-addressed item identifiers that depend on those paths, and
// the item timestamps that drift during the copy.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	ignore "github.com/sabhiram/go-gitignore"
	"github.com/spf13/cobra"

	internal "github.com/sunipkm/Jellyfin-Migrator/jfmigrate"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/config"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/ids"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pipeline"
)

var (
	flagConfig     string
	flagSourceRoot string
	flagTargetRoot string
	flagLogFile    string
	flagParallel   bool
	flagWorkers    int
	flagChunkSize  int
	flagYes        bool
	flagInPlace    bool
	flagVerbose    bool
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   internal.DefaultAppName,
		Short: "Migrate a Jellyfin installation between hosts and filesystems",
		Long: "Rewrites paths, content-addressed item identifiers and timestamps\n" +
			"of a copied Jellyfin installation so the library survives a move to\n" +
			"a different host, path layout or operating system.",
		SilenceUsage: true,
		RunE:         run,
	}
	flags := cmd.Flags()
	flags.StringVarP(&flagConfig, "config", "c", internal.DefaultGlobalConfig, "migration config file")
	flags.StringVar(&flagSourceRoot, "source-root", "", "copy of the Jellyfin installation to migrate (required)")
	flags.StringVar(&flagTargetRoot, "target-root", "", "where migrated files are written (default Jellyfin_<timestamp> in the working directory)")
	flags.StringVar(&flagLogFile, "logfile", internal.DefaultLogFileName, "debug log file")
	flags.BoolVar(&flagParallel, "parallel", false, "process large wildcard jobs on a worker pool")
	flags.IntVar(&flagWorkers, "workers", 8, "worker pool size")
	flags.IntVar(&flagChunkSize, "chunk-size", internal.DefaultChunkSize, "files per worker batch")
	flags.BoolVarP(&flagYes, "yes", "y", false, "continue without prompting when identifier collisions are found")
	flags.BoolVar(&flagInPlace, "allow-in-place", false, "permit jobs whose target resolves onto the source file")
	flags.BoolVarP(&flagVerbose, "verbose", "v", false, "debug output on stderr")
	cobra.CheckErr(cmd.MarkFlagRequired("source-root"))
	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	closeLog, err := setupLogging(flagLogFile, flagVerbose)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := config.Load(flagConfig)
	if err != nil {
		return err
	}

	targetRoot := flagTargetRoot
	if targetRoot == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		targetRoot = filepath.Join(cwd, "Jellyfin_"+time.Now().UTC().Format("2006-01-02_15-04-05"))
	}
	if err := os.MkdirAll(targetRoot, 0o755); err != nil {
		return fmt.Errorf("failed to create target root: %w", err)
	}

	confirm := ids.Prompt(os.Stdin, os.Stderr)
	if flagYes {
		confirm = ids.AutoApprove
	}

	env := &pipeline.Env{
		OriginalRoot: cfg.WindowsRootPath,
		SourceRoot:   flagSourceRoot,
		TargetRoot:   targetRoot,
		PathMap:      cfg.PathReplacements(),
		FSMap:        cfg.FSPathReplacements(),
		ItemsTable:   internal.DefaultItemsTable,
		AllowInPlace: flagInPlace,
		Parallel:     flagParallel,
		Workers:      flagWorkers,
		ChunkSize:    flagChunkSize,
		Confirm:      confirm,
		// Caches and logs are recreated by the server, migrating them
		// only drags stale paths along.
		Ignore: ignore.CompileIgnoreLines("cache/**", "log/**", "transcodes/**"),
		Assert: assert.NewAssertHandler(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("starting migration",
		"source", env.SourceRoot, "target", env.TargetRoot, "config", flagConfig)
	if err := pipeline.New(env).Run(ctx); err != nil {
		return err
	}
	slog.Info("migration finished", "target", env.TargetRoot)
	return nil
}
