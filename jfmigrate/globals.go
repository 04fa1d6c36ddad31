package internal

import (
	"log"
	"os"
	"path/filepath"
)

var (
	// DefaultAppName is used for config lookup paths and log prefixes.
	DefaultAppName        = "jellyfin-migrator"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultGlobalConfig   = filepath.Join(DefaultConfigPath, "config.toml")
	DefaultLogFileName    = "jellyfin_migration.log"
	DefaultLibraryDBName  = "library.db"
	DefaultItemsTable     = "TypedBaseItems"
	DefaultTargetSlash    = "/"
	DefaultChunkSize      = 2000
	DefaultParallelFloor  = 100
	DefaultProgressFloor  = 100
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}
