// Package config loads the migration configuration file and turns it into
// the ordered path mappings the pipeline consumes.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pathmap"
)

// PathPair is one configured source to target prefix replacement.
type PathPair struct {
	Source string `mapstructure:"source"`
	Target string `mapstructure:"target"`
}

// MigrationConfig mirrors the TOML configuration file. The windows side
// describes the installation being read, the linux side where it is going.
type MigrationConfig struct {
	WindowsRootPath   string `mapstructure:"windows_root_path"`
	LinuxRootPath     string `mapstructure:"linux_root_path"`
	WindowsFFmpegPath string `mapstructure:"windows_ffmpeg_path"`
	LinuxFFmpegPath   string `mapstructure:"linux_ffmpeg_path"`

	// PathMap holds extra prefix replacements applied before the built-in
	// ones, typically the media library locations.
	PathMap []PathPair `mapstructure:"path_map"`
	// PathRemap holds extra filesystem translations, for setups where the
	// new server sees media under different mount points.
	PathRemap []PathPair `mapstructure:"path_remap"`

	// LogNoWarnings silences per-path warnings about unmatched prefixes.
	LogNoWarnings bool `mapstructure:"log_no_warnings"`

	// TargetSlash is the separator used in rewritten paths.
	TargetSlash string `mapstructure:"target_path_slash"`
}

// Load reads the configuration from path. The file format is whatever
// viper recognizes from the extension, TOML being the conventional choice.
func Load(path string) (*MigrationConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("windows_root_path", "C:/ProgramData/Jellyfin")
	v.SetDefault("linux_root_path", "/home/jellyfin/.jellyfin/Jellyfin")
	v.SetDefault("target_path_slash", "/")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg MigrationConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if cfg.WindowsFFmpegPath == "" || cfg.LinuxFFmpegPath == "" {
		return nil, fmt.Errorf("config %s: windows_ffmpeg_path and linux_ffmpeg_path are required", path)
	}
	return &cfg, nil
}

// PathReplacements builds the mapping for the main path rewrite. User
// pairs come first, then the built-in subfolder mappings; the bare root
// goes last so that more specific prefixes always win.
func (c *MigrationConfig) PathReplacements() *pathmap.Mapping {
	pairs := make([]pathmap.Pair, 0, len(c.PathMap)+8)
	for _, p := range c.PathMap {
		pairs = append(pairs, pathmap.Pair{Source: p.Source, Target: p.Target})
	}
	pairs = append(pairs,
		pathmap.Pair{Source: c.WindowsRootPath + "/config", Target: c.LinuxRootPath + "/config"},
		pathmap.Pair{Source: c.WindowsRootPath + "/cache", Target: c.LinuxRootPath + "/cache"},
		pathmap.Pair{Source: c.WindowsRootPath + "/log", Target: c.LinuxRootPath + "/log"},
		pathmap.Pair{Source: c.WindowsRootPath + "/transcodes", Target: c.LinuxRootPath + "/transcodes"},
		pathmap.Pair{Source: c.WindowsFFmpegPath, Target: c.LinuxFFmpegPath},
		// Jellyfin's own placeholders stay untouched but must count as
		// matched so they produce no warnings.
		pathmap.Pair{Source: "%MetadataPath%", Target: "%MetadataPath%"},
		pathmap.Pair{Source: "%AppDataPath%", Target: "%AppDataPath%"},
		pathmap.Pair{Source: c.WindowsRootPath, Target: c.LinuxRootPath + "/data"},
	)
	return &pathmap.Mapping{
		Pairs:            pairs,
		Slash:            c.slash(),
		SuppressWarnings: c.LogNoWarnings,
	}
}

// FSPathReplacements builds the mapping that translates rewritten paths to
// locations on the filesystem the migrator actually runs against.
func (c *MigrationConfig) FSPathReplacements() *pathmap.Mapping {
	pairs := make([]pathmap.Pair, 0, len(c.PathRemap)+3)
	for _, p := range c.PathRemap {
		pairs = append(pairs, pathmap.Pair{Source: p.Source, Target: p.Target})
	}
	pairs = append(pairs,
		pathmap.Pair{Source: "%AppDataPath%", Target: "/data/data"},
		pathmap.Pair{Source: "%MetadataPath%", Target: "/data/metadata"},
		pathmap.Pair{Source: c.LinuxRootPath, Target: "/"},
	)
	return &pathmap.Mapping{
		Pairs:            pairs,
		Slash:            "/",
		SuppressWarnings: c.LogNoWarnings,
	}
}

func (c *MigrationConfig) slash() string {
	if c.TargetSlash == "" {
		return "/"
	}
	return c.TargetSlash
}
