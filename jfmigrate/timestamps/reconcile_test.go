package timestamps

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/db"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pathmap"
)

func TestReconcile(t *testing.T) {
	root := t.TempDir()
	media := filepath.Join(root, "movies", "Alien.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(media), 0o755))
	require.NoError(t, os.WriteFile(media, []byte("x"), 0o644))

	d, err := db.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer d.Close()

	_, err = d.RawDB().Exec(
		"CREATE TABLE `TypedBaseItems` (`Path` TEXT, `DateCreated` TEXT, `DateModified` TEXT)")
	require.NoError(t, err)

	insert := func(path, created, modified string) {
		_, err := d.RawDB().Exec(
			"INSERT INTO `TypedBaseItems` (`Path`, `DateCreated`, `DateModified`) VALUES (?, ?, ?)",
			path, created, modified)
		require.NoError(t, err)
	}
	// Sentinel dates, file exists: both get reconciled.
	insert("/movies/Alien.mkv", "0001-01-01 00:00:00.Z", "")
	// Valid dates: left alone.
	insert("/movies/Alien.mkv", "2021-09-11 12:34:56.Z", "2021-09-11 12:34:56.Z")
	// Sentinel dates, file missing: skipped without error.
	insert("/movies/Gone.mkv", "", "")

	fsMap := pathmap.NewMapping([]pathmap.Pair{{Source: "/", Target: "/"}}, "/")
	fsMap.SuppressWarnings = true

	updated, err := Reconcile(context.Background(), d, Options{
		FSMap:      fsMap,
		TargetRoot: root,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	var created, modified string
	require.NoError(t, d.RawDB().QueryRow(
		"SELECT `DateCreated`, `DateModified` FROM `TypedBaseItems` WHERE `rowid` = 1").
		Scan(&created, &modified))

	info, err := os.Stat(media)
	require.NoError(t, err)
	wantModified := Format(info.ModTime().UnixNano())
	assert.Equal(t, wantModified, modified)

	createdNS, err := Parse(created)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, createdNS, int64(0))

	// Untouched row keeps its values.
	require.NoError(t, d.RawDB().QueryRow(
		"SELECT `DateCreated` FROM `TypedBaseItems` WHERE `rowid` = 2").Scan(&created))
	assert.Equal(t, "2021-09-11 12:34:56.Z", created)
}

func TestReconcileParallel(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	d, err := db.Open(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	defer d.Close()
	_, err = d.RawDB().Exec(
		"CREATE TABLE `TypedBaseItems` (`Path` TEXT, `DateCreated` TEXT, `DateModified` TEXT)")
	require.NoError(t, err)
	for _, name := range []string{"a.mkv", "b.mkv", "c.mkv"} {
		_, err := d.RawDB().Exec(
			"INSERT INTO `TypedBaseItems` (`Path`, `DateCreated`, `DateModified`) VALUES (?, '', '')",
			"/"+name)
		require.NoError(t, err)
	}

	fsMap := pathmap.NewMapping([]pathmap.Pair{{Source: "/", Target: "/"}}, "/")
	fsMap.SuppressWarnings = true

	updated, err := Reconcile(context.Background(), d, Options{
		FSMap:      fsMap,
		TargetRoot: root,
		Parallel:   true,
		Workers:    2,
		ChunkSize:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated)
}
