package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/db"
	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/ids"
)

const movieType = "MediaBrowser.Controller.Entities.Movies.Movie"

// buildInstallation lays out a minimal but complete Jellyfin source tree:
// the three databases the default jobs expect plus an identifier-sharded
// metadata image.
func buildInstallation(t *testing.T, env *Env, oldGUID []byte, oldCompact string) {
	t.Helper()

	dataDir := filepath.Join(env.SourceRoot, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))

	lib, err := db.Open(filepath.Join(dataDir, "library.db"))
	require.NoError(t, err)
	exec := func(query string, args ...any) {
		_, err := lib.RawDB().Exec(query, args...)
		require.NoError(t, err)
	}
	exec("CREATE TABLE `TypedBaseItems` (`guid` BLOB, `type` TEXT, `path` TEXT, " +
		"`Images` TEXT, `data` TEXT, `DateCreated` TEXT, `DateModified` TEXT, " +
		"`TopParentId` TEXT, `PresentationUniqueKey` TEXT, `SeriesPresentationUniqueKey` TEXT, " +
		"`UserDataKey` TEXT, `ExtraIds` TEXT, `ParentId` BLOB, `SeasonId` BLOB, `SeriesId` BLOB, `OwnerId` BLOB)")
	exec("CREATE TABLE `mediastreams` (`ItemId` BLOB, `Path` TEXT)")
	exec("CREATE TABLE `Chapters2` (`ItemId` BLOB, `ImagePath` TEXT)")
	exec("CREATE TABLE `AncestorIds` (`ItemId` BLOB, `AncestorId` BLOB, `AncestorIdText` TEXT)")
	exec("CREATE TABLE `ItemValues` (`ItemId` BLOB)")
	exec("CREATE TABLE `People` (`ItemId` BLOB)")
	exec("CREATE TABLE `UserDatas` (`key` TEXT)")
	exec("CREATE TABLE `mediaattachments` (`ItemId` BLOB)")

	oldDashed, err := ids.Dashed(oldCompact)
	require.NoError(t, err)
	exec("INSERT INTO `TypedBaseItems` (`guid`, `type`, `path`, `Images`, `data`, `DateCreated`, `DateModified`, `UserDataKey`) "+
		"VALUES (?, ?, ?, ?, ?, '', '', ?)",
		oldGUID, movieType, `C:\Media\Movies\Alien\Alien.mkv`,
		`C:\Media\Movies\Alien\poster.jpg*637693022742223153*Primary`,
		`{"Path":"C:\\Media\\Movies\\Alien\\Alien.mkv"}`,
		oldDashed)
	exec("INSERT INTO `mediastreams` (`ItemId`, `Path`) VALUES (?, ?)",
		oldGUID, `C:\Media\Movies\Alien\Alien.mkv`)
	exec("INSERT INTO `Chapters2` (`ItemId`, `ImagePath`) VALUES (?, ?)",
		oldGUID, `C:\Media\Movies\Alien\chapter1.jpg*637693022742223153*Chapter`)
	exec("INSERT INTO `AncestorIds` (`ItemId`, `AncestorId`, `AncestorIdText`) VALUES (?, ?, ?)",
		oldGUID, oldGUID, ids.Ancestor(oldCompact))
	exec("INSERT INTO `UserDatas` (`key`) VALUES (?)", oldDashed)
	require.NoError(t, lib.Close())

	jf, err := db.Open(filepath.Join(dataDir, "jellyfin.db"))
	require.NoError(t, err)
	_, err = jf.RawDB().Exec("CREATE TABLE `ImageInfos` (`Path` TEXT)")
	require.NoError(t, err)
	_, err = jf.RawDB().Exec("INSERT INTO `ImageInfos` (`Path`) VALUES (?)", `C:\Media\profile.png`)
	require.NoError(t, err)
	require.NoError(t, jf.Close())

	pb, err := db.Open(filepath.Join(dataDir, "playback_reporting.db"))
	require.NoError(t, err)
	_, err = pb.RawDB().Exec("CREATE TABLE `PlaybackActivity` (`ItemId` TEXT)")
	require.NoError(t, err)
	_, err = pb.RawDB().Exec("INSERT INTO `PlaybackActivity` (`ItemId`) VALUES (?)", ids.Ancestor(oldCompact))
	require.NoError(t, err)
	require.NoError(t, pb.Close())

	// Sharded metadata image named after the identifier.
	shardDir := filepath.Join(env.SourceRoot, "metadata", "library", oldCompact[:2], oldCompact)
	require.NoError(t, os.MkdirAll(shardDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(shardDir, "poster.jpg"), []byte("img"), 0o644))
}

func TestPipelineEndToEnd(t *testing.T) {
	env := testEnv(t)
	env.Confirm = ids.AutoApprove

	oldGUID := ids.DotNetMD5(movieType + `C:\Media\Movies\Alien\Alien.mkv`)
	oldCompact := ids.Compact(oldGUID)
	buildInstallation(t, env, oldGUID, oldCompact)

	// The media file at its post-migration filesystem location, for the
	// timestamp reconciler to stat.
	media := filepath.Join(env.TargetRoot, "data", "media", "Movies", "Alien", "Alien.mkv")
	require.NoError(t, os.MkdirAll(filepath.Dir(media), 0o755))
	require.NoError(t, os.WriteFile(media, []byte("film"), 0o644))

	require.NoError(t, New(env).Run(context.Background()))

	newPath := "/data/media/Movies/Alien/Alien.mkv"
	newGUID := ids.DotNetMD5(movieType + newPath)
	newCompact := ids.Compact(newGUID)

	lib, err := db.Open(targetFor(env, "data/library.db"))
	require.NoError(t, err)
	defer lib.Close()

	// Path pass results.
	var path, images, created string
	var guid []byte
	require.NoError(t, lib.RawDB().QueryRow(
		"SELECT `guid`, `path`, `Images`, `DateCreated` FROM `TypedBaseItems`").
		Scan(&guid, &path, &images, &created))
	assert.Equal(t, newPath, path)
	assert.Equal(t, "/data/media/Movies/Alien/poster.jpg*637693022742223153*Primary", images)

	// Identifier pass: the item and every reference follow the new guid.
	assert.Equal(t, newGUID, guid)
	var itemID []byte
	var ancestorText string
	require.NoError(t, lib.RawDB().QueryRow(
		"SELECT `ItemId`, `AncestorIdText` FROM `AncestorIds`").Scan(&itemID, &ancestorText))
	assert.Equal(t, newGUID, itemID)
	assert.Equal(t, ids.Ancestor(newCompact), ancestorText)

	var streamID []byte
	require.NoError(t, lib.RawDB().QueryRow("SELECT `ItemId` FROM `mediastreams`").Scan(&streamID))
	assert.Equal(t, newGUID, streamID)

	newDashed, err := ids.Dashed(newCompact)
	require.NoError(t, err)
	var userKey string
	require.NoError(t, lib.RawDB().QueryRow("SELECT `key` FROM `UserDatas`").Scan(&userKey))
	assert.Equal(t, newDashed, userKey)

	// No row anywhere still references the old identifier.
	var stale int
	require.NoError(t, lib.RawDB().QueryRow(
		"SELECT COUNT(*) FROM `AncestorIds` WHERE `ItemId` = ?", oldGUID).Scan(&stale))
	assert.Zero(t, stale)

	// Timestamp reconciliation replaced the sentinel with a real date.
	assert.NotEmpty(t, created)

	// The sharded metadata image moved with its identifier.
	moved := targetFor(env, "metadata/library/"+newCompact[:2]+"/"+newCompact+"/poster.jpg")
	_, err = os.Stat(moved)
	assert.NoError(t, err)
	old := targetFor(env, "metadata/library/"+oldCompact[:2]+"/"+oldCompact)
	_, err = os.Stat(old)
	assert.True(t, os.IsNotExist(err))

	// playback_reporting.db followed, too.
	pb, err := db.Open(targetFor(env, "data/playback_reporting.db"))
	require.NoError(t, err)
	defer pb.Close()
	var activityID string
	require.NoError(t, pb.RawDB().QueryRow("SELECT `ItemId` FROM `PlaybackActivity`").Scan(&activityID))
	assert.Equal(t, ids.Ancestor(newCompact), activityID)
}
