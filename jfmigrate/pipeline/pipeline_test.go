package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	ignore "github.com/sabhiram/go-gitignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunipkm/Jellyfin-Migrator/jfmigrate/pathmap"
)

func testEnv(t *testing.T) *Env {
	t.Helper()
	pathMap := pathmap.NewMapping([]pathmap.Pair{
		{Source: "C:/ProgramData/Jellyfin", Target: "/jf/data"},
		{Source: "C:/Media", Target: "/data/media"},
	}, "/")
	pathMap.SuppressWarnings = true
	fsMap := pathmap.NewMapping([]pathmap.Pair{{Source: "/", Target: "/"}}, "/")
	fsMap.SuppressWarnings = true

	return &Env{
		OriginalRoot: "C:/ProgramData/Jellyfin",
		SourceRoot:   t.TempDir(),
		TargetRoot:   t.TempDir(),
		PathMap:      pathMap,
		FSMap:        fsMap,
		ItemsTable:   "TypedBaseItems",
	}
}

func writeSource(t *testing.T, env *Env, rel, content string) string {
	t.Helper()
	path := filepath.Join(env.SourceRoot, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// targetFor mirrors where an auto job lands a source file.
func targetFor(env *Env, rel string) string {
	return filepath.Join(env.TargetRoot, "jf", "data", filepath.FromSlash(rel))
}

func TestProcessedSet(t *testing.T) {
	s := newProcessedSet()
	assert.True(t, s.Add("/a/b/c.xml"))
	assert.False(t, s.Add("/a/b/c.xml"))
	// Clean-equivalent paths count as the same file.
	assert.False(t, s.Add("/a/b/../b/c.xml"))
	assert.True(t, s.Contains("/a/b/c.xml"))
	assert.False(t, s.Contains("/a/b/other.xml"))
	assert.Equal(t, 1, s.Len())
}

func TestHandlerDispatch(t *testing.T) {
	job := &Job{Handler: HandlerCopyOnly, Rules: extensionRules}
	assert.Equal(t, HandlerXML, job.handlerFor("/x/movie.nfo"))
	assert.Equal(t, HandlerXML, job.handlerFor("/x/system.XML"))
	assert.Equal(t, HandlerJSON, job.handlerFor("/x/meta.json"))
	assert.Equal(t, HandlerMBLink, job.handlerFor("/x/artist.mblink"))
	assert.Equal(t, HandlerCopyOnly, job.handlerFor("/x/poster.jpg"))

	plain := &Job{Handler: HandlerDatabase}
	assert.Equal(t, HandlerDatabase, plain.handlerFor("/x/library.db"))
}

func TestResolveTarget(t *testing.T) {
	t.Run("AutoCopies", testResolveTargetAutoCopies)
	t.Run("AutoExistingRequiresFile", testResolveTargetAutoExisting)
	t.Run("InPlaceSkippedByDefault", testResolveTargetInPlace)
}

func testResolveTargetAutoCopies(t *testing.T) {
	env := testEnv(t)
	src := writeSource(t, env, "config/system.xml", "<x/>")

	job := &Job{Source: src, Target: TargetAuto, Handler: HandlerCopyOnly}
	target, err := ResolveTarget(src, job, env)
	require.NoError(t, err)
	assert.Equal(t, targetFor(env, "config/system.xml"), target)

	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<x/>", string(content))
}

func testResolveTargetAutoExisting(t *testing.T) {
	env := testEnv(t)
	src := writeSource(t, env, "config/system.xml", "<x/>")
	job := &Job{Source: src, Target: TargetAutoExisting, Handler: HandlerCopyOnly}

	// Nothing at the target yet: the file is skipped, not copied.
	target, err := ResolveTarget(src, job, env)
	require.NoError(t, err)
	assert.Empty(t, target)

	want := targetFor(env, "config/system.xml")
	require.NoError(t, os.MkdirAll(filepath.Dir(want), 0o755))
	require.NoError(t, os.WriteFile(want, []byte("<x/>"), 0o644))

	target, err = ResolveTarget(src, job, env)
	require.NoError(t, err)
	assert.Equal(t, want, target)
}

func testResolveTargetInPlace(t *testing.T) {
	env := testEnv(t)
	src := writeSource(t, env, "data/library.db", "db")
	job := &Job{Source: src, Target: src, Handler: HandlerCopyOnly}

	target, err := ResolveTarget(src, job, env)
	require.NoError(t, err)
	assert.Empty(t, target)

	env.AllowInPlace = true
	target, err = ResolveTarget(src, job, env)
	require.NoError(t, err)
	assert.Equal(t, src, target)
}

func TestRunJobsRewritesSidecars(t *testing.T) {
	env := testEnv(t)
	writeSource(t, env, "root/movies/movie.xml",
		`<Item><Path>C:\Media\Movies\Alien\Alien.mkv</Path><outline>C:\Media\untouched</outline></Item>`)
	writeSource(t, env, "root/music/artist.mblink", `C:\Media\Music\Artist`)
	writeSource(t, env, "plugins/meta.json", `{"Path":"C:\\Media\\Movies"}`)
	writeSource(t, env, "root/movies/poster.jpg", "jpegdata")

	jobs := []Job{
		{Source: filepath.Join(env.SourceRoot, "plugins", "*.json"), Target: TargetAuto, Handler: HandlerJSON},
		{Source: filepath.Join(env.SourceRoot, "root", "**", "*.*"), Target: TargetAuto, Rules: extensionRules},
	}
	require.NoError(t, RunJobs(context.Background(), env, jobs, PassPaths))

	xml, err := os.ReadFile(targetFor(env, "root/movies/movie.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(xml), "/data/media/Movies/Alien/Alien.mkv")
	// Prose tags are off limits even when they hold a path.
	assert.Contains(t, string(xml), `C:\Media\untouched`)

	mblink, err := os.ReadFile(targetFor(env, "root/music/artist.mblink"))
	require.NoError(t, err)
	assert.Equal(t, "/data/media/Music/Artist", string(mblink))

	jdoc, err := os.ReadFile(targetFor(env, "plugins/meta.json"))
	require.NoError(t, err)
	assert.Contains(t, string(jdoc), "/data/media/Movies")

	jpg, err := os.ReadFile(targetFor(env, "root/movies/poster.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpegdata", string(jpg))
}

func TestRunJobsSkipsProcessedAndIgnored(t *testing.T) {
	env := testEnv(t)
	writeSource(t, env, "root/a.mblink", `C:\Media\A`)
	writeSource(t, env, "cache/images/resized.jpg", "cached")

	env.Ignore = ignore.CompileIgnoreLines("cache/**")

	jobs := []Job{
		// First job claims the mblink file.
		{Source: filepath.Join(env.SourceRoot, "root", "*.mblink"), Target: TargetAuto, Handler: HandlerMBLink},
		// Catch-all copy must not re-copy it, and must skip the cache.
		{Source: filepath.Join(env.SourceRoot, "**", "*.*"), Target: TargetAuto, Handler: HandlerCopyOnly, NoLog: true},
	}
	require.NoError(t, RunJobs(context.Background(), env, jobs, PassPaths))

	mblink, err := os.ReadFile(targetFor(env, "root/a.mblink"))
	require.NoError(t, err)
	// Had the copy-only job run second on the same file it would have
	// clobbered the rewrite with the raw source bytes.
	assert.Equal(t, "/data/media/A", string(mblink))

	_, err = os.Stat(targetFor(env, "cache/images/resized.jpg"))
	assert.True(t, os.IsNotExist(err))
}

func TestRelocateByID(t *testing.T) {
	env := testEnv(t)
	const (
		oldID = "83addde992893e93d0572907f8b4cad0"
		newID = "f1bb220aa5318bd3ae56a9e6ad8be8a0"
	)
	env.IDPathKeys = map[string]string{oldID: newID}

	dir := filepath.Join(env.TargetRoot, "metadata", "library", oldID[:2], oldID)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	poster := filepath.Join(dir, "poster.jpg")
	require.NoError(t, os.WriteFile(poster, []byte("img"), 0o644))

	require.NoError(t, relocateByID(env, poster))

	moved := filepath.Join(env.TargetRoot, "metadata", "library", newID[:2], newID, "poster.jpg")
	content, err := os.ReadFile(moved)
	require.NoError(t, err)
	assert.Equal(t, "img", string(content))
	_, err = os.Stat(poster)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveEmptyDirs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "a", "b", "c"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "keep"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "keep", "f.txt"), []byte("x"), 0o644))

	removed, err := removeEmptyDirs(root)
	require.NoError(t, err)
	assert.Equal(t, 3, removed)

	_, err = os.Stat(filepath.Join(root, "a"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "keep", "f.txt"))
	assert.NoError(t, err)
}

func TestDefaultJobListsCoverKnownLayout(t *testing.T) {
	env := testEnv(t)

	paths := DefaultPathJobs(env)
	require.NotEmpty(t, paths)
	assert.True(t, strings.HasSuffix(paths[0].Source, filepath.FromSlash("data/library.db")))
	// The catch-all copy must come last.
	last := paths[len(paths)-1]
	assert.Equal(t, HandlerCopyOnly, last.Handler)
	assert.Contains(t, last.Source, "*")

	idJobs := DefaultIDJobs(env)
	require.Len(t, idJobs, 2)
	assert.Contains(t, idJobs[0].IDTables, "TypedBaseItems")
	assert.Contains(t, idJobs[1].IDTables, "PlaybackActivity")
}
