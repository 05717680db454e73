package widget

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readZip(t *testing.T, path string) map[string]string {
	t.Helper()
	r, err := zip.OpenReader(path)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()

	entries := map[string]string{}
	for _, f := range r.File {
		if strings.HasSuffix(f.Name, "/") {
			entries[f.Name] = ""
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		entries[f.Name] = string(data)
	}
	return entries
}

func TestCreateZip(t *testing.T) {
	src := filepath.Join(t.TempDir(), "dist")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "assets", "img"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "index.html"), []byte("<html></html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "assets", "app.js"), []byte(strings.Repeat("console.log(1);", 200)), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))

	dest := filepath.Join(t.TempDir(), "my-widget-1.0.0.zip")
	require.NoError(t, CreateZip(src, dest))

	entries := readZip(t, dest)
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)
	assert.Equal(t, []string{"assets/", "assets/app.js", "assets/img/", "empty/", "index.html"}, names)
	assert.Equal(t, "<html></html>", entries["index.html"])
	assert.Equal(t, strings.Repeat("console.log(1);", 200), entries["assets/app.js"])

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(3000), "repetitive content should compress")
}

func TestCreateZipSkipsDestinationInsideSource(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(src, "a.txt"), []byte("a"), 0o644))

	dest := filepath.Join(src, "out.zip")
	require.NoError(t, CreateZip(src, dest))

	entries := readZip(t, dest)
	assert.Contains(t, entries, "a.txt")
	assert.NotContains(t, entries, "out.zip")
}

func TestCreateZipErrors(t *testing.T) {
	dir := t.TempDir()

	err := CreateZip(filepath.Join(dir, "missing"), filepath.Join(dir, "out.zip"))
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, "out.zip"))

	file := filepath.Join(dir, "file.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	err = CreateZip(file, filepath.Join(dir, "out.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not a directory")

	err = CreateZip(dir, filepath.Join(dir, "no-such-dir", "out.zip"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create archive")
}
