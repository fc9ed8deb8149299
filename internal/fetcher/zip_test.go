package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZip(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())
	return path
}

func TestExtractZIP_MultiFile(t *testing.T) {
	zipPath := createTestZip(t, map[string]string{
		"tl_2023_us_county.shp": "shp",
		"tl_2023_us_county.dbf": "dbf",
	})
	dest := t.TempDir()

	paths, err := ExtractZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Len(t, paths, 2)

	data, err := os.ReadFile(filepath.Join(dest, "tl_2023_us_county.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf", string(data))
}

func TestExtractZIP_WithSubdirectory(t *testing.T) {
	zipPath := createTestZip(t, map[string]string{"data/ZIP_COUNTY.csv": "ZIP,COUNTY\n"})
	dest := t.TempDir()

	paths, err := ExtractZIP(zipPath, dest)
	require.NoError(t, err)
	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dest, "data", "ZIP_COUNTY.csv"), paths[0])
}

func TestExtractZIP_ZipSlipPrevention(t *testing.T) {
	zipPath := createTestZip(t, map[string]string{"../../evil.txt": "nope"})

	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zip slip")
}

func TestExtractZIP_InvalidArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	_, err := ExtractZIP(path, t.TempDir())
	require.Error(t, err)
}

func TestFindByExt(t *testing.T) {
	paths := []string{"/tmp/a/county.shp", "/tmp/a/county.dbf", "/tmp/a/county.shp.xml"}

	got, err := FindByExt(paths, ".shp")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a/county.shp", got)

	_, err = FindByExt(paths, ".xlsx")
	require.Error(t, err)

	_, err = FindByExt([]string{"a.csv", "b.CSV"}, ".csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got 2")
}
