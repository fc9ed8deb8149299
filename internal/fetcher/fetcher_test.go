package fetcher

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubDownloader struct {
	body string
	urls []string
}

func (s *stubDownloader) Download(_ context.Context, url string) (io.ReadCloser, error) {
	s.urls = append(s.urls, url)
	return io.NopCloser(strings.NewReader(s.body)), nil
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.csv"))
	assert.True(t, IsRemote("HTTP://example.com/a.csv"))
	assert.True(t, IsRemote("ftp://ftp2.census.gov/a.txt"))
	assert.False(t, IsRemote("/data/a.csv"))
	assert.False(t, IsRemote("a.csv"))
	assert.False(t, IsRemote(`C:\data\a.csv`))
}

func TestExt(t *testing.T) {
	assert.Equal(t, ".xlsx", Ext("https://www.huduser.gov/portal/ZIP_COUNTY_122023.XLSX?x=1"))
	assert.Equal(t, ".zip", Ext("/tmp/tl_2023_us_county.zip"))
	assert.Equal(t, "", Ext("README"))
}

func TestRouter_OpenDispatch(t *testing.T) {
	httpDL := &stubDownloader{body: "http"}
	ftpDL := &stubDownloader{body: "ftp"}
	r := NewRouter(httpDL, ftpDL)

	rc, err := r.Open(context.Background(), "https://example.com/a.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "http", string(data))

	rc, err = r.Open(context.Background(), "ftp://example.com/a.csv")
	require.NoError(t, err)
	data, _ = io.ReadAll(rc)
	assert.Equal(t, "ftp", string(data))

	assert.Equal(t, []string{"https://example.com/a.csv"}, httpDL.urls)
	assert.Equal(t, []string{"ftp://example.com/a.csv"}, ftpDL.urls)
}

func TestRouter_OpenLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zips.txt")
	require.NoError(t, os.WriteFile(path, []byte("90001"), 0o644))

	rc, err := NewRouter(nil, nil).Open(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close() //nolint:errcheck
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "90001", string(data))
}

func TestRouter_OpenLocalMissing(t *testing.T) {
	_, err := NewRouter(nil, nil).Open(context.Background(), filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestRouter_MaterializeRemote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ZIP,COUNTY\n")) //nolint:errcheck
	}))
	defer srv.Close()

	dir := filepath.Join(t.TempDir(), "dl")
	path, err := NewRouter(nil, nil).Materialize(context.Background(), srv.URL+"/files/ZIP_COUNTY.csv", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "ZIP_COUNTY.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ZIP,COUNTY\n", string(data))
}

type failingDownloader struct{}

func (failingDownloader) Download(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(io.MultiReader(strings.NewReader("ZIP,COUNTY\n00501,"), iotest.ErrReader(errors.New("connection reset")))), nil
}

func TestRouter_MaterializeRemovesPartialFile(t *testing.T) {
	dir := t.TempDir()
	_, err := NewRouter(failingDownloader{}, nil).Materialize(context.Background(), "https://example.com/ZIP_COUNTY.csv", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, statErr := os.Stat(filepath.Join(dir, "ZIP_COUNTY.csv"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestRouter_MaterializeLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "county.shp")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	got, err := NewRouter(nil, nil).Materialize(context.Background(), path, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, path, got)

	_, err = NewRouter(nil, nil).Materialize(context.Background(), path+".missing", t.TempDir())
	require.Error(t, err)
}

func TestRouter_IsDownloader(t *testing.T) {
	var dl Downloader = NewRouter(&stubDownloader{body: "zipcode,county,state_abbr\n"}, nil)

	rc, err := dl.Download(context.Background(), "https://example.com/geo-data.csv")
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	assert.Equal(t, "zipcode,county,state_abbr\n", string(data))
}
