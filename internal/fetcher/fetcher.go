// Package fetcher opens local and remote (HTTP, FTP) data sources and reads
// tabular rows from CSV, XLSX and ZIP-packed files.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Downloader fetches a remote URL and returns the response body.
type Downloader interface {
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Router dispatches a source string to the matching downloader by URL scheme.
// Anything that is not an http(s) or ftp URL is treated as a local path.
type Router struct {
	HTTP Downloader
	FTP  Downloader
}

// NewRouter creates a Router with the given downloaders. Nil downloaders get
// single-attempt defaults.
func NewRouter(httpDL, ftpDL Downloader) *Router {
	if httpDL == nil {
		httpDL = NewHTTPFetcher(HTTPOptions{})
	}
	if ftpDL == nil {
		ftpDL = NewFTPFetcher(FTPOptions{})
	}
	return &Router{HTTP: httpDL, FTP: ftpDL}
}

// IsRemote reports whether src is an http, https or ftp URL.
func IsRemote(src string) bool {
	return scheme(src) != ""
}

func scheme(src string) string {
	u, err := url.Parse(src)
	if err != nil {
		return ""
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https", "ftp":
		return strings.ToLower(u.Scheme)
	}
	return ""
}

// Open returns a reader for src. The caller must close it.
func (r *Router) Open(ctx context.Context, src string) (io.ReadCloser, error) {
	switch scheme(src) {
	case "http", "https":
		return r.HTTP.Download(ctx, src)
	case "ftp":
		return r.FTP.Download(ctx, src)
	}
	f, err := os.Open(src)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: open %s", src)
	}
	return f, nil
}

// Download implements Downloader, so a Router can stand in wherever a single
// downloader is expected and local paths work there too.
func (r *Router) Download(ctx context.Context, src string) (io.ReadCloser, error) {
	return r.Open(ctx, src)
}

// Materialize makes src available as a local file and returns its path.
// Local paths are returned unchanged; remote sources are downloaded into dir
// under their base name.
func (r *Router) Materialize(ctx context.Context, src, dir string) (string, error) {
	if !IsRemote(src) {
		if _, err := os.Stat(src); err != nil {
			return "", eris.Wrapf(err, "fetcher: stat %s", src)
		}
		return src, nil
	}

	u, err := url.Parse(src)
	if err != nil {
		return "", eris.Wrapf(err, "fetcher: parse %s", src)
	}
	name := path.Base(u.Path)
	if name == "" || name == "/" || name == "." {
		name = "download"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrap(err, "fetcher: create temp dir")
	}
	dest := filepath.Join(dir, name)

	body, err := r.Open(ctx, src)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: create file")
	}

	n, err := io.Copy(out, body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(dest)
		return "", eris.Wrapf(err, "fetcher: write %s", dest)
	}
	zap.L().Debug("fetcher: downloaded",
		zap.String("source", src),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}

// Ext returns the lower-cased extension of a path or URL, without query string.
func Ext(src string) string {
	if u, err := url.Parse(src); err == nil && u.Scheme != "" {
		src = u.Path
	}
	return strings.ToLower(filepath.Ext(src))
}
