//go:build !integration

package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zipcounty/internal/config"
)

const geoData = `state_fips,state,state_abbr,zipcode,county,city
06,California,CA,90001,Los Angeles,Los Angeles
06,California,CA,6037,Los Angeles,Los Angeles
`

// testConfig returns a config pointing the primary source at a test server.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(geoData))
	}))
	t.Cleanup(srv.Close)

	return &config.Config{
		Primary: config.PrimaryConfig{
			URL:         srv.URL + "/geo-data.csv",
			TimeoutSecs: 5,
			UserAgent:   "zipcounty-test",
		},
		Secondary: config.SecondaryConfig{
			Driver:      "none",
			Table:       "zip_county_crosswalk",
			TimeoutSecs: 5,
			MinResRatio: 0.5,
		},
		FIPS:  config.FIPSConfig{TableEncoding: "utf8"},
		Fetch: config.FetchConfig{TempDir: t.TempDir()},
		Log:   config.LogConfig{Level: "info", Format: "console"},
	}
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"fips", "crosswalk", "serve"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "zipcounty", rootCmd.Name())
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestRootCommand_Args(t *testing.T) {
	assert.Error(t, rootCmd.Args(rootCmd, nil), "zip_file is required")
	assert.NoError(t, rootCmd.Args(rootCmd, []string{"zips.txt"}))
	assert.NoError(t, rootCmd.Args(rootCmd, []string{"zips.txt", "out.csv"}))
	assert.Error(t, rootCmd.Args(rootCmd, []string{"a", "b", "c"}))
}

func TestRootCommand_ReportToStdout(t *testing.T) {
	cfg = testConfig(t)
	list := writeTemp(t, "zips.txt", "90001, 99999\n06037")

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetContext(context.Background())
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.RunE(rootCmd, []string{list}))
	assert.Equal(t,
		"zip,county_and_state\n90001,\"Los Angeles County, CA\"\n99999,N/A\n06037,\"Los Angeles County, CA\"\n",
		out.String())
}

func TestRootCommand_ReportToFile(t *testing.T) {
	cfg = testConfig(t)
	list := writeTemp(t, "zips.txt", "90001")
	outPath := filepath.Join(t.TempDir(), "report.csv")

	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetContext(context.Background())
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.RunE(rootCmd, []string{list, outPath}))
	assert.Empty(t, stdout.String())

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "zip,county_and_state\n90001,\"Los Angeles County, CA\"\n", string(data))
}

func TestRootCommand_PrimaryFailure(t *testing.T) {
	cfg = testConfig(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()
	cfg.Primary.URL = srv.URL

	rootCmd.SetContext(context.Background())
	err := rootCmd.RunE(rootCmd, []string{writeTemp(t, "zips.txt", "90001")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "primary source")
}

func TestRootCommand_MissingZIPFile(t *testing.T) {
	cfg = testConfig(t)
	rootCmd.SetContext(context.Background())

	err := rootCmd.RunE(rootCmd, []string{filepath.Join(t.TempDir(), "nope.txt")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load zip list")
}

func TestFipsCommand(t *testing.T) {
	cfg = testConfig(t)
	assert.Equal(t, "fips", fipsCmd.Name())
	assert.Error(t, fipsCmd.Args(fipsCmd, nil))

	var out bytes.Buffer
	fipsCmd.SetOut(&out)
	fipsCmd.SetContext(context.Background())
	t.Cleanup(func() { fipsCmd.SetOut(nil) })

	require.NoError(t, fipsCmd.RunE(fipsCmd, []string{"6037", "06037", "99999"}))
	assert.Equal(t,
		"06037,\"Los Angeles County, CA\"\n06037,\"Los Angeles County, CA\"\n99999,Unknown County (FIPS: 99999)\n",
		out.String())
}

func TestFipsCommand_NonNumeric(t *testing.T) {
	cfg = testConfig(t)
	fipsCmd.SetOut(&bytes.Buffer{})
	fipsCmd.SetContext(context.Background())
	t.Cleanup(func() { fipsCmd.SetOut(nil) })

	err := fipsCmd.RunE(fipsCmd, []string{"LA"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not numeric")
}
