//go:build !integration

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/zipcounty/internal/crosswalk"
)

func sqliteConfig(t *testing.T) {
	t.Helper()
	cfg = testConfig(t)
	cfg.Secondary.Driver = "sqlite"
	cfg.Secondary.DSN = filepath.Join(t.TempDir(), "crosswalk.db")
}

func TestCrosswalkCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range crosswalkCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"migrate", "load", "status"} {
		assert.True(t, names[name], "crosswalk should have subcommand %q", name)
	}
}

func TestCrosswalkLoadCommand_Flags(t *testing.T) {
	for _, name := range []string{"source", "valid-end", "sheet"} {
		assert.NotNil(t, crosswalkLoadCmd.Flags().Lookup(name), "crosswalk load should have --%s flag", name)
	}
}

func TestCrosswalk_NotConfigured(t *testing.T) {
	cfg = testConfig(t)
	crosswalkMigrateCmd.SetContext(context.Background())

	err := crosswalkMigrateCmd.RunE(crosswalkMigrateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no warehouse configured")
}

func TestCrosswalk_LoadStatusAndReport(t *testing.T) {
	sqliteConfig(t)
	ctx := context.Background()

	crosswalkMigrateCmd.SetContext(ctx)
	require.NoError(t, crosswalkMigrateCmd.RunE(crosswalkMigrateCmd, nil))

	loadSource = writeTemp(t, "hud.csv", "ZIP,COUNTY,RES_RATIO\n96161,06061,0.55\n96161,06067,0.45\n")
	loadValidEnd = "2024-12-31"
	loadSheet = ""
	t.Cleanup(func() { loadSource, loadValidEnd = "", "" })

	var loadOut bytes.Buffer
	crosswalkLoadCmd.SetOut(&loadOut)
	crosswalkLoadCmd.SetContext(ctx)
	t.Cleanup(func() { crosswalkLoadCmd.SetOut(nil) })
	require.NoError(t, crosswalkLoadCmd.RunE(crosswalkLoadCmd, nil))
	assert.Contains(t, loadOut.String(), "loaded 2 rows")

	var statusOut bytes.Buffer
	crosswalkStatusCmd.SetOut(&statusOut)
	crosswalkStatusCmd.SetContext(ctx)
	t.Cleanup(func() { crosswalkStatusCmd.SetOut(nil) })
	require.NoError(t, crosswalkStatusCmd.RunE(crosswalkStatusCmd, nil))
	assert.Contains(t, statusOut.String(), "complete")
	assert.Contains(t, statusOut.String(), "hud.csv")

	var report bytes.Buffer
	rootCmd.SetOut(&report)
	rootCmd.SetContext(ctx)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	require.NoError(t, rootCmd.RunE(rootCmd, []string{writeTemp(t, "zips.txt", "90001 96161 99999")}))
	assert.Equal(t,
		"zip,county_and_state\n90001,\"Los Angeles County, CA\"\n96161,\"Placer County, CA\"\n99999,N/A\n",
		report.String())
}

func TestCrosswalkLoad_BadValidEnd(t *testing.T) {
	sqliteConfig(t)
	loadSource = "x.csv"
	loadValidEnd = "someday"
	t.Cleanup(func() { loadSource, loadValidEnd = "", "" })

	crosswalkLoadCmd.SetContext(context.Background())
	err := crosswalkLoadCmd.RunE(crosswalkLoadCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--valid-end")
}

func TestRootCommand_UnreachableWarehouseFallsBack(t *testing.T) {
	cfg = testConfig(t)
	cfg.Secondary.Driver = "postgres"
	cfg.Secondary.DSN = "postgres://nobody@127.0.0.1:1/none?connect_timeout=1"
	cfg.Secondary.TimeoutSecs = 2

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetContext(context.Background())
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	require.NoError(t, rootCmd.RunE(rootCmd, []string{writeTemp(t, "zips.txt", "99999")}))
	assert.Equal(t, "zip,county_and_state\n99999,N/A\n", out.String())
}

func TestFormatLoadEntries(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	done := started.Add(90 * time.Second)

	var buf bytes.Buffer
	formatLoadEntries(&buf, []crosswalk.LoadEntry{
		{ID: "0123456789abcdef", Source: "hud.xlsx", Status: crosswalk.StatusComplete, Rows: 10, StartedAt: started, CompletedAt: &done},
		{ID: "b", Source: "bad.csv", Status: crosswalk.StatusFailed, StartedAt: started, Error: strings.Repeat("x", 80)},
	})

	out := buf.String()
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "01234567")
	assert.NotContains(t, out, "0123456789abcdef")
	assert.Contains(t, out, "1m30s")
	assert.Contains(t, out, "2026-01-02 03:04")
	assert.Contains(t, out, "...")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
