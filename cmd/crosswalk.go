package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zipcounty/internal/crosswalk"
)

var crosswalkCmd = &cobra.Command{
	Use:   "crosswalk",
	Short: "Manage the ZIP/county crosswalk warehouse",
	Long:  "Creates, loads and inspects the crosswalk table used to fill ZIPs missing from the primary source.",
}

var crosswalkMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create crosswalk tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "crosswalk migrate")
		}

		zap.L().Info("crosswalk tables ready", zap.String("table", cfg.Secondary.Table))
		return nil
	},
}

var (
	loadSource   string
	loadValidEnd string
	loadSheet    string
)

var crosswalkLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a crosswalk file into the warehouse",
	Long: "Reads a HUD-style ZIP/county crosswalk (CSV, XLSX or a ZIP holding one) from a path or URL and " +
		"replaces the validity periods it contains. Files without a VALID_END_DATE column need --valid-end.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var validEnd time.Time
		if loadValidEnd != "" {
			var err error
			if validEnd, err = crosswalk.ParseValidEnd(loadValidEnd); err != nil {
				return eris.Wrap(err, "crosswalk load: --valid-end")
			}
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "crosswalk load")
		}

		loader := crosswalk.NewLoader(st, newRouter(cfg.Secondary.Timeout()), nil)
		entry, err := loader.Load(ctx, crosswalk.LoadOptions{
			Source:   loadSource,
			ValidEnd: validEnd,
			Sheet:    loadSheet,
			TempDir:  cfg.Fetch.TempDir,
		})
		if err != nil {
			return eris.Wrap(err, "crosswalk load")
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows from %s (load %s)\n", entry.Rows, entry.Source, entry.ID)
		return nil
	},
}

var crosswalkStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show crosswalk load history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		entries, err := st.ListLoads(ctx)
		if err != nil {
			return eris.Wrap(err, "crosswalk status")
		}

		if len(entries) == 0 {
			zap.L().Info("no crosswalk loads found, run 'crosswalk load' first")
			return nil
		}

		formatLoadEntries(cmd.OutOrStdout(), entries)
		return nil
	},
}

func init() {
	crosswalkLoadCmd.Flags().StringVar(&loadSource, "source", "", "crosswalk file path or URL (.csv, .xlsx, .zip)")
	crosswalkLoadCmd.Flags().StringVar(&loadValidEnd, "valid-end", "", "validity end date for rows without VALID_END_DATE (YYYY-MM-DD)")
	crosswalkLoadCmd.Flags().StringVar(&loadSheet, "sheet", "", "workbook sheet name (default first sheet)")
	_ = crosswalkLoadCmd.MarkFlagRequired("source")

	crosswalkCmd.AddCommand(crosswalkMigrateCmd, crosswalkLoadCmd, crosswalkStatusCmd)
	rootCmd.AddCommand(crosswalkCmd)
}

// formatLoadEntries writes a tabular representation of load log entries to out.
func formatLoadEntries(out io.Writer, entries []crosswalk.LoadEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSOURCE\tSTATUS\tSTARTED\tDURATION\tROWS\tERROR")
	_, _ = fmt.Fprintln(w, "--\t------\t------\t-------\t--------\t----\t-----")

	for _, e := range entries {
		dur := "-"
		if e.CompletedAt != nil {
			dur = e.CompletedAt.Sub(e.StartedAt).Round(time.Second).String()
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			shortID(e.ID),
			truncate(e.Source, 50),
			e.Status,
			e.StartedAt.Format("2006-01-02 15:04"),
			dur,
			e.Rows,
			truncate(e.Error, 60),
		)
	}
	_ = w.Flush()
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
