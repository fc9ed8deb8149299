package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/zipcounty/internal/config"
	"github.com/sells-group/zipcounty/internal/pipeline"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "zipcounty <zip_file> [output_csv]",
	Short: "Map ZIP codes to counties",
	Long: "Reads ZIP codes from a file, resolves each to its county and state from a public ZIP/county dataset, " +
		"fills gaps from the crosswalk warehouse when one is configured, and writes a CSV report to output_csv or stdout.",
	Args: cobra.RangeArgs(1, 2),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		opts := pipeline.Options{ZIPFile: args[0], Stdout: cmd.OutOrStdout()}
		if len(args) > 1 {
			opts.Output = args[1]
		}

		resolver, err := newResolver(ctx)
		if err != nil {
			return err
		}
		p, closeFn := newPipeline(ctx, resolver)
		defer closeFn()

		res, err := p.Run(ctx, opts)
		if err != nil {
			return err
		}

		if opts.Output != "" {
			zap.L().Info("report written",
				zap.String("path", opts.Output),
				zap.Int("zips", res.Total),
				zap.Int("unresolved", len(res.Missing)),
			)
		}
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
