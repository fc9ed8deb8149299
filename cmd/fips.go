package main

import (
	"encoding/csv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/zipcounty/internal/fips"
)

var fipsCmd = &cobra.Command{
	Use:   "fips <code>...",
	Short: "Resolve county FIPS codes",
	Long:  "Prints code,label CSV lines for each FIPS code using the configured reference table.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		resolver, err := newResolver(cmd.Context())
		if err != nil {
			return err
		}
		return writeFIPS(cmd, resolver, args)
	},
}

func init() {
	rootCmd.AddCommand(fipsCmd)
}

func writeFIPS(cmd *cobra.Command, resolver *fips.Resolver, codes []string) error {
	w := csv.NewWriter(cmd.OutOrStdout())
	for _, code := range codes {
		if code == "" || strings.Trim(code, "0123456789") != "" {
			return eris.Errorf("fips: %q is not numeric", code)
		}
		code = fips.Normalize(code)
		if err := w.Write([]string{code, resolver.Resolve(code)}); err != nil {
			return eris.Wrap(err, "fips: write")
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "fips: flush")
}
