package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/perflog/internal/config"
	"github.com/wesleyorama2/perflog/internal/metrics"
)

var intervalsCmd = &cobra.Command{
	Use:   "intervals LIST",
	Short: "Parse a retention interval list and show the resulting windows",
	Long: `Parse a comma separated interval list the way the engine does and print
each accepted window with its label. Bare integers are seconds; the suffixes
ns, s and d are understood. Malformed tokens are skipped.

  perflog intervals "60s,3600,1d"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scheme := colorScheme(cmd)
		durations := config.ParseIntervals(args[0])
		if len(durations) == 0 {
			return fmt.Errorf("no valid interval in %q", args[0])
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, scheme.Header.Sprint("LABEL\tDURATION\tNANOSECONDS"))
		for _, d := range durations {
			fmt.Fprintf(w, "%s\t%s\t%d\n", scheme.Name.Sprint(metrics.WindowLabel(d)), d, int64(d))
		}
		return w.Flush()
	},
}
