package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/wesleyorama2/perflog/internal/httpclient"
	"github.com/wesleyorama2/perflog/internal/output"
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Fetch the performance logs from a running perflog server",
	Long: `Fetch the performance logs from a server started with "perflog serve".

  perflog dump --addr http://localhost:9464
  perflog dump --format csv
  perflog dump --query 'logs.#(name=="run.iteration").average'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		formatName, _ := cmd.Flags().GetString("format")
		query, _ := cmd.Flags().GetString("query")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		format, err := output.ParseFormat(formatName)
		if err != nil {
			return err
		}

		client := httpclient.NewClient(nil,
			httpclient.WithBaseURL(addr),
			httpclient.WithTimeout(timeout),
		)
		req := httpclient.NewRequest(http.MethodGet, "/dump")
		if query != "" {
			req.WithQueryParam("query", query)
		} else {
			req.WithQueryParam("format", string(format))
		}

		resp, err := client.Do(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to fetch dump from %s: %w", addr, err)
		}
		if !resp.IsSuccess() {
			return fmt.Errorf("server answered %s: %s", resp.Status, resp.BodyString())
		}
		log.Debug("dump fetched", "addr", addr, "elapsed", resp.Timing.TotalTime)

		_, err = cmd.OutOrStdout().Write(resp.Body())
		return err
	},
}

func init() {
	dumpCmd.Flags().String("addr", "http://localhost:9464", "Base URL of the perflog server")
	dumpCmd.Flags().StringP("format", "f", "table", "Output format: table, csv, json, yaml")
	dumpCmd.Flags().StringP("query", "q", "", "Print only the value at this path of the JSON dump")
	dumpCmd.Flags().DurationP("timeout", "t", 10*time.Second, "Request timeout")
}
