package cli

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"

	"github.com/wesleyorama2/perflog/internal/config"
	"github.com/wesleyorama2/perflog/internal/export"
	"github.com/wesleyorama2/perflog/internal/logger"
	"github.com/wesleyorama2/perflog/internal/perflog"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the performance logs over HTTP",
	Long: `Serve the engine's metrics directory as a Prometheus endpoint, plus a
structured dump:

  GET /metrics   Prometheus exposition
  GET /dump      ?format=json|yaml|csv|table  ?query=<path>
  GET /healthz

With --config the file is watched: the enable flag, retention windows and log
level are reloaded when it changes. With --workload a synthetic workload runs
in the background so there is something to look at.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		listen := f.Listen
		if cmd.Flags().Changed("listen") {
			listen, _ = cmd.Flags().GetString("listen")
		}
		workload, _ := cmd.Flags().GetDuration("workload")
		path, _ := cmd.Flags().GetString("config")

		engine := newEngine(f)
		server, err := export.NewServer(listen, engine, log)
		if err != nil {
			return err
		}

		p := pool.New().WithContext(cmd.Context()).WithCancelOnError()
		p.Go(server.Run)
		if path != "" {
			p.Go(func(ctx context.Context) error {
				return config.Watch(ctx, path, log, applyConfig(engine))
			})
		}
		if workload > 0 {
			p.Go(func(ctx context.Context) error {
				return backgroundWorkload(ctx, engine, workload)
			})
		}
		return p.Wait()
	},
}

// applyConfig returns the reload hook for a watched configuration file.
func applyConfig(engine *perflog.Engine) config.ApplyFunc {
	return func(f *config.File) error {
		if f.Log.Level != "" {
			logger.SetLevelByName(f.Log.Level)
		}
		return engine.Apply(f)
	}
}

// backgroundWorkload runs one synthetic batch every interval until ctx is done.
func backgroundWorkload(ctx context.Context, engine *perflog.Engine, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			err := runWorkload(ctx, engine, workloadOptions{iterations: 64, concurrency: 4})
			if err != nil && ctx.Err() == nil {
				return err
			}
		}
	}
}

func init() {
	serveCmd.Flags().StringP("listen", "l", config.DefaultListen, "Address to listen on")
	serveCmd.Flags().Duration("workload", 0, "Run a synthetic workload at this interval (0 disables)")
}
