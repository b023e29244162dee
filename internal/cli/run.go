package cli

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/cobra"
	"github.com/zoobzio/clockz"

	"github.com/wesleyorama2/perflog/internal/httpclient"
	"github.com/wesleyorama2/perflog/internal/output"
	"github.com/wesleyorama2/perflog/internal/perflog"
	"github.com/wesleyorama2/perflog/internal/rate"
	"github.com/wesleyorama2/perflog/pkg/jsonpath"
)

// Metric names recorded by the workload.
const (
	iterationMetric = "run.iteration"
	hashMetric      = "synthetic.hash"
	bytesMetric     = "synthetic.bytes"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a timed workload and print the resulting performance logs",
	Long: `Run a workload across concurrent workers, timing every iteration, then
print the performance logs.

Without --url a synthetic CPU workload is timed. With --url every iteration
issues one HTTP request and its phases are recorded too:

  perflog run --url http://localhost:8080/health --requests 500 --concurrency 16
  perflog run --rate 200 --requests 1000
  perflog run --format csv
  perflog run --query 'logs.#(name=="run.iteration").numCalls'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if percentiles, _ := cmd.Flags().GetBool("percentiles"); percentiles {
			f.Percentiles = true
		}

		opts := workloadOptions{}
		opts.target, _ = cmd.Flags().GetString("url")
		opts.iterations, _ = cmd.Flags().GetInt("requests")
		opts.concurrency, _ = cmd.Flags().GetInt("concurrency")
		opts.rate, _ = cmd.Flags().GetFloat64("rate")
		opts.timeout, _ = cmd.Flags().GetDuration("timeout")
		formatName, _ := cmd.Flags().GetString("format")
		query, _ := cmd.Flags().GetString("query")

		format, err := output.ParseFormat(formatName)
		if err != nil {
			return err
		}

		engine := newEngine(f)
		if err := runWorkload(cmd.Context(), engine, opts); err != nil {
			return err
		}
		return printLogs(cmd, engine, format, query)
	},
}

type workloadOptions struct {
	target      string
	iterations  int
	concurrency int
	rate        float64
	timeout     time.Duration
}

// runWorkload spreads opts.iterations over opts.concurrency goroutines, each
// with its own Worker.
func runWorkload(ctx context.Context, engine *perflog.Engine, opts workloadOptions) error {
	if opts.iterations <= 0 {
		return fmt.Errorf("requests must be positive, got %d", opts.iterations)
	}
	if opts.concurrency <= 0 {
		opts.concurrency = 1
	}
	if opts.concurrency > opts.iterations {
		opts.concurrency = opts.iterations
	}

	var iterate func(context.Context, *perflog.Worker, int)
	if opts.target != "" {
		client, req, err := newTargetClient(engine, opts)
		if err != nil {
			return err
		}
		iterate = func(ctx context.Context, _ *perflog.Worker, _ int) {
			if _, err := client.Do(ctx, req); err != nil {
				log.Debug("request failed", "url", opts.target, "error", err)
			}
		}
	} else {
		iterate = syntheticIteration
	}

	var pacer *rate.LeakyBucket
	if opts.rate > 0 {
		pacer = rate.NewLeakyBucket(opts.rate, clockz.RealClock)
	}

	log.Info("running workload", "iterations", opts.iterations, "concurrency", opts.concurrency, "rate", opts.rate, "target", opts.target)
	started := time.Now()

	p := pool.New().WithContext(ctx).WithMaxGoroutines(opts.concurrency)
	for g := 0; g < opts.concurrency; g++ {
		n := opts.iterations / opts.concurrency
		if g < opts.iterations%opts.concurrency {
			n++
		}
		p.Go(func(ctx context.Context) error {
			w := engine.Worker()
			ctx = perflog.NewContext(ctx, w)
			defer w.Flush()

			for i := 0; i < n; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if pacer != nil {
					if err := pacer.Wait(ctx); err != nil {
						return err
					}
				}
				engine.Start(ctx, iterationMetric)
				iterate(ctx, w, i)
				engine.Stop(ctx, iterationMetric)
			}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return err
	}

	log.Info("workload finished", "elapsed", time.Since(started).Round(time.Millisecond))
	return nil
}

func newTargetClient(engine *perflog.Engine, opts workloadOptions) (*httpclient.Client, *httpclient.Request, error) {
	u, err := url.Parse(opts.target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, nil, fmt.Errorf("invalid url %q", opts.target)
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	req := httpclient.NewRequest(http.MethodGet, path)
	for k, vs := range u.Query() {
		for _, v := range vs {
			req.WithQueryParam(k, v)
		}
	}

	base := url.URL{Scheme: u.Scheme, Host: u.Host, User: u.User}
	timeout := opts.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := httpclient.NewClient(engine,
		httpclient.WithBaseURL(base.String()),
		httpclient.WithTimeout(timeout),
		httpclient.WithHeader("User-Agent", "perflog/"+version),
	)
	return client, req, nil
}

// syntheticIteration hashes a payload whose size varies with i, timing the
// hash and accumulating the payload size locally.
func syntheticIteration(_ context.Context, w *perflog.Worker, i int) {
	size := 256 << (i % 6)
	payload := make([]byte, size)
	for j := range payload {
		payload[j] = byte(i + j)
	}

	w.Start(hashMetric)
	_ = sha256.Sum256(payload)
	w.Stop(hashMetric)

	w.Accumulate(bytesMetric, int64(size))
}

// printLogs writes engine's logs to the command output in format, or the
// value at query when one is given.
func printLogs(cmd *cobra.Command, engine *perflog.Engine, format output.Format, query string) error {
	out := cmd.OutOrStdout()
	if query != "" {
		value, err := jsonpath.Query(engine.DumpJSON(), query)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, value)
		return err
	}
	return output.Render(out, format, engine.Document(), colorScheme(cmd))
}

func init() {
	runCmd.Flags().String("url", "", "URL to request on every iteration (default: synthetic workload)")
	runCmd.Flags().IntP("requests", "n", 1000, "Number of iterations")
	runCmd.Flags().IntP("concurrency", "j", 8, "Number of concurrent workers")
	runCmd.Flags().Float64("rate", 0, "Iterations per second across all workers (0 is unlimited)")
	runCmd.Flags().DurationP("timeout", "t", 30*time.Second, "Request timeout")
	runCmd.Flags().StringP("format", "f", "table", "Output format: table, csv, json, yaml")
	runCmd.Flags().StringP("query", "q", "", "Print only the value at this path of the JSON dump")
	runCmd.Flags().Bool("percentiles", false, "Record latency percentiles for timers")
}
