package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesleyorama2/perflog/internal/output"
	"github.com/wesleyorama2/perflog/internal/perflog"
	"github.com/wesleyorama2/perflog/pkg/jsonpath"
)

// ShutdownTimeout bounds how long Run waits for in-flight requests.
const ShutdownTimeout = 5 * time.Second

// Server serves an engine over HTTP:
//
//	GET /metrics   Prometheus exposition of the metrics directory
//	GET /dump      structured dump (?format=json|yaml|csv|table, ?query=<path>)
//	GET /healthz   liveness
type Server struct {
	engine   *perflog.Engine
	registry *prometheus.Registry
	logger   *slog.Logger
	srv      *http.Server
}

// NewServer creates a server for engine listening on addr.
func NewServer(addr string, engine *perflog.Engine, logger *slog.Logger) (*Server, error) {
	reg, err := NewRegistry(engine.Directory(), engine.Registry().Domain())
	if err != nil {
		return nil, fmt.Errorf("failed to register collectors: %w", err)
	}

	s := &Server{
		engine:   engine,
		registry: reg,
		logger:   logger,
	}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /dump", s.handleDump)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.srv.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("metrics server starting", "addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down metrics server: %w", err)
	}
	s.logger.Info("metrics server stopped")
	return nil
}

func (s *Server) handleDump(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if path := q.Get("query"); path != "" {
		value, err := jsonpath.Query(s.engine.DumpJSON(), path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintln(w, value)
		return
	}

	format := output.FormatJSON
	if f := q.Get("format"); f != "" {
		var err error
		if format, err = output.ParseFormat(f); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	w.Header().Set("Content-Type", contentTypes[format])
	if err := output.Render(w, format, s.engine.Document(), output.NoColorScheme()); err != nil {
		s.logger.Warn("dump failed", "format", string(format), "error", err)
	}
}

var contentTypes = map[output.Format]string{
	output.FormatJSON:  "application/json",
	output.FormatYAML:  "application/yaml",
	output.FormatCSV:   "text/csv; charset=utf-8",
	output.FormatTable: "text/plain; charset=utf-8",
}
