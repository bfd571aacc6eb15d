package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/launchdash/dashboard"
	"github.com/hazyhaar/launchdash/kit"
	"github.com/hazyhaar/launchdash/launches"
	"github.com/hazyhaar/launchdash/observability"
	"github.com/hazyhaar/launchdash/shield"
	"github.com/hazyhaar/launchdash/watch"
)

const (
	shutdownTimeout   = 10 * time.Second
	retentionInterval = time.Hour
	updateRoute       = "POST /_dash-update-component"
)

type serveOptions struct {
	addr    string
	dataset string
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", "", "listen address (overrides config)")
	f.StringVar(&opts.dataset, "dataset", "", "CSV or SQLite dataset path (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, logger, err := root.setup(cmd, func(c *Config) {
		if opts.addr != "" {
			c.Addr = opts.addr
		}
		if opts.dataset != "" {
			c.Dataset = opts.dataset
		}
	})
	if err != nil {
		return err
	}

	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	return srv.Serve(cmd.Context(), ln)
}

// server owns everything serve wires together.
type server struct {
	cfg     *Config
	logger  *slog.Logger
	dash    *dashboard.Dashboard
	obs     *observability.Store
	limiter *shield.RateLimiter
	handler http.Handler
}

func newServer(cfg *Config, logger *slog.Logger) (*server, error) {
	s := &server{cfg: cfg, logger: logger}
	ds, err := s.loadDataset()
	if err != nil {
		return nil, err
	}

	var mws []kit.Middleware
	if cfg.ObservabilityDB != "" {
		s.obs, err = observability.Open(cfg.ObservabilityDB, logger)
		if err != nil {
			return nil, fmt.Errorf("open observability db: %w", err)
		}
		mws = append(mws, s.obs.Middleware())
	}

	s.dash, err = dashboard.New(ds, dashboard.Config{
		Title:       cfg.Title,
		SliderStep:  cfg.SliderStep,
		ChartWidth:  cfg.Chart.Width,
		ChartHeight: cfg.Chart.Height,
		Middlewares: mws,
	}, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.handler = s.routes()
	return s, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}
	r.Use(shield.BasicAuth(shield.BasicAuthConfig{
		Username:     s.cfg.Auth.Username,
		PasswordHash: []byte(s.cfg.Auth.PasswordHash),
		Exempt:       []string{"/healthz"},
	}))
	if n := s.cfg.RateLimit.UpdatesPerMinute; n > 0 {
		s.limiter = shield.NewRateLimiter(map[string]shield.RateLimitConfig{
			updateRoute: {MaxRequests: n, Window: time.Minute},
		})
		r.Use(s.limiter.Middleware)
	}

	s.dash.Routes(r)

	if s.cfg.MCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "launchdash", Version: version}, nil)
		s.dash.RegisterMCP(mcpSrv)
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))
		s.logger.Info("launchdash: MCP enabled", "path", "/mcp")
	}
	return r
}

// Serve runs the HTTP server on ln until ctx is cancelled, then shuts it
// down gracefully.
func (s *server) Serve(ctx context.Context, ln net.Listener) error {
	httpSrv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("launchdash: listening", "addr", ln.Addr().String())
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("launchdash: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})
	if s.limiter != nil {
		s.limiter.StartGC(gctx.Done(), time.Minute)
	}
	if s.obs != nil {
		g.Go(func() error {
			s.retention(gctx)
			return nil
		})
	}
	if s.cfg.ReloadInterval > 0 {
		w := watch.New(watch.ModTime(datasetFiles(s.cfg.Dataset)...), watch.Options{
			Interval: s.cfg.ReloadInterval,
			Debounce: s.cfg.ReloadInterval,
			Logger:   s.logger,
		})
		g.Go(func() error {
			w.OnChange(gctx, s.reload)
			return nil
		})
	}
	return g.Wait()
}

func (s *server) loadDataset() (*launches.Dataset, error) {
	ds, err := launches.Load(s.cfg.Dataset,
		launches.WithTable(s.cfg.DatasetTable),
		launches.WithLogger(s.logger))
	if err != nil {
		return nil, fmt.Errorf("load dataset %s: %w", s.cfg.Dataset, err)
	}
	s.logger.Info("launchdash: dataset loaded",
		"path", s.cfg.Dataset, "records", ds.Len(), "sites", len(ds.Sites()))
	return ds, nil
}

// reload swaps in a fresh copy of the dataset. A dataset that no longer
// loads leaves the current one in place.
func (s *server) reload(context.Context) error {
	ds, err := s.loadDataset()
	if err != nil {
		return err
	}
	return s.dash.Reload(ds)
}

// datasetFiles lists the files whose changes mean the dataset changed.
func datasetFiles(path string) []string {
	if launches.IsSQLitePath(path) {
		return []string{path, path + "-wal"}
	}
	return []string{path}
}

// retention prunes callback events older than the configured number of
// days, once at startup and then every retentionInterval.
func (s *server) retention(ctx context.Context) {
	tick := time.NewTicker(retentionInterval)
	defer tick.Stop()
	for {
		n, err := s.obs.Events.Cleanup(ctx, s.cfg.RetentionDays)
		switch {
		case err != nil && ctx.Err() == nil:
			s.logger.Warn("launchdash: event cleanup", "error", err)
		case n > 0:
			s.logger.Info("launchdash: pruned callback events", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func (s *server) Close() error {
	if s.obs == nil {
		return nil
	}
	return s.obs.Close()
}
