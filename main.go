// energy-report-dashboard serves a live dashboard of hourly energy meter reports.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/cache"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/client"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/collector"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/config"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/dashboard"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/render"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/server"
)

// Build information - injected via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// flags holds command line overrides; zero values mean "not set".
type flags struct {
	configPath       string
	apiURL           string
	listen           string
	pollInterval     time.Duration
	requestTimeout   time.Duration
	maxRetries       int
	meterErrorPolicy string
	logLevel         string
	showVersion      bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "energy-report-dashboard",
		Short: "Live dashboard for hourly energy meter reports",
		Long: `energy-report-dashboard polls the energy report API for the list of meters
and serves a browser dashboard showing the hourly report of the selected meter.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), "energy-report-dashboard", version, commit, date)
				return nil
			}

			cfg, err := config.Load(f.configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			applyFlags(cmd, &f, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.configPath, "config", "", "config file (default is ./config.yaml)")
	fl.StringVar(&f.apiURL, "api-url", "", "energy report API base URL")
	fl.StringVar(&f.listen, "listen", "", "dashboard listen address")
	fl.DurationVar(&f.pollInterval, "poll-interval", 0, "meter list poll interval")
	fl.DurationVar(&f.requestTimeout, "request-timeout", 0, "upstream request timeout")
	fl.IntVar(&f.maxRetries, "max-retries", 0, "retries for failed upstream requests")
	fl.StringVar(&f.meterErrorPolicy, "meter-error-policy", "", "meter error handling (sticky, reset)")
	fl.StringVar(&f.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fl.BoolVar(&f.showVersion, "version", false, "show version and exit")

	return cmd
}

// applyFlags overrides cfg with the flags set on the command line.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("api-url") {
		cfg.APIURL = f.apiURL
	}
	if fl.Changed("listen") {
		cfg.ListenAddr = f.listen
	}
	if fl.Changed("poll-interval") {
		cfg.PollInterval = f.pollInterval
	}
	if fl.Changed("request-timeout") {
		cfg.RequestTimeout = f.requestTimeout
	}
	if fl.Changed("max-retries") {
		cfg.MaxRetries = f.maxRetries
	}
	if fl.Changed("meter-error-policy") {
		cfg.MeterErrorPolicy = f.meterErrorPolicy
	}
	if fl.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// Configure structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	// Create components
	cl := client.New(cfg.APIURL,
		client.WithTimeout(cfg.RequestTimeout),
		client.WithMaxRetries(cfg.MaxRetries),
	)

	slog.Info("starting energy-report-dashboard",
		"version", version,
		"commit", commit,
		"date", date,
		"api_url", cl.BaseURL(),
		"listen", cfg.ListenAddr,
		"poll_interval", cfg.PollInterval.String(),
		"meter_error_policy", cfg.ErrorPolicy().String(),
	)

	// Register build info metric
	buildInfo := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "energy_dashboard",
		Name:      "info",
		Help:      "Build information about the energy-report-dashboard",
	}, []string{"version", "commit", "date"})
	buildInfo.WithLabelValues(version, commit, date).Set(1)
	prometheus.MustRegister(buildInfo)

	ca := cache.New(2 * cfg.PollInterval)
	renderer, err := render.New()
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	coll := collector.New(ca)
	prometheus.MustRegister(coll)

	srv := server.New(cl, ca, renderer,
		server.WithViewOptions(
			dashboard.WithPollInterval(cfg.PollInterval),
			dashboard.WithErrorPolicy(cfg.ErrorPolicy()),
			dashboard.WithCache(ca),
			dashboard.WithMetrics(coll),
		),
		server.WithOriginPatterns(cfg.AllowedOrigins),
	)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Mounted views are torn down with the root context.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()

		slog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server error", "error", err)
		return err
	}
	return nil
}
