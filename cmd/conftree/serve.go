package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/artpar/conftree/adapters/file"
	httpadapter "github.com/artpar/conftree/adapters/http"
	"github.com/artpar/conftree/adapters/metrics"
	"github.com/artpar/conftree/app"
)

var (
	serveAddr       string
	refreshInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve <file>",
	Short: "Serve a configuration file over HTTP with hot reload",
	Long: `Serve loads a configuration file and exposes it as read-only JSON:

  GET /config          full snapshot
  GET /config/{key}    one field (dotted keys descend)
  GET /metrics         Prometheus metrics

The file is watched for changes and reloaded automatically.`,
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().DurationVar(&refreshInterval, "refresh", time.Minute, "background refresh interval (0 to disable)")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := setupLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	collector := metrics.New(reg)

	src := file.New(args[0], file.WithEnvExpansion(), file.WithLogger(logger))
	svc := app.NewService(app.Options{
		Source:          src,
		Logger:          logger,
		RefreshInterval: refreshInterval,
		Metrics:         collector,
	})
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}
	defer svc.Stop()

	mux := http.NewServeMux()
	mux.Handle("/", httpadapter.NewHandler(svc, collector, logger))
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:         serveAddr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", serveAddr).Str("file", args[0]).Msg("serving configuration")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
