package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"completion-bench/internal/benchmark"
	"completion-bench/internal/config"
	"completion-bench/internal/endpoint"
	"completion-bench/internal/logging"
	"completion-bench/internal/report"
	"completion-bench/internal/tokenizer"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion-bench",
		Short: "Load test an LLM chat completion endpoint at a fixed concurrency",
		Long: `completion-bench keeps a fixed number of chat completion requests in flight
against an Azure OpenAI, OpenAI-compatible, custom HTTP or Amazon Bedrock
endpoint, and shows live call, latency and token throughput metrics.`,
		Example: `  completion-bench -e https://my-resource.openai.azure.com -k $KEY -m gpt-4o -c 8 -d 5m
  completion-bench --client-type openai -e http://localhost:8000/v1 -m llama-3 -c 32
  completion-bench --config run.yaml --report report.md`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}

	config.AddFlags(cmd.Flags())
	return cmd
}

func run(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}

	logger, err := logging.NewLogger(cfg.Output.LogLevel, os.Stderr)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	console, err := report.NewConsoleRenderer(os.Stdout, cfg.Output.Columns, report.IsTerminal(os.Stdout))
	if err != nil {
		return err
	}

	tok, err := tokenizer.New(cfg.Model.Encoding)
	if err != nil {
		return err
	}

	// Create context that can be cancelled
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			logger.Warn("received interrupt signal, shutting down gracefully")
			cancel()
		case <-ctx.Done():
		}
	}()

	client, err := endpoint.New(ctx, endpoint.Options{
		Type:       endpoint.Type(cfg.Endpoint.ClientType),
		URL:        cfg.Endpoint.URL,
		APIKey:     cfg.Endpoint.APIKey,
		APIVersion: cfg.Endpoint.APIVersion,
		Region:     cfg.Endpoint.Region,
		TokenPath:  cfg.Endpoint.TokenPath,
	})
	if err != nil {
		return fmt.Errorf("failed to create endpoint client: %w", err)
	}

	requests, err := logging.OpenRequestLog(cfg.Output.LogPrefix, time.Now())
	if err != nil {
		return err
	}
	defer func() {
		if err := requests.Close(); err != nil {
			logger.Warn("failed to close request log", zap.Error(err))
		}
	}()

	runner := benchmark.NewRunner(cfg, client, tok, console, requests, logger)

	if cfg.Output.MetricsAddr != "" {
		stop := serveMetrics(cfg.Output.MetricsAddr, runner.Metrics(), logger)
		defer stop()
	}

	console.PrintHeader(cfg)

	snap, err := runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("load test failed: %w", err)
	}

	fmt.Println()
	console.PrintFileSaved("Request log", requests.Path())

	// a failed report does not discard the run
	if err := runner.GenerateReport(snap); err != nil {
		console.PrintError(err)
	} else if cfg.Output.ReportFile != "" {
		console.PrintFileSaved("Report", cfg.Output.ReportFile)
	}

	return nil
}

// serveMetrics exposes the live snapshot on /metrics until stop is called
func serveMetrics(addr string, metrics *benchmark.Metrics, logger *zap.Logger) (stop func()) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(benchmark.NewCollector(metrics))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{DisableCompression: true}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
