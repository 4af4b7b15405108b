package benchmark

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"completion-bench/internal/config"
	"completion-bench/internal/endpoint"
	"completion-bench/internal/logging"
	"completion-bench/internal/report"
	"completion-bench/internal/types"
)

// Runner orchestrates the load test
type Runner struct {
	config   *config.Config
	client   endpoint.Client
	tokens   TokenCounter
	prompts  *PromptGenerator
	renderer Renderer
	requests *logging.RequestLog
	logger   *zap.Logger
	metrics  *Metrics
}

// NewRunner creates a new load test runner. requests and logger may be nil.
func NewRunner(cfg *config.Config, client endpoint.Client, tokens TokenCounter, renderer Renderer, requests *logging.RequestLog, logger *zap.Logger) *Runner {
	if requests == nil {
		requests = logging.NewRequestLog(io.Discard)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		config:   cfg,
		client:   client,
		tokens:   tokens,
		prompts:  NewPromptGenerator(tokens, cfg.Test.PromptTokens, cfg.Test.PromptTemplate, uint64(time.Now().UnixNano())),
		renderer: renderer,
		requests: requests,
		logger:   logger,
		metrics:  NewMetrics(),
	}
}

// Metrics exposes the run's aggregator, e.g. for a Prometheus collector
func (r *Runner) Metrics() *Metrics {
	return r.metrics
}

// Run executes the load test and returns the final snapshot. Cancelling ctx
// ends the run early. The live view still renders its final frame.
func (r *Runner) Run(ctx context.Context) (types.Snapshot, error) {
	duration, err := config.ParseDuration(r.config.Test.Duration)
	if err != nil {
		return types.Snapshot{}, err
	}

	var deadline time.Time
	if duration > 0 {
		deadline = time.Now().Add(duration)
	}

	scheduler := NewScheduler(r.metrics,
		WithPollInterval(r.config.Test.PollInterval),
		WithLogger(r.logger),
	)
	reporter := NewLiveReporter(r.metrics, r.renderer, r.config.Test.Interval)

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()

	// the reporter outlives ctx so an interrupted run still gets its final frame
	reportCtx, stopReport := context.WithCancel(context.WithoutCancel(ctx))
	defer stopReport()

	var g errgroup.Group
	g.Go(func() error {
		err := scheduler.Run(runCtx, r.config.Test.ConcurrencyLevel, deadline, r.issueRequest)
		if err != nil {
			stopReport()
			return fmt.Errorf("scheduler failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := reporter.Run(reportCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) && reportCtx.Err() != nil {
				return nil
			}
			stopRun()
			return fmt.Errorf("live reporter failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	return r.metrics.Snapshot(), err
}

// issueRequest sends one prompt and converts the result into an outcome
func (r *Runner) issueRequest(ctx context.Context) (types.RequestOutcome, error) {
	id := ksuid.New().String()
	prompt := r.prompts.Next()
	inputTokens := r.tokens.Count(prompt)

	r.requests.Request(id, r.config.Model.ID, prompt, r.config.Test.MaxTokens, inputTokens)

	start := time.Now()
	completion, err := r.client.Complete(ctx, endpoint.Request{
		Model:     r.config.Model.ID,
		Prompt:    prompt,
		MaxTokens: r.config.Test.MaxTokens,
	})
	latency := time.Since(start)

	outcome := types.RequestOutcome{
		Latency:     latency,
		InputTokens: inputTokens,
	}

	if err != nil {
		outcome.StatusCode = endpoint.StatusCode(err)
		// requests cut off at shutdown are not endpoint errors
		if ctx.Err() == nil {
			r.requests.Error(id, outcome.StatusCode, endpoint.ResponseBody(err), err)
		}
		return outcome, err
	}

	outcome.StatusCode = http.StatusOK
	outcome.OutputTokens = completion.OutputTokens()
	r.requests.Response(id, latency, outcome.OutputTokens)

	return outcome, nil
}

// GenerateReport writes the markdown report if a report file is configured
func (r *Runner) GenerateReport(snap types.Snapshot) error {
	if r.config.Output.ReportFile == "" {
		return nil
	}

	generator := report.NewMarkdownReporter(r.config)
	content := generator.Generate(snap, r.metrics.LatencySamples(), time.Now())

	if err := generator.SaveToFile(content, r.config.Output.ReportFile); err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}

	return nil
}
