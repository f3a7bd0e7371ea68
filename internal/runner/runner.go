// Package runner executes analysis jobs, collects their results in job order
// and writes the report.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/jacoelho/jsontally/internal/clock"
	"github.com/jacoelho/jsontally/internal/config"
	"github.com/jacoelho/jsontally/internal/exit"
	"github.com/jacoelho/jsontally/internal/output"
	"github.com/jacoelho/jsontally/internal/ratelimit"
	"github.com/jacoelho/jsontally/internal/scan"
	"github.com/jacoelho/jsontally/internal/source"
	"github.com/jacoelho/jsontally/internal/tally"
	"github.com/jacoelho/jsontally/internal/validate"
)

type Runner struct {
	config    *config.Config
	logger    *slog.Logger
	limiter   *ratelimit.Limiter
	output    io.Writer
	errOutput io.Writer
}

// New creates a runner. A nil logger discards log records.
func New(cfg *config.Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Runner{
		config:    cfg,
		logger:    logger,
		limiter:   ratelimit.New(cfg.ReadRate),
		output:    os.Stdout,
		errOutput: os.Stderr,
	}
}

func (r *Runner) SetOutput(w io.Writer) {
	r.output = w
}

func (r *Runner) SetErrorOutput(w io.Writer) {
	r.errOutput = w
}

func (r *Runner) payloadWriter() io.Writer {
	if r.output == nil {
		return io.Discard
	}
	return r.output
}

func (r *Runner) errorWriter() io.Writer {
	if r.errOutput == nil {
		return io.Discard
	}
	return r.errOutput
}

func (r *Runner) logf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.errorWriter(), format, args...)
}

// Run executes every job, writes the report and returns the exit code.
func (r *Runner) Run(ctx context.Context) int {
	summary := r.Execute(ctx)

	if err := summary.Format(r.config.Format, r.payloadWriter()); err != nil {
		r.logf("Error formatting results: %v\n", err)
		return exit.CodeFailure
	}

	if ctx.Err() != nil {
		r.logf("\nInterrupted after %d of %d documents\n", len(summary.Jobs)-summary.Skipped(), len(summary.Jobs))
	}

	if summary.HasFailures() {
		return exit.CodeFailure
	}
	return exit.CodeSuccess
}

// Execute runs the configured jobs on at most config.Parallel goroutines.
// Results keep job order. Jobs not started before ctx is cancelled fail with
// the context error.
func (r *Runner) Execute(ctx context.Context) *output.Summary {
	jobs := r.config.Jobs
	summary := output.NewSummary(uuid.NewString(), r.config.Mode())
	results := make([]output.JobResult, len(jobs))

	r.logger.Info("run started",
		"run_id", summary.RunID,
		"mode", summary.Mode.String(),
		"jobs", len(jobs),
		"parallel", r.config.Parallel,
	)

	start := clock.Now()

	indexes := make(chan int)
	var wg sync.WaitGroup
	for range max(1, min(r.config.Parallel, len(jobs))) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range indexes {
				results[i] = r.executeJob(ctx, jobs[i])
			}
		}()
	}

	for i := range jobs {
		indexes <- i
	}
	close(indexes)
	wg.Wait()

	for _, result := range results {
		summary.Add(result)
	}
	summary.SetTotalDuration(clock.Since(start))

	r.logger.Info("run finished",
		"run_id", summary.RunID,
		"succeeded", summary.Succeeded(),
		"failed", summary.Failed(),
		"duration_ms", summary.TotalDuration.Milliseconds(),
	)

	return summary
}

func (r *Runner) executeJob(ctx context.Context, job config.Job) output.JobResult {
	result := output.JobResult{
		Name:     job.Name,
		File:     job.File,
		Property: job.Property,
		Criteria: job.Match,
	}

	select {
	case <-ctx.Done():
		result.Error = fmt.Errorf("skipped: %w", ctx.Err())
		result.Skipped = true
		return result
	default:
	}

	log := r.logger.With("job", job.Name)
	log.Debug("job started", "file", job.File, "property", job.Property, "match", job.Match)

	doc, err := source.Open(ctx, job.File, source.Options{
		MaxSize: r.config.MaxSize,
		Limiter: r.limiter,
	})
	if err != nil {
		result.Error = err
		log.Warn("job failed", "error", err)
		return result
	}
	defer func() {
		if err := doc.Close(); err != nil {
			log.Warn("closing document", "error", err)
		}
	}()

	result.Codec = string(doc.Codec())

	if r.config.ValidateOnly {
		start := clock.Now()
		outcome := validate.Document(doc, scan.MaxDepth(r.config.MaxDepth))
		result.Elapsed = clock.Since(start)
		result.Validation = &outcome
	} else {
		counts, err := tally.Analyze(doc, job.Property, job.Match, scan.MaxDepth(r.config.MaxDepth))
		result.Error = err
		result.MatchingItems = counts.MatchingItems
		result.NonMatchingItems = counts.NonMatchingItems
		result.Elapsed = counts.Elapsed
	}

	result.BytesRead = doc.BytesRead()
	result.Fingerprint = doc.Fingerprint()

	if !result.Succeeded() {
		log.Warn("job failed", "error", failure(result))
		return result
	}

	log.Debug("job finished",
		"matching", result.MatchingItems,
		"non_matching", result.NonMatchingItems,
		"elapsed_ms", float64(result.Elapsed.Microseconds())/1000,
		"bytes", result.BytesRead,
		"codec", result.Codec,
		"fingerprint", result.Fingerprint,
	)

	return result
}

func failure(result output.JobResult) string {
	if result.Error != nil {
		return result.ErrorMessage()
	}
	return result.Validation.Describe()
}
