package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/botsonlabs/jobforge/internal/interfaces"
	"github.com/botsonlabs/jobforge/internal/models"
	"github.com/botsonlabs/jobforge/internal/services/llm"
	"github.com/botsonlabs/jobforge/internal/tasks"
)

// defaultBackoff is the fixed wait schedule before retry attempts: 1s before
// the second attempt, 3s before the third and any later ones.
var defaultBackoff = []time.Duration{time.Second, 3 * time.Second}

const defaultAttemptTimeout = 30 * time.Second

// Result is a successful task execution.
type Result struct {
	Task     string
	Provider string
	Model    string
	Attempts int
	Payload  interface{}
	Metadata interfaces.InvokeMetadata
}

// Options tunes the runner. Zero values fall back to production defaults.
type Options struct {
	// AttemptTimeout bounds a single provider call.
	AttemptTimeout time.Duration
	// Backoff is the wait schedule between attempts; the last entry repeats.
	Backoff []time.Duration
	// Sleep is swapped out by tests. It must honor ctx cancellation.
	Sleep func(ctx context.Context, d time.Duration) error
	// PreviewLogger receives raw response previews. It runs fire-and-forget:
	// panics are swallowed and failures never affect the task outcome.
	PreviewLogger func(task, route, preview string)
}

// Runner executes registered tasks against routed providers with bounded
// retries. It owns the retry loop end to end: provider adapters surface
// errors without retrying internally.
type Runner struct {
	providers interfaces.ProviderSelector
	routing   *llm.RoutingPolicy
	logger    arbor.ILogger
	opts      Options
}

// NewRunner creates a task runner.
func NewRunner(providers interfaces.ProviderSelector, routing *llm.RoutingPolicy, logger arbor.ILogger, opts Options) *Runner {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptTimeout
	}
	if len(opts.Backoff) == 0 {
		opts.Backoff = defaultBackoff
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepWithContext
	}
	return &Runner{
		providers: providers,
		routing:   routing,
		logger:    logger,
		opts:      opts,
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Run executes one task to completion. The returned failure is nil on
// success; Run never returns both a result and a failure.
func (r *Runner) Run(ctx context.Context, taskName string, tctx *tasks.TaskContext) (*Result, *models.TaskFailure) {
	task, err := tasks.Lookup(taskName)
	if err != nil {
		// Unknown tasks are a programming error, not a retryable condition.
		return nil, &models.TaskFailure{
			Reason:  tasks.FailUnknownFailure,
			Message: err.Error(),
		}
	}
	if tctx == nil {
		tctx = &tasks.TaskContext{}
	}

	route := r.routing.Select(taskName)
	provider, err := r.providers.Provider(route.Provider)
	if err != nil {
		return nil, &models.TaskFailure{
			Reason:  tasks.FailInvokeFailed,
			Message: fmt.Sprintf("provider %s unavailable: %v", route.Provider, err),
		}
	}

	var lastFailure *models.TaskFailure
	strict := false

	for attempt := 1; attempt <= task.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := r.opts.Sleep(ctx, r.backoffFor(attempt)); err != nil {
				return nil, &models.TaskFailure{
					Reason:  tasks.FailInvokeFailed,
					Message: fmt.Sprintf("canceled while waiting to retry: %v", err),
				}
			}
		}

		tctx.Attempt = attempt
		tctx.StrictMode = strict

		prompt := task.Build(tctx)
		if prompt == "" {
			return nil, &models.TaskFailure{
				Reason:  tasks.FailUnknownFailure,
				Message: fmt.Sprintf("task %s produced an empty prompt", taskName),
			}
		}

		req := &interfaces.InvokeRequest{
			Model:       route.Model,
			System:      task.System,
			User:        prompt,
			Mode:        task.Mode,
			Temperature: task.Temperature,
			MaxTokens:   task.MaxTokensFor(provider.Name()),
			TaskType:    taskName,
			Route:       tctx.Route,
		}
		if provider.SupportsOutputSchema() {
			req.OutputSchema = task.OutputSchema
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
		resp, err := provider.Invoke(attemptCtx, req)
		cancel()

		if err != nil {
			lastFailure = &models.TaskFailure{
				Reason:  tasks.FailInvokeFailed,
				Message: err.Error(),
			}
			r.logger.Warn().
				Str("task", taskName).
				Str("provider", provider.Name()).
				Str("route", tctx.Route).
				Int("attempt", attempt).
				Err(err).
				Msg("Task invocation failed")

			if llm.IsRateLimitError(err) {
				if delay := llm.ExtractRetryDelay(err); delay > r.backoffFor(attempt+1) && attempt < task.MaxAttempts {
					if sleepErr := r.opts.Sleep(ctx, delay-r.backoffFor(attempt+1)); sleepErr != nil {
						return nil, lastFailure
					}
				}
			}
			if ctx.Err() != nil {
				return nil, lastFailure
			}
			continue
		}

		r.logPreview(taskName, tctx.Route, resp)

		payload, fail := r.parse(task, resp, tctx)
		if fail == nil {
			r.logger.Debug().
				Str("task", taskName).
				Str("provider", provider.Name()).
				Str("route", tctx.Route).
				Int("attempt", attempt).
				Msg("Task completed")
			return &Result{
				Task:     taskName,
				Provider: provider.Name(),
				Model:    resp.Metadata.Model,
				Attempts: attempt,
				Payload:  payload,
				Metadata: resp.Metadata,
			}, nil
		}

		lastFailure = fail
		if task.StrictOnRetry {
			strict = true
		}
		r.logger.Warn().
			Str("task", taskName).
			Str("route", tctx.Route).
			Str("reason", fail.Reason).
			Int("attempt", attempt).
			Msg("Task response rejected by parser")
	}

	if lastFailure == nil {
		lastFailure = &models.TaskFailure{
			Reason:  tasks.FailUnknownFailure,
			Message: "task exhausted all attempts",
		}
	}
	return nil, lastFailure
}

// backoffFor returns the wait before the given attempt (attempt 2 uses the
// first schedule entry). The last entry repeats for later attempts.
func (r *Runner) backoffFor(attempt int) time.Duration {
	idx := attempt - 2
	if idx < 0 {
		return 0
	}
	if idx >= len(r.opts.Backoff) {
		idx = len(r.opts.Backoff) - 1
	}
	return r.opts.Backoff[idx]
}

// parse runs the task parser with panic isolation: a panicking parser yields
// a structured failure instead of taking down the request.
func (r *Runner) parse(task *tasks.Task, resp *interfaces.InvokeResponse, tctx *tasks.TaskContext) (payload interface{}, fail *models.TaskFailure) {
	defer func() {
		if rec := recover(); rec != nil {
			raw := ""
			if resp != nil {
				raw = resp.Text
			}
			payload = nil
			fail = &models.TaskFailure{
				Reason:     tasks.FailParserException,
				Message:    fmt.Sprintf("parser panicked: %v", rec),
				RawPreview: tasks.RawPreview(raw),
			}
		}
	}()
	return task.Parse(resp, tctx)
}

// logPreview ships a capped response preview to the preview sink without
// blocking or failing the request path.
func (r *Runner) logPreview(taskName, route string, resp *interfaces.InvokeResponse) {
	if r.opts.PreviewLogger == nil || resp == nil {
		return
	}
	preview := tasks.RawPreview(resp.Text)
	go func() {
		defer func() { recover() }()
		r.opts.PreviewLogger(taskName, route, preview)
	}()
}
