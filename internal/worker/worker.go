// Package worker runs the periodic background jobs.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// Job is a task run on its own ticker.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner schedules jobs. A failing job is logged and runs again on its next
// tick; it never stops the other jobs.
type Runner struct {
	jobs   []Job
	logger *slog.Logger
	tracer trace.Tracer
}

func NewRunner(logger *slog.Logger, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, logger: logger, tracer: otel.Tracer("bookrental/worker")}
}

// Select keeps only the named jobs.
func (r *Runner) Select(names ...string) (*Runner, error) {
	byName := make(map[string]Job, len(r.jobs))
	for _, j := range r.jobs {
		byName[j.Name] = j
	}
	selected := make([]Job, 0, len(names))
	for _, name := range names {
		j, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown job %q", name)
		}
		selected = append(selected, j)
	}
	return &Runner{jobs: selected, logger: r.logger, tracer: r.tracer}, nil
}

// RunOnce runs every job one time, in order, and returns their failures
// joined.
func (r *Runner) RunOnce(ctx context.Context) error {
	var errs []error
	for _, j := range r.jobs {
		if err := r.run(ctx, j); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", j.Name, err))
		}
	}
	return errors.Join(errs...)
}

// Start runs each job immediately and then on every tick until ctx is done.
func (r *Runner) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, j := range r.jobs {
		g.Go(func() error {
			r.loop(ctx, j)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) loop(ctx context.Context, j Job) {
	r.logger.InfoContext(ctx, "job scheduled", "job", j.Name, "interval", j.Interval.String())
	_ = r.run(ctx, j)

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = r.run(ctx, j)
		}
	}
}

func (r *Runner) run(ctx context.Context, j Job) error {
	ctx, span := r.tracer.Start(ctx, "worker."+j.Name, trace.WithAttributes(attribute.String("job.name", j.Name)))
	defer span.End()

	start := time.Now()
	err := j.Run(ctx)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.ErrorContext(ctx, "job failed", "job", j.Name, "duration", duration, "error", err)
		return err
	}
	r.logger.InfoContext(ctx, "job finished", "job", j.Name, "duration", duration)
	return nil
}
