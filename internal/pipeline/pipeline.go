package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/pageprobe/internal/model"
)

// ErrProbeIncomplete is returned by Execute in keep-going mode when at
// least one step failed. The failures are listed in report.StepErrors.
var ErrProbeIncomplete = errors.New("probe incomplete")

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the pipeline step.
	// It receives the context for cancellation, and the report to modify.
	Do(ctx context.Context, report *model.ProbeReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Critical is implemented by steps whose failure makes every later step
// meaningless. A failing critical step stops the pipeline even in
// keep-going mode.
type Critical interface {
	Critical() bool
}

func isCritical(step Step) bool {
	c, ok := step.(Critical)
	return ok && c.Critical()
}

// Phase tells a hook where in a step's life it is called.
type Phase int

const (
	// PhaseStart is reported before the step runs.
	PhaseStart Phase = iota
	// PhaseDone is reported after the step succeeded.
	PhaseDone
	// PhaseFailed is reported after the step returned an error.
	PhaseFailed
)

// Event is passed to the step hook.
type Event struct {
	Step   string
	Phase  Phase
	Report *model.ProbeReport
	Err    error
}

// Hook observes step progress. It runs on the pipeline goroutine.
type Hook func(Event)

// Pipeline orchestrates the execution of multiple steps.
// It maintains a list of steps and executes them in order.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError records non-critical failures and keeps going.
	continueOnError bool

	hook Hook
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// when a non-critical step fails. The failure is recorded in
// report.StepErrors and Execute returns ErrProbeIncomplete at the end.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithHook registers a progress hook.
func WithHook(hook Hook) Option {
	return func(p *Pipeline) {
		p.hook = hook
	}
}

// New creates a new Pipeline with the given options.
// Steps should be added using AddStep after creation.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:           make([]Step, 0),
		continueOnError: false,
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
// Steps are executed in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

func (p *Pipeline) emit(step string, phase Phase, report *model.ProbeReport, err error) {
	if p.hook != nil {
		p.hook(Event{Step: step, Phase: phase, Report: report, Err: err})
	}
}

// Execute runs all pipeline steps in sequence.
//
// Cancellation is checked before each step; a cancelled context marks the
// report as timed out. In the default strict mode the first failing step
// stops the pipeline and its error is returned. With WithContinueOnError
// only critical steps stop it; other failures are recorded and Execute
// returns ErrProbeIncomplete once all steps ran.
func (p *Pipeline) Execute(ctx context.Context, report *model.ProbeReport) error {
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
	}()

	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			report.TimedOut = true
			report.SetError(ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"url", report.URL,
		)
		p.emit(step.Name(), PhaseStart, report, nil)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"url", report.URL,
				"error", err,
			)
			if errors.Is(err, context.DeadlineExceeded) {
				report.TimedOut = true
			}

			err = fmt.Errorf("%s: %w", step.Name(), err)
			p.emit(step.Name(), PhaseFailed, report, err)

			if !p.continueOnError || isCritical(step) {
				report.SetError(err)
				return err
			}
			report.AddStepError(step.Name(), err)
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"url", report.URL,
		)
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
		p.emit(step.Name(), PhaseDone, report, nil)
	}

	if n := len(report.StepErrors); n > 0 {
		return fmt.Errorf("%w: %d step(s) failed", ErrProbeIncomplete, n)
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
