// Package pipeline orders the sync stages and runs a selected subset
// with a per-step timeout. A failed step stops the run; checkpointing
// inside the stages makes the next invocation resume where it stopped.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Canonical step names, in execution order.
const (
	StepTasks     = "tasks"
	StepSearch    = "search"
	StepDownload  = "download"
	StepMap       = "map"
	StepExtract   = "extract"
	StepClassify  = "classify"
	StepAggregate = "aggregate"
)

// Step is one named pipeline stage.
type Step struct {
	Name        string
	Description string
	Run         func(ctx context.Context) error
}

// Result records the outcome of one executed step.
type Result struct {
	Name     string
	Duration time.Duration
	Err      error
}

// Pipeline holds the registered steps in execution order.
type Pipeline struct {
	steps   []Step
	timeout time.Duration
	logger  *slog.Logger

	// OnStepStart and OnStepDone, when set, observe step lifecycle
	// events. Used by the interactive progress display.
	OnStepStart func(name string, index, total int)
	OnStepDone  func(result Result)
}

// New creates a pipeline whose steps each run under the given timeout.
func New(timeout time.Duration, logger *slog.Logger) *Pipeline {
	return &Pipeline{timeout: timeout, logger: logger}
}

// Add registers a step at the end of the pipeline.
func (p *Pipeline) Add(step Step) {
	p.steps = append(p.steps, step)
}

// Steps returns the registered steps in order.
func (p *Pipeline) Steps() []Step {
	return p.steps
}

// Select resolves which steps to run. only, when non-empty, names an
// explicit subset and overrides startFrom; startFrom skips everything
// before the named step. Unknown names are an error.
func (p *Pipeline) Select(startFrom string, only []string) ([]Step, error) {
	byName := make(map[string]Step, len(p.steps))
	for _, s := range p.steps {
		byName[s.Name] = s
	}
	if len(only) > 0 {
		wanted := make(map[string]bool, len(only))
		for _, name := range only {
			if _, ok := byName[name]; !ok {
				return nil, fmt.Errorf("unknown step %q", name)
			}
			wanted[name] = true
		}
		var selected []Step
		for _, s := range p.steps {
			if wanted[s.Name] {
				selected = append(selected, s)
			}
		}
		return selected, nil
	}
	if startFrom == "" {
		return p.steps, nil
	}
	for i, s := range p.steps {
		if s.Name == startFrom {
			return p.steps[i:], nil
		}
	}
	return nil, fmt.Errorf("unknown step %q", startFrom)
}

// Run executes the selected steps in order, each under its own timeout.
// The first failure stops the run; earlier results are still returned.
func (p *Pipeline) Run(ctx context.Context, startFrom string, only []string) ([]Result, error) {
	selected, err := p.Select(startFrom, only)
	if err != nil {
		return nil, err
	}
	var results []Result
	for i, step := range selected {
		p.logger.Info("running step", "step", step.Name)
		if p.OnStepStart != nil {
			p.OnStepStart(step.Name, i, len(selected))
		}
		start := time.Now()
		err := p.runStep(ctx, step)
		result := Result{Name: step.Name, Duration: time.Since(start), Err: err}
		results = append(results, result)
		if p.OnStepDone != nil {
			p.OnStepDone(result)
		}
		if err != nil {
			p.logger.Error("step failed", "step", step.Name, "duration", result.Duration, "error", err)
			return results, fmt.Errorf("step %s: %w", step.Name, err)
		}
		p.logger.Info("step completed", "step", step.Name, "duration", result.Duration)
	}
	return results, nil
}

func (p *Pipeline) runStep(ctx context.Context, step Step) error {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	return step.Run(ctx)
}
