// Package core drives filter pipelines over a datagraph.Graph: validation,
// preflight, commit of structural actions and execution, with logging,
// metrics, tracing and a run ledger around every step.
package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/filterapi"
	"latticecore/pkg/runlog"
)

// Step is one configured filter invocation.
type Step struct {
	Filter filterapi.Filter
	Args   *filterapi.Arguments
}

// StepReport describes what happened to one step.
type StepReport struct {
	Index      int
	Filter     filterapi.Metadata
	State      filterapi.State
	History    []filterapi.State
	Actions    []string
	Values     []filterapi.PreflightValue
	Result     filterapi.Result
	StartedAt  time.Time
	FinishedAt time.Time
}

// Report summarises a preflight or a run.
type Report struct {
	// RunID is empty for preflight reports.
	RunID  string
	Status runlog.Status
	Steps  []StepReport
}

// Result merges the diagnostics of every step.
func (r Report) Result() filterapi.Result {
	var out filterapi.Result
	for _, s := range r.Steps {
		out.Merge(s.Result)
	}
	return out
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger; nil keeps the no-op logger.
func WithLogger(l Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) Option {
	return func(p *Pipeline) {
		if t != nil {
			p.tracer = t
		}
	}
}

// WithRunLog records every run in store.
func WithRunLog(store runlog.Store) Option {
	return func(p *Pipeline) { p.ledger = store }
}

// WithMessageHandler forwards filter messages to h.
func WithMessageHandler(h filterapi.MessageHandler) Option {
	return func(p *Pipeline) { p.messages = h }
}

// WithAtomicCommit restores the graph to its pre-commit state when applying
// a step's actions fails part way.
func WithAtomicCommit(enabled bool) Option {
	return func(p *Pipeline) { p.atomic = enabled }
}

// WithProgressInterval sets the progress interval handed to filters.
func WithProgressInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.progressInterval = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// Pipeline is an ordered list of steps run against one graph. A pipeline is
// not safe for concurrent runs over the same graph.
type Pipeline struct {
	name             string
	steps            []Step
	logger           Logger
	metrics          MetricsRecorder
	tracer           Tracer
	ledger           runlog.Store
	messages         filterapi.MessageHandler
	atomic           bool
	progressInterval time.Duration
	now              func() time.Time
}

// NewPipeline returns an empty pipeline.
func NewPipeline(name string, opts ...Option) *Pipeline {
	p := &Pipeline{
		name:             name,
		logger:           noopLogger{},
		metrics:          noopMetrics{},
		tracer:           noopTracer{},
		progressInterval: filterapi.DefaultProgressInterval,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Add appends a step. Nil args are treated as an empty bag.
func (p *Pipeline) Add(f filterapi.Filter, args *filterapi.Arguments) *Pipeline {
	if args == nil {
		args = filterapi.NewArguments()
	}
	p.steps = append(p.steps, Step{Filter: f, Args: args})
	return p
}

// Steps returns a copy of the step list.
func (p *Pipeline) Steps() []Step { return append([]Step(nil), p.steps...) }

func (p *Pipeline) handler(index int, filter string) filterapi.MessageHandler {
	return func(m filterapi.Message) {
		p.logger.Debug("filter message", "pipeline", p.name, "step", index, "filter", filter, "type", m.Type.String(), "text", m.Text)
		p.messages.Send(m)
	}
}

// Preflight simulates the whole pipeline on a structural clone of g, so no
// array data is loaded or copied. Every step is
// preflighted and its actions are applied in preflight mode so later steps
// see the outputs of earlier ones. g is not modified. Preflight stops at the
// first failing step.
func (p *Pipeline) Preflight(ctx context.Context, g *datagraph.Graph) (Report, error) {
	ctx = filterapi.WithProgressInterval(ctx, p.progressInterval)
	ctx, span := p.tracer.Start(ctx, "pipeline.preflight")
	start := p.now()
	sim := g.CloneStructure()
	report := Report{Status: runlog.StatusSucceeded}
	var err error
	for i, step := range p.steps {
		if ctx.Err() != nil {
			report.Status = runlog.StatusCanceled
			break
		}
		sr, stepErr := p.preflightStep(ctx, sim, i, step)
		report.Steps = append(report.Steps, sr)
		if stepErr != nil {
			report.Status = runlog.StatusFailed
			err = stepErr
			break
		}
	}
	span.End(err)
	p.metrics.Observe(ctx, "pipeline.preflight", err == nil, p.now().Sub(start))
	return report, err
}

func (p *Pipeline) preflightStep(ctx context.Context, sim *datagraph.Graph, i int, step Step) (StepReport, error) {
	sr := StepReport{Index: i, Filter: step.Filter.Metadata(), StartedAt: p.now()}
	var lc filterapi.Lifecycle
	defer func() {
		sr.State, sr.History, sr.FinishedAt = lc.State(), lc.History(), p.now()
	}()
	_, actions, err := p.preflightOne(ctx, sim, i, step, &sr)
	if err != nil {
		_ = lc.Advance(filterapi.StateFailed)
		return sr, err
	}
	if err := actions.Apply(sim, filterapi.ModePreflight); err != nil {
		_ = lc.Advance(filterapi.StateFailed)
		sr.Result.AddError(err)
		return sr, &StepError{Index: i, Filter: sr.Filter.Name, Phase: PhaseCommit, Err: err}
	}
	_ = lc.Advance(filterapi.StatePreflighted)
	return sr, nil
}

// preflightOne validates the arguments of step and runs its preflight
// against view.
func (p *Pipeline) preflightOne(ctx context.Context, view datagraph.View, i int, step Step, sr *StepReport) (*filterapi.Arguments, filterapi.Actions, error) {
	name := sr.Filter.Name
	args, res := step.Filter.Parameters().Validate(step.Args)
	sr.Result.Merge(res)
	if res.HasErrors() {
		return nil, nil, &StepError{Index: i, Filter: name, Phase: PhaseValidate, Err: res.Err()}
	}
	pr := step.Filter.Preflight(ctx, view, args, p.handler(i, name))
	sr.Result.Merge(pr.Result)
	sr.Values = pr.Values
	for _, a := range pr.Actions {
		sr.Actions = append(sr.Actions, a.Describe())
	}
	if pr.Result.HasErrors() {
		return nil, nil, &StepError{Index: i, Filter: name, Phase: PhasePreflight, Err: pr.Result.Err()}
	}
	return args, pr.Actions, nil
}

// Run preflights, commits and executes each step in order against g.
//
// A failing step stops the run and is returned as a *StepError. Cancellation
// is not an error: the current step ends Canceled, later steps do not run,
// and the report status is runlog.StatusCanceled. Commits are not undone
// unless the pipeline was built WithAtomicCommit.
func (p *Pipeline) Run(ctx context.Context, g *datagraph.Graph) (Report, error) {
	run := runlog.NewRun(p.name, p.now())
	ctx = ContextWithRunID(ctx, run.ID)
	ctx = filterapi.WithProgressInterval(ctx, p.progressInterval)
	ctx, span := p.tracer.Start(ctx, "pipeline.run")
	start := p.now()
	p.logger.Info("pipeline started", "pipeline", p.name, "run_id", run.ID, "steps", len(p.steps))

	report := Report{RunID: run.ID, Status: runlog.StatusSucceeded}
	var runErr error
	for i, step := range p.steps {
		if ctx.Err() != nil {
			report.Status = runlog.StatusCanceled
			break
		}
		sr, err := p.runStep(ctx, g, i, step)
		report.Steps = append(report.Steps, sr)
		run.Steps = append(run.Steps, ledgerStep(sr))
		if err != nil {
			report.Status = runlog.StatusFailed
			runErr = err
			break
		}
		if sr.State == filterapi.StateCanceled {
			report.Status = runlog.StatusCanceled
			break
		}
	}

	run.Status = report.Status
	run.FinishedAt = p.now().UTC()
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if p.ledger != nil {
		if err := p.ledger.SaveRun(context.WithoutCancel(ctx), run); err != nil {
			p.logger.Error("record run failed", "pipeline", p.name, "run_id", run.ID, "error", err)
			runErr = errors.Join(runErr, fmt.Errorf("record run %s: %w", run.ID, err))
		}
	}
	span.End(runErr)
	p.metrics.Observe(ctx, "pipeline.run", runErr == nil, p.now().Sub(start))
	if runErr != nil {
		p.logger.Error("pipeline failed", "pipeline", p.name, "run_id", run.ID, "error", runErr)
	} else {
		p.logger.Info("pipeline finished", "pipeline", p.name, "run_id", run.ID, "status", string(report.Status))
	}
	return report, runErr
}

func (p *Pipeline) runStep(ctx context.Context, g *datagraph.Graph, i int, step Step) (sr StepReport, err error) {
	sr = StepReport{Index: i, Filter: step.Filter.Metadata(), StartedAt: p.now()}
	name := sr.Filter.Name
	op := "step." + name
	ctx, span := p.tracer.Start(ctx, op)
	var lc filterapi.Lifecycle
	defer func() {
		sr.State, sr.History, sr.FinishedAt = lc.State(), lc.History(), p.now()
		span.End(err)
		elapsed := sr.FinishedAt.Sub(sr.StartedAt)
		p.metrics.Observe(ctx, op, err == nil, elapsed)
		switch {
		case err != nil:
			p.logger.Warn("step failed", "pipeline", p.name, "step", i, "filter", name, "error", err)
		case sr.State == filterapi.StateCanceled:
			p.logger.Info("step canceled", "pipeline", p.name, "step", i, "filter", name)
		default:
			p.logger.Info("step executed", "pipeline", p.name, "step", i, "filter", name, "duration", elapsed.String())
		}
	}()

	args, actions, err := p.preflightOne(ctx, g, i, step, &sr)
	if err != nil {
		_ = lc.Advance(filterapi.StateFailed)
		return sr, err
	}
	_ = lc.Advance(filterapi.StatePreflighted)
	if ctx.Err() != nil {
		_ = lc.Advance(filterapi.StateCanceled)
		return sr, nil
	}

	var snapshot *datagraph.Graph
	if p.atomic && len(actions) > 0 {
		snapshot = g.Clone()
	}
	if err := actions.Apply(g, filterapi.ModeExecute); err != nil {
		if snapshot != nil {
			g.Restore(snapshot)
		}
		sr.Result.AddError(err)
		_ = lc.Advance(filterapi.StateFailed)
		return sr, &StepError{Index: i, Filter: name, Phase: PhaseCommit, Err: err}
	}
	_ = lc.Advance(filterapi.StateCommitted)
	if ctx.Err() != nil {
		_ = lc.Advance(filterapi.StateCanceled)
		return sr, nil
	}

	res := step.Filter.Execute(ctx, g, args, p.handler(i, name))
	sr.Result.Merge(res)
	if ctx.Err() != nil {
		_ = lc.Advance(filterapi.StateCanceled)
		return sr, nil
	}
	if res.HasErrors() {
		_ = lc.Advance(filterapi.StateFailed)
		return sr, &StepError{Index: i, Filter: name, Phase: PhaseExecute, Err: res.Err()}
	}
	_ = lc.Advance(filterapi.StateExecuted)
	return sr, nil
}

func ledgerStep(sr StepReport) runlog.Step {
	st := runlog.Step{
		Index:      sr.Index,
		Filter:     sr.Filter.Name,
		State:      sr.State.String(),
		StartedAt:  sr.StartedAt.UTC(),
		FinishedAt: sr.FinishedAt.UTC(),
	}
	if sr.Filter.UUID != uuid.Nil {
		st.FilterUUID = sr.Filter.UUID.String()
	}
	for _, d := range sr.Result.Diagnostics {
		st.Diagnostics = append(st.Diagnostics, runlog.Diagnostic{Severity: d.Severity.String(), Code: int(d.Code), Message: d.Message})
	}
	return st
}
