package core

import (
	"context"
	"errors"
	"testing"

	"latticecore/internal/infra/persistence/memory"
	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
	"latticecore/pkg/filterapi"
	"latticecore/pkg/runlog"
)

// fillFilter creates a four-tuple float64 array at path and fills it with
// value. needs names an object that must exist during preflight.
type fillFilter struct {
	name         string
	path         datagraph.Path
	value        float64
	needs        datagraph.Path
	actions      filterapi.Actions
	preflightErr error
	executeErr   error
	onExecute    func()
}

func (f *fillFilter) Metadata() filterapi.Metadata {
	return filterapi.Metadata{Name: f.name, HumanName: f.name, Version: "1"}
}

func (f *fillFilter) Parameters() filterapi.Parameters { return filterapi.Parameters{} }

func (f *fillFilter) Preflight(_ context.Context, view datagraph.View, _ *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	if f.preflightErr != nil {
		return filterapi.PreflightError(f.preflightErr)
	}
	if f.needs != nil && !view.Contains(f.needs) {
		return filterapi.PreflightError(datagraph.ErrNotFound)
	}
	if f.actions != nil {
		return filterapi.PreflightResult{Actions: f.actions}
	}
	return filterapi.PreflightResult{
		Actions: filterapi.Actions{filterapi.CreateArrayAction{
			Path:       f.path,
			DataType:   datastore.Float64,
			TupleShape: datastore.Shape{4},
		}},
		Values: []filterapi.PreflightValue{{Name: "tuples", Value: "4"}},
	}
}

func (f *fillFilter) Execute(ctx context.Context, g *datagraph.Graph, _ *filterapi.Arguments, messages filterapi.MessageHandler) filterapi.Result {
	if f.onExecute != nil {
		f.onExecute()
	}
	if ctx.Err() != nil {
		return filterapi.Result{}
	}
	if f.executeErr != nil {
		return filterapi.ErrorResult(f.executeErr)
	}
	if f.path == nil {
		return filterapi.Result{}
	}
	arr, ok := datagraph.ResolveAs[*datagraph.DataArray](g, f.path)
	if !ok {
		return filterapi.ErrorResult(datagraph.ErrNotFound)
	}
	for i := 0; i < arr.Store().Len(); i++ {
		arr.Store().SetFloat64(i, f.value)
	}
	messages.Infof("filled %s", f.path)
	return filterapi.Result{}
}

func TestPipelineRunCommitsAndExecutes(t *testing.T) {
	ledger := memory.NewStore()
	var messages []string
	p := NewPipeline("fill",
		WithRunLog(ledger),
		WithMessageHandler(func(m filterapi.Message) { messages = append(messages, m.Text) }),
	)
	p.Add(&fillFilter{name: "a", path: datagraph.NewPath("A"), value: 1}, nil)
	p.Add(&fillFilter{name: "b", path: datagraph.NewPath("B"), value: 2, needs: datagraph.NewPath("A")}, nil)

	g := datagraph.New()
	report, err := p.Run(context.Background(), g)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Status != runlog.StatusSucceeded || len(report.Steps) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for _, sr := range report.Steps {
		if sr.State != filterapi.StateExecuted {
			t.Fatalf("step %d state %s", sr.Index, sr.State)
		}
		if len(sr.History) != 3 {
			t.Fatalf("step %d history %v", sr.Index, sr.History)
		}
	}
	b, ok := datagraph.ResolveAs[*datagraph.DataArray](g, datagraph.NewPath("B"))
	if !ok || b.Store().Float64At(3) != 2 {
		t.Fatalf("array B not filled")
	}
	if len(messages) != 2 {
		t.Fatalf("expected forwarded messages, got %v", messages)
	}

	run, err := ledger.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != runlog.StatusSucceeded || len(run.Steps) != 2 || run.Steps[1].State != "executed" {
		t.Fatalf("unexpected ledger run: %+v", run)
	}
}

func TestPipelinePreflightLeavesGraphUntouched(t *testing.T) {
	p := NewPipeline("fill")
	p.Add(&fillFilter{name: "a", path: datagraph.NewPath("A")}, nil)
	p.Add(&fillFilter{name: "b", path: datagraph.NewPath("B"), needs: datagraph.NewPath("A")}, nil)

	g := datagraph.New()
	report, err := p.Preflight(context.Background(), g)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("preflight changed the graph: %d objects", g.Len())
	}
	if report.Status != runlog.StatusSucceeded || len(report.Steps) != 2 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if len(report.Steps[0].Actions) != 1 || len(report.Steps[0].Values) != 1 {
		t.Fatalf("missing actions or values: %+v", report.Steps[0])
	}
	if report.Steps[1].State != filterapi.StatePreflighted {
		t.Fatalf("step b state %s", report.Steps[1].State)
	}
}

func TestPipelinePreflightDoesNotLoadArrayData(t *testing.T) {
	g := datagraph.New()
	loads := 0
	lazy, err := datastore.NewLazyDataStore[float32](datastore.Shape{1 << 20}, datastore.Shape{1}, nil,
		func(int) ([]byte, error) {
			loads++
			return make([]byte, 4<<20), nil
		})
	if err != nil {
		t.Fatalf("NewLazyDataStore: %v", err)
	}
	if _, err := datagraph.CreateDataArray(g, "Big", datagraph.NoID, lazy); err != nil {
		t.Fatalf("CreateDataArray: %v", err)
	}

	if _, err := NewPipeline("empty").Preflight(context.Background(), g); err != nil {
		t.Fatalf("preflight: %v", err)
	}
	p := NewPipeline("fill")
	p.Add(&fillFilter{name: "a", path: datagraph.NewPath("A")}, nil)
	if _, err := p.Preflight(context.Background(), g); err != nil {
		t.Fatalf("preflight: %v", err)
	}
	if loads != 0 {
		t.Fatalf("preflight loaded %d chunks", loads)
	}
}

func TestPipelinePreflightStopsAtFirstFailure(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline("fill")
	p.Add(&fillFilter{name: "a", preflightErr: boom}, nil)
	p.Add(&fillFilter{name: "b", path: datagraph.NewPath("B")}, nil)

	report, err := p.Preflight(context.Background(), datagraph.New())
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Phase != PhasePreflight || stepErr.Index != 0 {
		t.Fatalf("expected preflight step error, got %v", err)
	}
	if report.Status != runlog.StatusFailed || len(report.Steps) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !report.Result().HasErrors() {
		t.Fatalf("expected error diagnostics")
	}
}

func TestPipelineRunMissingInputFailsInPreflight(t *testing.T) {
	p := NewPipeline("fill")
	p.Add(&fillFilter{name: "b", path: datagraph.NewPath("B"), needs: datagraph.NewPath("A")}, nil)
	g := datagraph.New()
	_, err := p.Run(context.Background(), g)
	if filterapi.CodeOf(err) != filterapi.CodeNotFound {
		t.Fatalf("expected not-found code, got %v", err)
	}
	if g.Len() != 0 {
		t.Fatalf("failed preflight must not commit")
	}
}

func commitFailureSetup(t *testing.T) (*datagraph.Graph, *fillFilter) {
	t.Helper()
	g := datagraph.New()
	if _, err := datagraph.CreateGroup(g, "Taken", datagraph.NoID); err != nil {
		t.Fatalf("setup: %v", err)
	}
	f := &fillFilter{name: "collide", actions: filterapi.Actions{
		filterapi.CreateGroupAction{Path: datagraph.NewPath("Fresh")},
		filterapi.CreateGroupAction{Path: datagraph.NewPath("Taken")},
	}}
	return g, f
}

func TestPipelineAtomicCommitRestoresGraph(t *testing.T) {
	g, f := commitFailureSetup(t)
	p := NewPipeline("collide", WithAtomicCommit(true))
	p.Add(f, nil)

	report, err := p.Run(context.Background(), g)
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Phase != PhaseCommit {
		t.Fatalf("expected commit step error, got %v", err)
	}
	if !errors.Is(err, datagraph.ErrNameCollision) {
		t.Fatalf("expected name collision, got %v", err)
	}
	if g.Contains(datagraph.NewPath("Fresh")) {
		t.Fatalf("atomic commit left a partial change")
	}
	if !g.Contains(datagraph.NewPath("Taken")) || g.Len() != 1 {
		t.Fatalf("original graph not restored")
	}
	if report.Steps[0].State != filterapi.StateFailed {
		t.Fatalf("state %s", report.Steps[0].State)
	}
}

func TestPipelineNonAtomicCommitKeepsPartialChanges(t *testing.T) {
	g, f := commitFailureSetup(t)
	p := NewPipeline("collide")
	p.Add(f, nil)

	if _, err := p.Run(context.Background(), g); err == nil {
		t.Fatalf("expected commit failure")
	}
	if !g.Contains(datagraph.NewPath("Fresh")) {
		t.Fatalf("expected the first action to stay applied")
	}
}

func TestPipelineExecuteFailureStopsRun(t *testing.T) {
	ledger := memory.NewStore()
	p := NewPipeline("fill", WithRunLog(ledger))
	p.Add(&fillFilter{name: "a", path: datagraph.NewPath("A"), executeErr: errors.New("disk full")}, nil)
	p.Add(&fillFilter{name: "b", path: datagraph.NewPath("B")}, nil)

	g := datagraph.New()
	report, err := p.Run(context.Background(), g)
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Phase != PhaseExecute || stepErr.Filter != "a" {
		t.Fatalf("expected execute step error, got %v", err)
	}
	if len(report.Steps) != 1 || report.Status != runlog.StatusFailed {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !g.Contains(datagraph.NewPath("A")) || g.Contains(datagraph.NewPath("B")) {
		t.Fatalf("unexpected graph after execute failure")
	}
	run, err := ledger.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Status != runlog.StatusFailed || run.Error == "" || len(run.Steps[0].Diagnostics) == 0 {
		t.Fatalf("unexpected ledger run: %+v", run)
	}
}

func TestPipelineRunPreCanceled(t *testing.T) {
	ledger := memory.NewStore()
	p := NewPipeline("fill", WithRunLog(ledger))
	p.Add(&fillFilter{name: "a", path: datagraph.NewPath("A")}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := datagraph.New()
	report, err := p.Run(ctx, g)
	if err != nil {
		t.Fatalf("cancellation is not an error: %v", err)
	}
	if report.Status != runlog.StatusCanceled || len(report.Steps) != 0 || g.Len() != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}
	run, err := ledger.GetRun(context.Background(), report.RunID)
	if err != nil || run.Status != runlog.StatusCanceled {
		t.Fatalf("expected canceled run in ledger, got %+v %v", run, err)
	}
}

func TestPipelineCancelDuringExecute(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := NewPipeline("fill")
	p.Add(&fillFilter{name: "a", path: datagraph.NewPath("A"), value: 5, onExecute: cancel}, nil)
	p.Add(&fillFilter{name: "b", path: datagraph.NewPath("B")}, nil)

	g := datagraph.New()
	report, err := p.Run(ctx, g)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Status != runlog.StatusCanceled || len(report.Steps) != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
	if report.Steps[0].State != filterapi.StateCanceled {
		t.Fatalf("state %s", report.Steps[0].State)
	}
	a, ok := datagraph.ResolveAs[*datagraph.DataArray](g, datagraph.NewPath("A"))
	if !ok || a.Store().Float64At(0) != 0 {
		t.Fatalf("committed array should exist untouched")
	}
}

func TestPipelineObservability(t *testing.T) {
	tracer := NewJSONTracer(nil)
	metrics := NewExpvarMetricsRecorder("")
	p := NewPipeline("fill", WithTracer(tracer), WithMetrics(metrics), WithLogger(nil))
	p.Add(&fillFilter{name: "a", path: datagraph.NewPath("A")}, nil)

	report, err := p.Run(context.Background(), datagraph.New())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	entries := tracer.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected step and run spans, got %+v", entries)
	}
	if entries[0].Operation != "step.a" || entries[1].Operation != "pipeline.run" {
		t.Fatalf("unexpected span order: %+v", entries)
	}
	for _, e := range entries {
		if e.RunID != report.RunID || e.Status != "success" {
			t.Fatalf("unexpected span: %+v", e)
		}
	}
	snap := metrics.Snapshot()
	if snap.Operations["step.a"].Success != 1 || snap.Operations["pipeline.run"].Success != 1 {
		t.Fatalf("unexpected metrics: %+v", snap.Operations)
	}
}
