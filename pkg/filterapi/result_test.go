package filterapi

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
)

type codedErr struct{}

func (codedErr) Error() string        { return "coded" }
func (codedErr) DiagnosticCode() Code { return CodeIO }

func TestCodeOf(t *testing.T) {
	cases := []struct {
		err  error
		want Code
	}{
		{nil, CodeNone},
		{fmt.Errorf("wrap: %w", datagraph.ErrNameCollision), CodeNameCollision},
		{fmt.Errorf("wrap: %w", datastore.ErrNotAllocated), CodeNotAllocated},
		{fmt.Errorf("step: %w", context.Canceled), CodeCanceled},
		{fmt.Errorf("outer: %w", codedErr{}), CodeIO},
		{errors.New("boom"), CodeInternal},
	}
	for _, tc := range cases {
		if got := CodeOf(tc.err); got != tc.want {
			t.Fatalf("CodeOf(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestResultMergeAndErr(t *testing.T) {
	var r Result
	r.Warnf(CodeUndeclaredArgument, "ignored %s", "x")
	if r.HasErrors() || r.Err() != nil {
		t.Fatalf("warnings must not block")
	}
	var other Result
	other.AddError(fmt.Errorf("bad: %w", datagraph.ErrTupleMismatch))
	other.AddError(nil)
	r.Merge(other)
	if len(r.Diagnostics) != 2 || len(r.Errors()) != 1 || len(r.Warnings()) != 1 {
		t.Fatalf("unexpected diagnostics %v", r.Diagnostics)
	}
	err := r.Err()
	var de DiagnosticsError
	if !errors.As(err, &de) {
		t.Fatalf("expected DiagnosticsError, got %T", err)
	}
	if CodeOf(err) != CodeTupleMismatch {
		t.Fatalf("expected the first error's code, got %d", CodeOf(err))
	}
}

func TestRequire(t *testing.T) {
	g := datagraph.New()
	if _, err := datagraph.CreateGroup(g, "grp", datagraph.NoID); err != nil {
		t.Fatalf("create group: %v", err)
	}
	if _, err := Require[*datagraph.Group](g, datagraph.MustParsePath("/grp")); err != nil {
		t.Fatalf("require group: %v", err)
	}
	_, err := Require[*datagraph.DataArray](g, datagraph.MustParsePath("/grp"))
	if CodeOf(err) != CodeTypeMismatch {
		t.Fatalf("expected type mismatch, got %v", err)
	}
	_, err = Require[*datagraph.Group](g, datagraph.MustParsePath("/none"))
	if CodeOf(err) != CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := RequireAbsent(g, datagraph.MustParsePath("/grp")); CodeOf(err) != CodeNameCollision {
		t.Fatalf("expected collision, got %v", err)
	}
	if err := RequireAbsent(g, datagraph.MustParsePath("/none/x")); CodeOf(err) != CodeInvalidParent {
		t.Fatalf("expected invalid parent, got %v", err)
	}
	if err := RequireAbsent(g, datagraph.MustParsePath("/grp/x")); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
}
