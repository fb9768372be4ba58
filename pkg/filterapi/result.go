// Package filterapi is the contract between the pipeline driver and filter
// plugins: parameter declarations, argument bags, structural actions,
// diagnostics, progress messages and the per-step state machine.
package filterapi

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
)

// Severity classifies a diagnostic.
type Severity uint8

const (
	// SeverityWarning is advisory and never blocks a step.
	SeverityWarning Severity = iota + 1
	// SeverityError blocks commit during preflight and fails execution.
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// Code is a stable machine-readable diagnostic code.
type Code int

// Diagnostic codes. Negative values mirror the convention that zero means
// success.
const (
	CodeNone               Code = 0
	CodeInvalidArgument    Code = -1000
	CodeMissingArgument    Code = -1001
	CodeUndeclaredArgument Code = -1002
	CodeNotFound           Code = -2000
	CodeTypeMismatch       Code = -2001
	CodeNameCollision      Code = -2002
	CodeInvalidParent      Code = -2003
	CodeInvalidName        Code = -2004
	CodeTupleMismatch      Code = -2005
	CodeOutOfRange         Code = -2006
	CodeUnsupported        Code = -2007
	CodeNotAllocated       Code = -2008
	CodeCommitFailed       Code = -3000
	CodeExecuteFailed      Code = -4000
	CodeIO                 Code = -4001
	CodeCanceled           Code = -5000
	CodeInternal           Code = -9999
)

var sentinelCodes = []struct {
	err  error
	code Code
}{
	{datagraph.ErrNotFound, CodeNotFound},
	{datagraph.ErrTypeMismatch, CodeTypeMismatch},
	{datagraph.ErrNameCollision, CodeNameCollision},
	{datagraph.ErrInvalidParent, CodeInvalidParent},
	{datagraph.ErrInvalidName, CodeInvalidName},
	{datagraph.ErrTupleMismatch, CodeTupleMismatch},
	{datagraph.ErrOutOfRange, CodeOutOfRange},
	{datagraph.ErrUnsupported, CodeUnsupported},
	{datastore.ErrNotAllocated, CodeNotAllocated},
	{datastore.ErrChunkLoad, CodeIO},
	{ErrMissingArgument, CodeMissingArgument},
	{ErrArgumentType, CodeInvalidArgument},
	{context.Canceled, CodeCanceled},
	{context.DeadlineExceeded, CodeCanceled},
}

// CodeOf maps err to the code of the first sentinel it wraps. Unknown errors
// map to CodeInternal, nil to CodeNone.
func CodeOf(err error) Code {
	if err == nil {
		return CodeNone
	}
	var coded interface{ DiagnosticCode() Code }
	if errors.As(err, &coded) {
		return coded.DiagnosticCode()
	}
	for _, s := range sentinelCodes {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeInternal
}

// Diagnostic is one accumulated warning or error.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %d: %s", d.Severity, d.Code, d.Message)
}

// Result accumulates diagnostics. The zero value is an empty success.
type Result struct {
	Diagnostics []Diagnostic
}

// Merge appends the diagnostics of other.
func (r *Result) Merge(other Result) {
	if len(other.Diagnostics) == 0 {
		return
	}
	r.Diagnostics = append(r.Diagnostics, other.Diagnostics...)
}

// Errorf records an error diagnostic.
func (r *Result) Errorf(code Code, format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...)})
}

// Warnf records a warning diagnostic.
func (r *Result) Warnf(code Code, format string, args ...any) {
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...)})
}

// AddError records err as an error diagnostic coded by CodeOf. Nil is
// ignored.
func (r *Result) AddError(err error) {
	if err == nil {
		return
	}
	r.Diagnostics = append(r.Diagnostics, Diagnostic{Severity: SeverityError, Code: CodeOf(err), Message: err.Error()})
}

// HasErrors reports whether any diagnostic is an error.
func (r Result) HasErrors() bool {
	for _, d := range r.Diagnostics {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Errors returns the error diagnostics.
func (r Result) Errors() []Diagnostic { return r.filter(SeverityError) }

// Warnings returns the warning diagnostics.
func (r Result) Warnings() []Diagnostic { return r.filter(SeverityWarning) }

func (r Result) filter(s Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Err returns a DiagnosticsError when the result has errors.
func (r Result) Err() error {
	if !r.HasErrors() {
		return nil
	}
	return DiagnosticsError{Result: r}
}

// ErrorResult builds a result holding err.
func ErrorResult(err error) Result {
	var r Result
	r.AddError(err)
	return r
}

// DiagnosticsError carries a result with blocking diagnostics.
type DiagnosticsError struct {
	Result Result
}

func (e DiagnosticsError) Error() string {
	errs := e.Result.Errors()
	parts := make([]string, len(errs))
	for i, d := range errs {
		parts[i] = d.String()
	}
	return "filterapi: " + strings.Join(parts, "; ")
}

// DiagnosticCode returns the code of the first error diagnostic.
func (e DiagnosticsError) DiagnosticCode() Code {
	if errs := e.Result.Errors(); len(errs) > 0 {
		return errs[0].Code
	}
	return CodeNone
}
