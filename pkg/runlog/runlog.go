// Package runlog defines the pipeline run ledger: one record per pipeline run
// with the outcome of every step. Backends live under
// internal/infra/persistence.
package runlog

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = errors.New("runlog: run not found")

// Status is the terminal or in-flight state of a run.
type Status string

// Run statuses.
const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Diagnostic mirrors a filter diagnostic in storable form.
type Diagnostic struct {
	Severity string `json:"severity"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
}

// Step records one pipeline step.
type Step struct {
	Index       int          `json:"index"`
	Filter      string       `json:"filter"`
	FilterUUID  string       `json:"filter_uuid,omitempty"`
	State       string       `json:"state"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
}

// Run is a single pipeline execution.
type Run struct {
	ID         string    `json:"id"`
	Pipeline   string    `json:"pipeline"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Steps      []Step    `json:"steps,omitempty"`
}

// NewRun starts a run record with a fresh id.
func NewRun(pipeline string, now time.Time) Run {
	return Run{ID: uuid.NewString(), Pipeline: pipeline, Status: StatusRunning, StartedAt: now.UTC()}
}

// Clone returns a deep copy.
func (r Run) Clone() Run {
	cp := r
	if r.Steps != nil {
		cp.Steps = make([]Step, len(r.Steps))
		for i, s := range r.Steps {
			s.Diagnostics = append([]Diagnostic(nil), s.Diagnostics...)
			cp.Steps[i] = s
		}
	}
	return cp
}

// Store persists runs. SaveRun inserts or replaces by id. Implementations are
// safe for concurrent use.
type Store interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns every run ordered by start time, oldest first.
	ListRuns(ctx context.Context) ([]Run, error)
	Close() error
}
