package filterapi

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"latticecore/pkg/datagraph"
)

// Metadata identifies a filter.
type Metadata struct {
	// Name is the stable machine name, unique within a registry.
	Name      string
	HumanName string
	UUID      uuid.UUID
	Version   string
	Tags      []string
}

// PreflightValue is a computed value shown to the user before running.
type PreflightValue struct {
	Name  string
	Value string
}

// PreflightResult is what a filter's preflight returns: the actions that
// would change the graph and any diagnostics. Error diagnostics block commit.
type PreflightResult struct {
	Actions Actions
	Result  Result
	Values  []PreflightValue
}

// Filter is implemented by every pipeline step.
//
// Preflight receives a read-only view and must not change the graph. Execute
// runs after the preflight actions were committed; it should check ctx at
// loop boundaries and return an empty Result when ctx is canceled.
type Filter interface {
	Metadata() Metadata
	Parameters() Parameters
	Preflight(ctx context.Context, view datagraph.View, args *Arguments, messages MessageHandler) PreflightResult
	Execute(ctx context.Context, graph *datagraph.Graph, args *Arguments, messages MessageHandler) Result
}

// PreflightError builds a PreflightResult holding a single error.
func PreflightError(err error) PreflightResult {
	return PreflightResult{Result: ErrorResult(err)}
}

// Require resolves p in v and downcasts the object to T, reporting a missing
// path or a wrong type as a coded error.
func Require[T datagraph.Object](v datagraph.View, p datagraph.Path) (T, error) {
	var zero T
	id, ok := v.GetByPath(p)
	if !ok || id == datagraph.NoID {
		return zero, fmt.Errorf("%w: %s", datagraph.ErrNotFound, p)
	}
	typed, ok := datagraph.GetAs[T](v, id)
	if !ok {
		obj, _ := v.Get(id)
		return zero, fmt.Errorf("%w: %s is a %s, want %T", datagraph.ErrTypeMismatch, p, obj.Kind(), zero)
	}
	return typed, nil
}

// RequireAbsent reports an error when p already exists or its parent does
// not, the checks a creation path needs.
func RequireAbsent(v datagraph.View, p datagraph.Path) error {
	if v.Contains(p) {
		return fmt.Errorf("%w: %s already exists", datagraph.ErrNameCollision, p)
	}
	if !v.Contains(p.Parent()) {
		return fmt.Errorf("%w: %s does not exist", datagraph.ErrInvalidParent, p.Parent())
	}
	return nil
}
