package meshops

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
	"latticecore/pkg/filterapi"
)

// Argument keys of ScaleArray.
const (
	KeyArrayPath = "array_path"
	KeyFactor    = "factor"
	KeyOffset    = "offset"
)

var scaleArrayID = uuid.MustParse("8c3e61b0-47d2-4f9e-a1c5-2b7d90e4f302")

const scaleCheckEvery = 4096

// ScaleArray applies v*factor+offset to every element of a numeric array in
// place. Integer arrays keep their type; results are converted back the way
// datastore.Store.SetFloat64 converts.
type ScaleArray struct{}

// Metadata identifies the filter.
func (ScaleArray) Metadata() filterapi.Metadata {
	return filterapi.Metadata{
		Name:      "scale_array",
		HumanName: "Scale Array",
		UUID:      scaleArrayID,
		Version:   "1",
		Tags:      []string{"array", "math"},
	}
}

// Parameters declares the arguments.
func (ScaleArray) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeyArrayPath, Name: "Array", Type: filterapi.TypeDataPath, Required: true}).
		Add(filterapi.Parameter{Key: KeyFactor, Name: "Scale Factor", Type: filterapi.TypeFloat, Required: true}).
		Add(filterapi.Parameter{Key: KeyOffset, Name: "Offset", Type: filterapi.TypeFloat, Default: 0.0})
	return p
}

// Preflight checks the array is numeric.
func (ScaleArray) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	path, err := filterapi.Value[datagraph.Path](args, KeyArrayPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	arr, err := filterapi.Require[*datagraph.DataArray](view, path)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	if arr.DataType() == datastore.Boolean {
		return filterapi.PreflightError(fmt.Errorf("%w: %s holds booleans", datagraph.ErrUnsupported, path))
	}
	factor, _ := args.Float(KeyFactor)
	offset, _ := args.Float(KeyOffset)
	var res filterapi.Result
	if factor == 1 && offset == 0 {
		res.Warnf(filterapi.CodeNone, "factor 1 and offset 0 leave %s unchanged", path)
	}
	return filterapi.PreflightResult{Result: res}
}

// Execute rescales the array, checking ctx every few thousand elements.
func (ScaleArray) Execute(ctx context.Context, g *datagraph.Graph, args *filterapi.Arguments, messages filterapi.MessageHandler) filterapi.Result {
	path, _ := filterapi.Value[datagraph.Path](args, KeyArrayPath)
	factor, _ := args.Float(KeyFactor)
	offset, _ := args.Float(KeyOffset)
	arr, err := filterapi.Require[*datagraph.DataArray](g, path)
	if err != nil {
		return filterapi.ErrorResult(err)
	}
	store := arr.Store()
	if !store.Allocated() {
		return filterapi.ErrorResult(fmt.Errorf("array %s: %w", path, datastore.ErrNotAllocated))
	}
	n := store.Len()
	progress := filterapi.NewProgressReporter(messages, "Scaling "+path.String(), int64(n), filterapi.ProgressInterval(ctx))
	for start := 0; start < n; start += scaleCheckEvery {
		if ctx.Err() != nil {
			return filterapi.Result{}
		}
		end := min(start+scaleCheckEvery, n)
		for i := start; i < end; i++ {
			store.SetFloat64(i, store.Float64At(i)*factor+offset)
		}
		if err := store.Err(); err != nil {
			return filterapi.ErrorResult(fmt.Errorf("scale %s: %w", path, err))
		}
		progress.Add(int64(end - start))
	}
	progress.Finish()
	return filterapi.Result{}
}
