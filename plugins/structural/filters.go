package structural

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
	"latticecore/pkg/filterapi"
)

// Argument keys shared by the structural filters.
const (
	KeyOutputPath      = "output_path"
	KeySourcePath      = "source_path"
	KeyDestinationPath = "destination_path"
	KeyRemovedPath     = "removed_path"
	KeyNewName         = "new_name"
	KeyDataType        = "data_type"
	KeyTupleShape      = "tuple_shape"
	KeyComponentShape  = "component_shape"
	KeyChunkShape      = "chunk_shape"
	KeyInitValue       = "init_value"
)

var (
	createDataArrayID       = uuid.MustParse("5d1f2a43-0c7e-4b8a-9b61-3e8c2f4a7d01")
	createAttributeMatrixID = uuid.MustParse("5d1f2a43-0c7e-4b8a-9b61-3e8c2f4a7d02")
	createDataGroupID       = uuid.MustParse("5d1f2a43-0c7e-4b8a-9b61-3e8c2f4a7d03")
	deleteDataID            = uuid.MustParse("5d1f2a43-0c7e-4b8a-9b61-3e8c2f4a7d04")
	copyDataObjectID        = uuid.MustParse("5d1f2a43-0c7e-4b8a-9b61-3e8c2f4a7d05")
	renameDataObjectID      = uuid.MustParse("5d1f2a43-0c7e-4b8a-9b61-3e8c2f4a7d06")
	createGeometryID        = uuid.MustParse("5d1f2a43-0c7e-4b8a-9b61-3e8c2f4a7d07")
)

func structuralMeta(name, human string, id uuid.UUID) filterapi.Metadata {
	return filterapi.Metadata{Name: name, HumanName: human, UUID: id, Version: "1", Tags: []string{"core", "structure"}}
}

// CreateDataArray creates a zero-filled, or init_value filled, array. When
// the parent is an attribute matrix the tuple shape defaults to the matrix
// shape and must match it otherwise.
type CreateDataArray struct{}

// Metadata identifies the filter.
func (CreateDataArray) Metadata() filterapi.Metadata {
	return structuralMeta("create_data_array", "Create Data Array", createDataArrayID)
}

// Parameters declares the arguments.
func (CreateDataArray) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeyOutputPath, Name: "Created Array", Type: filterapi.TypeArrayCreationPath, Required: true}).
		Add(filterapi.Parameter{Key: KeyDataType, Name: "Data Type", Type: filterapi.TypeDataType, Default: "float32"}).
		Add(filterapi.Parameter{Key: KeyTupleShape, Name: "Tuple Dimensions", Type: filterapi.TypeShape}).
		Add(filterapi.Parameter{Key: KeyComponentShape, Name: "Component Dimensions", Type: filterapi.TypeShape, Default: []int{1}}).
		Add(filterapi.Parameter{Key: KeyChunkShape, Name: "Chunk Dimensions", Type: filterapi.TypeShape}).
		Add(filterapi.Parameter{Key: KeyInitValue, Name: "Initialization Value", Type: filterapi.TypeFloat, Default: 0.0})
	return p
}

// Preflight checks the destination and describes the array to create.
func (CreateDataArray) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	out, err := filterapi.Value[datagraph.Path](args, KeyOutputPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	if err := filterapi.RequireAbsent(view, out); err != nil {
		return filterapi.PreflightError(err)
	}
	dtype, _ := filterapi.Value[datastore.DataType](args, KeyDataType)
	comp, _ := filterapi.Value[datastore.Shape](args, KeyComponentShape)
	tuples, hasTuples := shapeArg(args, KeyTupleShape)

	var res filterapi.Result
	if matrix, ok := datagraph.ResolveAs[*datagraph.AttributeMatrix](view, out.Parent()); ok {
		switch {
		case !hasTuples:
			tuples = matrix.Shape()
		case !tuples.Equal(matrix.Shape()):
			res.Errorf(filterapi.CodeTupleMismatch, "tuple shape %s does not match attribute matrix %s shape %s", tuples, out.Parent(), matrix.Shape())
			return filterapi.PreflightResult{Result: res}
		}
	} else if !hasTuples {
		res.Errorf(filterapi.CodeMissingArgument, "parameter %s: required unless the parent is an attribute matrix", KeyTupleShape)
		return filterapi.PreflightResult{Result: res}
	}
	chunk, _ := shapeArg(args, KeyChunkShape)
	if chunk != nil {
		if _, err := datastore.NewChunkGrid(tuples, chunk); err != nil {
			return filterapi.PreflightError(fmt.Errorf("%w: %v", datagraph.ErrOutOfRange, err))
		}
	}
	bytes := uint64(tuples.Product()) * uint64(comp.Product()) * uint64(dtype.Size())
	return filterapi.PreflightResult{
		Actions: filterapi.Actions{filterapi.CreateArrayAction{
			Path:           out,
			DataType:       dtype,
			TupleShape:     tuples,
			ComponentShape: comp,
			ChunkShape:     chunk,
		}},
		Values: []filterapi.PreflightValue{{Name: "Allocated Size", Value: humanize.IBytes(bytes)}},
		Result: res,
	}
}

// Execute writes init_value into every element when it is non-zero.
func (CreateDataArray) Execute(ctx context.Context, g *datagraph.Graph, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.Result {
	fill, _ := args.Float(KeyInitValue)
	if fill == 0 {
		return filterapi.Result{}
	}
	out, _ := filterapi.Value[datagraph.Path](args, KeyOutputPath)
	arr, err := filterapi.Require[*datagraph.DataArray](g, out)
	if err != nil {
		return filterapi.ErrorResult(err)
	}
	store := arr.Store()
	for i := 0; i < store.Len(); i++ {
		if i%4096 == 0 && ctx.Err() != nil {
			return filterapi.Result{}
		}
		store.SetFloat64(i, fill)
	}
	if err := store.Err(); err != nil {
		return filterapi.ErrorResult(fmt.Errorf("initialize %s: %w", out, err))
	}
	return filterapi.Result{}
}

// CreateAttributeMatrix creates an attribute matrix with a tuple shape.
type CreateAttributeMatrix struct{}

// Metadata identifies the filter.
func (CreateAttributeMatrix) Metadata() filterapi.Metadata {
	return structuralMeta("create_attribute_matrix", "Create Attribute Matrix", createAttributeMatrixID)
}

// Parameters declares the arguments.
func (CreateAttributeMatrix) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeyOutputPath, Name: "Created Attribute Matrix", Type: filterapi.TypeArrayCreationPath, Required: true}).
		Add(filterapi.Parameter{Key: KeyTupleShape, Name: "Tuple Dimensions", Type: filterapi.TypeShape, Required: true})
	return p
}

// Preflight checks the destination.
func (CreateAttributeMatrix) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	out, err := filterapi.Value[datagraph.Path](args, KeyOutputPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	if err := filterapi.RequireAbsent(view, out); err != nil {
		return filterapi.PreflightError(err)
	}
	shape, err := filterapi.Value[datastore.Shape](args, KeyTupleShape)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	return filterapi.PreflightResult{Actions: filterapi.Actions{filterapi.CreateAttributeMatrixAction{Path: out, Shape: shape}}}
}

// Execute does nothing.
func (CreateAttributeMatrix) Execute(context.Context, *datagraph.Graph, *filterapi.Arguments, filterapi.MessageHandler) filterapi.Result {
	return filterapi.Result{}
}

// CreateDataGroup creates an empty group.
type CreateDataGroup struct{}

// Metadata identifies the filter.
func (CreateDataGroup) Metadata() filterapi.Metadata {
	return structuralMeta("create_data_group", "Create Data Group", createDataGroupID)
}

// Parameters declares the arguments.
func (CreateDataGroup) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeyOutputPath, Name: "Created Group", Type: filterapi.TypeArrayCreationPath, Required: true})
	return p
}

// Preflight checks the destination.
func (CreateDataGroup) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	out, err := filterapi.Value[datagraph.Path](args, KeyOutputPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	if err := filterapi.RequireAbsent(view, out); err != nil {
		return filterapi.PreflightError(err)
	}
	return filterapi.PreflightResult{Actions: filterapi.Actions{filterapi.CreateGroupAction{Path: out}}}
}

// Execute does nothing.
func (CreateDataGroup) Execute(context.Context, *datagraph.Graph, *filterapi.Arguments, filterapi.MessageHandler) filterapi.Result {
	return filterapi.Result{}
}

// DeleteData removes an object and everything below it. Geometries that
// referenced a removed array keep working only if the array was optional.
type DeleteData struct{}

// Metadata identifies the filter.
func (DeleteData) Metadata() filterapi.Metadata {
	return structuralMeta("delete_data", "Delete Data", deleteDataID)
}

// Parameters declares the arguments.
func (DeleteData) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeyRemovedPath, Name: "Object to Delete", Type: filterapi.TypeDataPath, Required: true})
	return p
}

// Preflight checks the object exists and warns about its subtree.
func (DeleteData) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	target, err := filterapi.Value[datagraph.Path](args, KeyRemovedPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	id, ok := view.GetByPath(target)
	if !ok || id == datagraph.NoID {
		return filterapi.PreflightError(fmt.Errorf("%w: %s", datagraph.ErrNotFound, target))
	}
	var res filterapi.Result
	if n := countDescendants(view, id); n > 0 {
		res.Warnf(filterapi.CodeNone, "deleting %s also removes %d descendant objects", target, n)
	}
	return filterapi.PreflightResult{Actions: filterapi.Actions{filterapi.DeleteDataAction{Path: target}}, Result: res}
}

// Execute does nothing.
func (DeleteData) Execute(context.Context, *datagraph.Graph, *filterapi.Arguments, filterapi.MessageHandler) filterapi.Result {
	return filterapi.Result{}
}

// CopyDataObject deep copies an object and its subtree to a new path.
type CopyDataObject struct{}

// Metadata identifies the filter.
func (CopyDataObject) Metadata() filterapi.Metadata {
	return structuralMeta("copy_data_object", "Copy Data Object", copyDataObjectID)
}

// Parameters declares the arguments.
func (CopyDataObject) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeySourcePath, Name: "Object to Copy", Type: filterapi.TypeDataPath, Required: true}).
		Add(filterapi.Parameter{Key: KeyDestinationPath, Name: "Copied Object", Type: filterapi.TypeArrayCreationPath, Required: true})
	return p
}

// Preflight checks both paths. A copy cannot be placed inside its source.
func (CopyDataObject) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	src, err := filterapi.Value[datagraph.Path](args, KeySourcePath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	dst, err := filterapi.Value[datagraph.Path](args, KeyDestinationPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	if !view.Contains(src) {
		return filterapi.PreflightError(fmt.Errorf("%w: %s", datagraph.ErrNotFound, src))
	}
	if dst.HasPrefix(src) {
		return filterapi.PreflightError(fmt.Errorf("%w: %s is inside %s", datagraph.ErrInvalidParent, dst, src))
	}
	if err := filterapi.RequireAbsent(view, dst); err != nil {
		return filterapi.PreflightError(err)
	}
	return filterapi.PreflightResult{Actions: filterapi.Actions{filterapi.CopyDataAction{Source: src, Destination: dst}}}
}

// Execute does nothing.
func (CopyDataObject) Execute(context.Context, *datagraph.Graph, *filterapi.Arguments, filterapi.MessageHandler) filterapi.Result {
	return filterapi.Result{}
}

// RenameDataObject gives an object a new name under the same parent.
type RenameDataObject struct{}

// Metadata identifies the filter.
func (RenameDataObject) Metadata() filterapi.Metadata {
	return structuralMeta("rename_data_object", "Rename Data Object", renameDataObjectID)
}

// Parameters declares the arguments.
func (RenameDataObject) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeySourcePath, Name: "Object to Rename", Type: filterapi.TypeDataPath, Required: true}).
		Add(filterapi.Parameter{Key: KeyNewName, Name: "New Name", Type: filterapi.TypeString, Required: true})
	return p
}

// Preflight validates the new name and checks for sibling collisions.
func (RenameDataObject) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	src, err := filterapi.Value[datagraph.Path](args, KeySourcePath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	name, err := args.Text(KeyNewName)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	if err := datagraph.ValidateName(name); err != nil {
		return filterapi.PreflightError(err)
	}
	if !view.Contains(src) {
		return filterapi.PreflightError(fmt.Errorf("%w: %s", datagraph.ErrNotFound, src))
	}
	if name == src.Name() {
		var res filterapi.Result
		res.Warnf(filterapi.CodeNone, "%s already has the name %q", src, name)
		return filterapi.PreflightResult{Result: res}
	}
	if view.Contains(src.WithName(name)) {
		return filterapi.PreflightError(fmt.Errorf("%w: %s", datagraph.ErrNameCollision, src.WithName(name)))
	}
	return filterapi.PreflightResult{Actions: filterapi.Actions{filterapi.RenameDataAction{Path: src, NewName: name}}}
}

// Execute does nothing.
func (RenameDataObject) Execute(context.Context, *datagraph.Graph, *filterapi.Arguments, filterapi.MessageHandler) filterapi.Result {
	return filterapi.Result{}
}

func shapeArg(args *filterapi.Arguments, key string) (datastore.Shape, bool) {
	s, err := filterapi.Value[datastore.Shape](args, key)
	if err != nil {
		return nil, false
	}
	return s, true
}

func countDescendants(view datagraph.View, id datagraph.ID) int {
	n := 0
	for _, child := range view.Children(id) {
		n += 1 + countDescendants(view, child)
	}
	return n
}
