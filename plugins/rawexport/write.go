package rawexport

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"latticecore/internal/artifact"
	"latticecore/internal/container"
	"latticecore/pkg/datagraph"
	"latticecore/pkg/filterapi"
)

// Argument keys of WriteRawBinary.
const (
	KeyArrayPath   = "array_path"
	KeyDestination = "destination"
	KeyOutputFile  = "output_file"
	KeyArtifactKey = "artifact_key"
	KeyByteOrder   = "byte_order"
	KeyOverwrite   = "overwrite"
)

// Destination choices.
const (
	DestinationFile = iota
	DestinationArtifact
)

var writeRawBinaryID = uuid.MustParse("e2a7c4d9-1b6f-4e38-9d05-7f3a1c8b6e01")

var byteOrders = []binary.ByteOrder{binary.LittleEndian, binary.BigEndian}

// WriteRawBinary writes the elements of one array, without header or
// padding, in the selected byte order. Failing to write is reported as a
// warning; the pipeline continues.
type WriteRawBinary struct {
	Artifacts artifact.Store
}

// Metadata identifies the filter.
func (WriteRawBinary) Metadata() filterapi.Metadata {
	return filterapi.Metadata{
		Name:      "write_raw_binary",
		HumanName: "Write Raw Binary",
		UUID:      writeRawBinaryID,
		Version:   "1",
		Tags:      []string{"io", "output", "export"},
	}
}

// Parameters declares the arguments.
func (WriteRawBinary) Parameters() filterapi.Parameters {
	var p filterapi.Parameters
	p.Add(filterapi.Parameter{Key: KeyArrayPath, Name: "Array to Export", Type: filterapi.TypeDataPath, Required: true}).
		Add(filterapi.Parameter{Key: KeyDestination, Name: "Destination", Type: filterapi.TypeChoice, Choices: []string{"file", "artifact"}, Default: DestinationFile}).
		Add(filterapi.Parameter{Key: KeyOutputFile, Name: "Output File", Type: filterapi.TypeString, Required: true}).
		Add(filterapi.Parameter{Key: KeyArtifactKey, Name: "Artifact Key", Type: filterapi.TypeString, Required: true}).
		Add(filterapi.Parameter{Key: KeyByteOrder, Name: "Byte Order", Type: filterapi.TypeChoice, Choices: []string{"little", "big"}, Default: 0}).
		Add(filterapi.Parameter{Key: KeyOverwrite, Name: "Overwrite Artifact", Type: filterapi.TypeBool, Default: true})
	p.Link(KeyDestination, DestinationFile, KeyOutputFile)
	p.Link(KeyDestination, DestinationArtifact, KeyArtifactKey)
	p.Link(KeyDestination, DestinationArtifact, KeyOverwrite)
	return p
}

// Preflight checks the array exists and reports the output size.
func (f WriteRawBinary) Preflight(_ context.Context, view datagraph.View, args *filterapi.Arguments, _ filterapi.MessageHandler) filterapi.PreflightResult {
	path, err := filterapi.Value[datagraph.Path](args, KeyArrayPath)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	arr, err := filterapi.Require[*datagraph.DataArray](view, path)
	if err != nil {
		return filterapi.PreflightError(err)
	}
	dest, _ := args.Choice(KeyDestination)
	var res filterapi.Result
	switch dest {
	case DestinationFile:
		file, _ := args.Text(KeyOutputFile)
		if file == "" {
			res.Errorf(filterapi.CodeInvalidArgument, "parameter %s: must not be empty", KeyOutputFile)
			break
		}
		if info, err := os.Stat(filepath.Dir(file)); err != nil || !info.IsDir() {
			res.Warnf(filterapi.CodeIO, "output directory %s does not exist", filepath.Dir(file))
		}
	case DestinationArtifact:
		if f.Artifacts == nil {
			res.Errorf(filterapi.CodeUnsupported, "no artifact store configured")
		}
		if key, _ := args.Text(KeyArtifactKey); key == "" {
			res.Errorf(filterapi.CodeInvalidArgument, "parameter %s: must not be empty", KeyArtifactKey)
		}
	}
	size := uint64(arr.Store().Len()) * uint64(arr.DataType().Size())
	return filterapi.PreflightResult{
		Result: res,
		Values: []filterapi.PreflightValue{{Name: "Output Size", Value: humanize.Bytes(size)}},
	}
}

// Execute writes the array. Write failures become warnings.
func (f WriteRawBinary) Execute(ctx context.Context, g *datagraph.Graph, args *filterapi.Arguments, messages filterapi.MessageHandler) filterapi.Result {
	path, _ := filterapi.Value[datagraph.Path](args, KeyArrayPath)
	arr, err := filterapi.Require[*datagraph.DataArray](g, path)
	if err != nil {
		return filterapi.ErrorResult(err)
	}
	if ctx.Err() != nil {
		return filterapi.Result{}
	}
	orderIdx, _ := args.Choice(KeyByteOrder)
	order := byteOrders[orderIdx]
	dest, _ := args.Choice(KeyDestination)

	var res filterapi.Result
	var target string
	switch dest {
	case DestinationArtifact:
		key, _ := args.Text(KeyArtifactKey)
		overwrite, _ := args.Bool(KeyOverwrite)
		target = "artifact " + key
		if _, err := container.ExportRawArtifact(ctx, f.Artifacts, key, arr, order, overwrite); err != nil {
			res.Warnf(filterapi.CodeIO, "write %s to %s: %v", path, target, err)
			return res
		}
	default:
		file, _ := args.Text(KeyOutputFile)
		target = file
		if err := container.ExportRawFile(file, arr, order); err != nil {
			res.Warnf(filterapi.CodeIO, "write %s to %s: %v", path, target, err)
			return res
		}
	}
	messages.Infof("wrote %s (%s) to %s", path, humanize.Bytes(uint64(arr.Store().Len())*uint64(arr.DataType().Size())), target)
	return res
}
