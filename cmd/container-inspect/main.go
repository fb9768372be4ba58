// Command container-inspect prints the object tree of a saved container and
// optionally exports one array as raw binary.
//
//	container-inspect -key runs/42/output.lattice
//	container-inspect -file scan.lattice -export "Image/Cell Data/Phases" -out phases.raw -order big
//	container-inspect -filters
//
// Artifact keys are resolved against the store LATTICE_ARTIFACT_* selects.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"

	"latticecore/internal/artifact"
	"latticecore/internal/container"
	"latticecore/internal/core"
	"latticecore/pkg/datagraph"
	"latticecore/plugins/meshops"
	"latticecore/plugins/rawexport"
	"latticecore/plugins/structural"
)

var (
	exitFunc  = os.Exit
	openStore = core.OpenArtifactStore
)

func main() {
	exitFunc(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	key     string
	file    string
	lazy    bool
	export  string
	out     string
	order   string
	filters bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("container-inspect", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.key, "key", "", "artifact key of the container")
	fs.StringVar(&o.file, "file", "", "read the container from a local file instead of the artifact store")
	fs.BoolVar(&o.lazy, "lazy", false, "defer chunk decoding until arrays are read")
	fs.StringVar(&o.export, "export", "", "slash separated path of an array to export")
	fs.StringVar(&o.out, "out", "", "raw output file for -export")
	fs.StringVar(&o.order, "order", "little", "byte order for -export: little|big")
	fs.BoolVar(&o.filters, "filters", false, "list the bundled filters and exit")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.filters {
		return o, nil
	}
	if (o.key == "") == (o.file == "") {
		return o, errors.New("exactly one of -key or -file is required")
	}
	if o.export != "" && o.out == "" {
		return o, errors.New("-export requires -out")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(stderr, "container-inspect:", err)
		return 2
	}
	cfg, err := core.LoadConfig()
	if err != nil {
		fmt.Fprintln(stderr, "container-inspect:", err)
		return 1
	}
	logger, err := core.NewLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(stderr, "container-inspect:", err)
		return 1
	}

	if o.filters {
		if err := listFilters(stdout); err != nil {
			fmt.Fprintln(stderr, "container-inspect:", err)
			return 1
		}
		return 0
	}

	g, err := load(ctx, cfg, o)
	if err != nil {
		logger.Error("load container", "error", err)
		fmt.Fprintln(stderr, "container-inspect:", err)
		return 1
	}
	logger.Debug("container loaded", "objects", g.Len(), "lazy", o.lazy)

	if err := printTree(stdout, g); err != nil {
		fmt.Fprintln(stderr, "container-inspect:", err)
		return 1
	}
	if o.export != "" {
		if err := exportArray(g, o); err != nil {
			fmt.Fprintln(stderr, "container-inspect:", err)
			return 1
		}
		fmt.Fprintf(stdout, "exported %s to %s\n", o.export, o.out)
	}
	return 0
}

func load(ctx context.Context, cfg core.Config, o options) (*datagraph.Graph, error) {
	opts := container.ReadOptions{Lazy: o.lazy}
	if o.file != "" {
		f, err := os.Open(filepath.Clean(o.file))
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		return container.Read(f, opts)
	}
	st, err := openStore(ctx, cfg.Artifact)
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}
	return container.Load(ctx, st, o.key, opts)
}

func printTree(w io.Writer, g *datagraph.Graph) error {
	var arrays int
	var total uint64
	err := g.Walk(func(p datagraph.Path, obj datagraph.Object) error {
		indent := strings.Repeat("  ", len(p)-1)
		line := fmt.Sprintf("%s%s [%s]", indent, obj.Name(), obj.Kind())
		switch o := obj.(type) {
		case *datagraph.DataArray:
			size := uint64(o.Store().Len()) * uint64(o.DataType().Size())
			arrays++
			total += size
			line += fmt.Sprintf(" %s tuples=%s comps=%s %s", o.DataType(), o.TupleShape(), o.ComponentShape(), humanize.IBytes(size))
		case *datagraph.AttributeMatrix:
			line += fmt.Sprintf(" shape=%s", o.Shape())
		case *datagraph.ImageGeometry:
			d := o.Dimensions()
			line += fmt.Sprintf(" %s %dx%dx%d %s", o.Type(), d[0], d[1], d[2], o.Units())
		case *datagraph.NodeGeometry:
			line += fmt.Sprintf(" %s vertices=%s elements=%s %s", o.Type(),
				humanize.Comma(int64(o.NumVertices())), humanize.Comma(int64(o.NumElements())), o.Units())
		}
		_, err := fmt.Fprintln(w, line)
		return err
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%d objects, %d arrays, %s\n", g.Len(), arrays, humanize.IBytes(total))
	return err
}

func exportArray(g *datagraph.Graph, o options) error {
	order, err := container.ParseByteOrder(o.order)
	if err != nil {
		return err
	}
	path, err := datagraph.ParsePath(o.export)
	if err != nil {
		return err
	}
	arr, ok := datagraph.ResolveAs[*datagraph.DataArray](g, path)
	if !ok {
		return fmt.Errorf("%w: no data array at %s", datagraph.ErrNotFound, path)
	}
	return container.ExportRawFile(o.out, arr, order)
}

func listFilters(w io.Writer) error {
	reg := core.NewRegistry()
	for _, p := range []core.Plugin{structural.New(), meshops.New(), rawexport.New(artifact.NewMemory())} {
		if _, err := reg.Install(p); err != nil {
			return err
		}
	}
	for _, m := range reg.Filters() {
		if _, err := fmt.Fprintf(w, "%-28s %s  %s\n", m.Name, m.UUID, m.HumanName); err != nil {
			return err
		}
	}
	return nil
}
