package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"latticecore/internal/artifact"
	"latticecore/internal/container"
	"latticecore/pkg/datagraph"
	"latticecore/pkg/datastore"
)

func sampleGraph(t *testing.T) *datagraph.Graph {
	t.Helper()
	g := datagraph.New()
	img, err := datagraph.CreateImageGeometry(g, "Image", datagraph.NoID, datagraph.ImageSpec{
		Dimensions:   [3]int{2, 2, 1},
		Spacing:      [3]float32{1, 1, 1},
		CellDataName: "Cell Data",
	})
	if err != nil {
		t.Fatalf("image: %v", err)
	}
	cells, ok := img.CellData()
	if !ok {
		t.Fatalf("no cell data")
	}
	_, store, err := datagraph.CreateTypedArray[uint16](g, "Phases", cells.ID(), cells.Shape(), datastore.Shape{1})
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	store.SetValues([]uint16{1, 2, 3, 4})
	return g
}

func withStore(t *testing.T, st artifact.Store) {
	t.Helper()
	orig := openStore
	openStore = func(context.Context, artifact.Config) (artifact.Store, error) { return st, nil }
	t.Cleanup(func() { openStore = orig })
	t.Setenv("LATTICE_LOG_LEVEL", "error")
}

func TestInspectArtifact(t *testing.T) {
	st := artifact.NewMemory()
	if _, err := container.Save(context.Background(), st, "runs/1.lattice", sampleGraph(t), container.SaveOptions{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	withStore(t, st)

	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-key", "runs/1.lattice"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	out := stdout.String()
	for _, want := range []string{"Image [geometry] image 2x2x1", "  Cell Data [attribute_matrix]", "    Phases [data_array] uint16", "8 B", "1 arrays"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestInspectFileAndExport(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.lattice")
	f, err := os.Create(src)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := container.Write(f, sampleGraph(t), container.WriteOptions{}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	withStore(t, artifact.NewMemory())

	out := filepath.Join(dir, "phases.raw")
	var stdout, stderr bytes.Buffer
	args := []string{"-file", src, "-lazy", "-export", "Image/Cell Data/Phases", "-out", out, "-order", "big"}
	if code := run(context.Background(), args, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(data, []byte{0, 1, 0, 2, 0, 3, 0, 4}) {
		t.Fatalf("unexpected bytes % x", data)
	}
}

func TestInspectErrors(t *testing.T) {
	withStore(t, artifact.NewMemory())
	cases := []struct {
		name string
		args []string
		code int
	}{
		{"no source", nil, 2},
		{"both sources", []string{"-key", "a", "-file", "b"}, 2},
		{"export without out", []string{"-key", "a", "-export", "X"}, 2},
		{"missing key", []string{"-key", "absent"}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(context.Background(), c.args, &stdout, &stderr); code != c.code {
				t.Fatalf("exit %d want %d: %s", code, c.code, stderr.String())
			}
		})
	}
}

func TestListFilters(t *testing.T) {
	withStore(t, artifact.NewMemory())
	var stdout, stderr bytes.Buffer
	if code := run(context.Background(), []string{"-filters"}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit %d: %s", code, stderr.String())
	}
	for _, want := range []string{"create_data_array", "compute_triangle_areas", "write_raw_binary"} {
		if !strings.Contains(stdout.String(), want) {
			t.Fatalf("missing %s in:\n%s", want, stdout.String())
		}
	}
}
