package container

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strings"

	"latticecore/internal/artifact"
	"latticecore/pkg/datagraph"
)

// ParseByteOrder accepts "little" and "big", case-insensitively. An empty
// string selects little-endian.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	}
	return nil, fmt.Errorf("container: unknown byte order %q", s)
}

func byteOrderName(order binary.ByteOrder) string {
	if order == binary.BigEndian {
		return "big"
	}
	return "little"
}

// ExportRaw writes the flat element buffer of arr in tuple-major order with
// no header.
func ExportRaw(w io.Writer, arr *datagraph.DataArray, order binary.ByteOrder) error {
	bw := bufio.NewWriter(w)
	if err := arr.Store().WriteBinary(bw, order); err != nil {
		return fmt.Errorf("container: export %q: %w", arr.Name(), err)
	}
	return bw.Flush()
}

// ExportRawFile creates or truncates path and writes arr into it.
func ExportRawFile(path string, arr *datagraph.DataArray, order binary.ByteOrder) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("container: export %q: %w", arr.Name(), err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return ExportRaw(f, arr, order)
}

// ExportRawArtifact stores the raw buffer of arr under key. The artifact
// metadata records the element type, shapes and byte order so that a reader
// can interpret the headerless payload.
func ExportRawArtifact(ctx context.Context, st artifact.Store, key string, arr *datagraph.DataArray, order binary.ByteOrder, overwrite bool) (artifact.Info, error) {
	var buf bytes.Buffer
	if err := ExportRaw(&buf, arr, order); err != nil {
		return artifact.Info{}, err
	}
	md := map[string]string{
		"dtype":           arr.DataType().String(),
		"tuple_shape":     arr.TupleShape().String(),
		"component_shape": arr.ComponentShape().String(),
		"byte_order":      byteOrderName(order),
	}
	info, err := st.Put(ctx, key, bytes.NewReader(buf.Bytes()), artifact.PutOptions{
		ContentType: "application/octet-stream",
		Metadata:    md,
		Overwrite:   overwrite,
	})
	if err != nil {
		return artifact.Info{}, fmt.Errorf("container: store %q: %w", key, err)
	}
	return info, nil
}
