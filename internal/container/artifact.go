package container

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"latticecore/internal/artifact"
	"latticecore/pkg/datagraph"
)

// SaveOptions configures Save.
type SaveOptions struct {
	WriteOptions
	// Overwrite replaces an existing artifact instead of failing with
	// artifact.ErrExists.
	Overwrite bool
}

// Save writes g as a container artifact under key.
func Save(ctx context.Context, st artifact.Store, key string, g *datagraph.Graph, opts SaveOptions) (artifact.Info, error) {
	var buf bytes.Buffer
	if err := Write(&buf, g, opts.WriteOptions); err != nil {
		return artifact.Info{}, err
	}
	compression := compressionSnappy
	if opts.DisableCompression {
		compression = compressionNone
	}
	info, err := st.Put(ctx, key, bytes.NewReader(buf.Bytes()), artifact.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			"format_version": strconv.Itoa(int(FormatVersion)),
			"objects":        strconv.Itoa(g.Len()),
			"compression":    compression,
		},
		Overwrite: opts.Overwrite,
	})
	if err != nil {
		return artifact.Info{}, fmt.Errorf("container: store %q: %w", key, err)
	}
	return info, nil
}

// Load reads the container artifact stored under key. With opts.Lazy the
// whole artifact is still fetched; only chunk decoding is deferred.
func Load(ctx context.Context, st artifact.Store, key string, opts ReadOptions) (*datagraph.Graph, error) {
	_, rc, err := st.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("container: load %q: %w", key, err)
	}
	defer rc.Close()
	return Read(rc, opts)
}
