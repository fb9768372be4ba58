package fs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"latticecore/internal/artifact/core"
)

func TestSanitizeKey(t *testing.T) {
	cases := map[string]bool{
		"a/b.raw":   true,
		"./a/b":     true,
		"":          false,
		"  ":        false,
		"/abs":      false,
		"../up":     false,
		"a/../../b": false,
		"x.meta":    false,
	}
	for key, ok := range cases {
		_, err := sanitizeKey(key)
		if (err == nil) != ok {
			t.Fatalf("sanitizeKey(%q) = %v, want ok=%v", key, err, ok)
		}
		if err != nil && !errors.Is(err, core.ErrInvalidKey) {
			t.Fatalf("expected ErrInvalidKey for %q, got %v", key, err)
		}
	}
}

func TestPutWritesSidecarAndChecksum(t *testing.T) {
	root := t.TempDir()
	st, err := New(root)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	info, err := st.Put(context.Background(), "exports/a.raw", strings.NewReader("abc"), core.PutOptions{ContentType: "application/octet-stream"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if info.ETag != "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad" {
		t.Fatalf("unexpected etag %s", info.ETag)
	}
	if _, err := os.Stat(filepath.Join(root, "exports", "a.raw.meta")); err != nil {
		t.Fatalf("sidecar missing: %v", err)
	}
	head, err := st.Head(context.Background(), "exports/a.raw")
	if err != nil || head.ContentType != "application/octet-stream" || head.Size != 3 {
		t.Fatalf("unexpected head %+v (%v)", head, err)
	}
	entries, _ := os.ReadDir(filepath.Join(root, "exports"))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestCanceledPut(t *testing.T) {
	st, _ := New(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := st.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}
}
