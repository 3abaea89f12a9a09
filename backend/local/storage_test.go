package local

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBackend(t *testing.T) (*LocalBackend, string) {
	t.Helper()

	root := t.TempDir()
	lb := NewLocalBackend(root, "pool")
	require.NoError(t, lb.Open(t.Context()))

	return lb, root
}

func TestLocalBackend_FlushSyncsWrittenObjects(t *testing.T) {
	ctx := t.Context()
	lb, _ := newTestBackend(t)

	for _, key := range []string{"f0", "f4096", "f8192"} {
		_, err := lb.WriteObject(ctx, key, 0, []byte("block"))
		require.NoError(t, err)
	}
	_, err := lb.WriteObject(ctx, "f0", 5, []byte("more"))
	require.NoError(t, err)
	assert.Equal(t, 3, lb.Dirty())

	// Removed objects are dropped from the pending set
	require.NoError(t, lb.RemoveObject(ctx, "f8192"))
	assert.Equal(t, 2, lb.Dirty())

	require.NoError(t, lb.Flush(ctx))
	assert.Zero(t, lb.Dirty())

	buf := make([]byte, 16)
	n, err := lb.ReadObject(ctx, "f0", 0, buf)
	require.NoError(t, err)
	assert.Equal(t, "blockmore", string(buf[:n]))

	// Flushing with nothing pending only syncs the directory
	require.NoError(t, lb.Flush(ctx))
}

func TestLocalBackend_WriteFullObjectReplaces(t *testing.T) {
	ctx := t.Context()
	lb, root := newTestBackend(t)

	_, err := lb.WriteObject(ctx, "metadata", 0, []byte("partial"))
	require.NoError(t, err)
	require.NoError(t, lb.WriteFullObject(ctx, "metadata", []byte("[]")))
	assert.Zero(t, lb.Dirty())

	content, err := os.ReadFile(filepath.Join(root, "pool", "metadata"))
	require.NoError(t, err)
	assert.Equal(t, "[]", string(content))

	// No temporary file is left behind
	entries, err := os.ReadDir(filepath.Join(root, "pool"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestLocalBackend_DotKeysStayInNamespace(t *testing.T) {
	ctx := t.Context()
	lb, root := newTestBackend(t)

	for _, key := range []string{".", "..", ".tmp-1"} {
		require.NoError(t, lb.WriteFullObject(ctx, key, []byte(key)))

		buf := make([]byte, 8)
		n, err := lb.ReadObject(ctx, key, 0, buf)
		require.NoError(t, err)
		assert.Equal(t, key, string(buf[:n]))
	}

	entries, err := os.ReadDir(filepath.Join(root, "pool"))
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name())
	}
	assert.ElementsMatch(t, []string{"%2E", "%2E.", "%2Etmp-1"}, names)

	// Nothing was written next to the namespace directory
	entries, err = os.ReadDir(root)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "pool", entries[0].Name())
}

func TestEscapeName(t *testing.T) {
	assert.Equal(t, "sbtest%2Fsbtest1.ibd_16", escapeName("sbtest/sbtest1.ibd_16"))
	assert.Equal(t, "%2E.%2Fetc", escapeName("../etc"))
	assert.Equal(t, "metadata", escapeName("metadata"))
}
