package blockfile_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mwantia/blockfile"
	"github.com/mwantia/blockfile/data"
	"github.com/mwantia/blockfile/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "blockfile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestInit_LocalCluster(t *testing.T) {
	ctx := t.Context()
	root := t.TempDir()

	configPath := writeConfig(t, `
logging:
  level: debug
catalog:
  block_separator: "_"
clusters:
  - name: ceph
    backend: local
    options:
      path: `+root+`
    users:
      - name: client.mysql
`)

	s, err := blockfile.Init(ctx, "ceph", "client.mysql", "mysql_data", configPath, blockfile.WithLogger(log.NewDiscard()))
	require.NoError(t, err)

	f, err := s.OpenCreate(ctx, "sbtest/sbtest1.ibd", data.FileTypeFile, 16)
	require.NoError(t, err)
	_, err = f.WriteAt(ctx, []byte("persisted across sessions"), 0)
	require.NoError(t, err)
	require.NoError(t, s.Destroy(ctx))

	// Blocks are named with the configured separator
	_, err = os.Stat(filepath.Join(root, "mysql_data", "sbtest%2Fsbtest1.ibd_16"))
	require.NoError(t, err)

	s, err = blockfile.Init(ctx, "ceph", "client.mysql", "mysql_data", configPath, blockfile.WithLogger(log.NewDiscard()))
	require.NoError(t, err)
	defer s.Destroy(ctx)

	f, err = s.Open(ctx, "sbtest/sbtest1.ibd", data.FileTypeFile)
	require.NoError(t, err)
	assert.EqualValues(t, 25, f.Size())

	buf := make([]byte, 64)
	n, err := f.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "persisted across sessions", string(buf[:n]))
}

func TestInit_Errors(t *testing.T) {
	ctx := t.Context()

	valid := writeConfig(t, `
clusters:
  - name: ceph
    backend: memory
    users:
      - name: client.mysql
`)
	unknownOption := writeConfig(t, `
clusters:
  - name: ceph
    backend: sqlite
    options:
      path: ":memory:"
      bogus: true
`)
	missingPath := writeConfig(t, `
clusters:
  - name: ceph
    backend: local
`)
	invalidBackend := writeConfig(t, `
clusters:
  - name: ceph
    backend: floppy
`)

	tests := []struct {
		name    string
		cluster string
		user    string
		pool    string
		config  string
	}{
		{"no config file", "ceph", "client.mysql", "pool", ""},
		{"missing config file", "ceph", "client.mysql", "pool", filepath.Join(t.TempDir(), "missing.yaml")},
		{"unknown cluster", "rados", "client.mysql", "pool", valid},
		{"unknown user", "ceph", "client.admin", "pool", valid},
		{"empty pool", "ceph", "client.mysql", "", valid},
		{"unknown option", "ceph", "any", "pool", unknownOption},
		{"missing path", "ceph", "any", "pool", missingPath},
		{"invalid backend", "ceph", "any", "pool", invalidBackend},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(tst *testing.T) {
			_, err := blockfile.Init(ctx, tc.cluster, tc.user, tc.pool, tc.config, blockfile.WithLogger(log.NewDiscard()))
			assert.ErrorIs(tst, err, data.ErrConfig)
		})
	}

	s, err := blockfile.Init(ctx, "ceph", "client.mysql", "pool", valid, blockfile.WithLogger(log.NewDiscard()))
	require.NoError(t, err)
	require.NoError(t, s.Destroy(ctx))
}
