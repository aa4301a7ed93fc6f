package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/jaredmtdev/shardfeed/internal/config"
	"github.com/jaredmtdev/shardfeed/pkg/topology"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSchemaYAML = `
columns:
  - {name: label, kind: var_len, dtype: int64}
  - {name: item.cate_ids, kind: var_len, dtype: int64}
  - {name: user.age, kind: fixed, dtype: float32, shape: [1], default: [0]}
`

// setup - resets the globals the commands read and writes a schema file.
func setup(t *testing.T) {
	t.Helper()
	t.Setenv(topology.EnvVar, "")
	logger = zap.NewNop()
	cfg = config.Default()
	cfg.BatchSize = 16
	cfg.Loader.ReadBufferMiB = 1
	cfg.Schema = filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(cfg.Schema, []byte(testSchemaYAML), 0o600))

	genFiles, genRecords, genSeed = 3, 40, 7
	t.Cleanup(func() { cfg = nil })
}

func command(t *testing.T) (*cobra.Command, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	return cmd, &out
}

func TestGenThenCount(t *testing.T) {
	setup(t)
	dir := t.TempDir()

	cmd, out := command(t)
	require.NoError(t, runGen(cmd, []string{dir}))
	assert.Contains(t, out.String(), "wrote 3 files of 40 records")

	cmd, out = command(t)
	require.NoError(t, runCount(cmd, []string{dir}))
	assert.Equal(t, "files=3 batches=9 records=120\n", out.String())
}

func TestCountUsesConfigDir(t *testing.T) {
	setup(t)
	cfg.Dir = t.TempDir()
	cmd, _ := command(t)
	require.NoError(t, runGen(cmd, []string{cfg.Dir}))

	cmd, out := command(t)
	require.NoError(t, runCount(cmd, nil))
	assert.Contains(t, out.String(), "records=120")
}

func TestCountWithoutDir(t *testing.T) {
	setup(t)
	cmd, _ := command(t)
	assert.Error(t, runCount(cmd, nil))
}

func TestExport(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	cmd, _ := command(t)
	require.NoError(t, runGen(cmd, []string{dir}))

	exportOut = filepath.Join(t.TempDir(), "epoch.arrow")
	cmd, out := command(t)
	require.NoError(t, runExport(cmd, []string{dir}))
	assert.Contains(t, out.String(), "wrote 120 rows")

	f, err := os.Open(exportOut)
	require.NoError(t, err)
	defer f.Close()
	r, err := ipc.NewReader(f)
	require.NoError(t, err)
	defer r.Release()
	var rows int64
	for r.Next() {
		rows += r.Record().NumRows()
	}
	require.NoError(t, r.Err())
	assert.Equal(t, int64(120), rows)
}

func TestShard(t *testing.T) {
	setup(t)
	dir := t.TempDir()
	cmd, _ := command(t)
	require.NoError(t, runGen(cmd, []string{dir}))

	t.Setenv(topology.EnvVar, `{"cluster": {"chief": ["c"], "worker": ["w0", "w1"]}, "task": {"type": "worker", "index": 1}}`)
	cmd, out := command(t)
	require.NoError(t, runShard(cmd, []string{dir}))
	assert.Equal(t, "shard 2 of 3\n"+filepath.Join(dir, "part-00002")+"\n", out.String())
}

func TestShardInvalidRole(t *testing.T) {
	setup(t)
	t.Setenv(topology.EnvVar, `{"cluster": {}, "task": {"type": "ps", "index": 0}}`)
	cmd, _ := command(t)
	assert.ErrorIs(t, runShard(cmd, nil), topology.ErrInvalidTopologyRole)
}
