package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/lczero/broadcast-analyzer/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
db_url: "postgres://localhost/broadcast"
assets_dir: "./static"
analyzers:
  - command: ["lc0", "--backend=cuda"]
    max_multipv: 8
    show_pv: 3
    ssh:
      host: "gpu1:22"
      username: "lc0"
    uci_options:
      Threads: "4"
    dynamic_options: "movetime_elo"
  - command: ["lc0"]
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	return path
}

func TestLoad_ParsesAnalyzers(t *testing.T) {
	cfg, err := config.Load(writeSample(t))
	require.NoError(t, err)

	require.Len(t, cfg.Analyzers, 2)
	assert.Equal(t, []string{"lc0", "--backend=cuda"}, cfg.Analyzers[0].Command)
	assert.Equal(t, 8, cfg.Analyzers[0].MaxMultiPV)
	assert.Equal(t, 3, cfg.Analyzers[0].ShowPV)
	require.NotNil(t, cfg.Analyzers[0].SSH)
	assert.Equal(t, "gpu1:22", cfg.Analyzers[0].SSH.Host)
	assert.Equal(t, "movetime_elo", cfg.Analyzers[0].DynamicOptions)
}

func TestLoad_AppliesShowPVDefault(t *testing.T) {
	cfg, err := config.Load(writeSample(t))
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Analyzers[1].ShowPV)
	assert.Nil(t, cfg.Analyzers[1].SSH)
}

func TestLoad_RejectsMissingAnalyzers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("db_url: x\n"), 0o644))
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoad_RejectsMissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}
