package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "simple", cfg.Solver.Method)
	assert.Equal(t, 50, cfg.Solver.Search.Samples)
	assert.Equal(t, 5*time.Second, cfg.GetShutdownTimeout())
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "facestab.yaml")
	yml := `
server:
  addr: ":9000"
  shutdown_timeout: 2s
solver:
  method: terzaghi
  arching_k: 0.8
  search:
    x_min_m: 0.5
    x_max_m: 4
    samples: 20
    tolerance: 1.0e-7
    max_iterations: 40
    damping: 0.8
    max_retries: 2
    divisions: 60
store:
  driver: sqlite
  dsn: facestab.db
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0644))
	t.Setenv("FACESTAB_ADDR", ":9100")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 2*time.Second, cfg.GetShutdownTimeout())
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 60, cfg.Solver.Search.Divisions)

	rn := cfg.Runner(nil)
	assert.Equal(t, "terzaghi", rn.Method)
	assert.Equal(t, 0.8, rn.ArchingK)
	assert.Equal(t, 4.0, rn.Defaults.XMaxM)
	require.NotNil(t, rn.Defaults.MaxRetries)
	assert.Equal(t, 2, *rn.Defaults.MaxRetries)
	assert.Equal(t, 1.0e-7, rn.Defaults.Tolerance)
}

func TestLoadRejectsBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: mysql\n  dsn: x\n"), 0644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("solver: [1, 2"), 0644))
	_, err = Load(path)
	assert.Error(t, err)

	t.Setenv("DATABASE_URL", "")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  driver: postgres\n"), 0644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cfg.yaml")
	cfg := DefaultConfig()
	cfg.Server.Addr = ":7000"
	require.NoError(t, cfg.Save(path))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", got.Server.Addr)
}
