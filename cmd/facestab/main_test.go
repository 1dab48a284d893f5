package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Facestab/internal/calc/facestab"
)

// execute runs the root command with fresh flag state and captures stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	cfgPath := filepath.Join(t.TempDir(), "missing.yaml")
	rootCmd.SetArgs(append([]string{"--config", cfgPath, "--no-color"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeRequest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "request.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

const sandRequest = `title: Portal A
tunnel:
  height_m: 5
  depth_m: 10
ground:
  gamma_kn_m3: 18
  cohesion_kpa: 10
  phi_deg: 30
search:
  x_min_m: 0.5
  x_max_m: 4
  samples: 8
`

func TestRunFromFile(t *testing.T) {
	out, err := execute(t, "run", writeRequest(t, sandRequest))
	require.NoError(t, err)

	var res facestab.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, facestab.StatusComplete, res.Status)
	assert.Len(t, res.Points, 8)
	require.NotNil(t, res.Governing)
	assert.Greater(t, res.Governing.Pressure, 0.0)
	assert.Equal(t, "simple", res.Overburden)
}

func TestRunFlagsOverrideFile(t *testing.T) {
	out, err := execute(t, "run", writeRequest(t, sandRequest), "--samples", "4", "--cohesion", "200", "--applied", "50")
	require.NoError(t, err)

	var res facestab.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Len(t, res.Points, 4)
	assert.Equal(t, 200.0, res.Params.Ground.CohesionKPa)
	assert.Equal(t, facestab.RatingStable, res.Rating)
}

func TestRunWritesReports(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "face.pdf")
	md := filepath.Join(dir, "face.md")
	xlsx := filepath.Join(dir, "face.xlsx")

	_, err := execute(t, "run", writeRequest(t, sandRequest), "--pdf", pdf, "--md", md, "--xlsx", xlsx)
	require.NoError(t, err)

	data, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))

	data, err = os.ReadFile(md)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Portal A")

	info, err := os.Stat(xlsx)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestRunWithPresetOnly(t *testing.T) {
	out, err := execute(t, "run", "--preset", "stiff_clay", "--height", "5", "--depth", "10", "--samples", "5")
	require.NoError(t, err)

	var res facestab.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 50.0, res.Params.Ground.CohesionKPa)
	assert.Len(t, res.Points, 5)
}

func TestRunRejectsInvalidInput(t *testing.T) {
	_, err := execute(t, "run", "--height", "-1", "--depth", "10", "--gamma", "18", "--phi", "30")
	require.Error(t, err)
	assert.ErrorIs(t, err, facestab.ErrValidation)
}

func TestRunSaveNeedsStore(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "")
	_, err := execute(t, "run", writeRequest(t, sandRequest), "--save")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a store")
}

func TestRunSaveToSQLite(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "")
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "facestab.yaml")
	cfgBody := "store:\n  driver: sqlite\n  dsn: " + filepath.Join(dir, "facestab.db") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgBody), 0644))

	_, err := execute(t, "--config", cfgPath, "run", writeRequest(t, sandRequest), "--save")
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(dir, "facestab.db"))
	assert.NoError(t, err)
}

func TestPresets(t *testing.T) {
	out, err := execute(t, "presets")
	require.NoError(t, err)
	for _, p := range facestab.Presets() {
		assert.Contains(t, out, p.Name)
	}
}

func TestTokenNeedsKey(t *testing.T) {
	t.Setenv("TOKEN_KEY", "")
	_, err := execute(t, "token")
	require.Error(t, err)

	t.Setenv("TOKEN_KEY", "test-secret")
	out, err := execute(t, "token", "--subject", "ci")
	require.NoError(t, err)
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n$`, out)
}
