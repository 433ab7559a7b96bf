package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Len(t, cfg.Training.Grid.Combinations(), 72)
	assert.Equal(t, 0.3, cfg.Training.TestRatio)
	assert.Equal(t, "anime", cfg.Image.StylePreset)
}

func TestShippedConfigLoads(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	t.Setenv("STABILITY_API_KEY", "")
	cfg, err := LoadFromFile(filepath.Join(filepath.Dir(file), "..", "..", "configs", "mochi.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4, cfg.Generator.Workers)
	assert.True(t, cfg.Training.Search)
	assert.Equal(t, []int{5, 8, 10, 0}, cfg.Training.Grid.MaxDepth)
	assert.Equal(t, 90*time.Second, cfg.Server.WriteTimeout)
}

func TestLoadFromFileYAMLAndJSON(t *testing.T) {
	dir := t.TempDir()
	yml := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(yml, []byte("generator:\n  rows: 42\nserver:\n  read_timeout: 2s\n"), 0o644))
	cfg, err := LoadFromFile(yml)
	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Generator.Rows)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
	// untouched keys keep defaults
	assert.Equal(t, "mochi.db", cfg.Store.Path)

	js := filepath.Join(dir, "c.json")
	require.NoError(t, os.WriteFile(js, []byte(`{"training": {"folds": 3}}`), 0o644))
	cfg, err = LoadFromFile(js)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Training.Folds)

	other := filepath.Join(dir, "c.conf")
	require.NoError(t, os.WriteFile(other, []byte(`{"store": {"path": "x.db"}}`), 0o644))
	cfg, err = LoadFromFile(other)
	require.NoError(t, err)
	assert.Equal(t, "x.db", cfg.Store.Path)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("generator: [unclosed"), 0o644))
	_, err = LoadFromFile(bad)
	require.Error(t, err)

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}

func TestAPIKeyExpansionAndRedaction(t *testing.T) {
	t.Setenv("MOCHI_TEST_KEY", "sk-abcdefghijklmnop")
	path := filepath.Join(t.TempDir(), "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("image:\n  api_key: ${MOCHI_TEST_KEY}\n"), 0o644))
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdefghijklmnop", cfg.Image.APIKey)
	assert.Equal(t, "sk-a...mnop", cfg.Image.RedactedAPIKey())
	assert.NotContains(t, cfg.Image.String(), "abcdefgh")

	assert.Equal(t, "(set)", ImageConfig{APIKey: "short"}.RedactedAPIKey())
	assert.Equal(t, "", ImageConfig{}.RedactedAPIKey())
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("MOCHI_LOG_LEVEL", "debug")
	t.Setenv("MOCHI_ROWS", "77")
	t.Setenv("MOCHI_SEED", "9")
	t.Setenv("MOCHI_ADDR", ":8080")
	t.Setenv("MOCHI_IMAGE_ENABLED", "1")
	t.Setenv("STABILITY_API_KEY", "from-env-key-123")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 77, cfg.Generator.Rows)
	assert.Equal(t, int64(9), cfg.Generator.Seed)
	assert.Equal(t, int64(9), cfg.Training.Seed)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.True(t, cfg.Image.Enabled)
	assert.Equal(t, "from-env-key-123", cfg.Image.APIKey)
	require.NoError(t, cfg.Validate())
}

func TestDotEnvFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	// registered so the variable is restored after the test
	t.Setenv("MOCHI_DB", "")
	require.NoError(t, os.Unsetenv("MOCHI_DB"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("MOCHI_DB=runs.db\n"), 0o644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "runs.db", cfg.Store.Path)
}

func TestWorkDirResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "c.yaml")
	require.NoError(t, os.WriteFile(path, []byte("work_dir: "+dir+"\nstore:\n  path: /abs/x.db\n"), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "mochi_model.gob"), cfg.Training.ModelPath)
	assert.Equal(t, "/abs/x.db", cfg.Store.Path)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Training.TestRatio = 1
	cfg.Training.Folds = 1
	cfg.Training.ClassWeight = "inverse"
	cfg.Training.Forest.MaxFeatures = "half"
	cfg.Image.Width = 500
	cfg.Image.Enabled = true
	cfg.Image.APIKey = ""

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{"log level", "test_ratio", "folds", "class_weight", "max_features", "multiples of 64", "API key"} {
		assert.True(t, strings.Contains(msg, want), "missing %q in %s", want, msg)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"out.yaml", "out.json"} {
		cfg := Default()
		cfg.Generator.Rows = 123
		path := filepath.Join(dir, "nested", name)
		require.NoError(t, Save(cfg, path))
		back, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.Equal(t, cfg, back)
	}
}
