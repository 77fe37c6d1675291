package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(p, []byte("port = \"9000\"\nmemory_policy = \"resident\"\npool_size = 4\n"), 0o644))

	c := Default()
	require.NoError(t, Load(&c, p))
	require.Equal(t, "9000", c.Port)
	require.Equal(t, "resident", c.MemoryPolicy)
	require.Equal(t, 4, c.PoolSize)
	require.Equal(t, "raw", c.Normalization)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte("normalization: unit\ncache_size: 0\n"), 0o644))

	c := Default()
	require.NoError(t, Load(&c, filepath.Join(dir, "missing.toml"), p))
	require.Equal(t, "unit", c.Normalization)
	require.Equal(t, 0, c.CacheSize)
}

func TestLoadNoFile(t *testing.T) {
	c := Default()
	require.NoError(t, Load(&c, filepath.Join(t.TempDir(), "nope.toml")))
	require.Equal(t, Default(), c)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("PORT", "7777")
	t.Setenv("MEMORY_POLICY", "resident")

	c := Default()
	ApplyEnv(&c)
	require.Equal(t, "7777", c.Port)
	require.Equal(t, "resident", c.MemoryPolicy)
	require.Equal(t, "0.0.0.0", c.Host)
}

func TestDefaultKeepsModelLoaded(t *testing.T) {
	require.Equal(t, "lazy", Default().MemoryPolicy)
}

func TestApplyEnvModelPath(t *testing.T) {
	t.Setenv("MODEL_PATH", filepath.Join("weights", "plant_disease.onnx"))

	c := Default()
	ApplyEnv(&c)
	require.Equal(t, "weights", c.ModelDir)
	require.Equal(t, "plant_disease.onnx", c.ModelFileName)

	t.Setenv("MODEL_FILE", "v2.onnx")
	c = Default()
	ApplyEnv(&c)
	require.Equal(t, "weights", c.ModelDir)
	require.Equal(t, "v2.onnx", c.ModelFileName)
}
