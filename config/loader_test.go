package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no user config dir, so
// discovered files on the host never leak in.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv(EnvConfigFile, "")
	t.Setenv(EnvDataDir, "")
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestLoader_Defaults(t *testing.T) {
	isolate(t)
	loader := NewLoader()
	cfg, err := loader.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultMemoryConfig(), cfg.Memory)
	assert.Equal(t, DefaultConfig().Storage, cfg.Storage)
	assert.Empty(t, loader.Path())
	assert.Equal(t, 1024, loader.GetInt("memory.vector.dimension"))
	assert.True(t, loader.GetBool("storage.badger.sync_writes"))
	assert.Nil(t, loader.Get("memory.importance.markers"))
	assert.NotEmpty(t, loader.Print())
}

func TestLoader_YAMLFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "memory.yaml")
	writeFile(t, path, `
memory:
  vector:
    dimension: 512
  conversation:
    half_life: 30m
  crystallization:
    threshold: 2.5
    compare: base
  importance:
    markers: [memory, consciousness]
storage:
  type: file
`)

	loader := NewLoader()
	cfg, err := loader.Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, loader.Path())
	assert.Equal(t, 512, cfg.Memory.Vector.Dimension)
	assert.Equal(t, 30*time.Minute, cfg.Memory.Conversation.HalfLife)
	assert.Equal(t, 2.5, cfg.Memory.Crystallization.Threshold)
	assert.Equal(t, "base", cfg.Memory.Crystallization.Compare)
	assert.Equal(t, []string{"memory", "consciousness"}, cfg.Memory.Importance.Markers)
	assert.Equal(t, "file", cfg.Storage.Type)

	def := DefaultConfig()
	assert.Equal(t, def.Memory.Vector.Seed, cfg.Memory.Vector.Seed)
	assert.Equal(t, def.Memory.Persistent.HalfLife, cfg.Memory.Persistent.HalfLife)
	assert.Equal(t, def.Memory.Tiering, cfg.Memory.Tiering)
}

func TestLoader_JSONFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "memory.json")
	writeFile(t, path, `{"memory": {"persistent": {"fast_mode": true, "working_set_size": 64}}}`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.True(t, cfg.Memory.Persistent.FastMode)
	assert.Equal(t, 64, cfg.Memory.Persistent.WorkingSetSize)
}

func TestLoader_FileErrors(t *testing.T) {
	dir := isolate(t)

	_, err := NewLoader().Load(filepath.Join(dir, "missing.yaml"), nil)
	assert.ErrorIs(t, err, os.ErrNotExist)

	toml := filepath.Join(dir, "memory.toml")
	writeFile(t, toml, "dimension = 512")
	_, err = NewLoader().Load(toml, nil)
	assert.ErrorContains(t, err, "unsupported format")

	invalid := filepath.Join(dir, "invalid.yaml")
	writeFile(t, invalid, "memory:\n  tiering:\n    hot: 0.9\n")
	_, err = NewLoader().Load(invalid, nil)
	var details ValidationErrors
	assert.ErrorAs(t, err, &details)

	assert.Panics(t, func() { LoadOrDie(filepath.Join(dir, "missing.yaml"), nil) })
}

func TestLoader_DiscoversFiles(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, "xdg", "holomem", "config.yaml"), "memory:\n  vector:\n    seed: 7\n")

	loader := NewLoader()
	cfg, err := loader.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), cfg.Memory.Vector.Seed)

	// A file in the working directory is preferred over the user config.
	writeFile(t, filepath.Join(dir, "holomem.yaml"), "memory:\n  vector:\n    seed: 9\n")
	cfg, err = loader.Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(9), cfg.Memory.Vector.Seed)
	assert.Equal(t, "holomem.yaml", loader.Path())
}

func TestLoader_ConfigFileFromEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "elsewhere.yaml")
	writeFile(t, path, "memory:\n  persistent:\n    relationship_fanout: 7\n")
	writeFile(t, filepath.Join(dir, "holomem.yaml"), "memory:\n  persistent:\n    relationship_fanout: 3\n")
	t.Setenv(EnvConfigFile, path)

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Memory.Persistent.RelationshipFanout)

	t.Setenv(EnvConfigFile, filepath.Join(dir, "gone.yaml"))
	_, err = Load("", nil)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_Environment(t *testing.T) {
	isolate(t)
	t.Setenv("HOLOMEM_MEMORY__CONVERSATION__HALF_LIFE", "5m")
	t.Setenv("HOLOMEM_MEMORY__IMPORTANCE__SCALE", "8")
	t.Setenv("HOLOMEM_THRESHOLD", "4.5")
	t.Setenv("HOLOMEM_DIMENSION", "256")
	t.Setenv("HOLOMEM_FAST_MODE", "true")
	t.Setenv("HOLOMEM_LOG_LEVEL", "error")
	t.Setenv(EnvDataDir, "/srv/holomem")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.Memory.Conversation.HalfLife)
	assert.Equal(t, 8.0, cfg.Memory.Importance.Scale)
	assert.Equal(t, 4.5, cfg.Memory.Crystallization.Threshold)
	assert.Equal(t, 256, cfg.Memory.Vector.Dimension)
	assert.True(t, cfg.Memory.Persistent.FastMode)
	assert.Equal(t, "error", cfg.Log.Level)
	assert.Equal(t, filepath.Join("/srv/holomem", "badger"), cfg.Storage.Badger.Path)
	assert.Equal(t, filepath.Join("/srv/holomem", "records"), cfg.Storage.File.Dir)
}

func TestLoader_OverridesWin(t *testing.T) {
	isolate(t)
	t.Setenv("HOLOMEM_THRESHOLD", "4.5")
	t.Setenv(EnvDataDir, "/srv/holomem")

	overrides := DataDirKeys("/var/lib/holomem")
	overrides["memory.crystallization.threshold"] = 2.0
	cfg, err := Load("", overrides)
	require.NoError(t, err)

	assert.Equal(t, 2.0, cfg.Memory.Crystallization.Threshold)
	assert.Equal(t, filepath.Join("/var/lib/holomem", "badger"), cfg.Storage.Badger.Path)
	assert.True(t, cfg.Storage.Badger.SyncWrites, "sibling keys keep their defaults")
}

func TestLoader_ReloadDropsRemovedKeys(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "holomem.yaml")
	writeFile(t, path, "memory:\n  importance:\n    markers: [goal]\n")

	loader := NewLoader()
	cfg, err := loader.Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"goal"}, cfg.Memory.Importance.Markers)

	writeFile(t, path, "memory:\n  persistent:\n    relationship_fanout: 8\n")
	cfg, err = loader.Load(path, nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Memory.Importance.Markers)
	assert.Equal(t, 8, cfg.Memory.Persistent.RelationshipFanout)
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"HOLOMEM_MEMORY__CONVERSATION__HALF_LIFE":      "memory.conversation.half_life",
		"HOLOMEM_STORAGE__BADGER__VALUE_LOG_FILE_SIZE": "storage.badger.value_log_file_size",
		"HOLOMEM_STORAGE": "storage.type",
		"HOLOMEM_SEED":    "memory.vector.seed",
		EnvConfigFile:     "",
		EnvDataDir:        "",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}
