package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Cookie   string   `json:"cookie"`
	CacheDir string   `json:"cache_dir"`
	Lists    []string `json:"lists"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "config.json5")

	err := os.WriteFile(name, []byte(`{
		// comments are allowed
		cookie: "session=abc",
		cache_dir: "cache",
		lists: ["1.Best_Books_Ever"],
	}`), 0644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "session=abc", cfg.Cookie)
	require.Equal(t, "cache", cfg.CacheDir)
	require.Equal(t, []string{"1.Best_Books_Ever"}, cfg.Lists)
}

func TestReadConfigLocalOverride(t *testing.T) {
	dir := t.TempDir()

	err := os.WriteFile(filepath.Join(dir, "config.json5"), []byte(`{
		cookie: "session=abc",
		cache_dir: "cache",
	}`), 0644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "config.local.json5"), []byte(`{
		cookie: "session=real",
	}`), 0644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.NoError(t, err)
	require.Equal(t, "session=real", cfg.Cookie)
	require.Equal(t, "cache", cfg.CacheDir)
}

func TestReadConfigMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadConfig[testConfig](filepath.Join(dir, "config.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
