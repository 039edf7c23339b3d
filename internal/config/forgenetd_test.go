package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadForgenetdMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadForgenetd(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, DefaultForgenetd(), cfg)
}

func TestLoadForgenetdOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forgenetd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9999\nencryption: aes\nhigh_water_mark: 8000\n"), 0o644))

	cfg, err := LoadForgenetd(path)
	require.NoError(t, err)
	require.Equal(t, 9999, cfg.Port)
	require.Equal(t, "aes", cfg.Encryption)
	require.Equal(t, 8000, cfg.HighWaterMark)
	require.Equal(t, DefaultForgenetd().LowWaterMark, cfg.LowWaterMark)
}

func TestDatabaseConfigDSNReused(t *testing.T) {
	cfg := DefaultForgenetd()
	require.Contains(t, cfg.Database.DSN(), "forgenet")
}
