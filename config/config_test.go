package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3002", cfg.Server.Address)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "cloud-game-maker", cfg.Storage.Bucket)
	assert.Equal(t, 2*time.Hour, cfg.Storage.URLValidity())
	assert.Equal(t, "memory", cfg.Database.Type)
	assert.Equal(t, "Scene", cfg.Database.Collection)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
server:
  address: ":8080"
storage:
  type: s3
  bucket: levels
  url_time_alive: 0.5
database:
  type: mongo
  url: mongodb://db:27017
  name: maker
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "s3", cfg.Storage.Type)
	assert.Equal(t, "levels", cfg.Storage.Bucket)
	assert.Equal(t, 30*time.Minute, cfg.Storage.URLValidity())
	assert.Equal(t, "mongo", cfg.Database.Type)
	assert.Equal(t, "mongodb://db:27017", cfg.Database.URL)
	assert.Equal(t, "Scene", cfg.Database.Collection, "unset keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "storage:\n  bucket: from-file\n")
	t.Setenv("GAMEMAKER_STORAGE_BUCKET", "from-env")
	t.Setenv("GAMEMAKER_DATABASE_TYPE", "sqlite")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Storage.Bucket)
	assert.Equal(t, "sqlite", cfg.Database.Type)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Storage:  StorageConfig{Type: "memory", Bucket: "b", URLTimeAlive: 2},
			Database: DatabaseConfig{Type: "memory"},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"blank bucket", func(c *Config) { c.Storage.Bucket = "  " }, false},
		{"zero validity", func(c *Config) { c.Storage.URLTimeAlive = 0 }, false},
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }, false},
		{"unknown database", func(c *Config) { c.Database.Type = "oracle" }, false},
		{"filesystem without secret", func(c *Config) { c.Storage.Type = "filesystem" }, false},
		{"filesystem with secret", func(c *Config) {
			c.Storage.Type = "filesystem"
			c.Storage.SigningSecret = "s"
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
