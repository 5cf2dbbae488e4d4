package stores

import (
	"context"
	"path/filepath"
	"testing"

	"gamemaker-server/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetObjectStore(t *testing.T) {
	ctx := context.Background()

	store, err := GetObjectStore(ctx, config.StorageConfig{Type: "memory", Bucket: "b"})
	require.NoError(t, err)
	assert.NotNil(t, store)

	store, err = GetObjectStore(ctx, config.StorageConfig{
		Type:          "filesystem",
		Bucket:        "b",
		BasePath:      t.TempDir(),
		PublicURL:     "http://localhost:3002",
		SigningSecret: "secret",
	})
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = GetObjectStore(ctx, config.StorageConfig{Type: "ftp"})
	assert.Error(t, err)
}

func TestGetDescriptorStore(t *testing.T) {
	ctx := context.Background()

	store, err := GetDescriptorStore(ctx, config.DatabaseConfig{Type: "memory"})
	require.NoError(t, err)
	assert.NotNil(t, store)

	store, err = GetDescriptorStore(ctx, config.DatabaseConfig{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "scenes.db")})
	require.NoError(t, err)
	assert.NotNil(t, store)

	_, err = GetDescriptorStore(ctx, config.DatabaseConfig{Type: "couchdb"})
	assert.Error(t, err)
}
