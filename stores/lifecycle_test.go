package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"gamemaker-server/config"
	"gamemaker-server/stores/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	healthErr error
	closed    bool
}

func (f *fakeBackend) Health(ctx context.Context) error { return f.healthErr }

func (f *fakeBackend) Close(ctx context.Context) error {
	f.closed = true
	return nil
}

func TestHealth(t *testing.T) {
	ctx := context.Background()
	down := errors.New("connection refused")

	assert.NoError(t, Health(ctx, memory.NewStore(), &fakeBackend{}))

	err := Health(ctx, memory.NewStore(), &fakeBackend{healthErr: down})
	assert.ErrorIs(t, err, down)
}

func TestCloseReleasesSQLite(t *testing.T) {
	ctx := context.Background()

	store, err := GetDescriptorStore(ctx, config.DatabaseConfig{Type: "sqlite", DSN: filepath.Join(t.TempDir(), "scenes.db")})
	require.NoError(t, err)
	require.NoError(t, Health(ctx, store))

	backend := &fakeBackend{}
	require.NoError(t, Close(ctx, store, memory.NewStore(), backend))
	assert.True(t, backend.closed)
	assert.Error(t, Health(ctx, store))
}
