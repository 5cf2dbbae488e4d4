package minio

import (
	"context"
	"errors"
	"testing"
	"time"

	"gamemaker-server/signedurl"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsNoSuchKey(t *testing.T) {
	assert.True(t, isNoSuchKey(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.False(t, isNoSuchKey(minio.ErrorResponse{Code: "AccessDenied"}))
	assert.False(t, isNoSuchKey(errors.New("connection refused")))
}

func TestNewStoreAcceptsSchemes(t *testing.T) {
	for _, endpoint := range []string{"localhost:9000", "http://localhost:9000", "https://minio.example.com/"} {
		store, err := NewStore(Options{Endpoint: endpoint, Region: "us-east-1", AccessKeyID: "minioadmin", SecretAccessKey: "minioadmin"})
		require.NoError(t, err, endpoint)
		assert.NotNil(t, store.client)
	}
}

func TestPreSignedURLCarriesExpiry(t *testing.T) {
	// Region is fixed so presigning does not look up the bucket location.
	store, err := NewStore(Options{
		Endpoint:        "http://localhost:9000",
		Region:          "us-east-1",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
	})
	require.NoError(t, err)

	before := time.Now().UTC().Truncate(time.Second)
	signed, err := store.PreSignedURL(context.Background(), "cloud-game-maker", "thumbnails/sprites/x.png", time.Hour)
	require.NoError(t, err)

	assert.Contains(t, signed, "X-Amz-Expires=3600")
	expiresAt, ok := signedurl.ExpiresAt(signed)
	require.True(t, ok)
	assert.WithinDuration(t, before.Add(time.Hour), expiresAt, time.Minute)
}
