package core

import (
	"context"
	"encoding/json"
	"io"
	"time"
)

type (
	// SceneDescriptor is the lightweight index record of a scene. The full
	// scene graph lives in the object store at StorageKey.
	SceneDescriptor struct {
		ID         string `json:"id" bson:"_id,omitempty"`
		Name       string `json:"name" bson:"name"`
		StorageKey string `json:"storageKey" bson:"storageKey"`
	}

	// Viewport is the camera offset of the scene editor.
	Viewport struct {
		X int `json:"x"`
		Y int `json:"y"`
	}

	// Scene is the full game-level graph. It is only ever stored as a blob.
	Scene struct {
		StorageKey string        `json:"storageKey,omitempty"`
		Name       string        `json:"name"`
		Scale      int           `json:"scale"`
		Viewport   Viewport      `json:"viewport"`
		Layers     []*SceneLayer `json:"layers"`
	}

	// SceneLayer is one grid of the scene. Layer order is render order.
	SceneLayer struct {
		Name      string                     `json:"name"`
		Rows      int                        `json:"rows"`
		Columns   int                        `json:"columns"`
		IsVisible bool                       `json:"isVisible"`
		IsActive  bool                       `json:"isActive"`
		Grids     map[string]json.RawMessage `json:"grids"`
		Sprites   map[string]*Sprite         `json:"sprites"`
	}

	// Sprite is a sprite reference embedded in a layer, keyed by sprite id.
	Sprite struct {
		ID           string `json:"id"`
		Originated   string `json:"originated,omitempty"`
		Name         string `json:"name"`
		Mime         string `json:"mime"`
		Extension    string `json:"extension"`
		OriginalURL  string `json:"originalUrl"`
		ThumbnailURL string `json:"thumbnailUrl"`
	}

	// ObjectInfo describes a stored blob.
	ObjectInfo struct {
		Key          string    `json:"key"`
		Size         int64     `json:"size"`
		ContentType  string    `json:"contentType,omitempty"`
		ETag         string    `json:"etag,omitempty"`
		LastModified time.Time `json:"lastModified"`
	}

	// AuditReport lists descriptors whose blob could not be found.
	AuditReport struct {
		Checked      int                `json:"checked"`
		MissingBlobs []*SceneDescriptor `json:"missingBlobs"`
	}

	// ObjectStore is the blob storage gateway. Keys are slash separated
	// paths inside a bucket.
	ObjectStore interface {
		// Get opens the blob at key. A missing blob yields ErrNotFound.
		Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)

		// Put writes content at key, replacing any previous blob.
		Put(ctx context.Context, bucket, key string, content []byte, contentType string) error

		// Delete removes the blob at key. Deleting a missing blob is not an error.
		Delete(ctx context.Context, bucket, key string) error

		// PreSignedURL issues a time-boxed download URL for key. The URL
		// carries X-Amz-Date and X-Amz-Expires query parameters.
		PreSignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error)

		// Metadata returns information about the blob at key, or ErrNotFound.
		Metadata(ctx context.Context, bucket, key string) (*ObjectInfo, error)

		// ListObjects returns every blob whose key starts with prefix.
		ListObjects(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
	}

	// DescriptorStore is the document collection holding scene descriptors.
	DescriptorStore interface {
		// FindByID returns the descriptor with the given id, or ErrNotFound.
		FindByID(ctx context.Context, id string) (*SceneDescriptor, error)

		// FindByStorageKey returns the descriptor pointing at key, or ErrNotFound.
		FindByStorageKey(ctx context.Context, key string) (*SceneDescriptor, error)

		// Insert stores a new descriptor and returns it with its assigned id.
		Insert(ctx context.Context, descriptor *SceneDescriptor) (*SceneDescriptor, error)

		// Replace overwrites the descriptor with the same id.
		Replace(ctx context.Context, descriptor *SceneDescriptor) error

		// DeleteByID removes the descriptor with the given id.
		DeleteByID(ctx context.Context, id string) error

		// List returns up to limit descriptors; limit <= 0 returns all of them.
		List(ctx context.Context, limit int) ([]*SceneDescriptor, error)
	}
)

const (
	// ThumbnailFolder is the key prefix under which sprite thumbnails live.
	ThumbnailFolder = "thumbnails"

	// SceneFolder is the key prefix of scene blobs.
	SceneFolder = "scenes"

	// SpriteFolder is the key prefix of sprite originals.
	SpriteFolder = "sprites"
)

// ThumbnailKey returns the object key of the thumbnail for a sprite key.
func ThumbnailKey(key string) string {
	return ThumbnailFolder + "/" + key
}
