package memory

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"gamemaker-server/core"
	"gamemaker-server/signedurl"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

type object struct {
	data         []byte
	contentType  string
	lastModified time.Time
}

// memStore implements both ObjectStore and DescriptorStore in memory.
type memStore struct {
	mu          sync.RWMutex
	objects     map[string]map[string]object // bucket -> key -> object
	descriptors map[string]core.SceneDescriptor
	order       []string // descriptor ids in insertion order
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		objects:     make(map[string]map[string]object),
		descriptors: make(map[string]core.SceneDescriptor),
	}
}

// Get opens a blob. Part of the ObjectStore interface.
func (s *memStore) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := logrus.WithFields(logrus.Fields{"bucket": bucket, "key": key})
	obj, ok := s.objects[bucket][key]
	if !ok {
		log.Warn("Object not found")
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
	}
	log.Debug("Object retrieved successfully")
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// Put stores a blob. Part of the ObjectStore interface.
func (s *memStore) Put(ctx context.Context, bucket, key string, content []byte, contentType string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[bucket]; !ok {
		s.objects[bucket] = make(map[string]object)
	}
	data := make([]byte, len(content))
	copy(data, content)
	s.objects[bucket][key] = object{data: data, contentType: contentType, lastModified: time.Now()}

	logrus.WithFields(logrus.Fields{
		"bucket":      bucket,
		"key":         key,
		"data_length": len(data),
	}).Info("Object stored successfully")
	return nil
}

// Delete removes a blob. Part of the ObjectStore interface.
func (s *memStore) Delete(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects[bucket], key)
	logrus.WithFields(logrus.Fields{"bucket": bucket, "key": key}).Info("Object deleted successfully")
	return nil
}

// PreSignedURL issues a memory:// URL carrying the signing parameters.
func (s *memStore) PreSignedURL(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	return fmt.Sprintf("memory://%s/%s?%s", bucket, key, signedurl.Params(time.Now(), expires).Encode()), nil
}

// Metadata describes a blob. Part of the ObjectStore interface.
func (s *memStore) Metadata(ctx context.Context, bucket, key string) (*core.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[bucket][key]
	if !ok {
		return nil, fmt.Errorf("object %s/%s: %w", bucket, key, core.ErrNotFound)
	}
	info := objectInfo(key, obj)
	return &info, nil
}

// ListObjects returns blobs under prefix ordered by key. Part of the ObjectStore interface.
func (s *memStore) ListObjects(ctx context.Context, bucket, prefix string) ([]core.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]core.ObjectInfo, 0)
	for key, obj := range s.objects[bucket] {
		if strings.HasPrefix(key, prefix) {
			infos = append(infos, objectInfo(key, obj))
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return infos, nil
}

func objectInfo(key string, obj object) core.ObjectInfo {
	sum := md5.Sum(obj.data)
	return core.ObjectInfo{
		Key:          key,
		Size:         int64(len(obj.data)),
		ContentType:  obj.contentType,
		ETag:         hex.EncodeToString(sum[:]),
		LastModified: obj.lastModified,
	}
}

// FindByID returns a descriptor. Part of the DescriptorStore interface.
func (s *memStore) FindByID(ctx context.Context, id string) (*core.SceneDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	descriptor, ok := s.descriptors[id]
	if !ok {
		logrus.WithField("scene_id", id).Warn("Scene descriptor not found")
		return nil, fmt.Errorf("scene descriptor %s: %w", id, core.ErrNotFound)
	}
	return &descriptor, nil
}

// FindByStorageKey returns the descriptor pointing at key. Part of the DescriptorStore interface.
func (s *memStore) FindByStorageKey(ctx context.Context, key string) (*core.SceneDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if descriptor := s.descriptors[id]; descriptor.StorageKey == key {
			return &descriptor, nil
		}
	}
	logrus.WithField("storage_key", key).Warn("Scene descriptor not found for storage key")
	return nil, fmt.Errorf("scene descriptor for key %s: %w", key, core.ErrNotFound)
}

// Insert stores a new descriptor under a fresh ULID. Part of the DescriptorStore interface.
func (s *memStore) Insert(ctx context.Context, descriptor *core.SceneDescriptor) (*core.SceneDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := *descriptor
	inserted.ID = ulid.Make().String()
	s.descriptors[inserted.ID] = inserted
	s.order = append(s.order, inserted.ID)

	logrus.WithFields(logrus.Fields{
		"scene_id":    inserted.ID,
		"storage_key": inserted.StorageKey,
	}).Info("Scene descriptor created successfully")
	return &inserted, nil
}

// Replace overwrites an existing descriptor. Part of the DescriptorStore interface.
func (s *memStore) Replace(ctx context.Context, descriptor *core.SceneDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.descriptors[descriptor.ID]; !ok {
		return fmt.Errorf("scene descriptor %s: %w", descriptor.ID, core.ErrNotFound)
	}
	s.descriptors[descriptor.ID] = *descriptor
	logrus.WithField("scene_id", descriptor.ID).Info("Scene descriptor replaced successfully")
	return nil
}

// DeleteByID removes a descriptor. Part of the DescriptorStore interface.
func (s *memStore) DeleteByID(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.descriptors[id]; !ok {
		logrus.WithField("scene_id", id).Warn("Scene descriptor not found for deletion")
		return fmt.Errorf("scene descriptor %s: %w", id, core.ErrNotFound)
	}
	delete(s.descriptors, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	logrus.WithField("scene_id", id).Info("Scene descriptor deleted successfully")
	return nil
}

// List returns descriptors in insertion order. Part of the DescriptorStore interface.
func (s *memStore) List(ctx context.Context, limit int) ([]*core.SceneDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.order)
	if limit > 0 && limit < n {
		n = limit
	}
	descriptors := make([]*core.SceneDescriptor, 0, n)
	for _, id := range s.order[:n] {
		descriptor := s.descriptors[id]
		descriptors = append(descriptors, &descriptor)
	}
	logrus.Debugf("Listed %d scene descriptors", len(descriptors))
	return descriptors, nil
}

var (
	_ core.ObjectStore     = (*memStore)(nil)
	_ core.DescriptorStore = (*memStore)(nil)
)
