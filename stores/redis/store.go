// Package redis provides a DescriptorStore backed by Redis hashes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gamemaker-server/core"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "gamemaker"

type redisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewStore connects to addr, which may be a redis:// URL or a host:port
// pair, and verifies the connection.
func NewStore(ctx context.Context, addr string, db int) (*redisStore, error) {
	opts, err := clientOptions(addr, db)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return New(client, DefaultPrefix), nil
}

func clientOptions(addr string, db int) (*redis.Options, error) {
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		opts, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		if db != 0 {
			opts.DB = db
		}
		return opts, nil
	}
	return &redis.Options{Addr: addr, DB: db}, nil
}

// New wraps an existing client.
func New(client redis.UniversalClient, prefix string) *redisStore {
	return &redisStore{client: client, prefix: prefix}
}

// Close closes the client.
func (s *redisStore) Close() error {
	return s.client.Close()
}

// Health pings the server.
func (s *redisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *redisStore) descriptorKey(id string) string {
	return s.prefix + ":scene:" + id
}

func (s *redisStore) storageKeyIndex(key string) string {
	return s.prefix + ":scene-key:" + key
}

func (s *redisStore) orderKey() string {
	return s.prefix + ":scenes"
}

func (s *redisStore) FindByID(ctx context.Context, id string) (*core.SceneDescriptor, error) {
	log := logrus.WithField("scene_id", id)
	fields, err := s.client.HGetAll(ctx, s.descriptorKey(id)).Result()
	if err != nil {
		log.WithError(err).Error("Failed to retrieve scene descriptor")
		return nil, err
	}
	if len(fields) == 0 {
		log.Warn("Scene descriptor not found")
		return nil, fmt.Errorf("scene descriptor %s: %w", id, core.ErrNotFound)
	}
	return fromHash(id, fields), nil
}

func (s *redisStore) FindByStorageKey(ctx context.Context, key string) (*core.SceneDescriptor, error) {
	id, err := s.client.Get(ctx, s.storageKeyIndex(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			logrus.WithField("storage_key", key).Warn("Scene descriptor not found for storage key")
			return nil, fmt.Errorf("scene descriptor for key %s: %w", key, core.ErrNotFound)
		}
		return nil, err
	}
	return s.FindByID(ctx, id)
}

func (s *redisStore) Insert(ctx context.Context, descriptor *core.SceneDescriptor) (*core.SceneDescriptor, error) {
	inserted := *descriptor
	inserted.ID = ulid.Make().String()
	log := logrus.WithFields(logrus.Fields{
		"scene_id":    inserted.ID,
		"storage_key": inserted.StorageKey,
	})

	claimed, err := s.client.SetNX(ctx, s.storageKeyIndex(inserted.StorageKey), inserted.ID, 0).Result()
	if err != nil {
		log.WithError(err).Error("Failed to create scene descriptor")
		return nil, err
	}
	if !claimed {
		return nil, fmt.Errorf("storage key %s is already indexed", inserted.StorageKey)
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.descriptorKey(inserted.ID), toHash(&inserted))
		pipe.RPush(ctx, s.orderKey(), inserted.ID)
		return nil
	})
	if err != nil {
		s.client.Del(ctx, s.storageKeyIndex(inserted.StorageKey))
		log.WithError(err).Error("Failed to create scene descriptor")
		return nil, err
	}

	log.Info("Scene descriptor created successfully")
	return &inserted, nil
}

func (s *redisStore) Replace(ctx context.Context, descriptor *core.SceneDescriptor) error {
	existing, err := s.FindByID(ctx, descriptor.ID)
	if err != nil {
		return err
	}
	log := logrus.WithField("scene_id", descriptor.ID)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.descriptorKey(descriptor.ID), toHash(descriptor))
		if existing.StorageKey != descriptor.StorageKey {
			pipe.Del(ctx, s.storageKeyIndex(existing.StorageKey))
			pipe.Set(ctx, s.storageKeyIndex(descriptor.StorageKey), descriptor.ID, 0)
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to replace scene descriptor")
		return err
	}
	log.Info("Scene descriptor replaced successfully")
	return nil
}

func (s *redisStore) DeleteByID(ctx context.Context, id string) error {
	existing, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	log := logrus.WithField("scene_id", id)

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.descriptorKey(id), s.storageKeyIndex(existing.StorageKey))
		pipe.LRem(ctx, s.orderKey(), 0, id)
		return nil
	})
	if err != nil {
		log.WithError(err).Error("Failed to delete scene descriptor")
		return err
	}
	log.Info("Scene descriptor deleted successfully")
	return nil
}

func (s *redisStore) List(ctx context.Context, limit int) ([]*core.SceneDescriptor, error) {
	ids, err := s.client.LRange(ctx, s.orderKey(), 0, listStop(limit)).Result()
	if err != nil {
		return nil, err
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, s.descriptorKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	descriptors := make([]*core.SceneDescriptor, 0, len(ids))
	for i, cmd := range cmds {
		if fields := cmd.Val(); len(fields) > 0 {
			descriptors = append(descriptors, fromHash(ids[i], fields))
		}
	}
	return descriptors, nil
}

// listStop converts a result limit into an inclusive LRANGE stop index.
func listStop(limit int) int64 {
	if limit <= 0 {
		return -1
	}
	return int64(limit - 1)
}

func toHash(descriptor *core.SceneDescriptor) map[string]any {
	return map[string]any{
		"name":       descriptor.Name,
		"storageKey": descriptor.StorageKey,
	}
}

func fromHash(id string, fields map[string]string) *core.SceneDescriptor {
	return &core.SceneDescriptor{
		ID:         id,
		Name:       fields["name"],
		StorageKey: fields["storageKey"],
	}
}

var _ core.DescriptorStore = (*redisStore)(nil)
