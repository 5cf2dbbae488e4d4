package stores

import (
	"context"
	"fmt"

	"gamemaker-server/config"
	"gamemaker-server/core"
	"gamemaker-server/stores/aws"
	"gamemaker-server/stores/filesystem"
	"gamemaker-server/stores/memory"
	"gamemaker-server/stores/minio"
	"gamemaker-server/stores/mongo"
	"gamemaker-server/stores/redis"
	"gamemaker-server/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetObjectStore builds the blob backend named by cfg.Type.
func GetObjectStore(ctx context.Context, cfg config.StorageConfig) (core.ObjectStore, error) {
	var (
		store core.ObjectStore
		err   error
	)
	storageField := logrus.Fields{
		"storageType": cfg.Type,
		"bucket":      cfg.Bucket,
	}

	switch cfg.Type {
	case "filesystem":
		storageField["basePath"] = cfg.BasePath
		store, err = filesystem.NewStore(cfg.BasePath, cfg.PublicURL, cfg.SigningSecret)
	case "s3":
		storageField["region"] = cfg.Region
		storageField["endpoint"] = cfg.Endpoint
		store, err = aws.NewStore(ctx, aws.Options{
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
	case "minio":
		storageField["endpoint"] = cfg.Endpoint
		store, err = minio.NewStore(minio.Options{
			Endpoint:        cfg.Endpoint,
			Region:          cfg.Region,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			UseSSL:          cfg.UseSSL,
		})
	case "memory", "":
		storageField["storageType"] = "in-memory"
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(storageField).Info("Use object storage")
	return store, nil
}

// GetDescriptorStore builds the descriptor backend named by cfg.Type.
func GetDescriptorStore(ctx context.Context, cfg config.DatabaseConfig) (core.DescriptorStore, error) {
	var (
		store core.DescriptorStore
		err   error
	)
	databaseField := logrus.Fields{
		"databaseType": cfg.Type,
	}

	switch cfg.Type {
	case "mongo":
		databaseField["database"] = cfg.Name
		databaseField["collection"] = cfg.Collection
		store, err = mongo.NewStore(ctx, cfg.URL, cfg.Name, cfg.Collection)
	case "sqlite":
		databaseField["dataSourceName"] = cfg.DSN
		store, err = sqlite.NewStore(cfg.DSN)
	case "redis":
		databaseField["redisDB"] = cfg.RedisDB
		store, err = redis.NewStore(ctx, cfg.URL, cfg.RedisDB)
	case "memory", "":
		databaseField["databaseType"] = "in-memory"
		store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown database type %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	logrus.WithFields(databaseField).Info("Use descriptor storage")
	return store, nil
}
