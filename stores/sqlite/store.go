package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"gamemaker-server/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore opens the SQLite database at dataSourceName and makes sure the
// descriptor table exists.
func NewStore(dataSourceName string) (*sqliteStore, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	descriptorTableStmt := `
	CREATE TABLE IF NOT EXISTS scene_descriptors (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		storage_key TEXT NOT NULL UNIQUE
	);`
	if _, err = db.Exec(descriptorTableStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create scene_descriptors table: %w", err)
	}

	return &sqliteStore{db}, nil
}

// Close releases the database handle.
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// Health checks that the database file is still reachable.
func (s *sqliteStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqliteStore) findOne(ctx context.Context, log *logrus.Entry, query string, arg string) (*core.SceneDescriptor, error) {
	var descriptor core.SceneDescriptor
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&descriptor.ID, &descriptor.Name, &descriptor.StorageKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Warn("Scene descriptor not found")
			return nil, fmt.Errorf("scene descriptor %s: %w", arg, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve scene descriptor")
		return nil, err
	}
	log.Debug("Scene descriptor retrieved successfully")
	return &descriptor, nil
}

func (s *sqliteStore) FindByID(ctx context.Context, id string) (*core.SceneDescriptor, error) {
	return s.findOne(ctx, logrus.WithField("scene_id", id),
		"SELECT id, name, storage_key FROM scene_descriptors WHERE id = ?", id)
}

func (s *sqliteStore) FindByStorageKey(ctx context.Context, key string) (*core.SceneDescriptor, error) {
	return s.findOne(ctx, logrus.WithField("storage_key", key),
		"SELECT id, name, storage_key FROM scene_descriptors WHERE storage_key = ?", key)
}

func (s *sqliteStore) Insert(ctx context.Context, descriptor *core.SceneDescriptor) (*core.SceneDescriptor, error) {
	inserted := *descriptor
	inserted.ID = ulid.Make().String()
	log := logrus.WithFields(logrus.Fields{
		"scene_id":    inserted.ID,
		"storage_key": inserted.StorageKey,
	})

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO scene_descriptors (id, name, storage_key) VALUES (?, ?, ?)",
		inserted.ID, inserted.Name, inserted.StorageKey)
	if err != nil {
		log.WithError(err).Error("Failed to create scene descriptor")
		return nil, err
	}
	log.Info("Scene descriptor created successfully")
	return &inserted, nil
}

func (s *sqliteStore) Replace(ctx context.Context, descriptor *core.SceneDescriptor) error {
	log := logrus.WithField("scene_id", descriptor.ID)
	res, err := s.db.ExecContext(ctx,
		"UPDATE scene_descriptors SET name = ?, storage_key = ? WHERE id = ?",
		descriptor.Name, descriptor.StorageKey, descriptor.ID)
	if err != nil {
		log.WithError(err).Error("Failed to replace scene descriptor")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("scene descriptor %s: %w", descriptor.ID, core.ErrNotFound)
	}
	log.Info("Scene descriptor replaced successfully")
	return nil
}

func (s *sqliteStore) DeleteByID(ctx context.Context, id string) error {
	log := logrus.WithField("scene_id", id)
	res, err := s.db.ExecContext(ctx, "DELETE FROM scene_descriptors WHERE id = ?", id)
	if err != nil {
		log.WithError(err).Error("Failed to delete scene descriptor")
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		log.Warn("Scene descriptor not found for deletion")
		return fmt.Errorf("scene descriptor %s: %w", id, core.ErrNotFound)
	}
	log.Info("Scene descriptor deleted successfully")
	return nil
}

func (s *sqliteStore) List(ctx context.Context, limit int) ([]*core.SceneDescriptor, error) {
	query := "SELECT id, name, storage_key FROM scene_descriptors ORDER BY rowid"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	descriptors := make([]*core.SceneDescriptor, 0)
	for rows.Next() {
		var descriptor core.SceneDescriptor
		if err := rows.Scan(&descriptor.ID, &descriptor.Name, &descriptor.StorageKey); err != nil {
			return nil, err
		}
		descriptors = append(descriptors, &descriptor)
	}
	return descriptors, rows.Err()
}

var _ core.DescriptorStore = (*sqliteStore)(nil)
