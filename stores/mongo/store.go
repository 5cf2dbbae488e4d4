// Package mongo provides a DescriptorStore backed by a MongoDB collection.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"gamemaker-server/core"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// descriptorDocument is the stored shape of a scene descriptor.
type descriptorDocument struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	Name       string        `bson:"name"`
	StorageKey string        `bson:"storageKey"`
}

type mongoStore struct {
	collection *mongo.Collection
}

// NewStore connects to uri and uses database/collection for descriptors.
// A unique index on storageKey is created if missing.
func NewStore(ctx context.Context, uri, database, collection string) (*mongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	store := New(client.Database(database).Collection(collection))
	_, err = store.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "storageKey", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to create storageKey index: %w", err)
	}
	return store, nil
}

// New wraps an existing collection.
func New(collection *mongo.Collection) *mongoStore {
	return &mongoStore{collection: collection}
}

// Close disconnects the underlying client.
func (s *mongoStore) Close(ctx context.Context) error {
	return s.collection.Database().Client().Disconnect(ctx)
}

// Health pings the server.
func (s *mongoStore) Health(ctx context.Context) error {
	return s.collection.Database().Client().Ping(ctx, nil)
}

// idFilter builds the _id filter for a hex descriptor id. Ids that are not
// valid ObjectIDs cannot match any descriptor.
func idFilter(id string) (bson.M, error) {
	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("scene descriptor %s: %w", id, core.ErrNotFound)
	}
	return bson.M{"_id": oid}, nil
}

func toDescriptor(doc descriptorDocument) *core.SceneDescriptor {
	return &core.SceneDescriptor{
		ID:         doc.ID.Hex(),
		Name:       doc.Name,
		StorageKey: doc.StorageKey,
	}
}

func toDocument(descriptor *core.SceneDescriptor) (descriptorDocument, error) {
	doc := descriptorDocument{Name: descriptor.Name, StorageKey: descriptor.StorageKey}
	if descriptor.ID != "" {
		oid, err := bson.ObjectIDFromHex(descriptor.ID)
		if err != nil {
			return doc, fmt.Errorf("scene descriptor %s: %w", descriptor.ID, core.ErrNotFound)
		}
		doc.ID = oid
	}
	return doc, nil
}

func (s *mongoStore) findOne(ctx context.Context, log *logrus.Entry, filter bson.M, what string) (*core.SceneDescriptor, error) {
	var doc descriptorDocument
	err := s.collection.FindOne(ctx, filter).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			log.Warn("Scene descriptor not found")
			return nil, fmt.Errorf("scene descriptor %s: %w", what, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to retrieve scene descriptor")
		return nil, err
	}
	return toDescriptor(doc), nil
}

func (s *mongoStore) FindByID(ctx context.Context, id string) (*core.SceneDescriptor, error) {
	filter, err := idFilter(id)
	if err != nil {
		return nil, err
	}
	return s.findOne(ctx, logrus.WithField("scene_id", id), filter, id)
}

func (s *mongoStore) FindByStorageKey(ctx context.Context, key string) (*core.SceneDescriptor, error) {
	return s.findOne(ctx, logrus.WithField("storage_key", key), bson.M{"storageKey": key}, key)
}

func (s *mongoStore) Insert(ctx context.Context, descriptor *core.SceneDescriptor) (*core.SceneDescriptor, error) {
	doc := descriptorDocument{ID: bson.NewObjectID(), Name: descriptor.Name, StorageKey: descriptor.StorageKey}
	log := logrus.WithFields(logrus.Fields{
		"scene_id":    doc.ID.Hex(),
		"storage_key": doc.StorageKey,
	})

	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		log.WithError(err).Error("Failed to create scene descriptor")
		return nil, err
	}
	log.Info("Scene descriptor created successfully")
	return toDescriptor(doc), nil
}

func (s *mongoStore) Replace(ctx context.Context, descriptor *core.SceneDescriptor) error {
	doc, err := toDocument(descriptor)
	if err != nil {
		return err
	}
	log := logrus.WithField("scene_id", descriptor.ID)

	result, err := s.collection.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		log.WithError(err).Error("Failed to replace scene descriptor")
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("scene descriptor %s: %w", descriptor.ID, core.ErrNotFound)
	}
	log.Info("Scene descriptor replaced successfully")
	return nil
}

func (s *mongoStore) DeleteByID(ctx context.Context, id string) error {
	filter, err := idFilter(id)
	if err != nil {
		return err
	}
	log := logrus.WithField("scene_id", id)

	result, err := s.collection.DeleteOne(ctx, filter)
	if err != nil {
		log.WithError(err).Error("Failed to delete scene descriptor")
		return err
	}
	if result.DeletedCount == 0 {
		log.Warn("Scene descriptor not found for deletion")
		return fmt.Errorf("scene descriptor %s: %w", id, core.ErrNotFound)
	}
	log.Info("Scene descriptor deleted successfully")
	return nil
}

// List returns descriptors in _id order, which follows insertion time.
func (s *mongoStore) List(ctx context.Context, limit int) ([]*core.SceneDescriptor, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cur, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	descriptors := make([]*core.SceneDescriptor, 0)
	for cur.Next(ctx) {
		var doc descriptorDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		descriptors = append(descriptors, toDescriptor(doc))
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}
	return descriptors, nil
}

var _ core.DescriptorStore = (*mongoStore)(nil)
