// Package scenes keeps scene descriptors and scene blobs consistent and
// renews expired sprite thumbnail URLs on read.
package scenes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"gamemaker-server/codec"
	"gamemaker-server/core"
	"gamemaker-server/metrics"
	"gamemaker-server/signedurl"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const auditConcurrency = 8

// Config is fixed for the lifetime of a Service.
type Config struct {
	Bucket       string
	URLTimeAlive time.Duration
}

// Option customises a Service.
type Option func(*Service)

// WithChecker replaces the expiry checker, typically to pin the clock.
func WithChecker(checker *signedurl.Checker) Option {
	return func(s *Service) { s.checker = checker }
}

// WithMetrics records operation outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithKeyGenerator replaces the blob key generator.
func WithKeyGenerator(fn func() string) Option {
	return func(s *Service) { s.newKey = fn }
}

// Service is the scene persistence orchestrator.
type Service struct {
	cfg         Config
	descriptors core.DescriptorStore
	objects     core.ObjectStore
	checker     *signedurl.Checker
	metrics     *metrics.Metrics
	newKey      func() string
}

// NewService wires a Service over the two stores.
func NewService(cfg Config, descriptors core.DescriptorStore, objects core.ObjectStore, opts ...Option) *Service {
	s := &Service{
		cfg:         cfg,
		descriptors: descriptors,
		objects:     objects,
		checker:     signedurl.New(),
		newKey:      NewStorageKey,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStorageKey returns a fresh blob key of the form scenes/<uuid>.json.
func NewStorageKey() string {
	return core.SceneFolder + "/" + uuid.NewString() + ".json"
}

// outcome maps an operation error onto a metrics label.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, core.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, core.ErrRejected):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

// GetScene loads the scene behind descriptor id and renews expired sprite
// thumbnail URLs before returning it.
func (s *Service) GetScene(ctx context.Context, id string) (scene *core.Scene, err error) {
	defer func(started time.Time) { s.metrics.RecordOperation("get", outcome(err), started) }(time.Now())

	descriptor, err := s.descriptors.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	key := unescapeKey(descriptor.StorageKey)
	log := logrus.WithFields(logrus.Fields{"scene_id": id, "storage_key": key})

	body, err := s.objects.Get(ctx, s.cfg.Bucket, key)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			log.Error("Scene descriptor points at a missing blob")
			return nil, fmt.Errorf("scene %s at %s: %w", id, key, core.ErrBlobMissing)
		}
		log.WithError(err).Error("Failed to fetch scene blob")
		return nil, fmt.Errorf("fetch scene %s: %w", id, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read scene %s: %w", id, err)
	}

	scene, err = codec.Decode(data)
	if err != nil {
		log.WithError(err).Error("Failed to decode scene blob")
		return nil, err
	}
	scene.StorageKey = key

	s.renewThumbnails(ctx, scene)
	return scene, nil
}

// unescapeKey undoes percent-encoding of a stored key. Keys that are not
// valid escapes are used as they are.
func unescapeKey(key string) string {
	unescaped, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return unescaped
}

// renewThumbnails replaces every expired thumbnail URL in place. Original
// URLs are left untouched. A failed renewal keeps the old URL.
func (s *Service) renewThumbnails(ctx context.Context, scene *core.Scene) {
	for _, layer := range scene.Layers {
		if layer == nil {
			continue
		}
		for spriteID, sprite := range layer.Sprites {
			if sprite == nil || !s.checker.IsExpired(sprite.ThumbnailURL) {
				continue
			}

			renewed, err := s.objects.PreSignedURL(ctx, s.cfg.Bucket, core.ThumbnailKey(spriteID), s.cfg.URLTimeAlive)
			if err != nil {
				logrus.WithFields(logrus.Fields{
					"sprite_id": spriteID,
					"layer":     layer.Name,
				}).WithError(err).Warn("Failed to renew thumbnail URL")
				s.metrics.RecordRenewal(metrics.OutcomeFailed)
				continue
			}
			sprite.ThumbnailURL = renewed
			s.metrics.RecordRenewal(metrics.OutcomeRenewed)
		}
	}
}

// AddScene stores scene under a new blob key and indexes it with a new
// descriptor.
func (s *Service) AddScene(ctx context.Context, scene *core.Scene) (descriptor *core.SceneDescriptor, err error) {
	defer func(started time.Time) { s.metrics.RecordOperation("add", outcome(err), started) }(time.Now())

	if scene == nil || strings.TrimSpace(scene.Name) == "" {
		return nil, fmt.Errorf("scene name is blank: %w", core.ErrRejected)
	}

	key := s.newKey()
	log := logrus.WithFields(logrus.Fields{"storage_key": key, "name": scene.Name})

	data, err := codec.Encode(scene)
	if err != nil {
		return nil, err
	}
	if err := s.objects.Put(ctx, s.cfg.Bucket, key, data, codec.ContentType); err != nil {
		log.WithError(err).Error("Failed to write scene blob")
		return nil, fmt.Errorf("write scene blob %s: %w: %w", key, core.ErrUpstreamWrite, err)
	}

	descriptor, err = s.descriptors.Insert(ctx, &core.SceneDescriptor{StorageKey: key, Name: scene.Name})
	if err == nil && (descriptor == nil || descriptor.ID == "") {
		err = errors.New("descriptor store returned no id")
	}
	if err != nil {
		log.WithError(err).Error("Failed to insert scene descriptor, removing blob")
		if delErr := s.objects.Delete(ctx, s.cfg.Bucket, key); delErr != nil {
			log.WithError(delErr).Error("Failed to remove orphaned scene blob")
		}
		return nil, fmt.Errorf("insert scene descriptor: %w: %w", core.ErrUpstreamWrite, err)
	}

	log.WithField("scene_id", descriptor.ID).Info("Scene created successfully")
	return descriptor, nil
}

// UpdateScene overwrites the blob at scene.StorageKey and renames its
// descriptor. The descriptor is located by storage key, not by id.
func (s *Service) UpdateScene(ctx context.Context, scene *core.Scene) (err error) {
	defer func(started time.Time) { s.metrics.RecordOperation("update", outcome(err), started) }(time.Now())

	if scene == nil || scene.StorageKey == "" {
		return fmt.Errorf("scene without storage key: %w", core.ErrNotFound)
	}

	descriptor, err := s.findByStorageKey(ctx, scene.StorageKey)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"scene_id": descriptor.ID, "storage_key": scene.StorageKey})

	data, err := codec.Encode(scene)
	if err != nil {
		return err
	}
	if err := s.objects.Put(ctx, s.cfg.Bucket, scene.StorageKey, data, codec.ContentType); err != nil {
		log.WithError(err).Error("Failed to overwrite scene blob")
		return fmt.Errorf("write scene blob %s: %w: %w", scene.StorageKey, core.ErrUpstreamWrite, err)
	}

	descriptor.Name = scene.Name
	if err := s.descriptors.Replace(ctx, descriptor); err != nil {
		log.WithError(err).Error("Failed to rename scene descriptor")
		return fmt.Errorf("replace scene descriptor: %w: %w", core.ErrUpstreamWrite, err)
	}

	log.Info("Scene updated successfully")
	return nil
}

// findByStorageKey locates the descriptor for a blob key as GetScene
// reports it. Descriptors may hold the key percent-encoded.
func (s *Service) findByStorageKey(ctx context.Context, key string) (*core.SceneDescriptor, error) {
	descriptor, err := s.descriptors.FindByStorageKey(ctx, key)
	if err == nil || !errors.Is(err, core.ErrNotFound) {
		return descriptor, err
	}

	escaped := url.QueryEscape(key)
	if escaped == key {
		return nil, err
	}
	if descriptor, escErr := s.descriptors.FindByStorageKey(ctx, escaped); escErr == nil {
		return descriptor, nil
	}
	return nil, err
}

// DeleteScene removes the blob first and the descriptor second, so a
// failure leaves at worst an orphaned blob, never a dangling descriptor.
func (s *Service) DeleteScene(ctx context.Context, id string) (err error) {
	defer func(started time.Time) { s.metrics.RecordOperation("delete", outcome(err), started) }(time.Now())

	descriptor, err := s.descriptors.FindByID(ctx, id)
	if err != nil {
		return err
	}
	key := unescapeKey(descriptor.StorageKey)
	log := logrus.WithFields(logrus.Fields{"scene_id": id, "storage_key": key})

	if _, err := s.objects.Metadata(ctx, s.cfg.Bucket, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			log.Error("Scene blob already missing, keeping descriptor")
			return fmt.Errorf("scene %s at %s: %w", id, key, core.ErrBlobMissing)
		}
		return fmt.Errorf("stat scene blob %s: %w", key, err)
	}
	if err := s.objects.Delete(ctx, s.cfg.Bucket, key); err != nil {
		log.WithError(err).Error("Failed to delete scene blob, keeping descriptor")
		return fmt.Errorf("delete scene blob %s: %w: %w", key, core.ErrUpstreamWrite, err)
	}

	if err := s.descriptors.DeleteByID(ctx, id); err != nil {
		log.WithError(err).Error("Scene blob deleted but descriptor delete failed, blob is orphaned")
		return fmt.Errorf("delete scene descriptor: %w: %w", core.ErrUpstreamWrite, err)
	}

	log.Info("Scene deleted successfully")
	return nil
}

// ListDescriptors returns up to limit descriptors; limit <= 0 returns all.
func (s *Service) ListDescriptors(ctx context.Context, limit int) ([]*core.SceneDescriptor, error) {
	return s.descriptors.List(ctx, limit)
}

// Audit reports descriptors whose blob is missing. It never repairs anything.
func (s *Service) Audit(ctx context.Context) (*core.AuditReport, error) {
	descriptors, err := s.descriptors.List(ctx, 0)
	if err != nil {
		return nil, err
	}

	report := &core.AuditReport{Checked: len(descriptors), MissingBlobs: []*core.SceneDescriptor{}}
	missing := make([]bool, len(descriptors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(auditConcurrency)
	for i, descriptor := range descriptors {
		g.Go(func() error {
			_, err := s.objects.Metadata(gctx, s.cfg.Bucket, unescapeKey(descriptor.StorageKey))
			if errors.Is(err, core.ErrNotFound) {
				missing[i] = true
				return nil
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("audit scenes: %w", err)
	}

	for i, descriptor := range descriptors {
		if missing[i] {
			report.MissingBlobs = append(report.MissingBlobs, descriptor)
		}
	}
	if len(report.MissingBlobs) > 0 {
		logrus.WithField("missing", len(report.MissingBlobs)).Warn("Scene audit found descriptors without blobs")
	}
	return report, nil
}
