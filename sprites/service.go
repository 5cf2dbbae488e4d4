// Package sprites manages the sprite library: original images under
// sprites/ and their thumbnails under thumbnails/sprites/.
package sprites

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"net/url"
	"strings"
	"time"

	"gamemaker-server/core"

	"github.com/sirupsen/logrus"
)

// Config is fixed for the lifetime of a Service.
type Config struct {
	Bucket       string
	URLTimeAlive time.Duration
}

// Service lists, uploads and removes sprites.
type Service struct {
	cfg     Config
	objects core.ObjectStore
}

// NewService creates a sprite library over objects.
func NewService(cfg Config, objects core.ObjectStore) *Service {
	return &Service{cfg: cfg, objects: objects}
}

// List returns every sprite with freshly signed original and thumbnail URLs.
func (s *Service) List(ctx context.Context) ([]*core.SpriteFile, error) {
	infos, err := s.objects.ListObjects(ctx, s.cfg.Bucket, core.SpriteFolder+"/")
	if err != nil {
		return nil, fmt.Errorf("list sprites: %w", err)
	}

	files := make([]*core.SpriteFile, 0, len(infos))
	for _, info := range infos {
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		file := core.NewSpriteFile(info.Key)

		if file.OriginalURL, err = s.objects.PreSignedURL(ctx, s.cfg.Bucket, info.Key, s.cfg.URLTimeAlive); err != nil {
			return nil, fmt.Errorf("sign sprite %s: %w", info.Key, err)
		}
		if file.ThumbnailURL, err = s.objects.PreSignedURL(ctx, s.cfg.Bucket, core.ThumbnailKey(info.Key), s.cfg.URLTimeAlive); err != nil {
			return nil, fmt.Errorf("sign thumbnail of %s: %w", info.Key, err)
		}
		files = append(files, file)
	}

	logrus.Debugf("Listed %d sprites", len(files))
	return files, nil
}

// normalize validates sprite metadata and fills in the mime type.
func normalize(sprite *core.SpriteFile) error {
	if sprite == nil || strings.TrimSpace(sprite.Name) == "" {
		return fmt.Errorf("sprite name is blank: %w", core.ErrRejected)
	}
	if strings.ContainsAny(sprite.Name, `/\`) {
		return fmt.Errorf("sprite name %q contains a path separator: %w", sprite.Name, core.ErrRejected)
	}

	switch strings.ToLower(sprite.Extension) {
	case "png":
		sprite.Extension, sprite.Mime = "png", "image/png"
	case "jpg", "jpeg":
		sprite.Extension, sprite.Mime = "jpg", "image/jpeg"
	default:
		return fmt.Errorf("unsupported sprite extension %q: %w", sprite.Extension, core.ErrRejected)
	}
	return nil
}

// Add uploads the original image and a 100x100 PNG thumbnail. It returns
// the key of the original.
func (s *Service) Add(ctx context.Context, sprite *core.SpriteFile, content []byte) (string, error) {
	if err := normalize(sprite); err != nil {
		return "", err
	}
	if len(content) == 0 {
		return "", fmt.Errorf("sprite %s has no content: %w", sprite.Name, core.ErrRejected)
	}

	thumbnail, err := Thumbnail(content, ThumbnailWidth, ThumbnailHeight)
	if err != nil {
		return "", err
	}

	key := sprite.Key()
	log := logrus.WithFields(logrus.Fields{"sprite_key": key, "data_length": len(content)})

	if err := s.objects.Put(ctx, s.cfg.Bucket, key, content, sprite.Mime); err != nil {
		log.WithError(err).Error("Failed to upload sprite")
		return "", fmt.Errorf("upload sprite %s: %w: %w", key, core.ErrUpstreamWrite, err)
	}
	if err := s.objects.Put(ctx, s.cfg.Bucket, core.ThumbnailKey(key), thumbnail, "image/png"); err != nil {
		log.WithError(err).Error("Failed to upload sprite thumbnail")
		return "", fmt.Errorf("upload thumbnail of %s: %w: %w", key, core.ErrUpstreamWrite, err)
	}

	log.Info("Sprite uploaded successfully")
	return key, nil
}

// Delete removes a sprite by key. The key may be percent-encoded. A missing
// original is reported as core.ErrNotFound; the thumbnail is removed on a
// best-effort basis.
func (s *Service) Delete(ctx context.Context, id string) error {
	key := id
	if unescaped, err := url.QueryUnescape(id); err == nil {
		key = unescaped
	}
	log := logrus.WithField("sprite_key", key)

	if _, err := s.objects.Metadata(ctx, s.cfg.Bucket, key); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			log.Warn("Sprite not found for deletion")
		}
		return err
	}
	if err := s.objects.Delete(ctx, s.cfg.Bucket, key); err != nil {
		log.WithError(err).Error("Failed to delete sprite")
		return fmt.Errorf("delete sprite %s: %w: %w", key, core.ErrUpstreamWrite, err)
	}
	if err := s.objects.Delete(ctx, s.cfg.Bucket, core.ThumbnailKey(key)); err != nil {
		log.WithError(err).Warn("Failed to delete sprite thumbnail")
	}

	log.Info("Sprite deleted successfully")
	return nil
}

// Update replaces the sprite at originalID with a new upload. The new
// content is checked before the old sprite is removed.
func (s *Service) Update(ctx context.Context, originalID string, sprite *core.SpriteFile, content []byte) (string, error) {
	if err := normalize(sprite); err != nil {
		return "", err
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(content)); err != nil {
		return "", fmt.Errorf("decode sprite image: %w: %w", core.ErrRejected, err)
	}
	if err := s.Delete(ctx, originalID); err != nil {
		return "", err
	}
	return s.Add(ctx, sprite, content)
}
