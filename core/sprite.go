package core

import (
	"path"
	"strings"
)

type (
	// SpriteFile is an entry of the sprite library. ID is the object key of
	// the original image.
	SpriteFile struct {
		ID           string `json:"id"`
		Originated   string `json:"originated,omitempty"`
		Name         string `json:"name"`
		Mime         string `json:"mime"`
		Extension    string `json:"extension"`
		OriginalURL  string `json:"originalUrl,omitempty"`
		ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	}
)

// NewSpriteFile derives name, mime and extension from a sprite object key
// such as "sprites/hero.png".
func NewSpriteFile(key string) *SpriteFile {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(key), "."))
	name := strings.TrimSuffix(path.Base(key), path.Ext(key))

	sprite := &SpriteFile{
		ID:        key,
		Name:      name,
		Mime:      "image/jpeg",
		Extension: "jpg",
	}
	if ext == "png" {
		sprite.Mime = "image/png"
		sprite.Extension = "png"
	}
	return sprite
}

// Key returns the object key a sprite is uploaded to.
func (s *SpriteFile) Key() string {
	return SpriteFolder + "/" + s.Name + "." + s.Extension
}
