package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSpriteFile(t *testing.T) {
	tests := []struct {
		key       string
		name      string
		mime      string
		extension string
	}{
		{"sprites/hero.png", "hero", "image/png", "png"},
		{"sprites/tiles/grass.jpg", "grass", "image/jpeg", "jpg"},
		{"sprites/wall.JPG", "wall", "image/jpeg", "jpg"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			sprite := NewSpriteFile(tt.key)
			assert.Equal(t, tt.key, sprite.ID)
			assert.Equal(t, tt.name, sprite.Name)
			assert.Equal(t, tt.mime, sprite.Mime)
			assert.Equal(t, tt.extension, sprite.Extension)
		})
	}
}

func TestSpriteFileKey(t *testing.T) {
	sprite := &SpriteFile{Name: "hero", Extension: "png"}
	assert.Equal(t, "sprites/hero.png", sprite.Key())
	assert.Equal(t, "thumbnails/sprites/hero.png", ThumbnailKey(sprite.Key()))
}
