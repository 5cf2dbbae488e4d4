// Package codec converts scene graphs to and from their stored JSON form.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gamemaker-server/core"
)

// ContentType is the media type of encoded scenes.
const ContentType = "application/json"

// storedScene is the on-disk shape. Sprites is the deprecated scene-level
// sprite map; it is only read, never written.
type storedScene struct {
	core.Scene
	Sprites map[string]*core.Sprite `json:"sprites,omitempty"`
}

// Encode serializes a scene with lower camel-case keys.
func Encode(scene *core.Scene) ([]byte, error) {
	if scene == nil {
		return nil, fmt.Errorf("encode scene: nil scene")
	}
	// Grid payloads and sprite URLs are stored without HTML escaping.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(scene); err != nil {
		return nil, fmt.Errorf("encode scene %q: %w", scene.Name, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a stored scene. Content that is not a JSON object matching
// the scene schema yields an error wrapping core.ErrDecode.
func Decode(data []byte) (*core.Scene, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: content is not a JSON object", core.ErrDecode)
	}

	var stored storedScene
	if err := json.Unmarshal(trimmed, &stored); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrDecode, err)
	}

	scene := stored.Scene
	for i, layer := range scene.Layers {
		if layer == nil {
			return nil, fmt.Errorf("%w: layer %d is null", core.ErrDecode, i)
		}
	}
	mergeLegacySprites(&scene, stored.Sprites)

	return &scene, nil
}

// mergeLegacySprites moves a scene-level sprite map into every layer that
// does not already define the same sprite id.
func mergeLegacySprites(scene *core.Scene, sprites map[string]*core.Sprite) {
	if len(sprites) == 0 {
		return
	}
	for _, layer := range scene.Layers {
		if layer.Sprites == nil {
			layer.Sprites = make(map[string]*core.Sprite, len(sprites))
		}
		for id, sprite := range sprites {
			if _, ok := layer.Sprites[id]; ok || sprite == nil {
				continue
			}
			copied := *sprite
			layer.Sprites[id] = &copied
		}
	}
}
