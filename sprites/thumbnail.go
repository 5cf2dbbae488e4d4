package sprites

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"gamemaker-server/core"

	"golang.org/x/image/draw"
)

// Thumbnail edge length in pixels.
const (
	ThumbnailWidth  = 100
	ThumbnailHeight = 100
)

// Thumbnail decodes a PNG or JPEG image and returns it scaled to
// width x height, encoded as PNG.
func Thumbnail(content []byte, width, height int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("decode sprite image: %w: %w", core.ErrRejected, err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
