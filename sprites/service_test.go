package sprites

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"testing"
	"time"

	"gamemaker-server/core"
	"gamemaker-server/stores/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bucket = "cloud-game-maker"

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, 0, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func newTestService() (*Service, core.ObjectStore) {
	store := memory.NewStore()
	return NewService(Config{Bucket: bucket, URLTimeAlive: 2 * time.Hour}, store), store
}

func TestThumbnail(t *testing.T) {
	for name, content := range map[string][]byte{
		"png":  pngBytes(t, 320, 240),
		"jpeg": jpegBytes(t, 16, 16),
	} {
		t.Run(name, func(t *testing.T) {
			thumb, err := Thumbnail(content, ThumbnailWidth, ThumbnailHeight)
			require.NoError(t, err)

			img, format, err := image.Decode(bytes.NewReader(thumb))
			require.NoError(t, err)
			assert.Equal(t, "png", format)
			assert.Equal(t, 100, img.Bounds().Dx())
			assert.Equal(t, 100, img.Bounds().Dy())
		})
	}

	_, err := Thumbnail([]byte("not an image"), 100, 100)
	assert.ErrorIs(t, err, core.ErrRejected)
}

func TestAddAndList(t *testing.T) {
	service, store := newTestService()
	ctx := context.Background()

	key, err := service.Add(ctx, &core.SpriteFile{Name: "hero", Extension: "PNG"}, pngBytes(t, 32, 32))
	require.NoError(t, err)
	assert.Equal(t, "sprites/hero.png", key)

	key, err = service.Add(ctx, &core.SpriteFile{Name: "tree", Extension: "jpeg"}, jpegBytes(t, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, "sprites/tree.jpg", key)

	original, err := store.Metadata(ctx, bucket, "sprites/hero.png")
	require.NoError(t, err)
	assert.Equal(t, "image/png", original.ContentType)

	thumb, err := store.Get(ctx, bucket, "thumbnails/sprites/hero.png")
	require.NoError(t, err)
	data, err := io.ReadAll(thumb)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.Width)

	files, err := service.List(ctx)
	require.NoError(t, err)
	require.Len(t, files, 2)

	hero := files[0]
	assert.Equal(t, "sprites/hero.png", hero.ID)
	assert.Equal(t, "hero", hero.Name)
	assert.Equal(t, "image/png", hero.Mime)
	assert.Contains(t, hero.OriginalURL, "/sprites/hero.png?")
	assert.Contains(t, hero.ThumbnailURL, "/thumbnails/sprites/hero.png?")
	assert.Equal(t, "jpg", files[1].Extension)
}

func TestAddRejectsBadInput(t *testing.T) {
	service, store := newTestService()
	ctx := context.Background()
	content := pngBytes(t, 4, 4)

	cases := map[string]struct {
		sprite  *core.SpriteFile
		content []byte
	}{
		"nil sprite":    {nil, content},
		"blank name":    {&core.SpriteFile{Name: " ", Extension: "png"}, content},
		"path in name":  {&core.SpriteFile{Name: "../x", Extension: "png"}, content},
		"bad extension": {&core.SpriteFile{Name: "x", Extension: "gif"}, content},
		"empty content": {&core.SpriteFile{Name: "x", Extension: "png"}, nil},
		"not an image":  {&core.SpriteFile{Name: "x", Extension: "png"}, []byte("text")},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := service.Add(ctx, tc.sprite, tc.content)
			assert.ErrorIs(t, err, core.ErrRejected)
		})
	}

	objects, err := store.ListObjects(ctx, bucket, "")
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestDelete(t *testing.T) {
	service, store := newTestService()
	ctx := context.Background()

	_, err := service.Add(ctx, &core.SpriteFile{Name: "hero", Extension: "png"}, pngBytes(t, 8, 8))
	require.NoError(t, err)

	require.NoError(t, service.Delete(ctx, "sprites%2Fhero.png"))

	objects, err := store.ListObjects(ctx, bucket, "")
	require.NoError(t, err)
	assert.Empty(t, objects)

	assert.ErrorIs(t, service.Delete(ctx, "sprites/hero.png"), core.ErrNotFound)
}

func TestUpdate(t *testing.T) {
	service, store := newTestService()
	ctx := context.Background()

	_, err := service.Add(ctx, &core.SpriteFile{Name: "hero", Extension: "png"}, pngBytes(t, 8, 8))
	require.NoError(t, err)

	_, err = service.Update(ctx, "sprites/hero.png", &core.SpriteFile{Name: "hero2", Extension: "png"}, []byte("garbage"))
	assert.ErrorIs(t, err, core.ErrRejected)
	_, err = store.Metadata(ctx, bucket, "sprites/hero.png")
	require.NoError(t, err, "a rejected update keeps the old sprite")

	key, err := service.Update(ctx, "sprites/hero.png", &core.SpriteFile{Name: "hero2", Extension: "png"}, pngBytes(t, 8, 8))
	require.NoError(t, err)
	assert.Equal(t, "sprites/hero2.png", key)

	_, err = store.Metadata(ctx, bucket, "sprites/hero.png")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = store.Metadata(ctx, bucket, "thumbnails/sprites/hero2.png")
	assert.NoError(t, err)

	_, err = service.Update(ctx, "sprites/missing.png", &core.SpriteFile{Name: "x", Extension: "png"}, pngBytes(t, 8, 8))
	assert.ErrorIs(t, err, core.ErrNotFound)
}
