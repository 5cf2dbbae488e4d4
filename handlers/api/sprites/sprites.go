package sprites

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"gamemaker-server/core"
	"gamemaker-server/handlers/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// MaxUploadSize bounds a sprite upload request.
const MaxUploadSize = 10 << 20

// Library is the sprite library API the handlers call.
type Library interface {
	List(ctx context.Context) ([]*core.SpriteFile, error)
	Add(ctx context.Context, sprite *core.SpriteFile, content []byte) (string, error)
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, originalID string, sprite *core.SpriteFile, content []byte) (string, error)
}

func HandleListSprites(library Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		files, err := library.List(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to list sprites")
			api.Error(w, r, http.StatusInternalServerError, "Failed to list sprites")
			return
		}
		render.JSON(w, r, files)
	}
}

// readUpload extracts the "file" part and the "spriteJson" field of a
// multipart sprite upload.
func readUpload(w http.ResponseWriter, r *http.Request) (*core.SpriteFile, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		api.Error(w, r, http.StatusBadRequest, "Invalid multipart form")
		return nil, nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		api.Error(w, r, http.StatusBadRequest, "file is required")
		return nil, nil, false
	}
	defer file.Close()

	var sprite core.SpriteFile
	if err := json.Unmarshal([]byte(r.FormValue("spriteJson")), &sprite); err != nil {
		api.Error(w, r, http.StatusBadRequest, "spriteJson is required")
		return nil, nil, false
	}

	content, err := io.ReadAll(file)
	if err != nil {
		logrus.WithError(err).Error("Failed to read request body")
		api.Error(w, r, http.StatusInternalServerError, "Failed to read request body")
		return nil, nil, false
	}
	return &sprite, content, true
}

func HandleAddSprite(library Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sprite, content, ok := readUpload(w, r)
		if !ok {
			return
		}

		key, err := library.Add(r.Context(), sprite, content)
		if err != nil {
			status := api.StatusFor(err)
			logrus.WithFields(logrus.Fields{
				"error": err,
				"name":  sprite.Name,
			}).Warn("Failed to add sprite")
			api.Error(w, r, status, http.StatusText(status))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, key)
	}
}

func HandleUpdateSprite(library Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		originalID := chi.URLParam(r, "id")
		sprite, content, ok := readUpload(w, r)
		if !ok {
			return
		}

		key, err := library.Update(r.Context(), originalID, sprite, content)
		if err != nil {
			status := api.StatusFor(err)
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"sprite_id": originalID,
			}).Warn("Failed to update sprite")
			api.Error(w, r, status, http.StatusText(status))
			return
		}

		render.JSON(w, r, key)
	}
}

func HandleDeleteSprite(library Library) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := library.Delete(r.Context(), id); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"sprite_id": id,
			}).Warn("Failed to delete sprite")
			render.Status(r, api.StatusFor(err))
			render.JSON(w, r, false)
			return
		}

		render.JSON(w, r, true)
	}
}
