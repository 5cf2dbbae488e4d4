package scenes

import (
	"context"
	"net/http"
	"strconv"

	"gamemaker-server/core"
	"gamemaker-server/handlers/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Service is the scene persistence API the handlers call.
type Service interface {
	GetScene(ctx context.Context, id string) (*core.Scene, error)
	AddScene(ctx context.Context, scene *core.Scene) (*core.SceneDescriptor, error)
	UpdateScene(ctx context.Context, scene *core.Scene) error
	DeleteScene(ctx context.Context, id string) error
	ListDescriptors(ctx context.Context, limit int) ([]*core.SceneDescriptor, error)
	Audit(ctx context.Context) (*core.AuditReport, error)
}

func HandleListScenes(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil {
				api.Error(w, r, http.StatusBadRequest, "limit must be an integer")
				return
			}
			limit = n
		}

		descriptors, err := service.ListDescriptors(r.Context(), limit)
		if err != nil {
			logrus.WithError(err).Error("Failed to list scenes")
			api.Error(w, r, http.StatusInternalServerError, "Failed to list scenes")
			return
		}
		if descriptors == nil {
			descriptors = []*core.SceneDescriptor{}
		}

		render.JSON(w, r, descriptors)
	}
}

func HandleGetScene(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		scene, err := service.GetScene(r.Context(), id)
		if err != nil {
			status := api.StatusFor(err)
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"scene_id": id,
			}).Warn("Failed to get scene")
			api.Error(w, r, status, http.StatusText(status))
			return
		}

		render.JSON(w, r, scene)
	}
}

func HandleAddScene(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var scene core.Scene
		if err := render.DecodeJSON(r.Body, &scene); err != nil {
			api.Error(w, r, http.StatusBadRequest, "Invalid scene body")
			return
		}

		descriptor, err := service.AddScene(r.Context(), &scene)
		if err != nil {
			status := api.StatusFor(err)
			logrus.WithFields(logrus.Fields{
				"error": err,
				"name":  scene.Name,
			}).Error("Failed to add scene")
			api.Error(w, r, status, http.StatusText(status))
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, descriptor)
	}
}

// HandleUpdateScene answers true on success and false otherwise, with a
// status code naming the failure.
func HandleUpdateScene(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var scene core.Scene
		if err := render.DecodeJSON(r.Body, &scene); err != nil {
			api.Error(w, r, http.StatusBadRequest, "Invalid scene body")
			return
		}

		if err := service.UpdateScene(r.Context(), &scene); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":       err,
				"storage_key": scene.StorageKey,
			}).Warn("Failed to update scene")
			render.Status(r, api.StatusFor(err))
			render.JSON(w, r, false)
			return
		}

		render.JSON(w, r, true)
	}
}

func HandleDeleteScene(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		if err := service.DeleteScene(r.Context(), id); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"scene_id": id,
			}).Warn("Failed to delete scene")
			render.Status(r, api.StatusFor(err))
			render.JSON(w, r, false)
			return
		}

		render.JSON(w, r, true)
	}
}

func HandleAudit(service Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := service.Audit(r.Context())
		if err != nil {
			logrus.WithError(err).Error("Failed to audit scenes")
			api.Error(w, r, http.StatusInternalServerError, "Failed to audit scenes")
			return
		}
		render.JSON(w, r, report)
	}
}
