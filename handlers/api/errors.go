// Package api holds what the API handler packages share.
package api

import (
	"errors"
	"net/http"

	"gamemaker-server/core"

	"github.com/go-chi/render"
)

// StatusFor maps the error taxonomy onto HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrBlobMissing):
		return http.StatusConflict
	case errors.Is(err, core.ErrRejected):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrUpstreamWrite):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error renders {"error": message} with status.
func Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]string{"error": message})
}
