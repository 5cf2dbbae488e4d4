package files

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"gamemaker-server/core"
	"gamemaker-server/handlers/api"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
)

// SignedStore serves objects behind URLs it signed itself.
type SignedStore interface {
	Verify(bucket, key string, query url.Values) error
	Get(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Metadata(ctx context.Context, bucket, key string) (*core.ObjectInfo, error)
}

// HandleDownload serves /files/{bucket}/* after checking the signature and
// validity window of the request URL.
func HandleDownload(store SignedStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bucket := chi.URLParam(r, "bucket")
		key := chi.URLParam(r, "*")
		if unescaped, err := url.PathUnescape(key); err == nil {
			key = unescaped
		}
		log := logrus.WithFields(logrus.Fields{"bucket": bucket, "key": key})

		if err := store.Verify(bucket, key, r.URL.Query()); err != nil {
			log.WithError(err).Warn("Rejected signed download")
			api.Error(w, r, http.StatusForbidden, err.Error())
			return
		}

		info, err := store.Metadata(r.Context(), bucket, key)
		if err != nil {
			status := api.StatusFor(err)
			if !errors.Is(err, core.ErrNotFound) {
				log.WithError(err).Error("Failed to stat object")
			}
			api.Error(w, r, status, http.StatusText(status))
			return
		}

		body, err := store.Get(r.Context(), bucket, key)
		if err != nil {
			status := api.StatusFor(err)
			api.Error(w, r, status, http.StatusText(status))
			return
		}
		defer body.Close()

		if info.ContentType != "" {
			w.Header().Set("Content-Type", info.ContentType)
		}
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		if _, err := io.Copy(w, body); err != nil {
			log.WithError(err).Warn("Failed to stream object")
		}
	}
}
