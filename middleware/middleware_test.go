package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gamemaker-server/handlers/auth"
	"gamemaker-server/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthJWT(t *testing.T) {
	secret := []byte("secret")
	var seen *auth.AppClaims
	handler := AuthJWT(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = r.Context().Value(auth.ClaimsContextKey).(*auth.AppClaims)
		w.WriteHeader(http.StatusNoContent)
	}))

	valid, err := auth.CreateJWT(secret, "user-1", "alice", time.Hour)
	require.NoError(t, err)
	forged, err := auth.CreateJWT([]byte("other"), "user-1", "alice", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized},
		{"forged token", "Bearer " + forged, http.StatusUnauthorized},
		{"valid token", "Bearer " + valid, http.StatusNoContent},
		{"lower-case scheme", "bearer " + valid, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scenes", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				require.NotNil(t, seen)
				assert.Equal(t, "user-1", seen.Subject)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.New("test", prometheus.NewRegistry())
	handler := Metrics(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/a", "/b", "/missing"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "404")))
}
