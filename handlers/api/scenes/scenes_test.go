package scenes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gamemaker-server/core"
	scenesvc "gamemaker-server/scenes"
	"gamemaker-server/stores/memory"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(service Service) http.Handler {
	r := chi.NewRouter()
	r.Route("/api/v1/scenes", func(r chi.Router) {
		r.Get("/", HandleListScenes(service))
		r.Post("/", HandleAddScene(service))
		r.Put("/", HandleUpdateScene(service))
		r.Get("/audit", HandleAudit(service))
		r.Get("/{id}", HandleGetScene(service))
		r.Delete("/{id}", HandleDeleteScene(service))
	})
	return r
}

type fixture struct {
	router      http.Handler
	descriptors core.DescriptorStore
	objects     core.ObjectStore
}

func newFixture() *fixture {
	descriptors, objects := memory.NewStore(), memory.NewStore()
	service := scenesvc.NewService(scenesvc.Config{Bucket: "b", URLTimeAlive: time.Hour}, descriptors, objects)
	return &fixture{router: newRouter(service), descriptors: descriptors, objects: objects}
}

func (f *fixture) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestSceneLifecycleOverHTTP(t *testing.T) {
	f := newFixture()

	rec := f.do(t, http.MethodPost, "/api/v1/scenes", `{"name":"Level1","layers":[]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var descriptor core.SceneDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &descriptor))
	assert.NotEmpty(t, descriptor.ID)
	assert.True(t, strings.HasPrefix(descriptor.StorageKey, "scenes/"))

	rec = f.do(t, http.MethodGet, "/api/v1/scenes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []core.SceneDescriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/scenes/"+descriptor.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var scene core.Scene
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &scene))
	assert.Equal(t, "Level1", scene.Name)
	assert.Equal(t, descriptor.StorageKey, scene.StorageKey)

	rec = f.do(t, http.MethodPut, "/api/v1/scenes", `{"name":"Level1-renamed","storageKey":"`+descriptor.StorageKey+`","layers":[]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "true", rec.Body.String())

	rec = f.do(t, http.MethodDelete, "/api/v1/scenes/"+descriptor.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "true", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/scenes/"+descriptor.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSceneErrorsOverHTTP(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	ghost, err := f.descriptors.Insert(ctx, &core.SceneDescriptor{Name: "ghost", StorageKey: "scenes/ghost.json"})
	require.NoError(t, err)
	require.NoError(t, f.objects.Put(ctx, "b", "scenes/bad.json", []byte("not json"), "application/json"))
	bad, err := f.descriptors.Insert(ctx, &core.SceneDescriptor{Name: "bad", StorageKey: "scenes/bad.json"})
	require.NoError(t, err)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		want   string
	}{
		{"blank name", http.MethodPost, "/api/v1/scenes", `{"name":"  "}`, http.StatusBadRequest, ""},
		{"malformed body", http.MethodPost, "/api/v1/scenes", `{`, http.StatusBadRequest, ""},
		{"bad limit", http.MethodGet, "/api/v1/scenes?limit=x", "", http.StatusBadRequest, ""},
		{"blob missing", http.MethodGet, "/api/v1/scenes/" + ghost.ID, "", http.StatusConflict, ""},
		{"decode error", http.MethodGet, "/api/v1/scenes/" + bad.ID, "", http.StatusInternalServerError, ""},
		{"update unknown key", http.MethodPut, "/api/v1/scenes", `{"name":"x","storageKey":"scenes/nope.json"}`, http.StatusNotFound, "false"},
		{"delete unknown id", http.MethodDelete, "/api/v1/scenes/nope", "", http.StatusNotFound, "false"},
		{"delete blob missing", http.MethodDelete, "/api/v1/scenes/" + ghost.ID, "", http.StatusConflict, "false"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			if tt.want != "" {
				assert.JSONEq(t, tt.want, rec.Body.String())
			}
		})
	}
}

func TestAuditOverHTTP(t *testing.T) {
	f := newFixture()
	ghost, err := f.descriptors.Insert(context.Background(), &core.SceneDescriptor{Name: "ghost", StorageKey: "scenes/ghost.json"})
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/api/v1/scenes/audit", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report core.AuditReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 1, report.Checked)
	require.Len(t, report.MissingBlobs, 1)
	assert.Equal(t, ghost.ID, report.MissingBlobs[0].ID)
}
