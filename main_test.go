package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonotes/config"
	"tonotes/dto"
	"tonotes/model"
	"tonotes/repository"
	"tonotes/search"
)

func newTestRouter(t *testing.T, authSecret string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		MaxBodyBytes:  1 << 20,
		AuthJWTSecret: authSecret,
		ShareBaseURL:  "https://notes.example",
		Search:        config.SearchConfig{RateLimit: 100, RateBurst: 100},
		Telemetry:     config.TelemetryConfig{ServiceName: "tonotes-test"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := search.NewEngine(search.Options{Logger: logger})
	t.Cleanup(func() { engine.Close() })

	return setupRouter(newApp(cfg, logger, repository.NewMemoryStore(), engine))
}

func call(router *gin.Engine, method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRouter_NoteLifecycle(t *testing.T) {
	router := newTestRouter(t, "")

	w := call(router, http.MethodPost, "/api/notes", `{"content":"Buy milk"}`, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var note model.Note
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &note))

	w = call(router, http.MethodPut, "/api/notes/"+note.ID, `{"content":"Buy oat milk","version":1}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	w = call(router, http.MethodPut, "/api/notes/"+note.ID, `{"content":"Buy soy milk","version":1}`, "")
	require.Equal(t, http.StatusConflict, w.Code)

	w = call(router, http.MethodPost, "/api/notes/"+note.ID+"/share", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var share dto.ShareResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &share))
	assert.True(t, strings.HasPrefix(share.URL, "https://notes.example/share/"))

	w = call(router, http.MethodGet, "/api/share/"+share.Token, "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Cache-Control"), "max-age=86400")

	w = call(router, http.MethodGet, "/api/share/garbage!", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = call(router, http.MethodPost, "/api/rag/refresh", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = call(router, http.MethodPost, "/api/notes/search", `{"query":"oat"}`, "")
	require.Equal(t, http.StatusOK, w.Code)
	var env dto.SearchEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)

	assert.Equal(t, http.StatusNoContent, call(router, http.MethodDelete, "/api/notes/"+note.ID, "", "").Code)
}

func TestRouter_IdentityGate(t *testing.T) {
	const secret = "router-secret"
	router := newTestRouter(t, secret)

	assert.Equal(t, http.StatusUnauthorized, call(router, http.MethodGet, "/api/notes", "", "").Code)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "user-1",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/api/notes", "", token).Code)

	// Health and share links stay public.
	assert.Equal(t, http.StatusOK, call(router, http.MethodGet, "/health?system=false", "", "").Code)
	assert.Equal(t, http.StatusBadRequest, call(router, http.MethodGet, "/api/share/abc", "", "").Code)
}

func TestRouter_RejectsNonJSONBodies(t *testing.T) {
	router := newTestRouter(t, "")
	req := httptest.NewRequest(http.MethodPost, "/api/notes", strings.NewReader("content=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, "")
	call(router, http.MethodGet, "/api/notes", "", "")

	w := call(router, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")
}
