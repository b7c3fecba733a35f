package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonotes/dto"
	"tonotes/model"
	"tonotes/repository"
	"tonotes/search"
	"tonotes/services"
	"tonotes/usecase"
	"tonotes/utils"
)

type testEnv struct {
	router *gin.Engine
	notes  *usecase.NotesService
	search *usecase.SearchService
	engine *search.Engine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.InitValidator()

	store := repository.NewMemoryStore()
	engine := search.NewEngine(search.Options{})
	t.Cleanup(func() { engine.Close() })

	notesService := usecase.NewNotesService(store, services.NewSnapshotCodec(""), usecase.WithIndexer(engine))
	searchService := usecase.NewSearchService(engine, store, nil)

	router := gin.New()
	api := router.Group("/api")
	api.GET("/notes", func(c *gin.Context) { ListNotesHandler(c, notesService) })
	api.POST("/notes", func(c *gin.Context) { CreateNoteHandler(c, notesService) })
	api.GET("/notes/:id", func(c *gin.Context) { GetNoteHandler(c, notesService) })
	api.PUT("/notes/:id", func(c *gin.Context) { UpdateNoteHandler(c, notesService) })
	api.DELETE("/notes/:id", func(c *gin.Context) { DeleteNoteHandler(c, notesService) })
	api.POST("/notes/:id/share", func(c *gin.Context) { ShareNoteHandler(c, notesService, "https://notes.example") })
	api.GET("/share/:token", func(c *gin.Context) { ResolveShareHandler(c, notesService) })
	api.POST("/notes/search", func(c *gin.Context) { SearchNotesHandler(c, searchService) })
	api.GET("/rag/status", func(c *gin.Context) { SearchStatusHandler(c, searchService) })
	api.POST("/rag/refresh", func(c *gin.Context) { RefreshIndexHandler(c, searchService) })
	api.POST("/rag/evaluate", func(c *gin.Context) { EvaluateSearchHandler(c, searchService) })
	router.GET("/health", NewHealthHandler(notesService, searchService).GetHealth)

	return &testEnv{router: router, notes: notesService, search: searchService, engine: engine}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestCreateNoteHandler(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name         string
		body         string
		expectedCode int
		expectedErr  string
	}{
		{"Successful Creation", `{"content":"  Buy milk "}`, http.StatusCreated, ""},
		{"Empty Content", `{"content":""}`, http.StatusBadRequest, "note content cannot be empty"},
		{"Whitespace Content", `{"content":"   \n"}`, http.StatusBadRequest, "note content cannot be empty"},
		{"Missing Content", `{}`, http.StatusBadRequest, "note content cannot be empty"},
		{"Malformed JSON", `{"content":`, http.StatusBadRequest, "invalid request body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/notes", tt.body)
			require.Equal(t, tt.expectedCode, w.Code, w.Body.String())

			if tt.expectedErr != "" {
				resp := decode[utils.Response](t, w)
				assert.Equal(t, tt.expectedErr, resp.Error)
				return
			}
			note := decode[model.Note](t, w)
			assert.NotEmpty(t, note.ID)
			assert.Equal(t, "Buy milk", note.Content)
			assert.Equal(t, int64(1), note.Version)
		})
	}
}

func TestUpdateNoteHandler(t *testing.T) {
	env := newTestEnv(t)
	created := decode[model.Note](t, env.do(t, http.MethodPost, "/api/notes", `{"content":"Buy milk"}`))
	path := "/api/notes/" + created.ID

	w := env.do(t, http.MethodPut, path, `{"content":"Buy milk and eggs","version":1}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[model.Note](t, w)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, "Buy milk and eggs", updated.Content)

	t.Run("stale version returns 409 with the current note", func(t *testing.T) {
		w := env.do(t, http.MethodPut, path, `{"content":"Buy oat milk","version":1}`)
		require.Equal(t, http.StatusConflict, w.Code)

		var resp struct {
			Error string     `json:"error"`
			Data  model.Note `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Error)
		assert.Equal(t, int64(2), resp.Data.Version)
		assert.Equal(t, "Buy milk and eggs", resp.Data.Content)
	})

	t.Run("missing version is a validation error", func(t *testing.T) {
		w := env.do(t, http.MethodPut, path, `{"content":"x"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown note", func(t *testing.T) {
		w := env.do(t, http.MethodPut, "/api/notes/nope", `{"content":"x","version":1}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListGetDeleteHandlers(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/notes", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	first := decode[model.Note](t, env.do(t, http.MethodPost, "/api/notes", `{"content":"first"}`))
	time.Sleep(2 * time.Millisecond)
	second := decode[model.Note](t, env.do(t, http.MethodPost, "/api/notes", `{"content":"second"}`))

	list := decode[[]model.Note](t, env.do(t, http.MethodGet, "/api/notes", ""))
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	got := decode[model.Note](t, env.do(t, http.MethodGet, "/api/notes/"+first.ID, ""))
	assert.Equal(t, "first", got.Content)

	w = env.do(t, http.MethodDelete, "/api/notes/"+first.ID, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/notes/"+first.ID, "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/notes/"+first.ID, "").Code)
}

func TestShareHandlers(t *testing.T) {
	env := newTestEnv(t)
	note := decode[model.Note](t, env.do(t, http.MethodPost, "/api/notes", `{"content":"Hello"}`))

	w := env.do(t, http.MethodPost, "/api/notes/"+note.ID+"/share", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	share := decode[dto.ShareResponse](t, w)
	assert.Equal(t, "https://notes.example/share/"+share.Token, share.URL)
	assert.Equal(t, note.ID, share.Snapshot.ID)

	// Edits and deletion do not affect the shared snapshot.
	env.do(t, http.MethodPut, "/api/notes/"+note.ID, `{"content":"Changed","version":1}`)
	env.do(t, http.MethodDelete, "/api/notes/"+note.ID, "")

	w = env.do(t, http.MethodGet, "/api/share/"+share.Token, "")
	require.Equal(t, http.StatusOK, w.Code)
	snapshot := decode[model.Snapshot](t, w)
	assert.Equal(t, "Hello", snapshot.Content)
	assert.Equal(t, int64(1), snapshot.Version)

	w = env.do(t, http.MethodGet, "/api/share/not-a-token", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid share link or corrupted data", decode[utils.Response](t, w).Error)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/notes/missing/share", "").Code)
}

func TestSearchHandlers(t *testing.T) {
	env := newTestEnv(t)
	note := decode[model.Note](t, env.do(t, http.MethodPost, "/api/notes", `{"content":"Buy milk and eggs"}`))

	status := decode[model.ServiceStatus](t, env.do(t, http.MethodGet, "/api/rag/status", ""))
	assert.Equal(t, model.StateLoading, status.State)

	t.Run("search before the index is ready", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/notes/search", `{"query":"milk"}`)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[dto.SearchEnvelope](t, w)
		assert.False(t, resp.Success)
		assert.Nil(t, resp.Data)
		assert.Contains(t, resp.Error, "loading")
	})

	w := env.do(t, http.MethodPost, "/api/rag/refresh", "")
	require.Equal(t, http.StatusOK, w.Code)
	refresh := decode[dto.RefreshResponse](t, w)
	assert.Equal(t, model.StateActive, refresh.Status.State)
	assert.Equal(t, 1, refresh.Status.IndexedChunks)

	t.Run("successful search", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/notes/search", `{"query":"milk","top_k":3}`)
		require.Equal(t, http.StatusOK, w.Code)
		resp := decode[dto.SearchEnvelope](t, w)
		require.True(t, resp.Success)
		require.Len(t, resp.Data.Sources, 1)
		assert.Equal(t, note.ID, resp.Data.Sources[0].NoteID)
		assert.Equal(t, "Buy milk and eggs", resp.Data.Sources[0].Preview)
	})

	t.Run("new notes are searchable without a refresh", func(t *testing.T) {
		env.do(t, http.MethodPost, "/api/notes", `{"content":"Call the plumber"}`)
		resp := decode[dto.SearchEnvelope](t, env.do(t, http.MethodPost, "/api/notes/search", `{"query":"plumber"}`))
		require.True(t, resp.Success)
		assert.Len(t, resp.Data.Sources, 1)
	})

	t.Run("blank query", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/notes/search", `{"query":"   "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.False(t, decode[dto.SearchEnvelope](t, w).Success)
	})

	t.Run("top_k out of range", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/notes/search", `{"query":"milk","top_k":99}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("evaluate", func(t *testing.T) {
		w := env.do(t, http.MethodPost, "/api/rag/evaluate",
			`{"query":"milk","expected_note_ids":["`+note.ID+`"]}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decode[model.EvaluationResult](t, w)
		assert.InDelta(t, 1.0, res.Precision, 1e-9)
		assert.InDelta(t, 1.0, res.Recall, 1e-9)
	})
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.notes.CreateNote(context.Background(), "one")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/health?system=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[dto.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.Notes)
	assert.Equal(t, "loading", resp.Search)
	assert.Nil(t, resp.System)
	assert.True(t, strings.HasSuffix(resp.Timestamp, "Z"))
}
