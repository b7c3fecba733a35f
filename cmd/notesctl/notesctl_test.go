package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonotes/handler"
	"tonotes/model"
	"tonotes/repository"
	"tonotes/search"
	"tonotes/services"
	"tonotes/usecase"
	"tonotes/utils"
)

type testServer struct {
	*httptest.Server
	notes *usecase.NotesService
	// interfere makes the next PUT lose to a concurrent writer.
	interfere atomic.Bool
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.InitValidator()

	store := repository.NewMemoryStore()
	engine := search.NewEngine(search.Options{})
	t.Cleanup(func() { engine.Close() })
	notes := usecase.NewNotesService(store, services.NewSnapshotCodec(""), usecase.WithIndexer(engine))
	searchService := usecase.NewSearchService(engine, store, nil)
	srv := &testServer{notes: notes}

	router := gin.New()
	api := router.Group("/api")
	api.GET("/notes", func(c *gin.Context) { handler.ListNotesHandler(c, notes) })
	api.POST("/notes", func(c *gin.Context) { handler.CreateNoteHandler(c, notes) })
	api.PUT("/notes/:id", func(c *gin.Context) {
		if srv.interfere.CompareAndSwap(true, false) {
			ctx := c.Request.Context()
			if current, err := notes.GetNote(ctx, c.Param("id")); err == nil {
				_, err = notes.UpdateNote(ctx, current.ID, "changed elsewhere", current.Version)
				require.NoError(t, err)
			}
		}
		handler.UpdateNoteHandler(c, notes)
	})
	api.DELETE("/notes/:id", func(c *gin.Context) { handler.DeleteNoteHandler(c, notes) })
	api.POST("/notes/:id/share", func(c *gin.Context) { handler.ShareNoteHandler(c, notes, "https://notes.example") })
	api.GET("/share/:token", func(c *gin.Context) { handler.ResolveShareHandler(c, notes) })
	api.POST("/notes/search", func(c *gin.Context) { handler.SearchNotesHandler(c, searchService) })
	api.GET("/rag/status", func(c *gin.Context) { handler.SearchStatusHandler(c, searchService) })
	api.POST("/rag/refresh", func(c *gin.Context) { handler.RefreshIndexHandler(c, searchService) })

	srv.Server = httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

type result struct {
	out string
	err string
}

func run(t *testing.T, srv *testServer, stdin string, args ...string) (result, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetIn(strings.NewReader(stdin))
	base := []string{"--config", filepath.Join(t.TempDir(), "missing.yaml"), "--server", srv.URL}
	rootCmd.SetArgs(append(base, args...))

	err := rootCmd.ExecuteContext(context.Background())
	return result{out: out.String(), err: errOut.String()}, err
}

var createdRe = regexp.MustCompile(`Created (\S+) \(version 1\)`)

func addNote(t *testing.T, srv *testServer, content string) string {
	t.Helper()
	res, err := run(t, srv, "", "add", content)
	require.NoError(t, err)
	m := createdRe.FindStringSubmatch(res.out)
	require.Len(t, m, 2, res.out)
	return m[1]
}

func listNotes(t *testing.T, srv *testServer) []*model.Note {
	t.Helper()
	res, err := run(t, srv, "", "list", "--json")
	require.NoError(t, err)
	var notes []*model.Note
	require.NoError(t, json.Unmarshal([]byte(res.out), &notes), res.out)
	return notes
}

func TestAddListEdit(t *testing.T) {
	srv := newTestServer(t)
	id := addNote(t, srv, "Buy milk")

	res, err := run(t, srv, "Call mom\n", "add")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Created")

	res, err = run(t, srv, "", "list")
	require.NoError(t, err)
	assert.Contains(t, res.out, id)
	assert.Contains(t, res.out, "Call mom")

	res, err = run(t, srv, "", "edit", id, "--content", "Buy oat milk")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Updated "+id+" (version 2)")

	notes := listNotes(t, srv)
	require.Len(t, notes, 2)
	for _, n := range notes {
		if n.ID == id {
			assert.Equal(t, "Buy oat milk", n.Content)
			assert.Equal(t, int64(2), n.Version)
		}
	}
}

func TestEditRejectsBlankContent(t *testing.T) {
	srv := newTestServer(t)
	id := addNote(t, srv, "Buy milk")

	_, err := run(t, srv, "", "edit", id, "--content", "   ")
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = run(t, srv, "", "edit", "missing-id", "--content", "x")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestEditConflict(t *testing.T) {
	t.Run("no wait", func(t *testing.T) {
		srv := newTestServer(t)
		id := addNote(t, srv, "Buy milk")

		srv.interfere.Store(true)
		res, err := run(t, srv, "", "edit", id, "--content", "Buy oat milk", "--no-wait")
		var conflict *model.VersionConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, int64(1), conflict.Expected)
		assert.Contains(t, res.err, "changed elsewhere")

		notes := listNotes(t, srv)
		require.Len(t, notes, 1)
		assert.Equal(t, "changed elsewhere", notes[0].Content)
	})

	t.Run("waits for reload", func(t *testing.T) {
		srv := newTestServer(t)
		id := addNote(t, srv, "Buy milk")

		srv.interfere.Store(true)
		start := time.Now()
		res, err := run(t, srv, "", "edit", id, "--content", "Buy oat milk")
		assert.ErrorIs(t, err, model.ErrVersionConflict)
		assert.GreaterOrEqual(t, time.Since(start), 2*time.Second)
		assert.Contains(t, res.out, "Reloaded: "+id+" is now at version 2")
	})
}

func TestRemove(t *testing.T) {
	srv := newTestServer(t)
	id := addNote(t, srv, "Buy milk")

	res, err := run(t, srv, "", "rm", id)
	require.NoError(t, err)
	assert.Contains(t, res.out, "Deleted "+id)
	assert.Empty(t, listNotes(t, srv))

	_, err = run(t, srv, "", "rm", id)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestShareAndOpen(t *testing.T) {
	srv := newTestServer(t)
	id := addNote(t, srv, "Buy milk")

	res, err := run(t, srv, "", "share", id)
	require.NoError(t, err)
	serverLink := strings.TrimSpace(res.out)
	assert.True(t, strings.HasPrefix(serverLink, "https://notes.example/share/"), serverLink)

	res, err = run(t, srv, "", "share", id, "--local")
	require.NoError(t, err)
	localLink := strings.TrimSpace(res.out)
	assert.True(t, strings.HasPrefix(localLink, srv.URL+"/share/"), localLink)

	// Links keep the note as it was when shared.
	_, err = run(t, srv, "", "edit", id, "--content", "Buy oat milk")
	require.NoError(t, err)
	_, err = run(t, srv, "", "rm", id)
	require.NoError(t, err)

	for _, args := range [][]string{
		{"open", serverLink, "--json"},
		{"open", localLink, "--json"},
		{"open", shareToken(serverLink), "--json", "--remote"},
	} {
		res, err = run(t, srv, "", args...)
		require.NoError(t, err, args)
		var snapshot model.Snapshot
		require.NoError(t, json.Unmarshal([]byte(res.out), &snapshot))
		assert.Equal(t, id, snapshot.ID)
		assert.Equal(t, "Buy milk", snapshot.Content)
		assert.Equal(t, int64(1), snapshot.Version)
	}

	_, err = run(t, srv, "", "open", "not-a-token")
	assert.ErrorIs(t, err, model.ErrDecode)
	_, err = run(t, srv, "", "open", "not-a-token", "--remote")
	assert.ErrorIs(t, err, model.ErrDecode)
}

func TestSearchStatusRefresh(t *testing.T) {
	srv := newTestServer(t)

	res, err := run(t, srv, "", "status")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Search: loading")

	_, err = run(t, srv, "", "search", "milk")
	assert.ErrorIs(t, err, model.ErrSearchUnavailable)

	id := addNote(t, srv, "Buy milk and eggs at the store")
	res, err = run(t, srv, "", "refresh")
	require.NoError(t, err)
	assert.Contains(t, res.out, "Search index refreshed successfully")
	assert.Contains(t, res.out, "Search: active")

	res, err = run(t, srv, "", "search", "milk", "eggs", "--top-k", "1")
	require.NoError(t, err)
	assert.Contains(t, res.out, "1. "+id)

	res, err = run(t, srv, "", "search", "milk", "--json")
	require.NoError(t, err)
	var result model.SearchResult
	require.NoError(t, json.Unmarshal([]byte(res.out), &result))
	assert.Equal(t, "milk", result.Query)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, id, result.Sources[0].NoteID)
}

func TestUnreachableServer(t *testing.T) {
	srv := newTestServer(t)
	srv.Close()

	_, err := run(t, srv, "", "list", "--timeout", "1s")
	assert.ErrorIs(t, err, model.ErrTransport)
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()

	cfg, err := loadFileConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, defaultServer, cfg.Server)
	assert.Equal(t, defaultTimeout, cfg.Timeout)

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: https://notes.internal
token: abc
timeout: 5s
share_base_url: https://share.internal
signing_key: secret
`), 0o600))
	cfg, err = loadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, fileConfig{
		Server:       "https://notes.internal",
		Token:        "abc",
		Timeout:      5 * time.Second,
		ShareBaseURL: "https://share.internal",
		SigningKey:   "secret",
	}, cfg)

	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))
	_, err = loadFileConfig(path)
	assert.Error(t, err)
}

func TestConfigFileUsedWithoutFlags(t *testing.T) {
	srv := newTestServer(t)
	addNote(t, srv, "Buy milk")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: "+srv.URL+"\n"), 0o600))

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"--config", path, "list"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "Buy milk")
}

func TestShareToken(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"abc123", "abc123"},
		{"  abc123 ", "abc123"},
		{"https://notes.example/share/abc123", "abc123"},
		{"https://notes.example/share/abc123/", "abc123"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, shareToken(tt.in))
		})
	}
}
