package workspace

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonotes/model"
)

func TestSearch_UnsuccessfulEnvelope(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.set(func(f *fakeAPI) {
		f.searchFn = func(string, int) (*model.SearchResult, error) {
			return nil, &model.SearchError{Detail: "index not ready"}
		}
	})
	s, p := newTestSession(t, api)

	result, err := s.Search.Search(ctx, "milk", 3)
	assert.Nil(t, result)

	var searchErr *model.SearchError
	require.ErrorAs(t, err, &searchErr)
	assert.Equal(t, "index not ready", searchErr.Detail)
	assert.Nil(t, s.Search.Results())
	assert.Equal(t, model.StateLoading, s.Search.Status().State, "reachable service keeps its status")
	assert.Equal(t, 1, p.count("error", ""))
}

func TestSearch_UnreachableMarksError(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"http status", &model.SearchError{Status: 502, Detail: "bad gateway"}},
		{"transport", &model.SearchError{Detail: "dial", Err: model.ErrTransport}},
		{"foreign error", fmt.Errorf("%w: reset", model.ErrTransport)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newFakeAPI()
			s, _ := newTestSession(t, api)

			_, err := s.Search.Search(context.Background(), "milk", 3)
			require.NoError(t, err)
			require.NotNil(t, s.Search.Results())

			api.set(func(f *fakeAPI) {
				f.searchFn = func(string, int) (*model.SearchResult, error) { return nil, tt.err }
			})
			_, err = s.Search.Search(context.Background(), "milk", 3)
			require.Error(t, err)
			assert.Nil(t, s.Search.Results(), "results cleared on failure")
			assert.Equal(t, model.StateError, s.Search.Status().State)
			assert.NotEmpty(t, s.Search.Status().Reason)
		})
	}
}

func TestSearch_SuccessReplacesResults(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	api.set(func(f *fakeAPI) {
		f.searchFn = func(query string, topK int) (*model.SearchResult, error) {
			return &model.SearchResult{
				Query:   query,
				Sources: []model.SearchSource{{NoteID: query, Similarity: 0.9}},
			}, nil
		}
	})
	s, p := newTestSession(t, api)

	first, err := s.Search.Search(ctx, "n1", 3)
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, s.Search.Status().State)

	second, err := s.Search.Search(ctx, "n2", 3)
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	require.Len(t, s.Search.Results().Sources, 1)
	assert.Equal(t, "n2", s.Search.Results().Sources[0].NoteID)
	assert.Equal(t, 2, p.count("search", ""))

	s.Search.ClearResults()
	assert.Nil(t, s.Search.Results())
}

// A slow response to an earlier query must not replace the answer to a
// later one.
func TestSearch_LateResponseDoesNotApply(t *testing.T) {
	tests := []struct {
		name   string
		oldErr error
	}{
		{"late success", nil},
		{"late failure", &model.SearchError{Status: 502, Detail: "bad gateway"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			started := make(chan struct{})
			release := make(chan struct{})
			api := newFakeAPI()
			api.set(func(f *fakeAPI) {
				f.searchFn = func(query string, topK int) (*model.SearchResult, error) {
					if query == "old" {
						close(started)
						<-release
						if tt.oldErr != nil {
							return nil, tt.oldErr
						}
					}
					return &model.SearchResult{
						Query:   query,
						Sources: []model.SearchSource{{NoteID: query, Similarity: 0.9}},
					}, nil
				}
			})
			s, p := newTestSession(t, api)

			type outcome struct {
				result *model.SearchResult
				err    error
			}
			oldDone := make(chan outcome, 1)
			go func() {
				result, err := s.Search.Search(ctx, "old", 3)
				oldDone <- outcome{result, err}
			}()
			<-started

			_, err := s.Search.Search(ctx, "new", 3)
			require.NoError(t, err)
			close(release)

			var old outcome
			select {
			case old = <-oldDone:
			case <-time.After(time.Second):
				t.Fatal("old query never returned")
			}
			if tt.oldErr != nil {
				assert.Error(t, old.err)
			} else {
				require.NoError(t, old.err)
				assert.Equal(t, "old", old.result.Query, "caller still gets its own answer")
			}

			require.NotNil(t, s.Search.Results())
			assert.Equal(t, "new", s.Search.Results().Query)
			assert.Equal(t, model.StateActive, s.Search.Status().State)
			assert.Equal(t, 1, p.count("search", ""))
			assert.Zero(t, p.count("error", ""))
		})
	}
}

func TestSearch_LateResponseAfterClear(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	api := newFakeAPI()
	api.set(func(f *fakeAPI) {
		f.searchFn = func(query string, topK int) (*model.SearchResult, error) {
			close(started)
			<-release
			return &model.SearchResult{Query: query}, nil
		}
	})
	s, _ := newTestSession(t, api)

	done := make(chan error, 1)
	go func() {
		_, err := s.Search.Search(context.Background(), "milk", 3)
		done <- err
	}()
	<-started
	s.Search.ClearResults()
	close(release)
	require.NoError(t, <-done)

	assert.Nil(t, s.Search.Results())
}

func TestSearch_BlankQueryStaysLocal(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestSession(t, api)

	_, err := s.Search.Search(context.Background(), "  ", 3)
	assert.ErrorIs(t, err, model.ErrValidation)
	assert.Zero(t, api.searchCalls.Load())
}

func TestCheckStatus(t *testing.T) {
	api := newFakeAPI()
	s, _ := newTestSession(t, api)
	assert.Equal(t, model.StateLoading, s.Search.Status().State)

	assert.Equal(t, model.StateActive, s.Search.CheckStatus(context.Background()).State)

	api.set(func(f *fakeAPI) { f.statusErr = fmt.Errorf("%w: refused", model.ErrTransport) })
	status := s.Search.CheckStatus(context.Background())
	assert.Equal(t, model.StateError, status.State)
	assert.Contains(t, status.Reason, "refused")
}

// Selecting a listed note highlights it and the highlight clears on its own.
func TestSelectResult_HighlightClearsItself(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	note := seedNote(t, api, "Buy milk")
	s, p := newTestSession(t, api)
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Search.SelectResult(note.ID))
	assert.Equal(t, 1, p.count("focus", note.ID))
	assert.Equal(t, 1, p.count("highlight", note.ID))
	assert.Equal(t, note.ID, s.Search.Highlighted())

	require.Eventually(t, func() bool { return p.count("clear-highlight", note.ID) == 1 }, waitFor, tick)
	assert.Empty(t, s.Search.Highlighted())
}

func TestSelectResult_NewHighlightSupersedes(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	n1 := seedNote(t, api, "first")
	n2 := seedNote(t, api, "second")
	s, p := newTestSession(t, api)
	require.NoError(t, s.Start(ctx))

	require.NoError(t, s.Search.SelectResult(n1.ID))
	require.NoError(t, s.Search.SelectResult(n2.ID))
	assert.Equal(t, 1, p.count("clear-highlight", n1.ID), "previous highlight cleared at once")
	assert.Equal(t, n2.ID, s.Search.Highlighted())

	require.Eventually(t, func() bool { return p.count("clear-highlight", n2.ID) == 1 }, waitFor, tick)
	time.Sleep(testHighlight)
	assert.Equal(t, 1, p.count("clear-highlight", n1.ID))
}

func TestSelectResult_RequiresListedNote(t *testing.T) {
	api := newFakeAPI()
	s, p := newTestSession(t, api)
	require.NoError(t, s.Start(context.Background()))

	assert.ErrorIs(t, s.Search.SelectResult("n1"), model.ErrNotFound)
	assert.Zero(t, p.count("highlight", ""))
}

func TestRefreshIndex(t *testing.T) {
	ctx := context.Background()
	api := newFakeAPI()
	s, p := newTestSession(t, api)

	status, err := s.Search.RefreshIndex(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.StateActive, status.State)
	assert.Equal(t, 1, p.count("notice", ""))
	require.Eventually(t, func() bool { return p.count("clear-notice", "") == 1 }, waitFor, tick)

	api.set(func(f *fakeAPI) { f.refreshErr = &model.SearchError{Status: 503, Detail: "rebuild failed"} })
	status, err = s.Search.RefreshIndex(ctx)
	assert.ErrorIs(t, err, model.ErrSearchUnavailable)
	assert.Equal(t, model.StateActive, status.State)
	assert.Equal(t, 1, p.count("notice", ""))
}
