package usecase

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/singleflight"

	"tonotes/model"
	"tonotes/repository"
	"tonotes/search"
)

type SearchService struct {
	engine  *search.Engine
	store   repository.NoteStore
	logger  *slog.Logger
	refresh singleflight.Group
}

func NewSearchService(engine *search.Engine, store repository.NoteStore, logger *slog.Logger) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchService{engine: engine, store: store, logger: logger}
}

func (s *SearchService) Search(ctx context.Context, query string, topK int) (*model.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, model.ValidationError("query cannot be empty")
	}
	return s.engine.Search(ctx, query, topK)
}

func (s *SearchService) Status() model.ServiceStatus {
	return s.engine.Status()
}

// Refresh rebuilds the index from the store. Concurrent callers share one
// rebuild; it keeps running if the caller goes away.
func (s *SearchService) Refresh(ctx context.Context) (model.ServiceStatus, error) {
	_, err, shared := s.refresh.Do("rebuild", func() (interface{}, error) {
		return nil, s.engine.Rebuild(context.WithoutCancel(ctx), s.store)
	})
	if shared {
		s.logger.Debug("joined in-flight index rebuild")
	}
	return s.engine.Status(), err
}

func (s *SearchService) Evaluate(ctx context.Context, query string, expected []string, topK int) (*model.EvaluationResult, error) {
	return s.engine.Evaluate(ctx, query, expected, topK)
}
