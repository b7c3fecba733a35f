package search

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"golang.org/x/sync/errgroup"

	"tonotes/embeddings"
	"tonotes/model"
)

const (
	keywordOnlyModel = "bleve-keyword"
	embedBatchSize   = 32
	embedParallelism = 4
	maxTopK          = 20
)

// NoteSource is the part of the note store the engine rebuilds from.
type NoteSource interface {
	List(ctx context.Context) ([]*model.Note, error)
}

type Options struct {
	IndexPath     string
	ChunkSize     int
	ChunkOverlap  int
	KeywordWeight float64
	Embedder      embeddings.Embedder // nil for keyword-only search
	Logger        *slog.Logger
	Now           func() time.Time
}

type chunk struct {
	NoteID string
	Text   string
	Vector []float32
}

// Engine answers natural-language queries over the note collection. Notes are
// split into chunks that are indexed in bleve and, when an embedder is
// configured, embedded for cosine similarity. The two signals are blended
// with KeywordWeight.
type Engine struct {
	opts    Options
	chunker *Chunker
	logger  *slog.Logger

	mu       sync.RWMutex
	index    bleve.Index
	chunks   map[string]chunk    // chunk id -> chunk
	byNote   map[string][]string // note id -> chunk ids
	previews map[string]string   // note id -> preview
	status   model.ServiceStatus
}

func NewEngine(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	e := &Engine{
		opts:     opts,
		chunker:  NewChunker(opts.ChunkSize, opts.ChunkOverlap),
		logger:   opts.Logger.With("component", "search"),
		chunks:   make(map[string]chunk),
		byNote:   make(map[string][]string),
		previews: make(map[string]string),
	}
	e.status = model.ServiceStatus{State: model.StateLoading, Model: e.modelName()}
	return e
}

func (e *Engine) modelName() string {
	if e.opts.Embedder == nil {
		return keywordOnlyModel
	}
	return e.opts.Embedder.Model()
}

func (e *Engine) Status() model.ServiceStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Rebuild re-reads every note from src and replaces the whole index. The
// status reads loading while it runs, active on success and error (with the
// reason) on failure.
func (e *Engine) Rebuild(ctx context.Context, src NoteSource) error {
	e.mu.Lock()
	e.status.State = model.StateLoading
	e.status.Reason = ""
	e.mu.Unlock()

	err := e.rebuild(ctx, src)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.status.State = model.StateError
		e.status.Reason = err.Error()
		e.logger.Error("search index rebuild failed", "error", err)
		return err
	}
	e.status = model.ServiceStatus{
		State:         model.StateActive,
		IndexedChunks: len(e.chunks),
		Model:         e.modelName(),
	}
	e.logger.Info("search index rebuilt", "notes", len(e.byNote), "chunks", len(e.chunks))
	return nil
}

func (e *Engine) rebuild(ctx context.Context, src NoteSource) error {
	notes, err := src.List(ctx)
	if err != nil {
		return fmt.Errorf("load notes: %w", err)
	}

	chunks := make(map[string]chunk)
	byNote := make(map[string][]string, len(notes))
	previews := make(map[string]string, len(notes))
	var (
		ids   []string
		texts []string
	)
	for _, n := range notes {
		for i, text := range e.chunker.Split(n.Content) {
			id := chunkID(n.ID, i)
			chunks[id] = chunk{NoteID: n.ID, Text: text}
			byNote[n.ID] = append(byNote[n.ID], id)
			ids = append(ids, id)
			texts = append(texts, text)
		}
		previews[n.ID] = preview(n.Content)
	}

	if vecs, err := e.embedAll(ctx, texts); err != nil {
		e.logger.Warn("embedding failed, falling back to keyword search", "error", err)
	} else if vecs != nil {
		for i, id := range ids {
			c := chunks[id]
			c.Vector = vecs[i]
			chunks[id] = c
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// An on-disk index has to be closed before its directory is recreated.
	if e.index != nil && e.opts.IndexPath != "" {
		e.index.Close()
		e.index = nil
	}
	idx, err := openIndex(e.opts.IndexPath)
	if err != nil {
		return err
	}
	batch := idx.NewBatch()
	for id, c := range chunks {
		if err := batch.Index(id, chunkDoc{NoteID: c.NoteID, Content: c.Text}); err != nil {
			idx.Close()
			return fmt.Errorf("batch index %s: %w", id, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return fmt.Errorf("commit batch: %w", err)
	}

	if e.index != nil {
		e.index.Close()
	}
	e.index = idx
	e.chunks = chunks
	e.byNote = byNote
	e.previews = previews
	return nil
}

// embedAll embeds texts in parallel batches. It returns nil, nil when no
// embedder is configured.
func (e *Engine) embedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if e.opts.Embedder == nil || len(texts) == 0 {
		return nil, nil
	}
	out := make([][]float32, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallelism)
	for start := 0; start < len(texts); start += embedBatchSize {
		end := min(start+embedBatchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.opts.Embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// IndexNote replaces the chunks of a single note. It is a no-op until the
// first rebuild has created the index.
func (e *Engine) IndexNote(ctx context.Context, note *model.Note) error {
	texts := e.chunker.Split(note.Content)
	vecs, err := e.embedAll(ctx, texts)
	if err != nil {
		e.logger.Warn("embedding note failed, indexing keywords only", "note_id", note.ID, "error", err)
		vecs = nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		return nil
	}

	batch := e.index.NewBatch()
	for _, id := range e.byNote[note.ID] {
		batch.Delete(id)
		delete(e.chunks, id)
	}
	ids := make([]string, 0, len(texts))
	for i, text := range texts {
		id := chunkID(note.ID, i)
		c := chunk{NoteID: note.ID, Text: text}
		if vecs != nil {
			c.Vector = vecs[i]
		}
		if err := batch.Index(id, chunkDoc{NoteID: note.ID, Content: text}); err != nil {
			return fmt.Errorf("index chunk %s: %w", id, err)
		}
		e.chunks[id] = c
		ids = append(ids, id)
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	e.byNote[note.ID] = ids
	e.previews[note.ID] = preview(note.Content)
	e.status.IndexedChunks = len(e.chunks)
	return nil
}

func (e *Engine) RemoveNote(_ context.Context, noteID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		return nil
	}

	ids := e.byNote[noteID]
	if len(ids) == 0 {
		return nil
	}
	batch := e.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
		delete(e.chunks, id)
	}
	if err := e.index.Batch(batch); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	delete(e.byNote, noteID)
	delete(e.previews, noteID)
	e.status.IndexedChunks = len(e.chunks)
	return nil
}

// Search returns the best matching notes for text. Sources are deduplicated
// by note, keeping each note's best chunk, and ordered by similarity.
func (e *Engine) Search(ctx context.Context, text string, topK int) (*model.SearchResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, model.ValidationError("query cannot be empty")
	}
	topK = ClampTopK(topK)

	docs, err := e.retrieve(ctx, text, topK)
	if err != nil {
		return nil, err
	}

	result := &model.SearchResult{
		Query:       text,
		Response:    synthesizeAnswer(text, docs),
		Sources:     make([]model.SearchSource, 0, len(docs)),
		ContextUsed: make([]string, 0, len(docs)),
		Timestamp:   e.opts.Now().UTC(),
	}
	e.mu.RLock()
	for _, d := range docs {
		result.Sources = append(result.Sources, model.SearchSource{
			NoteID:     d.NoteID,
			Similarity: d.Similarity,
			Preview:    e.previews[d.NoteID],
		})
		result.ContextUsed = append(result.ContextUsed, "- "+d.Text)
	}
	e.mu.RUnlock()
	return result, nil
}

func (e *Engine) retrieve(ctx context.Context, text string, topK int) ([]retrieved, error) {
	var queryVec []float32
	if e.opts.Embedder != nil {
		vec, err := e.opts.Embedder.Embed(ctx, text)
		if err != nil {
			e.logger.Warn("query embedding failed, using keyword scores only", "error", err)
		} else {
			queryVec = vec
		}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	switch e.status.State {
	case model.StateLoading:
		if e.index == nil {
			return nil, fmt.Errorf("%w: search index is still loading", model.ErrSearchUnavailable)
		}
	case model.StateError:
		return nil, fmt.Errorf("%w: %s", model.ErrSearchUnavailable, e.status.Reason)
	}
	if len(e.chunks) == 0 {
		return nil, nil
	}

	kw, err := keywordScores(e.index, text, max(topK*5, 20))
	if err != nil {
		return nil, err
	}

	best := make(map[string]retrieved)
	for id, c := range e.chunks {
		sim := e.similarity(kw, id, c, queryVec)
		if sim <= 0 {
			continue
		}
		if cur, ok := best[c.NoteID]; !ok || sim > cur.Similarity {
			best[c.NoteID] = retrieved{NoteID: c.NoteID, Text: c.Text, Similarity: sim}
		}
	}

	docs := make([]retrieved, 0, len(best))
	for _, d := range best {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Similarity == docs[j].Similarity {
			return docs[i].NoteID < docs[j].NoteID
		}
		return docs[i].Similarity > docs[j].Similarity
	})
	if len(docs) > topK {
		docs = docs[:topK]
	}
	return docs, nil
}

// similarity maps the raw signals into [0,1]. A bleve score s becomes
// s/(s+1); negative cosine values count as zero.
func (e *Engine) similarity(kw map[string]float64, id string, c chunk, queryVec []float32) float64 {
	keyword := 0.0
	if s, ok := kw[id]; ok && s > 0 {
		keyword = s / (s + 1)
	}
	if queryVec == nil || c.Vector == nil {
		return keyword
	}
	semantic := embeddings.CosineSimilarity(queryVec, c.Vector)
	semantic = min(max(semantic, 0), 1)
	w := e.opts.KeywordWeight
	return w*keyword + (1-w)*semantic
}

// Evaluate measures retrieval quality for query against the note ids a human
// expects to see.
func (e *Engine) Evaluate(ctx context.Context, query string, expected []string, topK int) (*model.EvaluationResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, model.ValidationError("query cannot be empty")
	}
	docs, err := e.retrieve(ctx, query, ClampTopK(topK))
	if err != nil {
		return nil, err
	}

	retrievedIDs := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		retrievedIDs[d.NoteID] = struct{}{}
	}
	expectedIDs := make(map[string]struct{}, len(expected))
	for _, id := range expected {
		expectedIDs[id] = struct{}{}
	}
	hits := 0
	for id := range retrievedIDs {
		if _, ok := expectedIDs[id]; ok {
			hits++
		}
	}

	res := &model.EvaluationResult{
		Query:          query,
		RetrievedCount: len(retrievedIDs),
		ExpectedCount:  len(expectedIDs),
	}
	if res.RetrievedCount > 0 {
		res.Precision = float64(hits) / float64(res.RetrievedCount)
	}
	if res.ExpectedCount > 0 {
		res.Recall = float64(hits) / float64(res.ExpectedCount)
	}
	if res.Precision+res.Recall > 0 {
		res.F1Score = 2 * res.Precision * res.Recall / (res.Precision + res.Recall)
	}
	return res, nil
}

// ClampTopK applies the default of 3 and the upper bound of 20.
func ClampTopK(k int) int {
	switch {
	case k <= 0:
		return 3
	case k > maxTopK:
		return maxTopK
	default:
		return k
	}
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.index == nil {
		return nil
	}
	err := e.index.Close()
	e.index = nil
	return err
}

