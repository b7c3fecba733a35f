package search

import (
	"fmt"
	"os"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// chunkDoc is what bleve stores per chunk.
type chunkDoc struct {
	NoteID  string
	Content string
}

func chunkID(noteID string, seq int) string {
	return fmt.Sprintf("%s#%d", noteID, seq)
}

// openIndex creates a fresh index. An empty path keeps it in memory; an
// existing on-disk index at path is discarded since the store is the source
// of truth and every rebuild re-reads it.
func openIndex(path string) (bleve.Index, error) {
	indexMapping := buildIndexMapping()
	if path == "" {
		idx, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create in-memory index: %w", err)
		}
		return idx, nil
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove stale index: %w", err)
	}
	idx, err := bleve.New(path, indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	return idx, nil
}

func buildIndexMapping() mapping.IndexMapping {
	contentField := bleve.NewTextFieldMapping()
	contentField.Analyzer = "en"

	noteField := bleve.NewKeywordFieldMapping()
	noteField.Store = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("NoteID", noteField)
	docMapping.AddFieldMappingsAt("Content", contentField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// keywordScores runs a match query over chunk content and returns
// chunk id -> bleve score.
func keywordScores(idx bleve.Index, text string, size int) (map[string]float64, error) {
	query := bleve.NewMatchQuery(text)
	query.SetField("Content")

	req := bleve.NewSearchRequestOptions(query, size, 0, false)
	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	scores := make(map[string]float64, len(res.Hits))
	for _, hit := range res.Hits {
		scores[hit.ID] = hit.Score
	}
	return scores, nil
}
