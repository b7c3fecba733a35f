package model

import "time"

type SearchQuery struct {
	Text  string
	Limit int
}

type SearchSource struct {
	NoteID     string  `json:"note_id"`
	Similarity float64 `json:"similarity"`
	Preview    string  `json:"preview"`
}

// SearchResult is one complete answer to a query. A newer result always
// replaces an older one in full.
type SearchResult struct {
	Query       string         `json:"query"`
	Response    string         `json:"response,omitempty"`
	Sources     []SearchSource `json:"sources"`
	ContextUsed []string       `json:"context_used,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

type ServiceState string

const (
	StateLoading ServiceState = "loading"
	StateActive  ServiceState = "active"
	StateError   ServiceState = "error"
)

type ServiceStatus struct {
	State         ServiceState `json:"status"`
	Reason        string       `json:"error,omitempty"`
	IndexedChunks int          `json:"indexed_chunks"`
	Model         string       `json:"model,omitempty"`
}

type EvaluationResult struct {
	Query          string  `json:"query"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1Score        float64 `json:"f1_score"`
	RetrievedCount int     `json:"retrieved_count"`
	ExpectedCount  int     `json:"expected_count"`
}
