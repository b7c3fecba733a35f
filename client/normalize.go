package client

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"tonotes/model"
)

// searchEnvelope covers every response shape the search endpoint has used:
//
//	{"success": false, "error": "..."}
//	{"success": true, "data": {...}}
//	{"query": ..., "response": ..., "sources": [...]}
//	{"query": ..., "sources": [...]}
type searchEnvelope struct {
	Success *bool           `json:"success"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

type wireSource struct {
	NoteID     flexibleID `json:"note_id"`
	Similarity float64    `json:"similarity"`
	Preview    string     `json:"preview"`
}

type wireResult struct {
	Query       string          `json:"query"`
	Response    string          `json:"response"`
	Sources     []wireSource    `json:"sources"`
	ContextUsed json.RawMessage `json:"context_used"`
	Timestamp   json.RawMessage `json:"timestamp"`
}

// flexibleID accepts note ids sent either as JSON strings or numbers.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*f = flexibleID(n.String())
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// NormalizeSearchResponse turns any of the known search response shapes into
// a single result, or a *model.SearchError when the service reported failure
// or the body is not a JSON object.
func NormalizeSearchResponse(raw []byte) (*model.SearchResult, error) {
	var env searchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &model.SearchError{Detail: "malformed search response"}
	}

	if env.Success != nil && !*env.Success {
		detail := env.Error
		if detail == "" {
			detail = "unknown error"
		}
		return nil, &model.SearchError{Detail: detail}
	}

	payload := raw
	if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
		payload = env.Data
	}

	var wire wireResult
	if err := json.Unmarshal(payload, &wire); err != nil {
		return nil, &model.SearchError{Detail: "malformed search result: " + err.Error()}
	}
	return wire.toModel(), nil
}

func (w wireResult) toModel() *model.SearchResult {
	result := &model.SearchResult{
		Query:       w.Query,
		Response:    w.Response,
		Sources:     make([]model.SearchSource, 0, len(w.Sources)),
		ContextUsed: contextLines(w.ContextUsed),
		Timestamp:   parseTimestamp(w.Timestamp),
	}
	for _, s := range w.Sources {
		result.Sources = append(result.Sources, model.SearchSource{
			NoteID:     string(s.NoteID),
			Similarity: min(max(s.Similarity, 0), 1),
			Preview:    s.Preview,
		})
	}
	return result
}

// contextLines accepts context_used as a list of strings or one string.
func contextLines(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var lines []string
	if json.Unmarshal(raw, &lines) == nil {
		return lines
	}
	var single string
	if json.Unmarshal(raw, &single) == nil && single != "" {
		return strings.Split(single, "\n")
	}
	return nil
}

// parseTimestamp is lenient. Strings without a zone are read as UTC, numbers
// as Unix seconds, and anything else becomes the zero time.
func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC()
			}
		}
		return time.Time{}
	}
	var secs float64
	if json.Unmarshal(raw, &secs) == nil {
		return time.UnixMilli(int64(secs * 1000)).UTC()
	}
	return time.Time{}
}
