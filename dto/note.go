package dto

import "tonotes/model"

type CreateNoteRequest struct {
	Content string `json:"content" binding:"required,notblank"`
}

type UpdateNoteRequest struct {
	Content string `json:"content" binding:"required,notblank"`
	Version int64  `json:"version" binding:"required,min=1"`
}

type ShareResponse struct {
	Token    string         `json:"token"`
	URL      string         `json:"url"`
	Snapshot model.Snapshot `json:"snapshot"`
}

type SearchRequest struct {
	Query string `json:"query" binding:"required,notblank"`
	TopK  int    `json:"top_k" binding:"omitempty,min=1,max=20"`
}

// SearchEnvelope is the body of every search response, successful or not.
type SearchEnvelope struct {
	Success bool                `json:"success"`
	Data    *model.SearchResult `json:"data"`
	Error   string              `json:"error,omitempty"`
}

type EvaluateRequest struct {
	Query           string   `json:"query" binding:"required,notblank"`
	ExpectedNoteIDs []string `json:"expected_note_ids" binding:"required,min=1,dive,required"`
	TopK            int      `json:"top_k" binding:"omitempty,min=1,max=20"`
}

type RefreshResponse struct {
	Message string              `json:"message"`
	Status  model.ServiceStatus `json:"status"`
}

type HealthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Notes     int         `json:"notes"`
	Search    string      `json:"search"`
	System    interface{} `json:"system,omitempty"`
}
