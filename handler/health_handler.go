package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tonotes/dto"
	"tonotes/usecase"
	"tonotes/utils"
)

type HealthHandler struct {
	notesService  *usecase.NotesService
	searchService *usecase.SearchService
	cpuWindow     time.Duration
}

func NewHealthHandler(notesService *usecase.NotesService, searchService *usecase.SearchService) *HealthHandler {
	return &HealthHandler{
		notesService:  notesService,
		searchService: searchService,
		cpuWindow:     200 * time.Millisecond,
	}
}

// GetHealth reports "healthy" when the store answers and "degraded" when it
// does not. The search state is informational only.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	resp := dto.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Search:    string(h.searchService.Status().State),
	}

	count, err := h.notesService.CountNotes(c.Request.Context())
	if err != nil {
		c.Error(err)
		resp.Status = "degraded"
	}
	resp.Notes = count

	if c.Query("system") != "false" {
		resp.System = utils.CollectSystemStats(h.cpuWindow)
	}

	status := http.StatusOK
	if resp.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
