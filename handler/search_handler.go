package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tonotes/dto"
	"tonotes/middleware"
	"tonotes/model"
	"tonotes/usecase"
	"tonotes/utils"
)

// SearchNotesHandler always answers with the {success, data, error}
// envelope. Search failures are reported in the body with status 200;
// only malformed requests get a 400.
func SearchNotesHandler(c *gin.Context, searchService *usecase.SearchService) {
	var req dto.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.TrackSearch("invalid")
		c.JSON(http.StatusBadRequest, dto.SearchEnvelope{Error: "Query cannot be empty"})
		return
	}

	result, err := searchService.Search(c.Request.Context(), req.Query, req.TopK)
	if err != nil {
		c.Error(err)
		if errors.Is(err, model.ErrValidation) {
			middleware.TrackSearch("invalid")
			c.JSON(http.StatusBadRequest, dto.SearchEnvelope{Error: "Query cannot be empty"})
			return
		}
		middleware.TrackSearch("unavailable")
		c.JSON(http.StatusOK, dto.SearchEnvelope{Error: err.Error()})
		return
	}

	middleware.TrackSearch("success")
	c.JSON(http.StatusOK, dto.SearchEnvelope{Success: true, Data: result})
}

func SearchStatusHandler(c *gin.Context, searchService *usecase.SearchService) {
	status := searchService.Status()
	middleware.UpdateIndexedChunks(status.IndexedChunks)
	utils.Success(c, status)
}

func RefreshIndexHandler(c *gin.Context, searchService *usecase.SearchService) {
	status, err := searchService.Refresh(c.Request.Context())
	middleware.UpdateIndexedChunks(status.IndexedChunks)
	if err != nil {
		c.Error(err)
		middleware.TrackError("search")
		c.JSON(http.StatusServiceUnavailable, &utils.Response{
			Status: http.StatusServiceUnavailable,
			Error:  "Failed to refresh search index",
			Data:   status,
		})
		return
	}
	utils.Success(c, dto.RefreshResponse{
		Message: "Search index refreshed successfully",
		Status:  status,
	})
}

func EvaluateSearchHandler(c *gin.Context, searchService *usecase.SearchService) {
	var req dto.EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}
	result, err := searchService.Evaluate(c.Request.Context(), req.Query, req.ExpectedNoteIDs, req.TopK)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, result)
}
