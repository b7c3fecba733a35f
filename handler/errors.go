package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"tonotes/middleware"
	"tonotes/model"
	"tonotes/utils"
)

// respondError maps the error taxonomy onto HTTP statuses. This is the only
// place that decides status codes for failed note operations.
func respondError(c *gin.Context, err error) {
	c.Error(err)

	var conflict *model.VersionConflictError
	switch {
	case errors.As(err, &conflict):
		middleware.TrackVersionConflict()
		utils.Conflict(c, "Version conflict: the note was modified by another client", conflict.Current)
	case errors.Is(err, model.ErrValidation):
		middleware.TrackError("validation")
		utils.BadRequest(c, strings.TrimPrefix(err.Error(), model.ErrValidation.Error()+": "))
	case errors.Is(err, model.ErrNotFound):
		utils.NotFound(c, "Note not found")
	case errors.Is(err, model.ErrDecode):
		middleware.TrackError("decode")
		c.Header("Cache-Control", "no-store")
		utils.BadRequest(c, "Invalid share link or corrupted data")
	case errors.Is(err, model.ErrStorageUnavailable):
		middleware.TrackError("storage")
		utils.ServiceUnavailable(c, "Note storage is unavailable, try again later")
	case errors.Is(err, model.ErrSearchUnavailable):
		middleware.TrackError("search")
		utils.ServiceUnavailable(c, err.Error())
	default:
		middleware.TrackError("internal")
		utils.InternalError(c, "Internal server error")
	}
}

// bindingError turns a gin binding failure into a validation error with a
// readable reason.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return model.ValidationError("invalid request body")
	}
	fe := verrs[0]
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required", "notblank":
		if field == "content" {
			return model.ValidationError("note content cannot be empty")
		}
		return model.ValidationError(fmt.Sprintf("%s is required", field))
	case "min", "max":
		return model.ValidationError(fmt.Sprintf("%s must satisfy %s=%s", field, fe.Tag(), fe.Param()))
	default:
		return model.ValidationError(fmt.Sprintf("%s is invalid", field))
	}
}
