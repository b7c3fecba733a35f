package handler

import (
	"github.com/gin-gonic/gin"

	"tonotes/dto"
	"tonotes/middleware"
	"tonotes/services"
	"tonotes/usecase"
	"tonotes/utils"
)

// ShareNoteHandler snapshots the note as it is now. baseURL is the public
// origin of the web client; when empty the request's own origin is used.
func ShareNoteHandler(c *gin.Context, notesService *usecase.NotesService, baseURL string) {
	token, snapshot, err := notesService.ShareNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	if baseURL == "" {
		baseURL = utils.GetBaseURL(c)
	}

	middleware.TrackNoteOperation("share")
	utils.Success(c, dto.ShareResponse{
		Token:    token,
		URL:      services.ShareURL(baseURL, token),
		Snapshot: snapshot,
	})
}

// ResolveShareHandler decodes a token without looking at the live store.
func ResolveShareHandler(c *gin.Context, notesService *usecase.NotesService) {
	snapshot, err := notesService.ResolveShare(c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}
	middleware.TrackNoteOperation("resolve")
	utils.Success(c, snapshot)
}
