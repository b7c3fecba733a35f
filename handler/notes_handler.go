package handler

import (
	"github.com/gin-gonic/gin"

	"tonotes/dto"
	"tonotes/middleware"
	"tonotes/usecase"
	"tonotes/utils"
)

func ListNotesHandler(c *gin.Context, notesService *usecase.NotesService) {
	timer := middleware.TrackDBOperation("list", "notes")
	notes, err := notesService.ListNotes(c.Request.Context())
	timer.ObserveDuration()
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, notes)
}

func GetNoteHandler(c *gin.Context, notesService *usecase.NotesService) {
	timer := middleware.TrackDBOperation("get", "notes")
	note, err := notesService.GetNote(c.Request.Context(), c.Param("id"))
	timer.ObserveDuration()
	if err != nil {
		respondError(c, err)
		return
	}
	utils.Success(c, note)
}

func CreateNoteHandler(c *gin.Context, notesService *usecase.NotesService) {
	var req dto.CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	timer := middleware.TrackDBOperation("create", "notes")
	note, err := notesService.CreateNote(c.Request.Context(), req.Content)
	timer.ObserveDuration()
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.TrackNoteOperation("create")
	utils.Created(c, note)
}

func UpdateNoteHandler(c *gin.Context, notesService *usecase.NotesService) {
	var req dto.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindingError(err))
		return
	}

	timer := middleware.TrackDBOperation("update", "notes")
	note, err := notesService.UpdateNote(c.Request.Context(), c.Param("id"), req.Content, req.Version)
	timer.ObserveDuration()
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.TrackNoteOperation("update")
	utils.Success(c, note)
}

func DeleteNoteHandler(c *gin.Context, notesService *usecase.NotesService) {
	timer := middleware.TrackDBOperation("delete", "notes")
	err := notesService.DeleteNote(c.Request.Context(), c.Param("id"))
	timer.ObserveDuration()
	if err != nil {
		respondError(c, err)
		return
	}

	middleware.TrackNoteOperation("delete")
	utils.NoContent(c)
}
