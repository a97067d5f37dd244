package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	services "github.com/tieubaoca/lesson-rag/service"
	"github.com/tieubaoca/lesson-rag/types"
)

type LessonHandler struct {
	ragService *services.RAGService
}

func NewLessonHandler(ragService *services.RAGService) *LessonHandler {
	return &LessonHandler{
		ragService: ragService,
	}
}

// DeleteLessonHandler removes a lesson's indexed content. Deleting a
// lesson that was never ingested still succeeds.
func (h *LessonHandler) DeleteLessonHandler(c *gin.Context) {
	lessonID := c.Param("lessonId")
	if lessonID == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "lessonId is required",
		})
		return
	}

	if err := h.ragService.DeleteLesson(c.Request.Context(), lessonID); err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: "Delete failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status:  true,
		Message: "Lesson deleted",
	})
}

// LessonExistsHandler reports whether a lesson has indexed content.
func (h *LessonHandler) LessonExistsHandler(c *gin.Context) {
	lessonID := c.Param("lessonId")
	if lessonID == "" {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "lessonId is required",
		})
		return
	}

	exists, err := h.ragService.LessonExists(c.Request.Context(), lessonID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: "Lookup failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   gin.H{"lessonId": lessonID, "exists": exists},
	})
}
