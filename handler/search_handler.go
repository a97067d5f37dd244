package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	services "github.com/tieubaoca/lesson-rag/service"
	"github.com/tieubaoca/lesson-rag/types"
)

type SearchHandler struct {
	ragService *services.RAGService
}

func NewSearchHandler(ragService *services.RAGService) *SearchHandler {
	return &SearchHandler{
		ragService: ragService,
	}
}

// SearchHandler answers a similarity query against one lesson's content.
func (h *SearchHandler) SearchHandler(c *gin.Context) {
	var req types.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}

	results, err := h.ragService.Retrieve(c.Request.Context(), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, types.DataResponse{
			Status:  false,
			Message: "Search failed: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, types.DataResponse{
		Status: true,
		Data:   types.SearchResponse{Results: results},
	})
}
