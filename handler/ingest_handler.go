package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	services "github.com/tieubaoca/lesson-rag/service"
	"github.com/tieubaoca/lesson-rag/types"
)

type IngestHandler struct {
	ragService *services.RAGService
}

func NewIngestHandler(ragService *services.RAGService) *IngestHandler {
	return &IngestHandler{
		ragService: ragService,
	}
}

// IngestLessonHandler runs the ingestion pipeline and streams progress
// events to the client as SSE messages, ending with the final result.
func (h *IngestHandler) IngestLessonHandler(c *gin.Context) {
	var req types.IngestLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.DataResponse{
			Status:  false,
			Message: "Invalid request body",
		})
		return
	}

	statusChan := make(chan types.IngestStatus)
	type ingestOutcome struct {
		result *types.IngestionResult
		err    error
	}
	doneChan := make(chan ingestOutcome)

	go func() {
		result, err := h.ragService.ProcessContent(c.Request.Context(), req, statusChan)
		doneChan <- ingestOutcome{result: result, err: err}
	}()

	// Detect client disconnect so a closed connection stops the stream.
	clientGone := c.Writer.CloseNotify()
	for {
		select {
		case <-clientGone:
			// Drain the pipeline so the worker goroutine can finish.
			go func() {
				for {
					select {
					case <-statusChan:
					case <-doneChan:
						return
					}
				}
			}()
			return
		case status := <-statusChan:
			jsonStatus, err := json.Marshal(status)
			if err != nil {
				continue
			}
			c.SSEvent("message", string(jsonStatus))
			c.Writer.Flush()
		case outcome := <-doneChan:
			if outcome.err != nil {
				c.JSON(http.StatusInternalServerError, types.DataResponse{
					Status:  false,
					Message: outcome.err.Error(),
				})
			} else {
				c.JSON(http.StatusOK, types.DataResponse{
					Status: true,
					Data:   outcome.result,
				})
			}
			return
		}
	}
}
