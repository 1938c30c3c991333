package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/phillipshepard1/phillipsnotes/internal/pkg/errcode"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/response"
	"github.com/phillipshepard1/phillipsnotes/internal/service"
)

type IndexHandler struct {
	indexer *service.IndexerService
}

func NewIndexHandler(indexer *service.IndexerService) *IndexHandler {
	return &IndexHandler{indexer: indexer}
}

type indexRequest struct {
	DocumentID string `json:"document_id"`
}

// Index rebuilds the chunk set for one document. The editing surface calls
// this after edits settle; it is synchronous here because the caller asked
// for it explicitly.
func (h *IndexHandler) Index(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.DocumentID == "" {
		response.Error(c, errcode.ErrInvalid, "document_id required")
		return
	}
	if err := h.indexer.IndexDocument(c.Request.Context(), getUserID(c), req.DocumentID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}

// Remove drops a document's chunk set after the document is permanently
// deleted.
func (h *IndexHandler) Remove(c *gin.Context) {
	docID := c.Param("id")
	if docID == "" {
		response.Error(c, errcode.ErrInvalid, "document id required")
		return
	}
	if err := h.indexer.RemoveDocument(c.Request.Context(), getUserID(c), docID); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{})
}
