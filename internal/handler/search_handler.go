package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phillipshepard1/phillipsnotes/internal/model"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/errcode"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/response"
	"github.com/phillipshepard1/phillipsnotes/internal/service"
)

type SearchHandler struct {
	search *service.SearchService
}

func NewSearchHandler(search *service.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type relatedRequest struct {
	DocumentID string `json:"document_id"`
	Limit      int    `json:"limit"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if len([]rune(strings.TrimSpace(req.Query))) < 2 {
		response.Error(c, errcode.ErrInvalid, "query too short")
		return
	}
	results, err := h.search.SemanticSearch(c.Request.Context(), getUserID(c), req.Query, req.Limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": emptyIfNil(results)})
}

func (h *SearchHandler) Related(c *gin.Context) {
	var req relatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.DocumentID == "" {
		response.Error(c, errcode.ErrInvalid, "document_id required")
		return
	}
	results, err := h.search.RelatedDocuments(c.Request.Context(), getUserID(c), req.DocumentID, req.Limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"results": emptyIfNil(results)})
}

func emptyIfNil(results []model.SearchResult) []model.SearchResult {
	if results == nil {
		return []model.SearchResult{}
	}
	return results
}
