package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/phillipshepard1/phillipsnotes/internal/ai"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/errcode"
	"github.com/phillipshepard1/phillipsnotes/internal/pkg/response"
	"github.com/phillipshepard1/phillipsnotes/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Query      string           `json:"query"`
	DocumentID string           `json:"document_id"`
	History    []ai.ChatMessage `json:"history"`
}

// Chat streams a grounded answer as server-sent events: one "sources" event,
// then "content" fragments, then either a terminal "error" event or "done".
// Pre-stream failures (auth, retrieval) come back as a plain JSON error.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, errcode.ErrInvalid, "query required")
		return
	}
	userID := getUserID(c)
	if userID == "" {
		response.Error(c, errcode.ErrUnauthorized, "no session")
		return
	}
	stream, err := h.chat.Ask(c.Request.Context(), userID, service.ChatRequest{
		Query:      req.Query,
		DocumentID: req.DocumentID,
		History:    req.History,
	})
	if err != nil {
		handleError(c, err)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	c.SSEvent("sources", stream.Sources)
	c.Writer.Flush()
	for event := range stream.Events {
		if event.Err != nil {
			c.SSEvent("error", event.Err.Error())
			c.Writer.Flush()
			return
		}
		c.SSEvent("content", event.Content)
		c.Writer.Flush()
	}
	c.SSEvent("done", "")
	c.Writer.Flush()
}

// ChatSync returns the whole answer in one JSON response, for clients that
// cannot consume the event stream.
func (h *ChatHandler) ChatSync(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, errcode.ErrInvalid, "query required")
		return
	}
	answer, sources, err := h.chat.AskSync(c.Request.Context(), getUserID(c), service.ChatRequest{
		Query:      req.Query,
		DocumentID: req.DocumentID,
		History:    req.History,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	if sources == nil {
		sources = []service.ChatSource{}
	}
	response.Success(c, gin.H{"answer": answer, "sources": sources})
}
