// Package chat exposes the chat API: session management, the model
// catalog and the streaming chat relay consumed by the browser client.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/isntboxs/b3s-chat/internal/domain"
	"github.com/isntboxs/b3s-chat/internal/service"
)

// Handler handles chat API requests
type Handler struct {
	chatService *service.ChatService
}

// NewHandler creates a new chat handler
func NewHandler(chatService *service.ChatService) *Handler {
	return &Handler{chatService: chatService}
}

// RegisterRoutes registers chat routes
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/models", h.ListModels)
	r.GET("/stats", h.GetStats)

	sessions := r.Group("/sessions")
	{
		sessions.POST("", h.CreateSession)
		sessions.GET("", h.ListSessions)
		sessions.GET("/:id/messages", h.ListMessages)
		sessions.PATCH("/:id/title", h.UpdateTitle)
		sessions.POST("/:id/pin", h.TogglePin)
		sessions.DELETE("/:id", h.DeleteSession)
	}

	chat := r.Group("/chat")
	{
		chat.POST("/:id/stream", h.ChatStream)
		chat.POST("/:id/regenerate", h.Regenerate)
		chat.POST("/:id/cancel", h.Cancel)
	}
}

// ListModels returns the model catalog.
func (h *Handler) ListModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.chatService.Models()})
}

// GetStats returns aggregate history counts.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.chatService.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CreateSessionRequest is the body for creating a session.
type CreateSessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

// CreateSession creates a new persisted session.
func (h *Handler) CreateSession(c *gin.Context) {
	if !h.chatService.HistoryEnabled() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "history persistence is disabled"})
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.chatService.CreateSession(c.Request.Context(), req.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, session)
}

// ListSessions lists the user's sessions, pinned first.
func (h *Handler) ListSessions(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	sessions, err := h.chatService.ListSessions(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// ListMessages returns a session's persisted turns.
func (h *Handler) ListMessages(c *gin.Context) {
	turns, err := h.chatService.ListMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": turns})
}

// UpdateTitleRequest is the body for renaming a session.
type UpdateTitleRequest struct {
	Title string `json:"title" binding:"required"`
}

// UpdateTitle renames a session.
func (h *Handler) UpdateTitle(c *gin.Context) {
	var req UpdateTitleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.UpdateTitle(c.Request.Context(), c.Param("id"), req.Title); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// TogglePin flips a session's pinned flag.
func (h *Handler) TogglePin(c *gin.Context) {
	if err := h.chatService.TogglePin(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// DeleteSession removes a session and its messages.
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.chatService.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ChatStreamRequest is the body for starting a streaming turn.
type ChatStreamRequest struct {
	Message     string   `json:"message"`
	Model       string   `json:"model,omitempty"`
	Attachments []string `json:"attachments,omitempty"`
}

// ChatStream starts a turn and relays its events as SSE.
func (h *Handler) ChatStream(c *gin.Context) {
	var req ChatStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	events, err := h.chatService.SubmitStream(c.Request.Context(), c.Param("id"), service.SubmitRequest{
		Text:        req.Message,
		Model:       req.Model,
		Attachments: req.Attachments,
	})
	if err != nil {
		h.streamStartError(c, err)
		return
	}

	relaySSE(c, events)
}

// RegenerateRequest is the body for replaying the last exchange.
type RegenerateRequest struct {
	Model string `json:"model,omitempty"`
}

// Regenerate drops the last assistant turn, replays the preceding user
// turn and relays the new stream as SSE.
func (h *Handler) Regenerate(c *gin.Context) {
	var req RegenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	events, err := h.chatService.RegenerateStream(c.Request.Context(), c.Param("id"), req.Model)
	if err != nil {
		h.streamStartError(c, err)
		return
	}

	relaySSE(c, events)
}

// Cancel aborts the session's in-flight turn.
func (h *Handler) Cancel(c *gin.Context) {
	h.chatService.Cancel(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// streamStartError maps submit/regenerate rejections onto status codes.
// Validation rejections are silent no-ops for the client: nothing was
// mutated and nothing was sent upstream.
func (h *Handler) streamStartError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrEmptySubmission), errors.Is(err, domain.ErrInvalidRegenerate):
		c.Status(http.StatusNoContent)
	case errors.Is(err, domain.ErrTurnInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// relaySSE writes stream events in the wire format of the inference
// endpoint: one "data: <json>" record per event, a "[DONE]" sentinel after
// the terminal done event.
func relaySSE(c *gin.Context, events <-chan domain.StreamEvent) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	completed := false
	c.Stream(func(w io.Writer) bool {
		event, ok := <-events
		if !ok {
			if completed {
				fmt.Fprint(w, "data: [DONE]\n\n")
			}
			return false
		}
		if event.Done {
			completed = true
		}
		data, _ := json.Marshal(event)
		fmt.Fprintf(w, "data: %s\n\n", data)
		return true
	})
}
