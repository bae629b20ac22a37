// Package v1 provides the conversation HTTP API.
package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/streamchat/internal/repository"
)

// Handler handles HTTP requests.
type Handler struct {
	store repository.Store
}

// NewHandler creates a new handler.
func NewHandler(store repository.Store) *Handler {
	return &Handler{
		store: store,
	}
}

// RegisterRoutes registers external routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/v1/conversations", h.ListConversations)
	e.GET("/v1/conversations/:id", h.GetConversation)
	e.DELETE("/v1/conversations/:id", h.DeleteConversation)

	e.GET("/health", h.Health)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": "0.1.0",
	})
}
