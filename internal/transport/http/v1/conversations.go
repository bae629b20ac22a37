package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ListConversations lists stored conversations without their messages.
// GET /v1/conversations
func (h *Handler) ListConversations(c echo.Context) error {
	ctx := c.Request().Context()

	convs, err := h.store.ListConversations(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	list := make([]map[string]interface{}, len(convs))
	for i, conv := range convs {
		list[i] = map[string]interface{}{
			"id":            conv.ID,
			"title":         conv.Title,
			"updated_at":    conv.UpdatedAt.UnixMilli(),
			"message_count": len(conv.Messages),
		}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"conversations": list,
	})
}

// GetConversation returns one conversation with its messages.
// GET /v1/conversations/:id
func (h *Handler) GetConversation(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	conv, err := h.store.GetConversation(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if conv == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "conversation not found"})
	}

	return c.JSON(http.StatusOK, conv)
}

// DeleteConversation removes a conversation.
// DELETE /v1/conversations/:id
func (h *Handler) DeleteConversation(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if err := h.store.DeleteConversation(ctx, id); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.NoContent(http.StatusNoContent)
}
