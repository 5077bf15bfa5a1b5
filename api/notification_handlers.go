package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const maxNotificationPage = 100

func (h *handler) listNotifications(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > maxNotificationPage {
		limit = 50
	}

	items, err := h.Inbox.List(c.Request.Context(), mustClaims(c).UserID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": fromNotifications(items)})
}

func (h *handler) markNotificationRead(c *gin.Context) {
	if err := h.Inbox.MarkRead(c.Request.Context(), c.Param("id"), mustClaims(c).UserID); err != nil {
		respondError(c, h.log, err)
		return
	}
	c.Status(http.StatusNoContent)
}
