package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *handler) listContractors(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	profiles, err := h.Contractors.List(c.Request.Context(), mustClaims(c).OrganizationID, limit)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": fromContractors(profiles)})
}
