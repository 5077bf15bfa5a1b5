package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"maintflow/maintenance"
)

func (h *handler) createRequest(c *gin.Context) {
	var payload createRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWith(c, errInvalidPayload)
		return
	}
	claims := mustClaims(c)

	priority := maintenance.Priority(payload.Priority)
	if priority == "" {
		priority = maintenance.PriorityMedium
	}
	req, err := h.Requests.Create(c.Request.Context(), maintenance.CreateParams{
		OrganizationID:  claims.OrganizationID,
		PropertyID:      payload.PropertyID,
		CreatedByUserID: claims.UserID,
		Title:           payload.Title,
		Description:     payload.Description,
		Location:        payload.Location,
		Priority:        priority,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, fromRequest(req))
}

func (h *handler) listRequests(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	res, err := h.Requests.List(c.Request.Context(), maintenance.Filters{
		OrganizationID: mustClaims(c).OrganizationID,
		Status:         maintenance.Status(c.Query("status")),
		Priority:       maintenance.Priority(c.Query("priority")),
		PropertyID:     c.Query("property_id"),
		ContractorID:   c.Query("contractor_id"),
		Page:           page,
		PageSize:       pageSize,
		SortKey:        c.Query("sort"),
		SortOrder:      c.Query("order"),
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	items := make([]requestResponse, 0, len(res.Items))
	for _, r := range res.Items {
		items = append(items, fromRequest(r))
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": res.Total})
}

func (h *handler) getRequest(c *gin.Context) {
	req, err := h.Requests.Get(c.Request.Context(), c.Param("id"), mustClaims(c).OrganizationID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, fromRequest(req))
}

func (h *handler) cancelRequest(c *gin.Context) {
	var payload cancelPayload
	// The body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			abortWith(c, errInvalidPayload)
			return
		}
	}
	claims := mustClaims(c)

	req, err := h.Requests.Cancel(c.Request.Context(), maintenance.CancelParams{
		RequestID:      c.Param("id"),
		OrganizationID: claims.OrganizationID,
		ActorID:        claims.UserID,
		Reason:         payload.Reason,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, fromRequest(req))
}

func (h *handler) completeRequest(c *gin.Context) {
	claims := mustClaims(c)
	req, err := h.Requests.Complete(c.Request.Context(), maintenance.CompleteParams{
		RequestID:      c.Param("id"),
		OrganizationID: claims.OrganizationID,
		ActorID:        claims.UserID,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, fromRequest(req))
}
