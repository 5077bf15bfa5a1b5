package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintflow/quote"
)

func (h *handler) requestQuote(c *gin.Context) {
	var payload quoteRequestPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWith(c, errInvalidPayload)
		return
	}
	claims := mustClaims(c)

	res, err := h.QuoteRequests.RequestQuote(c.Request.Context(), quote.RequestQuoteParams{
		RequestID:      c.Param("id"),
		ContractorID:   payload.ContractorID,
		OrganizationID: claims.OrganizationID,
		ActorUserID:    claims.UserID,
		Notes:          payload.Notes,
		Include: quote.IncludeInfo{
			PropertyAddress:       payload.Include.PropertyAddress,
			Location:              payload.Include.Location,
			Priority:              payload.Include.Priority,
			PracticeLeaderName:    payload.Include.PracticeLeaderName,
			PracticeLeaderContact: payload.Include.PracticeLeaderContact,
		},
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"quote": fromQuote(res.Quote), "warnings": fromWarnings(res.Warnings)})
}

func (h *handler) listQuotes(c *gin.Context) {
	quotes, err := h.Quotes.ListForRequest(c.Request.Context(), c.Param("id"), mustClaims(c).OrganizationID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": fromQuotes(quotes)})
}

func (h *handler) submitQuote(c *gin.Context) {
	var payload submitQuotePayload
	if err := c.ShouldBindJSON(&payload); err != nil || payload.Amount == nil {
		abortWith(c, errInvalidPayload)
		return
	}

	res, err := h.Submissions.SubmitQuote(c.Request.Context(), quote.SubmitQuoteParams{
		RequestID:    c.Param("id"),
		CallerUserID: mustClaims(c).UserID,
		Amount:       *payload.Amount,
		Description:  payload.Description,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusOK
	if res.Action == quote.ActionCreated {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"quote": fromQuote(res.Quote), "action": res.Action, "warnings": fromWarnings(res.Warnings)})
}

func (h *handler) myQuotes(c *gin.Context) {
	quotes, err := h.Quotes.ListMine(c.Request.Context(), mustClaims(c).UserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": fromQuotes(quotes)})
}

func (h *handler) approveQuote(c *gin.Context) {
	claims := mustClaims(c)
	res, err := h.Approvals.Approve(c.Request.Context(), quote.ApproveParams{
		QuoteID:        c.Param("id"),
		ActorUserID:    claims.UserID,
		OrganizationID: claims.OrganizationID,
	})
	if err != nil {
		if res.Quote.Status == quote.StatusApproved {
			// The quote is approved but the request was not assigned.
			h.log.Error("approval left request unassigned",
				zap.String("quote_id", res.Quote.ID),
				zap.String("request_id", res.Quote.RequestID),
				zap.Int("siblings_rejected", len(res.Rejected)),
				zap.Error(err),
			)
		}
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, fromApproval(res))
}

func (h *handler) rejectQuote(c *gin.Context) {
	var payload rejectPayload
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&payload); err != nil {
			abortWith(c, errInvalidPayload)
			return
		}
	}
	claims := mustClaims(c)

	res, err := h.Approvals.Reject(c.Request.Context(), quote.RejectParams{
		QuoteID:        c.Param("id"),
		ActorUserID:    claims.UserID,
		OrganizationID: claims.OrganizationID,
		Reason:         payload.Reason,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": fromQuote(res.Quote), "warnings": fromWarnings(res.Warnings)})
}

func (h *handler) quoteLogs(c *gin.Context) {
	entries, err := h.Quotes.Logs(c.Request.Context(), c.Param("id"), mustClaims(c).OrganizationID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": fromLogs(entries)})
}
