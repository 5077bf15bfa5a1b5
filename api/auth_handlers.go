package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"maintflow/auth"
)

func (h *handler) register(c *gin.Context) {
	var payload registerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWith(c, errInvalidPayload)
		return
	}

	user, err := h.Auth.Register(c.Request.Context(), auth.RegisterRequest{
		Email:            payload.Email,
		Password:         payload.Password,
		FullName:         payload.FullName,
		Role:             auth.Role(payload.Role),
		OrganizationID:   payload.OrganizationID,
		OrganizationName: payload.OrganizationName,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, fromUser(*user))
}

func (h *handler) login(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		abortWith(c, errInvalidPayload)
		return
	}

	res, err := h.Auth.Login(c.Request.Context(), auth.LoginRequest{Email: payload.Email, Password: payload.Password})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": res.Token, "user": fromUser(res.User)})
}

func (h *handler) me(c *gin.Context) {
	user, err := h.Auth.GetUserByID(c.Request.Context(), mustClaims(c).UserID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, fromUser(*user))
}
