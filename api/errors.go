package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintflow/auth"
	"maintflow/maintenance"
	"maintflow/notify"
	"maintflow/quote"
)

// apiError is the JSON body of every failed response.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func newError(status int, code, message string) apiError {
	return apiError{Status: status, Code: code, Message: message}
}

var (
	errInvalidPayload = newError(http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid request payload")
	errUnauthorized   = newError(http.StatusUnauthorized, "UNAUTHORIZED", "Missing or invalid bearer token")
	errForbidden      = newError(http.StatusForbidden, "FORBIDDEN", "Role not allowed for this operation")
	errNoOrganization = newError(http.StatusForbidden, "NO_ORGANIZATION", "User does not belong to an organization")
	errRateLimited    = newError(http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
	errInternal       = newError(http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
)

// mapError turns a service error into the response sent to clients. Anything
// unrecognised becomes a 500.
func mapError(err error) apiError {
	switch {
	case errors.Is(err, quote.ErrRequestNotFound), errors.Is(err, maintenance.ErrNotFound), errors.Is(err, maintenance.ErrWrongOrganization):
		return newError(http.StatusNotFound, "REQUEST_NOT_FOUND", "Maintenance request not found")
	case errors.Is(err, quote.ErrContractorNotFound):
		return newError(http.StatusNotFound, "CONTRACTOR_NOT_FOUND", "Contractor not found")
	case errors.Is(err, quote.ErrNotFound):
		return newError(http.StatusNotFound, "QUOTE_NOT_FOUND", "Quote not found")
	case errors.Is(err, notify.ErrNotFound):
		return newError(http.StatusNotFound, "NOTIFICATION_NOT_FOUND", "Notification not found")
	case errors.Is(err, auth.ErrUserNotFound):
		return newError(http.StatusNotFound, "USER_NOT_FOUND", "User not found")

	case errors.Is(err, quote.ErrMissingID), errors.Is(err, maintenance.ErrInvalidPriority),
		errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrInvalidRole), errors.Is(err, auth.ErrOrganizationRequired),
		errors.Is(err, auth.ErrUnknownOrganization):
		return newError(http.StatusBadRequest, "INVALID_REQUEST", err.Error())

	case errors.Is(err, auth.ErrInvalidCredentials):
		return newError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Invalid email or password")
	case errors.Is(err, auth.ErrInvalidToken):
		return errUnauthorized

	case errors.Is(err, quote.ErrCrossTenant):
		return newError(http.StatusForbidden, "CROSS_TENANT", "Contractor belongs to another organization")

	case errors.Is(err, quote.ErrAlreadyAwarded):
		return newError(http.StatusConflict, "ALREADY_AWARDED", "Another quote is already approved for this request")
	case errors.Is(err, quote.ErrConflict):
		return newError(http.StatusConflict, "CONFLICT", "Quote changed concurrently, retry")
	case errors.Is(err, quote.ErrDuplicate):
		return newError(http.StatusConflict, "DUPLICATE_QUOTE", "Quote already exists for this contractor")
	case errors.Is(err, quote.ErrInvalidTransition):
		return newError(http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, auth.ErrDuplicateEmail):
		return newError(http.StatusConflict, "EMAIL_TAKEN", "Email already registered")

	case errors.Is(err, quote.ErrInvalidAmount):
		return newError(http.StatusUnprocessableEntity, "INVALID_AMOUNT", "Amount must be between 0.01 and 9999999999.99")
	case errors.Is(err, quote.ErrRequestClosed), errors.Is(err, maintenance.ErrNotAssignable):
		return newError(http.StatusUnprocessableEntity, "REQUEST_CLOSED", "Maintenance request is closed")
	case errors.Is(err, maintenance.ErrCancelInvalidState), errors.Is(err, maintenance.ErrCompleteInvalidState):
		return newError(http.StatusUnprocessableEntity, "INVALID_STATE", err.Error())

	default:
		return errInternal
	}
}

func abortWith(c *gin.Context, e apiError) {
	c.AbortWithStatusJSON(e.Status, e)
}

// respondError writes the mapped error and logs server-side failures.
func respondError(c *gin.Context, log *zap.Logger, err error) {
	e := mapError(err)
	if e.Status >= http.StatusInternalServerError {
		log.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	abortWith(c, e)
}
