package api

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"maintflow/auth"
)

const claimsKey = "maintflow.claims"

// TokenVerifier checks bearer tokens. *auth.Service satisfies it.
type TokenVerifier interface {
	VerifyToken(token string) (auth.Claims, error)
}

// Authenticate rejects requests without a valid bearer token and stores the
// verified claims on the context.
func Authenticate(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWith(c, errUnauthorized)
			return
		}
		claims, err := verifier.VerifyToken(strings.TrimSpace(token))
		if err != nil {
			abortWith(c, errUnauthorized)
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireRole lets through only callers holding one of roles.
func RequireRole(roles ...auth.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			abortWith(c, errUnauthorized)
			return
		}
		for _, r := range roles {
			if claims.Role == r {
				c.Next()
				return
			}
		}
		abortWith(c, errForbidden)
	}
}

// RequireOrganization rejects callers whose token carries no organization.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok || claims.OrganizationID == "" {
			abortWith(c, errNoOrganization)
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return auth.Claims{}, false
	}
	claims, ok := v.(auth.Claims)
	return claims, ok
}

// mustClaims is for handlers mounted behind Authenticate.
func mustClaims(c *gin.Context) auth.Claims {
	claims, _ := claimsFrom(c)
	return claims
}

// RequestLogger writes one structured line per request.
func RequestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if claims, ok := claimsFrom(c); ok {
			fields = append(fields, zap.String("user_id", claims.UserID))
		}
		if c.Writer.Status() >= 500 {
			log.Warn("http request", fields...)
			return
		}
		log.Info("http request", fields...)
	}
}
