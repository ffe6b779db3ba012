package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/proctorly/examroom/internal/response"
	"github.com/proctorly/examroom/internal/service"
)

// ContextKeyClaims is the Gin context key for session token claims.
const ContextKeyClaims = "claims"

// RequireSessionToken validates a session token from the Authorization
// header and checks it is bound to the exam in the route.
func RequireSessionToken(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if examID := c.Param("exam_id"); examID != "" && claims.ExamID != examID {
			response.AbortFail(c, http.StatusForbidden, response.ErrSessionMismatch)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireSessionWSAuth validates a session token from the query param
// ?token=... Used for WebSocket upgrade requests, which cannot set headers.
func RequireSessionWSAuth(tokens *service.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := c.Query("token")
		if tokenStr == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		claims, err := tokens.Validate(tokenStr)
		if err != nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenInvalid)
			return
		}
		if examID := c.Param("exam_id"); examID != "" && claims.ExamID != examID {
			response.AbortFail(c, http.StatusForbidden, response.ErrSessionMismatch)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// GetClaims retrieves the session claims from the Gin context.
func GetClaims(c *gin.Context) *service.Claims {
	val, exists := c.Get(ContextKeyClaims)
	if !exists {
		return nil
	}
	claims, ok := val.(*service.Claims)
	if !ok {
		return nil
	}
	return claims
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
