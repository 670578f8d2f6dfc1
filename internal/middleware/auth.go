package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"spark-client-lite/internal/auth"
)

const userIDContextKey = "userID"

func UserIDFromContext(c *gin.Context) (string, bool) {
	userID, ok := c.Get(userIDContextKey)
	if !ok {
		return "", false
	}
	value, ok := userID.(string)
	return value, ok && value != ""
}

// RequireAuth accepts bearer tokens minted by auth.CreateToken. onAuth, when
// set, runs for every authenticated subject.
func RequireAuth(cfg auth.TokenConfig, onAuth func(userID string)) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			AbortWithError(c, http.StatusUnauthorized, "The request requires a valid access token set in the Authorization request header.")
			return
		}

		claims, err := auth.VerifyToken(parts[1], cfg)
		if err != nil {
			AbortWithError(c, http.StatusUnauthorized, "The request requires a valid access token set in the Authorization request header.")
			return
		}

		if onAuth != nil {
			onAuth(claims.PersonID())
		}
		c.Set(userIDContextKey, claims.PersonID())
		c.Next()
	}
}
