package handler

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spark-client-lite/internal/auth"
	"spark-client-lite/internal/middleware"
	"spark-client-lite/internal/model"
	"spark-client-lite/internal/store"
)

// AuthHandler issues access tokens through the OAuth token endpoint. The
// authorization code is the email address of the person to sign in as.
type AuthHandler struct {
	Store        *store.Store
	TokenConfig  auth.TokenConfig
	TokenLimiter *middleware.RateLimiter
}

type tokenRequest struct {
	GrantType    string `form:"grant_type"`
	ClientID     string `form:"client_id"`
	Code         string `form:"code"`
	RefreshToken string `form:"refresh_token"`
}

func (h *AuthHandler) AccessToken(c *gin.Context) {
	if h.TokenLimiter != nil {
		if allowed, retryAfter := h.TokenLimiter.Allow(c.ClientIP()); !allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Max(1, math.Ceil(retryAfter.Seconds())))))
			middleware.AbortWithError(c, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}
	}

	var body tokenRequest
	if err := c.ShouldBind(&body); err != nil {
		badRequest(c, err.Error())
		return
	}

	var userID string
	switch body.GrantType {
	case "authorization_code":
		email := strings.TrimSpace(body.Code)
		if email == "" || !strings.Contains(email, "@") {
			badRequest(c, "code must be an email address")
			return
		}
		userID = h.personFor(email)
	case "refresh_token":
		claims, err := auth.VerifyRefreshToken(body.RefreshToken, h.TokenConfig)
		if err != nil {
			middleware.AbortWithError(c, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		userID = claims.PersonID()
	default:
		badRequest(c, "unsupported grant_type")
		return
	}

	access, err := auth.CreateToken(userID, h.TokenConfig)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "Token creation failed")
		return
	}
	refresh, err := auth.CreateRefreshToken(userID, h.TokenConfig)
	if err != nil {
		middleware.AbortWithError(c, http.StatusInternalServerError, "Token creation failed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token":             access,
		"expires_in":               int(h.TokenConfig.ExpiresIn(auth.UseAccess).Seconds()),
		"refresh_token":            refresh,
		"refresh_token_expires_in": int(h.TokenConfig.ExpiresIn(auth.UseRefresh).Seconds()),
	})
}

func (h *AuthHandler) personFor(email string) string {
	if people := h.Store.ListPeople(email, ""); len(people) > 0 {
		return people[0].ID
	}
	p, err := h.Store.CreatePerson(model.Person{Emails: []string{email}}, time.Now().UTC())
	if err != nil {
		// Lost a race with another sign-in for the same address.
		return h.Store.ListPeople(email, "")[0].ID
	}
	return p.ID
}
