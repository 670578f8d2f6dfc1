package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const trackingIDHeader = "TrackingID"

type errorDetail struct {
	Description string `json:"description"`
}

type errorBody struct {
	Message    string        `json:"message"`
	Errors     []errorDetail `json:"errors"`
	TrackingID string        `json:"trackingId"`
}

// TrackingID echoes the caller's TrackingID header or mints one.
func TrackingID(c *gin.Context) string {
	if id := c.GetHeader(trackingIDHeader); id != "" {
		return id
	}
	return "sparkfake_" + uuid.NewString()
}

// AbortWithError writes the service's error body and stops the chain.
func AbortWithError(c *gin.Context, status int, message string, details ...string) {
	body := errorBody{Message: message, TrackingID: TrackingID(c)}
	if len(details) == 0 {
		details = []string{message}
	}
	for _, d := range details {
		body.Errors = append(body.Errors, errorDetail{Description: d})
	}
	c.Header(trackingIDHeader, body.TrackingID)
	c.AbortWithStatusJSON(status, body)
}
