package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"spark-client-lite/internal/hub"
	"spark-client-lite/internal/middleware"
	"spark-client-lite/internal/store"
)

// Handler serves the REST resources of the fake service.
type Handler struct {
	Store    *store.Store
	Hub      *hub.Hub
	Logger   logrus.FieldLogger
	PageSize int
	Now      func() time.Time
}

func (h *Handler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

func (h *Handler) userID(c *gin.Context) (string, bool) {
	userID, ok := middleware.UserIDFromContext(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, "The request requires a valid access token set in the Authorization request header.")
	}
	return userID, ok
}

// fail maps store errors onto service error responses.
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		middleware.AbortWithError(c, http.StatusNotFound, store.ErrNotFound.Error())
	case errors.Is(err, store.ErrConflict):
		middleware.AbortWithError(c, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrInvalid):
		middleware.AbortWithError(c, http.StatusBadRequest, "The request could not be understood by the server due to malformed syntax.", err.Error())
	default:
		middleware.AbortWithError(c, http.StatusInternalServerError, err.Error())
	}
}

func notFound(c *gin.Context) {
	fail(c, store.ErrNotFound)
}

func badRequest(c *gin.Context, detail string) {
	middleware.AbortWithError(c, http.StatusBadRequest, "The request could not be understood by the server due to malformed syntax.", detail)
}

// writePage answers a list request with one page of items and a
// rel="next" Link when more remain. Pages are addressed by an offset cursor.
func writePage[T any](h *Handler, c *gin.Context, items []T) {
	size := h.PageSize
	if size <= 0 {
		size = 100
	}
	if raw := c.Query("max"); raw != "" {
		max, err := strconv.Atoi(raw)
		if err != nil || max <= 0 {
			badRequest(c, "max must be a positive integer")
			return
		}
		if max < size {
			size = max
		}
	}
	offset := 0
	if raw := c.Query("cursor"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			badRequest(c, "invalid cursor")
			return
		}
		offset = n
	}

	if offset > len(items) {
		offset = len(items)
	}
	end := offset + size
	if end > len(items) {
		end = len(items)
	}
	if end < len(items) {
		c.Header("Link", "<"+nextURL(c, end)+`>; rel="next"`)
	}
	c.JSON(http.StatusOK, gin.H{"items": items[offset:end]})
}

func nextURL(c *gin.Context, cursor int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	query := c.Request.URL.Query()
	query.Set("cursor", strconv.Itoa(cursor))
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path, RawQuery: query.Encode()}
	return u.String()
}

// publish notifies webhooks about a change to record.
func (h *Handler) publish(c *gin.Context, resource, event string, record any) {
	if h.Hub == nil {
		return
	}
	raw, err := json.Marshal(record)
	if err != nil {
		return
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return
	}
	delete(data, "secret")
	actorID, _ := middleware.UserIDFromContext(c)
	h.Hub.Publish(context.WithoutCancel(c.Request.Context()), hub.Event{
		Resource: resource,
		Event:    event,
		ActorID:  actorID,
		Data:     data,
	})
}
