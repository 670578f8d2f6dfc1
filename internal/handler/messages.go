package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spark-client-lite/internal/middleware"
	"spark-client-lite/internal/model"
	"spark-client-lite/internal/store"
)

type messageBody struct {
	RoomID          string   `json:"roomId"`
	ToPersonID      string   `json:"toPersonId"`
	ToPersonEmail   string   `json:"toPersonEmail"`
	Text            string   `json:"text"`
	Markdown        string   `json:"markdown"`
	Files           []string `json:"files"`
	MentionedPeople []string `json:"mentionedPeople"`
}

func (h *Handler) ListMessages(c *gin.Context) {
	roomID := c.Query("roomId")
	if roomID == "" {
		badRequest(c, "roomId is required")
		return
	}
	q := store.MessageQuery{RoomID: roomID, BeforeMessage: c.Query("beforeMessage")}
	if raw := c.Query("mentionedPeople"); raw != "" {
		userID, _ := middleware.UserIDFromContext(c)
		for _, p := range strings.Split(raw, ",") {
			if p == "me" {
				p = userID
			}
			q.MentionedPeople = append(q.MentionedPeople, p)
		}
	}
	if raw := c.Query("before"); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, "before must be an ISO8601 timestamp")
			return
		}
		q.Before = before
	}
	msgs, err := h.Store.ListMessages(q)
	if err != nil {
		fail(c, err)
		return
	}
	writePage(h, c, msgs)
}

func (h *Handler) CreateMessage(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var body messageBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	msg, err := h.Store.CreateMessage(model.Message{
		RoomID:          body.RoomID,
		ToPersonID:      body.ToPersonID,
		ToPersonEmail:   body.ToPersonEmail,
		PersonID:        userID,
		Text:            body.Text,
		Markdown:        body.Markdown,
		Files:           body.Files,
		MentionedPeople: body.MentionedPeople,
	}, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "messages", "created", msg)
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) GetMessage(c *gin.Context) {
	msg, ok := h.Store.GetMessage(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *Handler) DeleteMessage(c *gin.Context) {
	msg, ok := h.Store.GetMessage(c.Param("id"))
	if !ok || !h.Store.DeleteMessage(msg.ID) {
		notFound(c)
		return
	}
	h.publish(c, "messages", "deleted", msg)
	c.Status(http.StatusNoContent)
}
