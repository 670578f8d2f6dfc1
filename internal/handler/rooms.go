package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spark-client-lite/internal/store"
)

type roomBody struct {
	Title  string `json:"title"`
	TeamID string `json:"teamId"`
}

func (h *Handler) ListRooms(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	rooms := h.Store.ListRooms(store.RoomQuery{
		MemberID: userID,
		TeamID:   c.Query("teamId"),
		Type:     c.Query("type"),
		SortBy:   c.Query("sortBy"),
	})
	writePage(h, c, rooms)
}

func (h *Handler) CreateRoom(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	var body roomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	room, err := h.Store.CreateRoom(userID, body.Title, body.TeamID, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "rooms", "created", room)
	c.JSON(http.StatusOK, room)
}

func (h *Handler) GetRoom(c *gin.Context) {
	room, ok := h.Store.GetRoom(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, room)
}

func (h *Handler) UpdateRoom(c *gin.Context) {
	var body roomBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	room, err := h.Store.UpdateRoom(c.Param("id"), body.Title)
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "rooms", "updated", room)
	c.JSON(http.StatusOK, room)
}

func (h *Handler) DeleteRoom(c *gin.Context) {
	room, ok := h.Store.GetRoom(c.Param("id"))
	if !ok || !h.Store.DeleteRoom(room.ID) {
		notFound(c)
		return
	}
	h.publish(c, "rooms", "deleted", room)
	c.Status(http.StatusNoContent)
}
