package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"spark-client-lite/internal/store"
)

type membershipBody struct {
	RoomID      string `json:"roomId"`
	TeamID      string `json:"teamId"`
	PersonID    string `json:"personId"`
	PersonEmail string `json:"personEmail"`
	IsModerator bool   `json:"isModerator"`
}

// ListMemberships lists the caller's memberships unless a room is named.
func (h *Handler) ListMemberships(c *gin.Context) {
	userID, ok := h.userID(c)
	if !ok {
		return
	}
	q := store.MembershipQuery{
		RoomID:      c.Query("roomId"),
		PersonID:    c.Query("personId"),
		PersonEmail: c.Query("personEmail"),
	}
	if q.RoomID == "" && q.PersonID == "" && q.PersonEmail == "" {
		q.PersonID = userID
	}
	writePage(h, c, h.Store.ListMemberships(q))
}

func (h *Handler) CreateMembership(c *gin.Context) {
	var body membershipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := h.Store.CreateMembership(body.RoomID, body.PersonID, body.PersonEmail, body.IsModerator, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "memberships", "created", m)
	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetMembership(c *gin.Context) {
	m, ok := h.Store.GetMembership(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateMembership(c *gin.Context) {
	var body membershipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := h.Store.UpdateMembership(c.Param("id"), body.IsModerator)
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "memberships", "updated", m)
	c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteMembership(c *gin.Context) {
	m, ok := h.Store.GetMembership(c.Param("id"))
	if !ok || !h.Store.DeleteMembership(m.ID) {
		notFound(c)
		return
	}
	h.publish(c, "memberships", "deleted", m)
	c.Status(http.StatusNoContent)
}

func (h *Handler) ListTeamMemberships(c *gin.Context) {
	teamID := c.Query("teamId")
	if teamID == "" {
		badRequest(c, "teamId is required")
		return
	}
	ms, err := h.Store.ListTeamMemberships(teamID)
	if err != nil {
		fail(c, err)
		return
	}
	writePage(h, c, ms)
}

func (h *Handler) CreateTeamMembership(c *gin.Context) {
	var body membershipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := h.Store.CreateTeamMembership(body.TeamID, body.PersonID, body.PersonEmail, body.IsModerator, h.now())
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "team/memberships", "created", m)
	c.JSON(http.StatusOK, m)
}

func (h *Handler) GetTeamMembership(c *gin.Context) {
	m, ok := h.Store.GetTeamMembership(c.Param("id"))
	if !ok {
		notFound(c)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handler) UpdateTeamMembership(c *gin.Context) {
	var body membershipBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, err.Error())
		return
	}
	m, err := h.Store.UpdateTeamMembership(c.Param("id"), body.IsModerator)
	if err != nil {
		fail(c, err)
		return
	}
	h.publish(c, "team/memberships", "updated", m)
	c.JSON(http.StatusOK, m)
}

func (h *Handler) DeleteTeamMembership(c *gin.Context) {
	m, ok := h.Store.GetTeamMembership(c.Param("id"))
	if !ok || !h.Store.DeleteTeamMembership(m.ID) {
		notFound(c)
		return
	}
	h.publish(c, "team/memberships", "deleted", m)
	c.Status(http.StatusNoContent)
}
